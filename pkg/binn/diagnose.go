package binn

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Diagnose 以可读文本描述 data 中的第一个值，例如
//
//	object(2){"Age": uint8(3), "Name": string("Ann")}
//
// 标记按线上的原始宽度展示，不做整数拓宽。
func Diagnose(data []byte) (string, error) {
	st := &decodeState{data: data, end: len(data)}
	var sb strings.Builder
	if err := st.describe(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (st *decodeState) describe(sb *strings.Builder) error {
	start := st.off
	if err := st.need(1); err != nil {
		return err
	}
	tag := Tag(st.data[st.off])

	switch tag {
	case TagList, TagObject:
		st.off++
		_, err := st.readContainer(start, tag, func(_ int, count int) (any, error) {
			open, closing := "[", "]"
			if tag == TagObject {
				open, closing = "{", "}"
			}
			fmt.Fprintf(sb, "%s(%d)%s", tag, count, open)
			for i := 0; i < count; i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				if tag == TagObject {
					name, err := st.readName()
					if err != nil {
						return nil, err
					}
					sb.WriteString(strconv.Quote(name))
					sb.WriteString(": ")
				}
				if err := st.describe(sb); err != nil {
					return nil, err
				}
			}
			sb.WriteString(closing)
			return nil, nil
		})
		return err
	}

	v, err := st.readValue()
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		sb.WriteString(tag.String())
	case bool:
		sb.WriteString(tag.String())
	case string:
		fmt.Fprintf(sb, "%s(%s)", tag, strconv.Quote(x))
	case []byte:
		fmt.Fprintf(sb, "%s(%d)[%s]", tag, len(x), hex.EncodeToString(x))
	case time.Time:
		fmt.Fprintf(sb, "%s(%s)", tag, x.Format(time.RFC3339Nano))
	default:
		fmt.Fprintf(sb, "%s(%v)", tag, x)
	}
	return nil
}
