package binn

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

const (
	ticksPerSecond = 10_000_000
	// unixEpochTicks 是 0001-01-01 到 1970-01-01 之间的 100ns 数。
	unixEpochTicks = 621355968000000000
	// maxTicks 对应 9999-12-31T23:59:59.9999999。
	maxTicks = 3155378975999999999

	// containerOverhead 是跨度中固定多计的头部字节数。
	containerOverhead = 3
)

func AppendNull(dst []byte) []byte {
	return append(dst, byte(TagNull))
}

func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, byte(TagTrue))
	}
	return append(dst, byte(TagFalse))
}

// AppendInt 以能无损表示 v 的最窄标记写入有符号整数。
// 非负值使用无符号标记。
func AppendInt[T constraints.Signed](dst []byte, v T) []byte {
	x := int64(v)
	if x >= 0 {
		return appendUint64(dst, uint64(x))
	}
	switch {
	case x >= math.MinInt8:
		return append(dst, byte(TagInt8), byte(int8(x)))
	case x >= math.MinInt16:
		return binary.LittleEndian.AppendUint16(append(dst, byte(TagInt16)), uint16(int16(x)))
	case x >= math.MinInt32:
		return binary.LittleEndian.AppendUint32(append(dst, byte(TagInt32)), uint32(int32(x)))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, byte(TagInt64)), uint64(x))
	}
}

// AppendUint 以能无损表示 v 的最窄无符号标记写入。
func AppendUint[T constraints.Unsigned](dst []byte, v T) []byte {
	return appendUint64(dst, uint64(v))
}

func appendUint64(dst []byte, x uint64) []byte {
	switch {
	case x <= math.MaxUint8:
		return append(dst, byte(TagUInt8), byte(x))
	case x <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(append(dst, byte(TagUInt16)), uint16(x))
	case x <= math.MaxUint32:
		return binary.LittleEndian.AppendUint32(append(dst, byte(TagUInt32)), uint32(x))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, byte(TagUInt64)), x)
	}
}

func AppendFloat64(dst []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(append(dst, byte(TagFloat64)), math.Float64bits(f))
}

// AppendString 写入 String 标记、varint 字节长度和 UTF-8 内容。
func AppendString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return dst, merr.WrapErrUnsupportedType("string", "invalid UTF-8")
	}
	out, err := AppendSize(append(dst, byte(TagString)), len(s))
	if err != nil {
		return dst, err
	}
	return append(out, s...), nil
}

// AppendBlob 写入 Blob 标记、4 字节小端长度和原始字节。
func AppendBlob(dst []byte, b []byte) ([]byte, error) {
	if len(b) > math.MaxInt32 {
		return dst, merr.WrapErrSizeOutOfRange(int64(len(b)), math.MaxInt32, "blob")
	}
	dst = binary.LittleEndian.AppendUint32(append(dst, byte(TagBlob)), uint32(len(b)))
	return append(dst, b...), nil
}

// AppendUniqueID 以 GUID 混合字节序写入 16 字节标识。
func AppendUniqueID(dst []byte, id uuid.UUID) []byte {
	dst = append(dst, byte(TagUniqueID))
	n := len(dst)
	dst = append(dst, make([]byte, 16)...)
	swapGUID(dst[n:], id[:])
	return dst
}

// AppendTimestamp 以 100ns 刻度写入时间，仅支持 1 至 9999 年。
func AppendTimestamp(dst []byte, t time.Time) ([]byte, error) {
	ticks, err := timeToTicks(t)
	if err != nil {
		return dst, err
	}
	return binary.LittleEndian.AppendUint64(append(dst, byte(TagTimestamp)), uint64(ticks)), nil
}

// appendContainerHeader 写入容器标记、跨度与元素数。
func appendContainerHeader(dst []byte, tag Tag, payloadLen, count int) ([]byte, error) {
	if payloadLen > MaxSize-containerOverhead {
		return dst, merr.WrapErrSizeOutOfRange(int64(payloadLen), MaxSize-containerOverhead, tag.String())
	}
	out, err := AppendSize(append(dst, byte(tag)), payloadLen+containerOverhead)
	if err != nil {
		return dst, err
	}
	return AppendSize(out, count)
}

// appendName 写入属性单元的名称部分：一字节长度加名称。
func appendName(dst []byte, name string) ([]byte, error) {
	if len(name) > MaxNameLen {
		return dst, merr.WrapErrNameTooLong(name, len(name), MaxNameLen)
	}
	if !utf8.ValidString(name) {
		return dst, merr.WrapErrUnsupportedType("string", "invalid UTF-8 property name")
	}
	dst = append(dst, byte(len(name)))
	return append(dst, name...), nil
}

// swapGUID 在 RFC 4122 字节序与 GUID 混合字节序之间互转，两个方向相同。
func swapGUID(dst, src []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
	dst[4], dst[5] = src[5], src[4]
	dst[6], dst[7] = src[7], src[6]
	copy(dst[8:16], src[8:16])
}

func timeToTicks(t time.Time) (int64, error) {
	t = t.UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return 0, merr.WrapErrUnsupportedType("time.Time", "year out of range")
	}
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100) + unixEpochTicks, nil
}

func ticksToTime(ticks int64) (time.Time, bool) {
	if ticks < 0 || ticks > maxTicks {
		return time.Time{}, false
	}
	rel := ticks - unixEpochTicks
	sec := rel / ticksPerSecond
	rem := rel % ticksPerSecond
	if rem < 0 {
		sec--
		rem += ticksPerSecond
	}
	return time.Unix(sec, rem*100).UTC(), true
}
