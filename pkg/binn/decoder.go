package binn

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lk2023060901/binn-go/pkg/metrics"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

var (
	decodeSucceeded = metrics.CodecCalls.WithLabelValues(metrics.DecodeLabel, metrics.SuccessLabel)
	decodeFailed    = metrics.CodecCalls.WithLabelValues(metrics.DecodeLabel, metrics.FailLabel)
	decodePayload   = metrics.CodecPayloadBytes.WithLabelValues(metrics.DecodeLabel)
)

type decoderOption struct {
	maxDepth int
}

// DecoderOption 用于配置 Decoder。
type DecoderOption func(*decoderOption)

// WithDecodeMaxDepth 限制容器嵌套深度，n <= 0 表示不限制。
func WithDecodeMaxDepth(n int) DecoderOption {
	return func(o *decoderOption) {
		o.maxDepth = n
	}
}

// Decoder 将二进制流解码为通用 Go 值：
// 整数统一为 int64（超出范围的 UInt64 保持 uint64），对象为 map[string]any，
// 列表为按首个元素类型推断出的切片。
type Decoder struct {
	maxDepth int
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	opt := &decoderOption{}
	for _, o := range opts {
		o(opt)
	}
	return &Decoder{maxDepth: opt.maxDepth}
}

// Decode 解码 data 中的第一个值，忽略其后的字节。
func (d *Decoder) Decode(data []byte) (any, error) {
	v, _, err := d.DecodeFirst(data)
	return v, err
}

// DecodeFirst 解码 data 中的第一个值，并返回剩余字节。
func (d *Decoder) DecodeFirst(data []byte) (any, []byte, error) {
	st := &decodeState{data: data, end: len(data), maxDepth: d.maxDepth}
	v, err := st.readValue()
	if err != nil {
		decodeFailed.Inc()
		metrics.CodecFailures.WithLabelValues(metrics.DecodeLabel, strconv.Itoa(int(merr.Code(err)))).Inc()
		return nil, nil, err
	}
	decodeSucceeded.Inc()
	decodePayload.Observe(float64(st.off))
	return v, data[st.off:], nil
}

type decodeState struct {
	data     []byte
	off      int
	end      int
	depth    int
	maxDepth int
}

// need 检查当前位置之后是否还有 n 个字节可读。
func (st *decodeState) need(n int) error {
	if n <= st.end-st.off {
		return nil
	}
	if st.end < len(st.data) {
		return merr.WrapErrMalformedInput(st.off, "value exceeds container span")
	}
	return merr.WrapErrTruncatedInput(st.off, n, st.end-st.off)
}

func (st *decodeState) next(n int) ([]byte, error) {
	if err := st.need(n); err != nil {
		return nil, err
	}
	b := st.data[st.off : st.off+n]
	st.off += n
	return b, nil
}

func (st *decodeState) readSize() (int, error) {
	n, consumed, err := DecodeSize(st.data[st.off:st.end])
	if err != nil {
		if st.end < len(st.data) {
			return 0, merr.WrapErrMalformedInput(st.off, "size exceeds container span")
		}
		need := 1
		if st.off < st.end {
			need = longSizeLen
		}
		return 0, merr.WrapErrTruncatedInput(st.off, need, st.end-st.off)
	}
	st.off += consumed
	return n, nil
}

func (st *decodeState) readValue() (any, error) {
	start := st.off
	b, err := st.next(1)
	if err != nil {
		return nil, err
	}
	tag := Tag(b[0])

	if w, ok := tag.FixedWidth(); ok && w > 0 {
		if b, err = st.next(w); err != nil {
			return nil, err
		}
	}

	switch tag {
	case TagNull:
		return nil, nil
	case TagTrue:
		return true, nil
	case TagFalse:
		return false, nil
	case TagUInt8:
		return int64(b[0]), nil
	case TagInt8:
		return int64(int8(b[0])), nil
	case TagUInt16:
		return int64(binary.LittleEndian.Uint16(b)), nil
	case TagInt16:
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case TagUInt32:
		return int64(binary.LittleEndian.Uint32(b)), nil
	case TagInt32:
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case TagUInt64:
		u := binary.LittleEndian.Uint64(b)
		if u > math.MaxInt64 {
			return u, nil
		}
		return int64(u), nil
	case TagInt64:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TagFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case TagUniqueID:
		var id uuid.UUID
		swapGUID(id[:], b)
		return id, nil
	case TagTimestamp:
		t, ok := ticksToTime(int64(binary.LittleEndian.Uint64(b)))
		if !ok {
			return nil, merr.WrapErrMalformedInput(start, "timestamp out of range")
		}
		return t, nil
	case TagString:
		return st.readString(start)
	case TagBlob:
		return st.readBlob(start)
	case TagList:
		return st.readContainer(start, tag, st.readList)
	case TagObject:
		return st.readContainer(start, tag, st.readObject)
	}
	return nil, merr.WrapErrUnsupportedTag(byte(tag), start)
}

func (st *decodeState) readString(start int) (string, error) {
	n, err := st.readSize()
	if err != nil {
		return "", err
	}
	b, err := st.next(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", merr.WrapErrMalformedInput(start, "invalid UTF-8 string")
	}
	return string(b), nil
}

func (st *decodeState) readBlob(start int) ([]byte, error) {
	b, err := st.next(4)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(b)
	if n > math.MaxInt32 {
		return nil, merr.WrapErrMalformedInput(start, "negative blob length")
	}
	if b, err = st.next(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// readContainer 读取容器头并校验跨度，载荷必须恰好被元素消耗完。
func (st *decodeState) readContainer(start int, tag Tag, body func(start, count int) (any, error)) (any, error) {
	span, err := st.readSize()
	if err != nil {
		return nil, err
	}
	if span < containerOverhead {
		return nil, merr.WrapErrMalformedInput(start, "container span below header overhead")
	}
	count, err := st.readSize()
	if err != nil {
		return nil, err
	}
	payload := span - containerOverhead
	if err := st.need(payload); err != nil {
		return nil, err
	}
	minUnit := 1
	if tag == TagObject {
		minUnit = 2
	}
	if count > payload/minUnit {
		return nil, merr.WrapErrMalformedInput(start, "count exceeds container payload")
	}

	st.depth++
	defer func() { st.depth-- }()
	if st.maxDepth > 0 && st.depth > st.maxDepth {
		return nil, merr.WrapErrDepthExceeded(st.depth, st.maxDepth)
	}

	outer := st.end
	st.end = st.off + payload
	v, err := body(start, count)
	if err != nil {
		return nil, err
	}
	if st.off != st.end {
		return nil, merr.WrapErrMalformedInput(start, "container span does not match content")
	}
	st.end = outer
	return v, nil
}

func (st *decodeState) readObject(_ int, count int) (any, error) {
	obj := make(map[string]any, count)
	for i := 0; i < count; i++ {
		name, err := st.readName()
		if err != nil {
			return nil, err
		}
		v, err := st.readValue()
		if err != nil {
			return nil, err
		}
		obj[name] = v
	}
	return obj, nil
}

// readName 读取属性单元的名称：一字节长度加 UTF-8 名称。
func (st *decodeState) readName() (string, error) {
	at := st.off
	b, err := st.next(1)
	if err != nil {
		return "", err
	}
	name, err := st.next(int(b[0]))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(name) {
		return "", merr.WrapErrMalformedInput(at, "invalid UTF-8 property name")
	}
	return string(name), nil
}

func (st *decodeState) readList(start int, count int) (any, error) {
	items := make([]any, count)
	for i := range items {
		v, err := st.readValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return makeList(start, items)
}

var (
	int64Type    = reflect.TypeFor[int64]()
	uint64Type   = reflect.TypeFor[uint64]()
	anySliceType = reflect.TypeFor[[]any]()
	bytesType    = reflect.TypeFor[[]byte]()
)

// makeList 按首个元素的类型构造切片。
// 空列表和首元素为 nil 的列表返回 []any；可为 nil 的元素类型允许夹杂 nil。
// int64 与 uint64 混合且均非负时统一为 []uint64。
func makeList(start int, items []any) (any, error) {
	if len(items) == 0 {
		return []any{}, nil
	}
	if items[0] == nil {
		return items, nil
	}

	elem := reflect.TypeOf(items[0])
	if isList(elem) {
		return makeNestedList(start, items)
	}
	for _, it := range items[1:] {
		if it == nil {
			if !nilable(elem) {
				return nil, merr.WrapErrListNotHomogeneous(start, elem.String(), "nil")
			}
			continue
		}
		if t := reflect.TypeOf(it); t != elem {
			if isInteger(elem) && isInteger(t) {
				elem = uint64Type
				continue
			}
			return nil, merr.WrapErrListNotHomogeneous(start, elem.String(), t.String())
		}
	}

	if elem == uint64Type {
		out := make([]uint64, len(items))
		for i, it := range items {
			switch x := it.(type) {
			case uint64:
				out[i] = x
			case int64:
				if x < 0 {
					return nil, merr.WrapErrListNotHomogeneous(start, uint64Type.String(), int64Type.String())
				}
				out[i] = uint64(x)
			}
		}
		return out, nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(elem), len(items), len(items))
	for i, it := range items {
		if it != nil {
			out.Index(i).Set(reflect.ValueOf(it))
		}
	}
	return out.Interface(), nil
}

// makeNestedList 构造元素为列表的列表。
// 内层的 []any（空列表或首元素为 nil）并入兄弟列表推断出的类型，
// 无法并入或兄弟列表类型不一致时外层退化为 []any。
func makeNestedList(start int, items []any) (any, error) {
	var elem reflect.Type
	widen := false
	for _, it := range items {
		if it == nil {
			continue
		}
		t := reflect.TypeOf(it)
		if !isList(t) {
			return nil, merr.WrapErrListNotHomogeneous(start, reflect.TypeOf(items[0]).String(), t.String())
		}
		switch {
		case t == anySliceType:
		case elem == nil:
			elem = t
		case t != elem:
			widen = true
		}
	}
	if widen {
		return items, nil
	}
	if elem == nil {
		elem = anySliceType
	}

	out := reflect.MakeSlice(reflect.SliceOf(elem), len(items), len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		v, ok := convertList(reflect.ValueOf(it), elem)
		if !ok {
			return items, nil
		}
		out.Index(i).Set(v)
	}
	return out.Interface(), nil
}

// convertList 把 []any 转为 elem 类型的切片，元素类型不符时返回 false。
func convertList(v reflect.Value, elem reflect.Type) (reflect.Value, bool) {
	if v.Type() == elem {
		return v, true
	}
	out := reflect.MakeSlice(elem, v.Len(), v.Len())
	for i := 0; i < v.Len(); i++ {
		x := v.Index(i).Elem()
		if !x.IsValid() {
			if !nilable(elem.Elem()) {
				return reflect.Value{}, false
			}
			continue
		}
		if x.Type() != elem.Elem() {
			return reflect.Value{}, false
		}
		out.Index(i).Set(x)
	}
	return out, true
}

// isList 判断解码结果是否来自 List，Blob 解码为 []byte，不算在内。
func isList(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t != bytesType
}

func isInteger(t reflect.Type) bool {
	return t == int64Type || t == uint64Type
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return true
	}
	return false
}
