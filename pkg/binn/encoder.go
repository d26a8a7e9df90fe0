package binn

import (
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lk2023060901/binn-go/internal/pool/bytebuffer"
	"github.com/lk2023060901/binn-go/pkg/metrics"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
	"github.com/lk2023060901/binn-go/pkg/util/typeutil"
)

var (
	encodeSucceeded = metrics.CodecCalls.WithLabelValues(metrics.EncodeLabel, metrics.SuccessLabel)
	encodeFailed    = metrics.CodecCalls.WithLabelValues(metrics.EncodeLabel, metrics.FailLabel)
	encodePayload   = metrics.CodecPayloadBytes.WithLabelValues(metrics.EncodeLabel)
)

// cycleCheckAfter 为开始记录访问路径的嵌套深度，较浅的结构不付出额外开销。
const cycleCheckAfter = 32

var (
	uuidType     = reflect.TypeFor[uuid.UUID]()
	timeType     = reflect.TypeFor[time.Time]()
	bigFloatType = reflect.TypeFor[big.Float]()
	bigRatType   = reflect.TypeFor[big.Rat]()
)

type encoderOption struct {
	cache      *PropertyCache
	maxDepth   int
	cycleCheck bool
}

// EncoderOption 用于配置 Encoder。
type EncoderOption func(*encoderOption)

// WithCache 指定属性缓存，默认使用 DefaultCache。
func WithCache(c *PropertyCache) EncoderOption {
	return func(o *encoderOption) {
		o.cache = c
	}
}

// WithMaxDepth 限制容器嵌套深度，n <= 0 表示不限制。
func WithMaxDepth(n int) EncoderOption {
	return func(o *encoderOption) {
		o.maxDepth = n
	}
}

// WithCycleCheck 开关循环引用检测，默认开启。
func WithCycleCheck(enable bool) EncoderOption {
	return func(o *encoderOption) {
		o.cycleCheck = enable
	}
}

// Encoder 将 Go 值编码为二进制流。除属性缓存外不保存调用间状态，可并发使用。
type Encoder struct {
	cache      *PropertyCache
	maxDepth   int
	cycleCheck bool
}

func NewEncoder(opts ...EncoderOption) *Encoder {
	opt := &encoderOption{cycleCheck: true}
	for _, o := range opts {
		o(opt)
	}
	if opt.cache == nil {
		opt.cache = DefaultCache()
	}
	return &Encoder{
		cache:      opt.cache,
		maxDepth:   opt.maxDepth,
		cycleCheck: opt.cycleCheck,
	}
}

// Cache 返回编码器使用的属性缓存。
func (e *Encoder) Cache() *PropertyCache {
	return e.cache
}

// Encode 编码 v，出错时返回 nil。
func (e *Encoder) Encode(v any) ([]byte, error) {
	return e.Append(nil, v)
}

// Append 将 v 的编码追加到 dst，出错时返回 nil。
func (e *Encoder) Append(dst []byte, v any) ([]byte, error) {
	st := &encodeState{Encoder: e}
	out, err := st.appendAny(dst, v)
	if err != nil {
		encodeFailed.Inc()
		metrics.CodecFailures.WithLabelValues(metrics.EncodeLabel, strconv.Itoa(int(merr.Code(err)))).Inc()
		return nil, err
	}
	encodeSucceeded.Inc()
	encodePayload.Observe(float64(len(out) - len(dst)))
	return out, nil
}

type visitKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

// encodeState 保存单次编码的递归状态。
type encodeState struct {
	*Encoder
	depth    int
	ptrLevel int
	visited  typeutil.Set[visitKey]
}

// appendAny 对常见类型走类型分支，其余交给反射。
func (st *encodeState) appendAny(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return AppendNull(dst), nil
	case bool:
		return AppendBool(dst, x), nil
	case string:
		return AppendString(dst, x)
	case int:
		return AppendInt(dst, x), nil
	case int8:
		return AppendInt(dst, x), nil
	case int16:
		return AppendInt(dst, x), nil
	case int32:
		return AppendInt(dst, x), nil
	case int64:
		return AppendInt(dst, x), nil
	case uint:
		return AppendUint(dst, x), nil
	case uint8:
		return AppendUint(dst, x), nil
	case uint16:
		return AppendUint(dst, x), nil
	case uint32:
		return AppendUint(dst, x), nil
	case uint64:
		return AppendUint(dst, x), nil
	case float32:
		return AppendFloat64(dst, float64(x)), nil
	case float64:
		return AppendFloat64(dst, x), nil
	case []byte:
		if x == nil {
			return AppendNull(dst), nil
		}
		return AppendBlob(dst, x)
	case uuid.UUID:
		return AppendUniqueID(dst, x), nil
	case time.Time:
		return AppendTimestamp(dst, x)
	case *big.Float:
		if x == nil {
			return AppendNull(dst), nil
		}
		f, _ := x.Float64()
		return AppendFloat64(dst, f), nil
	case *big.Rat:
		if x == nil {
			return AppendNull(dst), nil
		}
		f, _ := x.Float64()
		return AppendFloat64(dst, f), nil
	}
	return st.appendValue(dst, reflect.ValueOf(v))
}

func (st *encodeState) appendValue(dst []byte, rv reflect.Value) ([]byte, error) {
	if !rv.IsValid() {
		return AppendNull(dst), nil
	}

	switch rv.Type() {
	case uuidType:
		var id uuid.UUID
		reflect.Copy(reflect.ValueOf(id[:]), rv)
		return AppendUniqueID(dst, id), nil
	case timeType:
		if !rv.CanInterface() {
			return dst, merr.WrapErrUnsupportedType(rv.Type().String(), "unexported value")
		}
		return AppendTimestamp(dst, rv.Interface().(time.Time))
	case bigFloatType:
		x := addressable(rv).Addr().Interface().(*big.Float)
		f, _ := x.Float64()
		return AppendFloat64(dst, f), nil
	case bigRatType:
		x := addressable(rv).Addr().Interface().(*big.Rat)
		f, _ := x.Float64()
		return AppendFloat64(dst, f), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return AppendBool(dst, rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return AppendInt(dst, rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return AppendUint(dst, rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return AppendFloat64(dst, rv.Float()), nil
	case reflect.String:
		return AppendString(dst, rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return AppendNull(dst), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return AppendBlob(dst, rv.Bytes())
		}
		return st.guard(dst, rv, visitKey{ptr: rv.Pointer(), len: rv.Len(), typ: rv.Type()}, st.appendList)
	case reflect.Array:
		return st.nest(dst, rv, st.appendList)
	case reflect.Map:
		if rv.IsNil() {
			return AppendNull(dst), nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return dst, merr.WrapErrUnsupportedType(rv.Type().String(), "map key must be string")
		}
		return st.guard(dst, rv, visitKey{ptr: rv.Pointer(), typ: rv.Type()}, st.appendMap)
	case reflect.Struct:
		return st.nest(dst, rv, st.appendStruct)
	case reflect.Pointer:
		if rv.IsNil() {
			return AppendNull(dst), nil
		}
		st.ptrLevel++
		defer func() { st.ptrLevel-- }()
		return st.guard(dst, rv, visitKey{ptr: rv.Pointer(), typ: rv.Type()}, func(dst []byte, rv reflect.Value) ([]byte, error) {
			return st.appendValue(dst, rv.Elem())
		})
	case reflect.Interface:
		if rv.IsNil() {
			return AppendNull(dst), nil
		}
		return st.appendValue(dst, rv.Elem())
	}
	return dst, merr.WrapErrUnsupportedType(rv.Type().String())
}

// guard 在嵌套较深时记录当前路径上的引用，重复出现即为循环。
func (st *encodeState) guard(dst []byte, rv reflect.Value, key visitKey, fn func([]byte, reflect.Value) ([]byte, error)) ([]byte, error) {
	if !st.cycleCheck || st.depth+st.ptrLevel <= cycleCheckAfter {
		return fn(dst, rv)
	}
	if st.visited == nil {
		st.visited = typeutil.NewSet[visitKey]()
	}
	if st.visited.Contain(key) {
		return dst, merr.WrapErrCyclicReference(rv.Type().String(), st.depth)
	}
	st.visited.Insert(key)
	defer st.visited.Remove(key)
	return fn(dst, rv)
}

// nest 为容器编码维护嵌套深度。
func (st *encodeState) nest(dst []byte, rv reflect.Value, fn func([]byte, reflect.Value) ([]byte, error)) ([]byte, error) {
	st.depth++
	defer func() { st.depth-- }()
	if st.maxDepth > 0 && st.depth > st.maxDepth {
		return dst, merr.WrapErrDepthExceeded(st.depth, st.maxDepth)
	}
	return fn(dst, rv)
}

// appendList 先把全部元素编码到临时缓冲区，再写入容器头与载荷。
func (st *encodeState) appendList(dst []byte, rv reflect.Value) ([]byte, error) {
	if rv.Kind() == reflect.Slice {
		return st.nest(dst, rv, st.appendItems)
	}
	return st.appendItems(dst, rv)
}

func (st *encodeState) appendItems(dst []byte, rv reflect.Value) ([]byte, error) {
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	var err error
	n := rv.Len()
	for i := 0; i < n; i++ {
		if buf.B, err = st.appendValue(buf.B, rv.Index(i)); err != nil {
			return dst, err
		}
	}
	out, err := appendContainerHeader(dst, TagList, buf.Len(), n)
	if err != nil {
		return dst, err
	}
	return append(out, buf.B...), nil
}

// appendMap 将字符串键映射按键排序后编码为对象。
func (st *encodeState) appendMap(dst []byte, rv reflect.Value) ([]byte, error) {
	return st.nest(dst, rv, func(dst []byte, rv reflect.Value) ([]byte, error) {
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			switch x, y := a.String(), b.String(); {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		})

		buf := bytebuffer.Get()
		defer bytebuffer.Put(buf)

		var err error
		for _, k := range keys {
			if buf.B, err = appendName(buf.B, k.String()); err != nil {
				return dst, err
			}
			if buf.B, err = st.appendValue(buf.B, rv.MapIndex(k)); err != nil {
				return dst, err
			}
		}
		out, err := appendContainerHeader(dst, TagObject, buf.Len(), len(keys))
		if err != nil {
			return dst, err
		}
		return append(out, buf.B...), nil
	})
}

// appendStruct 按属性缓存中的可序列化属性编码对象，只读属性被跳过。
func (st *encodeState) appendStruct(dst []byte, rv reflect.Value) ([]byte, error) {
	ti, err := st.cache.Resolve(rv.Type())
	if err != nil {
		return dst, err
	}
	if ti.err != nil {
		return dst, ti.err
	}
	rv = addressable(rv)

	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	props := ti.Serializable()
	for _, p := range props {
		if buf.B, err = appendName(buf.B, p.Name); err != nil {
			return dst, err
		}
		if buf.B, err = st.appendValue(buf.B, p.Get(rv)); err != nil {
			return dst, err
		}
	}
	out, err := appendContainerHeader(dst, TagObject, buf.Len(), len(props))
	if err != nil {
		return dst, err
	}
	return append(out, buf.B...), nil
}

// addressable 返回可取地址的 rv，必要时拷贝一份。
func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp
}
