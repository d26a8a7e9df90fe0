package binn

import (
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

// Unmarshal 解码 data 并写入 v 指向的值。
// 解码结果可直接赋值时直接赋值，否则按 binn 标签把通用值转换到目标类型。
func (d *Decoder) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return merr.WrapErrParameterInvalidMsg("unmarshal target must be a non-nil pointer, got %T", v)
	}
	src, err := d.Decode(data)
	if err != nil {
		return err
	}
	return assign(src, rv)
}

func assign(src any, target reflect.Value) error {
	elem := target.Elem()
	if src == nil {
		elem.SetZero()
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(elem.Type()) {
		elem.Set(sv)
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    tagName,
		Squash:     true,
		Result:     target.Interface(),
		DecodeHook: mapstructure.DecodeHookFuncType(checkRange),
	})
	if err != nil {
		return merr.WrapErrParameterInvalidMsg("build decoder for %s: %v", elem.Type(), err)
	}
	if err := dec.Decode(src); err != nil {
		return merr.WrapErrUnsupportedType(elem.Type().String(), fmt.Sprintf("convert from %T: %v", src, err))
	}
	return nil
}

// checkRange 在数值收窄前检查范围，mapstructure 自身会静默截断。
func checkRange(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if v := reflect.ValueOf(data); v.IsValid() && !inRange(v, reflect.Zero(to)) {
		return nil, merr.WrapErrUnsupportedType(to.String(), fmt.Sprintf("%v overflows", data))
	}
	return data, nil
}

// inRange 判断数值 v 能否无损放入 target 的类型，非数值一律放行。
func inRange(v, target reflect.Value) bool {
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return !target.OverflowInt(v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return v.Uint() <= math.MaxInt64 && !target.OverflowInt(int64(v.Uint()))
		case reflect.Float32, reflect.Float64:
			f := v.Float()
			return f >= math.MinInt64 && f < math.MaxInt64 && !target.OverflowInt(int64(f))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return v.Int() >= 0 && !target.OverflowUint(uint64(v.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return !target.OverflowUint(v.Uint())
		case reflect.Float32, reflect.Float64:
			f := v.Float()
			return f >= 0 && f < math.MaxUint64 && !target.OverflowUint(uint64(f))
		}
	case reflect.Float32, reflect.Float64:
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			return !target.OverflowFloat(v.Float())
		}
	}
	return true
}

// DecodeAs 使用默认解码器把 data 解码为 T。
func DecodeAs[T any](data []byte) (T, error) {
	var out T
	if err := defaultDecoder.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
