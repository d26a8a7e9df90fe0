// Package binn 实现一种自描述的二进制对象序列化格式。
//
// 每个值以一字节类型标记开头。整数选用能无损表示的最窄宽度，
// 字符串与容器的长度使用 1 或 4 字节的 varint，对象由若干
// “一字节名称长度 + 名称 + 值” 的属性单元组成。
//
// 结构体的可序列化属性是导出且可写的字段，由 PropertyCache 按类型缓存。
package binn

import (
	"sync"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

var (
	ErrUnsupportedType    = merr.ErrUnsupportedType
	ErrNameTooLong        = merr.ErrNameTooLong
	ErrTruncatedInput     = merr.ErrTruncatedInput
	ErrMalformedInput     = merr.ErrMalformedInput
	ErrListNotHomogeneous = merr.ErrListNotHomogeneous
	ErrCyclicReference    = merr.ErrCyclicReference
	ErrDepthExceeded      = merr.ErrDepthExceeded
	ErrSizeOutOfRange     = merr.ErrSizeOutOfRange
)

var (
	defaultCacheOnce sync.Once
	defaultCache     *PropertyCache

	defaultEncoderOnce sync.Once
	defaultEncoder     *Encoder

	defaultDecoder = NewDecoder()
)

// DefaultCache 返回进程级默认属性缓存。
func DefaultCache() *PropertyCache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewPropertyCache()
	})
	return defaultCache
}

func encoder() *Encoder {
	defaultEncoderOnce.Do(func() {
		defaultEncoder = NewEncoder(WithCache(DefaultCache()))
	})
	return defaultEncoder
}

// Marshal 使用默认编码器编码 v。
func Marshal(v any) ([]byte, error) {
	return encoder().Encode(v)
}

// Decode 使用默认解码器解码 data 中的第一个值。
func Decode(data []byte) (any, error) {
	return defaultDecoder.Decode(data)
}

// Unmarshal 使用默认解码器解码 data 并写入 v。
func Unmarshal(data []byte, v any) error {
	return defaultDecoder.Unmarshal(data, v)
}

// RegisterType 在默认缓存中预先解析 T。
func RegisterType[T any]() error {
	return RegisterTypeIn[T](DefaultCache())
}
