package binn

import (
	"encoding/binary"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

const (
	// MaxSize 是 varint 可表示的最大长度。
	MaxSize = 1<<31 - 1

	shortSizeLimit = 0x7F
	longSizeFlag   = 0x80000000
	longSizeMask   = 0x7FFFFFFF
	longSizeLen    = 4
)

// SizeLen 返回 n 编码后占用的字节数。
func SizeLen(n int) int {
	if n <= shortSizeLimit {
		return 1
	}
	return longSizeLen
}

// AppendSize 将 n 以 varint 形式追加到 dst。
// n ≤ 127 时写一个字节，否则写 4 字节大端值并置最高位。
func AppendSize(dst []byte, n int) ([]byte, error) {
	if n < 0 || n > MaxSize {
		return dst, merr.WrapErrSizeOutOfRange(int64(n), MaxSize)
	}
	if n <= shortSizeLimit {
		return append(dst, byte(n)), nil
	}
	return binary.BigEndian.AppendUint32(dst, uint32(n)|longSizeFlag), nil
}

// EncodeSize 返回 n 的 varint 编码。
func EncodeSize(n int) ([]byte, error) {
	return AppendSize(make([]byte, 0, SizeLen(n)), n)
}

// DecodeSize 从 src 头部读取一个 varint，返回数值和消耗的字节数。
func DecodeSize(src []byte) (n int, consumed int, err error) {
	if len(src) == 0 {
		return 0, 0, merr.WrapErrTruncatedInput(0, 1, 0)
	}
	if src[0]&0x80 == 0 {
		return int(src[0]), 1, nil
	}
	if len(src) < longSizeLen {
		return 0, 0, merr.WrapErrTruncatedInput(0, longSizeLen, len(src))
	}
	v := binary.BigEndian.Uint32(src) & longSizeMask
	return int(v), longSizeLen, nil
}
