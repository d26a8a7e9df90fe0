package binn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

func TestEncodeSize(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x00, 0x00, 0x80}},
		{300, []byte{0x80, 0x00, 0x01, 0x2C}},
		{MaxSize, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		got, err := EncodeSize(c.n)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "n=%d", c.n)
		assert.Equal(t, len(c.want), SizeLen(c.n))
	}
}

func TestEncodeSizeOutOfRange(t *testing.T) {
	_, err := EncodeSize(-1)
	assert.ErrorIs(t, err, merr.ErrSizeOutOfRange)

	_, err = EncodeSize(MaxSize + 1)
	assert.ErrorIs(t, err, merr.ErrSizeOutOfRange)

	dst := []byte{0xAA}
	out, err := AppendSize(dst, -5)
	assert.Error(t, err)
	assert.Equal(t, dst, out)
}

func TestSizeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 63, 126, 127, 128, 129, 255, 256, 1 << 15, 1 << 24, MaxSize - 1, MaxSize} {
		buf, err := EncodeSize(n)
		require.NoError(t, err)
		if n <= 127 {
			assert.Len(t, buf, 1)
		} else {
			assert.Len(t, buf, 4)
		}

		// 后续字节不影响读取
		got, consumed, err := DecodeSize(append(buf, 0xEE, 0xEE))
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(buf), consumed)
	}
}

func TestDecodeSizeTruncated(t *testing.T) {
	_, _, err := DecodeSize(nil)
	assert.ErrorIs(t, err, merr.ErrTruncatedInput)

	_, _, err = DecodeSize([]byte{0x80, 0x00})
	assert.ErrorIs(t, err, merr.ErrTruncatedInput)
	assert.Contains(t, err.Error(), "[need=4]")
}
