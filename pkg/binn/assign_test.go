package binn

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

type profile struct {
	Name   string   `binn:"name"`
	Level  uint8    `binn:"level"`
	Scores []int32  `binn:"scores"`
	Tags   []string `binn:"tags"`
	Avatar []byte   `binn:"avatar"`
}

func TestDecodeAsPerson(t *testing.T) {
	p := Person{
		Id:          uuid.New(),
		Name:        "Ann",
		DateOfBirth: time.Date(1990, 5, 17, 8, 0, 0, 0, time.UTC),
		Parent: &Person{
			Id:   uuid.New(),
			Name: "Bob",
		},
	}
	data, err := Marshal(&p)
	require.NoError(t, err)

	got, err := DecodeAs[Person](data)
	require.NoError(t, err)
	assert.Equal(t, p.Id, got.Id)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.DateOfBirth.Equal(got.DateOfBirth))
	require.NotNil(t, got.Parent)
	assert.Equal(t, "Bob", got.Parent.Name)
	assert.Equal(t, p.Parent.Id, got.Parent.Id)
	assert.Nil(t, got.Parent.Parent)
}

func TestUnmarshalTagged(t *testing.T) {
	in := profile{
		Name:   "x",
		Level:  7,
		Scores: []int32{-1, 300},
		Tags:   []string{"a"},
		Avatar: []byte{1, 2},
	}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out profile
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalDirect(t *testing.T) {
	data, err := Marshal([]string{"a", "b"})
	require.NoError(t, err)

	var strs []string
	require.NoError(t, Unmarshal(data, &strs))
	assert.Equal(t, []string{"a", "b"}, strs)

	var anything any
	require.NoError(t, Unmarshal(data, &anything))
	assert.Equal(t, []string{"a", "b"}, anything)

	n, err := DecodeAs[int](mustMarshal(t, 42))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	ptr, err := DecodeAs[*point](mustMarshal(t, nil))
	require.NoError(t, err)
	assert.Nil(t, ptr)
}

func TestUnmarshalErrors(t *testing.T) {
	data := mustMarshal(t, "text")

	var s string
	assert.ErrorIs(t, Unmarshal(data, s), merr.ErrParameterInvalid)
	assert.ErrorIs(t, Unmarshal(data, (*string)(nil)), merr.ErrParameterInvalid)

	_, err := DecodeAs[int](data)
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)

	_, err = DecodeAs[string]([]byte{0xA0})
	assert.ErrorIs(t, err, merr.ErrTruncatedInput)
}

func TestUnmarshalOverflow(t *testing.T) {
	u8, err := DecodeAs[uint8](mustMarshal(t, 255))
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u8)
	i8, err := DecodeAs[int8](mustMarshal(t, -128))
	require.NoError(t, err)
	assert.Equal(t, int8(-128), i8)
	f32, err := DecodeAs[float32](mustMarshal(t, 1.5))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	_, err = DecodeAs[uint8](mustMarshal(t, 300))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[int8](mustMarshal(t, 200))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[uint](mustMarshal(t, -1))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[int64](mustMarshal(t, uint64(math.MaxUint64)))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[int32](mustMarshal(t, 1e10))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[float32](mustMarshal(t, 1e300))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)

	type settings struct {
		Level uint8 `binn:"level"`
	}
	_, err = DecodeAs[settings](mustMarshal(t, map[string]any{"level": 70000}))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
	_, err = DecodeAs[[]int8](mustMarshal(t, []int{1, 128}))
	assert.ErrorIs(t, err, merr.ErrUnsupportedType)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := Marshal(v)
	require.NoError(t, err)
	return data
}
