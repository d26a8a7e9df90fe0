package binn

import (
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

type point struct {
	X int
	Y int
}

type EncoderSuite struct {
	suite.Suite
	enc *Encoder
}

func (s *EncoderSuite) SetupTest() {
	s.enc = NewEncoder(WithCache(NewPropertyCache()))
}

func (s *EncoderSuite) encode(v any) []byte {
	out, err := s.enc.Encode(v)
	s.Require().NoError(err)
	return out
}

func (s *EncoderSuite) TestScalars() {
	cases := []struct {
		name string
		in   any
		want []byte
	}{
		{"nil", nil, []byte{0x00}},
		{"true", true, []byte{0x01}},
		{"false", false, []byte{0x02}},
		{"nil pointer", (*point)(nil), []byte{0x00}},
		{"nil map", map[string]int(nil), []byte{0x00}},
		{"nil slice", []string(nil), []byte{0x00}},
		{"float64", 1.0, []byte{0x82, 0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
		{"float32", float32(1.5), []byte{0x82, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F}},
		{"big float", big.NewFloat(1.5), []byte{0x82, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F}},
		{"big rat", big.NewRat(3, 2), []byte{0x82, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F}},
		{"string", "hi", []byte{0xA0, 0x02, 'h', 'i'}},
		{"empty string", "", []byte{0xA0, 0x00}},
		{"blob", []byte{1, 2}, []byte{0xC0, 0x02, 0, 0, 0, 0x01, 0x02}},
		{"empty blob", []byte{}, []byte{0xC0, 0, 0, 0, 0}},
	}
	for _, c := range cases {
		s.Equal(c.want, s.encode(c.in), c.name)
	}
}

func (s *EncoderSuite) TestIntegerWidth() {
	cases := []struct {
		in   any
		want []byte
	}{
		{0, []byte{0x20, 0x00}},
		{128, []byte{0x20, 0x80}},
		{255, []byte{0x20, 0xFF}},
		{256, []byte{0x40, 0x00, 0x01}},
		{65535, []byte{0x40, 0xFF, 0xFF}},
		{65536, []byte{0x60, 0x00, 0x00, 0x01, 0x00}},
		{int64(1) << 32, []byte{0x80, 0, 0, 0, 0, 0x01, 0, 0, 0}},
		{uint64(math.MaxUint64), []byte{0x80, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{-1, []byte{0x21, 0xFF}},
		{-128, []byte{0x21, 0x80}},
		{-129, []byte{0x41, 0x7F, 0xFF}},
		{-32768, []byte{0x41, 0x00, 0x80}},
		{-32769, []byte{0x61, 0xFF, 0x7F, 0xFF, 0xFF}},
		{int64(math.MinInt32) - 1, []byte{0x81, 0xFF, 0xFF, 0xFF, 0x7F, 0xFF, 0xFF, 0xFF, 0xFF}},
		{int8(5), []byte{0x20, 0x05}},
		{uint16(7), []byte{0x20, 0x07}},
	}
	for _, c := range cases {
		s.Equal(c.want, s.encode(c.in), "%v", c.in)
	}

	type level int32
	s.Equal([]byte{0x21, 0xFE}, s.encode(level(-2)))
}

func (s *EncoderSuite) TestUniqueIDAndTimestamp() {
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	s.Equal([]byte{0xC1,
		0x33, 0x22, 0x11, 0x00,
		0x55, 0x44,
		0x77, 0x66,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	}, s.encode(id))

	s.Equal([]byte{0xC2, 0, 0, 0, 0, 0, 0, 0, 0},
		s.encode(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)))
	s.Equal([]byte{0xC2, 0x00, 0x80, 0xB5, 0xF7, 0xF5, 0x7F, 0x9F, 0x08},
		s.encode(time.Unix(0, 0)))
	s.Equal([]byte{0xC2, 0x87, 0xD6, 0xF6, 0xE8, 0x5E, 0xE5, 0xDB, 0x08},
		s.encode(time.Unix(1700000000, 123456789)))

	_, err := s.enc.Encode(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))
	s.ErrorIs(err, merr.ErrUnsupportedType)
}

func (s *EncoderSuite) TestContainers() {
	s.Equal([]byte{0xE0, 0x07, 0x02, 0x20, 0x01, 0x20, 0x02}, s.encode([]int{1, 2}))
	s.Equal([]byte{0xE0, 0x07, 0x02, 0x20, 0x01, 0x20, 0x02}, s.encode([2]int{1, 2}))
	s.Equal([]byte{0xE0, 0x03, 0x00}, s.encode([]int{}))
	s.Equal([]byte{0xE2, 0x07, 0x01, 0x01, 'a', 0x20, 0x01}, s.encode(map[string]int{"a": 1}))
	s.Equal([]byte{0xE2, 0x03, 0x00}, s.encode(map[string]int{}))

	// 键按字典序输出
	s.Equal([]byte{0xE2, 0x0B, 0x02, 0x01, 'a', 0x20, 0x01, 0x01, 'b', 0x20, 0x02},
		s.encode(map[string]any{"b": 2, "a": 1}))

	want := []byte{0xE2, 0x0B, 0x02, 0x01, 'X', 0x20, 0x01, 0x01, 'Y', 0x20, 0x02}
	s.Equal(want, s.encode(point{1, 2}))
	s.Equal(want, s.encode(&point{1, 2}))
}

func (s *EncoderSuite) TestLongSpan() {
	str := strings.Repeat("x", 200)
	out := s.encode([]string{str})
	// 字符串单元 1+4+200 字节，跨度 208
	s.Equal([]byte{0xE0, 0x80, 0x00, 0x00, 0xD0, 0x01, 0xA0, 0x80, 0x00, 0x00, 0xC8}, out[:11])
	s.Len(out, 6+205)
}

func (s *EncoderSuite) TestUnsupported() {
	for _, v := range []any{
		make(chan int),
		func() {},
		complex(1, 2),
		uintptr(1),
		map[int]string{1: "a"},
		[]any{1, make(chan int)},
	} {
		out, err := s.enc.Encode(v)
		s.ErrorIs(err, merr.ErrUnsupportedType, "%T", v)
		s.Nil(out)
	}
}

func (s *EncoderSuite) TestInvalidUTF8() {
	type named string
	for _, v := range []any{
		"\xff",
		named("a\xc0"),
		[]string{"ok", "\xfe"},
		map[string]int{"\xff": 1},
		struct {
			V int `binn:"\x80"`
		}{},
	} {
		out, err := s.enc.Encode(v)
		s.ErrorIs(err, merr.ErrUnsupportedType, "%#v", v)
		s.Nil(out)
	}

	dst := []byte{0xAA}
	out, err := AppendString(dst, "\xff")
	s.ErrorIs(err, merr.ErrUnsupportedType)
	s.Equal([]byte{0xAA}, out)
}

func (s *EncoderSuite) TestAppend() {
	dst := []byte{0xAA}
	out, err := s.enc.Append(dst, 1)
	s.Require().NoError(err)
	s.Equal([]byte{0xAA, 0x20, 0x01}, out)
}

type node struct {
	Name string
	Next *node
}

func (s *EncoderSuite) TestCycle() {
	n := &node{Name: "a"}
	n.Next = n
	_, err := s.enc.Encode(n)
	s.ErrorIs(err, merr.ErrCyclicReference)

	m := map[string]any{}
	m["self"] = m
	_, err = s.enc.Encode(m)
	s.ErrorIs(err, merr.ErrCyclicReference)

	// 非循环的长链不会误报
	head := &node{Name: "0"}
	cur := head
	for i := 0; i < 100; i++ {
		cur.Next = &node{Name: "n"}
		cur = cur.Next
	}
	_, err = s.enc.Encode(head)
	s.NoError(err)
}

func (s *EncoderSuite) TestMaxDepth() {
	enc := NewEncoder(WithCache(NewPropertyCache()), WithMaxDepth(2))
	_, err := enc.Encode([][]int{{1}})
	s.NoError(err)
	_, err = enc.Encode([][][]int{{{1}}})
	s.ErrorIs(err, merr.ErrDepthExceeded)
}

func (s *EncoderSuite) TestNameTooLong() {
	_, err := s.enc.Encode(map[string]int{strings.Repeat("k", 255): 1})
	s.NoError(err)
	_, err = s.enc.Encode(map[string]int{strings.Repeat("k", 256): 1})
	s.ErrorIs(err, merr.ErrNameTooLong)
}

func (s *EncoderSuite) TestCallMetrics() {
	ok, failed := testutil.ToFloat64(encodeSucceeded), testutil.ToFloat64(encodeFailed)
	s.encode([]int{1})
	_, err := s.enc.Encode(make(chan int))
	s.Error(err)
	s.Equal(ok+1, testutil.ToFloat64(encodeSucceeded))
	s.Equal(failed+1, testutil.ToFloat64(encodeFailed))

	dec := NewDecoder()
	ok, failed = testutil.ToFloat64(decodeSucceeded), testutil.ToFloat64(decodeFailed)
	_, err = dec.Decode([]byte{0x20, 0x01})
	s.NoError(err)
	_, err = dec.Decode(nil)
	s.Error(err)
	s.Equal(ok+1, testutil.ToFloat64(decodeSucceeded))
	s.Equal(failed+1, testutil.ToFloat64(decodeFailed))
}

func TestEncoder(t *testing.T) {
	suite.Run(t, new(EncoderSuite))
}
