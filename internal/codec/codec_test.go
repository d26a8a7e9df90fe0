package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/binn-go/internal/compressor"
	"github.com/lk2023060901/binn-go/internal/crypto"
	"github.com/lk2023060901/binn-go/internal/framer"
	"github.com/lk2023060901/binn-go/internal/serializer"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

type event struct {
	Kind    string `binn:"kind"`
	Payload string `binn:"payload"`
	Seq     uint32 `binn:"seq"`
}

type CodecSuite struct {
	suite.Suite
	zstd *compressor.ZstdCompressor
}

func (s *CodecSuite) SetupSuite() {
	z, err := compressor.NewZstdCompressor()
	s.Require().NoError(err)
	s.zstd = z
}

func (s *CodecSuite) TearDownSuite() {
	s.zstd.Close()
}

func (s *CodecSuite) newCodec(compress bool) Codec {
	c, err := New(Options{
		Framer:            framer.NewLengthPrefixedFramer(0),
		Serializer:        serializer.NewBinnSerializer(nil, nil),
		Compressor:        s.zstd,
		EnableCompression: compress,
	})
	s.Require().NoError(err)
	return c
}

func (s *CodecSuite) TestRoundTrip() {
	for _, compress := range []bool{false, true} {
		c := s.newCodec(compress)
		var buf bytes.Buffer
		small := event{Kind: "a", Payload: "x", Seq: 1}
		large := event{Kind: "b", Payload: strings.Repeat("payload", 200), Seq: 2}
		s.Require().NoError(c.Encode(&buf, small))
		s.Require().NoError(c.Encode(&buf, &large))

		var got event
		s.Require().NoError(c.Decode(&buf, &got))
		s.Equal(small, got)

		flags, raw, err := c.DecodeRaw(&buf)
		s.Require().NoError(err)
		s.Equal(compress, flags&FlagCompressed != 0)
		s.NoError(serializer.NewBinnSerializer(nil, nil).Unmarshal(raw, &got))
		s.Equal(large, got)

		s.Equal(io.EOF, c.Decode(&buf, &got))
	}
}

func (s *CodecSuite) TestSmallPayloadNotCompressed() {
	c := s.newCodec(true)
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, "tiny"))
	flags, raw, err := c.DecodeRaw(&buf)
	s.Require().NoError(err)
	s.Zero(flags)
	s.Equal([]byte{0xA0, 0x04, 't', 'i', 'n', 'y'}, raw)
}

func (s *CodecSuite) TestCompressedButDisabled() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(true).Encode(&buf, strings.Repeat("z", 1024)))

	err := s.newCodec(false).Decode(&buf, nil)
	s.ErrorIs(err, merr.ErrOperationNotSupported)
}

func (s *CodecSuite) newSealedCodec(macKey string) Codec {
	sealer, err := crypto.NewSealer(bytes.Repeat([]byte{9}, crypto.KeySize), []byte(macKey))
	s.Require().NoError(err)
	c, err := New(Options{
		Framer:            framer.NewLengthPrefixedFramer(0),
		Serializer:        serializer.NewBinnSerializer(nil, nil),
		Compressor:        s.zstd,
		Encryptor:         sealer,
		EnableCompression: true,
		EnableEncryption:  true,
	})
	s.Require().NoError(err)
	return c
}

func (s *CodecSuite) TestEncrypted() {
	c := s.newSealedCodec("k1")
	large := event{Kind: "b", Payload: strings.Repeat("payload", 200), Seq: 2}
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, large))
	s.Require().NoError(c.Encode(&buf, event{Kind: "a"}))
	wire := append([]byte(nil), buf.Bytes()...)

	var got event
	s.Require().NoError(c.Decode(&buf, &got))
	s.Equal(large, got)
	flags, _, err := c.DecodeRaw(&buf)
	s.Require().NoError(err)
	s.Equal(FlagEncrypted, flags)

	// 标志位参与签名，篡改后校验失败
	tampered := append([]byte(nil), wire...)
	tampered[0] &^= FlagCompressed
	s.ErrorIs(c.Decode(bytes.NewReader(tampered), &got), crypto.ErrInvalidMAC)

	s.ErrorIs(s.newSealedCodec("k2").Decode(bytes.NewReader(wire), &got), crypto.ErrInvalidMAC)
	s.ErrorIs(s.newCodec(true).Decode(bytes.NewReader(wire), &got), merr.ErrOperationNotSupported)

	_, err = New(Options{
		Framer:           framer.NewLengthPrefixedFramer(0),
		Serializer:       serializer.JSONSerializer{},
		EnableEncryption: true,
	})
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *CodecSuite) TestErrors() {
	_, err := New(Options{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = New(Options{Framer: framer.NewLengthPrefixedFramer(0)})
	s.ErrorIs(err, merr.ErrParameterMissing)

	c := s.newCodec(false)
	s.ErrorIs(c.Encode(nil, 1), merr.ErrParameterMissing)
	s.ErrorIs(c.Encode(io.Discard, make(chan int)), merr.ErrUnsupportedType)
	s.ErrorIs(c.Decode(nil, nil), merr.ErrParameterMissing)

	var buf bytes.Buffer
	s.Require().NoError(framer.NewLengthPrefixedFramer(0).WriteFrame(&buf, &framer.Frame{Payload: []byte{0x03}}))
	var v any
	s.ErrorIs(c.Decode(&buf, &v), merr.ErrUnsupportedType)
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}
