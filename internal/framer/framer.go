package framer

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/binn-go/internal/pool/bytebuffer"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

// Frame 是一帧数据：一字节标志位加载荷。
type Frame struct {
	Flags   uint8
	Payload []byte
}

// Framer 抽象了帧的打包/解包能力。
//
// 约定：
//   - 一帧数据的格式为：1 字节标志位 + 4 字节大端无符号整型（载荷长度）+ 载荷。
//   - 标志位的含义由上层决定，Framer 只负责原样传递。
type Framer interface {
	// WriteFrame 将 Frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, f *Frame) error

	// ReadFrame 从 r 中读取一帧数据。
	// 在帧边界处遇到流结束时返回 io.EOF。
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
// 适用于文件与基于流的连接。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大载荷大小，单位字节。
	// 为 0 时使用默认值 DefaultMaxFrameSize。
	MaxFrameSize uint32
}

const (
	DefaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

	headerLen = 5
)

var _ Framer = (*LengthPrefixedFramer)(nil)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将帧头与载荷拼接后一次写出。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return merr.WrapErrParameterMissing("frame")
	}
	if uint64(len(frame.Payload)) > uint64(f.effectiveMaxSize()) {
		return merr.WrapErrFrameTooLarge(uint32(min(uint64(len(frame.Payload)), uint64(^uint32(0)))), f.effectiveMaxSize())
	}
	length := uint32(len(frame.Payload))

	// 使用 ByteBuffer 池拼接帧，避免两次写调用。
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	buf.B = append(buf.B, frame.Flags)
	buf.B = binary.BigEndian.AppendUint32(buf.B, length)
	buf.B = append(buf.B, frame.Payload...)

	if _, err := w.Write(buf.B); err != nil {
		return merr.WrapErrIoFailed("frame", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧数据，返回的载荷归调用方所有。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, merr.WrapErrIoUnexpectEOF("frame header", err)
		}
		return nil, merr.WrapErrIoFailed("frame header", err)
	}

	length := binary.BigEndian.Uint32(header[1:])
	if length > f.effectiveMaxSize() {
		return nil, merr.WrapErrFrameTooLarge(length, f.effectiveMaxSize())
	}

	frame := &Frame{Flags: header[0]}
	if length == 0 {
		return frame, nil
	}
	frame.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		if errors.IsAny(err, io.EOF, io.ErrUnexpectedEOF) {
			return nil, merr.WrapErrIoUnexpectEOF("frame payload", err)
		}
		return nil, merr.WrapErrIoFailed("frame payload", err)
	}
	return frame, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}
