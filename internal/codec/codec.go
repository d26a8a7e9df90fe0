package codec

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/binn-go/internal/compressor"
	"github.com/lk2023060901/binn-go/internal/crypto"
	"github.com/lk2023060901/binn-go/internal/framer"
	"github.com/lk2023060901/binn-go/internal/serializer"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

// Codec 抽象了“从业务对象到帧，以及从帧回到业务对象”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//
//	msg --> serializer --> [compress?] --> [encrypt?] --> Frame{Flags+Payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Frame{Flags+Payload} --> [decrypt?] --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将业务对象编码并写入到底层流。
	Encode(w io.Writer, msg any) error

	// Decode 从底层流中读取一帧，并解码到 msg 中。
	//
	//   - msg 为接收解码结果的目标对象（通常为指针）；若为 nil，则只读取并丢弃一帧。
	Decode(r io.Reader, msg any) error

	// DecodeRaw 从底层流中读取一帧，返回标志位和已完成解压的业务字节。
	//
	// 说明：
	//   - 不负责反序列化为具体对象，仅返回“明文字节”供上层自行处理；
	//   - 对应 Encode 的逆过程：framer.ReadFrame -> [decrypt?] -> [decompress?]。
	DecodeRaw(r io.Reader) (uint8, []byte, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer
	Serializer serializer.Serializer
	Compressor compressor.Compressor // 允许为 nil（内部会用 NopCompressor）
	Encryptor  crypto.Encryptor      // 允许为 nil（内部会用 NopEncryptor）

	EnableCompression bool // 是否启用压缩（影响压缩行为与标志位）
	EnableEncryption  bool // 是否启用加密（影响加密行为与标志位）
}

const (
	// FlagCompressed 标记载荷经过压缩。
	FlagCompressed uint8 = 1 << 0
	// FlagEncrypted 标记载荷经过加密，标志位字节作为关联数据参与签名。
	FlagEncrypted uint8 = 1 << 1
)

type codec struct {
	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor

	compress bool
	encrypt  bool
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Framer == nil {
		return nil, merr.WrapErrParameterMissing("framer")
	}
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterMissing("serializer")
	}

	c := &codec{
		framer:     opts.Framer,
		serializer: opts.Serializer,
		compress:   opts.EnableCompression,
		encrypt:    opts.EnableEncryption,
	}

	if opts.Compressor != nil {
		c.compressor = opts.Compressor
	} else {
		c.compressor = compressor.NopCompressor{}
	}
	if opts.Encryptor != nil {
		c.encryptor = opts.Encryptor
	} else {
		c.encryptor = crypto.NopEncryptor{}
	}
	if c.encrypt {
		if _, ok := c.encryptor.(crypto.NopEncryptor); ok {
			return nil, merr.WrapErrParameterMissing("encryptor", "encryption enabled without an encryptor")
		}
	}

	return c, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, msg any) error {
	if w == nil {
		return merr.WrapErrParameterMissing("writer")
	}

	// 第一步：业务对象序列化。
	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "codec: marshal %s", c.serializer.Name())
	}

	frame := &framer.Frame{}

	// 第二步：可选压缩，低于阈值的载荷保持原样且不置位。
	if c.compress && compressor.ShouldCompress(c.compressor, len(body)) {
		compressed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return errors.Wrap(err, "codec: compress")
		}
		body = compressed
		frame.Flags |= FlagCompressed
	}

	// 第三步：可选加密。
	if c.encrypt {
		frame.Flags |= FlagEncrypted
		sealed, err := c.encryptor.Encrypt(body, []byte{frame.Flags})
		if err != nil {
			return errors.Wrap(err, "codec: encrypt")
		}
		body = sealed
	}

	frame.Payload = body
	if err := c.framer.WriteFrame(w, frame); err != nil {
		return errors.Wrap(err, "codec: write frame")
	}
	return nil
}

// decodeFrame 完成从底层流到“标志位 + 业务明文字节”的解码流程。
func (c *codec) decodeFrame(r io.Reader) (uint8, []byte, error) {
	if r == nil {
		return 0, nil, merr.WrapErrParameterMissing("reader")
	}

	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, errors.Wrap(err, "codec: read frame")
	}

	data := frame.Payload
	if frame.Flags&FlagEncrypted != 0 {
		if !c.encrypt {
			return 0, nil, merr.WrapErrOperationNotSupported("decrypt", "encrypted payload but encryption disabled")
		}
		plain, err := c.encryptor.Decrypt(data, []byte{frame.Flags})
		if err != nil {
			return 0, nil, errors.Wrap(err, "codec: decrypt")
		}
		data = plain
	}
	if frame.Flags&FlagCompressed != 0 {
		if !c.compress {
			return 0, nil, merr.WrapErrOperationNotSupported("decompress", "compressed payload but compression disabled")
		}
		if len(data) == 0 {
			return 0, nil, merr.WrapErrParameterInvalidMsg("codec: compressed payload is empty")
		}

		plain, err := c.compressor.Decompress(nil, data)
		if err != nil {
			return 0, nil, errors.Wrap(err, "codec: decompress")
		}
		data = plain
	}

	return frame.Flags, data, nil
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) (uint8, []byte, error) {
	return c.decodeFrame(r)
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, msg any) error {
	_, data, err := c.decodeFrame(r)
	if err != nil {
		return err
	}

	// 第四步：反序列化到业务对象。
	if msg != nil && len(data) > 0 {
		if err := c.serializer.Unmarshal(data, msg); err != nil {
			return errors.Wrapf(err, "codec: unmarshal %s", c.serializer.Name())
		}
	}
	return nil
}
