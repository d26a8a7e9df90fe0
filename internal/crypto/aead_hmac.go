package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

// KeySize 为 AES-256 密钥长度。
const KeySize = 32

// ErrInvalidMAC 表示签名校验失败，报文被篡改或密钥不匹配。
var ErrInvalidMAC = errors.New("crypto: invalid mac")

// Sealer 使用 AES-256-GCM 加密，并对 nonce、密文和关联数据追加 HMAC-SHA256 签名。
//
// 报文格式：nonce || ciphertext || mac
type Sealer struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*Sealer)(nil)

// NewSealer 创建 Sealer，encKey 必须为 32 字节，macKey 不能为空。
func NewSealer(encKey, macKey []byte) (*Sealer, error) {
	if len(encKey) != KeySize {
		return nil, merr.WrapErrParameterInvalid(KeySize, len(encKey), "encryption key length")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterMissing("mac key")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: new gcm")
	}
	return &Sealer{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// NewSealerFromHex 从十六进制文本解析密钥，用于配置文件。
func NewSealerFromHex(encKey, macKey string) (*Sealer, error) {
	ek, err := hex.DecodeString(encKey)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("encryption key is not hex: %v", err)
	}
	mk, err := hex.DecodeString(macKey)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("mac key is not hex: %v", err)
	}
	return NewSealer(ek, mk)
}

func (s *Sealer) mac(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, s.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}

func (s *Sealer) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead()+sha256.Size)
	if _, err := rand.Read(packet); err != nil {
		return nil, errors.Wrap(err, "crypto: read nonce")
	}
	nonce := packet[:nonceSize]

	packet = s.aead.Seal(packet, nonce, plaintext, aad)
	return append(packet, s.mac(nonce, packet[nonceSize:], aad)...), nil
}

func (s *Sealer) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(packet) < nonceSize+s.aead.Overhead()+sha256.Size {
		return nil, merr.WrapErrTruncatedInput(0, nonceSize+s.aead.Overhead()+sha256.Size, len(packet))
	}

	macOffset := len(packet) - sha256.Size
	nonce := packet[:nonceSize]
	ciphertext := packet[nonceSize:macOffset]
	if !hmac.Equal(s.mac(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, ErrInvalidMAC
	}

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: open")
	}
	return plaintext, nil
}
