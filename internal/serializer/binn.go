package serializer

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/binn-go/pkg/binn"
	"github.com/lk2023060901/binn-go/pkg/log"
)

// BinnSerializer 基于 pkg/binn 的二进制编解码。
// 解码失败按限流分组记录告警，避免异常输入刷屏。
type BinnSerializer struct {
	enc    *binn.Encoder
	dec    *binn.Decoder
	logger *log.MLogger
}

var _ Serializer = (*BinnSerializer)(nil)

// NewBinnSerializer 创建 BinnSerializer，enc/dec 为 nil 时使用默认实例。
func NewBinnSerializer(enc *binn.Encoder, dec *binn.Decoder) *BinnSerializer {
	if enc == nil {
		enc = binn.NewEncoder()
	}
	if dec == nil {
		dec = binn.NewDecoder()
	}
	return &BinnSerializer{
		enc: enc,
		dec: dec,
		logger: log.With(log.FieldComponent("serializer"), zap.String("format", NameBinn)).
			WithRateGroup("serializer.binn.decode", 1, 30),
	}
}

func (s *BinnSerializer) Marshal(v any) ([]byte, error) {
	return s.enc.Encode(v)
}

func (s *BinnSerializer) Unmarshal(data []byte, v any) error {
	err := s.dec.Unmarshal(data, v)
	if err != nil {
		s.logger.RatedWarn(1, "decode binn payload failed", zap.Int("size", len(data)), zap.Error(err))
	}
	return err
}

func (s *BinnSerializer) Name() string {
	return NameBinn
}
