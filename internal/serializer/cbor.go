package serializer

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBORSerializer 使用确定性编码（键排序、最短整数）的 CBOR 编解码。
type CBORSerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Serializer = (*CBORSerializer)(nil)

func NewCBORSerializer() (*CBORSerializer, error) {
	encOptions := cbor.CoreDetEncOptions()
	// uuid.UUID 等实现了 TextMarshaler 的类型编码为文本
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORSerializer{enc: enc, dec: dec}, nil
}

func (s *CBORSerializer) Marshal(v any) ([]byte, error) {
	return s.enc.Marshal(v)
}

func (s *CBORSerializer) Unmarshal(data []byte, v any) error {
	return s.dec.Unmarshal(data, v)
}

func (s *CBORSerializer) Name() string {
	return NameCBOR
}

// Diagnose 返回 CBOR 诊断记法。
func (s *CBORSerializer) Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
