package serializer

import (
	"github.com/lk2023060901/binn-go/internal/json"
)

// JSONSerializer 使用 internal/json（基于 bytedance/sonic）实现 JSON 编解码。
// 解码到接口类型时整数保留为 int64。
type JSONSerializer struct{}

// 编译期断言：确保 JSONSerializer 实现了 Serializer 接口。
var _ Serializer = (*JSONSerializer)(nil)

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.UnmarshalInt64(data, v)
}

func (JSONSerializer) Name() string {
	return NameJSON
}
