// Package json 封装 bytedance/sonic，对外提供与 encoding/json 相同形态的函数。
package json

import (
	"github.com/bytedance/sonic"
)

var (
	// api 与 encoding/json 行为保持一致。
	api = sonic.ConfigStd

	// int64API 将 JSON 整数解码为 int64 而不是 float64，用于转换到二进制格式时保留整数宽度。
	int64API = sonic.Config{
		EscapeHTML:       true,
		SortMapKeys:      true,
		CompactMarshaler: true,
		CopyString:       true,
		ValidateString:   true,
		UseInt64:         true,
	}.Froze()

	Marshal       = api.Marshal
	MarshalIndent = api.MarshalIndent
	Unmarshal     = api.Unmarshal
	Valid         = api.Valid
	NewEncoder    = api.NewEncoder
	NewDecoder    = api.NewDecoder
)

// UnmarshalInt64 解码 data 到 v，接口类型中的整数保留为 int64。
func UnmarshalInt64(data []byte, v any) error {
	return int64API.Unmarshal(data, v)
}
