package serializer

// Serializer 抽象了“对象 <-> 字节流”的序列化能力。
//
// 设计目标：
//   - 默认使用 binn 二进制格式，同时提供 JSON 与 CBOR 供对照和转换。
//   - 调用方通过接口注入具体实现，便于后续扩展其它序列化方案。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象。
	//
	// v 通常为指针类型，用于接收解码结果。
	Unmarshal(data []byte, v any) error

	// Name 返回格式名，用于日志与命令行参数。
	Name() string
}

const (
	NameBinn = "binn"
	NameJSON = "json"
	NameCBOR = "cbor"
)
