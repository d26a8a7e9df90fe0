package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 未调用 LoadFile 时，Unmarshal 只会得到 SetDefault 设置的默认值。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

func (c *Config) viper() *spfviper.Viper {
	if c.v == nil {
		c.v = spfviper.New()
	}
	return c.v
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	v := c.viper()
	v.SetConfigFile(path)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return v.ReadInConfig()
}

// SetDefault 为 key 设置默认值，优先级低于配置文件。
func (c *Config) SetDefault(key string, value any) {
	c.viper().SetDefault(key, value)
}

// SetDefaults 批量设置默认值。
func (c *Config) SetDefaults(defaults map[string]any) {
	for k, val := range defaults {
		c.SetDefault(k, val)
	}
}

// IsSet 判断 key 是否存在于配置文件或默认值中。
func (c *Config) IsSet(key string) bool {
	return c.viper().IsSet(key)
}

// Set 以最高优先级覆盖 key 的值，通常用于环境变量或命令行覆盖。
func (c *Config) Set(key string, value any) {
	c.viper().Set(key, value)
}

// ConfigFileUsed 返回最近一次加载的配置文件路径。
func (c *Config) ConfigFileUsed() string {
	return c.viper().ConfigFileUsed()
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.viper().Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.viper().UnmarshalKey(key, dst)
}
