package viper

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
// 配置项可以被带前缀的环境变量覆盖，例如 MORPH_MORPH_MAX_DEPTH 覆盖 morph.max-depth。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config，envPrefix 为空时不读取环境变量。
func New(envPrefix ...string) *Config {
	v := spfviper.New()
	if len(envPrefix) > 0 && envPrefix[0] != "" {
		v.SetEnvPrefix(envPrefix[0])
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}
	return &Config{v: v}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)
	if typ := configType(path); typ != "" {
		c.v.SetConfigType(typ)
	}
	return c.v.ReadInConfig()
}

// LoadBytes 按 typ（yaml 或 json）解析内存中的配置。
func (c *Config) LoadBytes(typ string, data []byte) error {
	c.v.SetConfigType(typ)
	return c.v.ReadConfig(bytes.NewReader(data))
}

func configType(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

// SetDefault 设置 key 的缺省值，配置文件与环境变量中都没有该 key 时生效。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

// IsSet 判断配置中是否存在 key。
func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// GetString 返回 key 对应的字符串值。
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst, decodeHook)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// key 不存在时 dst 保持不变。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.v.UnmarshalKey(key, dst, decodeHook)
}

func decodeHook(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	dc.WeaklyTypedInput = true
}
