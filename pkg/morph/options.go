package morph

import (
	"reflect"

	"go.uber.org/atomic"

	"github.com/lk2023060901/morph/pkg/morph/backend"
	"github.com/lk2023060901/morph/pkg/util/merr"
)

const defaultMaxDepth = 256

// Config 为全局默认配置，通常来自配置文件的 morph 段。
type Config struct {
	// Backend 为默认后端。
	Backend string `mapstructure:"backend" json:"backend"`
	// Projection 为默认投影。
	Projection string `mapstructure:"projection" json:"projection"`
	// FallbackToDefaultProjection 表示找不到指定投影的元数据时是否回退到默认投影。
	FallbackToDefaultProjection bool `mapstructure:"fallback-to-default-projection" json:"fallback-to-default-projection"`
	// PrioritizePropSerializers 表示同时存在整体序列化器与属性序列化器时是否优先使用属性序列化器。
	PrioritizePropSerializers bool `mapstructure:"prioritize-prop-serializers" json:"prioritize-prop-serializers"`
	// MaxDepth 为嵌套转换的最大深度，0 表示不限制。
	MaxDepth int `mapstructure:"max-depth" json:"max-depth"`
	// AsyncPoolSize 为 Async 使用的协程池容量，0 表示不限制。
	AsyncPoolSize int `mapstructure:"async-pool-size" json:"async-pool-size"`
}

// DefaultConfig 返回缺省配置。
func DefaultConfig() Config {
	return Config{
		Backend:                     backend.JSON,
		Projection:                  DefaultProjection,
		FallbackToDefaultProjection: true,
		MaxDepth:                    defaultMaxDepth,
	}
}

var globalConfig = atomic.NewPointer(func() *Config {
	cfg := DefaultConfig()
	return &cfg
}())

// Configure 替换全局默认配置，之后的转换调用都会使用新的默认值。
// 配置中的所有错误会一并返回，此时全局配置保持不变。
func Configure(cfg Config) error {
	if cfg.Backend == "" {
		cfg.Backend = backend.JSON
	}
	if cfg.Projection == "" {
		cfg.Projection = DefaultProjection
	}
	var errs []error
	if cfg.MaxDepth < 0 {
		errs = append(errs, merr.WrapErrInvalidArgument("max depth must not be negative, got %d", cfg.MaxDepth))
	}
	if cfg.AsyncPoolSize < 0 {
		errs = append(errs, merr.WrapErrInvalidArgument("async pool size must not be negative, got %d", cfg.AsyncPoolSize))
	}
	if _, err := backend.Get(cfg.Backend); err != nil {
		errs = append(errs, err)
	}
	if err := merr.Combine(errs...); err != nil {
		return err
	}
	globalConfig.Store(&cfg)
	return resizeAsyncPool(cfg.AsyncPoolSize)
}

// CurrentConfig 返回当前的全局默认配置。
func CurrentConfig() Config {
	return *globalConfig.Load()
}

// Options 为一次 deflate/inflate 调用的参数，会原样传给每个自定义的 Down/Up 函数。
type Options struct {
	// Backend 为序列化后端。
	Backend string
	// Projection 为使用的投影。
	Projection string
	// FallbackToDefaultProjection 为 true 时，投影中缺少的元数据从默认投影中补齐。
	FallbackToDefaultProjection bool
	// PrioritizePropSerializers 为 true 时，属性序列化器优先于整体序列化器。
	PrioritizePropSerializers bool
	// PlainObject 为 true 时，反序列化结果为以字段名为 key 的 map 而不是类型实例。
	PlainObject bool
	// As 指定按该类型序列化，而不是值自身的类型。只作用于最外层。
	As reflect.Type
	// MaxDepth 为嵌套转换的最大深度，0 表示不限制。
	MaxDepth int

	depth int
}

// Option 用于配置 Options。
type Option func(*Options)

// NewOptions 基于全局配置创建 Options。
func NewOptions(opts ...Option) *Options {
	cfg := globalConfig.Load()
	o := &Options{
		Backend:                     cfg.Backend,
		Projection:                  cfg.Projection,
		FallbackToDefaultProjection: cfg.FallbackToDefaultProjection,
		PrioritizePropSerializers:   cfg.PrioritizePropSerializers,
		MaxDepth:                    cfg.MaxDepth,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Key 返回 Options 对应的元数据 key。
func (o *Options) Key() MetadataKey {
	return MetadataKey{Backend: o.Backend, Projection: o.Projection}
}

// Depth 返回当前的嵌套深度，最外层为 0。
func (o *Options) Depth() int {
	return o.depth
}

// Clone 返回一份拷贝。
func (o *Options) Clone() *Options {
	clone := *o
	return &clone
}

// descend 返回下一层嵌套使用的 Options，As 不会向下传递。
func (o *Options) descend() (*Options, error) {
	child := o.Clone()
	child.As = nil
	child.depth++
	if child.MaxDepth > 0 && child.depth > child.MaxDepth {
		return nil, merr.WrapErrDepthExceeded(child.MaxDepth)
	}
	return child, nil
}

func (o *Options) backend() (*backend.Backend, error) {
	return backend.Get(o.Backend)
}

// As 按类型 t 序列化输入值，常用于结构与 t 一致的 map。
func As(t reflect.Type) Option {
	return func(o *Options) {
		o.As = t
	}
}

// AsType 是 As 的泛型版本。
func AsType[T any]() Option {
	return As(reflect.TypeFor[T]())
}

func WithProjection(projection string) Option {
	return func(o *Options) {
		o.Projection = projection
	}
}

func WithFallbackToDefaultProjection(v bool) Option {
	return func(o *Options) {
		o.FallbackToDefaultProjection = v
	}
}

func WithPrioritizePropSerializers(v bool) Option {
	return func(o *Options) {
		o.PrioritizePropSerializers = v
	}
}

func WithPlainObject(v bool) Option {
	return func(o *Options) {
		o.PlainObject = v
	}
}

func WithBackend(name string) Option {
	return func(o *Options) {
		o.Backend = name
	}
}

func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		o.MaxDepth = depth
	}
}

// Inherit 沿用 parent 的设置，常用于自定义序列化器内部的嵌套调用。
func Inherit(parent *Options) Option {
	return func(o *Options) {
		if parent == nil {
			return
		}
		*o = *parent
		o.As = nil
	}
}
