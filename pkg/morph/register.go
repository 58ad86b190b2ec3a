package morph

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/morph/pkg/log"
	"github.com/lk2023060901/morph/pkg/morph/backend"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

type registerOptions struct {
	backend    string
	projection string
	tag        string
	optional   bool
	nullable   bool
	serializer TypeSerializer
}

// RegisterOption 用于配置一次注册。
type RegisterOption func(*registerOptions)

func newRegisterOptions(opts []RegisterOption) *registerOptions {
	ro := &registerOptions{
		backend:    globalConfig.Load().Backend,
		projection: DefaultProjection,
	}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

func (ro *registerOptions) key() MetadataKey {
	return MetadataKey{Backend: ro.backend, Projection: ro.projection}
}

// InBackend 指定注册到哪个后端，缺省为全局配置的后端。
func InBackend(name string) RegisterOption {
	return func(ro *registerOptions) {
		ro.backend = name
	}
}

// InProjection 指定注册到哪个投影，缺省为默认投影。
func InProjection(projection string) RegisterOption {
	return func(ro *registerOptions) {
		ro.projection = projection
	}
}

// Tag 指定属性在序列化结果中的名称。
func Tag(name string) RegisterOption {
	return func(ro *registerOptions) {
		ro.tag = name
	}
}

func Optional() RegisterOption {
	return func(ro *registerOptions) {
		ro.optional = true
	}
}

func Nullable() RegisterOption {
	return func(ro *registerOptions) {
		ro.nullable = true
	}
}

// WithSerializer 为属性指定自定义的序列化器，可以只提供 Down、Up 或 Discriminate 中的一部分。
func WithSerializer(ts TypeSerializer) RegisterOption {
	return func(ro *registerOptions) {
		ro.serializer = ts
	}
}

// RegisterType 将 T 注册为自定义类型，整体由 ts 转换。
func RegisterType[T any](ts TypeSerializer, opts ...RegisterOption) error {
	return RegisterTypeProvider[T](func() TypeSerializer { return ts }, opts...)
}

// RegisterTypeProvider 与 RegisterType 相同，序列化器在首次使用时才构造。
func RegisterTypeProvider[T any](provider TypeSerializerProvider, opts ...RegisterOption) error {
	return registerType(reflect.TypeFor[T](), provider, newRegisterOptions(opts))
}

func registerType(t reflect.Type, provider TypeSerializerProvider, ro *registerOptions) error {
	if _, err := backend.Get(ro.backend); err != nil {
		return err
	}
	m := GetManager(ro.key())
	c, err := m.GetOrCreateCustomTypeMetaFor(t)
	if err != nil {
		return err
	}
	if err := c.SetTypeSerializer(provider); err != nil {
		return err
	}
	m.logger().Debug("custom type registered", log.FieldType(c.Type))
	return nil
}

// RegisterProperty 将 T 的字段 field 注册为属性，T 因此成为属性包。
func RegisterProperty[T any](field string, opts ...RegisterOption) error {
	return registerProperty(reflect.TypeFor[T](), field, newRegisterOptions(opts))
}

func registerProperty(t reflect.Type, field string, ro *registerOptions) error {
	if _, err := backend.Get(ro.backend); err != nil {
		return err
	}
	p, err := newPropertySerializer(t, field, ro)
	if err != nil {
		return err
	}
	m := GetManager(ro.key())
	c, err := m.GetOrCreatePropertyBagMetaFor(p.Owner)
	if err != nil {
		return err
	}
	if err := c.AddProperty(p); err != nil {
		return err
	}
	m.logger().Debug("property registered",
		log.FieldType(c.Type), log.FieldProperty(p.Name), zap.String("tag", p.Tag),
		zap.Bool("optional", p.Optional), zap.Bool("nullable", p.Nullable))
	return nil
}

// RegisterStruct 按字段上的 morph 标签注册 T 的属性。
//
// `morph:"..."` 注册到默认投影，`morph.<name>:"..."` 注册到名为 name 的投影。
// 没有任何标签的结构体注册为默认投影中的空属性包。
// 只扫描 T 自身声明的字段，基类的属性需要在基类上注册。
func RegisterStruct[T any](opts ...RegisterOption) error {
	return registerStruct(reflect.TypeFor[T](), newRegisterOptions(opts))
}

func registerStruct(t reflect.Type, ro *registerOptions) error {
	t = typeutil.Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return merr.WrapErrTargetInvalid("%q is not a struct and cannot hold properties", typeName(t))
	}
	name := typeName(t)
	base, hasBase := baseField(t)

	type pending struct {
		field string
		ro    *registerOptions
	}
	var todo []pending
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if hasBase && f.Index[0] == base.Index[0] {
			continue
		}
		for _, mt := range morphTags(f.Tag) {
			parsed, err := parseTag(name, f.Name, mt.value)
			if err != nil {
				return err
			}
			if parsed.skip {
				continue
			}
			if !f.IsExported() {
				return merr.WrapErrTargetInvalid("field %q of %q is unexported and cannot carry a morph tag", f.Name, name)
			}
			fro := *ro
			fro.projection = mt.projection
			for _, opt := range parsed.options() {
				opt(&fro)
			}
			todo = append(todo, pending{field: f.Name, ro: &fro})
		}
	}

	if len(todo) == 0 {
		if _, err := backend.Get(ro.backend); err != nil {
			return err
		}
		_, err := GetManager(ro.key().WithProjection(DefaultProjection)).GetOrCreatePropertyBagMetaFor(t)
		return err
	}
	for _, p := range todo {
		if err := registerProperty(t, p.field, p.ro); err != nil {
			return err
		}
	}
	return nil
}

func MustRegisterType[T any](ts TypeSerializer, opts ...RegisterOption) {
	if err := RegisterType[T](ts, opts...); err != nil {
		panic(err)
	}
}

func MustRegisterProperty[T any](field string, opts ...RegisterOption) {
	if err := RegisterProperty[T](field, opts...); err != nil {
		panic(err)
	}
}

func MustRegisterStruct[T any](opts ...RegisterOption) {
	if err := RegisterStruct[T](opts...); err != nil {
		panic(err)
	}
}
