package morph

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

const (
	hintOptional = "make it optional"
	hintNullable = "make it nullable"
	hintTypeInfo = "declare a concrete field type, register a serializer for the interface type, " +
		"or supply Up or Discriminate with WithSerializer"
)

// PropertySerializer 描述属性包中的一个属性：Go 字段名、序列化后的名称、
// optional/nullable 策略，以及可选的用户自定义序列化器。
type PropertySerializer struct {
	// Name 为 Go 字段名。
	Name string
	// Tag 为序列化结果中使用的名称。
	Tag string
	// Optional 为 true 时 Undefined 直接跳过。
	Optional bool
	// Nullable 为 true 时 nil 原样保留。
	Nullable bool
	// Override 为用户提供的序列化器，可以只包含部分字段。
	Override TypeSerializer
	// Owner 为声明该属性的类型。
	Owner reflect.Type
	// FieldType 为字段的声明类型。
	FieldType reflect.Type

	index    []int
	promoted bool

	resolved sync.Map // resolveKey -> *resolvedEntry
	flight   singleflight.Group
}

type resolveKey struct {
	backend    string
	projection string
	fallback   bool
	prioritize bool
}

func (k resolveKey) String() string {
	return fmt.Sprintf("%s/%s/%t/%t", k.backend, k.projection, k.fallback, k.prioritize)
}

func newResolveKey(opts *Options) resolveKey {
	return resolveKey{
		backend:    opts.Backend,
		projection: opts.Projection,
		fallback:   opts.FallbackToDefaultProjection,
		prioritize: opts.PrioritizePropSerializers,
	}
}

type resolvedEntry struct {
	generation uint64
	ts         TypeSerializer
	err        error
}

func newPropertySerializer(owner reflect.Type, field string, ro *registerOptions) (*PropertySerializer, error) {
	owner = typeutil.Indirect(owner)
	if owner == nil || owner.Kind() != reflect.Struct {
		return nil, merr.WrapErrTargetInvalid("%q is not a struct and cannot hold properties", typeName(owner))
	}
	name := typeName(owner)
	sf, ok := owner.FieldByName(field)
	if !ok {
		return nil, merr.WrapErrTargetInvalid("%q has no field %q", name, field)
	}
	if !sf.IsExported() {
		return nil, merr.WrapErrTargetInvalid("field %q of %q is unexported", field, name)
	}
	if bf, ok := baseField(owner); ok && len(sf.Index) == 1 && sf.Index[0] == bf.Index[0] {
		return nil, merr.WrapErrTargetInvalid("field %q of %q is its base type and cannot be a property", field, name)
	}

	p := &PropertySerializer{
		Name:      field,
		Tag:       field,
		Optional:  ro.optional,
		Nullable:  ro.nullable,
		Override:  ro.serializer,
		Owner:     owner,
		FieldType: sf.Type,
		index:     sf.Index,
		promoted:  len(sf.Index) > 1,
	}
	if ro.tag != "" {
		p.Tag = ro.tag
	}
	return p, nil
}

// TypeSerializer 返回该属性在 opts 所描述的元数据空间下使用的序列化器。
// 结果按空间缓存，注册表发生变化后重新解析。
func (p *PropertySerializer) TypeSerializer(opts *Options) (TypeSerializer, error) {
	key := newResolveKey(opts)
	generation := store.generation.Load()
	if v, ok := p.resolved.Load(key); ok {
		if entry := v.(*resolvedEntry); entry.generation == generation {
			return entry.ts, entry.err
		}
	}
	v, _, _ := p.flight.Do(key.String(), func() (any, error) {
		generation := store.generation.Load()
		ts, err := p.compile(opts)
		entry := &resolvedEntry{generation: generation, ts: ts, err: err}
		p.resolved.Store(key, entry)
		return entry, nil
	})
	entry := v.(*resolvedEntry)
	return entry.ts, entry.err
}

func (p *PropertySerializer) compile(opts *Options) (TypeSerializer, error) {
	if p.Override.Complete() {
		return Compile(TypeSerializer{Type: p.FieldType}, p.Override)
	}
	picked, err := PickForProp(p.Owner, p.Name, opts)
	if err == nil {
		return Compile(picked, p.Override)
	}
	if !errors.Is(err, merr.ErrTypeInfoMissing) {
		return TypeSerializer{}, err
	}
	// 接口类型的字段在 down 方向按运行时的值解析，up 方向需要额外的类型信息。
	ts := Combine(dynamicSerializer(p.FieldType, func() error {
		return merr.WrapErrTypeInfoMissing(typeName(p.Owner), p.Name, hintTypeInfo)
	}), picked, p.Override)
	if picked.Up == nil && p.Override.Up == nil && ts.Discriminate != nil {
		ts.Up = discriminatingUp(ts.Discriminate)
	}
	return ts, nil
}

// down 读取属性值并转换，第二个返回值为 false 时该属性不写入结果。
func (p *PropertySerializer) down(source bagSource, opts *Options) (any, bool, error) {
	value, present := source.get(p)
	switch {
	case !present || IsUndefined(value):
		if p.Optional {
			return nil, false, nil
		}
		return nil, false, merr.WrapErrValueUndefined(hintOptional)
	case typeutil.IsNil(value):
		if p.Nullable {
			return nil, true, nil
		}
		if p.Optional {
			return nil, false, nil
		}
		return nil, false, merr.WrapErrValueNull(hintNullable)
	}
	ts, err := p.TypeSerializer(opts)
	if err != nil {
		return nil, false, err
	}
	out, err := ts.Down(value, opts)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// up 从序列化对象中读取并还原属性值，第二个返回值为 false 时不赋值。
func (p *PropertySerializer) up(serialized map[string]any, opts *Options) (any, bool, error) {
	raw, present := serialized[p.Tag]
	switch {
	case !present || IsUndefined(raw):
		if p.Optional {
			return nil, false, nil
		}
		return nil, false, merr.WrapErrValueUndefined(hintOptional)
	case typeutil.IsNil(raw):
		// 存在的 nil 键即为 null，与 optional 无关
		if p.Nullable {
			return nil, true, nil
		}
		return nil, false, merr.WrapErrValueNull(hintNullable)
	}
	ts, err := p.TypeSerializer(opts)
	if err != nil {
		return nil, false, err
	}
	out, err := ts.Up(raw, opts)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// read 在 v 中读取属性对应的字段，嵌入指针为 nil 时返回 false。
func (p *PropertySerializer) read(v reflect.Value) (reflect.Value, bool) {
	owner, ok := locate(v, p.Owner, false)
	if !ok {
		return reflect.Value{}, false
	}
	fv, err := owner.FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}, false
	}
	return fv, true
}

// field 返回 v 中属性对应的可写字段，途经的 nil 嵌入指针会被分配。
func (p *PropertySerializer) field(v reflect.Value) (reflect.Value, error) {
	owner, ok := locate(v, p.Owner, true)
	if !ok {
		return reflect.Value{}, merr.WrapErrTargetInvalid("%s does not contain %q", v.Type(), typeName(p.Owner))
	}
	for i, x := range p.index {
		if i > 0 && owner.Kind() == reflect.Ptr {
			if owner.IsNil() {
				owner.Set(reflect.New(owner.Type().Elem()))
			}
			owner = owner.Elem()
		}
		owner = owner.Field(x)
	}
	return owner, nil
}

func (p *PropertySerializer) assign(target reflect.Value, plain map[string]any, value any) error {
	if plain != nil {
		plain[p.Name] = value
		return nil
	}
	fv, err := p.field(target)
	if err != nil {
		return err
	}
	return assign(fv, value)
}

func wrapProperty(verb string, p *PropertySerializer, err error) error {
	return errors.Wrapf(err, "Unable to %s property %q", verb, p.Name)
}
