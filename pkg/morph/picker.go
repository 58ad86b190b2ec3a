package morph

import (
	"reflect"
	"sync"

	"github.com/lk2023060901/morph/pkg/morph/backend"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// PickForValue 返回值 v 适用的序列化器，结果可能不完整。
//
// 依次尝试后端的基础类型规则、元数据、内置的集合类型，都不适用时返回只带 Type 的序列化器，
// 由 Compile 报告缺失的函数。v 为 nil 或 Undefined 时返回 ErrInvalidArgument。
func PickForValue(v any, opts *Options) (TypeSerializer, error) {
	if v == nil || IsUndefined(v) || typeutil.IsNil(v) {
		return TypeSerializer{}, merr.WrapErrInvalidArgument("cannot pick a serializer for a nil or undefined value")
	}
	if opts == nil {
		opts = NewOptions()
	}
	b, err := opts.backend()
	if err != nil {
		return TypeSerializer{}, err
	}
	t := reflect.TypeOf(v)
	if p, ok := b.PickForValue(v); ok {
		return primitiveSerializer(p, t), nil
	}
	return pickForType(t, opts)
}

// PickForType 返回类型 t 适用的序列化器，规则与 PickForValue 相同。
func PickForType(t reflect.Type, opts *Options) (TypeSerializer, error) {
	if t == nil {
		return TypeSerializer{}, merr.WrapErrInvalidArgument("cannot pick a serializer for a nil type")
	}
	if opts == nil {
		opts = NewOptions()
	}
	b, err := opts.backend()
	if err != nil {
		return TypeSerializer{}, err
	}
	if p, ok := b.PickForType(t); ok {
		return primitiveSerializer(p, t), nil
	}
	return pickForType(t, opts)
}

func pickForType(t reflect.Type, opts *Options) (TypeSerializer, error) {
	t = typeutil.Indirect(t)
	c, err := GetManager(opts.Key()).resolveContainer(t, opts)
	if err != nil {
		return TypeSerializer{}, err
	}
	if c != nil {
		return c.TypeSerializer(), nil
	}
	if ts, ok := collectionSerializer(t); ok {
		return ts, nil
	}
	return TypeSerializer{Type: t}, nil
}

// PickForProp 按字段的声明类型返回属性适用的序列化器。
// 接口类型的字段没有具体的声明类型，除非该接口类型登记了序列化器，否则返回 ErrTypeInfoMissing。
func PickForProp(owner reflect.Type, field string, opts *Options) (TypeSerializer, error) {
	owner = typeutil.Indirect(owner)
	if owner == nil || owner.Kind() != reflect.Struct {
		return TypeSerializer{}, merr.WrapErrTargetInvalid("%q is not a struct and has no properties", typeName(owner))
	}
	sf, ok := owner.FieldByName(field)
	if !ok {
		return TypeSerializer{}, merr.WrapErrTargetInvalid("%q has no field %q", typeName(owner), field)
	}
	ts, err := PickForType(sf.Type, opts)
	if err != nil {
		return TypeSerializer{}, err
	}
	if sf.Type.Kind() == reflect.Interface && !ts.Complete() {
		return ts, merr.WrapErrTypeInfoMissing(typeName(owner), field, hintTypeInfo)
	}
	return ts, nil
}

func primitiveSerializer(p *backend.Primitive, t reflect.Type) TypeSerializer {
	target := typeutil.Indirect(t)
	return TypeSerializer{
		Type: target,
		Down: func(v any, _ *Options) (any, error) {
			return p.Down(v)
		},
		Up: func(s any, _ *Options) (any, error) {
			return p.Up(s, target)
		},
	}
}

// dynamicSerializer 用于接口类型：down 方向按值的运行时类型解析；
// up 方向对空接口原样返回序列化值，其余接口调用 missing 报错。
func dynamicSerializer(t reflect.Type, missing func() error) TypeSerializer {
	ts := TypeSerializer{
		Type: t,
		Down: func(v any, opts *Options) (any, error) {
			if v == nil || IsUndefined(v) || typeutil.IsNil(v) {
				return v, nil
			}
			picked, err := PickForValue(v, opts)
			if err != nil {
				return nil, err
			}
			if err := requireDown(picked); err != nil {
				return nil, err
			}
			return picked.Down(v, opts)
		},
	}
	if t != nil && t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		ts.Up = func(s any, _ *Options) (any, error) {
			return s, nil
		}
	} else {
		ts.Up = func(any, *Options) (any, error) {
			return nil, missing()
		}
	}
	return ts
}

// discriminatingUp 先由 discriminate 选出具体类型，再按该类型还原。
func discriminatingUp(discriminate DiscriminateFunc) UpFunc {
	return func(s any, opts *Options) (any, error) {
		t, err := discriminate(s)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, merr.WrapErrInvalidArgument("discriminator returned no type for %T", s)
		}
		ts, err := PickForType(t, opts)
		if err != nil {
			return nil, err
		}
		if err := requireUp(ts); err != nil {
			return nil, err
		}
		return ts.Up(s, opts)
	}
}

type elementKey struct {
	t reflect.Type
	resolveKey
}

// elements 缓存集合元素类型的序列化器。
var elements sync.Map // elementKey -> *resolvedEntry

// elementSerializer 返回集合元素类型 t 的完整序列化器。
func elementSerializer(t reflect.Type, opts *Options) (TypeSerializer, error) {
	key := elementKey{t: t, resolveKey: newResolveKey(opts)}
	generation := store.generation.Load()
	if v, ok := elements.Load(key); ok {
		if entry := v.(*resolvedEntry); entry.generation == generation {
			return entry.ts, entry.err
		}
	}

	var (
		ts  TypeSerializer
		err error
	)
	if t.Kind() == reflect.Interface {
		var picked TypeSerializer
		picked, err = PickForType(t, opts)
		ts = picked
		if err == nil && !picked.Complete() {
			ts = Combine(dynamicSerializer(t, func() error {
				return merr.WrapErrTypeInfoMissing(typeName(t), "element", hintTypeInfo)
			}), picked)
			if picked.Up == nil && picked.Discriminate != nil {
				ts.Up = discriminatingUp(picked.Discriminate)
			}
		}
	} else {
		ts, err = PickForType(t, opts)
		if err == nil {
			ts, err = Compile(ts)
		}
	}
	elements.Store(key, &resolvedEntry{generation: generation, ts: ts, err: err})
	return ts, err
}
