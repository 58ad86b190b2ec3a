package morph

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/morph/pkg/util/conc"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// bagSource 是属性包 down 方向的数据来源：类型实例，或以字段名为 key 的 map。
type bagSource struct {
	value  reflect.Value
	fields map[string]any
}

func (s bagSource) get(p *PropertySerializer) (any, bool) {
	if s.fields != nil {
		v, ok := s.fields[p.Name]
		return v, ok
	}
	fv, ok := p.read(s.value)
	if !ok {
		return nil, false
	}
	if fv.Kind() == reflect.Interface && fv.IsNil() {
		return nil, true
	}
	return fv.Interface(), true
}

func newBagSource(t reflect.Type, v any) (bagSource, error) {
	if fields, ok := asObject(v); ok {
		return bagSource{fields: fields}, nil
	}
	rv := typeutil.IndirectValue(reflect.ValueOf(v))
	if rv.Kind() == reflect.Struct && (rv.Type() == t || inherits(rv.Type(), t)) {
		return bagSource{value: rv}, nil
	}
	return bagSource{}, merr.WrapErrValueType(typeName(t), v)
}

// asObject 将 key 为字符串的 map 转为 map[string]any。
func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := typeutil.IndirectValue(reflect.ValueOf(v))
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func (m *Manager) propertyBag(c *Container) TypeSerializer {
	return TypeSerializer{
		Type: c.Type,
		Down: func(v any, opts *Options) (any, error) {
			out, err := m.downBag(c, v, opts)
			if err != nil {
				return nil, wrapBag("serialize", c, opts, err)
			}
			return out, nil
		},
		Up: func(s any, opts *Options) (any, error) {
			out, err := m.upBag(c, s, opts)
			if err != nil {
				return nil, wrapBag("deserialize", c, opts, err)
			}
			return out, nil
		},
	}
}

func wrapBag(verb string, c *Container, opts *Options, err error) error {
	return errors.Wrapf(err, "Unable to %s an instance of %q in projection %q", verb, c.Name, opts.Projection)
}

func (m *Manager) downBag(c *Container, v any, opts *Options) (any, error) {
	if v == nil || IsUndefined(v) {
		return v, nil
	}
	if typeutil.IsNil(v) {
		return nil, nil
	}
	props, err := m.aggregate(c.Type, opts.FallbackToDefaultProjection)
	if err != nil {
		return nil, err
	}
	source, err := newBagSource(c.Type, v)
	if err != nil {
		return nil, err
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(props))
	written := make([]bool, len(props))
	async := false
	for i, p := range props {
		out, ok, err := p.down(source, child)
		if err != nil {
			return nil, wrapProperty("serialize", p, err)
		}
		values[i], written[i] = out, ok
		async = async || IsPromise(out)
	}

	build := func() map[string]any {
		out := make(map[string]any, len(props))
		for i, p := range props {
			if written[i] {
				out[p.Tag] = values[i]
			}
		}
		return out
	}
	if !async {
		return build(), nil
	}
	return conc.Go(func() (any, error) {
		if i, err := settle(values); err != nil {
			return nil, wrapBag("serialize", c, opts, wrapProperty("serialize", props[i], err))
		}
		return build(), nil
	}), nil
}

func (m *Manager) upBag(c *Container, s any, opts *Options) (any, error) {
	if s == nil || IsUndefined(s) {
		return s, nil
	}
	fields, ok := asObject(s)
	if !ok {
		return nil, merr.WrapErrValueType("object", s)
	}
	props, err := m.aggregate(c.Type, opts.FallbackToDefaultProjection)
	if err != nil {
		return nil, err
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}

	var (
		target reflect.Value
		plain  map[string]any
	)
	if opts.PlainObject {
		plain = make(map[string]any, len(props))
	} else {
		target = reflect.New(c.Type).Elem()
	}

	type pendingProp struct {
		p     *PropertySerializer
		value any
	}
	var pending []pendingProp
	for _, p := range props {
		value, ok, err := p.up(fields, child)
		if err != nil {
			return nil, wrapProperty("deserialize", p, err)
		}
		if !ok {
			continue
		}
		if IsPromise(value) {
			pending = append(pending, pendingProp{p: p, value: value})
			continue
		}
		if err := p.assign(target, plain, value); err != nil {
			return nil, wrapProperty("deserialize", p, err)
		}
	}

	result := func() any {
		if plain != nil {
			return plain
		}
		return target.Interface()
	}
	if len(pending) == 0 {
		return result(), nil
	}
	return conc.Go(func() (any, error) {
		values := make([]any, len(pending))
		for i := range pending {
			values[i] = pending[i].value
		}
		if i, err := settle(values); err != nil {
			return nil, wrapBag("deserialize", c, opts, wrapProperty("deserialize", pending[i].p, err))
		}
		for i, pp := range pending {
			if err := pp.p.assign(target, plain, values[i]); err != nil {
				return nil, wrapBag("deserialize", c, opts, wrapProperty("deserialize", pp.p, err))
			}
		}
		return result(), nil
	}), nil
}
