package morph

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/morph/pkg/util/conc"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// collectionSerializer 返回切片、数组以及 key 为字符串的 map 的内置序列化器。
// 切片与数组序列化为 []any，map 序列化为 map[string]any。
func collectionSerializer(t reflect.Type) (TypeSerializer, bool) {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return TypeSerializer{
			Type: t,
			Down: func(v any, opts *Options) (any, error) { return downSequence(t, v, opts) },
			Up:   func(s any, opts *Options) (any, error) { return upSequence(t, s, opts) },
		}, true
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return TypeSerializer{}, false
		}
		return TypeSerializer{
			Type: t,
			Down: func(v any, opts *Options) (any, error) { return downMap(t, v, opts) },
			Up:   func(s any, opts *Options) (any, error) { return upMap(t, s, opts) },
		}, true
	}
	return TypeSerializer{}, false
}

func downElement(et reflect.Type, ev reflect.Value, opts *Options) (any, error) {
	if typeutil.IsNilable(ev.Type()) && ev.IsNil() {
		return nil, nil
	}
	ts, err := elementSerializer(et, opts)
	if err != nil {
		return nil, err
	}
	return ts.Down(ev.Interface(), opts)
}

func upElement(et reflect.Type, raw any, opts *Options) (any, error) {
	if raw == nil || IsUndefined(raw) {
		return nil, nil
	}
	ts, err := elementSerializer(et, opts)
	if err != nil {
		return nil, err
	}
	return ts.Up(raw, opts)
}

func downSequence(t reflect.Type, v any, opts *Options) (any, error) {
	if v == nil || IsUndefined(v) {
		return v, nil
	}
	if typeutil.IsNil(v) {
		return nil, nil
	}
	rv := typeutil.IndirectValue(reflect.ValueOf(v))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, merr.WrapErrValueType("array", v)
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}
	out := make([]any, rv.Len())
	async := false
	for i := range out {
		value, err := downElement(t.Elem(), rv.Index(i), child)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to serialize element %d", i)
		}
		out[i] = value
		async = async || IsPromise(value)
	}
	if !async {
		return out, nil
	}
	return conc.Go(func() (any, error) {
		if i, err := settle(out); err != nil {
			return nil, errors.Wrapf(err, "Unable to serialize element %d", i)
		}
		return out, nil
	}), nil
}

func upSequence(t reflect.Type, s any, opts *Options) (any, error) {
	if s == nil || IsUndefined(s) {
		return s, nil
	}
	rs := typeutil.IndirectValue(reflect.ValueOf(s))
	if rs.Kind() != reflect.Slice && rs.Kind() != reflect.Array {
		return nil, merr.WrapErrValueType("array", s)
	}
	n := rs.Len()
	if t.Kind() == reflect.Array && n > t.Len() {
		return nil, merr.WrapErrValueTypeMsg("Expected at most %d elements, got %d", t.Len(), n)
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}

	values := make([]any, n)
	async := false
	for i := range values {
		value, err := upElement(t.Elem(), rs.Index(i).Interface(), child)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to deserialize element %d", i)
		}
		values[i] = value
		async = async || IsPromise(value)
	}

	build := func() (any, error) {
		if opts.PlainObject {
			return values, nil
		}
		var target reflect.Value
		if t.Kind() == reflect.Slice {
			target = reflect.MakeSlice(t, n, n)
		} else {
			target = reflect.New(t).Elem()
		}
		for i, value := range values {
			if err := assign(target.Index(i), value); err != nil {
				return nil, errors.Wrapf(err, "Unable to deserialize element %d", i)
			}
		}
		return target.Interface(), nil
	}
	if !async {
		return build()
	}
	return conc.Go(func() (any, error) {
		if i, err := settle(values); err != nil {
			return nil, errors.Wrapf(err, "Unable to deserialize element %d", i)
		}
		return build()
	}), nil
}

func downMap(t reflect.Type, v any, opts *Options) (any, error) {
	if v == nil || IsUndefined(v) {
		return v, nil
	}
	if typeutil.IsNil(v) {
		return nil, nil
	}
	rv := typeutil.IndirectValue(reflect.ValueOf(v))
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, merr.WrapErrValueType("map with string keys", v)
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, rv.Len())
	values := make([]any, 0, rv.Len())
	async := false
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		value, err := downElement(t.Elem(), iter.Value(), child)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to serialize key %q", key)
		}
		keys = append(keys, key)
		values = append(values, value)
		async = async || IsPromise(value)
	}
	build := func() map[string]any {
		out := make(map[string]any, len(keys))
		for i, key := range keys {
			out[key] = values[i]
		}
		return out
	}
	if !async {
		return build(), nil
	}
	return conc.Go(func() (any, error) {
		if i, err := settle(values); err != nil {
			return nil, errors.Wrapf(err, "Unable to serialize key %q", keys[i])
		}
		return build(), nil
	}), nil
}

func upMap(t reflect.Type, s any, opts *Options) (any, error) {
	if s == nil || IsUndefined(s) {
		return s, nil
	}
	fields, ok := asObject(s)
	if !ok {
		return nil, merr.WrapErrValueType("object", s)
	}
	child, err := opts.descend()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields))
	async := false
	for key, raw := range fields {
		value, err := upElement(t.Elem(), raw, child)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to deserialize key %q", key)
		}
		keys = append(keys, key)
		values = append(values, value)
		async = async || IsPromise(value)
	}

	build := func() (any, error) {
		if opts.PlainObject {
			out := make(map[string]any, len(keys))
			for i, key := range keys {
				out[key] = values[i]
			}
			return out, nil
		}
		target := reflect.MakeMapWithSize(t, len(keys))
		for i, key := range keys {
			elem := reflect.New(t.Elem()).Elem()
			if err := assign(elem, values[i]); err != nil {
				return nil, errors.Wrapf(err, "Unable to deserialize key %q", key)
			}
			target.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), elem)
		}
		return target.Interface(), nil
	}
	if !async {
		return build()
	}
	return conc.Go(func() (any, error) {
		if i, err := settle(values); err != nil {
			return nil, errors.Wrapf(err, "Unable to deserialize key %q", keys[i])
		}
		return build()
	}), nil
}
