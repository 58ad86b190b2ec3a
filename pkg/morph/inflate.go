package morph

import (
	"reflect"
	"time"

	"github.com/lk2023060901/morph/pkg/metrics"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// Inflate 将序列化表示 s 还原为类型 t 的值。t 为指针类型时返回指针。
// 开启 PlainObject 时属性包还原为以字段名为 key 的 map。
//
// 转换过程中产生了 Promise 时返回 ErrAsyncMisuse，此时应使用 InflateAsync。
func Inflate(t reflect.Type, s any, opts ...Option) (any, error) {
	o := NewOptions(opts...)
	out, err := inflate(t, s, o)
	if err != nil {
		return nil, err
	}
	if IsPromise(out) {
		return nil, merr.WrapErrAsyncMisuse("InflateAsync")
	}
	return out, nil
}

// InflateAs 是 Inflate 的泛型版本。
func InflateAs[T any](s any, opts ...Option) (T, error) {
	var zero T
	out, err := Inflate(reflect.TypeFor[T](), s, opts...)
	if err != nil || out == nil || IsUndefined(out) {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, merr.WrapErrValueType(typeutil.TypeName(reflect.TypeFor[T]()), out)
	}
	return v, nil
}

// InflateAsync 与 Inflate 相同，但总是返回 Promise，转换中的 Promise 会被展开。
func InflateAsync(t reflect.Type, s any, opts ...Option) *Promise {
	o := NewOptions(opts...)
	return traced("InflateAsync", o, func() *Promise {
		out, err := inflate(t, s, o)
		if err != nil {
			return Rejected(err)
		}
		if p, ok := out.(*Promise); ok {
			return then(p, func(v any) (any, error) { return finish(t, v, o) })
		}
		return Resolved(out)
	})
}

func inflate(t reflect.Type, s any, opts *Options) (out any, err error) {
	if t == nil {
		return nil, merr.WrapErrInvalidArgument("cannot inflate into a nil type")
	}
	target := typeutil.Indirect(t)
	if !typeutil.IsInstantiable(target) && target.Kind() != reflect.Interface {
		return nil, merr.WrapErrConstructorMissing(t)
	}
	if s == nil || IsUndefined(s) {
		return s, nil
	}
	start := time.Now()
	defer func() { observe(metrics.DirectionUp, t, opts, start, out, err) }()

	ts, err := elementSerializer(target, opts)
	if err != nil {
		return nil, err
	}
	if err = requireUp(ts); err != nil {
		return nil, err
	}
	out, err = ts.Up(s, opts)
	if err != nil || IsPromise(out) {
		return out, err
	}
	return finish(t, out, opts)
}

// finish 将 Up 的结果转为调用方请求的类型。
func finish(t reflect.Type, v any, opts *Options) (any, error) {
	if opts.PlainObject {
		if _, ok := v.(map[string]any); ok {
			return v, nil
		}
		if _, ok := v.([]any); ok {
			return v, nil
		}
	}
	return conform(v, t)
}
