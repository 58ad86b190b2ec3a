package morph

import (
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/morph/pkg/log"
	"github.com/lk2023060901/morph/pkg/metrics"
	"github.com/lk2023060901/morph/pkg/util/merr"
)

// Deflate 将 v 转换为序列化表示：对象为 map[string]any，数组为 []any，
// 基础类型由后端决定。nil 与 Undefined 原样返回。
//
// 转换过程中产生了 Promise 时返回 ErrAsyncMisuse，此时应使用 DeflateAsync。
func Deflate(v any, opts ...Option) (any, error) {
	out, err := deflate(v, NewOptions(opts...))
	if err != nil {
		return nil, err
	}
	if IsPromise(out) {
		return nil, merr.WrapErrAsyncMisuse("DeflateAsync")
	}
	return out, nil
}

// DeflateAsync 与 Deflate 相同，但总是返回 Promise，转换中的 Promise 会被展开。
func DeflateAsync(v any, opts ...Option) *Promise {
	o := NewOptions(opts...)
	return traced("DeflateAsync", o, func() *Promise {
		out, err := deflate(v, o)
		if err != nil {
			return Rejected(err)
		}
		if p, ok := out.(*Promise); ok {
			return then(p, func(v any) (any, error) { return v, nil })
		}
		return Resolved(out)
	})
}

func deflate(v any, opts *Options) (out any, err error) {
	if v == nil || IsUndefined(v) {
		return v, nil
	}
	t := opts.As
	if t == nil {
		t = reflect.TypeOf(v)
	}
	start := time.Now()
	defer func() { observe(metrics.DirectionDown, t, opts, start, out, err) }()

	var ts TypeSerializer
	if opts.As != nil {
		ts, err = PickForType(t, opts)
	} else {
		ts, err = PickForValue(v, opts)
	}
	if err != nil {
		return nil, err
	}
	if err = requireDown(ts); err != nil {
		return nil, err
	}
	return ts.Down(v, opts)
}

// 嵌套转换失败时每一层都会记录，按组限流。
const (
	failureRateGroup = "morph.conversion.failure"
	failureLogCredit = 1.0
	failureLogBurst  = 30.0
)

func observe(direction string, t reflect.Type, opts *Options, start time.Time, out any, err error) {
	status := metrics.StatusSuccess
	switch {
	case err != nil:
		status = metrics.StatusFail
		GetManager(opts.Key()).logger().
			WithRateGroup(failureRateGroup, failureLogCredit, failureLogBurst).
			RatedDebug(1, "conversion failed", zap.String("direction", direction), log.FieldType(t), zap.Error(err))
	case IsPromise(out):
		status = metrics.StatusAsync
	}
	metrics.ConversionTotal.WithLabelValues(opts.Backend, opts.Projection, direction, status).Inc()
	metrics.ConversionLatency.WithLabelValues(opts.Backend, direction).Observe(float64(time.Since(start).Microseconds()))
}
