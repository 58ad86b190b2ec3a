package morph

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lk2023060901/morph/pkg/log"
	"github.com/lk2023060901/morph/pkg/metrics"
	"github.com/lk2023060901/morph/pkg/util/conc"
)

// Promise 是异步转换的结果。Down/Up 函数可以返回 *Promise 代替普通值，
// 此时整条转换链都会变为异步，需要通过 DeflateAsync/InflateAsync 获取结果。
type Promise = conc.Future[any]

const (
	asyncPoolExpiry = 30 * time.Second
	tracerName      = "morph"
)

var (
	poolMu sync.Mutex
	pool   *conc.Pool[any]
)

func newAsyncPool(size int) *conc.Pool[any] {
	return conc.NewPool[any](size, conc.WithExpiryDuration(asyncPoolExpiry))
}

func asyncPool() *conc.Pool[any] {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool == nil {
		pool = newAsyncPool(globalConfig.Load().AsyncPoolSize)
	}
	return pool
}

// resizeAsyncPool 使协程池容量与 size 一致，size <= 0 表示不限制。
// 有界与无界之间切换时重建协程池，旧协程池中已在执行的任务照常完成。
func resizeAsyncPool(size int) error {
	poolMu.Lock()
	defer poolMu.Unlock()
	switch {
	case pool == nil:
		return nil
	case size > 0 && pool.Cap() > 0:
		return pool.Resize(size)
	case size <= 0 && pool.Cap() < 0:
		return nil
	}
	old := pool
	pool = newAsyncPool(size)
	old.Release()
	return nil
}

// Async 在协程池中执行 fn，返回对应的 Promise。
// fn 返回的 Promise 在协程池之外展开，因此 fn 应直接返回嵌套的 Promise 而不是在内部等待它。
func Async(fn func() (any, error)) *Promise {
	metrics.PendingPromises.Inc()
	return conc.Go(func() (any, error) {
		defer metrics.PendingPromises.Dec()
		return await(asyncPool().Submit(fn).Await())
	})
}

// Resolved 返回已经以 v 完成的 Promise。
func Resolved(v any) *Promise {
	return conc.Resolved[any](v)
}

// Rejected 返回已经以 err 失败的 Promise。
func Rejected(err error) *Promise {
	return conc.Rejected[any](err)
}

// IsPromise 判断 v 是否为 Promise。
func IsPromise(v any) bool {
	_, ok := v.(*Promise)
	return ok
}

// await 等待 v 中的 Promise 完成，Promise 的结果仍是 Promise 时继续等待。
func await(v any, err error) (any, error) {
	for err == nil {
		p, ok := v.(*Promise)
		if !ok || p == nil {
			break
		}
		v, err = p.Await()
	}
	return v, err
}

// then 在 p 完成后调用 fn。等待发生在独立的协程中，
// 不占用协程池的 worker，嵌套的 Promise 不会互相阻塞。
func then(p *Promise, fn func(v any) (any, error)) *Promise {
	return conc.Go(func() (any, error) {
		v, err := await(p.Await())
		if err != nil {
			return nil, err
		}
		return await(fn(v))
	})
}

// settle 等待 values 中所有的 Promise，结果原位替换。
// 所有 Promise 都完成后返回下标最小的错误及其下标。
func settle(values []any) (int, error) {
	pending := lo.FilterMap(values, func(v any, _ int) (*Promise, bool) {
		p, ok := v.(*Promise)
		return p, ok && p != nil
	})
	// 错误在下面按下标重新取出
	_ = conc.BlockOnAll(pending...)

	first, firstErr := -1, error(nil)
	for i, v := range values {
		resolved, err := await(v, nil)
		if err != nil && firstErr == nil {
			first, firstErr = i, err
		}
		values[i] = resolved
	}
	return first, firstErr
}

// traced 在 operation 的 span 中执行 run，span 在返回的 Promise 完成时结束。
func traced(operation string, opts *Options, run func() *Promise) *Promise {
	ctx := log.WithMetadataSpace(context.Background(), opts.Backend, opts.Projection)
	ctx, span := log.StartSpan(ctx, tracerName, operation)
	p := run()
	if p.Done() {
		endSpan(ctx, span, p)
	} else {
		go endSpan(ctx, span, p)
	}
	return p
}

func endSpan(ctx context.Context, span trace.Span, p *Promise) {
	defer span.End()
	if err := p.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Ctx(ctx).Debug("async conversion rejected", zap.Error(err))
	}
}
