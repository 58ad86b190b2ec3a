// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"fmt"

	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// Pool 是基于 ants 的协程池，提交的任务以 Future 的形式返回结果。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建容量为 cap 的协程池。
// cap <= 0 表示容量不受限制。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := &poolOption{}
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit 将任务提交到协程池，返回任务对应的 Future。
// 当协程池已关闭或在非阻塞模式下已满时，返回的 Future 直接以错误完成。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		var (
			res T
			err error
		)
		defer func() {
			if x := recover(); x != nil {
				err = merr.WrapErrConversion(fmt.Errorf("panicked: %v", x), "pool task")
			}
			future.complete(res, err)
		}()
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err = method()
	})
	if err != nil {
		var zero T
		future.complete(zero, err)
	}

	return future
}

// Cap 返回协程池容量。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在运行的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲的 worker 数量。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Resize 调整有界协程池的容量，无界协程池需要重新创建。
func (pool *Pool[T]) Resize(size int) error {
	if size <= 0 {
		return merr.WrapErrInvalidArgument("pool size must be positive, got %d", size)
	}
	if pool.Cap() < 0 {
		return merr.WrapErrInvalidArgument("cannot resize an unbounded pool to %d", size)
	}
	pool.inner.Tune(size)
	return nil
}

// Release 释放协程池，之后提交的任务都会失败。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}
