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
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/morph/pkg/log"
)

type poolOption struct {
	preAlloc       bool
	nonBlocking    bool
	expiryDuration time.Duration
	// preHandler 在每个任务执行前调用。
	preHandler func()
}

// Submit 已经把任务中的 panic 转为 Future 的错误，ants 的处理器只记录调度自身的 panic。
func (opt *poolOption) antsOptions() []ants.Option {
	result := []ants.Option{
		ants.WithPreAlloc(opt.preAlloc),
		ants.WithNonblocking(opt.nonBlocking),
		ants.WithPanicHandler(func(v any) {
			log.Error("conc pool panicked", log.FieldComponent("conc"), zap.Any("panic", v))
		}),
	}
	if opt.expiryDuration > 0 {
		result = append(result, ants.WithExpiryDuration(opt.expiryDuration))
	}
	return result
}

// PoolOption 配置协程池。
type PoolOption func(opt *poolOption)

// WithPreAlloc 预先分配 worker 队列，只对有界协程池有意义。
func WithPreAlloc(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.preAlloc = v
	}
}

// WithNonBlocking 为 true 时协程池满后 Submit 立即失败而不是等待。
func WithNonBlocking(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.nonBlocking = v
	}
}

// WithExpiryDuration 设置空闲 worker 的回收间隔。
func WithExpiryDuration(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		opt.expiryDuration = d
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}
