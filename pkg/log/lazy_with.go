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

package log

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// lazyCore 推迟字段编码，直到第一次真正写日志或派生子 core。
// 注册与转换路径上会频繁创建带类型、属性字段的 Logger，大多数不会输出任何内容。
type lazyCore struct {
	core   atomic.Pointer[zapcore.Core]
	once   sync.Once
	fields []zapcore.Field
}

var _ zapcore.Core = (*lazyCore)(nil)

// NewLazyWith 返回一个在首次使用时才执行 core.With(fields) 的 core。
func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	lc := &lazyCore{fields: fields}
	lc.core.Store(&core)
	return lc
}

func (lc *lazyCore) current() zapcore.Core {
	return *lc.core.Load()
}

func (lc *lazyCore) materialize() zapcore.Core {
	lc.once.Do(func() {
		bound := lc.current().With(lc.fields)
		lc.core.Store(&bound)
		lc.fields = nil
	})
	return lc.current()
}

// Enabled 只读取级别，不触发字段编码。
func (lc *lazyCore) Enabled(level zapcore.Level) bool {
	return lc.current().Enabled(level)
}

func (lc *lazyCore) With(fields []zapcore.Field) zapcore.Core {
	return lc.materialize().With(fields)
}

func (lc *lazyCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return lc.materialize().Check(e, ce)
}

func (lc *lazyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return lc.materialize().Write(entry, fields)
}

func (lc *lazyCore) Sync() error {
	return lc.materialize().Sync()
}
