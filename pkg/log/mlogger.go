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
	"sync/atomic"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MLogger 在 zap.Logger 之上增加了按组限流的日志输出。
// 转换失败这类可能在热路径上大量出现的日志应使用 RatedDebug。
type MLogger struct {
	*zap.Logger
	rl atomic.Pointer[utils.ReconfigurableRateLimiter]
}

// With 返回携带额外字段的子 Logger，限流组不会被继承。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})),
	}
}

// WithRateGroup 把 Logger 绑定到名为 groupName 的限流组。
// 同名的组共享同一个限流器，后一次调用会更新它的参数。
func (l *MLogger) WithRateGroup(groupName string, creditPerSecond, maxBalance float64) *MLogger {
	fresh := utils.NewRateLimiter(creditPerSecond, maxBalance)
	actual, loaded := _namedRateLimiters.LoadOrStore(groupName, fresh)
	rl := actual.(*utils.ReconfigurableRateLimiter)
	if loaded {
		rl.Update(creditPerSecond, maxBalance)
	}
	l.rl.Store(rl)
	return l
}

func (l *MLogger) limiter() RateLimiter {
	if rl := l.rl.Load(); rl != nil {
		return rl
	}
	return R()
}

// RatedDebug 通过限流时输出 Debug 日志并返回 true。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	if !l.limiter().CheckCredit(cost) {
		return false
	}
	if ce := l.WithOptions(zap.AddCallerSkip(1)).Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(fields...)
	}
	return true
}
