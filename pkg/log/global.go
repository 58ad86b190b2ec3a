// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogKeyType struct{}

// CtxLogKey 是上下文中保存 *MLogger 的 key。
var CtxLogKey = ctxLogKeyType{}

// Debug 使用全局 Logger 输出 Debug 日志。
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info 使用全局 Logger 输出 Info 日志。
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn 使用全局 Logger 输出 Warn 日志。
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error 使用全局 Logger 输出 Error 日志。
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal 输出日志后调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

// With 基于全局 Logger 创建子 Logger，字段在第一次写日志时才编码。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: L().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})).WithOptions(zap.AddCallerSkip(-1)),
	}
}

// SetLevel 设置全局日志级别。
func SetLevel(l zapcore.Level) {
	_globalP.Load().(*ZapProperties).Level.SetLevel(l)
}

// GetLevel 获取当前全局日志级别。
func GetLevel() zapcore.Level {
	return _globalP.Load().(*ZapProperties).Level.Level()
}

// WithModule 为 ctx 中的 Logger 添加模块名字段。
func WithModule(ctx context.Context, module string) context.Context {
	return WithFields(ctx, FieldModule(module))
}

// WithMetadataSpace 为 ctx 中的 Logger 添加后端与投影字段，对应一次转换所在的元数据空间。
func WithMetadataSpace(ctx context.Context, backend, projection string) context.Context {
	return WithFields(ctx, FieldBackend(backend), FieldProjection(projection))
}

// WithFields 返回一个附加了指定字段的上下文。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	base := ctxL()
	if parent, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
		base = parent.Logger
	}
	return context.WithValue(ctx, CtxLogKey, &MLogger{Logger: base.With(fields...)})
}

// StartSpan 以 component 为 tracer 名开启一个 span，返回的上下文中 Logger 带有 traceID。
func StartSpan(ctx context.Context, component, operation string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := otel.Tracer(component).Start(ctx, operation)
	spanCtx = WithFields(spanCtx,
		FieldComponent(component),
		zap.String("operation", operation),
		zap.String("traceID", span.SpanContext().TraceID().String()))
	return spanCtx, span
}

// Ctx 返回 ctx 中的 Logger，没有时返回全局 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: ctxL()}
}
