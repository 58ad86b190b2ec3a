package log

import "go.uber.org/atomic"

var (
	_ WithLogger   = &Binder{}
	_ LoggerBinder = &Binder{}
)

// WithLogger 由持有本地 Logger 的组件实现。
type WithLogger interface {
	Logger() *MLogger
}

// LoggerBinder 由允许外部注入 Logger 的组件实现。
type LoggerBinder interface {
	SetLogger(logger *MLogger)
}

// Binder 嵌入到组件中，未绑定时使用全局 Logger。
// 元数据管理器通过它接收应用配置中名为 morph 的 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 绑定 Logger，传入 nil 表示恢复使用全局 Logger。
func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// Bound 报告是否绑定了 Logger。
func (b *Binder) Bound() bool {
	return b.logger.Load() != nil
}

// Logger 返回绑定的 Logger，未绑定时返回全局 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
