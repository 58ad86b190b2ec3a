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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _globalL, _globalP, _globalR, _globalCleanup atomic.Value

var _namedRateLimiters sync.Map // group name -> *utils.ReconfigurableRateLimiter

// RateLimiter 是 Rated 系列日志方法使用的限流器。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

func init() {
	l, p := newStdLogger()
	_globalL.Store(l)
	_globalP.Store(p)
	configureRateLimiterFromEnv()
}

// InitLogger 按配置创建 Logger，输出到文件和/或标准输出，两者都未开启时日志被丢弃。
// 级别 trace 视为 debug。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
	}
	if cfg.Stdout {
		stdout, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, errors.Wrap(err, "open stdout")
		}
		outputs = append(outputs, stdout)
	}
	if strings.EqualFold(cfg.Level, "trace") {
		cfg.Level = "debug"
	}
	lg, props, err := InitLoggerWithWriteSyncer(cfg, zap.CombineWriteSyncers(outputs...), opts...)
	if err != nil {
		return nil, nil, err
	}
	return lg.WithOptions(zap.AddCallerSkip(1)), props, nil
}

// InitTestLogger 创建输出到 t.Log 的 Logger，zap 内部错误会使测试失败。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	writer := newTestingWriter(t)
	opts = append([]zap.Option{zap.ErrorOutput(writer.WithMarkFailed(true))}, opts...)
	return InitLoggerWithWriteSyncer(cfg, writer, opts...)
}

// InitLoggerWithWriteSyncer 创建写入 output 的 Logger。
// 开启 AsyncWriteEnable 时 output 被包装为带缓冲的 WriteSyncer，Cleanup 时停止。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	cfg.initialize()
	if cfg.AsyncWriteEnable {
		bws := &zapcore.BufferedWriteSyncer{
			WS:            output,
			Size:          cfg.AsyncWriteBufferSize,
			FlushInterval: cfg.AsyncWriteFlushInterval,
		}
		registerCleanup(func() {
			_ = bws.Stop()
		})
		output = bws
	}
	core := zapcore.NewCore(newZapEncoder(cfg), output, level)
	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	logPath := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(logPath); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %q is a directory", logPath)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

func newStdLogger() (*zap.Logger, *ZapProperties) {
	conf := &Config{Level: "info", Stdout: true, DisableErrorVerbose: true}
	lg, r, _ := InitLogger(conf, zap.OnFatal(zapcore.WriteThenPanic))
	return lg, r
}

// L 返回全局 Logger，可通过 ReplaceGlobals 替换，并发安全。
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// R 返回全局限流器，未开启限流时返回不丢弃任何日志的实现。
func R() RateLimiter {
	if rl, ok := _globalR.Load().(RateLimiter); ok && rl != nil {
		return rl
	}
	return nopRateLimiter{}
}

func ctxL() *zap.Logger {
	return L()
}

// Cleanup 停止异步写入并刷新缓冲区。
func Cleanup() {
	if cleanup, ok := _globalCleanup.Load().(func()); ok {
		cleanup()
	}
}

// ReplaceGlobals 替换全局 Logger 及其属性，并发安全。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalP.Store(props)
}

func registerCleanup(cleanup func()) {
	if old, ok := _globalCleanup.Swap(cleanup).(func()); ok {
		old()
	}
}

// Sync 刷新全局 Logger 中缓冲的日志。
func Sync() error {
	return L().Sync()
}

// Level 返回全局 Logger 的动态级别。
func Level() zap.AtomicLevel {
	return _globalP.Load().(*ZapProperties).Level
}

// configureRateLimiterFromEnv 根据 MORPH_LOG_RATE_* 环境变量配置全局限流器：
//
//   - MORPH_LOG_RATE_ENABLE: 是否开启，默认关闭。
//   - MORPH_LOG_RATE_CREDIT_PER_SECOND: 每秒恢复的额度，默认 1。
//   - MORPH_LOG_RATE_MAX_BALANCE: 额度上限，默认 60。
func configureRateLimiterFromEnv() {
	if !getenvBool("MORPH_LOG_RATE_ENABLE", false) {
		_globalR.Store(RateLimiter(nopRateLimiter{}))
		return
	}
	credit := getenvFloat("MORPH_LOG_RATE_CREDIT_PER_SECOND", 1.0)
	maxBalance := getenvFloat("MORPH_LOG_RATE_MAX_BALANCE", 60.0)
	_globalR.Store(RateLimiter(utils.NewRateLimiter(credit, maxBalance)))
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return f
}
