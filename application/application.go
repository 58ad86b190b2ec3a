package application

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	mlog "github.com/lk2023060901/morph/pkg/log"
	"github.com/lk2023060901/morph/pkg/metrics"
	"github.com/lk2023060901/morph/pkg/morph"
	mviper "github.com/lk2023060901/morph/pkg/util/viper"
)

const (
	envPrefix         = "MORPH"
	envConfigFilePath = "MORPH_CONFIG_FILE_PATH"
	defaultConfigPath = "./config.yaml"
)

// Application 是使用 morph 的进程的运行时容器，负责加载配置并初始化公共依赖。
type Application struct {
	cfg        *mviper.Config
	loggers    map[string]*mlog.MLogger
	registerer prometheus.Registerer
	undoProcs  func()
}

// Option 用于配置 Application。
type Option func(*Application)

// WithRegisterer 指定注册 morph 指标的 Registerer，缺省为 prometheus.DefaultRegisterer。
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *Application) {
		a.registerer = r
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 解析命令行参数并加载配置文件，配置文件路径的优先级为：
//  1. 缺省：./config.yaml
//  2. 环境变量：MORPH_CONFIG_FILE_PATH
//  3. 命令行：--config <path> 或 --config=<path>
//
// 之后依次初始化日志、GOMAXPROCS、指标，并把 morph 段应用到 morph.Configure。
func (a *Application) Run() error {
	cfg, err := a.loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	a.initMaxProcs()
	metrics.Register(a.registerer)
	return a.configureMorph()
}

// Close 恢复 GOMAXPROCS 并刷新日志。
func (a *Application) Close() {
	if a.undoProcs != nil {
		a.undoProcs()
	}
	mlog.Cleanup()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *mviper.Config {
	return a.cfg
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *mlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &mlog.MLogger{Logger: mlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig(args []string) (*mviper.Config, error) {
	configPath := defaultConfigPath
	if envPath := os.Getenv(envConfigFilePath); envPath != "" {
		configPath = envPath
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, errors.New("missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "--config="); ok && val != "" {
			configPath = val
		}
	}

	cfg := mviper.New(envPrefix)
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on MORPH_LOG_* env vars.
//
//   - MORPH_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - MORPH_LOG_LEVEL: log level (default "info").
//   - MORPH_LOG_STDOUT: whether to log to stdout (default false).
//   - MORPH_LOG_FILE_DIR: log directory.
//   - MORPH_LOG_FILE: log file name (empty means no file).
//   - MORPH_LOG_FORMAT: log format ("console" or "json", default "console").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("MORPH_LOG_ENABLE", false)

	cfg := &mlog.Config{
		Level:               getenvDefault("MORPH_LOG_LEVEL", "info"),
		Format:              getenvDefault("MORPH_LOG_FORMAT", "console"),
		Stdout:              getenvBool("MORPH_LOG_STDOUT", false),
		DisableErrorVerbose: true,
		File: mlog.FileLogConfig{
			RootPath: getenvDefault("MORPH_LOG_FILE_DIR", ""),
			Filename: getenvDefault("MORPH_LOG_FILE", ""),
		},
	}
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := mlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	mlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  morph:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: morph.log
//
// 名为 morph 的 logger 同时用于各元数据空间的注册与转换日志。
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]mlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*mlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := mlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &mlog.MLogger{Logger: logger.With(mlog.FieldModule(name))}
	}
	return nil
}

func (a *Application) initMaxProcs() {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		mlog.Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		mlog.Warn("failed to set GOMAXPROCS", zap.Error(err))
		return
	}
	a.undoProcs = undo
}

// configureMorph 将 morph 段应用为全局默认配置，缺省的字段沿用 morph.DefaultConfig。
func (a *Application) configureMorph() error {
	cfg := morph.DefaultConfig()
	if err := a.cfg.UnmarshalKey("morph", &cfg); err != nil {
		return errors.Wrap(err, "decode morph section")
	}
	if err := morph.Configure(cfg); err != nil {
		return errors.Wrap(err, "apply morph section")
	}
	if lg, ok := a.loggers["morph"]; ok {
		morph.SetLogger(lg)
	}
	mlog.Info("morph configured",
		zap.String("backend", cfg.Backend),
		zap.String("projection", cfg.Projection),
		zap.Bool("fallback", cfg.FallbackToDefaultProjection),
		zap.Int("max-depth", cfg.MaxDepth))
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
