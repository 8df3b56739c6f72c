package logger

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalLogger *zap.SugaredLogger

// Config 日志配置
type Config struct {
	Level     string
	File      string
	MaxSizeMB int
	MaxFiles  int
	Console   bool      // 同时输出到控制台，TUI 模式下应关闭
	Writer    io.Writer // 控制台输出目标，nil 为 stderr
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Init 初始化全局日志
//
// 文件输出为 JSON 并按大小切割；没有任何输出时写到控制台。
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.WarnLevel
	}

	var cores []zapcore.Core
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
			return err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxFiles,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}
	if cfg.Console || len(cores) == 0 {
		var w io.Writer = os.Stderr
		if cfg.Writer != nil {
			w = cfg.Writer
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	globalLogger = logger.Sugar()
	return nil
}

// Debug 调试日志
func Debug(msg string, keysAndValues ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debugw(msg, keysAndValues...)
	}
}

// Info 信息日志
func Info(msg string, keysAndValues ...interface{}) {
	if globalLogger != nil {
		globalLogger.Infow(msg, keysAndValues...)
	}
}

// Warn 警告日志
func Warn(msg string, keysAndValues ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warnw(msg, keysAndValues...)
	}
}

// Error 错误日志
func Error(msg string, keysAndValues ...interface{}) {
	if globalLogger != nil {
		globalLogger.Errorw(msg, keysAndValues...)
	}
}

// Named 返回带组件名的子日志，未初始化时返回空日志
//
// 子日志由组件直接调用，不经过本包的包装函数。
func Named(name string) *zap.SugaredLogger {
	if globalLogger == nil {
		return zap.NewNop().Sugar().Named(name)
	}
	return globalLogger.Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(name)
}

// Sync 刷新日志缓冲
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
