package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options 日志初始化选项
type Options struct {
	Level     string // debug/info/warn/error
	Output    string // console/file/both
	Format    string // text/json
	FilePath  string // Output为file或both时的日志文件路径
	Colorize  bool   // 控制台输出是否着色
	AddSource bool   // 是否记录调用位置
}

var (
	defaultLogger *slog.Logger
	levelVar      slog.LevelVar
	mu            sync.Mutex
)

// Init 根据选项初始化全局日志器
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	levelVar.Set(level)

	var writers []io.Writer

	switch opts.Output {
	case "", "console":
		writers = append(writers, os.Stdout)
	case "file":
		w, err := openLogFile(opts.FilePath)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	case "both":
		w, err := openLogFile(opts.FilePath)
		if err != nil {
			return err
		}
		writers = append(writers, os.Stdout, w)
	default:
		return fmt.Errorf("unknown log output: %s", opts.Output)
	}

	out := io.MultiWriter(writers...)

	handlerOpts := &slog.HandlerOptions{
		Level:     &levelVar,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	defaultLogger = slog.New(handler)
	return nil
}

// SetLevel 动态调整日志级别
func SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	levelVar.Set(l)
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

func openLogFile(path string) (io.Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is required for file output")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// ensure 未显式Init时回退到默认控制台日志器
func ensure() *slog.Logger {
	if defaultLogger == nil {
		mu.Lock()
		if defaultLogger == nil {
			defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &levelVar}))
		}
		mu.Unlock()
	}
	return defaultLogger
}

// Debug 输出调试日志，args为键值对
func Debug(msg string, args ...any) {
	ensure().Debug(msg, SanitizeArgs(args...)...)
}

// Info 输出信息日志
func Info(msg string, args ...any) {
	ensure().Info(msg, SanitizeArgs(args...)...)
}

// Warn 输出警告日志
func Warn(msg string, args ...any) {
	ensure().Warn(msg, SanitizeArgs(args...)...)
}

// Error 输出错误日志
func Error(msg string, args ...any) {
	ensure().Error(msg, SanitizeArgs(args...)...)
}
