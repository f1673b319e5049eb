package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config 描述守护进程的日志行为。
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig 控制审计日志的落盘与轮转。
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu      sync.Mutex
	base    *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
)

// Init 初始化全局日志器。重复调用不会覆盖已有配置。
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		return nil
	}

	writer, err := combineOutputs(cfg.OutputPaths)
	if err != nil {
		return err
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if level == slog.LevelDebug {
		// debug 级别带上调用位置，便于排查。
		opts.AddSource = true
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	base = slog.New(handler)

	audit = base
	if cfg.Audit.Enabled {
		auditLogger, err := newAuditLogger(cfg.Audit)
		if err != nil {
			base = nil
			audit = nil
			return err
		}
		audit = auditLogger
	}
	return nil
}

// combineOutputs 把配置的输出合并为一个 writer。未配置时写 stdout。
func combineOutputs(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		switch strings.ToLower(path) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("创建日志目录失败: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("打开日志文件 %s 失败: %w", path, err)
			}
			closers = append(closers, file)
			writers = append(writers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// newAuditLogger 构建带大小轮转的审计日志器，始终输出 JSON。
func newAuditLogger(cfg AuditConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("启用审计日志时必须指定文件路径")
	}
	writer, err := newRotatingWriter(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	if err != nil {
		return nil, err
	}
	closers = append(closers, writer)
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensure 在未显式 Init 时退化为 stdout JSON 输出。调用方必须持有 mu。
func ensure() {
	if base == nil {
		base = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if audit == nil {
		audit = base
	}
}

// L 返回全局日志器。
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	ensure()
	return base
}

// Audit 返回审计日志器，未启用审计时与默认日志器相同。
func Audit() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	ensure()
	return audit
}

// Named 返回带组件标记的子日志器。
func Named(component string) *slog.Logger {
	return L().With(slog.String("component", component))
}

// Sync 关闭所有已打开的日志文件。
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}
