// config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chhz0/dslproc/retry"
	"github.com/chhz0/dslproc/storage"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	// 并发处理的文档数，每份文档内部仍按顺序分发
	Workers int `yaml:"workers"`
	// 只设置 context 截止时间，0 表示不设置
	HandlerTimeout time.Duration `yaml:"handler_timeout"`

	Log     LogConfig      `yaml:"log"`
	Storage storage.Config `yaml:"storage"`
	Publish PublishConfig  `yaml:"publish"`
	Retry   RetryConfig    `yaml:"retry"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type PublishConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // report | stream
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
}

type RetryConfig struct {
	Policy       string        `yaml:"policy"` // none | fixed | exponential
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Workers:  4,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: storage.Config{
			Backend: "memory",
		},
		Publish: PublishConfig{
			Mode: "report",
		},
		Retry: RetryConfig{
			Policy: "none",
		},
	}
}

// Load 读取 YAML 文件，未出现的字段保留默认值。path 为空时直接返回默认配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.HandlerTimeout < 0 {
		errs = append(errs, errors.New("handler_timeout must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "bolt", "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage backend %q requires path", c.Storage.Backend))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage backend redis requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, c.Storage.Backend))
	}
	if c.Publish.Enabled && c.Publish.RedisAddr == "" {
		errs = append(errs, errors.New("publish requires redis_addr"))
	}
	switch c.Publish.Mode {
	case "", "report", "stream":
	default:
		errs = append(errs, fmt.Errorf("unknown publish mode %q", c.Publish.Mode))
	}
	if _, err := c.Retry.Build(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Build 返回对应的重试策略，none 时为 nil
func (r RetryConfig) Build() (retry.Policy, error) {
	switch r.Policy {
	case "", "none":
		return nil, nil
	case "fixed":
		return &retry.Fixed{
			Interval:    r.Interval,
			MaxAttempts: r.MaxAttempts,
		}, nil
	case "exponential":
		return &retry.Backoff{
			Initial:     r.InitialDelay,
			Max:         r.MaxDelay,
			MaxAttempts: r.MaxAttempts,
		}, nil
	default:
		return nil, fmt.Errorf("unknown retry policy %q", r.Policy)
	}
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
