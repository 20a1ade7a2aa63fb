package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/chhz0/dslproc/config"
	"github.com/chhz0/dslproc/core"
	"github.com/chhz0/dslproc/middleware"
	"github.com/chhz0/dslproc/retry"
	"github.com/chhz0/dslproc/storage"
	"github.com/chhz0/dslproc/transport"
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	stats     *middleware.Stats
	store     storage.Storage
	publisher transport.Publisher
	recorder  *core.Recorder
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newApp(ctx context.Context, cfg config.Config, logw io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Log, logw)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var pub transport.Publisher
	if cfg.Publish.Enabled {
		rs, err := transport.NewRedisTransport(ctx, cfg.Publish.RedisAddr, cfg.Publish.Password, cfg.Publish.DB)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connect publisher: %w", err)
		}
		pub = rs
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		stats:     middleware.NewStats(),
		store:     store,
		publisher: pub,
		recorder:  core.NewRecorder(store, pub, logger, recorderOptions(cfg.Publish)...),
	}, nil
}

func recorderOptions(cfg config.PublishConfig) []core.RecorderOption {
	if cfg.Mode == "stream" {
		return []core.RecorderOption{core.StreamResults()}
	}
	return nil
}

func (a *app) middlewares() ([]middleware.Middleware, error) {
	mws := []middleware.Middleware{
		middleware.Logger(a.logger),
		middleware.Metrics(a.stats),
	}
	policy, err := a.cfg.Retry.Build()
	if err != nil {
		return nil, err
	}
	if policy != nil {
		mws = append(mws, middleware.Retry(retry.NewManager(policy)))
	}
	// 每次尝试单独计时
	mws = append(mws, middleware.Timeout(a.cfg.HandlerTimeout))
	return mws, nil
}

func (a *app) factory() (core.Factory, error) {
	mws, err := a.middlewares()
	if err != nil {
		return nil, err
	}
	return func() *core.Processor {
		p := core.NewProcessor(
			core.WithLogger(a.logger),
			core.WithMiddleware(mws...),
			core.WithRecorder(a.recorder),
		)
		registerHandlers(p, a.logger)
		return p
	}, nil
}

func (a *app) Close() error {
	return a.recorder.Close()
}
