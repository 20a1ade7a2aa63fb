// server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chhz0/dslproc/core"
	"github.com/chhz0/dslproc/middleware"
)

// 单个 DSL 文档的最大字节数
const maxDocumentSize = 1 << 20

type Server struct {
	workerPool *core.WorkerPool
	httpServer *http.Server
	logger     *slog.Logger
}

type Config struct {
	HTTPAddr    string
	WorkerCount int
	Factory     core.Factory
	Stats       *middleware.Stats
	Logger      *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Factory == nil {
		return nil, errors.New("server: processor factory is required")
	}
	if cfg.Stats == nil {
		cfg.Stats = middleware.NewStats()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	workerPool := core.NewWorkerPool(cfg.Factory, cfg.WorkerCount, cfg.Logger)

	return &Server{
		workerPool: workerPool,
		logger:     cfg.Logger,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newRouter(workerPool, cfg.Stats, cfg.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束，然后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动Worker池
	s.workerPool.Start()
	defer s.workerPool.Stop()

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		// 优雅关闭
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		s.logger.Info("http server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func newRouter(pool *core.WorkerPool, stats *middleware.Stats, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats.Snapshot())
	})

	// 提交一份 DSL 文档，同步返回分发报告
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}

		out, err := pool.Submit(r.Context(), core.Document{
			Name: r.URL.Query().Get("name"),
			Text: string(body),
		})
		if err != nil {
			logger.Error("submit document failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if out.Err != nil {
			writeError(w, http.StatusBadRequest, out.Err)
			return
		}
		writeJSON(w, http.StatusOK, out.Report)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
