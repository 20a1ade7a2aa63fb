// core/recorder.go
package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chhz0/dslproc/storage"
	"github.com/chhz0/dslproc/transport"
	"github.com/chhz0/dslproc/types"
)

// Recorder 逐条写入分发结果，并把结果广播出去。
// 默认运行结束后整份报告一次发布；流式模式下每条结果分发完立即发布。
// 存储与发布都可为空；失败只记录日志，不影响分发。
type Recorder struct {
	storage   storage.Storage
	publisher transport.Publisher
	logger    *slog.Logger
	stream    bool
}

type RecorderOption func(*Recorder)

// StreamResults 逐条发布结果，不再发布整份报告
func StreamResults() RecorderOption {
	return func(r *Recorder) {
		r.stream = true
	}
}

func NewRecorder(store storage.Storage, pub transport.Publisher, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{storage: store, publisher: pub, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Storage() storage.Storage {
	return r.storage
}

func (r *Recorder) Record(ctx context.Context, result *types.Result) {
	if r.storage != nil {
		if err := r.storage.SaveResult(ctx, result); err != nil {
			r.logger.Error("save result failed",
				slog.String("run_id", result.RunID),
				slog.Int("seq", result.Seq),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.stream && r.publisher != nil {
		if err := r.publisher.PublishResult(ctx, result); err != nil {
			r.logger.Error("publish result failed",
				slog.String("run_id", result.RunID),
				slog.Int("seq", result.Seq),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Recorder) Publish(ctx context.Context, report *types.Report) {
	if r.stream || r.publisher == nil || len(report.Results) == 0 {
		return
	}
	if err := r.publisher.PublishReport(ctx, report); err != nil {
		r.logger.Error("publish report failed",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) Close() error {
	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	if r.storage != nil {
		errs = append(errs, r.storage.Close())
	}
	return errors.Join(errs...)
}
