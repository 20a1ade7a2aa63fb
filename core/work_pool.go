// core/worker_pool.go
package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chhz0/dslproc/types"
)

// Factory 为每份文档创建一个全新的、已注册处理器的 Processor
type Factory func() *Processor

// Document 待处理的一份 DSL 文本
type Document struct {
	Name string
	Text string
}

// Outcome Err 为解析错误；分发失败体现在 Report 中
type Outcome struct {
	Document Document
	Report   *types.Report
	Err      error
}

type job struct {
	ctx   context.Context
	doc   Document
	reply chan Outcome
}

type WorkerPool struct {
	factory    Factory
	maxWorkers int
	logger     *slog.Logger

	jobs    chan job
	done    <-chan struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

func NewWorkerPool(factory Factory, maxWorkers int, logger *slog.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		factory:    factory,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp.cancel = cancel
	wp.done = ctx.Done()
	wp.jobs = make(chan job)
	wp.running = true

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.runWorker(ctx, wp.jobs)
	}
}

// Stop 等待正在处理的文档完成后返回
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.running {
		return
	}

	wp.cancel()
	wp.wg.Wait()
	wp.running = false
}

// Submit 提交一份文档并等待结果
func (wp *WorkerPool) Submit(ctx context.Context, doc Document) (Outcome, error) {
	wp.mu.RLock()
	if !wp.running {
		wp.mu.RUnlock()
		return Outcome{}, ErrPoolStopped
	}
	jobs, done := wp.jobs, wp.done
	wp.mu.RUnlock()

	reply := make(chan Outcome, 1)
	select {
	case jobs <- job{ctx: ctx, doc: doc, reply: reply}:
	case <-done:
		return Outcome{}, ErrPoolStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Run 并发处理多份文档，结果与输入顺序一致
func (wp *WorkerPool) Run(ctx context.Context, docs []Document) ([]Outcome, error) {
	outcomes := make([]Outcome, len(docs))
	errs := make([]error, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()
			outcomes[i], errs[i] = wp.Submit(ctx, doc)
		}(i, doc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

func (wp *WorkerPool) runWorker(ctx context.Context, jobs <-chan job) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			j.reply <- wp.processDocument(j.ctx, j.doc)
		}
	}
}

func (wp *WorkerPool) processDocument(ctx context.Context, doc Document) Outcome {
	p := wp.factory()

	if err := p.Parse(doc.Text); err != nil {
		wp.logger.Warn("document rejected",
			slog.String("document", doc.Name),
			slog.String("error", err.Error()),
		)
		return Outcome{Document: doc, Err: err}
	}

	report := p.Process(ctx)
	wp.logger.Info("document processed",
		slog.String("document", doc.Name),
		slog.String("run_id", report.RunID),
		slog.Int("items", len(report.Results)),
		slog.Int("failed", report.Count(types.StatusFailed)),
	)
	return Outcome{Document: doc, Report: report}
}
