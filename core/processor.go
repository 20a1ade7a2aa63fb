// core/processor.go
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/chhz0/dslproc/middleware"
	"github.com/chhz0/dslproc/types"
	"github.com/google/uuid"
)

// Processor 注册处理器、解析 DSL、按顺序分发条目。
// 单个实例不可并发使用；并发处理多份文档时每份使用独立实例（见 WorkerPool）。
type Processor struct {
	registry *Registry
	pending  []types.Item
	dsl      string

	logger   *slog.Logger
	chain    middleware.Middleware
	recorder *Recorder
}

type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithMiddleware 包裹每次处理器调用，第一个为最外层
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Processor) { p.chain = middleware.Chain(mws...) }
}

func WithRecorder(r *Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		logger: slog.Default(),
		chain:  middleware.Chain(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p.Clear()
}

// AddParser 注册类型处理器，同名覆盖
func (p *Processor) AddParser(itemType string, handler Handler) {
	p.registry.Register(itemType, handler)
}

// Parse 解析整份文档并追加到待处理队列。出错时队列保持不变。
func (p *Processor) Parse(dsl string) error {
	p.dsl = dsl

	items, err := Parse(dsl, p.registry)
	if err != nil {
		return err
	}
	p.pending = append(p.pending, items...)
	return nil
}

// Process 按入队顺序取出并分发所有条目，返回后队列为空。
// 处理器的错误或 panic 只记录在报告和日志中，不会中断后续条目。
func (p *Processor) Process(ctx context.Context) *types.Report {
	report := &types.Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	for seq := 1; len(p.pending) > 0; seq++ {
		item := p.pending[0]
		p.pending[0] = types.Item{}
		p.pending = p.pending[1:]

		res := p.dispatch(ctx, &item)
		res.ID = uuid.New().String()
		res.RunID = report.RunID
		res.Seq = seq
		report.Results = append(report.Results, res)

		if p.recorder != nil {
			p.recorder.Record(ctx, &report.Results[len(report.Results)-1])
		}
	}
	p.pending = nil

	report.FinishedAt = time.Now()
	if p.recorder != nil {
		p.recorder.Publish(ctx, report)
	}
	return report
}

func (p *Processor) dispatch(ctx context.Context, item *types.Item) types.Result {
	res := types.Result{
		Type:    item.Type,
		Options: item.Options,
		Status:  types.StatusSkipped,
	}

	handler, ok := p.registry.Lookup(item.Type)
	if !ok || !invocable(handler) {
		res.FinishedAt = time.Now()
		return res
	}

	start := time.Now()
	err := p.invoke(ctx, handler, item)
	res.Duration = time.Since(start)
	res.FinishedAt = time.Now()

	if err != nil {
		p.logger.Error("error processing item",
			slog.String("type", item.Type),
			slog.String("error", err.Error()),
		)
		res.Status = types.StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = types.StatusSuccess
	return res
}

func invocable(h Handler) bool {
	if h == nil {
		return false
	}
	if f, isFunc := h.(HandlerFunc); isFunc && f == nil {
		return false
	}
	return true
}

// invoke 在中间件链之外捕获 panic，保证任何链配置下都不会中断分发
func (p *Processor) invoke(ctx context.Context, handler Handler, item *types.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Type: item.Type, Panic: r}
		}
	}()

	final := func(ctx context.Context, item *types.Item) error {
		return handler.Handle(ctx, item.Options.Clone())
	}
	if herr := p.chain(final)(ctx, item); herr != nil {
		return &HandlerError{Type: item.Type, Err: herr}
	}
	return nil
}

// Clear 清空注册表、待处理队列和保留的原文
func (p *Processor) Clear() *Processor {
	p.dsl = ""
	p.pending = nil
	if p.registry == nil {
		p.registry = NewRegistry()
	} else {
		p.registry.Clear()
	}
	return p
}

// Pending 返回待处理条目的副本
func (p *Processor) Pending() []types.Item {
	out := make([]types.Item, len(p.pending))
	copy(out, p.pending)
	return out
}

func (p *Processor) Types() []string { return p.registry.Types() }

// Registry 暴露注册表，Clear 之后仍指向同一个对象
func (p *Processor) Registry() *Registry { return p.registry }

// Source 最近一次 Parse 的原文，仅用于诊断
func (p *Processor) Source() string { return p.dsl }
