package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/chhz0/dslproc/core"
	"github.com/chhz0/dslproc/retry"
	"github.com/chhz0/dslproc/types"
)

//go:embed demo.dsl
var demoDocument string

// 示例处理器，只把收到的选项打到日志里
func registerHandlers(p *core.Processor, logger *slog.Logger) {
	p.AddParser("notification", core.HandlerFunc(func(ctx context.Context, opts types.OptionMap) error {
		logger.Info("creating notification", optionAttrs(opts)...)
		return nil
	}))
	p.AddParser("task", core.HandlerFunc(func(ctx context.Context, opts types.OptionMap) error {
		// scale 写错时重试也无济于事
		if v, ok := opts.Get("scale"); ok {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return retry.Permanent(fmt.Errorf("invalid scale %q", v))
			}
		}
		logger.Info("creating task", optionAttrs(opts)...)
		return nil
	}))
}

func optionAttrs(opts types.OptionMap) []any {
	attrs := make([]any, 0, opts.Len())
	for _, o := range opts {
		attrs = append(attrs, slog.String(o.Key, o.Value))
	}
	return attrs
}
