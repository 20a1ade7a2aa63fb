// core/registry.go
package core

import (
	"context"
	"sort"

	"github.com/chhz0/dslproc/types"
)

// Handler 处理某一类型条目的选项
type Handler interface {
	Handle(ctx context.Context, opts types.OptionMap) error
}

// HandlerFunc 让普通函数实现 Handler
type HandlerFunc func(ctx context.Context, opts types.OptionMap) error

func (f HandlerFunc) Handle(ctx context.Context, opts types.OptionMap) error {
	return f(ctx, opts)
}

// Registry 类型名 -> 处理器。同名注册后者覆盖前者。
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(itemType string, handler Handler) {
	r.handlers[itemType] = handler
}

// Lookup 只检查是否注册过；注册为 nil 的处理器同样返回 ok
func (r *Registry) Lookup(itemType string) (Handler, bool) {
	h, ok := r.handlers[itemType]
	return h, ok
}

func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Clear() {
	r.handlers = make(map[string]Handler)
}
