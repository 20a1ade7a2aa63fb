package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType     = errors.New("unknown parser type")
	ErrMalformedOption = errors.New("malformed option line")
	ErrPoolStopped     = errors.New("worker pool is not running")
)

// ParseError 定位解析失败的行。Kind 为 ErrUnknownType 或 ErrMalformedOption。
type ParseError struct {
	Kind  error
	Block int // 从 1 开始
	Line  int // 文档中的行号，从 1 开始
	Text  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v %q (block %d, line %d)", e.Kind, e.Text, e.Block, e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// HandlerError 处理器返回的错误或 panic
type HandlerError struct {
	Type  string
	Panic any
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("error processing %s: panic: %v", e.Type, e.Panic)
	}
	return fmt.Sprintf("error processing %s: %v", e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
