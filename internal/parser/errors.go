package parser

import (
	"errors"
	"fmt"
)

var (
	ErrPacketParsing = errors.New("packet parsing error")
	ErrInvalidLayer  = errors.New("invalid layer name")
)

// ParseError 某一层解析失败，带层名与原因
type ParseError struct {
	Layer  LayerKind
	Reason string
}

// Key 错误在 Packet.Errors 中的键，形如 parse_errors.ip
func (e *ParseError) Key() string {
	return "parse_errors." + e.Layer.String()
}

func (e *ParseError) Error() string {
	return e.Key() + ": " + e.Reason
}

// Is 使 errors.Is(err, ErrPacketParsing) 成立
func (e *ParseError) Is(target error) bool {
	return target == ErrPacketParsing
}

func failf(kind LayerKind, format string, args ...interface{}) *ParseError {
	return &ParseError{Layer: kind, Reason: fmt.Sprintf(format, args...)}
}

// needAtLeast 校验剩余缓冲区不短于本层固定头长
func needAtLeast(kind LayerKind, buf []byte, n int) error {
	if len(buf) < n {
		return failf(kind, "%s header must at least be %d bytes, got %d", kind, n, len(buf))
	}
	return nil
}
