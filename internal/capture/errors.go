package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrArgumentMismatch 参数非法或组合不合法
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrAlreadyStarted 会话仍在运行时再次启动
	ErrAlreadyStarted = fmt.Errorf("%w: capture already started", ErrArgumentMismatch)
	// ErrStartupTimeout 工具未在限定时间内就绪
	ErrStartupTimeout = errors.New("capture tool did not become ready")
	// ErrTimeout 超时
	ErrTimeout = errors.New("timeout")
	// ErrPacketTimeout 限定时间内未收到足够的记录
	ErrPacketTimeout = fmt.Errorf("%w: not enough packets", ErrTimeout)
)

// ArgumentError 某个参数非法
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument mismatch: %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrArgumentMismatch
}

// ToolError 抓包工具异常退出，携带其输出
type ToolError struct {
	Stage    string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with code %d", e.Stage, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		fmt.Fprintf(&b, " (stdout: %s)", s)
	}
	return b.String()
}

// PacketTimeoutError 等待记录超时，Got 为实际收到的数量
type PacketTimeoutError struct {
	Want    int
	Got     int
	Timeout time.Duration
}

func (e *PacketTimeoutError) Error() string {
	return fmt.Sprintf("%d/%d packets received within timeout (%s)", e.Got, e.Want, e.Timeout)
}

func (e *PacketTimeoutError) Is(target error) bool {
	return target == ErrPacketTimeout || target == ErrTimeout
}
