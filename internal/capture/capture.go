package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nickproject/pktwatch/internal/logger"
)

// Capturer 抓包会话接口
type Capturer interface {
	// Start 启动抓包，等待工具就绪后返回
	Start(opts Options) error
	// WaitForPackets 取出 count 条记录，count 为 0 时立即取出已有的全部记录
	WaitForPackets(count int, timeout time.Duration) ([]RawPacket, error)
	// Stop 请求停止并在限定时间内等待工作协程结束
	Stop() (*Worker, error)
}

var _ Capturer = (*Supervisor)(nil)

// Supervisor 管理一个网卡上的抓包会话
//
// 同一网卡上同时只应存在一个 Supervisor，由调用方保证。
type Supervisor struct {
	settings Settings
	log      *zap.SugaredLogger

	mu      sync.Mutex
	worker  *Worker
	opts    Options
	records *mailbox
	info    *mailbox
}

// NewSupervisor 创建抓包会话，零值字段使用默认设置
func NewSupervisor(settings Settings) *Supervisor {
	return &Supervisor{
		settings: settings.withDefaults(),
		log:      logger.Named("capture"),
		records:  newMailbox(),
		info:     newMailbox(),
	}
}

// Start 启动抓包
//
// 会话仍在运行时返回 ErrAlreadyStarted。工具在 StartupTimeout 内未就绪时
// 结束进程组并返回 ErrStartupTimeout；就绪前异常退出返回 *ToolError。
// Blocking 模式下继续等待抓包结束，超过 Timeout 返回 ErrTimeout。
func (s *Supervisor) Start(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.stateLocked().Live() {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.records = newMailbox()
	s.info = newMailbox()
	s.opts = opts
	w := startWorker(s.settings, opts, s.records, s.info, s.log)
	s.worker = w
	s.mu.Unlock()

	s.log.Infow("启动抓包",
		"interface", opts.Interface,
		"filter", opts.Filter,
		"count", opts.Count,
		"args", strings.Join(BuildArgs(opts), " "))

	if err := s.awaitReady(w); err != nil {
		return err
	}

	if opts.Blocking {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		select {
		case <-w.Done():
			return w.Err()
		case <-timer.C:
			return fmt.Errorf("%w: capture still running after %s", ErrTimeout, opts.Timeout)
		}
	}
	return nil
}

func (s *Supervisor) awaitReady(w *Worker) error {
	timer := time.NewTimer(s.settings.StartupTimeout)
	defer timer.Stop()

	select {
	case <-w.sig.ready.C():
		return nil
	case <-w.sig.failed.C():
	case <-w.Done():
	case <-timer.C:
		s.log.Warnw("抓包工具未就绪，强制结束", "timeout", s.settings.StartupTimeout)
		w.sig.stop.set()
		if err := w.Kill(); err != nil {
			s.log.Warnw("结束抓包工具失败", "error", err)
		}
		waitDone(w, s.settings.StopGrace)
		return fmt.Errorf("%w within %s%s", ErrStartupTimeout, s.settings.StartupTimeout, diagnostics(w))
	}

	// 工具已打印就绪信息后很快退出，例如 -c 已满足
	if w.sig.ready.isSet() {
		return nil
	}
	if err := w.Err(); err != nil {
		return err
	}
	return &ToolError{Stage: s.settings.Tool, ExitCode: -1}
}

func diagnostics(w *Worker) string {
	var te *ToolError
	if !errors.As(w.Err(), &te) {
		return ""
	}
	if s := strings.TrimSpace(te.Stderr); s != "" {
		return ": " + s
	}
	return ""
}

func waitDone(w *Worker, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.Done():
		return true
	case <-timer.C:
		return false
	}
}

// WaitForPackets 取出记录，保持工具输出顺序
//
// count 为 0 时不等待；否则等到至少 count 条后取出恰好 count 条。
// 超时返回 *PacketTimeoutError，已到达的记录留在队列中。
// 工作协程提前结束且记录不足时不再等待。
func (s *Supervisor) WaitForPackets(count int, timeout time.Duration) ([]RawPacket, error) {
	if count < 0 {
		return nil, &ArgumentError{Field: "count", Reason: "must not be negative"}
	}

	s.mu.Lock()
	records, w := s.records, s.worker
	s.mu.Unlock()

	if count == 0 {
		return toPackets(records.take(0)), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var finished <-chan struct{}
	if w != nil {
		finished = w.Done()
	}

	for {
		changed := records.wait()
		if got, _ := records.takeAtLeast(count); got != nil {
			return toPackets(got), nil
		}
		select {
		case <-changed:
		case <-timer.C:
			return nil, &PacketTimeoutError{Want: count, Got: records.len(), Timeout: timeout}
		case <-finished:
			got, have := records.takeAtLeast(count)
			if got != nil {
				return toPackets(got), nil
			}
			return nil, &PacketTimeoutError{Want: count, Got: have, Timeout: timeout}
		}
	}
}

// Stop 请求停止
//
// 从未启动时为空操作。在 StopTimeout 内等待工作协程结束，
// 无论是否结束都返回 Worker；需要硬截止时由调用方调用 Worker.Kill。
// 已结束时返回工作协程的终止错误。
func (s *Supervisor) Stop() (*Worker, error) {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()
	if w == nil {
		return nil, nil
	}

	if !w.Finished() {
		s.log.Infow("请求停止抓包", "interface", s.opts.Interface)
	}
	w.sig.stop.set()

	if !waitDone(w, s.settings.StopTimeout) {
		s.log.Warnw("抓包未在限定时间内结束", "timeout", s.settings.StopTimeout)
		return w, nil
	}
	return w, w.Err()
}

// State 当前会话状态
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Supervisor) stateLocked() State {
	w := s.worker
	switch {
	case w == nil:
		return StateNotStarted
	case w.sig.finished.isSet():
		if w.Err() != nil {
			return StateError
		}
		return StateFinished
	case w.sig.stop.isSet():
		return StateStopping
	case w.sig.ready.isSet():
		return StateRunning
	default:
		return StateStarting
	}
}

// Info 取出工具的诊断输出和终止信息
func (s *Supervisor) Info() []string {
	s.mu.Lock()
	info := s.info
	s.mu.Unlock()

	items := info.take(0)
	lines := make([]string, 0, len(items))
	for _, v := range items {
		lines = append(lines, v.(string))
	}
	return lines
}

// Err 工作协程的终止错误
func (s *Supervisor) Err() error {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Err()
}

// Records 队列中尚未取出的记录数
func (s *Supervisor) Records() int {
	s.mu.Lock()
	records := s.records
	s.mu.Unlock()
	return records.len()
}

func toPackets(items []interface{}) []RawPacket {
	pkts := make([]RawPacket, 0, len(items))
	for _, v := range items {
		pkts = append(pkts, v.(RawPacket))
	}
	return pkts
}
