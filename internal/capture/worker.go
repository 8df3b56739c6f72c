package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nickproject/pktwatch/internal/runner"
)

// maxDiagnostic 就绪前最多保留的 stdout 字节数
const maxDiagnostic = 64 * 1024

// Worker 运行抓包工具的工作协程
//
// 与会话之间只通过 handshake 信号和两个 mailbox 交互。
type Worker struct {
	settings Settings
	opts     Options
	sig      handshake
	records  *mailbox
	info     *mailbox
	log      *zap.SugaredLogger

	mu      sync.Mutex
	handle  *runner.Handle
	killed  bool
	err     error
	packets int
}

func startWorker(settings Settings, opts Options, records, info *mailbox, log *zap.SugaredLogger) *Worker {
	w := &Worker{
		settings: settings,
		opts:     opts,
		sig:      newHandshake(),
		records:  records,
		info:     info,
		log:      log.With("interface", opts.Interface),
	}
	go w.run()
	return w
}

// Done 工作协程完全结束后关闭
func (w *Worker) Done() <-chan struct{} {
	return w.sig.finished.C()
}

// Finished 是否已结束
func (w *Worker) Finished() bool {
	return w.sig.finished.isSet()
}

// Err 终止错误，正常结束为 nil
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Packets 已输出的记录数
func (w *Worker) Packets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets
}

// Kill 立即结束抓包进程组，不等待工作协程退出
func (w *Worker) Kill() error {
	w.mu.Lock()
	w.killed = true
	h := w.handle
	w.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Kill()
}

func (w *Worker) run() {
	err := w.capture()

	w.mu.Lock()
	w.err = err
	n := w.packets
	w.mu.Unlock()

	if err != nil {
		w.log.Errorw("抓包异常结束", "error", err)
		w.sig.failed.set()
		w.info.push("capture failed: " + err.Error())
	} else {
		w.log.Infow("抓包结束", "packets", n)
		w.info.push(fmt.Sprintf("capture finished: %d packets", n))
	}
	w.sig.finished.set()
}

func (w *Worker) capture() (err error) {
	path, err := createDump(w.settings.TempDir)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, w.releaseDump(path))
	}()

	h, err := runner.Start(
		runner.Command{Name: w.settings.Tool, Args: BuildArgs(w.opts), OnStderrLine: w.onStderr},
		runner.Command{Name: w.settings.Tee, Args: []string{"-a", path}},
	)
	if err != nil {
		return err
	}
	if w.attach(h) {
		_ = h.Kill()
	}
	w.log.Infow("抓包进程已启动", "pipeline", h.String(), "dump", path)

	stdout := h.Stdout()
	defer stdout.Close()
	lines := make(chan string, 256)
	go scanLines(stdout, lines)

	var (
		dump   DumpReader
		early  strings.Builder
		stop   = w.sig.stop.C()
		grace  *time.Timer
		graceC <-chan time.Time
	)
	for lines != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if !w.sig.ready.isSet() && early.Len() < maxDiagnostic {
				early.WriteString(line)
				early.WriteByte('\n')
			}
			if pkt, ok := dump.Feed(line); ok {
				w.deliver(pkt)
			}
		case <-stop:
			stop = nil
			w.log.Infow("收到停止信号，中断抓包工具")
			if err := h.Interrupt(); err != nil {
				w.log.Warnw("中断抓包工具失败", "error", err)
			}
			grace = time.NewTimer(w.settings.StopGrace)
			graceC = grace.C
		case <-graceC:
			graceC = nil
			w.log.Warnw("抓包工具未在限定时间内退出，强制结束", "grace", w.settings.StopGrace)
			if err := h.Kill(); err != nil {
				w.log.Warnw("结束进程组失败", "error", err)
			}
		}
	}
	if grace != nil {
		grace.Stop()
	}
	if pkt, ok := dump.Flush(); ok {
		w.deliver(pkt)
	}

	if !h.Wait(w.settings.StopGrace) {
		_ = h.Kill()
		h.Wait(w.settings.StopGrace)
	}
	return w.exitStatus(h, early.String())
}

// attach 记录进程句柄，返回 true 表示在此之前已被要求结束
func (w *Worker) attach(h *runner.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handle = h
	return w.killed
}

func (w *Worker) onStderr(line string) {
	w.info.push(line)
	if !w.sig.ready.isSet() && strings.Contains(line, w.settings.ReadyMarker) {
		w.log.Infow("抓包工具已就绪", "message", line)
		w.sig.ready.set()
	}
}

func (w *Worker) deliver(pkt RawPacket) {
	w.records.push(pkt)
	w.mu.Lock()
	w.packets++
	w.mu.Unlock()
	if w.opts.OnPacket != nil {
		w.opts.OnPacket(pkt)
	}
}

// exitStatus 就绪前退出，或未被要求停止却非零退出，都视为工具失败
func (w *Worker) exitStatus(h *runner.Handle, stdout string) error {
	stopped := w.sig.stop.isSet()
	tool := h.First()
	if !w.sig.ready.isSet() || (!stopped && tool.ExitCode() != 0) {
		return &ToolError{
			Stage:    w.settings.Tool,
			ExitCode: tool.ExitCode(),
			Stdout:   stdout,
			Stderr:   tool.Stderr(),
		}
	}
	if tee := h.Final(); !stopped && tee.ExitCode() != 0 {
		return &ToolError{Stage: w.settings.Tee, ExitCode: tee.ExitCode(), Stderr: tee.Stderr()}
	}
	return nil
}

// releaseDump 按需复制 dump 文件，然后删除临时文件
func (w *Worker) releaseDump(path string) error {
	var err error
	if w.opts.SaveDump {
		if cerr := copyFile(path, w.opts.DumpFile); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("save dump: %w", cerr))
		} else {
			w.log.Infow("dump 文件已保存", "file", w.opts.DumpFile)
		}
	}
	if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
		err = multierr.Append(err, fmt.Errorf("remove dump: %w", rerr))
	}
	return err
}

func createDump(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "pktwatch-*.dump")
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	_, werr := fmt.Fprintln(f, StartSentinel)
	if err := multierr.Combine(werr, f.Close()); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write dump file: %w", err)
	}
	return f.Name(), nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()
	_, err = io.Copy(out, in)
	return err
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		out <- sc.Text()
	}
}
