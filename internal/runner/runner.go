package runner

import (
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Command 管道中的一个外部命令
type Command struct {
	Name string
	Args []string
	// OnStderrLine 每读到一行 stderr 调用一次，可为 nil
	OnStderrLine func(line string)
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Stage 管道中已启动的一个进程
type Stage struct {
	cmd    *exec.Cmd
	stderr *lineWriter
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
	err      error
}

// Name 命令名
func (s *Stage) Name() string {
	return s.cmd.Path
}

// Pid 进程号
func (s *Stage) Pid() int {
	return s.cmd.Process.Pid
}

// Done 进程退出后关闭
func (s *Stage) Done() <-chan struct{} {
	return s.done
}

// Exited 是否已退出
func (s *Stage) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ExitCode 退出码，未退出或被信号终止时为 -1
func (s *Stage) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Err Wait 返回的错误，非零退出时为 *exec.ExitError
func (s *Stage) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stderr 截至目前的全部 stderr 输出
func (s *Stage) Stderr() string {
	return s.stderr.String()
}

func (s *Stage) wait() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.err = err
	if s.cmd.ProcessState != nil {
		s.exitCode = s.cmd.ProcessState.ExitCode()
	}
	s.mu.Unlock()
	close(s.done)
}

// Handle 一组通过管道串联的进程
type Handle struct {
	stages []*Stage
	stdout *os.File
	pgid   int
}

// Start 启动以管道串联的命令，前一个的 stdout 接后一个的 stdin
//
// 所有进程位于同一进程组，Start 不等待进程退出。
// 最后一个命令的 stdout 通过 Stdout 读取，读完后由调用方关闭。
func Start(cmds ...Command) (*Handle, error) {
	if len(cmds) == 0 {
		return nil, errors.New("runner: no command")
	}

	h := &Handle{}
	var stdin *os.File
	for i, c := range cmds {
		r, w, err := os.Pipe()
		if err != nil {
			h.abort(stdin)
			return nil, errors.WithStack(err)
		}

		cmd := exec.Command(c.Name, c.Args...)
		cmd.Stdin = stdin
		cmd.Stdout = w
		stderr := newLineWriter(c.OnStderrLine)
		cmd.Stderr = stderr
		cmd.WaitDelay = time.Second
		setProcessGroup(cmd, h.pgid)

		err = cmd.Start()
		w.Close()
		if stdin != nil {
			stdin.Close()
		}
		if err != nil {
			r.Close()
			h.abort(nil)
			return nil, errors.Wrapf(err, "start %q", c.String())
		}
		if i == 0 {
			h.pgid = cmd.Process.Pid
		}

		h.stages = append(h.stages, &Stage{cmd: cmd, stderr: stderr, done: make(chan struct{}), exitCode: -1})
		stdin = r
	}
	h.stdout = stdin
	h.reap()
	return h, nil
}

// reap 全部启动后才回收进程，进程组组长提前退出时也不影响后续进程加入
func (h *Handle) reap() {
	for _, st := range h.stages {
		go st.wait()
	}
}

// abort 启动中途失败时清理已启动的进程
func (h *Handle) abort(pending *os.File) {
	if pending != nil {
		pending.Close()
	}
	if len(h.stages) == 0 {
		return
	}
	h.Kill()
	h.reap()
	h.Wait(time.Second)
}

// Stdout 最后一个进程的标准输出
func (h *Handle) Stdout() io.ReadCloser {
	return h.stdout
}

// Stages 全部进程，顺序与 Start 参数一致
func (h *Handle) Stages() []*Stage {
	return h.stages
}

// First 管道首个进程
func (h *Handle) First() *Stage {
	return h.stages[0]
}

// Final 管道末尾进程
func (h *Handle) Final() *Stage {
	return h.stages[len(h.stages)-1]
}

// Interrupt 向首个进程发送中断信号，下游进程读到 EOF 后自行退出
func (h *Handle) Interrupt() error {
	first := h.First()
	if first.Exited() {
		return nil
	}
	if err := first.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.WithStack(err)
	}
	return nil
}

// Kill 强制结束整个进程组
func (h *Handle) Kill() error {
	return killGroup(h)
}

// Wait 等待所有进程退出，超时返回 false
func (h *Handle) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for _, st := range h.stages {
		select {
		case <-st.done:
		case <-timer.C:
			return false
		}
	}
	return true
}

// String 形如 "tcpdump -i eth0 | tee -a x"
func (h *Handle) String() string {
	parts := make([]string, 0, len(h.stages))
	for _, st := range h.stages {
		parts = append(parts, strings.Join(st.cmd.Args, " "))
	}
	return strings.Join(parts, " | ")
}
