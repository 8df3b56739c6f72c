//go:build unix

package runner

import (
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd, pgid int) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // 0 表示以自身 pid 新建进程组
		Pgid:    pgid,
	}
}

func killGroup(h *Handle) error {
	if h.pgid == 0 {
		return nil
	}
	if err := unix.Kill(-h.pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return errors.Wrapf(err, "kill process group %d", h.pgid)
	}
	return nil
}
