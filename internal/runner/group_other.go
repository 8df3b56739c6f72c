//go:build !unix

package runner

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

func setProcessGroup(cmd *exec.Cmd, pgid int) {}

func killGroup(h *Handle) error {
	var first error
	for _, st := range h.stages {
		if st.Exited() {
			continue
		}
		if err := st.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && first == nil {
			first = errors.WithStack(err)
		}
	}
	return first
}
