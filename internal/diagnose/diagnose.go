package diagnose

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/nickproject/pktwatch/internal/capture"
	"github.com/nickproject/pktwatch/internal/runner"
)

// capability 位
const (
	capNetAdmin = 12
	capNetRaw   = 13
)

// Options 诊断参数
type Options struct {
	Interface string
	Tool      string
	Tee       string
	Timeout   time.Duration // 单个外部命令的最长执行时间
}

// Run 抓包前的环境检查：工具、权限、网卡
func Run(opts Options) *Report {
	if opts.Tool == "" {
		opts.Tool = capture.DefaultSettings().Tool
	}
	if opts.Tee == "" {
		opts.Tee = capture.DefaultSettings().Tee
	}
	if opts.Interface == "" {
		opts.Interface = capture.AnyInterface
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	report := NewReport()
	report.System = CollectSystemInfo()

	checkTool(report, opts)
	checkTee(report, opts.Tee)
	checkPrivileges(report, report.System)
	checkInterface(report, opts.Interface)

	failed := 0
	for _, c := range report.Checks {
		if c.Status == StatusFail {
			failed++
		}
	}
	if failed == 0 {
		report.Summary = fmt.Sprintf("%d 项检查通过，可以在 %s 上抓包", len(report.Checks), opts.Interface)
	} else {
		report.Summary = fmt.Sprintf("%d/%d 项检查失败", failed, len(report.Checks))
	}
	return report
}

func checkTool(report *Report, opts Options) {
	path, err := exec.LookPath(opts.Tool)
	if err != nil {
		report.AddCheckWithError("capture_tool", StatusFail, opts.Tool+" 不在 PATH 中", err)
		return
	}

	version, err := probeVersion(path, opts.Timeout)
	if err != nil {
		report.AddCheckWithError("capture_tool", StatusWarning, "无法获取版本: "+path, err)
		return
	}
	report.AddCheckWithDetails("capture_tool", StatusPass, path, map[string]string{"version": version})
}

// probeVersion 运行 "<tool> --version"，返回输出的第一行
func probeVersion(path string, timeout time.Duration) (string, error) {
	h, err := runner.Start(runner.Command{Name: path, Args: []string{"--version"}})
	if err != nil {
		return "", err
	}
	defer h.Stdout().Close()

	output := make(chan []byte, 1)
	go func() {
		out, _ := io.ReadAll(h.Stdout())
		output <- out
	}()

	if !h.Wait(timeout) {
		_ = h.Kill()
		h.Wait(time.Second)
		return "", fmt.Errorf("%s --version 超时", path)
	}
	out := <-output
	st := h.Final()
	if st.ExitCode() != 0 {
		return "", fmt.Errorf("%s --version 退出码 %d: %s", path, st.ExitCode(), strings.TrimSpace(st.Stderr()))
	}

	// tcpdump 把版本写到 stdout，部分旧版本写到 stderr
	text := string(out)
	if strings.TrimSpace(text) == "" {
		text = st.Stderr()
	}
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line, nil
}

func checkTee(report *Report, tee string) {
	path, err := exec.LookPath(tee)
	if err != nil {
		report.AddCheckWithError("tee", StatusFail, tee+" 不在 PATH 中", err)
		return
	}
	report.AddCheck("tee", StatusPass, path)
}

func checkPrivileges(report *Report, sys *SystemInfo) {
	switch {
	case sys.EUID == 0:
		report.AddCheck("privileges", StatusPass, "root")
	case sys.HasNetRaw && sys.HasNetAdmin:
		report.AddCheck("privileges", StatusPass, "CAP_NET_RAW + CAP_NET_ADMIN")
	case runtime.GOOS != "linux":
		report.AddCheck("privileges", StatusWarning, "非 root 运行，抓包可能需要 sudo")
	default:
		report.AddCheckWithDetails("privileges", StatusFail, "需要 root 或 CAP_NET_RAW + CAP_NET_ADMIN",
			map[string]bool{"cap_net_raw": sys.HasNetRaw, "cap_net_admin": sys.HasNetAdmin})
	}
}

// CollectSystemInfo 收集系统信息
func CollectSystemInfo() *SystemInfo {
	hostname, _ := os.Hostname()
	info := &SystemInfo{
		Kernel:   KernelVersion(),
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		UID:      os.Getuid(),
		EUID:     os.Geteuid(),
	}

	if f, err := os.Open("/proc/self/status"); err == nil {
		info.CapEff = readCapEff(f)
		f.Close()
	}
	if caps, err := strconv.ParseUint(info.CapEff, 16, 64); err == nil {
		info.HasNetRaw = hasCap(caps, capNetRaw)
		info.HasNetAdmin = hasCap(caps, capNetAdmin)
	}
	return info
}

// readCapEff 从 /proc/<pid>/status 中读取 CapEff
func readCapEff(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "CapEff:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "CapEff:"))
		}
	}
	return ""
}

func hasCap(caps uint64, bit uint) bool {
	return caps&(1<<bit) != 0
}

// KernelVersion 内核版本，读取失败返回 unknown
func KernelVersion() string {
	if runtime.GOOS == "darwin" {
		return "macOS"
	}
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return "unknown"
	}
	parts := strings.Fields(string(data))
	if len(parts) >= 3 {
		return parts[2]
	}
	return "unknown"
}
