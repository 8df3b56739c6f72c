package capture

import (
	"time"
)

// RawPacket 抓包工具输出的一条原始记录，Timestamp 原样取自工具输出
type RawPacket struct {
	Data      []byte
	Timestamp string
}

// State 抓包会话状态
type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Live 会话是否仍占用抓包工具
func (s State) Live() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// Options 单次抓包参数
type Options struct {
	Interface  string        // 目标网卡，any 表示全部
	Count      int           // 抓到 Count 个包后工具自行退出，0 表示不限
	PacketType string        // 工具的 -T 报文类型提示，如 vxlan
	Filter     string        // pcap-filter 表达式，原样传给工具
	MaxSize    int           // 单包最大抓取字节数，0 使用工具默认值
	Blocking   bool          // 启动后等待抓包结束
	Timeout    time.Duration // Blocking 模式下的最长等待时间
	SaveDump   bool          // 结束时保留 hex dump 文件
	DumpFile   string        // 保留的目标路径
	// OnPacket 每条记录入队后在工作协程中调用，可为 nil
	OnPacket func(RawPacket)
}

// Settings 抓包器级别的设置，对所有会话生效
type Settings struct {
	Tool           string        // 抓包工具
	Tee            string        // 复制输出的工具
	StartupTimeout time.Duration // 等待工具就绪的时间
	StopTimeout    time.Duration // Stop 等待工作协程结束的时间
	StopGrace      time.Duration // 中断后到强制结束进程组的时间
	ReadyMarker    string        // 工具 stderr 中表示已就绪的文本
	TempDir        string        // 临时 dump 文件目录，空表示系统默认
}

// DefaultSettings 返回默认设置
func DefaultSettings() Settings {
	return Settings{
		Tool:           "tcpdump",
		Tee:            "tee",
		StartupTimeout: 10 * time.Second,
		StopTimeout:    5 * time.Second,
		StopGrace:      2 * time.Second,
		ReadyMarker:    "listening on",
	}
}

// withDefaults 用默认值补齐零值字段
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Tool == "" {
		s.Tool = d.Tool
	}
	if s.Tee == "" {
		s.Tee = d.Tee
	}
	if s.StartupTimeout <= 0 {
		s.StartupTimeout = d.StartupTimeout
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = d.StopTimeout
	}
	if s.StopGrace <= 0 {
		s.StopGrace = d.StopGrace
	}
	if s.ReadyMarker == "" {
		s.ReadyMarker = d.ReadyMarker
	}
	return s
}
