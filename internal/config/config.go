package config

import (
	"time"

	"github.com/nickproject/pktwatch/internal/capture"
)

// Config 应用配置
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Display DisplayConfig `mapstructure:"display"`
	Logging LogConfig     `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// CaptureConfig 抓包配置
type CaptureConfig struct {
	Tool           string        `mapstructure:"tool"`
	Tee            string        `mapstructure:"tee"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	StopGrace      time.Duration `mapstructure:"stop_grace"`
	ReadyMarker    string        `mapstructure:"ready_marker"`
	TempDir        string        `mapstructure:"temp_dir"`
	Interface      string        `mapstructure:"interface"`
	Filter         string        `mapstructure:"filter"`
	Count          int           `mapstructure:"count"`
	Snaplen        int           `mapstructure:"snaplen"`
	PacketType     string        `mapstructure:"packet_type"`
	Layers         []string      `mapstructure:"layers"` // 强制解码层序，空表示按推荐
}

// DisplayConfig 显示配置
type DisplayConfig struct {
	Refresh time.Duration `mapstructure:"refresh"`
	MaxRows int           `mapstructure:"max_rows"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	File     string        `mapstructure:"file"`
	Format   string        `mapstructure:"format"`
	SaveDump string        `mapstructure:"save_dump"`
	NoTUI    bool          `mapstructure:"no_tui"`
}

// Default 返回默认配置
func Default() *Config {
	s := capture.DefaultSettings()
	return &Config{
		Capture: CaptureConfig{
			Tool:           s.Tool,
			Tee:            s.Tee,
			StartupTimeout: s.StartupTimeout,
			StopTimeout:    s.StopTimeout,
			StopGrace:      s.StopGrace,
			ReadyMarker:    s.ReadyMarker,
			Interface:      capture.AnyInterface,
		},
		Display: DisplayConfig{
			Refresh: time.Second,
			MaxRows: 50,
		},
		Logging: LogConfig{
			Level:     "warn",
			File:      "",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Output: OutputConfig{
			Duration: 0, // 0 表示持续运行
			Format:   "json",
		},
	}
}

// Settings 转换为抓包器设置
func (c CaptureConfig) Settings() capture.Settings {
	return capture.Settings{
		Tool:           c.Tool,
		Tee:            c.Tee,
		StartupTimeout: c.StartupTimeout,
		StopTimeout:    c.StopTimeout,
		StopGrace:      c.StopGrace,
		ReadyMarker:    c.ReadyMarker,
		TempDir:        c.TempDir,
	}
}

// Options 转换为单次抓包参数
func (c CaptureConfig) Options() capture.Options {
	return capture.Options{
		Interface:  c.Interface,
		Count:      c.Count,
		PacketType: c.PacketType,
		Filter:     c.Filter,
		MaxSize:    c.Snaplen,
	}
}
