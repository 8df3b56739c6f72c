package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickproject/pktwatch/internal/config"
	"github.com/nickproject/pktwatch/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pktwatch",
	Short: "基于 tcpdump 的抓包与协议解码工具",
	Long: `pktwatch 在后台运行 tcpdump，把十六进制输出解码为
Ethernet/SLL、IPv4、TCP/UDP/ICMP、ARP 各层，并按会话实时汇总。

子命令:
  capture    启动抓包并实时展示会话
  decode     解码保存的 dump 文件
  diagnose   检查抓包环境（工具、权限、网卡）`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().String("log-file", "", "日志文件路径")
	rootCmd.PersistentFlags().String("log-level", "warn", "日志级别 (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("tool", "tcpdump", "抓包工具路径")

	viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("capture.tool", rootCmd.PersistentFlags().Lookup("tool"))

	rootCmd.AddCommand(captureCmd, decodeCmd, diagnoseCmd)
}

func initConfig() {
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.config/pktwatch")
		}
		viper.AddConfigPath("/etc/pktwatch")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PKTWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "读取配置文件错误: %v\n", err)
			os.Exit(1)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "解析配置错误: %v\n", err)
		os.Exit(1)
	}
}

// initLogger TUI 运行时日志只写文件，避免破坏界面
func initLogger(cmd *cobra.Command, args []string) error {
	tuiActive := cmd == captureCmd && !cfg.Output.NoTUI
	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		Console:   !tuiActive,
	}
	if tuiActive && logCfg.File == "" {
		// 没有日志文件时丢弃日志
		logCfg.Writer = io.Discard
	}
	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}
