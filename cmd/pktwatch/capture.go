package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickproject/pktwatch/internal/aggregator"
	"github.com/nickproject/pktwatch/internal/capture"
	"github.com/nickproject/pktwatch/internal/export"
	"github.com/nickproject/pktwatch/internal/filter"
	"github.com/nickproject/pktwatch/internal/logger"
	"github.com/nickproject/pktwatch/internal/parser"
	"github.com/nickproject/pktwatch/internal/tui"
)

// 队列轮询间隔
const pollInterval = 100 * time.Millisecond

var (
	filterHosts  []string
	filterPorts  []int
	filterProtos []string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "启动抓包并实时展示会话",
	Example: `  pktwatch capture -i eth0 --proto tcp --port 443
  pktwatch capture -i any -f "icmp or arp" -c 100 --no-tui
  pktwatch capture -i eth0 --timeout 30s -o flows.csv --format csv --save eth0.dump`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringP("interface", "i", capture.AnyInterface, "抓包网卡，any 表示全部")
	f.StringP("filter", "f", "", "pcap-filter 表达式，原样传给抓包工具")
	f.StringSliceVar(&filterHosts, "host", nil, "只抓指定主机 (可多次指定)")
	f.IntSliceVar(&filterPorts, "port", nil, "只抓指定端口 (可多次指定)")
	f.StringSliceVar(&filterProtos, "proto", nil, "只抓指定协议，如 tcp,udp,icmp,arp")
	f.IntP("count", "c", 0, "抓到指定数量后退出")
	f.IntP("snaplen", "s", 0, "单包最大抓取字节数")
	f.StringP("packet-type", "T", "", "抓包工具的报文类型提示，如 vxlan")
	f.StringSlice("layers", nil, "强制解码层序，如 sll,ip,tcp")
	f.DurationP("timeout", "d", 0, "运行时长后退出")
	f.Duration("refresh", time.Second, "刷新间隔")
	f.String("save", "", "保留原始 dump 文件到指定路径")
	f.StringP("output", "o", "", "导出文件路径")
	f.String("format", "json", "导出格式 (json|csv|pcap)")
	f.Bool("no-tui", false, "禁用 TUI，逐行输出解码结果")

	viper.BindPFlag("capture.interface", f.Lookup("interface"))
	viper.BindPFlag("capture.filter", f.Lookup("filter"))
	viper.BindPFlag("capture.count", f.Lookup("count"))
	viper.BindPFlag("capture.snaplen", f.Lookup("snaplen"))
	viper.BindPFlag("capture.packet_type", f.Lookup("packet-type"))
	viper.BindPFlag("capture.layers", f.Lookup("layers"))
	viper.BindPFlag("display.refresh", f.Lookup("refresh"))
	viper.BindPFlag("output.duration", f.Lookup("timeout"))
	viper.BindPFlag("output.save_dump", f.Lookup("save"))
	viper.BindPFlag("output.file", f.Lookup("output"))
	viper.BindPFlag("output.format", f.Lookup("format"))
	viper.BindPFlag("output.no_tui", f.Lookup("no-tui"))
}

// buildFilter 合并结构化过滤条件与原始表达式
func buildFilter(raw string, hosts, protos []string, ports []int) string {
	var rules filter.And
	if len(protos) > 0 {
		var group filter.Or
		for _, p := range protos {
			group = append(group, filter.Simple(p))
		}
		rules = append(rules, group)
	}
	if len(hosts) > 0 {
		var group filter.Or
		for _, h := range hosts {
			group = append(group, filter.Host(h))
		}
		rules = append(rules, group)
	}
	if len(ports) > 0 {
		var group filter.Or
		for _, p := range ports {
			group = append(group, filter.Port(p))
		}
		rules = append(rules, group)
	}
	if len(rules) == 0 {
		return raw
	}
	if raw != "" {
		rules = append(rules, filter.Simple(raw))
	}
	return rules.Render()
}

func runCapture(cmd *cobra.Command, args []string) error {
	if _, err := export.ParseFormat(cfg.Output.Format); err != nil && cfg.Output.File != "" {
		return err
	}
	override, err := parser.ParseLayerKinds(cfg.Capture.Layers)
	if err != nil {
		return err
	}

	opts := cfg.Capture.Options()
	opts.Filter = buildFilter(opts.Filter, filterHosts, filterProtos, filterPorts)
	if cfg.Output.SaveDump != "" {
		opts.SaveDump = true
		opts.DumpFile = cfg.Output.SaveDump
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cfg.Output.Duration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Output.Duration)
		defer timeoutCancel()
	}

	s := &session{
		sup:      capture.NewSupervisor(cfg.Capture.Settings()),
		link:     parser.LinkLayerFor(opts.Interface),
		override: override,
		keep:     cfg.Output.File != "",
	}
	if cfg.Output.NoTUI {
		s.out = cmd.OutOrStdout()
	}

	startTime := time.Now()
	if err := s.sup.Start(opts); err != nil {
		return fmt.Errorf("启动抓包失败: %w", err)
	}
	logger.Info("抓包已启动", "interface", opts.Interface, "filter", opts.Filter)

	decoded := make(chan *parser.Packet, 1024)
	snapshots := make(chan []aggregator.FlowEntry, 10)
	agg := aggregator.NewAggregator(cfg.Display.Refresh)

	go func() {
		defer close(decoded)
		s.pump(ctx, decoded)
	}()
	go func() {
		// 输入关闭时 Run 会先输出最后一次快照
		agg.Run(context.Background(), decoded, snapshots)
		close(snapshots)
	}()

	// 最后一次快照用于导出，其余转发给 TUI
	var (
		lastEntries []aggregator.FlowEntry
		entriesMu   sync.Mutex
		collected   = make(chan struct{})
		view        = make(chan []aggregator.FlowEntry, 10)
	)
	go func() {
		defer close(collected)
		defer close(view)
		for entries := range snapshots {
			entriesMu.Lock()
			lastEntries = entries
			entriesMu.Unlock()
			select {
			case view <- entries:
			default:
			}
		}
	}()

	if !cfg.Output.NoTUI {
		hostname, _ := os.Hostname()
		tuiCfg := tui.Config{
			Interface: opts.Interface,
			Filter:    opts.Filter,
			Command:   describeCommand(cfg.Capture.Settings(), opts),
			Hostname:  hostname,
		}
		if err := tui.Run(tuiCfg, view); err != nil {
			cancel()
			<-collected
			return fmt.Errorf("TUI 错误: %w", err)
		}
		cancel()
	}
	<-collected

	if s.err != nil {
		logger.Warn("抓包异常结束", "error", s.err)
	}

	entriesMu.Lock()
	defer entriesMu.Unlock()
	if cfg.Output.File != "" {
		format, _ := export.ParseFormat(cfg.Output.Format)
		report := export.NewReport(opts.Interface, opts.Filter, s.link, s.packets, lastEntries)
		report.Duration = time.Since(startTime)
		if err := export.Export(report, cfg.Output.File, format); err != nil {
			return fmt.Errorf("导出失败: %w", err)
		}
		logger.Info("数据已导出", "file", cfg.Output.File, "packets", report.Total)
	}
	return s.err
}

func describeCommand(settings capture.Settings, opts capture.Options) string {
	tool := settings.Tool
	if tool == "" {
		tool = capture.DefaultSettings().Tool
	}
	cmdline := tool
	for _, a := range capture.BuildArgs(opts) {
		cmdline += " " + a
	}
	return cmdline
}

// session 一次抓包的解码状态，只在 pump 协程中修改
type session struct {
	sup      *capture.Supervisor
	link     parser.LayerKind
	override []parser.LayerKind
	keep     bool
	out      io.Writer

	packets []*parser.Packet
	err     error
}

// pump 定期取出记录并解码，直到抓包结束或 ctx 取消
func (s *session) pump(ctx context.Context, decoded chan<- *parser.Packet) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stop()
			s.drain(decoded)
			return
		case <-ticker.C:
			s.drain(decoded)
			if !s.sup.State().Live() {
				s.drain(decoded)
				s.err = s.sup.Err()
				return
			}
		}
	}
}

func (s *session) stop() {
	w, err := s.sup.Stop()
	if w != nil && !w.Finished() {
		logger.Warn("抓包未及时停止，强制结束")
		if kerr := w.Kill(); kerr != nil {
			logger.Error("强制结束失败", "error", kerr)
		}
	}
	if err != nil {
		s.err = err
	}
}

func (s *session) drain(decoded chan<- *parser.Packet) {
	for _, line := range s.sup.Info() {
		logger.Debug("抓包工具输出", "line", line)
	}

	raw, err := s.sup.WaitForPackets(0, 0)
	if err != nil {
		logger.Warn("读取记录失败", "error", err)
		return
	}
	for _, r := range raw {
		p := s.decode(r)
		if s.keep {
			s.packets = append(s.packets, p)
		}
		if s.out != nil {
			fmt.Fprintln(s.out, p.Summary())
		}
		decoded <- p
	}
}

// decode 解码失败的包同样保留，错误记录在 Packet.Errors 中
func (s *session) decode(r capture.RawPacket) *parser.Packet {
	if len(s.override) > 0 {
		p, _ := parser.Parse(r.Data, r.Timestamp, s.override)
		return p
	}
	p, _ := parser.ParseLink(r.Data, r.Timestamp, s.link)
	return p
}
