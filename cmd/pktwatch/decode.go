package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickproject/pktwatch/internal/aggregator"
	"github.com/nickproject/pktwatch/internal/capture"
	"github.com/nickproject/pktwatch/internal/export"
	"github.com/nickproject/pktwatch/internal/parser"
)

var (
	decodeLayers []string
	decodeLink   string
	decodeOutput string
	decodeFormat string
	decodeFlows  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode DUMPFILE",
	Short: "解码保存的 dump 文件",
	Example: `  pktwatch decode eth0.dump
  pktwatch decode any.dump --link any
  pktwatch decode eth0.dump --layers ethernet,ip,udp -o out.pcap --format pcap`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringSliceVar(&decodeLayers, "layers", nil, "强制解码层序，如 sll,ip,tcp")
	f.StringVar(&decodeLink, "link", "", "链路层 (ethernet|sll)，或抓包网卡名，any 对应 sll")
	f.StringVarP(&decodeOutput, "output", "o", "", "导出文件路径")
	f.StringVar(&decodeFormat, "format", "json", "导出格式 (json|csv|pcap)")
	f.BoolVar(&decodeFlows, "flows", false, "输出会话汇总")
}

// resolveLink 空值为 ethernet；既不是层名也不是 any 时按网卡名处理
func resolveLink(s string) parser.LayerKind {
	if s == "" {
		return parser.LayerEthernet
	}
	if k, err := parser.ParseLayerKind(s); err == nil {
		return k
	}
	return parser.LinkLayerFor(s)
}

func runDecode(cmd *cobra.Command, args []string) error {
	override, err := parser.ParseLayerKinds(decodeLayers)
	if err != nil {
		return err
	}
	link := resolveLink(decodeLink)

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	raw, err := capture.ReadDump(f)
	if err != nil {
		return fmt.Errorf("读取 dump 失败: %w", err)
	}

	agg := aggregator.NewAggregator(time.Second)
	packets := make([]*parser.Packet, 0, len(raw))
	out := cmd.OutOrStdout()
	for _, r := range raw {
		var p *parser.Packet
		if len(override) > 0 {
			p, _ = parser.Parse(r.Data, r.Timestamp, override)
		} else {
			p, _ = parser.ParseLink(r.Data, r.Timestamp, link)
		}
		packets = append(packets, p)
		agg.Add(p)
		if decodeOutput == "" {
			fmt.Fprintln(out, p.Summary())
		}
	}

	flows := agg.Snapshot()
	aggregator.Sort(flows, aggregator.SortByTotal)
	if decodeFlows {
		for _, e := range flows {
			fmt.Fprintf(out, "%-48s %8d pkts %10d bytes %4d errors\n", e.DisplayName, e.Packets, e.Total(), e.Errors)
		}
	}

	if decodeOutput != "" {
		format, err := export.ParseFormat(decodeFormat)
		if err != nil {
			return err
		}
		report := export.NewReport("", "", link, packets, flows)
		if err := export.Export(report, decodeOutput, format); err != nil {
			return fmt.Errorf("导出失败: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d 个包已导出到 %s\n", len(packets), decodeOutput)
	}
	return nil
}
