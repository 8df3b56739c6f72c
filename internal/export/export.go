package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/nickproject/pktwatch/internal/aggregator"
	"github.com/nickproject/pktwatch/internal/parser"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatPcap ExportFormat = "pcap"
)

// Report 导出报告
type Report struct {
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Interface string                 `json:"interface"`
	Filter    string                 `json:"filter,omitempty"`
	Link      parser.LayerKind       `json:"link"`
	Total     int                    `json:"total_packets"`
	Errors    int                    `json:"parse_errors"`
	Flows     []aggregator.FlowEntry `json:"flows"`
	Packets   []*parser.Packet       `json:"packets,omitempty"`
}

// NewReport 汇总解码结果
func NewReport(iface, filter string, link parser.LayerKind, packets []*parser.Packet, flows []aggregator.FlowEntry) *Report {
	r := &Report{
		Timestamp: time.Now(),
		Interface: iface,
		Filter:    filter,
		Link:      link,
		Total:     len(packets),
		Flows:     flows,
		Packets:   packets,
	}
	for _, p := range packets {
		if p.Failed() {
			r.Errors++
		}
	}
	return r
}

// Export 导出数据到文件
func Export(report *Report, filename string, format ExportFormat) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	switch format {
	case FormatJSON:
		return exportJSON(report, file)
	case FormatCSV:
		return exportCSV(report, file)
	case FormatPcap:
		return WritePcap(file, report.Link, report.Timestamp.Add(-report.Duration), report.Packets)
	default:
		return fmt.Errorf("不支持的格式: %s", format)
	}
}

func exportJSON(report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func exportCSV(report *Report, w io.Writer) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"flow",
		"protocol",
		"a",
		"b",
		"packets",
		"a_to_b_bytes",
		"b_to_a_bytes",
		"parse_errors",
		"tcp_flags",
		"first_seen",
		"last_seen",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, entry := range report.Flows {
		row := []string{
			entry.DisplayName,
			entry.Protocol,
			entry.A,
			entry.B,
			strconv.FormatUint(entry.Packets, 10),
			strconv.FormatUint(entry.AtoB, 10),
			strconv.FormatUint(entry.BtoA, 10),
			strconv.FormatUint(entry.Errors, 10),
			entry.TCPFlags,
			entry.FirstSeen,
			entry.LastSeen,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ParseFormat 解析格式字符串
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPcap:
		return FormatPcap, nil
	default:
		return "", fmt.Errorf("不支持的格式: %s (支持: json, csv, pcap)", s)
	}
}
