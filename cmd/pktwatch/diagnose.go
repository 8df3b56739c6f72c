package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickproject/pktwatch/internal/diagnose"
)

var (
	diagnoseIface  string
	diagnoseOutput string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "检查抓包环境（工具、权限、网卡）",
	Args:  cobra.NoArgs,
	RunE:  runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseIface, "interface", "i", "", "检查的网卡，默认使用配置中的网卡")
	diagnoseCmd.Flags().StringVarP(&diagnoseOutput, "output", "o", "", "报告写入文件")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	iface := diagnoseIface
	if iface == "" {
		iface = cfg.Capture.Interface
	}

	report := diagnose.Run(diagnose.Options{
		Interface: iface,
		Tool:      cfg.Capture.Tool,
		Tee:       cfg.Capture.Tee,
	})

	if diagnoseOutput != "" {
		if err := report.OutputJSONToFile(diagnoseOutput); err != nil {
			return err
		}
	} else if err := report.OutputJSON(cmd.OutOrStdout()); err != nil {
		return err
	}

	if report.Status == diagnose.StatusFail {
		return fmt.Errorf("诊断未通过: %s", report.Summary)
	}
	return nil
}
