//go:build !linux

package diagnose

import (
	"net"

	"github.com/nickproject/pktwatch/internal/capture"
)

// InterfaceInfo 网卡状态
type InterfaceInfo struct {
	Name  string   `json:"name"`
	Up    bool     `json:"up"`
	MTU   int      `json:"mtu"`
	MAC   string   `json:"mac,omitempty"`
	Addrs []string `json:"addrs,omitempty"`
}

func checkInterface(report *Report, name string) {
	if name == capture.AnyInterface {
		report.AddCheck("interface", StatusWarning, "any 仅在 Linux 上可用")
		return
	}

	iface, err := net.InterfaceByName(name)
	if err != nil {
		report.AddCheckWithError("interface", StatusFail, "找不到网卡: "+name, err)
		return
	}
	info := InterfaceInfo{
		Name: iface.Name,
		Up:   iface.Flags&net.FlagUp != 0,
		MTU:  iface.MTU,
		MAC:  iface.HardwareAddr.String(),
	}
	if addrs, err := iface.Addrs(); err == nil {
		for _, a := range addrs {
			info.Addrs = append(info.Addrs, a.String())
		}
	}

	if !info.Up {
		report.AddCheckWithDetails("interface", StatusFail, name+" 未启用", info)
		return
	}
	report.AddCheckWithDetails("interface", StatusPass, name+" 已启用", info)
}
