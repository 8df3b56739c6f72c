//go:build linux

package diagnose

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/nickproject/pktwatch/internal/capture"
)

// InterfaceInfo 网卡状态
type InterfaceInfo struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	OperState string   `json:"oper_state"`
	Up        bool     `json:"up"`
	MTU       int      `json:"mtu"`
	MAC       string   `json:"mac,omitempty"`
	Master    int      `json:"master_index,omitempty"` // 所属网桥的 ifindex
	Addrs     []string `json:"addrs,omitempty"`
}

func checkInterface(report *Report, name string) {
	if name == capture.AnyInterface {
		names, err := capture.DiscoverInterfaces(name, true)
		if err != nil {
			report.AddCheckWithError("interface", StatusWarning, "无法列出网卡", err)
			return
		}
		report.AddCheckWithDetails("interface", StatusPass, "any 覆盖全部已启用网卡", names)
		return
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		report.AddCheckWithError("interface", StatusFail, "找不到网卡: "+name, err)
		return
	}
	info := linkInfo(link)

	if !info.Up {
		report.AddCheckWithDetails("interface", StatusFail, name+" 未启用", info)
		return
	}
	report.AddCheckWithDetails("interface", StatusPass, name+" 已启用", info)
}

func linkInfo(link netlink.Link) InterfaceInfo {
	attrs := link.Attrs()
	info := InterfaceInfo{
		Name:      attrs.Name,
		Type:      link.Type(),
		OperState: attrs.OperState.String(),
		Up:        attrs.Flags&net.FlagUp != 0,
		MTU:       attrs.MTU,
		Master:    attrs.MasterIndex,
	}
	if len(attrs.HardwareAddr) > 0 {
		info.MAC = attrs.HardwareAddr.String()
	}
	if addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL); err == nil {
		for _, a := range addrs {
			info.Addrs = append(info.Addrs, a.IPNet.String())
		}
	}
	return info
}
