package capture

import (
	"net"
)

// AnyInterface 抓取全部网卡的伪网卡，链路层为 Linux cooked capture
const AnyInterface = "any"

// DiscoverInterfaces 返回 name 实际覆盖的网卡
//
// name 为 any 或空时列出全部已启用网卡，includeLoopback 控制是否包含回环网卡；
// 其它名称原样返回，不检查是否存在。
func DiscoverInterfaces(name string, includeLoopback bool) ([]string, error) {
	if name != "" && name != AnyInterface {
		return []string{name}, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var result []string
	for _, iface := range ifaces {
		// 跳过未启用的接口
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if !includeLoopback && iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		result = append(result, iface.Name)
	}
	return result, nil
}
