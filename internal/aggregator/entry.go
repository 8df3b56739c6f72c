package aggregator

import (
	"strconv"
	"time"

	"github.com/nickproject/pktwatch/internal/parser"
)

// FlowEntry 一条会话的聚合结果
//
// A/B 为排序后的两个端点，AtoB/BtoA 分别为两个方向的累计字节。
type FlowEntry struct {
	DisplayName string    `json:"flow"`
	Protocol    string    `json:"protocol"`
	A           string    `json:"a"`
	B           string    `json:"b"`
	Packets     uint64    `json:"packets"`
	AtoB        uint64    `json:"a_to_b_bytes"`
	BtoA        uint64    `json:"b_to_a_bytes"`
	AtoBRate    uint64    `json:"a_to_b_rate"` // bytes/s
	BtoARate    uint64    `json:"b_to_a_rate"`
	Errors      uint64    `json:"parse_errors"`
	TCPFlags    string    `json:"tcp_flags,omitempty"` // 出现过的 TCP 标志
	FirstSeen   string    `json:"first_seen"`          // 抓包工具的时间戳
	LastSeen    string    `json:"last_seen"`
	Updated     time.Time `json:"-"`
}

// TotalRate 返回总速率
func (e *FlowEntry) TotalRate() uint64 {
	return e.AtoBRate + e.BtoARate
}

// Total 返回总流量
func (e *FlowEntry) Total() uint64 {
	return e.AtoB + e.BtoA
}

// FlowKey 会话键，端点已排序，两个方向映射到同一个键
type FlowKey struct {
	Protocol string
	A        string
	B        string
}

func (k FlowKey) String() string {
	if k.A == "" {
		return k.Protocol
	}
	if k.B == "" {
		return k.Protocol + " " + k.A
	}
	return k.Protocol + " " + k.A + " <-> " + k.B
}

// KeyOf 从解码结果生成会话键，forward 表示包的方向为 A 到 B
//
// 只使用已成功解码的层，解码失败的包按最深的可用层归类。
func KeyOf(p *parser.Packet) (key FlowKey, forward bool) {
	var src, dst string
	switch ip := p.IPv4(); {
	case p.TCP() != nil && ip != nil:
		key.Protocol = "tcp"
		src, dst = endpoint(ip.SourceIP, p.TCP().SourcePort), endpoint(ip.DestIP, p.TCP().DestPort)
	case p.UDP() != nil && ip != nil:
		key.Protocol = "udp"
		src, dst = endpoint(ip.SourceIP, p.UDP().SourcePort), endpoint(ip.DestIP, p.UDP().DestPort)
	case ip != nil:
		key.Protocol = p.Protocol()
		src, dst = ip.SourceIP, ip.DestIP
	case p.ARP() != nil:
		key.Protocol = "arp"
		src, dst = p.ARP().SenderIP, p.ARP().TargetIP
	case p.Ethernet() != nil:
		key.Protocol = "ethernet"
		src, dst = p.Ethernet().SourceMAC, p.Ethernet().DestMAC
	case p.SLL() != nil:
		key.Protocol = "sll"
		src = p.SLL().SourceMAC
	default:
		key.Protocol = "undecoded"
	}

	if dst != "" && dst < src {
		key.A, key.B = dst, src
		return key, false
	}
	key.A, key.B = src, dst
	return key, true
}

func endpoint(ip string, port uint16) string {
	return ip + ":" + strconv.Itoa(int(port))
}
