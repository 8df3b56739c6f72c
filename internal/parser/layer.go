package parser

import (
	"fmt"
	"strings"
)

// LayerKind 可解码的协议层
type LayerKind uint8

const (
	LayerNone LayerKind = iota
	LayerEthernet
	LayerSLL
	LayerIPv4
	LayerTCP
	LayerUDP
	LayerICMP
	LayerARP
)

var layerNames = map[LayerKind]string{
	LayerNone:     "none",
	LayerEthernet: "ethernet",
	LayerSLL:      "sll",
	LayerIPv4:     "ip",
	LayerTCP:      "tcp",
	LayerUDP:      "udp",
	LayerICMP:     "icmp",
	LayerARP:      "arp",
}

// String 返回层在 Packet.Layers 中的键
func (k LayerKind) String() string {
	if name, ok := layerNames[k]; ok {
		return name
	}
	return fmt.Sprintf("layer(%d)", uint8(k))
}

// MarshalText 导出 JSON 时使用层名
func (k LayerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseLayerKind 层名转 LayerKind，接受 ip/ipv4 与 sll/cooked 别名
func ParseLayerKind(name string) (LayerKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ethernet", "eth", "ether":
		return LayerEthernet, nil
	case "sll", "cooked", "linux_sll":
		return LayerSLL, nil
	case "ip", "ipv4":
		return LayerIPv4, nil
	case "tcp":
		return LayerTCP, nil
	case "udp":
		return LayerUDP, nil
	case "icmp":
		return LayerICMP, nil
	case "arp":
		return LayerARP, nil
	default:
		return LayerNone, fmt.Errorf("%w: %q", ErrInvalidLayer, name)
	}
}

// ParseLayerKinds 批量转换，用于层序覆盖
func ParseLayerKinds(names []string) ([]LayerKind, error) {
	kinds := make([]LayerKind, 0, len(names))
	for _, n := range names {
		k, err := ParseLayerKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// LinkLayerFor 根据抓包网卡推断链路层，伪网卡 any 使用 cooked 封装
func LinkLayerFor(iface string) LayerKind {
	if iface == "any" {
		return LayerSLL
	}
	return LayerEthernet
}

// Layer 已解码的协议层
type Layer interface {
	// Kind 本层类型
	Kind() LayerKind
	// NextLayer 根据本层字段推荐的下一层，终止层返回 LayerNone
	NextLayer() LayerKind
}

// decodeFunc 解码一层，返回层对象与未消费的剩余字节
type decodeFunc func(buf []byte) (Layer, []byte, error)

var decoders = map[LayerKind]decodeFunc{
	LayerEthernet: decodeEthernet,
	LayerSLL:      decodeSLL,
	LayerIPv4:     decodeIPv4,
	LayerTCP:      decodeTCP,
	LayerUDP:      decodeUDP,
	LayerICMP:     decodeICMP,
	LayerARP:      decodeARP,
}

// etherTypeLayer EtherType 到下一层
func etherTypeLayer(etherType uint16) LayerKind {
	switch etherType {
	case EtherTypeIPv4:
		return LayerIPv4
	case EtherTypeARP:
		return LayerARP
	default:
		return LayerNone
	}
}
