package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Packet 一条原始记录的解码结果
//
// Layers 只包含首个失败层之前成功解码的层，失败信息记录在 Errors 中，
// 键为 parse_errors.<layer>。
type Packet struct {
	Timestamp string              `json:"timestamp"`
	Length    int                 `json:"length"`
	Chain     []LayerKind         `json:"chain"`
	Layers    map[string]Layer    `json:"layers"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Payload   []byte              `json:"-"`

	data []byte
}

// Parse 从 Ethernet II 开始逐层解码，每层决定下一层
//
// override 非空时严格按给定层序解码，忽略各层的推荐。
// 返回的 Packet 永不为 nil：解码失败时同时返回部分结果与 *ParseError。
func Parse(data []byte, timestamp string, override []LayerKind) (*Packet, error) {
	p := newPacket(data, timestamp)
	if len(override) > 0 {
		return p, p.decodeForced(override)
	}
	return p, p.decodeFrom(LayerEthernet)
}

// ParseLink 从指定链路层开始，按推荐逐层解码
func ParseLink(data []byte, timestamp string, link LayerKind) (*Packet, error) {
	p := newPacket(data, timestamp)
	return p, p.decodeFrom(link)
}

func newPacket(data []byte, timestamp string) *Packet {
	return &Packet{
		Timestamp: timestamp,
		Length:    len(data),
		Layers:    make(map[string]Layer),
		Errors:    make(map[string][]string),
		data:      data,
	}
}

func (p *Packet) decodeFrom(kind LayerKind) error {
	buf := p.data
	for kind != LayerNone {
		layer, rest, err := p.decodeOne(kind, buf)
		if err != nil {
			return err
		}
		buf = rest
		kind = layer.NextLayer()
	}
	p.Payload = buf
	return nil
}

func (p *Packet) decodeForced(kinds []LayerKind) error {
	buf := p.data
	for _, kind := range kinds {
		_, rest, err := p.decodeOne(kind, buf)
		if err != nil {
			return err
		}
		buf = rest
	}
	p.Payload = buf
	return nil
}

func (p *Packet) decodeOne(kind LayerKind, buf []byte) (Layer, []byte, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, nil, p.record(failf(kind, "no decoder for layer %s", kind))
	}
	layer, rest, err := decode(buf)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			pe = &ParseError{Layer: kind, Reason: err.Error()}
		}
		p.Payload = buf
		return nil, nil, p.record(pe)
	}
	p.Layers[kind.String()] = layer
	p.Chain = append(p.Chain, kind)
	return layer, rest, nil
}

func (p *Packet) record(pe *ParseError) error {
	p.Errors[pe.Key()] = append(p.Errors[pe.Key()], pe.Reason)
	return pe
}

// Data 原始字节，解码不会修改
func (p *Packet) Data() []byte {
	return p.data
}

// Has 是否成功解码了某层
func (p *Packet) Has(kind LayerKind) bool {
	_, ok := p.Layers[kind.String()]
	return ok
}

// Failed 是否存在解码错误
func (p *Packet) Failed() bool {
	return len(p.Errors) > 0
}

// Ethernet 已解码的 Ethernet 层，没有时为 nil
func (p *Packet) Ethernet() *Ethernet {
	l, _ := p.Layers[LayerEthernet.String()].(*Ethernet)
	return l
}

// SLL 已解码的 cooked 层，没有时为 nil
func (p *Packet) SLL() *SLL {
	l, _ := p.Layers[LayerSLL.String()].(*SLL)
	return l
}

// IPv4 已解码的 IPv4 层，没有时为 nil
func (p *Packet) IPv4() *IPv4 {
	l, _ := p.Layers[LayerIPv4.String()].(*IPv4)
	return l
}

// TCP 已解码的 TCP 层，没有时为 nil
func (p *Packet) TCP() *TCP {
	l, _ := p.Layers[LayerTCP.String()].(*TCP)
	return l
}

// UDP 已解码的 UDP 层，没有时为 nil
func (p *Packet) UDP() *UDP {
	l, _ := p.Layers[LayerUDP.String()].(*UDP)
	return l
}

// ICMP 已解码的 ICMP 层，没有时为 nil
func (p *Packet) ICMP() *ICMP {
	l, _ := p.Layers[LayerICMP.String()].(*ICMP)
	return l
}

// ARP 已解码的 ARP 层，没有时为 nil
func (p *Packet) ARP() *ARP {
	l, _ := p.Layers[LayerARP.String()].(*ARP)
	return l
}

// Protocol 最上层已解码协议的名称
func (p *Packet) Protocol() string {
	if len(p.Chain) == 0 {
		return LayerNone.String()
	}
	return p.Chain[len(p.Chain)-1].String()
}

// Summary 单行描述
func (p *Packet) Summary() string {
	var b strings.Builder
	b.WriteString(p.Timestamp)
	b.WriteByte(' ')

	switch {
	case p.ARP() != nil:
		arp := p.ARP()
		if arp.Operation == ARPRequest {
			fmt.Fprintf(&b, "arp who-has %s tell %s", arp.TargetIP, arp.SenderIP)
		} else {
			fmt.Fprintf(&b, "arp reply %s is-at %s", arp.SenderIP, arp.SenderMAC)
		}
	case p.TCP() != nil && p.IPv4() != nil:
		ip, tcp := p.IPv4(), p.TCP()
		fmt.Fprintf(&b, "%s:%d > %s:%d tcp [%s] seq %d ack %d win %d len %d",
			ip.SourceIP, tcp.SourcePort, ip.DestIP, tcp.DestPort,
			tcp.FlagString(), tcp.Seq, tcp.Ack, tcp.WindowSize, len(p.Payload))
	case p.UDP() != nil && p.IPv4() != nil:
		ip, udp := p.IPv4(), p.UDP()
		fmt.Fprintf(&b, "%s:%d > %s:%d udp len %d",
			ip.SourceIP, udp.SourcePort, ip.DestIP, udp.DestPort, len(p.Payload))
	case p.ICMP() != nil && p.IPv4() != nil:
		ip, icmp := p.IPv4(), p.ICMP()
		fmt.Fprintf(&b, "%s > %s icmp %s id %d seq %d", ip.SourceIP, ip.DestIP, icmp.TypeString(), icmp.ID, icmp.Seq)
	case p.IPv4() != nil:
		ip := p.IPv4()
		fmt.Fprintf(&b, "%s > %s ip proto %d", ip.SourceIP, ip.DestIP, ip.Protocol)
	case p.Ethernet() != nil:
		eth := p.Ethernet()
		fmt.Fprintf(&b, "%s > %s ethertype 0x%04x", eth.SourceMAC, eth.DestMAC, eth.EtherType)
	case p.SLL() != nil:
		fmt.Fprintf(&b, "%s cooked proto 0x%04x", p.SLL().SourceMAC, p.SLL().Protocol)
	default:
		fmt.Fprintf(&b, "undecoded %d bytes", p.Length)
	}

	for key, reasons := range p.Errors {
		fmt.Fprintf(&b, " (%s: %s)", key, strings.Join(reasons, "; "))
	}
	return b.String()
}
