package parser

const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2

	arpLen = 28
)

// ARP 仅支持以太网/IPv4 地址
type ARP struct {
	HardwareType uint16 `json:"hardware_type"`
	ProtocolType uint16 `json:"protocol_type"`
	HwAddrLen    uint8  `json:"hw_addr_len"`
	ProtoAddrLen uint8  `json:"proto_addr_len"`
	Operation    uint16 `json:"operation"`
	SenderMAC    string `json:"sender_mac"`
	SenderIP     string `json:"sender_ip"`
	TargetMAC    string `json:"target_mac"`
	TargetIP     string `json:"target_ip"`
}

// Kind 层类型
func (a *ARP) Kind() LayerKind { return LayerARP }

// NextLayer ARP 是终止层
func (a *ARP) NextLayer() LayerKind { return LayerNone }

func decodeARP(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerARP, buf, arpLen); err != nil {
		return nil, nil, err
	}
	if buf[4] != 6 || buf[5] != 4 {
		return nil, nil, failf(LayerARP, "arp address length fields must be 6 and 4, got %d and %d", buf[4], buf[5])
	}
	arp := &ARP{
		HardwareType: u16At(buf, 0),
		ProtocolType: u16At(buf, 2),
		HwAddrLen:    buf[4],
		ProtoAddrLen: buf[5],
		Operation:    u16At(buf, 6),
		SenderMAC:    macAt(buf, 8),
		SenderIP:     ipAt(buf, 14),
		TargetMAC:    macAt(buf, 18),
		TargetIP:     ipAt(buf, 24),
	}
	return arp, buf[arpLen:], nil
}
