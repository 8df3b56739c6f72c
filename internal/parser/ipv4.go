package parser

const (
	IPProtoICMP uint8 = 1
	IPProtoTCP  uint8 = 6
	IPProtoUDP  uint8 = 17

	ipv4MinHeaderLen = 20
)

// IPv4 IPv4 头
type IPv4 struct {
	Version        uint8  `json:"version"`
	HeaderLength   int    `json:"header_length"`
	TOS            uint8  `json:"tos"`
	TotalLength    uint16 `json:"total_length"`
	ID             uint16 `json:"id"`
	Flags          uint8  `json:"flags"`
	FragmentOffset uint16 `json:"fragment_offset"`
	TTL            uint8  `json:"ttl"`
	Protocol       uint8  `json:"protocol"`
	Checksum       uint16 `json:"checksum"`
	SourceIP       string `json:"source_ip"`
	DestIP         string `json:"dest_ip"`
	Options        []byte `json:"options,omitempty"`
}

// Kind 层类型
func (ip *IPv4) Kind() LayerKind { return LayerIPv4 }

// NextLayer 按协议号推荐 TCP/UDP/ICMP
func (ip *IPv4) NextLayer() LayerKind {
	switch ip.Protocol {
	case IPProtoTCP:
		return LayerTCP
	case IPProtoUDP:
		return LayerUDP
	case IPProtoICMP:
		return LayerICMP
	default:
		return LayerNone
	}
}

// decodeIPv4 剩余字节截断到 total length，丢弃以太网填充
func decodeIPv4(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerIPv4, buf, ipv4MinHeaderLen); err != nil {
		return nil, nil, err
	}

	hdrLen := int(buf[0]&0x0f) * 4
	if hdrLen < ipv4MinHeaderLen {
		return nil, nil, failf(LayerIPv4, "ip header length field must be at least %d, got %d", ipv4MinHeaderLen, hdrLen)
	}
	if hdrLen > len(buf) {
		return nil, nil, failf(LayerIPv4, "ip header length field (%d) is longer than the packet size (%d)", hdrLen, len(buf))
	}

	total := int(u16At(buf, 2))
	if total > len(buf) {
		return nil, nil, failf(LayerIPv4, "ip total length field (%d) is longer than the packet size (%d)", total, len(buf))
	}
	if total < hdrLen {
		return nil, nil, failf(LayerIPv4, "ip total length field must be at least %d, got %d", hdrLen, total)
	}

	flagsFrag := u16At(buf, 6)
	ip := &IPv4{
		Version:        buf[0] >> 4,
		HeaderLength:   hdrLen,
		TOS:            buf[1],
		TotalLength:    uint16(total),
		ID:             u16At(buf, 4),
		Flags:          uint8(flagsFrag >> 13),
		FragmentOffset: flagsFrag & 0x1fff,
		TTL:            buf[8],
		Protocol:       buf[9],
		Checksum:       u16At(buf, 10),
		SourceIP:       ipAt(buf, 12),
		DestIP:         ipAt(buf, 16),
	}
	if hdrLen > ipv4MinHeaderLen {
		ip.Options = buf[ipv4MinHeaderLen:hdrLen]
	}
	return ip, buf[hdrLen:total], nil
}
