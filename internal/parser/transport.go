package parser

import "strings"

const (
	tcpMinHeaderLen = 20
	udpHeaderLen    = 8
)

// TCPFlag TCP 控制位，NS 位于数据偏移字节的最低位
type TCPFlag uint16

const (
	FlagFIN TCPFlag = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

var flagNames = []struct {
	flag TCPFlag
	name string
}{
	{FlagNS, "NS"},
	{FlagCWR, "CWR"},
	{FlagECE, "ECE"},
	{FlagURG, "URG"},
	{FlagACK, "ACK"},
	{FlagPSH, "PSH"},
	{FlagRST, "RST"},
	{FlagSYN, "SYN"},
	{FlagFIN, "FIN"},
}

// TCP TCP 头
type TCP struct {
	SourcePort    uint16  `json:"source_port"`
	DestPort      uint16  `json:"dest_port"`
	Seq           uint32  `json:"seq"`
	Ack           uint32  `json:"ack"`
	DataOffset    int     `json:"data_offset"`
	Flags         TCPFlag `json:"flags"`
	WindowSize    uint16  `json:"window_size"`
	Checksum      uint16  `json:"checksum"`
	UrgentPointer uint16  `json:"urgent_pointer"`
	Options       []byte  `json:"options,omitempty"`
}

// Kind 层类型
func (t *TCP) Kind() LayerKind { return LayerTCP }

// NextLayer TCP 是终止层
func (t *TCP) NextLayer() LayerKind { return LayerNone }

// Has 判断控制位是否置位
func (t *TCP) Has(f TCPFlag) bool {
	return t.Flags&f != 0
}

// FlagString 形如 "ACK,PSH" 的置位列表
func (t *TCP) FlagString() string {
	return t.Flags.String()
}

func (f TCPFlag) String() string {
	var set []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			set = append(set, fn.name)
		}
	}
	return strings.Join(set, ",")
}

func decodeTCP(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerTCP, buf, tcpMinHeaderLen); err != nil {
		return nil, nil, err
	}

	offset := int(buf[12]>>4) * 4
	if offset < tcpMinHeaderLen {
		return nil, nil, failf(LayerTCP, "tcp data offset field must be at least %d, got %d", tcpMinHeaderLen, offset)
	}
	if offset > len(buf) {
		return nil, nil, failf(LayerTCP, "tcp data offset field (%d) is longer than the packet size (%d)", offset, len(buf))
	}

	tcp := &TCP{
		SourcePort:    u16At(buf, 0),
		DestPort:      u16At(buf, 2),
		Seq:           u32At(buf, 4),
		Ack:           u32At(buf, 8),
		DataOffset:    offset,
		Flags:         TCPFlag(Combine16(buf[12]&0x01, buf[13])),
		WindowSize:    u16At(buf, 14),
		Checksum:      u16At(buf, 16),
		UrgentPointer: u16At(buf, 18),
	}
	if offset > tcpMinHeaderLen {
		tcp.Options = buf[tcpMinHeaderLen:offset]
	}
	return tcp, buf[offset:], nil
}

// UDP UDP 头
type UDP struct {
	SourcePort uint16 `json:"source_port"`
	DestPort   uint16 `json:"dest_port"`
	Length     uint16 `json:"length"`
	Checksum   uint16 `json:"checksum"`
}

// Kind 层类型
func (u *UDP) Kind() LayerKind { return LayerUDP }

// NextLayer UDP 是终止层
func (u *UDP) NextLayer() LayerKind { return LayerNone }

func decodeUDP(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerUDP, buf, udpHeaderLen); err != nil {
		return nil, nil, err
	}

	length := int(u16At(buf, 4))
	if length < udpHeaderLen {
		return nil, nil, failf(LayerUDP, "udp length field must be at least %d, got %d", udpHeaderLen, length)
	}
	if length > len(buf) {
		return nil, nil, failf(LayerUDP, "udp length field (%d) is longer than the packet size (%d)", length, len(buf))
	}

	udp := &UDP{
		SourcePort: u16At(buf, 0),
		DestPort:   u16At(buf, 2),
		Length:     uint16(length),
		Checksum:   u16At(buf, 6),
	}
	return udp, buf[udpHeaderLen:length], nil
}
