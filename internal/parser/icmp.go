package parser

import "fmt"

const (
	ICMPEchoReply   uint8 = 0
	ICMPUnreachable uint8 = 3
	ICMPEchoRequest uint8 = 8
	ICMPTimeExceed  uint8 = 11

	icmpHeaderLen = 8
)

// ICMP ICMPv4 头，ID/Seq 仅对 echo 类报文有意义
type ICMP struct {
	Type     uint8  `json:"type"`
	Code     uint8  `json:"code"`
	Checksum uint16 `json:"checksum"`
	ID       uint16 `json:"id"`
	Seq      uint16 `json:"seq"`
}

// Kind 层类型
func (i *ICMP) Kind() LayerKind { return LayerICMP }

// NextLayer ICMP 是终止层
func (i *ICMP) NextLayer() LayerKind { return LayerNone }

// TypeString 常见类型的可读名称
func (i *ICMP) TypeString() string {
	switch i.Type {
	case ICMPEchoReply:
		return "echo reply"
	case ICMPEchoRequest:
		return "echo request"
	case ICMPUnreachable:
		return "unreachable"
	case ICMPTimeExceed:
		return "time exceeded"
	default:
		return fmt.Sprintf("type %d code %d", i.Type, i.Code)
	}
}

func decodeICMP(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerICMP, buf, icmpHeaderLen); err != nil {
		return nil, nil, err
	}
	icmp := &ICMP{
		Type:     buf[0],
		Code:     buf[1],
		Checksum: u16At(buf, 2),
		ID:       u16At(buf, 4),
		Seq:      u16At(buf, 6),
	}
	return icmp, buf[icmpHeaderLen:], nil
}
