package parser

const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806

	ethernetHeaderLen = 14
	sllHeaderLen      = 16
)

// ZeroMAC cooked 封装不携带目的 MAC，统一填零
const ZeroMAC = "00:00:00:00:00:00"

// Ethernet Ethernet II 帧头
type Ethernet struct {
	DestMAC   string `json:"dest_mac"`
	SourceMAC string `json:"source_mac"`
	EtherType uint16 `json:"ether_type"`
}

// Kind 层类型
func (e *Ethernet) Kind() LayerKind { return LayerEthernet }

// NextLayer 按 EtherType 推荐下一层
func (e *Ethernet) NextLayer() LayerKind { return etherTypeLayer(e.EtherType) }

func decodeEthernet(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerEthernet, buf, ethernetHeaderLen); err != nil {
		return nil, nil, err
	}
	eth := &Ethernet{
		DestMAC:   macAt(buf, 0),
		SourceMAC: macAt(buf, 6),
		EtherType: u16At(buf, 12),
	}
	return eth, buf[ethernetHeaderLen:], nil
}

// SLL Linux cooked capture 头，在伪网卡 any 上抓包时出现
//
//	0      2        4          6           14        16
//	| type | arphrd | addr len | addr (8B) | protocol |
type SLL struct {
	PacketType uint16 `json:"packet_type"`
	ARPHRDType uint16 `json:"arphrd_type"`
	AddrLen    uint16 `json:"addr_len"`
	SourceMAC  string `json:"source_mac"`
	DestMAC    string `json:"dest_mac"`
	Protocol   uint16 `json:"protocol"`
}

// Kind 层类型
func (s *SLL) Kind() LayerKind { return LayerSLL }

// NextLayer 按协议字段推荐下一层
func (s *SLL) NextLayer() LayerKind { return etherTypeLayer(s.Protocol) }

func decodeSLL(buf []byte) (Layer, []byte, error) {
	if err := needAtLeast(LayerSLL, buf, sllHeaderLen); err != nil {
		return nil, nil, err
	}
	sll := &SLL{
		PacketType: u16At(buf, 0),
		ARPHRDType: u16At(buf, 2),
		AddrLen:    u16At(buf, 4),
		SourceMAC:  macAt(buf, 6),
		DestMAC:    ZeroMAC,
		Protocol:   u16At(buf, 14),
	}
	return sll, buf[sllHeaderLen:], nil
}
