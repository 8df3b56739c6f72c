package filter

import (
	"strconv"
	"strings"
)

// Rule 抓包过滤表达式节点
type Rule interface {
	// Render 渲染为抓包工具可识别的 pcap-filter 文本
	Render() string
}

// Direction 源/目的限定
type Direction uint8

const (
	DirAny       Direction = iota // 不限定
	DirSrc                        // src
	DirDst                        // dst
	DirSrcAndDst                  // src and dst
)

// prefix 返回方向限定前缀
func (d Direction) prefix() string {
	switch d {
	case DirSrc:
		return "src "
	case DirDst:
		return "dst "
	case DirSrcAndDst:
		return "src and dst "
	default:
		return ""
	}
}

// Qualifier 修饰地址类原语
type Qualifier func(*Primitive)

// Proto 设置协议限定 (ether/ip/ip6/arp/tcp/udp/...)
func Proto(proto string) Qualifier {
	return func(p *Primitive) {
		p.Proto = proto
	}
}

// Src 仅匹配源
func Src() Qualifier {
	return func(p *Primitive) {
		p.Dir |= DirSrc
	}
}

// Dst 仅匹配目的
func Dst() Qualifier {
	return func(p *Primitive) {
		p.Dir |= DirDst
	}
}

// Primitive 地址匹配原语: host / port / portrange / net
type Primitive struct {
	Type  string
	ID    string
	Proto string
	Dir   Direction
}

// Render 渲染原语，格式为 "[proto ][dir ]type id"
func (p *Primitive) Render() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Proto != "" {
		b.WriteString(p.Proto)
		b.WriteByte(' ')
	}
	b.WriteString(p.Dir.prefix())
	b.WriteString(p.Type)
	b.WriteByte(' ')
	b.WriteString(p.ID)
	return b.String()
}

func newPrimitive(typ, id string, qs []Qualifier) *Primitive {
	p := &Primitive{Type: typ, ID: id}
	for _, q := range qs {
		q(p)
	}
	return p
}

// Host 匹配主机地址
func Host(addr string, qs ...Qualifier) *Primitive {
	return newPrimitive("host", addr, qs)
}

// Port 匹配端口
func Port(port int, qs ...Qualifier) *Primitive {
	return newPrimitive("port", strconv.Itoa(port), qs)
}

// PortRange 匹配端口区间 [start, end]
func PortRange(start, end int, qs ...Qualifier) *Primitive {
	return newPrimitive("portrange", strconv.Itoa(start)+"-"+strconv.Itoa(end), qs)
}

// Net 匹配网段，cidr 形如 10.0.0.0/8
func Net(cidr string, qs ...Qualifier) *Primitive {
	return newPrimitive("net", cidr, qs)
}

// Simple 原样输出的协议类型谓词，如 "tcp"、"icmp"、"arp"
type Simple string

// Render 原样返回
func (s Simple) Render() string {
	return string(s)
}

// Broadcast 广播帧谓词，proto 为空时使用 ether
type Broadcast struct {
	Proto string
}

// Render 渲染为 "<proto> broadcast"
func (b Broadcast) Render() string {
	return orEther(b.Proto) + " broadcast"
}

// Multicast 组播帧谓词，proto 为空时使用 ether
type Multicast struct {
	Proto string
}

// Render 渲染为 "<proto> multicast"
func (m Multicast) Render() string {
	return orEther(m.Proto) + " multicast"
}

func orEther(proto string) string {
	if proto == "" {
		return "ether"
	}
	return proto
}

// 比较运算符
const (
	OpEq = "="
	OpNe = "!="
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
)

// Compare 关系比较，两侧操作数由调用方给出，不做类型检查
// 例如 Compare{LHS: "ip[8]", Op: OpLt, RHS: "64"}
type Compare struct {
	LHS string
	Op  string
	RHS string
}

// Render 渲染为 "lhs op rhs"
func (c Compare) Render() string {
	return c.LHS + " " + c.Op + " " + c.RHS
}

// And 逻辑与
type And []Rule

// Render 见 join
func (a And) Render() string {
	return join([]Rule(a), "and")
}

// Or 逻辑或
type Or []Rule

// Render 见 join
func (o Or) Render() string {
	return join([]Rule(o), "or")
}

// Not 逻辑非
type Not struct {
	Rule Rule
}

// Render 渲染为 "not ( child )"，子规则为空时输出空串
func (n Not) Render() string {
	child := render(n.Rule)
	if child == "" {
		return ""
	}
	return "not ( " + child + " )"
}

// render nil 规则渲染为空串
func render(r Rule) string {
	if r == nil {
		return ""
	}
	return r.Render()
}

// join 每个子规则加括号后以关键字连接，渲染为空的子规则跳过
// 零个子规则输出空串，一个子规则只加括号
func join(rules []Rule, keyword string) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		if text := render(r); text != "" {
			parts = append(parts, "( "+text+" )")
		}
	}
	return strings.Join(parts, " "+keyword+" ")
}
