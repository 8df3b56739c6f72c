package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{"host", Host("foo"), "host foo"},
		{"dst port", Port(80, Dst()), "dst port 80"},
		{"src port", Port(22, Src()), "src port 22"},
		{"src and dst host", Host("10.0.0.1", Src(), Dst()), "src and dst host 10.0.0.1"},
		{"proto qualified port", Port(53, Proto("udp"), Dst()), "udp dst port 53"},
		{"ether host", Host("00:11:22:33:44:55", Proto("ether")), "ether host 00:11:22:33:44:55"},
		{"portrange", PortRange(1000, 2000, Proto("tcp")), "tcp portrange 1000-2000"},
		{"net", Net("10.0.0.0/8", Src()), "src net 10.0.0.0/8"},
		{"simple", Simple("icmp"), "icmp"},
		{"broadcast", Broadcast{}, "ether broadcast"},
		{"ip broadcast", Broadcast{Proto: "ip"}, "ip broadcast"},
		{"multicast", Multicast{}, "ether multicast"},
		{"compare", Compare{LHS: "ip[8]", Op: OpLt, RHS: "64"}, "ip[8] < 64"},
		{"empty and", And{}, ""},
		{"empty or", Or{}, ""},
		{"single and", And{Simple("foo")}, "( foo )"},
		{"pair and", And{Simple("foo"), Simple("bar")}, "( foo ) and ( bar )"},
		{"triple or", Or{Simple("a"), Simple("b"), Simple("c")}, "( a ) or ( b ) or ( c )"},
		{"not multicast", Not{Multicast{}}, "not ( ether multicast )"},
		{"empty not", Not{}, ""},
		{"not of empty and", Not{And{}}, ""},
		{"and skips empty child", And{And{}, Simple("x")}, "( x )"},
		{"or skips nil child", Or{nil, Simple("a"), Not{}, Simple("b")}, "( a ) or ( b )"},
		{"and skips nil primitive", And{(*Primitive)(nil), Simple("x")}, "( x )"},
		{
			"nested",
			And{Host("10.0.0.2"), Or{Simple("icmp"), Port(22, Proto("tcp"))}, Not{Broadcast{}}},
			"( host 10.0.0.2 ) and ( ( icmp ) or ( tcp port 22 ) ) and ( not ( ether broadcast ) )",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Render())
		})
	}
}

func TestRenderIsStable(t *testing.T) {
	r := And{Host("a"), Not{Simple("arp")}}
	assert.Equal(t, r.Render(), r.Render())
}
