package aggregator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickproject/pktwatch/internal/parser"
)

var (
	hostA = net.IP{10, 0, 0, 1}
	hostB = net.IP{10, 0, 0, 2}
	macA  = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
	macB  = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x03}
)

func tcpPacket(t *testing.T, ts string, src, dst net.IP, sport, dport layers.TCPPort, syn, ack bool, payload string) *parser.Packet {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst}
	tcp := &layers.TCP{SrcPort: sport, DstPort: dport, SYN: syn, ACK: ack, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))

	p, err := parser.Parse(buf.Bytes(), ts, nil)
	require.NoError(t, err)
	return p
}

func TestAddMergesDirections(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Add(tcpPacket(t, "t1", hostA, hostB, 40000, 22, true, false, ""))
	a.Add(tcpPacket(t, "t2", hostB, hostA, 22, 40000, true, true, ""))
	a.Add(tcpPacket(t, "t3", hostA, hostB, 40000, 22, false, true, "hello, this is pktwatch"))
	a.Add(nil)

	entries := a.Snapshot()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "tcp", e.Protocol)
	assert.Equal(t, "10.0.0.1:40000", e.A)
	assert.Equal(t, "10.0.0.2:22", e.B)
	assert.Equal(t, "tcp 10.0.0.1:40000 <-> 10.0.0.2:22", e.DisplayName)
	assert.Equal(t, uint64(3), e.Packets)
	assert.Equal(t, uint64(60), e.BtoA)
	assert.Equal(t, uint64(60+77), e.AtoB)
	assert.Equal(t, "ACK,SYN", e.TCPFlags)
	assert.Equal(t, "t1", e.FirstSeen)
	assert.Equal(t, "t3", e.LastSeen)
	assert.Zero(t, e.Errors)
}

func TestFailedPacketsCountAsErrors(t *testing.T) {
	good := tcpPacket(t, "t1", hostA, hostB, 1, 2, true, false, "")
	bad, err := parser.Parse(good.Data()[:20], "t2", nil)
	require.Error(t, err)

	a := NewAggregator(time.Second)
	a.Add(bad)
	a.Add(bad)
	entries := a.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "ethernet", entries[0].Protocol)
	assert.Equal(t, uint64(2), entries[0].Errors)
}

func TestSnapshotRates(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Add(tcpPacket(t, "t1", hostA, hostB, 1, 2, true, false, ""))
	first := a.Snapshot()
	require.Len(t, first, 1)
	assert.Zero(t, first[0].TotalRate())

	a.Add(tcpPacket(t, "t2", hostA, hostB, 1, 2, false, true, ""))
	a.Add(tcpPacket(t, "t3", hostB, hostA, 2, 1, false, true, ""))
	second := a.Snapshot()
	require.Len(t, second, 1)
	assert.Equal(t, uint64(60), second[0].AtoBRate)
	assert.Equal(t, uint64(60), second[0].BtoARate)
}

func TestSort(t *testing.T) {
	entries := []FlowEntry{
		{DisplayName: "b", Packets: 1, AtoB: 10, Errors: 2},
		{DisplayName: "a", Packets: 5, AtoB: 5},
		{DisplayName: "c", Packets: 5, AtoB: 50, AtoBRate: 7},
	}

	Sort(entries, SortByPackets)
	assert.Equal(t, []string{"a", "c", "b"}, names(entries))

	Sort(entries, SortByTotal)
	assert.Equal(t, []string{"c", "b", "a"}, names(entries))

	Sort(entries, SortByErrors)
	assert.Equal(t, "b", entries[0].DisplayName)

	Sort(entries, SortByRate)
	assert.Equal(t, "c", entries[0].DisplayName)
	assert.Equal(t, "Errors", SortByErrors.String())
}

func names(entries []FlowEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DisplayName)
	}
	return out
}

func TestRunFlushesOnClose(t *testing.T) {
	a := NewAggregator(time.Hour)
	in := make(chan *parser.Packet, 2)
	out := make(chan []FlowEntry, 1)
	in <- tcpPacket(t, "t1", hostA, hostB, 1, 2, true, false, "")
	in <- tcpPacket(t, "t2", hostA, net.IP{10, 0, 0, 3}, 1, 2, true, false, "")
	close(in)

	done := make(chan struct{})
	go func() {
		a.Run(context.Background(), in, out)
		close(done)
	}()

	select {
	case entries := <-out:
		assert.Len(t, entries, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot")
	}
	<-done
}
