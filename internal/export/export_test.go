package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickproject/pktwatch/internal/aggregator"
	"github.com/nickproject/pktwatch/internal/parser"
)

// arpRequest 10.0.0.1 询问 10.0.0.2
var arpRequest = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02, 0x42, 0xac, 0x11, 0x00, 0x02, 0x08, 0x06,
	0x00, 0x01, 0x08, 0x00, 0x06, 0x04, 0x00, 0x01, 0x02, 0x42, 0xac, 0x11, 0x00, 0x02,
	0x0a, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x02,
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	good, err := parser.Parse(arpRequest, "12:00:01.250000", nil)
	require.NoError(t, err)
	bad, err := parser.Parse(arpRequest[:10], "12:00:02", nil)
	require.Error(t, err)

	agg := aggregator.NewAggregator(time.Second)
	agg.Add(good)
	agg.Add(bad)
	flows := agg.Snapshot()
	aggregator.Sort(flows, aggregator.SortByPackets)

	r := NewReport("eth0", "arp", parser.LayerEthernet, []*parser.Packet{good, bad}, flows)
	r.Timestamp = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	return r
}

func TestNewReport(t *testing.T) {
	r := sampleReport(t)
	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 1, r.Errors)
	assert.Len(t, r.Flows, 2)
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, Export(sampleReport(t), path, FormatJSON))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded struct {
		Interface string `json:"interface"`
		Link      string `json:"link"`
		Packets   []struct {
			Chain  []string            `json:"chain"`
			Errors map[string][]string `json:"errors"`
			Layers map[string]map[string]interface{}
		} `json:"packets"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "eth0", decoded.Interface)
	assert.Equal(t, "ethernet", decoded.Link)
	require.Len(t, decoded.Packets, 2)
	assert.Equal(t, []string{"ethernet", "arp"}, decoded.Packets[0].Chain)
	assert.Equal(t, "10.0.0.2", decoded.Packets[0].Layers["arp"]["target_ip"])
	assert.Contains(t, decoded.Packets[1].Errors, "parse_errors.ethernet")
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, Export(sampleReport(t), path, FormatCSV))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "flow", rows[0][0])
	assert.Equal(t, "arp", rows[1][1])
	assert.Equal(t, "10.0.0.1", rows[1][2])
	assert.Equal(t, "10.0.0.2", rows[1][3])
	assert.Equal(t, "42", rows[1][5])
}

func TestWritePcap(t *testing.T) {
	r := sampleReport(t)
	var buf bytes.Buffer
	require.NoError(t, WritePcap(&buf, parser.LayerEthernet, r.Timestamp, r.Packets))

	rd, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, rd.LinkType())

	data, ci, err := rd.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, arpRequest, data)
	assert.Equal(t, time.Date(2024, 5, 6, 12, 0, 1, 250000000, time.UTC), ci.Timestamp.UTC())

	data, _, err = rd.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 10)
}

func TestWritePcapCooked(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePcap(&buf, parser.LayerSLL, time.Now(), nil))
	rd, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeLinuxSLL, rd.LinkType())
}

func TestParseTimestamp(t *testing.T) {
	day := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 58, 123456000, time.UTC), ParseTimestamp("23:59:58.123456", day))
	assert.Equal(t, day, ParseTimestamp("not-a-time", day))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"json": FormatJSON, "CSV": FormatCSV, "pcap": FormatPcap} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	assert.Error(t, Export(&Report{}, filepath.Join(t.TempDir(), "x"), "xml"))
}

func TestWritePcapAcrossMidnight(t *testing.T) {
	day := time.Date(2024, 5, 6, 23, 59, 0, 0, time.UTC)
	var packets []*parser.Packet
	for _, ts := range []string{"23:59:59.900000", "bogus", "00:00:00.100000", "00:00:01.000000"} {
		p, _ := parser.Parse(arpRequest, ts, nil)
		packets = append(packets, p)
	}

	var buf bytes.Buffer
	require.NoError(t, WritePcap(&buf, parser.LayerEthernet, day, packets))
	rd, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2024, 5, 6, 23, 59, 59, 900000000, time.UTC),
		time.Date(2024, 5, 6, 23, 59, 59, 900000000, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 0, 100000000, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 1, 0, time.UTC),
	}
	for i, w := range want {
		_, ci, err := rd.ReadPacketData()
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, w, ci.Timestamp.UTC(), "packet %d", i)
	}
}
