package capture

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDump(t *testing.T) {
	f, err := os.Open("testdata/sample.dump")
	require.NoError(t, err)
	defer f.Close()

	pkts, err := ReadDump(f)
	require.NoError(t, err)
	require.Len(t, pkts, 3)

	assert.Equal(t, "12:00:00.000001", pkts[0].Timestamp)
	assert.Equal(t, "12:00:01.000000", pkts[1].Timestamp)
	assert.Equal(t, "12:00:02.000000", pkts[2].Timestamp)

	assert.Len(t, pkts[0].Data, 46)
	assert.Len(t, pkts[1].Data, 42)
	assert.Equal(t, []byte{0x02, 0x42, 0xac, 0x11, 0x00, 0x03}, pkts[0].Data[:6])
	assert.Equal(t, []byte("abcd"), pkts[0].Data[42:])
	assert.Equal(t, []byte{0x0a, 0x00, 0x00, 0x02}, pkts[1].Data[38:])
}

func TestReadDumpSkipsSentinel(t *testing.T) {
	in := StartSentinel + "\n" +
		"10:00:00.1 IP x > y\n" +
		"\t0x0000:  0102 03                                   ...\n"
	pkts, err := ReadDump(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.Equal(t, []byte{1, 2, 3}, pkts[0].Data)
	assert.Equal(t, "10:00:00.1", pkts[0].Timestamp)
}

func TestReadDumpWhitespaceLine(t *testing.T) {
	dump := "12:00:00.000001 IP x\n\t0x0000:  0242 ac11\n   \n\t0x0004:  0002\n12:00:00.000002 IP y\n\t0x0000:  ffff\n"
	pkts, err := ReadDump(strings.NewReader(dump))
	require.NoError(t, err)
	require.Len(t, pkts, 2)
	assert.Equal(t, []byte{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}, pkts[0].Data)
	assert.Equal(t, "12:00:00.000002", pkts[1].Timestamp)
}

func TestDumpReaderFeed(t *testing.T) {
	var d DumpReader

	// 包头之前的字节行没有归属
	_, ok := d.Feed("\t0x0000:  ffff")
	assert.False(t, ok)

	_, ok = d.Feed("t1 first")
	assert.False(t, ok)
	// ASCII 列里的 "beef" 不能当成字节
	_, ok = d.Feed("\t0x0000:  6265 6566                                beef")
	assert.False(t, ok)
	_, ok = d.Feed("")
	assert.False(t, ok)
	// 空白行既不结束当前包也不开始新包
	_, ok = d.Feed("   ")
	assert.False(t, ok)
	_, ok = d.Feed(" \t \r")
	assert.False(t, ok)

	pkt, ok := d.Feed("t2 second")
	require.True(t, ok)
	assert.Equal(t, "t1", pkt.Timestamp)
	assert.Equal(t, []byte("beef"), pkt.Data)

	// 没有字节的包头不产生记录
	_, ok = d.Feed("t3 empty")
	assert.False(t, ok)
	_, ok = d.Flush()
	assert.False(t, ok)

	_, ok = d.Feed("t4 last\r")
	assert.False(t, ok)
	d.Feed("\t0x0000:  0a0b 0c\r")
	pkt, ok = d.Flush()
	require.True(t, ok)
	assert.Equal(t, "t4", pkt.Timestamp)
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c}, pkt.Data)

	_, ok = d.Flush()
	assert.False(t, ok)
}

func TestAppendHexLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []byte
	}{
		{"full line", "\t0x0010:  0800 0604 0001 0242 ac11 0002 0a00 0001  .......B........", []byte{
			0x08, 0x00, 0x06, 0x04, 0x00, 0x01, 0x02, 0x42, 0xac, 0x11, 0x00, 0x02, 0x0a, 0x00, 0x00, 0x01,
		}},
		{"odd byte", "\t0x0020:  0002 08                                  ..", []byte{0x00, 0x02, 0x08}},
		{"no ascii column", "\t0x0000:  dead beef", []byte{0xde, 0xad, 0xbe, 0xef}},
		{"bad group skipped", "\t0x0000:  zz12 3456", []byte{0x34, 0x56}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appendHexLine(nil, tt.line))
		})
	}
}
