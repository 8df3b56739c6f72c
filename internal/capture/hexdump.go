package capture

import (
	"bufio"
	"encoding/hex"
	"io"
	"strings"
)

// StartSentinel 临时 dump 文件的首行
const StartSentinel = "--START--"

// DumpReader 把 -XX 格式的 hex dump 逐行还原为原始记录
//
// 包头行（非空且不以 tab 开头）的首个字段为时间戳，随后的 tab 行为字节：
//
//	12:00:00.000001 IP 10.0.0.1 > 10.0.0.2: ICMP echo request
//		0x0000:  0242 ac11 0003 0242 ac11 0002 0800 4500  .B.....B......E.
type DumpReader struct {
	ts      string
	buf     []byte
	pending bool
}

// Feed 处理一行，遇到下一个包头时返回上一条完整记录
func (d *DumpReader) Feed(line string) (RawPacket, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return RawPacket{}, false
	}
	if line[0] == '\t' {
		if d.pending {
			d.buf = appendHexLine(d.buf, line)
		}
		return RawPacket{}, false
	}

	// 只有空白的行不是包头
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return RawPacket{}, false
	}

	pkt, ok := d.Flush()
	d.ts = fields[0]
	d.pending = true
	return pkt, ok
}

// Flush 取出尚未输出的记录，没有字节时返回 false
func (d *DumpReader) Flush() (RawPacket, bool) {
	if !d.pending || len(d.buf) == 0 {
		d.buf = nil
		d.pending = false
		return RawPacket{}, false
	}
	pkt := RawPacket{Data: d.buf, Timestamp: d.ts}
	d.buf = nil
	d.pending = false
	return pkt, true
}

// appendHexLine 解析 "\t0x0010:  0020 1234 ...  ascii" 中的十六进制部分
func appendHexLine(dst []byte, line string) []byte {
	text := strings.TrimLeft(line, " \t")
	if i := strings.IndexByte(text, ':'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimLeft(text, " ")
	if i := strings.Index(text, "  "); i >= 0 {
		text = text[:i]
	}

	for _, group := range strings.Fields(text) {
		if len(group) != 2 && len(group) != 4 {
			continue
		}
		b, err := hex.DecodeString(group)
		if err != nil {
			continue
		}
		dst = append(dst, b...)
	}
	return dst
}

// ReadDump 解码保存下来的 dump 文件，跳过起始标记
func ReadDump(r io.Reader) ([]RawPacket, error) {
	var (
		d    DumpReader
		pkts []RawPacket
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == StartSentinel {
			continue
		}
		if pkt, ok := d.Feed(line); ok {
			pkts = append(pkts, pkt)
		}
	}
	if err := sc.Err(); err != nil {
		return pkts, err
	}
	if pkt, ok := d.Flush(); ok {
		pkts = append(pkts, pkt)
	}
	return pkts, nil
}
