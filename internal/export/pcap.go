package export

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/nickproject/pktwatch/internal/parser"
)

const pcapSnaplen = 262144

// WritePcap 以 pcap 格式写出原始字节
//
// 抓包工具的时间戳只有时分秒，日期取自 day，即抓包开始的时间。
// 时分秒回退时视为跨过零点，之后的包顺延一天。无法解析的时间戳沿用上一个包的时间。
func WritePcap(w io.Writer, link parser.LayerKind, day time.Time, packets []*parser.Packet) error {
	linkType := layers.LinkTypeEthernet
	if link == parser.LayerSLL {
		linkType = layers.LinkTypeLinuxSLL
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(pcapSnaplen, linkType); err != nil {
		return fmt.Errorf("写入 pcap 文件头失败: %w", err)
	}
	clock := newPacketClock(day)
	for i, p := range packets {
		data := p.Data()
		ci := gopacket.CaptureInfo{
			Timestamp:     clock.next(p.Timestamp),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return fmt.Errorf("写入第 %d 个包失败: %w", i+1, err)
		}
	}
	return nil
}

// ParseTimestamp 把 "15:04:05.000000" 形式的时间戳放到 day 所在的日期
func ParseTimestamp(ts string, day time.Time) time.Time {
	t, err := time.Parse("15:04:05.999999999", ts)
	if err != nil {
		return day
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), day.Location())
}

// packetClock 把只有时分秒的时间戳还原成单调的绝对时间
type packetClock struct {
	day  time.Time
	last time.Time
}

func newPacketClock(day time.Time) *packetClock {
	return &packetClock{day: day}
}

func (c *packetClock) next(ts string) time.Time {
	if _, err := time.Parse("15:04:05.999999999", ts); err != nil {
		if c.last.IsZero() {
			return c.day
		}
		return c.last
	}
	t := ParseTimestamp(ts, c.day)
	if !c.last.IsZero() && t.Before(c.last) {
		c.day = c.day.AddDate(0, 0, 1)
		t = ParseTimestamp(ts, c.day)
	}
	c.last = t
	return t
}
