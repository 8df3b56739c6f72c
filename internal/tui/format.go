package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// widthCond 固定按非东亚宽度计算，不随 LANG 变化
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes 按 1024 进位格式化字节数
func FormatBytes(bytes uint64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	v := float64(bytes) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unit])
}

// FormatRate 格式化速率
func FormatRate(bytesPerSec uint64) string {
	return FormatBytes(bytesPerSec) + "/s"
}

// TruncateString 按终端显示宽度截断，超出时以省略号结尾
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return widthCond.Truncate(s, width, ellipsis)
}

// TruncateFlags 截断逗号分隔的 TCP 标志列表，只保留完整的标志
//
// 例如 "SYN,ACK,PSH,FIN" 在宽度 10 下输出 "SYN,ACK,…"。
func TruncateFlags(flags string, width int) string {
	if widthCond.StringWidth(flags) <= width {
		return flags
	}
	var b strings.Builder
	for _, f := range strings.Split(flags, ",") {
		if widthCond.StringWidth(b.String()+f+","+ellipsis) > width {
			break
		}
		b.WriteString(f)
		b.WriteByte(',')
	}
	if b.Len() == 0 {
		return TruncateString(flags, width)
	}
	return b.String() + ellipsis
}

// PadRight 右填充到指定显示宽度，已带样式的文本按可见宽度计算
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// PadLeft 左填充到指定显示宽度
func PadLeft(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return strings.Repeat(" ", width-w) + s
	}
	return s
}
