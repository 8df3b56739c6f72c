package parser

import (
	"fmt"
	"strconv"
)

// Combine16 两字节按大端组合为 uint16
func Combine16(hi, lo byte) uint16 {
	return uint16(hi&0xff)<<8 | uint16(lo&0xff)
}

// Combine32 四字节按大端组合为 uint32
func Combine32(a, b, c, d byte) uint32 {
	return uint32(a&0xff)<<24 | uint32(b&0xff)<<16 | uint32(c&0xff)<<8 | uint32(d&0xff)
}

// ToIPv4 四字节转点分十进制
func ToIPv4(a, b, c, d byte) string {
	buf := make([]byte, 0, 15)
	buf = strconv.AppendUint(buf, uint64(a&0xff), 10)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, uint64(b&0xff), 10)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, uint64(c&0xff), 10)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, uint64(d&0xff), 10)
	return string(buf)
}

// ToMAC 六字节转小写冒号分隔的 MAC 字符串
func ToMAC(m [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func ipAt(buf []byte, off int) string {
	return ToIPv4(buf[off], buf[off+1], buf[off+2], buf[off+3])
}

func macAt(buf []byte, off int) string {
	return ToMAC([6]byte(buf[off : off+6]))
}

func u16At(buf []byte, off int) uint16 {
	return Combine16(buf[off], buf[off+1])
}

func u32At(buf []byte, off int) uint32 {
	return Combine32(buf[off], buf[off+1], buf[off+2], buf[off+3])
}
