package capture

import (
	"sort"
	"strconv"
	"strings"
)

// packetTypes tcpdump -T 可接受的报文类型
var packetTypes = map[string]struct{}{
	"aodv": {}, "carp": {}, "cnfp": {}, "domain": {}, "lmp": {}, "pgm": {}, "pgm_zmtp1": {},
	"quic": {}, "radius": {}, "resp": {}, "rpc": {}, "rtcp": {}, "rtp": {}, "snmp": {},
	"someip": {}, "tftp": {}, "vat": {}, "vxlan": {}, "wb": {}, "zmtp1": {},
}

// PacketTypes 返回支持的报文类型，已排序
func PacketTypes() []string {
	names := make([]string, 0, len(packetTypes))
	for n := range packetTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildArgs 生成抓包工具参数
//
// 格式: -nn -XX -l [-c N] -i IF [-s SZ] [-T TYPE] [FILTER]
func BuildArgs(opts Options) []string {
	args := []string{"-nn", "-XX", "-l"}
	if opts.Count > 0 {
		args = append(args, "-c", strconv.Itoa(opts.Count))
	}
	args = append(args, "-i", opts.Interface)
	if opts.MaxSize > 0 {
		args = append(args, "-s", strconv.Itoa(opts.MaxSize))
	}
	if opts.PacketType != "" {
		args = append(args, "-T", opts.PacketType)
	}
	if opts.Filter != "" {
		args = append(args, opts.Filter)
	}
	return args
}

// Validate 检查参数，失败返回 *ArgumentError
func (o Options) Validate() error {
	switch {
	case strings.TrimSpace(o.Interface) == "":
		return &ArgumentError{Field: "interface", Reason: "must not be empty"}
	case o.Count < 0:
		return &ArgumentError{Field: "count", Reason: "must not be negative"}
	case o.MaxSize < 0:
		return &ArgumentError{Field: "max_size", Reason: "must not be negative"}
	case o.Blocking && o.Timeout <= 0:
		return &ArgumentError{Field: "timeout", Reason: "blocking capture needs a positive timeout"}
	case o.SaveDump && o.DumpFile == "":
		return &ArgumentError{Field: "dump_file", Reason: "saving the dump needs a file name"}
	}
	if o.PacketType != "" {
		if _, ok := packetTypes[o.PacketType]; !ok {
			return &ArgumentError{Field: "packet_type", Reason: "invalid protocol name " + strconv.Quote(o.PacketType)}
		}
	}
	return nil
}
