package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nickproject/pktwatch/internal/logger"
	"github.com/nickproject/pktwatch/internal/parser"
)

// SortMode 排序模式
type SortMode int

const (
	SortByRate SortMode = iota
	SortByTotal
	SortByPackets
	SortByErrors
)

// SortModes 排序模式数量
const SortModes = 4

func (m SortMode) String() string {
	switch m {
	case SortByRate:
		return "Rate"
	case SortByTotal:
		return "Total"
	case SortByPackets:
		return "Packets"
	case SortByErrors:
		return "Errors"
	default:
		return "unknown"
	}
}

// Aggregator 按会话聚合解码后的包
type Aggregator struct {
	mu              sync.Mutex
	flows           map[FlowKey]*flowAccumulator
	prev            map[FlowKey][2]uint64 // 上一周期的 AtoB/BtoA
	refreshInterval time.Duration
	now             func() time.Time
}

type flowAccumulator struct {
	key       FlowKey
	packets   uint64
	atob      uint64
	btoa      uint64
	errors    uint64
	flags     parser.TCPFlag
	firstSeen string
	lastSeen  string
	updated   time.Time
}

// NewAggregator 创建聚合器
func NewAggregator(refresh time.Duration) *Aggregator {
	if refresh <= 0 {
		refresh = time.Second
	}
	return &Aggregator{
		flows:           make(map[FlowKey]*flowAccumulator),
		prev:            make(map[FlowKey][2]uint64),
		refreshInterval: refresh,
		now:             time.Now,
	}
}

// Add 累加一个包，解码失败的包同样计入
func (a *Aggregator) Add(p *parser.Packet) {
	if p == nil {
		return
	}
	key, forward := KeyOf(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.flows[key]
	if !ok {
		acc = &flowAccumulator{key: key, firstSeen: p.Timestamp}
		a.flows[key] = acc
	}
	acc.packets++
	if forward {
		acc.atob += uint64(p.Length)
	} else {
		acc.btoa += uint64(p.Length)
	}
	if p.Failed() {
		acc.errors++
	}
	if tcp := p.TCP(); tcp != nil {
		acc.flags |= tcp.Flags
	}
	acc.lastSeen = p.Timestamp
	acc.updated = a.now()
}

// Len 会话数
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.flows)
}

// Snapshot 返回当前全部会话，速率为与上一次 Snapshot 的差值
func (a *Aggregator) Snapshot() []FlowEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	intervalSec := uint64(a.refreshInterval.Seconds())
	if intervalSec == 0 {
		intervalSec = 1
	}

	entries := make([]FlowEntry, 0, len(a.flows))
	next := make(map[FlowKey][2]uint64, len(a.flows))
	for key, acc := range a.flows {
		entry := FlowEntry{
			DisplayName: key.String(),
			Protocol:    key.Protocol,
			A:           key.A,
			B:           key.B,
			Packets:     acc.packets,
			AtoB:        acc.atob,
			BtoA:        acc.btoa,
			Errors:      acc.errors,
			FirstSeen:   acc.firstSeen,
			LastSeen:    acc.lastSeen,
			Updated:     acc.updated,
		}
		if acc.flags != 0 {
			entry.TCPFlags = acc.flags.String()
		}
		if prev, ok := a.prev[key]; ok {
			entry.AtoBRate = (acc.atob - prev[0]) / intervalSec
			entry.BtoARate = (acc.btoa - prev[1]) / intervalSec
		}
		next[key] = [2]uint64{acc.atob, acc.btoa}
		entries = append(entries, entry)
	}
	a.prev = next
	return entries
}

// Run 消费解码结果，按刷新间隔输出快照，in 关闭时输出最后一次快照后返回
func (a *Aggregator) Run(ctx context.Context, in <-chan *parser.Packet, output chan<- []FlowEntry) {
	refreshTicker := time.NewTicker(a.refreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case p, ok := <-in:
			if !ok {
				select {
				case output <- a.Snapshot():
				case <-ctx.Done():
				}
				return
			}
			a.Add(p)

		case <-refreshTicker.C:
			entries := a.Snapshot()
			select {
			case output <- entries:
			default:
				// 如果 output 满了，跳过
				logger.Debug("跳过一次快照", "flows", len(entries))
			}
		}
	}
}

// Sort 排序条目，相同时按名称排序保证稳定
func Sort(entries []FlowEntry, mode SortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		var x, y uint64
		switch mode {
		case SortByTotal:
			x, y = entries[i].Total(), entries[j].Total()
		case SortByPackets:
			x, y = entries[i].Packets, entries[j].Packets
		case SortByErrors:
			x, y = entries[i].Errors, entries[j].Errors
		default:
			x, y = entries[i].TotalRate(), entries[j].TotalRate()
		}
		if x != y {
			return x > y
		}
		return strings.Compare(entries[i].DisplayName, entries[j].DisplayName) < 0
	})
}
