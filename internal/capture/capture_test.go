package capture

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickproject/pktwatch/internal/parser"
)

// fakeTool 在临时目录写入一个模拟抓包工具的 shell 脚本
func fakeTool(t *testing.T, body string) Settings {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tcpdump")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))

	s := DefaultSettings()
	s.Tool = path
	s.TempDir = t.TempDir()
	s.StartupTimeout = 5 * time.Second
	s.StopGrace = 500 * time.Millisecond
	return s
}

func sampleDump(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs("testdata/sample.dump")
	require.NoError(t, err)
	return path
}

// listening 打印就绪信息后输出样例，然后一直运行
func listening(t *testing.T) string {
	return `echo "tcpdump: verbose output suppressed" >&2
echo "listening on eth0, link-type EN10MB (Ethernet), snapshot length 262144 bytes" >&2
cat '` + sampleDump(t) + `'
exec sleep 30`
}

func stopped(t *testing.T, s *Supervisor) {
	t.Helper()
	_, _ = s.Stop()
}

func TestSupervisorLifecycle(t *testing.T) {
	s := NewSupervisor(fakeTool(t, listening(t)))
	assert.Equal(t, StateNotStarted, s.State())

	var mu sync.Mutex
	var seen []string
	err := s.Start(Options{
		Interface: "eth0",
		Filter:    "icmp or arp",
		OnPacket: func(p RawPacket) {
			mu.Lock()
			seen = append(seen, p.Timestamp)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer stopped(t, s)
	assert.Equal(t, StateRunning, s.State())

	// 最后一个包要等到流结束才能确定边界
	pkts, err := s.WaitForPackets(2, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, pkts, 2)
	assert.Equal(t, "12:00:00.000001", pkts[0].Timestamp)
	assert.Equal(t, "12:00:01.000000", pkts[1].Timestamp)

	p, err := parser.Parse(pkts[0].Data, pkts[0].Timestamp, nil)
	require.NoError(t, err)
	require.NotNil(t, p.ICMP())
	assert.Equal(t, parser.ICMPEchoRequest, p.ICMP().Type)
	assert.Equal(t, "10.0.0.1", p.IPv4().SourceIP)

	p, err = parser.Parse(pkts[1].Data, pkts[1].Timestamp, nil)
	require.NoError(t, err)
	require.NotNil(t, p.ARP())
	assert.Equal(t, "10.0.0.2", p.ARP().TargetIP)

	w, err := s.Stop()
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.Finished())
	assert.Equal(t, 3, w.Packets())
	assert.Equal(t, StateFinished, s.State())

	rest, err := s.WaitForPackets(0, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "12:00:02.000000", rest[0].Timestamp)

	mu.Lock()
	assert.Equal(t, []string{"12:00:00.000001", "12:00:01.000000", "12:00:02.000000"}, seen)
	mu.Unlock()

	info := strings.Join(s.Info(), "\n")
	assert.Contains(t, info, "listening on eth0")
	assert.Contains(t, info, "capture finished: 3 packets")

	// 临时 dump 文件已删除
	left, err := filepath.Glob(filepath.Join(s.settings.TempDir, "pktwatch-*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestWaitForPacketsDrainDoesNotBlock(t *testing.T) {
	s := NewSupervisor(DefaultSettings())

	start := time.Now()
	pkts, err := s.WaitForPackets(0, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, pkts)
	assert.Less(t, time.Since(start), time.Second)

	_, err = s.WaitForPackets(-1, time.Second)
	assert.ErrorIs(t, err, ErrArgumentMismatch)
}

func TestWaitForPacketsTimeout(t *testing.T) {
	s := NewSupervisor(fakeTool(t, listening(t)))
	require.NoError(t, s.Start(Options{Interface: "eth0"}))
	defer stopped(t, s)

	require.Eventually(t, func() bool { return s.Records() == 2 }, 5*time.Second, 10*time.Millisecond)

	_, err := s.WaitForPackets(5, 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPacketTimeout)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "2/5 packets received within timeout")

	var pe *PacketTimeoutError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Got)

	// 超时不丢弃已到达的记录
	assert.Equal(t, 2, s.Records())
}

func TestStartTwice(t *testing.T) {
	s := NewSupervisor(fakeTool(t, listening(t)))
	require.NoError(t, s.Start(Options{Interface: "eth0"}))

	err := s.Start(Options{Interface: "eth0"})
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.ErrorIs(t, err, ErrArgumentMismatch)

	_, err = s.Stop()
	require.NoError(t, err)

	// 停止后可以重新启动，队列重新开始
	require.NoError(t, s.Start(Options{Interface: "eth0"}))
	defer stopped(t, s)
	pkts, err := s.WaitForPackets(2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "12:00:00.000001", pkts[0].Timestamp)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewSupervisor(DefaultSettings())
	w, err := s.Stop()
	assert.NoError(t, err)
	assert.Nil(t, w)
	assert.Equal(t, StateNotStarted, s.State())
}

func TestToolFailure(t *testing.T) {
	s := NewSupervisor(fakeTool(t, `echo "partial output"
echo "tcpdump: eth9: No such device exists" >&2
exit 1`))

	err := s.Start(Options{Interface: "eth9"})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.ExitCode)
	assert.Contains(t, te.Stderr, "No such device exists")
	assert.Contains(t, te.Stdout, "partial output")

	require.Eventually(t, func() bool { return s.State() == StateError }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, strings.Join(s.Info(), "\n"), "capture failed")
}

func TestStartupTimeout(t *testing.T) {
	settings := fakeTool(t, `echo "tcpdump: waiting" >&2
exec sleep 30`)
	settings.StartupTimeout = 200 * time.Millisecond
	s := NewSupervisor(settings)

	err := s.Start(Options{Interface: "eth0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartupTimeout)
	assert.Contains(t, err.Error(), "tcpdump: waiting")

	require.Eventually(t, func() bool { return !s.State().Live() }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateError, s.State())
}

func TestBlockingCaptureSavesDump(t *testing.T) {
	// 模拟 -c：输出完毕后工具自行退出
	settings := fakeTool(t, `echo "listening on eth0" >&2
cat '`+sampleDump(t)+`'`)
	s := NewSupervisor(settings)
	dumpFile := filepath.Join(t.TempDir(), "saved.dump")

	err := s.Start(Options{
		Interface: "eth0",
		Count:     3,
		Blocking:  true,
		Timeout:   5 * time.Second,
		SaveDump:  true,
		DumpFile:  dumpFile,
	})
	require.NoError(t, err)
	assert.Equal(t, StateFinished, s.State())

	pkts, err := s.WaitForPackets(3, time.Second)
	require.NoError(t, err)
	assert.Len(t, pkts, 3)

	raw, err := os.ReadFile(dumpFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), StartSentinel+"\n"))

	f, err := os.Open(dumpFile)
	require.NoError(t, err)
	defer f.Close()
	saved, err := ReadDump(f)
	require.NoError(t, err)
	assert.Equal(t, pkts, saved)

	// 记录不足且工作协程已结束时立即返回
	start := time.Now()
	_, err = s.WaitForPackets(1, time.Hour)
	assert.ErrorIs(t, err, ErrPacketTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBlockingTimeout(t *testing.T) {
	s := NewSupervisor(fakeTool(t, listening(t)))
	err := s.Start(Options{Interface: "eth0", Blocking: true, Timeout: 200 * time.Millisecond})
	defer stopped(t, s)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateRunning, s.State())
}

func TestStartRejectsBadOptions(t *testing.T) {
	s := NewSupervisor(DefaultSettings())
	err := s.Start(Options{Interface: "eth0", PacketType: "nope"})
	assert.ErrorIs(t, err, ErrArgumentMismatch)
	assert.Equal(t, StateNotStarted, s.State())
}

func TestWorkerKill(t *testing.T) {
	settings := fakeTool(t, `echo "listening on eth0" >&2
trap '' INT
exec sleep 30`)
	settings.StopTimeout = 100 * time.Millisecond
	settings.StopGrace = 10 * time.Second
	s := NewSupervisor(settings)
	require.NoError(t, s.Start(Options{Interface: "eth0"}))

	// 忽略中断信号时 Stop 只做有限等待
	w, err := s.Stop()
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.False(t, w.Finished())
	assert.Equal(t, StateStopping, s.State())

	require.NoError(t, w.Kill())
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not finish after kill")
	}
	assert.Equal(t, StateFinished, s.State())
}
