package diagnose

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCapEff(t *testing.T) {
	status := "Name:\tpktwatch\nCapInh:\t0000000000000000\nCapEff:\t0000000000003000\nCapBnd:\t000001ffffffffff\n"
	assert.Equal(t, "0000000000003000", readCapEff(strings.NewReader(status)))
	assert.Empty(t, readCapEff(strings.NewReader("Name:\tfoo\n")))
}

func TestHasCap(t *testing.T) {
	caps := uint64(0x3000)
	assert.True(t, hasCap(caps, capNetRaw))
	assert.True(t, hasCap(caps, capNetAdmin))
	assert.False(t, hasCap(0x2000, capNetAdmin))
}

func TestReportStatus(t *testing.T) {
	r := NewReport()
	assert.Equal(t, StatusPass, r.Status)

	r.AddCheck("a", StatusPass, "ok")
	assert.Equal(t, StatusPass, r.Status)

	r.AddCheck("b", StatusWarning, "hmm")
	assert.Equal(t, StatusWarning, r.Status)

	r.AddCheckWithError("c", StatusFail, "bad", errors.New("boom"))
	assert.Equal(t, StatusFail, r.Status)

	// 失败之后的警告不会降级
	r.AddCheck("d", StatusWarning, "hmm")
	assert.Equal(t, StatusFail, r.Status)

	c, ok := r.Check("c")
	require.True(t, ok)
	assert.Equal(t, "boom", c.Error)

	_, ok = r.Check("missing")
	assert.False(t, ok)
}

func TestPrivileges(t *testing.T) {
	r := NewReport()
	checkPrivileges(r, &SystemInfo{EUID: 0})
	c, _ := r.Check("privileges")
	assert.Equal(t, StatusPass, c.Status)

	r = NewReport()
	checkPrivileges(r, &SystemInfo{EUID: 1000, HasNetRaw: true, HasNetAdmin: true})
	c, _ = r.Check("privileges")
	assert.Equal(t, StatusPass, c.Status)
}

func TestRunMissingTool(t *testing.T) {
	r := Run(Options{Tool: "pktwatch-no-such-tool", Interface: "pktwatch-no-such-if0"})

	tool, ok := r.Check("capture_tool")
	require.True(t, ok)
	assert.Equal(t, StatusFail, tool.Status)

	iface, ok := r.Check("interface")
	require.True(t, ok)
	assert.Equal(t, StatusFail, iface.Status)

	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Summary, "项检查失败")
	require.NotNil(t, r.System)
}

func TestRunToolVersion(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "fakedump")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho 'fakedump version 4.99.4'\necho 'libpcap version 1.10.4'\n"), 0755))

	r := Run(Options{Tool: tool, Tee: "tee"})
	c, ok := r.Check("capture_tool")
	require.True(t, ok)
	assert.Equal(t, StatusPass, c.Status)
	assert.Equal(t, map[string]string{"version": "fakedump version 4.99.4"}, c.Details)
}

func TestOutputJSON(t *testing.T) {
	r := NewReport()
	r.AddCheckWithDetails("interface", StatusPass, "eth0 已启用", map[string]int{"mtu": 1500})

	var buf bytes.Buffer
	require.NoError(t, r.OutputJSON(&buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "pass", decoded["status"])
	checks := decoded["checks"].([]interface{})
	require.Len(t, checks, 1)
	assert.Equal(t, "interface", checks[0].(map[string]interface{})["name"])

	path := filepath.Join(t.TempDir(), "diag.json")
	require.NoError(t, r.OutputJSONToFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mtu": 1500`)
}
