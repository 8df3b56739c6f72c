package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickproject/pktwatch/internal/capture"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "tcpdump", cfg.Capture.Tool)
	assert.Equal(t, 10*time.Second, cfg.Capture.StartupTimeout)
	assert.Equal(t, "any", cfg.Capture.Interface)
	assert.Equal(t, capture.DefaultSettings(), cfg.Capture.Settings())
}

func TestUnmarshalYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
capture:
  interface: br0
  filter: "( icmp ) or ( arp )"
  count: 4
  snaplen: 128
  startup_timeout: 3s
  layers: [sll, ip, tcp]
logging:
  level: debug
`)))

	cfg := Default()
	require.NoError(t, v.Unmarshal(cfg))

	assert.Equal(t, "br0", cfg.Capture.Interface)
	assert.Equal(t, 3*time.Second, cfg.Capture.StartupTimeout)
	assert.Equal(t, []string{"sll", "ip", "tcp"}, cfg.Capture.Layers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// 未出现的键保留默认值
	assert.Equal(t, "tee", cfg.Capture.Tee)
	assert.Equal(t, 50, cfg.Display.MaxRows)

	opts := cfg.Capture.Options()
	assert.Equal(t, capture.Options{Interface: "br0", Count: 4, Filter: "( icmp ) or ( arp )", MaxSize: 128}, opts)
	assert.NoError(t, opts.Validate())
}
