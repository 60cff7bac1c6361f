package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()

	require.NoError(t, c.Validate())
	assert.Equal(t, "[::]:1234", c.Server.Bind())
	assert.Equal(t, 15, c.Session.BufNum)
	assert.Equal(t, 0, c.Session.BufLen)
	assert.Equal(t, 500*1024, c.Session.WriteBufSize)
	assert.Equal(t, OnDeviceErrorFatal, c.Session.OnDeviceError)
	assert.Equal(t, uint32(100_000_000), c.Device.Frequency)
	assert.True(t, c.Device.AGC)
	assert.Equal(t, int32(0), c.Device.PPM)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rtltcp.yaml")
	data := `
server:
  network: ws
  address: 127.0.0.1
  port: 7373
  once: true
session:
  buf_num: 4
  on_device_error: ignore
  stop_timeout: 500ms
device:
  driver: dummy
  frequency: 433920000
  agc: false
  gain: 297
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, xsdr.NetKindWebSocket, c.Server.Network)
	assert.Equal(t, "127.0.0.1:7373", c.Server.Bind())
	assert.True(t, c.Server.Once)
	assert.Equal(t, 4, c.Session.BufNum)
	assert.Equal(t, OnDeviceErrorIgnore, c.Session.OnDeviceError)
	assert.Equal(t, 500*time.Millisecond, c.Session.StopTimeout)
	assert.Equal(t, DriverDummy, c.Device.Driver)
	assert.Equal(t, uint32(433_920_000), c.Device.Frequency)
	assert.False(t, c.Device.AGC)
	assert.Equal(t, int32(297), c.Device.Gain)

	// untouched keys keep their defaults
	assert.Equal(t, 500*1024, c.Session.WriteBufSize)
	assert.Equal(t, "/rtltcp", c.Server.WebSocket.Path)
}

func TestLoadUnknownField(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rtltcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  bufnum: 3\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown network", func(c *Config) { c.Server.Network = "udp" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero buffers", func(c *Config) { c.Session.BufNum = 0 }},
		{"negative buffer length", func(c *Config) { c.Session.BufLen = -1 }},
		{"negative write buffer", func(c *Config) { c.Session.WriteBufSize = -1 }},
		{"unknown error policy", func(c *Config) { c.Session.OnDeviceError = "retry" }},
		{"unknown driver", func(c *Config) { c.Device.Driver = "hackrf" }},
		{"negative index", func(c *Config) { c.Device.Index = -1 }},
		{"kcp mtu", func(c *Config) {
			c.Server.Network = xsdr.NetKindKCP
			c.Server.KCP.MTU = 100
		}},
		{"kcp window", func(c *Config) {
			c.Server.Network = xsdr.NetKindKCP
			c.Server.KCP.WindowSize = [2]int{0, 1024}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Default()
			tt.modify(&c)

			err := c.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, ErrInvalidConfig.Error())
		})
	}
}

func TestValidateKCPIgnoredForTCP(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Server.KCP.MTU = 0

	assert.NoError(t, c.Validate())
}
