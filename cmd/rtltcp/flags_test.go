package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfDefaults(t *testing.T) {
	t.Parallel()

	c, err := loadConf(nil)
	require.NoError(t, err)
	assert.Equal(t, conf.Default(), c)
}

func TestLoadConfFlags(t *testing.T) {
	t.Parallel()

	c, err := loadConf([]string{
		"-a", "127.0.0.1", "-p", "7373", "--once",
		"--driver", "dummy", "-f", "433920000", "-g", "297",
		"-n", "ws", "--on-device-error", "ignore",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7373", c.Server.Bind())
	assert.True(t, c.Server.Once)
	assert.Equal(t, xsdr.NetKindWebSocket, c.Server.Network)
	assert.Equal(t, conf.DriverDummy, c.Device.Driver)
	assert.Equal(t, uint32(433_920_000), c.Device.Frequency)
	assert.Equal(t, int32(297), c.Device.Gain)
	assert.False(t, c.Device.AGC)
	assert.Equal(t, conf.OnDeviceErrorIgnore, c.Session.OnDeviceError)
}

func TestLoadConfFileThenFlags(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rtltcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4000\ndevice:\n  index: 1\n"), 0o600))

	c, err := loadConf([]string{"-c", path, "-p", "4001"})
	require.NoError(t, err)

	assert.Equal(t, 4001, c.Server.Port)
	assert.Equal(t, 1, c.Device.Index)
}

func TestLoadConfInvalid(t *testing.T) {
	t.Parallel()

	_, err := loadConf([]string{"--driver", "hackrf"})
	assert.Error(t, err)

	_, err = loadConf([]string{"--no-such-flag"})
	assert.Error(t, err)
}
