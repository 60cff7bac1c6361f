package conf

import (
	"os"
	"slices"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/xsdr"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		return c, errors.Wrapf(err, "open config failed. path=%s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil {
		return c, errors.Wrapf(err, "decode config failed. path=%s", path)
	}

	if err := c.Validate(); err != nil {
		return c, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if !slices.Contains([]xsdr.NetKind{xsdr.NetKindTCP, xsdr.NetKindWebSocket, xsdr.NetKindKCP}, c.Server.Network) {
		return invalid("server.network %q, must be one of tcp, ws, kcp", c.Server.Network)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}

	if c.Server.Network == xsdr.NetKindKCP {
		if err := c.Server.KCP.Validate(); err != nil {
			return err
		}
	}

	if c.Session.BufNum <= 0 {
		return invalid("session.buf_num %d, must be positive", c.Session.BufNum)
	}

	if c.Session.BufLen < 0 {
		return invalid("session.buf_len %d, must not be negative", c.Session.BufLen)
	}

	if c.Session.WriteBufSize < 0 {
		return invalid("session.write_buf_size %d, must not be negative", c.Session.WriteBufSize)
	}

	if c.Session.OnDeviceError != OnDeviceErrorFatal && c.Session.OnDeviceError != OnDeviceErrorIgnore {
		return invalid("session.on_device_error %q, must be fatal or ignore", c.Session.OnDeviceError)
	}

	if c.Device.Driver != DriverRTLSDR && c.Device.Driver != DriverDummy {
		return invalid("device.driver %q, must be rtlsdr or dummy", c.Device.Driver)
	}

	if c.Device.Index < 0 {
		return invalid("device.index %d, must not be negative", c.Device.Index)
	}

	return nil
}

func (k KCP) Validate() error {
	if k.MTU < 576 || k.MTU > 1500 {
		return invalid("server.kcp.mtu %d, must be between 576 and 1500", k.MTU)
	}

	if k.DataShards < 0 || k.DataShards > 255 {
		return invalid("server.kcp.data_shards %d, must be between 0 and 255", k.DataShards)
	}

	if k.ParityShards < 0 || k.ParityShards > 255 {
		return invalid("server.kcp.parity_shards %d, must be between 0 and 255", k.ParityShards)
	}

	if k.WindowSize[0] <= 0 || k.WindowSize[1] <= 0 {
		return invalid("server.kcp.window_size %v, both send and receive windows must be positive", k.WindowSize)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}
