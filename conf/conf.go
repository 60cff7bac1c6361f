package conf

import (
	"net"
	"strconv"
	"time"

	"github.com/niclashoyer/rtltcp/xsdr"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Session Session `yaml:"session"`
	Device  Device  `yaml:"device"`
	Health  Health  `yaml:"health"`
	Log     Log     `yaml:"log"`
}

type Server struct {
	Network xsdr.NetKind `yaml:"network"`
	Address string       `yaml:"address"`
	Port    int          `yaml:"port"`
	// Once serves a single connection and then makes Start return.
	Once bool `yaml:"once"`
	// Systemd takes the first socket passed by the service manager instead
	// of binding Address:Port, when one was passed.
	Systemd     bool          `yaml:"systemd"`
	StopTimeout time.Duration `yaml:"stop_timeout"`

	TCP       TCP       `yaml:"tcp"`
	WebSocket WebSocket `yaml:"websocket"`
	KCP       KCP       `yaml:"kcp"`
}

type TCP struct {
	KeepAlive    bool `yaml:"keep_alive"`
	ReadBufSize  int  `yaml:"read_buf_size"`
	WriteBufSize int  `yaml:"write_buf_size"`
}

type WebSocket struct {
	Path             string        `yaml:"path"`
	AllowOrigins     []string      `yaml:"allow_origins"`
	ReadBufSize      int           `yaml:"read_buf_size"`
	WriteBufSize     int           `yaml:"write_buf_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type KCP struct {
	DataShards   int    `yaml:"data_shards"`
	ParityShards int    `yaml:"parity_shards"`
	NoDelay      [4]int `yaml:"no_delay"`
	WindowSize   [2]int `yaml:"window_size"`
	MTU          int    `yaml:"mtu"`
	ACKNoDelay   bool   `yaml:"ack_no_delay"`
	WriteDelay   bool   `yaml:"write_delay"`
	ReadBufSize  int    `yaml:"read_buf_size"`
	WriteBufSize int    `yaml:"write_buf_size"`
	DSCP         int    `yaml:"dscp"`
}

// Device error policies for configuration calls rejected by the driver.
const (
	OnDeviceErrorFatal  = "fatal"
	OnDeviceErrorIgnore = "ignore"
)

type Session struct {
	// BufNum is the number of in-flight device buffers.
	BufNum int `yaml:"buf_num"`
	// BufLen is passed through to the driver; 0 selects its default.
	BufLen int `yaml:"buf_len"`
	// WriteBufSize is the capacity of the buffered socket writer.
	WriteBufSize    int    `yaml:"write_buf_size"`
	FlushEachBuffer bool   `yaml:"flush_each_buffer"`
	OnDeviceError   string `yaml:"on_device_error"`
	// StopTimeout bounds the wait for the command and streaming goroutines
	// once teardown started.
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// Device drivers.
const (
	DriverRTLSDR = "rtlsdr"
	DriverDummy  = "dummy"
)

type Device struct {
	Driver string `yaml:"driver"`
	Index  int    `yaml:"index"`

	// Initial settings applied once after the device is opened.
	Frequency  uint32 `yaml:"frequency"`
	SampleRate uint32 `yaml:"sample_rate"`
	PPM        int32  `yaml:"ppm"`
	AGC        bool   `yaml:"agc"`
	Gain       int32  `yaml:"gain"`

	// Tuner and GainCount override what the device reports in the
	// handshake header. Zero keeps the device's values.
	Tuner     uint32 `yaml:"tuner"`
	GainCount uint32 `yaml:"gain_count"`
}

type Health struct {
	// Addr enables the health/metrics HTTP server when not empty.
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Bind returns the listen address.
func (s Server) Bind() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

func Default() Config {
	server := Server{
		Network:     xsdr.NetKindTCP,
		Address:     "::",
		Port:        1234,
		Systemd:     true,
		StopTimeout: time.Second * 10,
		TCP: TCP{
			KeepAlive:    true,
			ReadBufSize:  4096,
			WriteBufSize: 1024 * 1024,
		},
		WebSocket: WebSocket{
			Path:             "/rtltcp",
			ReadBufSize:      4096,
			WriteBufSize:     64 * 1024,
			HandshakeTimeout: time.Second * 10,
		},
		KCP: KCP{
			DataShards:   10,
			ParityShards: 3,
			NoDelay:      [4]int{1, 10, 2, 1},
			WindowSize:   [2]int{1024, 1024},
			MTU:          1400,
			ACKNoDelay:   true,
			WriteDelay:   false,
			ReadBufSize:  4 * 1024 * 1024,
			WriteBufSize: 4 * 1024 * 1024,
			DSCP:         46,
		},
	}

	session := Session{
		BufNum:        15,
		BufLen:        0,
		WriteBufSize:  500 * 1024,
		OnDeviceError: OnDeviceErrorFatal,
		StopTimeout:   time.Second * 3,
	}

	device := Device{
		Driver:     DriverRTLSDR,
		Index:      0,
		Frequency:  100_000_000,
		SampleRate: 2_048_000,
		PPM:        0,
		AGC:        true,
	}

	return Config{
		Server:  server,
		Session: session,
		Device:  device,
		Log: Log{
			Level: "info",
		},
	}
}
