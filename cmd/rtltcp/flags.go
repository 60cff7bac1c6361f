package main

import (
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/spf13/pflag"
)

// loadConf builds the configuration from defaults, an optional YAML file and
// command line flags, in that order of precedence.
func loadConf(args []string) (conf.Config, error) {
	fs := pflag.NewFlagSet(Name, pflag.ContinueOnError)

	var (
		path       = fs.StringP("config", "c", "", "YAML configuration file")
		network    = fs.StringP("network", "n", "", "transport: tcp, ws or kcp")
		address    = fs.StringP("address", "a", "", "listen address")
		port       = fs.IntP("port", "p", 0, "listen port")
		once       = fs.Bool("once", false, "serve a single client, then exit")
		systemd    = fs.Bool("systemd", true, "use a socket passed by systemd when there is one")
		driver     = fs.String("driver", "", "device driver: rtlsdr or dummy")
		index      = fs.IntP("device-index", "d", 0, "device index")
		frequency  = fs.Uint32P("freq", "f", 0, "initial center frequency in Hz")
		sampleRate = fs.Uint32P("sample-rate", "s", 0, "initial sample rate in Hz")
		ppm        = fs.Int32P("ppm", "P", 0, "initial frequency correction in ppm")
		gain       = fs.Int32P("gain", "g", 0, "initial manual gain in tenths of a dB, disables AGC")
		agc        = fs.Bool("agc", true, "start with automatic gain control")
		bufNum     = fs.IntP("buffers", "b", 0, "number of device buffers")
		writeBuf   = fs.Int("write-buffer", 0, "socket writer buffer size in bytes")
		onDevErr   = fs.String("on-device-error", "", "fatal or ignore")
		healthAddr = fs.String("health-addr", "", "health and metrics listen address, empty disables")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error")
	)

	if err := fs.Parse(args); err != nil {
		return conf.Config{}, err
	}

	c := conf.Default()

	if *path != "" {
		loaded, err := conf.Load(*path)
		if err != nil {
			return c, err
		}

		c = loaded
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("network", func() { c.Server.Network = xsdr.NetKind(*network) })
	set("address", func() { c.Server.Address = *address })
	set("port", func() { c.Server.Port = *port })
	set("once", func() { c.Server.Once = *once })
	set("systemd", func() { c.Server.Systemd = *systemd })
	set("driver", func() { c.Device.Driver = *driver })
	set("device-index", func() { c.Device.Index = *index })
	set("freq", func() { c.Device.Frequency = *frequency })
	set("sample-rate", func() { c.Device.SampleRate = *sampleRate })
	set("ppm", func() { c.Device.PPM = *ppm })
	set("agc", func() { c.Device.AGC = *agc })
	set("gain", func() {
		c.Device.Gain = *gain
		c.Device.AGC = false
	})
	set("buffers", func() { c.Session.BufNum = *bufNum })
	set("write-buffer", func() { c.Session.WriteBufSize = *writeBuf })
	set("on-device-error", func() { c.Session.OnDeviceError = *onDevErr })
	set("health-addr", func() { c.Health.Addr = *healthAddr })
	set("log-level", func() { c.Log.Level = *logLevel })

	return c, c.Validate()
}
