package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/device/dummy"
	"github.com/niclashoyer/rtltcp/device/rtlsdr"
	"github.com/niclashoyer/rtltcp/http/health"
	"github.com/niclashoyer/rtltcp/rtltcp/server"
	"github.com/niclashoyer/rtltcp/xsdr"
)

var (
	Name = "rtltcp"
	// Version is set with -ldflags "-X main.Version=x.y.z".
	Version = "dev"

	id, _ = os.Hostname()
)

func main() {
	c, err := loadConf(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", Name, err)
		os.Exit(2)
	}

	logger := newLogger(c.Log.Level)
	log.SetLogger(logger)

	app, err := newApp(c, logger)
	if err != nil {
		log.Errorf("[rtltcp] %+v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil && !errors.Is(err, server.ErrServedOnce) {
		log.Errorf("[rtltcp] %+v", err)
		os.Exit(1)
	}
}

func newLogger(level string) log.Logger {
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(level)))
}

func newApp(c conf.Config, logger log.Logger) (*kratos.App, error) {
	srv, err := server.New(opener(c.Device.Driver),
		server.WithConf(c),
		server.WithLogger(logger),
		server.WithAfterListen(func(endpoint string) {
			notify(daemon.SdNotifyReady)
		}),
	)
	if err != nil {
		return nil, err
	}

	servers := []transport.Server{srv}

	if c.Health.Addr != "" {
		servers = append(servers, health.NewServer(c.Health.Addr, srv.Listening()))
	}

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(logger),
		kratos.Server(servers...),
		kratos.StopTimeout(c.Server.StopTimeout),
		kratos.BeforeStop(func(context.Context) error {
			notify(daemon.SdNotifyStopping)
			return nil
		}),
	), nil
}

func opener(driver string) xsdr.Opener {
	if driver == conf.DriverDummy {
		return dummy.Opener()
	}

	return rtlsdr.Open
}

// notify reports state to systemd. Outside a Type=notify unit it does nothing.
func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debugf("[rtltcp] sd_notify %q failed. %+v", state, err)
	}
}
