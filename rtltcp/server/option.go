package server

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal"
)

type Option func(o *Options)

func WithConf(c conf.Config) Option {
	return func(o *Options) {
		o.conf = c
	}
}

// WithLogger sets the sink for session logs.
func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithReadFilter appends m to the middleware every command frame passes.
func WithReadFilter(m middleware.Middleware) Option {
	return func(o *Options) {
		if o.readFilter == nil {
			o.readFilter = m
			return
		}

		o.readFilter = middleware.Chain(o.readFilter, m)
	}
}

// WithListener replaces the listener picked from the configured network.
func WithListener(l internal.Listener) Option {
	return func(o *Options) {
		o.listener = l
	}
}

// WithAfterListen registers f to run once the listener is bound.
func WithAfterListen(f func(endpoint string)) Option {
	return func(o *Options) {
		o.afterListen = append(o.afterListen, f)
	}
}

type Options struct {
	conf        conf.Config
	logger      log.Logger
	readFilter  middleware.Middleware
	listener    internal.Listener
	afterListen []func(endpoint string)
}

func NewOptions(opts ...Option) *Options {
	ret := &Options{
		conf:   conf.Default(),
		logger: log.GetLogger(),
		readFilter: middleware.Chain(
			recovery.Recovery(),
			internal.CommandMetrics(),
		),
	}

	for _, o := range opts {
		o(ret)
	}

	return ret
}

func (o *Options) Conf() conf.Config {
	return o.conf
}

func (o *Options) Logger() log.Logger {
	return o.logger
}

func (o *Options) ReadFilter() middleware.Middleware {
	return o.readFilter
}
