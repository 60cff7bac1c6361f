package server

import (
	"context"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal"
	kcpserver "github.com/niclashoyer/rtltcp/kcp/server"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
	wsserver "github.com/niclashoyer/rtltcp/websocket/server"
	"github.com/niclashoyer/rtltcp/xsdr"
)

// ErrServedOnce is returned by Start after the single connection of a
// once-mode server has been served.
var ErrServedOnce = errors.New("served one connection")

var (
	_ transport.Server     = (*Server)(nil)
	_ transport.Endpointer = (*Server)(nil)
)

// Server accepts clients one at a time and bridges each to a freshly
// opened device.
type Server struct {
	xsync.Stoppable
	*Options

	opener   xsdr.Opener
	listener internal.Listener

	mu       sync.Mutex
	stopping atomic.Bool
	current  *internal.Session

	listening chan struct{}
	served    chan struct{}
	started   atomic.Bool
}

func New(opener xsdr.Opener, opts ...Option) (*Server, error) {
	options := NewOptions(opts...)

	if err := options.conf.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		Stoppable: xsync.NewStopper(stopTimeout(options.conf.Server.StopTimeout)),
		Options:   options,
		opener:    opener,
		listening: make(chan struct{}),
		served:    make(chan struct{}),
	}

	if options.listener != nil {
		s.listener = options.listener
		return s, nil
	}

	bind := options.conf.Server.Bind()

	switch options.conf.Server.Network {
	case xsdr.NetKindWebSocket:
		s.listener = wsserver.NewListener(bind, options.conf.Server.WebSocket)
	case xsdr.NetKindKCP:
		l, err := kcpserver.NewListener(bind, options.conf.Server.KCP)
		if err != nil {
			return nil, err
		}

		s.listener = l
	default:
		s.listener = newTCPListener(bind, options.conf.Server.TCP, options.conf.Server.Systemd)
	}

	return s, nil
}

// Start binds the listener and serves clients until Stop is called or ctx
// is done. It returns ErrServedOnce in once mode and any fatal device error.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server already started")
	}

	defer close(s.served)

	if err := s.listener.Start(ctx); err != nil {
		return err
	}

	endpoint, err := s.listener.Endpoint()
	if err != nil {
		return err
	}

	log.Infof("[rtltcp.Server] listening on %s", endpoint)

	close(s.listening)

	for _, f := range s.afterListen {
		f(endpoint)
	}

	return s.serveLoop(ctx)
}

func (s *Server) serveLoop(ctx context.Context) error {
	for {
		select {
		case <-s.StopTriggered():
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		cw, err := s.listener.Accept(ctx)
		if err != nil {
			if s.stopping.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			log.Errorf("[rtltcp.Server] %+v", err)

			continue
		}

		if err := s.serve(ctx, cw); err != nil {
			return err
		}

		if s.conf.Server.Once {
			return ErrServedOnce
		}
	}
}

func (s *Server) serve(ctx context.Context, cw internal.ConnWrapper) (err error) {
	defer func() {
		if closeErr := cw.Conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			log.Debugf("[rtltcp.Server] close connection failed. wid=%d %+v", cw.WID, closeErr)
		}

		if err != nil {
			err = errors.WithMessagef(err, "wid=%d remote-addr=%s", cw.WID, cw.Conn.RemoteAddr())
		}
	}()

	log.Infof("[rtltcp.Server] accepted %s over %s. wid=%d", cw.Conn.RemoteAddr(), cw.Kind, cw.WID)

	index := s.conf.Device.Index

	dev, err := s.opener(index)
	if err != nil {
		return errors.Wrapf(err, "open device failed. index=%d", index)
	}

	defer func() {
		if closeErr := dev.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrapf(closeErr, "close device failed"))
		}
	}()

	info := DongleInfo(dev, s.conf.Device)
	sess := internal.NewSession(cw, dev, info, s.conf.Session, s.ReadFilter(), s.Logger())

	if err = sess.Configure(internal.InitialCommands(s.conf.Device)); err != nil {
		return err
	}

	if !s.setCurrent(sess) {
		return nil
	}

	defer s.setCurrent(nil)

	return sess.Run(ctx)
}

// setCurrent publishes the running session so Stop can reach it. It
// refuses a new session once Stop has begun.
func (s *Server) setCurrent(sess *internal.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess != nil && s.stopping.Load() {
		return false
	}

	s.current = sess

	return true
}

// Stop interrupts the current session, closes the listener and waits for
// the serving loop to return.
func (s *Server) Stop(ctx context.Context) error {
	return s.TurnOff(func() error {
		s.mu.Lock()
		s.stopping.Store(true)

		if s.current != nil {
			s.current.Stop()
		}
		s.mu.Unlock()

		err := s.listener.Stop(ctx)

		if s.started.Load() {
			select {
			case <-s.served:
			case <-ctx.Done():
				err = errors.Join(err, errors.Wrapf(ctx.Err(), "wait for current client failed"))
			}
		}

		log.Info("[rtltcp.Server] stopped")

		return err
	})
}

// Listening is closed once the listener is bound.
func (s *Server) Listening() <-chan struct{} {
	return s.listening
}

func (s *Server) Endpoint() (*url.URL, error) {
	endpoint, err := s.listener.Endpoint()
	if err != nil {
		return nil, err
	}

	return url.Parse(endpoint)
}

// DongleInfo builds the handshake header for dev. Values the device cannot
// report fall back to an R820T with 29 gain steps; configured overrides win.
func DongleInfo(dev xsdr.Device, d conf.Device) frame.DongleInfo {
	tuner := dev.Tuner()
	if tuner == xsdr.TunerUnknown {
		tuner = frame.DefaultTuner
	}

	gains := uint32(frame.DefaultGainCount)
	if n := dev.GainCount(); n > 0 {
		gains = uint32(n)
	}

	if d.Tuner != 0 {
		tuner = xsdr.Tuner(d.Tuner)
	}

	if d.GainCount != 0 {
		gains = d.GainCount
	}

	return frame.NewDongleInfo(tuner, gains)
}

func stopTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second * 10
	}

	return d
}
