package internal

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal/util"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
	"github.com/niclashoyer/rtltcp/xsdr"
	"golang.org/x/sync/errgroup"
)

const defaultSessionStopTimeout = time.Second * 3

var ErrStopTimeout = errors.New("session did not stop in time")

// Session bridges one client connection to one opened device.
type Session struct {
	id   uint64
	conn net.Conn
	conf conf.Session

	dev      *guardedDevice
	shutdown *Shutdown

	dispatcher *dispatcher
	forwarder  *forwarder

	log *log.Helper
}

func NewSession(cw ConnWrapper, dev xsdr.Device, info frame.DongleInfo, c conf.Session,
	filter middleware.Middleware, logger log.Logger,
) *Session {
	if logger == nil {
		logger = log.GetLogger()
	}

	endpoint := cw.Conn.RemoteAddr().String()
	helper := log.NewHelper(log.With(logger, "module", "rtltcp/session", "wid", cw.WID,
		"net", string(cw.Kind), "client_ip", util.ClientIP(cw.Header, endpoint)))

	shutdown := NewShutdown()
	gdev := newGuardedDevice(dev, shutdown)
	codec := frame.New(cw.Conn, c.WriteBufSize)

	s := &Session{
		id:       cw.WID,
		conn:     cw.Conn,
		conf:     c,
		dev:      gdev,
		shutdown: shutdown,
		log:      helper,
	}

	s.dispatcher = &dispatcher{
		codec:        codec,
		dev:          gdev,
		shutdown:     shutdown,
		filter:       filter,
		endpoint:     endpoint,
		header:       cw.Header,
		ignoreErrors: c.OnDeviceError == conf.OnDeviceErrorIgnore,
		log:          helper,
	}

	s.forwarder = &forwarder{
		codec:     codec,
		dev:       gdev,
		shutdown:  shutdown,
		info:      info,
		bufNum:    c.BufNum,
		bufLen:    c.BufLen,
		flushEach: c.FlushEachBuffer,
		log:       helper,
	}

	return s
}

// Configure applies the initial device settings. Any rejection is returned;
// these calls run before the client gets its header.
func (s *Session) Configure(cmds []frame.Command) error {
	for _, cmd := range cmds {
		if err := s.dev.apply(cmd); err != nil {
			return errors.Wrapf(err, "initial %s failed", cmd.Tag)
		}

		s.log.Debugw("msg", "initial setting applied", "command", cmd.Tag.String(), "value", cmd.Value())
	}

	return nil
}

// Run serves the connection until the client goes away, a write fails, the
// device fails or ctx is cancelled. The connection is left open for the
// caller to close.
func (s *Session) Run(ctx context.Context) error {
	sessionActive.Set(1)
	defer sessionActive.Set(0)

	s.log.Infow("msg", "client connected", "header", s.forwarder.info.String())

	var workers sync.WaitGroup

	workers.Add(2)

	eg := new(errgroup.Group)
	eg.Go(func() error {
		defer workers.Done()

		return xsync.Run(func() error {
			return s.forwarder.run(ctx)
		})
	})
	eg.Go(func() error {
		defer workers.Done()

		return xsync.Run(func() error {
			return s.dispatcher.run(ctx)
		})
	})
	eg.Go(func() error {
		return s.coordinate(ctx, &workers)
	})

	err := eg.Wait()

	sessionsTotal.WithLabelValues(s.shutdown.Reason().String()).Inc()
	s.log.Infow("msg", "client disconnected", "reason", s.shutdown.Reason().String())

	return err
}

// Stop requests shutdown from outside, e.g. on process interrupt.
func (s *Session) Stop() {
	s.shutdown.Trigger(ReasonInterrupt)
}

func (s *Session) Shutdown() *Shutdown {
	return s.shutdown
}

func (s *Session) WID() uint64 {
	return s.id
}

// coordinate waits for the first shutdown request and tears the session
// down: cancel the device stream, fence off further configuration calls,
// unblock the connection, then wait for both workers.
func (s *Session) coordinate(ctx context.Context, workers *sync.WaitGroup) error {
	defer s.shutdown.terminate()

	select {
	case <-ctx.Done():
		s.shutdown.Trigger(ReasonInterrupt)
	case <-s.shutdown.Notify():
	}

	s.shutdown.cancelling()
	s.log.Debugw("msg", "session stopping", "reason", s.shutdown.Reason().String())

	if err := s.dev.cancelAsync(); err != nil {
		s.log.Debugw("msg", "cancel device stream failed", "error", err)
	}

	s.dev.markExit()

	if err := s.conn.SetDeadline(time.Now()); err != nil {
		s.log.Debugw("msg", "set connection deadline failed", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		workers.Wait()
		close(stopped)
	}()

	timeout := s.conf.StopTimeout
	if timeout <= 0 {
		timeout = defaultSessionStopTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-stopped:
		return nil
	case <-timer.C:
	}

	// A write stuck below the deadline machinery, e.g. a websocket frame
	// writer, only gives up when the connection is closed.
	if err := s.conn.Close(); err != nil {
		s.log.Debugw("msg", "close connection failed", "error", err)
	}

	timer.Reset(timeout)

	select {
	case <-stopped:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// InitialCommands turns the configured device settings into the frames
// applied before streaming starts.
func InitialCommands(d conf.Device) []frame.Command {
	cmds := []frame.Command{
		frame.NewAGCCommand(d.AGC),
		frame.NewSignedCommand(frame.TagSetFreqCorr, d.PPM),
	}

	if d.Frequency > 0 {
		cmds = append(cmds, frame.NewCommand(frame.TagSetCenterFreq, d.Frequency))
	}

	if d.SampleRate > 0 {
		cmds = append(cmds, frame.NewCommand(frame.TagSetSampleRate, d.SampleRate))
	}

	if !d.AGC {
		cmds = append(cmds, frame.NewSignedCommand(frame.TagSetTunerGain, d.Gain))
	}

	return cmds
}
