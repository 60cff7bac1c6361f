package server

import (
	"context"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal"
	"github.com/niclashoyer/rtltcp/internal/util"
	"github.com/niclashoyer/rtltcp/xsdr"
)

var _ internal.Listener = (*tcpListener)(nil)

type tcpListener struct {
	bind    string
	conf    conf.TCP
	systemd bool

	listener net.Listener
	widGener *internal.WIDGenerator
}

func newTCPListener(bind string, c conf.TCP, systemd bool) *tcpListener {
	return &tcpListener{
		bind:     bind,
		conf:     c,
		systemd:  systemd,
		widGener: internal.NewWIDGenerator(xsdr.NetKindTCP),
	}
}

func (l *tcpListener) Start(ctx context.Context) error {
	listener, err := l.listen()
	if err != nil {
		return err
	}

	l.listener = listener

	util.CloseOnCancel(ctx, listener, "rtltcp.Listener")

	return nil
}

func (l *tcpListener) listen() (net.Listener, error) {
	if l.systemd {
		listeners, err := activation.Listeners()
		if err != nil {
			return nil, errors.Wrapf(err, "read systemd sockets failed")
		}

		for _, lis := range listeners {
			if lis != nil {
				log.Infof("[rtltcp.Listener] using socket passed by systemd %s", lis.Addr())
				return lis, nil
			}
		}
	}

	addr, err := net.ResolveTCPAddr("tcp", l.bind)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve bind failed. bind=%s", l.bind)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen failed. addr=%s", addr.String())
	}

	return listener, nil
}

func (l *tcpListener) Stop(ctx context.Context) error {
	if l.listener == nil {
		return nil
	}

	if err := l.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrapf(err, "close listener failed")
	}

	return nil
}

func (l *tcpListener) Accept(ctx context.Context) (wrapper internal.ConnWrapper, err error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return internal.ConnWrapper{}, errors.Wrapf(err, "accept failed")
	}

	defer func() {
		if err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				err = errors.Join(err, errors.Wrapf(closeErr, "close tcp connection failed"))
			}
		}
	}()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := l.configure(tcpConn); err != nil {
			return internal.ConnWrapper{}, errors.Wrapf(err, "configure connection failed")
		}
	}

	return internal.NewConnWrapper(l.widGener.Next(), conn, xsdr.NetKindTCP, nil), nil
}

func (l *tcpListener) configure(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(l.conf.KeepAlive); err != nil {
		return errors.Wrapf(err, "SetKeepAlive failed v=%v", l.conf.KeepAlive)
	}

	if err := conn.SetNoDelay(true); err != nil {
		return errors.Wrapf(err, "SetNoDelay failed")
	}

	if l.conf.ReadBufSize > 0 {
		if err := conn.SetReadBuffer(l.conf.ReadBufSize); err != nil {
			return errors.Wrapf(err, "SetReadBuffer failed v=%d", l.conf.ReadBufSize)
		}
	}

	if l.conf.WriteBufSize > 0 {
		if err := conn.SetWriteBuffer(l.conf.WriteBufSize); err != nil {
			return errors.Wrapf(err, "SetWriteBuffer failed v=%d", l.conf.WriteBufSize)
		}
	}

	return nil
}

func (l *tcpListener) Endpoint() (string, error) {
	if l.listener == nil {
		return "", errors.New("listener not started")
	}

	addr, err := util.Extract(l.listener.Addr().String())
	if err != nil {
		return "", err
	}

	return "tcp://" + addr, nil
}
