package server

import (
	"context"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal"
	"github.com/niclashoyer/rtltcp/internal/util"
	"github.com/niclashoyer/rtltcp/xsdr"
	kcpgo "github.com/xtaci/kcp-go/v5"
)

var _ internal.Listener = (*Listener)(nil)

// Listener accepts KCP sessions, each one carrying a full rtl_tcp stream.
type Listener struct {
	bind     string
	conf     conf.KCP
	listener *kcpgo.Listener
	widGener *internal.WIDGenerator
}

func NewListener(bind string, c conf.KCP) (*Listener, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Listener{
		bind:     bind,
		conf:     c,
		widGener: internal.NewWIDGenerator(xsdr.NetKindKCP),
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	listener, err := kcpgo.ListenWithOptions(l.bind, nil, l.conf.DataShards, l.conf.ParityShards)
	if err != nil {
		return errors.Wrapf(err, "kcp listen failed. bind=%s", l.bind)
	}

	if err := listener.SetReadBuffer(l.conf.ReadBufSize); err != nil {
		return errors.Wrapf(err, "set read buffer failed")
	}

	if err := listener.SetWriteBuffer(l.conf.WriteBufSize); err != nil {
		return errors.Wrapf(err, "set write buffer failed")
	}

	if err := listener.SetDSCP(l.conf.DSCP); err != nil {
		return errors.Wrapf(err, "set dscp failed")
	}

	l.listener = listener

	return nil
}

func (l *Listener) Accept(ctx context.Context) (internal.ConnWrapper, error) {
	conn, err := l.listener.AcceptKCP()
	if err != nil {
		return internal.ConnWrapper{}, errors.Wrapf(err, "accept kcp failed")
	}

	Configure(conn, l.conf)

	return internal.NewConnWrapper(l.widGener.Next(), conn, xsdr.NetKindKCP, nil), nil
}

func (l *Listener) Stop(ctx context.Context) error {
	if l.listener == nil {
		return nil
	}

	if err := l.listener.Close(); err != nil {
		return errors.Wrapf(err, "close listener failed")
	}

	return nil
}

func (l *Listener) Endpoint() (string, error) {
	if l.listener == nil {
		return "", errors.New("listener not started")
	}

	addr, err := util.Extract(l.listener.Addr().String())
	if err != nil {
		return "", err
	}

	return "kcp://" + addr, nil
}

// Configure applies the protocol parameters to a session. Both ends of a
// connection must agree on them.
func Configure(conn *kcpgo.UDPSession, c conf.KCP) {
	conn.SetNoDelay(c.NoDelay[0], c.NoDelay[1], c.NoDelay[2], c.NoDelay[3])
	conn.SetWindowSize(c.WindowSize[0], c.WindowSize[1])
	conn.SetMtu(c.MTU)
	conn.SetACKNoDelay(c.ACKNoDelay)
	conn.SetWriteDelay(c.WriteDelay)
	conn.SetStreamMode(true)
}
