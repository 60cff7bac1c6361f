package websocket

import (
	"context"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/gorilla/websocket"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal"
	"github.com/niclashoyer/rtltcp/internal/util"
	"github.com/niclashoyer/rtltcp/websocket/wsconn"
	"github.com/niclashoyer/rtltcp/xsdr"
)

// pendingConns bounds the upgraded connections waiting for the server to
// finish its current client.
const pendingConns = 8

var _ internal.Listener = (*Listener)(nil)

// Listener upgrades HTTP requests on one path to rtl_tcp streams.
type Listener struct {
	bind string
	conf conf.WebSocket

	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	widGener *internal.WIDGenerator
	connChan chan internal.ConnWrapper

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewListener(bind string, c conf.WebSocket) *Listener {
	return &Listener{
		bind:     bind,
		conf:     c,
		widGener: internal.NewWIDGenerator(xsdr.NetKindWebSocket),
		connChan: make(chan internal.ConnWrapper, pendingConns),
		stopped:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   c.ReadBufSize,
			WriteBufferSize:  c.WriteBufSize,
			HandshakeTimeout: c.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(c.AllowOrigins) == 0 {
					return true
				}

				return slices.Contains(c.AllowOrigins, origin)
			},
		},
	}
}

func (l *Listener) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(l.conf.Path, l.handleWebSocket)

	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: l.conf.HandshakeTimeout,
	}

	listener, err := net.Listen("tcp", l.bind)
	if err != nil {
		return errors.Wrapf(err, "listen failed. bind=%s", l.bind)
	}

	l.listener = listener

	xsync.Go("websocket.Listener", func() error {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return nil
}

func (l *Listener) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("[websocket.Listener] upgrade failed: %+v", err)
		return
	}

	wsConn := wsconn.New(conn)
	cw := internal.NewConnWrapper(l.widGener.Next(), wsConn, xsdr.NetKindWebSocket, xsdr.NewHeaderCarrier(r.Header))

	select {
	case l.connChan <- cw:
	case <-l.stopped:
		_ = wsConn.CloseGracefully()
	default:
		log.Errorf("[websocket.Listener] %d clients already waiting, dropping %s", pendingConns, conn.RemoteAddr())
		_ = wsConn.CloseGracefully()
	}
}

func (l *Listener) Stop(ctx context.Context) (err error) {
	l.stopOnce.Do(func() {
		close(l.stopped)

		if l.server != nil {
			if shutdownErr := l.server.Shutdown(ctx); shutdownErr != nil {
				err = errors.Join(err, shutdownErr)
			}
		}

		for {
			select {
			case cw := <-l.connChan:
				_ = cw.Conn.Close()
			default:
				return
			}
		}
	})

	return err
}

func (l *Listener) Accept(ctx context.Context) (internal.ConnWrapper, error) {
	select {
	case <-ctx.Done():
		return internal.ConnWrapper{}, ctx.Err()
	case <-l.stopped:
		return internal.ConnWrapper{}, net.ErrClosed
	case cw := <-l.connChan:
		return cw, nil
	}
}

func (l *Listener) Endpoint() (string, error) {
	if l.listener == nil {
		return "", errors.New("listener not started")
	}

	addr, err := util.Extract(l.listener.Addr().String())
	if err != nil {
		return "", err
	}

	return "ws://" + addr + l.conf.Path, nil
}
