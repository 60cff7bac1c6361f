package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"github.com/gorilla/websocket"
	"github.com/niclashoyer/rtltcp/conf"
	"github.com/niclashoyer/rtltcp/internal/util"
	kcpserver "github.com/niclashoyer/rtltcp/kcp/server"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
	"github.com/niclashoyer/rtltcp/websocket/wsconn"
	"github.com/niclashoyer/rtltcp/xsdr"
	kcpgo "github.com/xtaci/kcp-go/v5"
)

type Option func(c *Client)

// Network selects the transport. The default is plain TCP.
func Network(kind xsdr.NetKind) Option {
	return func(c *Client) {
		c.network = kind
	}
}

// WebSocketPath sets the upgrade path used with the ws network.
func WebSocketPath(path string) Option {
	return func(c *Client) {
		c.wsPath = path
	}
}

// KCP sets the protocol parameters used with the kcp network.
func KCP(k conf.KCP) Option {
	return func(c *Client) {
		c.kcp = k
	}
}

func DialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// Client is an rtl_tcp client: it reads the dongle header, then exposes the
// sample stream through Read while commands are sent on the same connection.
type Client struct {
	xsync.Stoppable

	addr        string
	network     xsdr.NetKind
	wsPath      string
	kcp         conf.KCP
	dialTimeout time.Duration

	conn  net.Conn
	codec *frame.Codec
	info  frame.DongleInfo

	sendMu sync.Mutex
}

func New(addr string, opts ...Option) *Client {
	defaults := conf.Default().Server

	c := &Client{
		Stoppable:   xsync.NewStopper(time.Second * 10),
		addr:        addr,
		network:     xsdr.NetKindTCP,
		wsPath:      defaults.WebSocket.Path,
		kcp:         defaults.KCP,
		dialTimeout: time.Second * 5,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// Start connects and reads the dongle header. Cancelling ctx afterwards
// fails pending reads and writes.
func (c *Client) Start(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	util.SetDeadlineWithContext(ctx, conn, "rtltcp.Client "+c.addr)

	c.conn = conn
	c.codec = frame.New(conn, 0)

	// A KCP session is only accepted once the server sees a segment from us.
	// Tag 0 is not a command and is dropped by the server.
	if c.network == xsdr.NetKindKCP {
		if err := c.codec.EncodeCommand(frame.Command{}); err != nil {
			return errors.Join(errors.Wrapf(err, "open kcp session failed. addr=%s", c.addr), conn.Close())
		}
	}

	info, err := c.codec.DecodeDongleInfo()
	if err != nil {
		return errors.Join(errors.Wrapf(err, "read dongle info failed. addr=%s", c.addr), conn.Close())
	}

	c.info = info

	log.Infof("[rtltcp.Client] connected to %s: %s", c.addr, info)

	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	switch c.network {
	case xsdr.NetKindWebSocket:
		url := "ws://" + c.addr + c.wsPath

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if err != nil {
			return nil, errors.Wrapf(err, "connect failed. url=%s", url)
		}

		return wsconn.New(conn), nil
	case xsdr.NetKindKCP:
		sess, err := kcpgo.DialWithOptions(c.addr, nil, c.kcp.DataShards, c.kcp.ParityShards)
		if err != nil {
			return nil, errors.Wrapf(err, "connect failed. addr=%s", c.addr)
		}

		kcpserver.Configure(sess, c.kcp)

		return sess, nil
	default:
		var d net.Dialer

		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			return nil, errors.Wrapf(err, "connect failed. addr=%s", c.addr)
		}

		return conn, nil
	}
}

func (c *Client) Info() frame.DongleInfo {
	return c.info
}

// Read reads raw interleaved I/Q bytes.
func (c *Client) Read(p []byte) (int, error) {
	return c.codec.Read(p)
}

func (c *Client) Send(cmd frame.Command) error {
	if c.OnStopping() {
		return xsync.ErrIsStopped
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	return c.codec.EncodeCommand(cmd)
}

func (c *Client) SetCenterFreq(hz uint32) error {
	return c.Send(frame.NewCommand(frame.TagSetCenterFreq, hz))
}

func (c *Client) SetSampleRate(hz uint32) error {
	return c.Send(frame.NewCommand(frame.TagSetSampleRate, hz))
}

// SetTunerGain sets a manual gain in tenths of a dB.
func (c *Client) SetTunerGain(gain int32) error {
	return c.Send(frame.NewSignedCommand(frame.TagSetTunerGain, gain))
}

func (c *Client) SetFreqCorrection(ppm int32) error {
	return c.Send(frame.NewSignedCommand(frame.TagSetFreqCorr, ppm))
}

func (c *Client) SetAGCMode(on bool) error {
	return c.Send(frame.NewAGCCommand(on))
}

func (c *Client) Stop(ctx context.Context) error {
	return c.TurnOff(func() error {
		if c.conn == nil {
			return nil
		}

		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return errors.Wrapf(err, "close connection failed")
		}

		log.Infof("[rtltcp.Client] disconnected from %s", c.addr)

		return nil
	})
}
