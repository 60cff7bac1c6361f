package wsconn

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/gorilla/websocket"
)

var ErrInvalidFrameType = errors.New("invalid frame type")

const MessageType = websocket.BinaryMessage

var _ net.Conn = (*Conn)(nil)

// Conn carries a byte stream over binary WebSocket messages. Message
// boundaries carry no meaning: a read may span messages and each Write
// becomes one message.
type Conn struct {
	conn *websocket.Conn

	rmu    sync.Mutex
	reader io.Reader

	wmu sync.Mutex
}

func New(conn *websocket.Conn) *Conn {
	return &Conn{
		conn: conn,
	}
}

func (c *Conn) Read(b []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.reader == nil {
			mt, r, err := c.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}

				return 0, err
			}

			if mt != MessageType {
				return 0, ErrInvalidFrameType
			}

			c.reader = r
		}

		n, err := c.reader.Read(b)
		if err == io.EOF {
			c.reader = nil

			if n == 0 {
				continue
			}

			return n, nil
		}

		return n, err
	}
}

func (c *Conn) Write(b []byte) (n int, err error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	w, err := c.conn.NextWriter(MessageType)
	if err != nil {
		return 0, err
	}

	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return w.Write(b)
}

// CloseGracefully sends a close message before closing the connection.
func (c *Conn) CloseGracefully() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()

	return c.conn.Close()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}

	return c.conn.SetWriteDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *Conn) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}
