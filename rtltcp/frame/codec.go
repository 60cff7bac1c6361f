package frame

import (
	"bufio"
	"io"

	"github.com/go-pantheon/fabrica-util/errors"
)

var (
	ErrShortRead    = errors.New("short read")
	ErrShortWrite   = errors.New("short write")
	ErrInvalidMagic = errors.New("invalid dongle magic")
)

// Codec reads command frames from and writes the header and sample stream to
// one connection. Reads are unbuffered so that a frame is never held back
// from the dispatcher; writes go through a bufio.Writer sized to amortize
// socket writes across small device buffers.
type Codec struct {
	r io.Reader
	w *bufio.Writer
}

// New creates a codec over conn. writeBufSize <= 0 selects the bufio default.
func New(conn io.ReadWriter, writeBufSize int) *Codec {
	return &Codec{
		r: conn,
		w: bufio.NewWriterSize(conn, writeBufSize),
	}
}

// DecodeCommand reads exactly one command frame. It returns io.EOF when the
// stream ends on a frame boundary and ErrShortRead when it ends inside one.
func (c *Codec) DecodeCommand() (Command, error) {
	var b [CommandSize]byte

	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		if err == io.EOF {
			return Command{}, io.EOF
		}

		if err == io.ErrUnexpectedEOF {
			return Command{}, ErrShortRead
		}

		return Command{}, errors.Wrap(err, "read command failed")
	}

	cmd := Command{Tag: Tag(b[0])}
	copy(cmd.Param[:], b[1:])

	return cmd, nil
}

// EncodeCommand writes one command frame and flushes it.
func (c *Codec) EncodeCommand(cmd Command) error {
	b := cmd.Bytes()

	return c.writeAndFlush(b[:], "write command failed")
}

// EncodeDongleInfo writes the handshake header and flushes it so the client
// sees it before the first sample buffer fills the writer.
func (c *Codec) EncodeDongleInfo(info DongleInfo) error {
	b := info.Bytes()

	return c.writeAndFlush(b[:], "write dongle info failed")
}

// DecodeDongleInfo reads and validates the handshake header.
func (c *Codec) DecodeDongleInfo() (DongleInfo, error) {
	var b [DongleInfoSize]byte

	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return DongleInfo{}, ErrShortRead
		}

		return DongleInfo{}, errors.Wrap(err, "read dongle info failed")
	}

	info := parseDongleInfo(b)
	if !info.Valid() {
		return info, ErrInvalidMagic
	}

	return info, nil
}

// WriteSamples appends buf to the outbound stream verbatim.
func (c *Codec) WriteSamples(buf []byte) error {
	n, err := c.w.Write(buf)
	if err != nil {
		return errors.Wrap(err, "write samples failed")
	}

	if n != len(buf) {
		return ErrShortWrite
	}

	return nil
}

// Flush pushes buffered samples to the connection.
func (c *Codec) Flush() error {
	if err := c.w.Flush(); err != nil {
		return errors.Wrap(err, "flush writer failed")
	}

	return nil
}

// Read reads raw sample bytes. It is used on the client side after the
// header has been decoded.
func (c *Codec) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *Codec) writeAndFlush(b []byte, msg string) error {
	n, err := c.w.Write(b)
	if err != nil {
		return errors.Wrap(err, msg)
	}

	if n != len(b) {
		return ErrShortWrite
	}

	return c.Flush()
}
