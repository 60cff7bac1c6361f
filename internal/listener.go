package internal

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/niclashoyer/rtltcp/xsdr"
)

// Listener yields client connections for one transport.
type Listener interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Accept blocks until a client connects or the listener is stopped.
	Accept(ctx context.Context) (ConnWrapper, error)
	Endpoint() (string, error)
}

// ConnWrapper is an accepted connection with what the transport learned
// while setting it up.
type ConnWrapper struct {
	WID    uint64
	Conn   net.Conn
	Kind   xsdr.NetKind
	Header xsdr.HeaderCarrier
}

func NewConnWrapper(wid uint64, conn net.Conn, kind xsdr.NetKind, header xsdr.HeaderCarrier) ConnWrapper {
	if header == nil {
		header = xsdr.HeaderCarrier{}
	}

	return ConnWrapper{
		WID:    wid,
		Conn:   conn,
		Kind:   kind,
		Header: header,
	}
}

var netKindBits = map[xsdr.NetKind]uint64{
	xsdr.NetKindTCP:       0,
	xsdr.NetKindWebSocket: 1,
	xsdr.NetKindKCP:       2,
}

// WIDGenerator hands out connection ids. The low 4 bits carry the transport.
type WIDGenerator struct {
	counter *atomic.Uint64
	kind    uint64
}

func NewWIDGenerator(kind xsdr.NetKind) *WIDGenerator {
	return &WIDGenerator{
		counter: &atomic.Uint64{},
		kind:    netKindBits[kind],
	}
}

func (w *WIDGenerator) Next() uint64 {
	return w.counter.Add(1)<<4 | w.kind
}
