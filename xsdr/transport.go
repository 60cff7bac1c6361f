package xsdr

import (
	"github.com/go-kratos/kratos/v2/transport"
	"google.golang.org/grpc/metadata"
)

type NetKind string

const (
	// NetKindTCP is the plain rtl_tcp transport.
	NetKindTCP NetKind = "tcp"
	// NetKindKCP carries the rtl_tcp byte stream over a KCP session.
	NetKindKCP NetKind = "kcp"
	// NetKindWebSocket carries the rtl_tcp byte stream in binary WebSocket messages.
	NetKindWebSocket NetKind = "ws"
)

// KindRTLTCP is the kratos transport kind reported for command frames.
const KindRTLTCP transport.Kind = "rtltcp"

var _ transport.Transporter = (*Transport)(nil)

// Transport describes the connection a command frame arrived on. It is put
// into the context handed to the command middleware chain.
type Transport struct {
	endpoint      string
	operation     string
	requestHeader HeaderCarrier
	replyHeader   HeaderCarrier
}

// NewTransport creates a new transport.
//
// endpoint: the remote address of the client.
// operation: the command operation name, see frame.Tag.Operation.
// requestHeader: headers captured at connection setup (WebSocket upgrade headers, empty otherwise).
func NewTransport(endpoint string, operation string, requestHeader HeaderCarrier) *Transport {
	if requestHeader == nil {
		requestHeader = HeaderCarrier{}
	}

	return &Transport{
		endpoint:      endpoint,
		operation:     operation,
		requestHeader: requestHeader,
		replyHeader:   HeaderCarrier{},
	}
}

// Kind returns the kind of the transport.
func (tr *Transport) Kind() transport.Kind {
	return KindRTLTCP
}

// Endpoint returns the endpoint.
func (tr *Transport) Endpoint() string {
	return tr.endpoint
}

// Operation returns the operation.
func (tr *Transport) Operation() string {
	return tr.operation
}

// RequestHeader returns the request header.
func (tr *Transport) RequestHeader() transport.Header {
	return tr.requestHeader
}

// ReplyHeader returns the reply header. rtl_tcp has no reply channel, so it
// is only visible to middleware.
func (tr *Transport) ReplyHeader() transport.Header {
	return tr.replyHeader
}

// HeaderCarrier is a wrapper around metadata.MD.
type HeaderCarrier metadata.MD

// NewHeaderCarrier copies a canonical header map (as found on an
// http.Request) into a carrier with lower-cased keys.
func NewHeaderCarrier(h map[string][]string) HeaderCarrier {
	md := metadata.MD{}
	for k, vs := range h {
		md.Append(k, vs...)
	}

	return HeaderCarrier(md)
}

// Get returns the first value associated with the given key.
// If there are no values associated with the key, Get returns "".
func (mc HeaderCarrier) Get(key string) string {
	vals := metadata.MD(mc).Get(key)
	if len(vals) > 0 {
		return vals[0]
	}

	return ""
}

// Set sets the value associated with key to value.
func (mc HeaderCarrier) Set(key string, value string) {
	metadata.MD(mc).Set(key, value)
}

// Keys returns all keys present in this metadata.
func (mc HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range metadata.MD(mc) {
		keys = append(keys, k)
	}

	return keys
}

// Add appends the value to the existing values for the given key.
func (mc HeaderCarrier) Add(key string, value string) {
	metadata.MD(mc).Append(key, value)
}

// Values returns all values associated with the key.
func (mc HeaderCarrier) Values(key string) []string {
	return metadata.MD(mc).Get(key)
}
