package grpclink

import (
	"context"
	"io"
	"net/url"

	"google.golang.org/grpc/codes"

	"github.com/lunadial/grpclink/codec"
	"github.com/lunadial/grpclink/status"
)

// Client dispatches gRPC calls over a Transport. It exposes the four call
// shapes (unary, client-streaming, server-streaming, and bidirectional
// streaming), all implemented on top of the one Streaming primitive.
//
// Configuration is immutable: the builder-style setters return an updated
// copy and each call captures the configuration by value, so clones of a
// Client may issue calls concurrently. They share only the Transport, which
// must tolerate concurrent in-flight calls per its own contract.
type Client struct {
	transport Transport
	config    config
}

type config struct {
	origin *url.URL

	// The single encoding applied to request messages, or "" for identity.
	// The peer may reject it; that surfaces as a call error, never as a
	// local validation failure.
	sendEncoding string
	// Encodings the peer is allowed to use on response messages, in the
	// order they were added. Identity is always implicitly acceptable.
	acceptEncodings []string

	// Per-message byte ceilings. Zero means no ceiling is configured at
	// this layer.
	maxDecodeSize int
	maxEncodeSize int
}

// New creates a Client with an empty origin. Requests built by such a client
// carry only the call path, which suits transports that already know where
// they are connected.
func New(t Transport) *Client {
	return NewWithOrigin(t, &url.URL{})
}

// NewWithOrigin creates a Client whose requests target the given origin.
// Only the scheme, authority, and base path of origin are used; the rest of
// the path and the query are overwritten per call. The URL is copied, so
// the caller may keep mutating it.
func NewWithOrigin(t Transport, origin *url.URL) *Client {
	o := &url.URL{}
	if origin != nil {
		*o = *origin
	}
	return &Client{
		transport: t,
		config:    config{origin: o},
	}
}

func (c *Client) clone() *Client {
	c2 := *c
	if c.config.origin != nil {
		o := *c.config.origin
		c2.config.origin = &o
	}
	c2.config.acceptEncodings = append([]string(nil), c.config.acceptEncodings...)
	return &c2
}

// SendCompressed returns a copy of c that compresses request messages with
// the named encoding. The encoding must be registered with the codec
// package; whether the server accepts it is the server's concern and is not
// validated here.
func (c *Client) SendCompressed(name string) *Client {
	c2 := c.clone()
	c2.config.sendEncoding = name
	return c2
}

// AcceptCompressed returns a copy of c that advertises the named encoding as
// acceptable for response messages. It may be called repeatedly to accept
// several encodings.
func (c *Client) AcceptCompressed(name string) *Client {
	c2 := c.clone()
	for _, e := range c2.config.acceptEncodings {
		if e == name {
			return c2
		}
	}
	c2.config.acceptEncodings = append(c2.config.acceptEncodings, name)
	return c2
}

// MaxDecodingMessageSize returns a copy of c that fails any response message
// larger than limit bytes. Zero restores "no ceiling configured".
func (c *Client) MaxDecodingMessageSize(limit int) *Client {
	c2 := c.clone()
	c2.config.maxDecodeSize = limit
	return c2
}

// MaxEncodingMessageSize returns a copy of c that fails any request message
// whose serialized size exceeds limit bytes, before anything is sent. Zero
// restores "no ceiling configured".
func (c *Client) MaxEncodingMessageSize(limit int) *Client {
	c2 := c.clone()
	c2.config.maxEncodeSize = limit
	return c2
}

// Ready blocks until the transport reports it can accept one more call.
// Await it before issuing a call for correct backpressure. Transport errors
// are returned as-is.
func (c *Client) Ready(ctx context.Context) error {
	return c.transport.Ready(ctx)
}

// Unary sends a single request message and decodes a single response message
// into reply. The returned Response carries the header and trailer metadata
// of the exchange.
func (c *Client) Unary(ctx context.Context, path Path, cdc codec.Codec, req, reply any, opts ...CallOption) (*Response, error) {
	return c.ClientStreaming(ctx, path, cdc, codec.Once(req), reply, opts...)
}

// ClientStreaming sends the full request sequence and decodes exactly one
// response message into reply. A call that completes with zero response
// messages fails with an Internal status, distinct from any transport or
// protocol failure.
func (c *Client) ClientStreaming(ctx context.Context, path Path, cdc codec.Codec, src codec.Source, reply any, opts ...CallOption) (*Response, error) {
	stream, err := c.Streaming(ctx, path, cdc, src, opts...)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.RecvMsg(reply); err != nil {
		if err == io.EOF {
			st := status.New(codes.Internal, "missing response message")
			st.MergeMeta(stream.Header())
			return nil, st
		}
		// RecvMsg has already merged captured headers into the status.
		return nil, err
	}

	// Read through to the trailers. Another message here means the peer
	// treated the call as server-streaming.
	switch err := stream.RecvMsg(nil); err {
	case io.EOF:
	case nil:
		st := status.Newf(codes.Internal,
			"server sent multiple response messages for non-server-streaming call %s", path)
		st.MergeMeta(stream.Header())
		return nil, st
	default:
		return nil, err
	}

	return &Response{header: stream.Header(), trailer: stream.Trailer()}, nil
}

// ServerStreaming sends a single request message and returns the full
// decoded response sequence.
func (c *Client) ServerStreaming(ctx context.Context, path Path, cdc codec.Codec, req any, opts ...CallOption) (*RecvStream, error) {
	return c.Streaming(ctx, path, cdc, codec.Once(req), opts...)
}

// Streaming is the core primitive behind every call shape. It wraps src in
// the encode pipeline, builds the wire request, performs the exchange, and
// classifies the response.
//
// A nil error means the transport exchange itself succeeded. An RPC failure
// delivered in trailers surfaces when the returned stream is drained; the
// one exception is a trailers-only non-OK response, which is detected
// eagerly and returned as an error here.
func (c *Client) Streaming(ctx context.Context, path Path, cdc codec.Codec, src codec.Source, opts ...CallOption) (*RecvStream, error) {
	cfg := c.config
	var o callOptions
	for _, opt := range opts {
		opt.apply(&o)
	}

	var comp codec.Compressor
	if cfg.sendEncoding != "" && !o.disableCompression {
		if comp = codec.GetCompressor(cfg.sendEncoding); comp == nil {
			return nil, status.Newf(codes.Internal, "compressor %q is not registered", cfg.sendEncoding)
		}
	}

	body := codec.NewEncodeReader(src, cdc, comp, cfg.maxEncodeSize)
	req := cfg.newRequest(ctx, path, body, &o)

	resp, err := c.transport.Call(ctx, req)
	if err != nil {
		_ = body.Close()
		return nil, status.FromError(err)
	}

	return cfg.newRecvStream(resp, cdc)
}
