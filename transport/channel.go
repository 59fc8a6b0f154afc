// Package transport provides a concrete HTTP/2 implementation of the
// dispatcher's Transport interface. It maintains a single client connection
// to one target, which suits the dispatcher's model of an origin-pinned
// channel; pooling and load balancing belong to a layer above.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
)

// Channel is an HTTP/2 connection to a single target. The zero value is not
// usable; call Dial.
//
// Ready reports whether the connection can take one more request, probing
// liveness with an HTTP/2 PING. Call performs one exchange; response
// trailers become available once the response body is read to EOF.
type Channel struct {
	target string
	opts   channelOpts
	t      *http2.Transport

	mu   sync.Mutex
	conn *http2.ClientConn
}

type channelOpts struct {
	tlsConfig *tls.Config
}

// ChannelOption configures a Channel at Dial time.
type ChannelOption interface {
	apply(*channelOpts)
}

// WithTLSConfig makes the channel dial with TLS. Without it the channel
// speaks unencrypted HTTP/2 (h2c) with prior knowledge.
func WithTLSConfig(cfg *tls.Config) ChannelOption {
	return channelOptionFunc(func(o *channelOpts) {
		o.tlsConfig = cfg
	})
}

type channelOptionFunc func(*channelOpts)

func (f channelOptionFunc) apply(o *channelOpts) {
	f(o)
}

// Dial creates a channel to target ("host:port"). The connection itself is
// established lazily, on the first Ready or Call.
func Dial(target string, opts ...ChannelOption) *Channel {
	c := &Channel{target: target}
	for _, opt := range opts {
		opt.apply(&c.opts)
	}
	c.t = &http2.Transport{
		AllowHTTP:       c.opts.tlsConfig == nil,
		TLSClientConfig: c.opts.tlsConfig,
	}
	return c
}

// Ready blocks until the connection is established and answers a PING, or
// fails with the connection error.
func (c *Channel) Ready(ctx context.Context) error {
	conn, err := c.clientConn(ctx)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Call performs one HTTP/2 exchange.
func (c *Channel) Call(ctx context.Context, req *http.Request) (*http.Response, error) {
	conn, err := c.clientConn(ctx)
	if err != nil {
		return nil, err
	}
	return conn.RoundTrip(req.WithContext(ctx))
}

// Close closes the underlying connection, if one was established.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Channel) clientConn(ctx context.Context) (*http2.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.CanTakeNewRequest() {
		return c.conn, nil
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", c.target)
	if err != nil {
		return nil, err
	}
	if c.opts.tlsConfig != nil {
		tlsConn := tls.Client(netConn, c.opts.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = netConn.Close()
			return nil, err
		}
		netConn = tlsConn
	}

	conn, err := c.t.NewClientConn(netConn)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	c.conn = conn
	return conn, nil
}
