package grpclink

import "google.golang.org/grpc/metadata"

// CallOption adjusts the behavior of a single call.
type CallOption interface {
	apply(*callOptions)
}

type callOptions struct {
	md                 metadata.MD
	disableCompression bool
}

// WithCallMetadata returns an option that attaches md as outbound request
// metadata. Keys reserved by the protocol (te, content-type, and the grpc-*
// family) are ignored.
func WithCallMetadata(md metadata.MD) CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.md = metadata.Join(o.md, md)
	})
}

// WithoutCompression returns an option that sends this call's request
// messages uncompressed even when the dispatcher has an outbound compression
// encoding configured.
func WithoutCompression() CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.disableCompression = true
	})
}

type callOptionFunc func(*callOptions)

func (f callOptionFunc) apply(o *callOptions) {
	f(o)
}
