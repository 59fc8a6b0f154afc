// Package grpclink is a client-side dispatcher for gRPC framed over any
// stream-capable HTTP/2-like transport.
//
// A Client wraps a Transport and a codec and exposes the four call shapes:
// unary, client-streaming, server-streaming, and bidirectional streaming,
// all thin adapters over one streaming primitive. The dispatcher owns the
// protocol state machine: length-prefixed message framing, per-call and
// per-message compression negotiation, message size ceilings, trailers-only
// response detection, and preservation of header and trailer metadata across
// partial failures. Connection management lives behind the Transport
// interface; the transport subpackage provides an HTTP/2 implementation.
package grpclink
