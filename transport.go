package grpclink

import (
	"context"
	"net/http"
)

// Transport is the underlying exchange the dispatcher issues calls over.
// Connection establishment, pooling, TLS, and keep-alive all live behind
// this interface; the dispatcher only builds requests and consumes
// responses. Implementations must support concurrent in-flight calls.
//
// The transport subpackage provides an HTTP/2 implementation. Tests use
// in-memory doubles.
type Transport interface {
	// Ready blocks until the transport can accept one more call, or fails.
	// Errors are returned to the caller uninterpreted.
	Ready(ctx context.Context) error

	// Call performs one exchange. The request body is a lazy byte stream;
	// the transport must pull it only as fast as it can transmit, and must
	// close it when the exchange ends. The response body may still be
	// streaming when Call returns; resp.Trailer is populated once the body
	// has been read to EOF.
	Call(ctx context.Context, req *http.Request) (*http.Response, error)
}
