package grpclink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lunadial/grpclink/codec"
)

// Wire headers fixed by the protocol. Byte-exact names matter for
// interoperability.
const (
	contentTypeHeader = "Content-Type"
	contentTypeGRPC   = "application/grpc"

	teHeader   = "Te"
	teTrailers = "trailers"

	encodingHeader       = "Grpc-Encoding"
	acceptEncodingHeader = "Grpc-Accept-Encoding"
)

// newRequest combines the origin, the call path, and the protocol headers
// into the outbound wire request wrapping the (lazily) encoded body.
func (cfg *config) newRequest(ctx context.Context, path Path, body io.ReadCloser, o *callOptions) *http.Request {
	u := cfg.requestURL(path)

	req := (&http.Request{
		Method:     http.MethodPost,
		URL:        u,
		Proto:      "HTTP/2.0",
		ProtoMajor: 2,
		ProtoMinor: 0,
		Header:     make(http.Header),
		Body:       body,
		Host:       u.Host,
	}).WithContext(ctx)

	setHeaderFromMD(req.Header, o.md)

	req.Header.Set(teHeader, teTrailers)
	req.Header.Set(contentTypeHeader, contentTypeGRPC)

	if cfg.sendEncoding != "" && !o.disableCompression {
		req.Header.Set(encodingHeader, cfg.sendEncoding)
	}
	if len(cfg.acceptEncodings) > 0 {
		accepted := append(append([]string(nil), cfg.acceptEncodings...), codec.Identity)
		req.Header.Set(acceptEncodingHeader, strings.Join(accepted, ","))
	}

	return req
}

// requestURL joins the origin with the call path. A non-root origin base
// path is concatenated with the call path as-is, with no normalization of
// "//" or "..". Origin and path are developer-controlled, so a join that
// does not form a valid path is a configuration defect and panics rather
// than surfacing as a per-call status.
func (cfg *config) requestURL(path Path) *url.URL {
	var u url.URL
	if cfg.origin != nil {
		u = *cfg.origin
	}

	target := path.String()
	if u.Path != "" && u.Path != "/" {
		target = u.Path + target
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Path != target {
		panic(fmt.Sprintf("grpclink: origin path %q and call path %q do not form a valid request path",
			u.Path, path))
	}

	u.Path = target
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}
