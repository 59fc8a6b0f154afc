package grpclink

import (
	"io"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/lunadial/grpclink/codec"
	"github.com/lunadial/grpclink/status"
)

// Response is the envelope of a completed unary or client-streaming call.
// It is never mutated after being returned.
type Response struct {
	header  metadata.MD
	trailer metadata.MD
}

// Header returns the initial header metadata of the call.
func (r *Response) Header() metadata.MD { return r.header }

// Trailer returns the trailing metadata of the call. It may be nil when the
// response was trailers-only.
func (r *Response) Trailer() metadata.MD { return r.trailer }

// RecvStream is the lazy sequence of decoded response messages. Draining it
// yields zero or more messages followed by the terminal status: RecvMsg
// returns io.EOF after the last message of a successful call, or the failed
// status. Abandon it early with Close.
type RecvStream struct {
	header metadata.MD

	resp   *http.Response
	frames *codec.FrameReader

	trailer metadata.MD
	done    bool
	err     error
}

// Header returns the initial header metadata of the call.
func (s *RecvStream) Header() metadata.MD { return s.header }

// Trailer returns the trailing metadata. It is populated only once RecvMsg
// has returned io.EOF or an error; before that it is nil.
func (s *RecvStream) Trailer() metadata.MD { return s.trailer }

// RecvMsg decodes the next response message into m. At the end of a
// successful sequence it parses the trailing metadata, captures the terminal
// status, and returns io.EOF; a non-OK terminal status is returned as a
// *status.Status error with the captured header metadata merged in.
//
// A nil m discards the next message without decoding it.
func (s *RecvStream) RecvMsg(m any) error {
	if s.done {
		return s.err
	}

	err := s.frames.Next(m)
	if err == nil {
		return nil
	}

	s.done = true
	_ = s.resp.Body.Close()

	if err != io.EOF {
		st := status.FromError(err)
		st.MergeMeta(s.header)
		s.err = st
		return st
	}

	// Clean end of body: the terminal status must be in the trailers.
	s.trailer = mdFromHeader(s.resp.Trailer)
	st, ok := status.FromHeader(s.resp.Trailer)
	if !ok {
		st = s.missingTrailersStatus()
	}
	if st.Code() != codes.OK {
		st.MergeMeta(s.header)
		st.MergeMeta(s.trailer)
		s.err = st
		return st
	}
	s.err = io.EOF
	return io.EOF
}

// missingTrailersStatus classifies body exhaustion without a grpc-status.
// A non-200 exchange is attributed to the HTTP layer; an OK exchange that
// simply dropped its trailers is an internal protocol error.
func (s *RecvStream) missingTrailersStatus() *status.Status {
	if s.resp.StatusCode != http.StatusOK {
		return status.Newf(codeFromHTTPStatus(s.resp.StatusCode),
			"unexpected HTTP status code %d received with no grpc-status", s.resp.StatusCode)
	}
	return status.New(codes.Internal, "missing trailers")
}

// Close abandons the stream, releasing the body and propagating cancellation
// to the transport. It is safe to call at any point and more than once.
func (s *RecvStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.err = status.New(codes.Canceled, "stream closed by caller")
	return s.resp.Body.Close()
}

// newRecvStream classifies the wire response: either a trailers-only
// terminal status, carried entirely in the header block, or a live stream of
// body frames followed by trailing metadata.
func (cfg *config) newRecvStream(resp *http.Response, cdc codec.Codec) (*RecvStream, error) {
	header := mdFromHeader(resp.Header)

	comp, err := cfg.responseCompressor(resp.Header)
	if err != nil {
		_ = resp.Body.Close()
		st := status.FromError(err)
		st.MergeMeta(header)
		return nil, st
	}

	// Trailers-only: the terminal status sits in the header block and no
	// body frames follow. Detecting it here means the body is never read.
	if st, ok := status.FromHeader(resp.Header); ok {
		_ = resp.Body.Close()
		if st.Code() != codes.OK {
			st.MergeMeta(header)
			return nil, st
		}
		return &RecvStream{
			header:  header,
			trailer: metadata.MD{},
			done:    true,
			err:     io.EOF,
		}, nil
	}

	return &RecvStream{
		header: header,
		resp:   resp,
		frames: codec.NewFrameReader(resp.Body, cdc, comp, cfg.maxDecodeSize),
	}, nil
}

// responseCompressor validates the compression encoding declared by the
// server against the accepted set and resolves its decompressor. An
// encoding the client never advertised is a protocol violation and fails
// the call before any frame is read.
func (cfg *config) responseCompressor(h http.Header) (codec.Compressor, error) {
	name := h.Get(encodingHeader)
	if name == "" || name == codec.Identity {
		return nil, nil
	}
	accepted := false
	for _, e := range cfg.acceptEncodings {
		if e == name {
			accepted = true
			break
		}
	}
	if !accepted {
		return nil, status.Newf(codes.Internal,
			"response compressed with %q which was not advertised in grpc-accept-encoding", name)
	}
	comp := codec.GetCompressor(name)
	if comp == nil {
		return nil, status.Newf(codes.Internal, "compressor %q is not registered", name)
	}
	return comp, nil
}

// codeFromHTTPStatus maps an HTTP status code onto the closest gRPC code,
// used only when the peer terminated the exchange without a grpc-status.
func codeFromHTTPStatus(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest:
		return codes.Internal
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.Unimplemented
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}
