// Package status defines the terminal outcome of an RPC: a code, a
// human-readable message, optional rich detail messages, and the metadata
// (headers merged with trailers) that accompanied the failure.
//
// Unlike google.golang.org/grpc/status, values here carry metadata, because
// the dispatcher must preserve whatever headers it had already captured when
// a call fails partway through.
package status

import (
	"context"
	"errors"
	"fmt"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/anypb"
)

// Status describes the terminal outcome of a call. A nil *Status is not a
// valid value; use New or FromError.
type Status struct {
	code    codes.Code
	message string
	details []*anypb.Any
	meta    metadata.MD
}

// New creates a Status with the given code and message.
func New(code codes.Code, message string) *Status {
	return &Status{code: code, message: message}
}

// Newf creates a Status with the given code and a formatted message.
func Newf(code codes.Code, format string, args ...any) *Status {
	return New(code, fmt.Sprintf(format, args...))
}

// FromError extracts a *Status from err. An err that already is (or wraps) a
// *Status is returned as-is. Context cancellation and deadline expiry map to
// their dedicated codes. Everything else is classified as Unknown; this is
// the catch-all used for transport failures.
func FromError(err error) *Status {
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	switch {
	case errors.Is(err, context.Canceled):
		return New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return New(codes.DeadlineExceeded, err.Error())
	}
	return New(codes.Unknown, err.Error())
}

// FromProto creates a Status from the google.rpc.Status proto, as carried in
// the grpc-status-details-bin header.
func FromProto(p *spb.Status) *Status {
	return &Status{
		code:    codes.Code(p.GetCode()),
		message: p.GetMessage(),
		details: p.GetDetails(),
	}
}

// Proto returns the google.rpc.Status form of s.
func (s *Status) Proto() *spb.Status {
	return &spb.Status{
		Code:    int32(s.code),
		Message: s.message,
		Details: s.details,
	}
}

// Code returns the status code.
func (s *Status) Code() codes.Code { return s.code }

// Message returns the human-readable message.
func (s *Status) Message() string { return s.message }

// Details returns the rich detail messages, if any.
func (s *Status) Details() []*anypb.Any { return s.details }

// Meta returns the metadata attached to this status. It may be nil.
func (s *Status) Meta() metadata.MD { return s.meta }

// MergeMeta merges md into the status metadata. Existing values for a key are
// kept and the new values appended, matching metadata.Join semantics.
func (s *Status) MergeMeta(md metadata.MD) {
	if len(md) == 0 {
		return
	}
	if s.meta == nil {
		s.meta = metadata.MD{}
	}
	for k, vs := range md {
		s.meta[k] = append(s.meta[k], vs...)
	}
}

// Error implements the error interface.
func (s *Status) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", s.code, s.message)
}

// Err returns s as an error, or nil if the code is OK.
func (s *Status) Err() error {
	if s.code == codes.OK {
		return nil
	}
	return s
}

// Code reports the status code carried by err, following the same
// classification as FromError. A nil error reports OK.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return FromError(err).Code()
}
