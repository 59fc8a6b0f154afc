// Package codec translates between typed messages and the length-prefixed,
// optionally compressed byte frames used on the wire. Encoding is lazy: an
// outbound message source is pulled one message at a time, only as fast as
// the transport reads the resulting bytes, so backpressure flows end to end.
package codec

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
)

// Codec marshals and unmarshals individual messages. Implementations must be
// safe for use by concurrent calls.
type Codec interface {
	// Name identifies the codec, e.g. "proto". It surfaces in error
	// messages only; the wire content-type is fixed by the protocol.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Proto returns the protobuf Codec.
func Proto() Codec { return protoCodec{} }

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("cannot marshal %T: not a proto.Message", v)
	}
	return proto.Marshal(m)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("cannot unmarshal into %T: not a proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}

// Source is an ordered producer of outbound messages, consumed exactly once
// per call. Next returns io.EOF when the sequence is exhausted; any other
// error aborts the call. Sources need not be safe for concurrent use; the
// encode pipeline pulls from a single goroutine.
//
// A Source that also implements io.Closer is closed when the call ends, even
// if the sequence was not fully drained.
type Source interface {
	Next() (any, error)
}

// Once returns a Source producing exactly one message.
func Once(msg any) Source {
	return &sliceSource{msgs: []any{msg}}
}

// FromSlice returns a Source producing the given messages in order.
func FromSlice(msgs ...any) Source {
	return &sliceSource{msgs: msgs}
}

type sliceSource struct {
	msgs []any
	next int
}

func (s *sliceSource) Next() (any, error) {
	if s.next >= len(s.msgs) {
		return nil, io.EOF
	}
	m := s.msgs[s.next]
	s.next++
	return m, nil
}
