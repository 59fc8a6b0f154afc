package status

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"
)

// Registered gRPC status header names. These appear both in a trailers-only
// header block and in the trailing metadata of a full stream.
const (
	StatusHeader  = "Grpc-Status"
	MessageHeader = "Grpc-Message"
	DetailsHeader = "Grpc-Status-Details-Bin"
)

// FromHeader parses the terminal status out of a header (or trailer) block.
// The second return value reports whether a grpc-status field was present at
// all; its absence is how a headers block is distinguished from a
// trailers-only response.
//
// The plain grpc-status and grpc-message fields are authoritative for code
// and message; only the Details entries of a grpc-status-details-bin payload
// are taken, so a peer whose embedded code or message disagrees with the
// plain fields cannot override them.
func FromHeader(h http.Header) (*Status, bool) {
	raw := h.Get(StatusHeader)
	if raw == "" {
		return nil, false
	}
	code, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return Newf(codes.Internal, "malformed grpc-status %q: %v", raw, err), true
	}
	st := &Status{
		code:    codes.Code(code),
		message: DecodeMessage(h.Get(MessageHeader)),
	}
	if bin := h.Get(DetailsHeader); bin != "" {
		b, err := decodeBin(bin)
		if err != nil {
			return Newf(codes.Internal, "malformed grpc-status-details-bin: %v", err), true
		}
		var p spb.Status
		if err := proto.Unmarshal(b, &p); err != nil {
			return Newf(codes.Internal, "malformed grpc-status-details-bin: %v", err), true
		}
		st.details = p.GetDetails()
	}
	return st, true
}

// SetHeader writes s into h under the registered status header names. When
// details are present the binary header carries the full google.rpc.Status,
// code and message included, which is how gRPC servers emit it; FromHeader
// on the other side still takes code and message from the plain fields.
func (s *Status) SetHeader(h http.Header) {
	h.Set(StatusHeader, strconv.Itoa(int(s.code)))
	if s.message != "" {
		h.Set(MessageHeader, EncodeMessage(s.message))
	}
	if len(s.details) > 0 {
		b, err := proto.Marshal(s.Proto())
		if err == nil {
			h.Set(DetailsHeader, base64.RawStdEncoding.EncodeToString(b))
		}
	}
}

// decodeBin decodes a base64 binary header value, with or without padding.
func decodeBin(v string) ([]byte, error) {
	if len(v)%4 == 0 {
		return base64.StdEncoding.DecodeString(v)
	}
	return base64.RawStdEncoding.DecodeString(v)
}

const spaceByte = ' '
const tildeByte = '~'

// EncodeMessage percent-encodes a status message for the grpc-message header.
// Bytes outside the printable ASCII range, and '%' itself, become %XX escapes.
func EncodeMessage(msg string) string {
	for i := 0; i < len(msg); i++ {
		if c := msg[i]; c < spaceByte || c > tildeByte || c == '%' {
			return encodeMessageSlow(msg, i)
		}
	}
	return msg
}

func encodeMessageSlow(msg string, first int) string {
	var b strings.Builder
	b.WriteString(msg[:first])
	for i := first; i < len(msg); i++ {
		c := msg[i]
		if c < spaceByte || c > tildeByte || c == '%' {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// DecodeMessage reverses EncodeMessage. Malformed escapes are passed through
// untouched rather than rejected, since the message is advisory.
func DecodeMessage(msg string) string {
	if !strings.Contains(msg, "%") {
		return msg
	}
	var b strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c == '%' && i+2 < len(msg) {
			if v, err := strconv.ParseUint(msg[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
