package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"google.golang.org/grpc/codes"

	"github.com/lunadial/grpclink/status"
)

// FrameReader decodes length-prefixed frames from an inbound body, one
// message per call. It owns no metadata or status handling; the layer above
// decides what body exhaustion means.
type FrameReader struct {
	r       io.Reader
	codec   Codec
	comp    Compressor
	maxSize int

	hdr [frameHeaderLen]byte
	err error
}

// NewFrameReader returns a FrameReader pulling frames from r. comp, when
// non-nil, is used for frames carrying the compressed flag; a compressed
// frame with comp nil is a protocol error. maxSize, when positive, caps both
// the frame payload and its decompressed form.
func NewFrameReader(r io.Reader, c Codec, comp Compressor, maxSize int) *FrameReader {
	return &FrameReader{r: r, codec: c, comp: comp, maxSize: maxSize}
}

// Next decodes one message into m. It returns io.EOF at a clean end of the
// body. A nil m discards the frame without unmarshaling it. Errors are
// sticky: once Next fails, every later call fails the same way.
func (f *FrameReader) Next(m any) error {
	if f.err != nil {
		return f.err
	}
	err := f.next(m)
	if err != nil {
		f.err = err
	}
	return err
}

func (f *FrameReader) next(m any) error {
	if _, err := io.ReadFull(f.r, f.hdr[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return status.New(codes.Internal, "unexpected end of response body while reading frame header")
		}
		return status.FromError(err)
	}

	flag := f.hdr[0]
	if flag > 1 {
		return status.Newf(codes.Internal, "protocol error: invalid compression flag %d", flag)
	}
	size64 := int64(binary.BigEndian.Uint32(f.hdr[1:]))
	if size64 > int64(math.MaxInt) {
		// the declared length does not fit in int on this platform
		return status.Newf(codes.ResourceExhausted,
			"received message is too large: %d bytes > maximum %d bytes", size64, math.MaxInt)
	}
	size := int(size64)
	if f.maxSize > 0 && size > f.maxSize {
		return status.Newf(codes.ResourceExhausted,
			"received message is too large: %d bytes > maximum %d bytes", size, f.maxSize)
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(f.r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return status.New(codes.Internal, "unexpected end of response body while reading frame payload")
		}
		return status.FromError(err)
	}

	if flag == 1 {
		if f.comp == nil {
			return status.New(codes.Internal,
				"protocol error: frame has compressed flag set but response declared no grpc-encoding")
		}
		b, err := f.decompress(b)
		if err != nil {
			return err
		}
		return f.unmarshal(b, m)
	}
	return f.unmarshal(b, m)
}

func (f *FrameReader) decompress(b []byte) ([]byte, error) {
	r, err := f.comp.Decompress(bytes.NewReader(b))
	if err != nil {
		return nil, status.Newf(codes.Internal, "failed to decompress response message: %v", err)
	}
	if f.maxSize > 0 {
		out, err := io.ReadAll(io.LimitReader(r, int64(f.maxSize)+1))
		if err != nil {
			return nil, status.Newf(codes.Internal, "failed to decompress response message: %v", err)
		}
		if len(out) > f.maxSize {
			return nil, status.Newf(codes.ResourceExhausted,
				"received message is too large: decompresses beyond maximum %d bytes", f.maxSize)
		}
		return out, nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, status.Newf(codes.Internal, "failed to decompress response message: %v", err)
	}
	return out, nil
}

func (f *FrameReader) unmarshal(b []byte, m any) error {
	if m == nil {
		return nil
	}
	if err := f.codec.Unmarshal(b, m); err != nil {
		return status.Newf(codes.Internal, "failed to unmarshal response message: %v", err)
	}
	return nil
}
