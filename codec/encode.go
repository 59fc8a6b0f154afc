package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"google.golang.org/grpc/codes"

	"github.com/lunadial/grpclink/status"
)

// Each frame is a 1-byte compressed flag, a 4-byte big-endian payload
// length, then the payload.
const frameHeaderLen = 5

// NewEncodeReader adapts an outbound message Source into the body byte
// stream: each pull of the reader marshals the next message, compresses it
// when comp is non-nil, and emits a length-prefixed frame. maxSize, when
// positive, caps the marshaled (pre-compression) size of each message; an
// oversized message fails the read before any of its bytes are produced.
//
// Closing the reader releases the source without draining it.
func NewEncodeReader(src Source, c Codec, comp Compressor, maxSize int) io.ReadCloser {
	return &encodeReader{src: src, codec: c, comp: comp, maxSize: maxSize}
}

type encodeReader struct {
	src     Source
	codec   Codec
	comp    Compressor
	maxSize int

	buf bytes.Buffer
	err error
}

func (e *encodeReader) Read(p []byte) (int, error) {
	for e.buf.Len() == 0 {
		if e.err != nil {
			return 0, e.err
		}
		e.err = e.encodeNext()
	}
	return e.buf.Read(p)
}

func (e *encodeReader) encodeNext() error {
	m, err := e.src.Next()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return status.FromError(err)
	}

	b, err := e.codec.Marshal(m)
	if err != nil {
		return status.Newf(codes.Internal, "failed to marshal request message: %v", err)
	}
	if e.maxSize > 0 && len(b) > e.maxSize {
		return status.Newf(codes.ResourceExhausted,
			"serialized message is too large: %d bytes > maximum %d bytes", len(b), e.maxSize)
	}

	var flag byte
	if e.comp != nil {
		var cb bytes.Buffer
		w, err := e.comp.Compress(&cb)
		if err != nil {
			return status.Newf(codes.Internal, "failed to compress request message: %v", err)
		}
		if _, err := w.Write(b); err != nil {
			return status.Newf(codes.Internal, "failed to compress request message: %v", err)
		}
		if err := w.Close(); err != nil {
			return status.Newf(codes.Internal, "failed to compress request message: %v", err)
		}
		b = cb.Bytes()
		flag = 1
	}

	hdr, err := frameHeader(flag, len(b))
	if err != nil {
		return err
	}
	e.buf.Write(hdr[:])
	e.buf.Write(b)
	return nil
}

// frameHeader builds the 5-byte frame prefix. The wire length field is 32
// bits, so a payload beyond math.MaxUint32 cannot be framed at all.
func frameHeader(flag byte, size int) ([frameHeaderLen]byte, error) {
	var hdr [frameHeaderLen]byte
	if uint64(size) > math.MaxUint32 {
		return hdr, status.Newf(codes.ResourceExhausted,
			"serialized message is too large: %d bytes > maximum %d bytes", size, uint32(math.MaxUint32))
	}
	hdr[0] = flag
	binary.BigEndian.PutUint32(hdr[1:], uint32(size))
	return hdr, nil
}

func (e *encodeReader) Close() error {
	if e.err == nil {
		e.err = io.EOF
	}
	if c, ok := e.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
