package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lunadial/grpclink/status"
)

func pipeline(t *testing.T, src Source, comp Compressor, maxEnc, maxDec int) *FrameReader {
	t.Helper()
	enc := NewEncodeReader(src, Proto(), comp, maxEnc)
	t.Cleanup(func() { _ = enc.Close() })
	var buf bytes.Buffer
	_, err := io.Copy(&buf, enc)
	require.NoError(t, err)
	return NewFrameReader(&buf, Proto(), comp, maxDec)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var want []*wrapperspb.StringValue
			var msgs []any
			for i := 0; i < n; i++ {
				m := wrapperspb.String(strings.Repeat("x", i*31))
				want = append(want, m)
				msgs = append(msgs, m)
			}

			fr := pipeline(t, FromSlice(msgs...), nil, 0, 0)
			var got []*wrapperspb.StringValue
			for {
				var m wrapperspb.StringValue
				err := fr.Next(&m)
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, &m)
			}

			require.Len(t, got, n)
			for i := range want {
				if diff := cmp.Diff(want[i], got[i], protocmp.Transform()); diff != "" {
					t.Errorf("message %d differs (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestGzipRoundTrip(t *testing.T) {
	comp := GetCompressor(GzipName)
	require.NotNil(t, comp)

	msg := wrapperspb.String(strings.Repeat("compressible ", 500))
	fr := pipeline(t, Once(msg), comp, 0, 0)

	var got wrapperspb.StringValue
	require.NoError(t, fr.Next(&got))
	assert.Empty(t, cmp.Diff(msg, &got, protocmp.Transform()))
	assert.Equal(t, io.EOF, fr.Next(nil))
}

func TestGzipShrinksFrame(t *testing.T) {
	msg := wrapperspb.String(strings.Repeat("a", 4096))

	read := func(comp Compressor) int {
		enc := NewEncodeReader(Once(msg), Proto(), comp, 0)
		defer enc.Close()
		b, err := io.ReadAll(enc)
		require.NoError(t, err)
		return len(b)
	}

	assert.Less(t, read(GetCompressor(GzipName)), read(nil))
}

func TestEncodeSizeLimit(t *testing.T) {
	big := wrapperspb.String(strings.Repeat("x", 100))
	enc := NewEncodeReader(Once(big), Proto(), nil, 10)
	defer enc.Close()

	_, err := io.ReadAll(enc)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// the failed read must not have produced any frame bytes
	enc2 := NewEncodeReader(Once(big), Proto(), nil, 10)
	defer enc2.Close()
	var p [1]byte
	n, err := enc2.Read(p[:])
	assert.Zero(t, n)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestEncodeSizeLimitChecksUncompressedSize(t *testing.T) {
	// compresses to well under the limit, but the marshaled size is what
	// the ceiling applies to
	big := wrapperspb.String(strings.Repeat("a", 1000))
	enc := NewEncodeReader(Once(big), Proto(), GetCompressor(GzipName), 100)
	defer enc.Close()

	_, err := io.ReadAll(enc)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestDecodeSizeLimit(t *testing.T) {
	msg := wrapperspb.String(strings.Repeat("x", 100))
	fr := pipeline(t, Once(msg), nil, 0, 10)

	var got wrapperspb.StringValue
	err := fr.Next(&got)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// errors are sticky
	assert.Equal(t, err, fr.Next(&got))
}

func TestDecodeCompressedOverLimitAfterInflate(t *testing.T) {
	// frame is small on the wire but inflates past the ceiling
	msg := wrapperspb.String(strings.Repeat("a", 10000))
	comp := GetCompressor(GzipName)

	enc := NewEncodeReader(Once(msg), Proto(), comp, 0)
	defer enc.Close()
	frame, err := io.ReadAll(enc)
	require.NoError(t, err)
	require.Less(t, len(frame), 1000)

	fr := NewFrameReader(bytes.NewReader(frame), Proto(), comp, 1000)
	assert.Equal(t, codes.ResourceExhausted, status.Code(fr.Next(nil)))
}

func TestCompressedFlagWithoutEncoding(t *testing.T) {
	msg := wrapperspb.String("hello")
	enc := NewEncodeReader(Once(msg), Proto(), GetCompressor(GzipName), 0)
	defer enc.Close()
	frame, err := io.ReadAll(enc)
	require.NoError(t, err)

	// decode side negotiated identity only
	fr := NewFrameReader(bytes.NewReader(frame), Proto(), nil, 0)
	err = fr.Next(nil)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, err.Error(), "compressed flag")
}

func TestInvalidCompressionFlag(t *testing.T) {
	frame := []byte{0x7f, 0, 0, 0, 0}
	fr := NewFrameReader(bytes.NewReader(frame), Proto(), nil, 0)
	err := fr.Next(nil)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestFrameHeaderRejectsOversizedPayload(t *testing.T) {
	if math.MaxInt <= math.MaxUint32 {
		t.Skip("payload length cannot exceed the wire length field on this platform")
	}
	_, err := frameHeader(0, math.MaxInt)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Contains(t, err.Error(), "too large")

	hdr, err := frameHeader(1, 7)
	require.NoError(t, err)
	assert.Equal(t, [frameHeaderLen]byte{1, 0, 0, 0, 7}, hdr)
}

func TestDeclaredFrameLengthOverflowsInt(t *testing.T) {
	if math.MaxInt > math.MaxUint32 {
		t.Skip("declared frame length always fits in int on this platform")
	}
	// header declaring a 4 GiB - 1 payload, which int cannot represent here
	hdr := []byte{0, 0xff, 0xff, 0xff, 0xff}
	fr := NewFrameReader(bytes.NewReader(hdr), Proto(), nil, 0)
	err := fr.Next(nil)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestTruncatedBody(t *testing.T) {
	msg := wrapperspb.String("hello world")
	enc := NewEncodeReader(Once(msg), Proto(), nil, 0)
	defer enc.Close()
	frame, err := io.ReadAll(enc)
	require.NoError(t, err)

	for _, cut := range []int{2, frameHeaderLen + 1} {
		fr := NewFrameReader(bytes.NewReader(frame[:cut]), Proto(), nil, 0)
		err := fr.Next(nil)
		require.Error(t, err)
		assert.Equal(t, codes.Internal, status.Code(err))
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	boom := errors.New("producer failed")
	enc := NewEncodeReader(&failingSource{err: boom}, Proto(), nil, 0)
	defer enc.Close()

	_, err := io.ReadAll(enc)
	require.Error(t, err)
	assert.Equal(t, codes.Unknown, status.Code(err))
	assert.Contains(t, err.Error(), "producer failed")
}

func TestEncodeReaderCloseReleasesSource(t *testing.T) {
	src := &closableSource{Source: FromSlice(wrapperspb.String("a"), wrapperspb.String("b"))}
	enc := NewEncodeReader(src, Proto(), nil, 0)
	require.NoError(t, enc.Close())
	assert.True(t, src.closed)

	// reads after close do not pull from the source
	var p [16]byte
	_, err := enc.Read(p[:])
	assert.Equal(t, io.EOF, err)
}

func TestMarshalWrongType(t *testing.T) {
	enc := NewEncodeReader(Once("not a proto"), Proto(), nil, 0)
	defer enc.Close()
	_, err := io.ReadAll(enc)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

type failingSource struct {
	err error
}

func (s *failingSource) Next() (any, error) { return nil, s.err }

type closableSource struct {
	Source
	closed bool
}

func (s *closableSource) Close() error {
	s.closed = true
	return nil
}
