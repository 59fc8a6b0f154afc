package codec

import (
	"compress/gzip"
	"io"
	"sync"
)

// Identity is the implicit no-op encoding. It never appears in the
// grpc-encoding header of requests built by this module and is always an
// acceptable inbound encoding.
const Identity = "identity"

// GzipName is the registered token for the gzip compressor.
const GzipName = "gzip"

// Compressor implements one registered message-compression algorithm.
// Compression is applied per frame, after the message is marshaled.
type Compressor interface {
	// Name returns the registered algorithm token carried in the
	// grpc-encoding and grpc-accept-encoding headers.
	Name() string
	Compress(w io.Writer) (io.WriteCloser, error)
	Decompress(r io.Reader) (io.Reader, error)
}

var (
	compressorsMu sync.RWMutex
	compressors   = map[string]Compressor{}
)

// RegisterCompressor makes a compressor available by name to all dispatchers
// in the process. Registering the same name twice replaces the earlier entry.
func RegisterCompressor(c Compressor) {
	compressorsMu.Lock()
	defer compressorsMu.Unlock()
	compressors[c.Name()] = c
}

// GetCompressor returns the compressor registered under name, or nil.
func GetCompressor(name string) Compressor {
	compressorsMu.RLock()
	defer compressorsMu.RUnlock()
	return compressors[name]
}

func init() {
	RegisterCompressor(gzipCompressor{})
}

type gzipCompressor struct{}

func (gzipCompressor) Name() string { return GzipName }

func (gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (gzipCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
