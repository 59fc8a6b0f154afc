package grpclink

import (
	"encoding/base64"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Header names owned by the protocol itself. User metadata under these names
// is dropped rather than allowed to corrupt the wire exchange.
func isReservedKey(k string) bool {
	switch k {
	case "te", "content-type":
		return true
	}
	return strings.HasPrefix(k, "grpc-")
}

// mdFromHeader converts a wire header (or trailer) block into metadata.
// Keys are lowercased; values of -bin keys are base64-decoded. Values that
// fail to decode are kept raw, since dropping them would hide information
// from error paths that only want to surface what the peer sent.
func mdFromHeader(h http.Header) metadata.MD {
	if len(h) == 0 {
		return nil
	}
	md := make(metadata.MD, len(h))
	for k, vs := range h {
		k = strings.ToLower(k)
		if !strings.HasSuffix(k, "-bin") {
			md[k] = append(md[k], vs...)
			continue
		}
		for _, v := range vs {
			if b, err := decodeBinValue(v); err == nil {
				md[k] = append(md[k], string(b))
			} else {
				md[k] = append(md[k], v)
			}
		}
	}
	return md
}

// setHeaderFromMD writes user metadata onto an outbound request header,
// base64-encoding -bin values and skipping reserved keys.
func setHeaderFromMD(h http.Header, md metadata.MD) {
	for k, vs := range md {
		k = strings.ToLower(k)
		if isReservedKey(k) {
			continue
		}
		for _, v := range vs {
			if strings.HasSuffix(k, "-bin") {
				v = base64.RawStdEncoding.EncodeToString([]byte(v))
			}
			h.Add(k, v)
		}
	}
}

func decodeBinValue(v string) ([]byte, error) {
	if len(v)%4 == 0 {
		return base64.StdEncoding.DecodeString(v)
	}
	return base64.RawStdEncoding.DecodeString(v)
}
