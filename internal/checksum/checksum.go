package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats a checksum as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromIfMatch extracts the checksum from an If-Match header value. A weak
// prefix and surrounding quotes are dropped; "*" yields "".
func FromIfMatch(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}
