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

// Key joins parts with "|" and returns their digest. Used for cache file names.
func Key(parts ...string) string {
	return Sum([]byte(strings.Join(parts, "|")))
}
