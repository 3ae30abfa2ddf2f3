package helpers

import (
	"encoding/hex"
	"strconv"
)

// FormatUint64 renders v in base 10.
func FormatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// HexDigest renders a digest as lowercase hex.
func HexDigest(digest []byte) string {
	return hex.EncodeToString(digest)
}

// ParseUint64 parses a decimal or 0x-prefixed hexadecimal unsigned value.
func ParseUint64(s string) (uint64, error) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
