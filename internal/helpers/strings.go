package helpers

import (
	"errors"
	"strings"
)

// ErrBufferTooSmall is returned when a concatenation does not fit its limit.
var ErrBufferTooSmall = errors.New("insufficient buffer space")

// ErrSizeOverflow is returned when adding lengths overflows.
var ErrSizeOverflow = errors.New("overflow when adding sizes")

// ValidateUTF8 reports whether data is made of well-formed UTF-8 sequences.
// Only the lead/continuation byte structure is checked: overlong encodings
// and surrogate code points are accepted, matching the boot loader check
// applied to kernel command-line fragments.
func ValidateUTF8(data []byte) bool {
	pending := 0
	for _, c := range data {
		if pending > 0 {
			if c&0xc0 != 0x80 {
				return false
			}
			pending--
			continue
		}
		switch {
		case c < 0x80:
		case c&0xe0 == 0xc0:
			pending = 1
		case c&0xf0 == 0xe0:
			pending = 2
		case c&0xf8 == 0xf0:
			pending = 3
		default:
			return false
		}
	}
	return pending == 0
}

// StrConcat joins a and b, failing if the result plus a terminator would
// not fit in bufSize bytes.
func StrConcat(bufSize int, a, b string) (string, error) {
	combined, ok := SafeAdd(uint64(len(a)), uint64(len(b)))
	if !ok {
		return "", ErrSizeOverflow
	}
	if bufSize < 1 || combined > uint64(bufSize-1) {
		return "", ErrBufferTooSmall
	}
	return a + b, nil
}

// Replace substitutes every non-overlapping occurrence of search in s,
// scanning left to right. An empty search string leaves s unchanged.
func Replace(s, search, replace string) string {
	if search == "" {
		return s
	}
	return strings.ReplaceAll(s, search, replace)
}

// AppendCmdline joins two command-line fragments with a single space,
// omitting the separator when either side is empty.
func AppendCmdline(cmdline, fragment string) string {
	switch {
	case cmdline == "":
		return fragment
	case fragment == "":
		return cmdline
	default:
		return cmdline + " " + fragment
	}
}
