package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 8)

	PutBE32(buf, 0x11223344)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, buf[:4])
	assert.Equal(t, uint32(0x11223344), BE32(buf))

	PutBE64(buf, 0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
	assert.Equal(t, uint64(0x0102030405060708), BE64(buf))
}

func TestRoundUp8(t *testing.T) {
	tests := []struct {
		in       uint64
		expected uint64
		ok       bool
	}{
		{0, 0, true},
		{1, 8, true},
		{8, 8, true},
		{9, 16, true},
		{^uint64(0) - 7, ^uint64(0) - 7, true},
		{^uint64(0) - 6, 0, false},
		{^uint64(0), 0, false},
	}
	for _, tc := range tests {
		got, ok := RoundUp8(tc.in)
		assert.Equal(t, tc.ok, ok, "RoundUp8(%d)", tc.in)
		assert.Equal(t, tc.expected, got, "RoundUp8(%d)", tc.in)
	}
}

func TestSafeAdd(t *testing.T) {
	sum, ok := SafeAdd(2, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), sum)

	_, ok = SafeAdd(^uint64(0), 1)
	assert.False(t, ok)

	acc := uint64(10)
	assert.True(t, SafeAddTo(&acc, 5))
	assert.Equal(t, uint64(15), acc)
	assert.False(t, SafeAddTo(&acc, ^uint64(0)))
	assert.Equal(t, uint64(15), acc, "accumulator must be untouched on overflow")

	total, ok := SafeSum(1, 2, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), total)

	_, ok = SafeSum(1, ^uint64(0)-1, 1)
	assert.False(t, ok)
}

func TestInBounds(t *testing.T) {
	assert.True(t, InBounds(0, 10, 10))
	assert.True(t, InBounds(10, 0, 10))
	assert.False(t, InBounds(5, 6, 10))
	assert.False(t, InBounds(^uint64(0), 2, 10))
}

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		valid bool
	}{
		{"empty", nil, true},
		{"ascii", []byte("androidboot.foo=bar"), true},
		{"two byte", []byte("caf\xc3\xa9"), true},
		{"three byte", []byte("\xe2\x82\xac"), true},
		{"four byte", []byte("\xf0\x9f\x98\x80"), true},
		{"lone continuation", []byte{0x80}, false},
		{"truncated sequence", []byte{0xe2, 0x82}, false},
		{"bad continuation", []byte{0xc3, 0x41}, false},
		{"five byte lead", []byte{0xf8, 0x80, 0x80, 0x80, 0x80}, false},
		{"overlong accepted", []byte{0xc0, 0x80}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateUTF8(tc.input))
		})
	}
}

func TestStrConcat(t *testing.T) {
	s, err := StrConcat(32, "system", "_a")
	require.NoError(t, err)
	assert.Equal(t, "system_a", s)

	// 8 characters plus terminator need 9 bytes.
	_, err = StrConcat(8, "system", "_a")
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	s, err = StrConcat(9, "system", "_a")
	require.NoError(t, err)
	assert.Equal(t, "system_a", s)

	_, err = StrConcat(0, "", "")
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestReplace(t *testing.T) {
	tests := []struct {
		str, search, replace, expected string
	}{
		{"$(FOO) blah bah $(FOO $(FOO) blah", "$(FOO)", "OK", "OK blah bah $(FOO OK blah"},
		{"$(FOO)", "$(FOO)", "", ""},
		{"no match here", "$(FOO)", "OK", "no match here"},
		{"", "$(FOO)", "OK", ""},
		{"aaa", "aa", "b", "ba"},
		{"unchanged", "", "X", "unchanged"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Replace(tc.str, tc.search, tc.replace), "Replace(%q, %q, %q)", tc.str, tc.search, tc.replace)
	}
}

func TestAppendCmdline(t *testing.T) {
	assert.Equal(t, "a=b", AppendCmdline("", "a=b"))
	assert.Equal(t, "a=b", AppendCmdline("a=b", ""))
	assert.Equal(t, "a=b c=d", AppendCmdline("a=b", "c=d"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0", FormatUint64(0))
	assert.Equal(t, "18446744073709551615", FormatUint64(^uint64(0)))
	assert.Equal(t, "00ff10", HexDigest([]byte{0x00, 0xff, 0x10}))
}

func TestParseUint64(t *testing.T) {
	v, err := ParseUint64("1024")
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), v)

	v, err = ParseUint64("0x400")
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), v)

	v, err = ParseUint64("0XfFfF")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff), v)

	_, err = ParseUint64("18446744073709551616")
	assert.Error(t, err)

	_, err = ParseUint64("0x")
	assert.Error(t, err)

	_, err = ParseUint64("12abc")
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	sum, ok := Digest("sha256", []byte("ab"), []byte("c"))
	require.True(t, ok)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HexDigest(sum))

	sum, ok = Digest("sha512", []byte("abc"))
	require.True(t, ok)
	assert.Len(t, sum, 64)

	_, ok = Digest("sha1", []byte("abc"))
	assert.False(t, ok)
}
