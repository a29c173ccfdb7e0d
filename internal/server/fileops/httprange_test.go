package fileops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
	}{
		{"bytes=0-99", 1000, 0, 99},
		{"bytes=500-", 1000, 500, 999},
		{"bytes=-100", 1000, 900, 999},
		{"bytes=0-0", 1000, 0, 0},
		{"bytes=999-999", 1000, 999, 999},
		// end past EOF is clamped, not rejected
		{"bytes=900-5000", 1000, 900, 999},
		{"bytes=-5000", 1000, 0, 999},
	}
	for _, tt := range tests {
		br, err := ParseRange(tt.header, tt.size)
		require.NoError(t, err, "header %q", tt.header)
		require.Equal(t, tt.start, br.Start, "header %q", tt.header)
		require.Equal(t, tt.end, br.End, "header %q", tt.header)
	}
}

func TestParseRangeRejects(t *testing.T) {
	bad := []struct {
		header string
		size   int64
	}{
		{"bytes=0-99,200-299", 1000}, // multi-range unsupported
		{"bytes=1000-", 1000},        // start past EOF
		{"bytes=5-2", 1000},          // inverted
		{"bytes=abc-def", 1000},
		{"bytes=", 1000},
		{"bytes=-0", 1000},
		{"items=0-5", 1000}, // unknown unit
		{"bytes=-10", 0},    // suffix on empty file
	}
	for _, tt := range bad {
		_, err := ParseRange(tt.header, tt.size)
		require.Error(t, err, "header %q", tt.header)
		require.Equal(t, fserr.KindRangeNotSatisfiable, fserr.KindOf(err), "header %q", tt.header)
	}
}

func TestByteRangeLength(t *testing.T) {
	require.Equal(t, int64(100), ByteRange{Start: 0, End: 99}.Length())
	require.Equal(t, int64(1), ByteRange{Start: 5, End: 5}.Length())
}

func TestSanitizeFilename(t *testing.T) {
	good := map[string]string{
		"file.txt":               "file.txt",
		"  spaced.txt  ":         "spaced.txt",
		`C:\Users\me\report.pdf`: "report.pdf",
		"dir/sub/name":           "name",
		"...":                    "...",
	}
	for in, want := range good {
		got, err := SanitizeFilename(in)
		require.NoError(t, err, "input %q", in)
		require.Equal(t, want, got, "input %q", in)
	}

	bad := []string{"", ".", "..", "a/", "evil\x00name", "ctrl\x01char"}
	for _, in := range bad {
		_, err := SanitizeFilename(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestValidatePlainName(t *testing.T) {
	_, err := ValidatePlainName("fine.txt")
	require.NoError(t, err)

	for _, in := range []string{"a/b", `a\b`, "../x", ".."} {
		_, err := ValidatePlainName(in)
		require.Error(t, err, "input %q", in)
	}
}
