package share

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

func newTestShare(t *testing.T) *Share {
	t.Helper()
	sh, err := New(config.Share{Name: "docs", Path: t.TempDir()})
	require.NoError(t, err)
	return sh
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	sh, err := New(config.Share{Name: "docs", Path: dir, Quota: "10 MiB"})
	require.NoError(t, err)
	require.Equal(t, "docs", sh.Name)
	require.True(t, filepath.IsAbs(sh.Root))
	require.Equal(t, uint64(10<<20), sh.QuotaBytes)

	_, err = New(config.Share{Name: "x", Path: filepath.Join(dir, "missing")})
	require.Error(t, err)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o666))
	_, err = New(config.Share{Name: "x", Path: file})
	require.Error(t, err)

	_, err = New(config.Share{Name: "x", Path: dir, Quota: "lots"})
	require.Error(t, err)
}

func TestCleanRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"a/b", "a/b"},
		{"/a/b/", "a/b"},
		{"a//b", "a/b"},
		{"a\\b", "a/b"},
		{"a/./b", "a/b"},
		{"a/x/../b", "a/b"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CleanRel(tt.in), "input %q", tt.in)
	}
}

func TestResolveEscapes(t *testing.T) {
	sh := newTestShare(t)

	escapes := []string{
		"..",
		"../x",
		"..\\x",
		"a/../../x",
		"/../x",
		"a/../../../etc/passwd",
		"foo\x00bar",
	}
	for _, p := range escapes {
		_, err := sh.Resolve(p)
		require.Error(t, err, "path %q", p)
		require.Equal(t, fserr.KindPathEscape, fserr.KindOf(err), "path %q", p)
	}
}

func TestResolveInside(t *testing.T) {
	sh := newTestShare(t)

	abs, err := sh.Resolve("a/b/c.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sh.Root, "a", "b", "c.txt"), abs)

	abs, err = sh.Resolve("a/x/../b")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sh.Root, "a", "b"), abs)

	abs, err = sh.Resolve("")
	require.NoError(t, err)
	require.Equal(t, sh.Root, abs)

	abs, err = sh.Resolve("/")
	require.NoError(t, err)
	require.Equal(t, sh.Root, abs)
}

func TestContains(t *testing.T) {
	sh := newTestShare(t)

	require.True(t, sh.Contains(sh.Root))
	require.True(t, sh.Contains(filepath.Join(sh.Root, "x")))
	require.False(t, sh.Contains(filepath.Dir(sh.Root)))
	// sibling dir sharing the root as string prefix
	require.False(t, sh.Contains(sh.Root+"2"))
}

func TestRel(t *testing.T) {
	sh := newTestShare(t)

	require.Equal(t, "", sh.Rel(sh.Root))
	require.Equal(t, "a/b", sh.Rel(filepath.Join(sh.Root, "a", "b")))
}
