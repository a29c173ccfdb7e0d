package textshare

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id, err := s.Put("hello world")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(id), idMinLength)

	text, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}

func TestIdsAreUnique(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := s.Put("x")
		require.NoError(t, err)
		require.False(t, seen[id], "id %s repeated", id)
		seen[id] = true
	}
}

func TestGetUnknown(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("zzzzzzzz")
	require.Equal(t, fserr.KindNotFound, fserr.KindOf(err))
}

func TestGetRejectsPathyIds(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"../../etc/passwd", "a/b/c/d/e/f/g", "........", "", "short"} {
		_, err := s.Get(id)
		require.Equal(t, fserr.KindNotFound, fserr.KindOf(err), "id %q", id)
	}
}

func TestPutValidation(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put("")
	require.Equal(t, fserr.KindBadRequest, fserr.KindOf(err))

	_, err = s.Put(strings.Repeat("x", MaxTextSize+1))
	require.Equal(t, fserr.KindPayloadTooLarge, fserr.KindOf(err))
}

func TestStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "texts")
	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Put("x")
	require.NoError(t, err)
}
