package dav

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/rules"
	"github.com/nh3bh3/cuthttp/internal/server/share"
)

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	sh, err := share.New(config.Share{Name: "docs", Path: t.TempDir()})
	require.NoError(t, err)
	return New("/webdav", map[string]*share.Share{"docs": sh})
}

func TestSplitPath(t *testing.T) {
	a := newAdapter(t)

	tests := []struct {
		path  string
		share string
		rel   string
		ok    bool
	}{
		{"/webdav/docs", "docs", "", true},
		{"/webdav/docs/", "docs", "", true},
		{"/webdav/docs/a/b.txt", "docs", "a/b.txt", true},
		{"/webdav", "", "", false},
		{"/webdav/", "", "", false},
		{"/other/docs", "", "", false},
	}
	for _, tt := range tests {
		shareName, rel, ok := a.SplitPath(tt.path)
		require.Equal(t, tt.ok, ok, "path %q", tt.path)
		require.Equal(t, tt.share, shareName, "path %q", tt.path)
		require.Equal(t, tt.rel, rel, "path %q", tt.path)
	}
}

func TestOpsForMethod(t *testing.T) {
	tests := []struct {
		method string
		ops    []rules.Op
		dest   bool
	}{
		{"GET", []rules.Op{rules.OpRead}, false},
		{"PROPFIND", []rules.Op{rules.OpRead}, false},
		{"PUT", []rules.Op{rules.OpWrite}, false},
		{"MKCOL", []rules.Op{rules.OpWrite}, false},
		{"DELETE", []rules.Op{rules.OpDelete}, false},
		{"COPY", []rules.Op{rules.OpRead}, true},
		{"MOVE", []rules.Op{rules.OpWrite, rules.OpDelete}, true},
	}
	for _, tt := range tests {
		req, ok := OpsForMethod(tt.method)
		require.True(t, ok, "method %s", tt.method)
		require.Equal(t, tt.ops, req.Ops, "method %s", tt.method)
		require.Equal(t, tt.dest, req.NeedsDest, "method %s", tt.method)
	}

	_, ok := OpsForMethod("PATCH")
	require.False(t, ok)
}

func TestDestination(t *testing.T) {
	a := newAdapter(t)

	req := httptest.NewRequest("MOVE", "/webdav/docs/a.txt", nil)
	req.Header.Set("Destination", "http://example.com/webdav/docs/b.txt")
	rel, err := a.Destination(req, "docs")
	require.NoError(t, err)
	require.Equal(t, "b.txt", rel)

	req.Header.Set("Destination", "/webdav/docs/sub/c.txt")
	rel, err = a.Destination(req, "docs")
	require.NoError(t, err)
	require.Equal(t, "sub/c.txt", rel)

	req.Header.Set("Destination", "/webdav/media/b.txt")
	_, err = a.Destination(req, "docs")
	require.Equal(t, fserr.KindForbidden, fserr.KindOf(err))

	req.Header.Set("Destination", "/elsewhere/b.txt")
	_, err = a.Destination(req, "docs")
	require.Equal(t, fserr.KindBadRequest, fserr.KindOf(err))

	req.Header.Del("Destination")
	_, err = a.Destination(req, "docs")
	require.Equal(t, fserr.KindBadRequest, fserr.KindOf(err))
}

func TestHandlerServesPropfind(t *testing.T) {
	a := newAdapter(t)
	h, ok := a.Handler("docs")
	require.True(t, ok)

	req := httptest.NewRequest("PROPFIND", "/webdav/docs/", nil)
	req.Header.Set("Depth", "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	require.Contains(t, rec.Body.String(), "multistatus")
}

func TestUnknownShareHandler(t *testing.T) {
	a := newAdapter(t)
	_, ok := a.Handler("media")
	require.False(t, ok)
}
