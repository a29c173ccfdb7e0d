// Package dav mounts each share as a WebDAV collection under a common
// mount path. Authorization stays with the caller; this package maps
// WebDAV verbs to operation classes and dispatches to the per-share
// handler.
package dav

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/webdav"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/rules"
	"github.com/nh3bh3/cuthttp/internal/server/share"
)

type Adapter struct {
	mount    string
	handlers map[string]*webdav.Handler
}

// New builds one handler per share. Lock state is per-adapter, so a
// config reload drops outstanding locks; clients recover by re-locking.
func New(mount string, shares map[string]*share.Share) *Adapter {
	mount = "/" + strings.Trim(mount, "/")

	a := &Adapter{
		mount:    mount,
		handlers: make(map[string]*webdav.Handler, len(shares)),
	}
	for name, sh := range shares {
		a.handlers[name] = &webdav.Handler{
			Prefix:     mount + "/" + name,
			FileSystem: webdav.Dir(sh.Root),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					log.Debug().Err(err).
						Str("Method", r.Method).
						Str("Path", r.URL.Path).
						Msg("Webdav")
				}
			},
		}
	}
	return a
}

func (a *Adapter) Mount() string { return a.mount }

// SplitPath extracts (share, relative path) from a request path under
// the mount. ok is false when the path is the mount itself or outside
// it.
func (a *Adapter) SplitPath(urlPath string) (shareName, rel string, ok bool) {
	rest, found := strings.CutPrefix(urlPath, a.mount+"/")
	if !found {
		return "", "", false
	}
	shareName, rel, _ = strings.Cut(rest, "/")
	if shareName == "" {
		return "", "", false
	}
	return shareName, share.CleanRel(rel), true
}

func (a *Adapter) Handler(shareName string) (*webdav.Handler, bool) {
	h, ok := a.handlers[shareName]
	return h, ok
}

// Required is the set of operation classes a WebDAV verb needs on the
// request path, plus whether the Destination header needs a separate
// write check.
type Required struct {
	Ops       []rules.Op
	NeedsDest bool
}

var methodOps = map[string]Required{
	http.MethodOptions: {Ops: []rules.Op{rules.OpRead}},
	http.MethodGet:     {Ops: []rules.Op{rules.OpRead}},
	http.MethodHead:    {Ops: []rules.Op{rules.OpRead}},
	"PROPFIND":         {Ops: []rules.Op{rules.OpRead}},
	http.MethodPut:     {Ops: []rules.Op{rules.OpWrite}},
	"MKCOL":            {Ops: []rules.Op{rules.OpWrite}},
	"PROPPATCH":        {Ops: []rules.Op{rules.OpWrite}},
	"LOCK":             {Ops: []rules.Op{rules.OpWrite}},
	"UNLOCK":           {Ops: []rules.Op{rules.OpWrite}},
	http.MethodDelete:  {Ops: []rules.Op{rules.OpDelete}},
	"COPY":             {Ops: []rules.Op{rules.OpRead}, NeedsDest: true},
	"MOVE":             {Ops: []rules.Op{rules.OpWrite, rules.OpDelete}, NeedsDest: true},
}

// OpsForMethod reports what a verb requires; ok is false for verbs the
// adapter does not serve.
func OpsForMethod(method string) (Required, bool) {
	req, ok := methodOps[method]
	return req, ok
}

// Destination resolves the Destination header of a COPY or MOVE to a
// (share, relative path) pair under the same mount. Cross-share moves
// are rejected.
func (a *Adapter) Destination(r *http.Request, srcShare string) (string, error) {
	raw := r.Header.Get("Destination")
	if raw == "" {
		return "", fserr.New(fserr.KindBadRequest, "missing Destination header")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fserr.New(fserr.KindBadRequest, "bad Destination header")
	}

	dstShare, rel, ok := a.SplitPath(u.Path)
	if !ok {
		return "", fserr.New(fserr.KindBadRequest, "Destination outside webdav mount")
	}
	if dstShare != srcShare {
		return "", fserr.New(fserr.KindForbidden, "cross-share destination not allowed")
	}
	return rel, nil
}
