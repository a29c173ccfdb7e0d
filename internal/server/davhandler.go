package server

import (
	"net/http"
	"net/netip"

	"github.com/nh3bh3/cuthttp/internal/server/auth"
	"github.com/nh3bh3/cuthttp/internal/server/dav"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/rules"
)

// writeDavError answers in plain HTTP, because WebDAV clients do not
// read the JSON envelope.
func writeDavError(rsp http.ResponseWriter, err error) {
	http.Error(rsp, err.Error(), fserr.KindOf(err).HTTPStatus())
}

// serveDav gates a WebDAV request through the same rule engine as the
// REST API, then delegates to the per-share handler. Nothing is
// reachable here that the API would deny.
func (s *Server) serveDav(snap *Snapshot, rsp *responseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	s.metrics.DavRequest()

	shareName, rel, ok := snap.Dav.SplitPath(req.URL.Path)
	if !ok {
		writeDavError(rsp, fserr.New(fserr.KindNotFound, "no share in path"))
		return
	}

	if _, exists := snap.Shares[shareName]; !exists {
		writeDavError(rsp, fserr.New(fserr.KindUnknownShare, "unknown share: %s", shareName))
		return
	}

	required, ok := dav.OpsForMethod(req.Method)
	if !ok {
		rsp.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND, PROPPATCH, PUT, MKCOL, MOVE, COPY, DELETE, LOCK, UNLOCK")
		rsp.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	for _, op := range required.Ops {
		if err := snap.Rules.Authorize(user.Name, shareName, rel, op, ip); err != nil {
			writeDavError(rsp, err)
			return
		}
	}

	if required.NeedsDest {
		dstRel, err := snap.Dav.Destination(req, shareName)
		if err != nil {
			writeDavError(rsp, err)
			return
		}
		if err := snap.Rules.Authorize(user.Name, shareName, dstRel, rules.OpWrite, ip); err != nil {
			writeDavError(rsp, err)
			return
		}
	}

	handler, _ := snap.Dav.Handler(shareName)
	handler.ServeHTTP(rsp, req)
}
