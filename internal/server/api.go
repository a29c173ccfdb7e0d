package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/netip"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nh3bh3/cuthttp/internal/server/auth"
	"github.com/nh3bh3/cuthttp/internal/server/fileops"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/rules"
	"github.com/nh3bh3/cuthttp/internal/server/share"
	"github.com/nh3bh3/cuthttp/version"
)

const maxJsonBody = 1 << 20

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func writeJson(rsp http.ResponseWriter, status int, env envelope) {
	rsp.Header().Set("Content-Type", "application/json; charset=utf-8")
	rsp.WriteHeader(status)
	if err := json.NewEncoder(rsp).Encode(env); err != nil {
		log.Debug().Err(err).Msg("Write response failed")
	}
}

func writeData(rsp http.ResponseWriter, data any) {
	writeJson(rsp, http.StatusOK, envelope{Code: 0, Msg: "ok", Data: data})
}

func writeError(rsp http.ResponseWriter, err error) {
	kind := fserr.KindOf(err)
	msg := err.Error()
	if kind == fserr.KindInternal && !version.IsDebug() {
		msg = "internal server error"
	}
	writeJson(rsp, kind.HTTPStatus(), envelope{Code: kind.Code(), Msg: msg})
}

func decodeJsonBody(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxJsonBody))
	if err := dec.Decode(v); err != nil {
		return fserr.Wrap(fserr.KindBadRequest, "bad request body", err)
	}
	return nil
}

func (s *Server) shareFor(snap *Snapshot, root string) (*share.Share, error) {
	if root == "" {
		return nil, fserr.New(fserr.KindUnknownShare, "share name required")
	}
	sh, ok := snap.Shares[root]
	if !ok {
		return nil, fserr.New(fserr.KindUnknownShare, "unknown share: %s", root)
	}
	return sh, nil
}

func (s *Server) serveIndex(snap *Snapshot, rsp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		writeMethodNotAllow(rsp, "GET, HEAD")
		return
	}
	writeData(rsp, map[string]any{
		"brand":   snap.Config.UI.Brand,
		"title":   snap.Config.UI.Title,
		"version": version.Version,
	})
}

func (s *Server) serveHealthz(rsp http.ResponseWriter, req *http.Request) {
	rsp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rsp.WriteHeader(http.StatusOK)
	io.WriteString(rsp, "ok\n")
}

func (s *Server) serveMetrics(rsp http.ResponseWriter, req *http.Request) {
	rsp.Header().Set("Content-Type", "application/json; charset=utf-8")
	rsp.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(rsp).Encode(s.metrics.Snapshot()); err != nil {
		log.Debug().Err(err).Msg("Write metrics failed")
	}
}

func writeMethodNotAllow(rsp http.ResponseWriter, allow string) {
	rsp.Header().Set("Allow", allow)
	writeJson(rsp, http.StatusMethodNotAllowed, envelope{Code: http.StatusMethodNotAllowed, Msg: "method not allowed"})
}

func (s *Server) serveApi(snap *Snapshot, rsp *responseWriter, req *http.Request, ip netip.Addr) {
	// registration is the one API a client can call without an account
	if req.URL.Path == "/api/register" {
		if req.Method != http.MethodPost {
			writeMethodNotAllow(rsp, "POST")
			return
		}
		s.apiRegister(snap, rsp, req)
		return
	}

	user := s.tryAuth(snap, rsp, req)
	if user == nil {
		return
	}

	if strings.HasPrefix(req.URL.Path, "/api/admin/") {
		s.serveAdmin(snap, rsp, req, user)
		return
	}

	switch req.URL.Path {
	case "/api/list":
		s.expectMethod(rsp, req, http.MethodGet, func() { s.apiList(snap, rsp, req, user, ip) })
	case "/api/mkdir":
		s.expectMethod(rsp, req, http.MethodPost, func() { s.apiMkdir(snap, rsp, req, user, ip) })
	case "/api/upload":
		s.expectMethod(rsp, req, http.MethodPost, func() { s.apiUpload(snap, rsp, req, user, ip) })
	case "/api/rename":
		s.expectMethod(rsp, req, http.MethodPost, func() { s.apiRename(snap, rsp, req, user, ip) })
	case "/api/delete":
		s.expectMethod(rsp, req, http.MethodPost, func() { s.apiDelete(snap, rsp, req, user, ip) })
	case "/api/download":
		s.expectMethod(rsp, req, http.MethodGet, func() { s.apiDownload(snap, rsp, req, user, ip) })
	case "/api/textshare":
		s.expectMethod(rsp, req, http.MethodPost, func() { s.apiTextShare(snap, rsp, req) })
	case "/api/session":
		s.expectMethod(rsp, req, http.MethodGet, func() { s.apiSession(snap, rsp, user, ip) })
	default:
		writeError(rsp, fserr.New(fserr.KindNotFound, "no such endpoint"))
	}
}

func (s *Server) expectMethod(rsp http.ResponseWriter, req *http.Request, method string, h func()) {
	if req.Method != method {
		writeMethodNotAllow(rsp, method)
		return
	}
	h()
}

func fileEntry(e fileops.Entry) map[string]any {
	return map[string]any{
		"name":   e.Name,
		"is_dir": e.IsDir,
		"size":   e.Size,
		"mtime":  e.MTime.Unix(),
	}
}

func (s *Server) apiList(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	root := req.URL.Query().Get("root")
	rel, err := share.SafeRel(req.URL.Query().Get("path"))
	if err != nil {
		writeError(rsp, err)
		return
	}

	sh, err := s.shareFor(snap, root)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if err := snap.Rules.Authorize(user.Name, root, rel, rules.OpRead, ip); err != nil {
		writeError(rsp, err)
		return
	}

	entries, err := snap.Ops.List(sh, rel)
	if err != nil {
		writeError(rsp, err)
		return
	}

	files := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		files = append(files, fileEntry(e))
	}
	writeData(rsp, map[string]any{"files": files})
}

func (s *Server) apiMkdir(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	var body struct {
		Root string `json:"root"`
		Path string `json:"path"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}
	rel, err := share.SafeRel(body.Path)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if rel == "" {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "path required"))
		return
	}

	sh, err := s.shareFor(snap, body.Root)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if err := snap.Rules.Authorize(user.Name, body.Root, rel, rules.OpWrite, ip); err != nil {
		writeError(rsp, err)
		return
	}

	if err := snap.Ops.Mkdir(sh, rel); err != nil {
		writeError(rsp, err)
		return
	}
	writeData(rsp, nil)
}

// apiUpload streams the multipart body; the root/path/overwrite fields
// must precede the file part.
func (s *Server) apiUpload(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	mr, err := req.MultipartReader()
	if err != nil {
		writeError(rsp, fserr.Wrap(fserr.KindBadRequest, "multipart body required", err))
		return
	}

	var root, dir string
	overwrite := false
	var uploaded []map[string]any

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(rsp, fserr.Wrap(fserr.KindBadRequest, "bad multipart body", err))
			return
		}

		switch part.FormName() {
		case "root":
			root = readFormValue(part)
		case "path":
			dir, err = share.SafeRel(readFormValue(part))
			if err != nil {
				writeError(rsp, err)
				return
			}
		case "overwrite":
			v := readFormValue(part)
			overwrite = v == "1" || v == "true"
		case "file":
			if root == "" {
				writeError(rsp, fserr.New(fserr.KindBadRequest,
					"root and path fields must come before the file part"))
				return
			}
			name, err := fileops.SanitizeFilename(part.FileName())
			if err != nil {
				writeError(rsp, err)
				return
			}

			sh, err := s.shareFor(snap, root)
			if err != nil {
				writeError(rsp, err)
				return
			}
			target := path.Join(dir, name)
			if err := snap.Rules.Authorize(user.Name, root, target, rules.OpWrite, ip); err != nil {
				writeError(rsp, err)
				return
			}

			written, err := snap.Ops.Upload(sh, dir, name, part, overwrite)
			if err != nil {
				writeError(rsp, err)
				return
			}
			uploaded = append(uploaded, map[string]any{"name": name, "size": written})
		}
		part.Close()
	}

	if len(uploaded) == 0 {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "no file part"))
		return
	}
	writeData(rsp, map[string]any{"files": uploaded})
}

func readFormValue(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Server) apiRename(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	var body struct {
		Root    string `json:"root"`
		Path    string `json:"path"`
		NewName string `json:"newName"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}
	rel, err := share.SafeRel(body.Path)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if rel == "" {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "path required"))
		return
	}

	sh, err := s.shareFor(snap, body.Root)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if err := snap.Rules.Authorize(user.Name, body.Root, rel, rules.OpWrite, ip); err != nil {
		writeError(rsp, err)
		return
	}

	if err := snap.Ops.Rename(sh, rel, body.NewName); err != nil {
		writeError(rsp, err)
		return
	}
	writeData(rsp, nil)
}

func (s *Server) apiDelete(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	var body struct {
		Root  string   `json:"root"`
		Paths []string `json:"paths"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}
	if len(body.Paths) == 0 {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "paths required"))
		return
	}

	sh, err := s.shareFor(snap, body.Root)
	if err != nil {
		writeError(rsp, err)
		return
	}

	var allowed []string
	results := make([]fileops.DeleteResult, 0, len(body.Paths))
	for _, p := range body.Paths {
		rel, err := share.SafeRel(p)
		if err != nil {
			results = append(results, fileops.DeleteResult{Path: p, Err: err})
			continue
		}
		if err := snap.Rules.Authorize(user.Name, body.Root, rel, rules.OpDelete, ip); err != nil {
			results = append(results, fileops.DeleteResult{Path: p, Err: err})
			continue
		}
		allowed = append(allowed, rel)
	}
	results = append(results, snap.Ops.Delete(sh, allowed)...)

	out := make([]map[string]any, 0, len(results))
	var firstErr error
	for _, r := range results {
		item := map[string]any{"path": r.Path, "ok": r.Err == nil}
		if r.Err != nil {
			item["msg"] = r.Err.Error()
			if firstErr == nil {
				firstErr = r.Err
			}
		}
		out = append(out, item)
	}

	if firstErr != nil {
		kind := fserr.KindOf(firstErr)
		writeJson(rsp, kind.HTTPStatus(), envelope{
			Code: kind.Code(),
			Msg:  firstErr.Error(),
			Data: map[string]any{"results": out},
		})
		return
	}
	writeData(rsp, map[string]any{"results": out})
}

func (s *Server) apiDownload(snap *Snapshot, rsp *responseWriter, req *http.Request, user *auth.User, ip netip.Addr) {
	root := req.URL.Query().Get("root")
	rel, err := share.SafeRel(req.URL.Query().Get("path"))
	if err != nil {
		writeError(rsp, err)
		return
	}

	sh, err := s.shareFor(snap, root)
	if err != nil {
		writeError(rsp, err)
		return
	}
	if err := snap.Rules.Authorize(user.Name, root, rel, rules.OpRead, ip); err != nil {
		writeError(rsp, err)
		return
	}

	f, fi, err := snap.Ops.Open(sh, rel)
	if err != nil {
		writeError(rsp, err)
		return
	}
	defer f.Close()

	name := path.Base("/" + rel)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	rsp.Header().Set("Content-Type", contentType)
	rsp.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	rsp.Header().Set("Accept-Ranges", "bytes")

	size := fi.Size()
	if rangeHeader := req.Header.Get("Range"); rangeHeader != "" {
		br, err := fileops.ParseRange(rangeHeader, size)
		if err != nil {
			rsp.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
			writeError(rsp, err)
			return
		}
		if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
			writeError(rsp, fserr.Wrap(fserr.KindInternal, "seek failed", err))
			return
		}

		rsp.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))
		rsp.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(br.Start, 10)+"-"+strconv.FormatInt(br.End, 10)+
				"/"+strconv.FormatInt(size, 10))
		rsp.WriteHeader(http.StatusPartialContent)

		n, err := io.CopyN(rsp, f, br.Length())
		s.metrics.AddDownloadBytes(n)
		if err != nil {
			log.Debug().Err(err).Str("Path", rel).Msg("Range download aborted")
		}
		return
	}

	rsp.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	rsp.WriteHeader(http.StatusOK)
	n, err := io.Copy(rsp, f)
	s.metrics.AddDownloadBytes(n)
	if err != nil {
		log.Debug().Err(err).Str("Path", rel).Msg("Download aborted")
	}
}

func (s *Server) apiTextShare(snap *Snapshot, rsp http.ResponseWriter, req *http.Request) {
	if snap.Text == nil {
		writeError(rsp, fserr.New(fserr.KindNotFound, "text share not configured"))
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}

	id, err := snap.Text.Put(body.Text)
	if err != nil {
		writeError(rsp, err)
		return
	}
	writeData(rsp, map[string]any{"id": id})
}

func (s *Server) serveTextGet(snap *Snapshot, rsp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		writeMethodNotAllow(rsp, "GET, HEAD")
		return
	}
	if snap.Text == nil {
		writeError(rsp, fserr.New(fserr.KindNotFound, "text share not configured"))
		return
	}

	id := strings.TrimPrefix(req.URL.Path, "/t/")
	text, err := snap.Text.Get(id)
	if err != nil {
		writeError(rsp, err)
		return
	}

	rsp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rsp.WriteHeader(http.StatusOK)
	io.WriteString(rsp, text)
}

func (s *Server) apiSession(snap *Snapshot, rsp http.ResponseWriter, user *auth.User, ip netip.Addr) {
	writeData(rsp, map[string]any{
		"user":    user.Name,
		"admin":   user.Admin,
		"dynamic": user.Dynamic,
		"shares":  snap.Rules.AccessibleRoots(user.Name, snap.ShareNames, ip),
	})
}

func (s *Server) apiRegister(snap *Snapshot, rsp http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Confirm  string `json:"confirm"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}

	switch {
	case len(body.Username) < 3:
		writeError(rsp, fserr.New(fserr.KindBadRequest, "username must be at least 3 characters"))
		return
	case len(body.Password) < 6:
		writeError(rsp, fserr.New(fserr.KindBadRequest, "password must be at least 6 characters"))
		return
	case body.Password != body.Confirm:
		writeError(rsp, fserr.New(fserr.KindBadRequest, "passwords do not match"))
		return
	}
	if _, exists := snap.Users[body.Username]; exists {
		writeError(rsp, fserr.New(fserr.KindAlreadyExists, "user '%s' already exists", body.Username))
		return
	}

	if err := s.users.Add(body.Username, body.Password); err != nil {
		writeError(rsp, err)
		return
	}
	if err := s.rebuildSnapshot(); err != nil {
		log.Error().Err(err).Msg("Snapshot rebuild after register failed")
		writeError(rsp, fserr.Wrap(fserr.KindInternal, "apply registration failed", err))
		return
	}

	writeData(rsp, map[string]any{"user": body.Username})
}
