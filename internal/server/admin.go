package server

import (
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/nh3bh3/cuthttp/internal/server/auth"
	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/version"
)

func (s *Server) serveAdmin(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, user *auth.User) {
	if !user.Admin {
		writeError(rsp, fserr.New(fserr.KindForbidden, "admin required"))
		return
	}

	path := strings.TrimPrefix(req.URL.Path, "/api/admin/")
	switch {
	case path == "status":
		s.expectMethod(rsp, req, http.MethodGet, func() { s.adminStatus(snap, rsp) })
	case path == "users":
		s.expectMethod(rsp, req, http.MethodGet, func() { s.adminUsers(snap, rsp) })
	case strings.HasPrefix(path, "users/"):
		name := strings.TrimPrefix(path, "users/")
		s.expectMethod(rsp, req, http.MethodDelete, func() { s.adminDeleteUser(snap, rsp, user, name) })
	case strings.HasPrefix(path, "shares/") && strings.HasSuffix(path, "/quota"):
		name := strings.TrimSuffix(strings.TrimPrefix(path, "shares/"), "/quota")
		s.expectMethod(rsp, req, http.MethodPut, func() { s.adminSetQuota(snap, rsp, req, name) })
	default:
		writeError(rsp, fserr.New(fserr.KindNotFound, "no such endpoint"))
	}
}

func (s *Server) adminStatus(snap *Snapshot, rsp http.ResponseWriter) {
	shares := make([]map[string]any, 0, len(snap.ShareNames))
	for _, name := range snap.ShareNames {
		sh := snap.Shares[name]
		item := map[string]any{
			"name":  name,
			"root":  sh.Root,
			"quota": snap.Quota.Describe(sh),
		}
		if usage, err := disk.Usage(sh.Root); err == nil {
			item["disk"] = map[string]any{
				"total":         usage.Total,
				"total_display": humanize.IBytes(usage.Total),
				"free":          usage.Free,
				"free_display":  humanize.IBytes(usage.Free),
				"used_percent":  usage.UsedPercent,
			}
		} else {
			log.Warn().Err(err).Str("Share", name).Msg("Disk usage failed")
		}
		shares = append(shares, item)
	}

	writeData(rsp, map[string]any{
		"version": version.Version,
		"mode":    version.Mode,
		"listener": map[string]any{
			"network": snap.Config.Listener.Network,
			"address": snap.Config.Listener.Address,
			"tls":     snap.Config.Listener.TLS.Enable,
		},
		"config_file": snap.Config.FilePath(),
		"shares":      shares,
		"users":       userList(snap),
		"ip_filter": map[string]any{
			"allow_entries": len(snap.Config.IPFilter.Allow),
			"deny_entries":  len(snap.Config.IPFilter.Deny),
		},
		"webdav":  snap.Dav != nil,
		"metrics": s.metrics.Snapshot(),
	})
}

func userList(snap *Snapshot) []map[string]any {
	out := make([]map[string]any, 0, len(snap.Users))
	for _, u := range snap.Users {
		out = append(out, map[string]any{
			"name":    u.Name,
			"admin":   u.Admin,
			"dynamic": u.Dynamic,
		})
	}
	return out
}

func (s *Server) adminUsers(snap *Snapshot, rsp http.ResponseWriter) {
	writeData(rsp, map[string]any{"users": userList(snap)})
}

// adminDeleteUser removes a self-registered user. Configured users are
// managed through the config file, and an admin cannot delete itself.
func (s *Server) adminDeleteUser(snap *Snapshot, rsp http.ResponseWriter, actor *auth.User, name string) {
	if name == actor.Name {
		writeError(rsp, fserr.New(fserr.KindForbidden, "can not delete yourself"))
		return
	}

	target, ok := snap.Users[name]
	if !ok {
		writeError(rsp, fserr.New(fserr.KindNotFound, "no such user: %s", name))
		return
	}
	if !target.Dynamic {
		writeError(rsp, fserr.New(fserr.KindForbidden, "user '%s' is configured, edit the config file", name))
		return
	}

	if err := s.users.Remove(name); err != nil {
		writeError(rsp, err)
		return
	}
	if err := s.rebuildSnapshot(); err != nil {
		log.Error().Err(err).Msg("Snapshot rebuild after user delete failed")
		writeError(rsp, fserr.Wrap(fserr.KindInternal, "apply user delete failed", err))
		return
	}
	writeData(rsp, nil)
}

// adminSetQuota changes a share quota for the running process only;
// the config file keeps its own value until edited.
func (s *Server) adminSetQuota(snap *Snapshot, rsp http.ResponseWriter, req *http.Request, name string) {
	var body struct {
		Quota string `json:"quota"`
	}
	if err := decodeJsonBody(req, &body); err != nil {
		writeError(rsp, err)
		return
	}

	if _, ok := snap.Shares[name]; !ok {
		writeError(rsp, fserr.New(fserr.KindUnknownShare, "unknown share: %s", name))
		return
	}
	if body.Quota != "" {
		if _, err := humanize.ParseBytes(body.Quota); err != nil {
			writeError(rsp, fserr.Wrap(fserr.KindBadRequest, "bad quota", err))
			return
		}
	}

	s.reloadLock.Lock()
	defer s.reloadLock.Unlock()

	current := s.snapshot.Load()
	newConfig := *current.Config
	newConfig.Shares = make([]config.Share, len(current.Config.Shares))
	copy(newConfig.Shares, current.Config.Shares)
	for i := range newConfig.Shares {
		if newConfig.Shares[i].Name == name {
			newConfig.Shares[i].Quota = body.Quota
		}
	}

	newSnap, err := buildSnapshot(&newConfig, s.users, s.metrics)
	if err != nil {
		writeError(rsp, fserr.Wrap(fserr.KindInternal, "apply quota failed", err))
		return
	}
	s.snapshot.Store(newSnap)

	sh := newSnap.Shares[name]
	writeData(rsp, map[string]any{"name": name, "quota": newSnap.Quota.Describe(sh)})
}
