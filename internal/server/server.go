package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nh3bh3/cuthttp/internal/server/auth"
	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/metrics"
	"github.com/nh3bh3/cuthttp/internal/server/userstore"
	"github.com/nh3bh3/cuthttp/internal/util"
	"github.com/nh3bh3/cuthttp/version"
)

type Server struct {
	httpServer http.Server

	snapshot atomic.Pointer[Snapshot]
	metrics  *metrics.Collector
	users    *userstore.Store

	reloadLock sync.Mutex
}

// NewServer builds the first snapshot from c. Self-registered users
// are persisted beside the config file.
func NewServer(c *config.Server) (*Server, error) {
	s := &Server{metrics: metrics.New()}

	storePath := ""
	if c.FilePath() != "" {
		storePath = c.FilePath() + ".users.json"
	}
	var err error
	s.users, err = userstore.Open(storePath)
	if err != nil {
		return nil, err
	}

	snap, err := buildSnapshot(c, s.users, s.metrics)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)
	return s, nil
}

func (s *Server) Run(listenerConfig config.Listener) error {
	listener, tlsConfig, err := listen(listenerConfig)
	if err != nil {
		return err
	}
	defer cleanListen(listenerConfig)

	s.httpServer = http.Server{
		Handler:   s,
		TLSConfig: tlsConfig,
	}

	log.Warn().Str("Net", listenerConfig.Network).Str("Addr", listenerConfig.Address).Msg("Listening")
	if tlsConfig != nil {
		err = s.httpServer.ServeTLS(listener, "", "")
	} else {
		err = s.httpServer.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Reload re-reads the config the server was started from, builds a new
// snapshot and swaps it in. On any error the old snapshot keeps
// serving.
func (s *Server) Reload() error {
	if !s.reloadLock.TryLock() {
		return errors.New("server is reloading")
	}
	defer s.reloadLock.Unlock()

	old := s.snapshot.Load()

	newConfig := config.Default
	if err := config.ReDecode(&newConfig, old.Config); err != nil {
		return err
	}

	snap, err := buildSnapshot(&newConfig, s.users, s.metrics)
	if err != nil {
		return err
	}

	s.snapshot.Store(snap)
	log.Warn().Str("Path", newConfig.FilePath()).Msg("Config reloaded")
	return nil
}

// rebuildSnapshot rebuilds from the current config, used after dynamic
// user changes so auth and rules pick them up.
func (s *Server) rebuildSnapshot() error {
	old := s.snapshot.Load()
	snap, err := buildSnapshot(old.Config, s.users, s.metrics)
	if err != nil {
		return err
	}
	s.snapshot.Store(snap)
	return nil
}

// Modified from gin's RecoveryFunc.
// Original copyright: Copyright 2014 Manu Martinez-Almeida. All rights reserved.
// Original license: MIT (https://raw.githubusercontent.com/gin-gonic/gin/master/LICENSE)
func (s *Server) serveRecover(rsp *responseWriter, req *http.Request, err any) {
	// Check for a broken connection
	var brokenPipe bool
	if ne, ok := err.(*net.OpError); ok {
		var se *os.SyscallError
		if errors.As(ne, &se) {
			seStr := strings.ToLower(se.Error())
			if strings.Contains(seStr, "broken pipe") ||
				strings.Contains(seStr, "connection reset by peer") {
				brokenPipe = true
			}
		}
	}

	if brokenPipe {
		log.Warn().Str("From", req.RemoteAddr).Msg("Connection reset")
		// If the connection is dead, we can do nothing
		return
	}

	log.Error().Str("From", req.RemoteAddr).Str("Err", fmt.Sprint(err)).Msg("Panic")

	if rsp.status == statusUnwrited {
		func() {
			defer func() {
				if err := recover(); err != nil {
					log.Warn().Str("From", req.RemoteAddr).Any("Err", err).Msg("Write failed")
				}
			}()
			writeError(rsp, fserr.New(fserr.KindInternal, "internal server error"))
		}()
	}
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to
// the socket peer. 4-in-6 addresses are unmapped so v4 CIDRs match.
func clientAddr(req *http.Request) (netip.Addr, error) {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap(), nil
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		// unix socket peers have no port
		host = req.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// bypassAdmission exempts cheap endpoints from rate and concurrency
// limiting so probes and share links keep working under load.
func bypassAdmission(req *http.Request) bool {
	p := req.URL.Path
	if p == "/healthz" || p == "/metrics" {
		return true
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		if p == "/" || strings.HasPrefix(p, "/t/") {
			return true
		}
	}
	return false
}

func (s *Server) writeAuthRsp(rsp http.ResponseWriter) {
	rsp.Header().Set("WWW-Authenticate", `Basic charset="UTF-8"`)
	writeError(rsp, fserr.New(fserr.KindUnauthorized, "authentication required"))
}

// tryAuth authenticates the request and writes the 401 itself on
// failure; a nil user means the response is already sent.
func (s *Server) tryAuth(snap *Snapshot, rsp http.ResponseWriter, req *http.Request) *auth.User {
	user, err := auth.HttpBasicAuth(snap.Users, req)
	switch {
	case err == nil:
		return user
	case errors.Is(err, auth.ErrAuthHeaderNotExists),
		errors.Is(err, auth.ErrBadHttpAuthHeader),
		errors.Is(err, auth.ErrUserNotExists),
		errors.Is(err, auth.ErrSecretMismatch):
		s.metrics.AuthFailure()
		s.writeAuthRsp(rsp)
	default:
		log.Error().Err(err).Msg("Auth error")
		writeError(rsp, fserr.Wrap(fserr.KindInternal, "auth failed", err))
	}
	return nil
}

func (s *Server) ServeHTTP(rsp_ http.ResponseWriter, req *http.Request) {
	snap := s.snapshot.Load()
	rsp := newResponseWriter(rsp_)
	start := time.Now()

	s.metrics.Request(req.Method)
	defer func() {
		if err := recover(); err != nil {
			s.serveRecover(rsp, req, err)
		}
		status := rsp.status
		if status == statusUnwrited {
			status = http.StatusOK
		}
		s.metrics.Response(status)
		log.Info().
			Str("Path", req.RequestURI).
			Str("From", req.RemoteAddr).
			Int("Code", status).
			Dur("Took", time.Since(start)).
			Msg(req.Method)
	}()
	rsp.Header().Set("Server", "cuthttp/"+version.Version)

	if !util.IsUrlValid(req.URL.Path) {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "invalid URL path"))
		return
	}

	// health and metrics stay reachable regardless of filters
	switch req.URL.Path {
	case "/healthz":
		s.serveHealthz(rsp, req)
		return
	case "/metrics":
		s.serveMetrics(rsp, req)
		return
	}

	ip, err := clientAddr(req)
	if err != nil {
		writeError(rsp, fserr.New(fserr.KindBadRequest, "unparsable client address"))
		return
	}

	if !snap.IPFilter.Check(ip) {
		s.metrics.IPDenied()
		writeError(rsp, fserr.New(fserr.KindIPDenied, "address not allowed"))
		return
	}

	if !bypassAdmission(req) {
		if err := snap.Limiter.Admit(req.Context()); err != nil {
			s.metrics.RateLimitHit()
			writeError(rsp, err)
			return
		}
		defer snap.Limiter.Release()
	}

	s.route(snap, rsp, req, ip)
}

func (s *Server) route(snap *Snapshot, rsp *responseWriter, req *http.Request, ip netip.Addr) {
	path := req.URL.Path

	switch {
	case path == "/":
		s.serveIndex(snap, rsp, req)
	case strings.HasPrefix(path, "/t/"):
		s.serveTextGet(snap, rsp, req)
	case snap.Dav != nil && (path == snap.Dav.Mount() || strings.HasPrefix(path, snap.Dav.Mount()+"/")):
		user := s.tryAuth(snap, rsp, req)
		if user == nil {
			return
		}
		s.serveDav(snap, rsp, req, user, ip)
	case strings.HasPrefix(path, "/api/"):
		s.serveApi(snap, rsp, req, ip)
	default:
		writeError(rsp, fserr.New(fserr.KindNotFound, "no such endpoint"))
	}
}
