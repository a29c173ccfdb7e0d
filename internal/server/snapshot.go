package server

import (
	"fmt"

	"github.com/nh3bh3/cuthttp/internal/server/auth"
	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/dav"
	"github.com/nh3bh3/cuthttp/internal/server/fileops"
	"github.com/nh3bh3/cuthttp/internal/server/ipfilter"
	"github.com/nh3bh3/cuthttp/internal/server/limiter"
	"github.com/nh3bh3/cuthttp/internal/server/metrics"
	"github.com/nh3bh3/cuthttp/internal/server/quota"
	"github.com/nh3bh3/cuthttp/internal/server/rules"
	"github.com/nh3bh3/cuthttp/internal/server/share"
	"github.com/nh3bh3/cuthttp/internal/server/textshare"
	"github.com/nh3bh3/cuthttp/internal/server/userstore"
)

// Snapshot is everything a request needs, built from one validated
// config. It is immutable; hot reload builds a new one and swaps the
// pointer, so a request always sees one consistent version.
type Snapshot struct {
	Config *config.Server

	Shares     map[string]*share.Share
	ShareNames []string
	Users      auth.Users
	Rules      *rules.Engine
	IPFilter   *ipfilter.Filter
	Limiter    *limiter.Limiter

	// Dav is nil when webdav is disabled, Text when no text-share dir
	// is configured.
	Dav  *dav.Adapter
	Text *textshare.Store

	Quota *quota.Tracker
	Ops   *fileops.Engine
}

func buildSnapshot(c *config.Server, store *userstore.Store, m *metrics.Collector) (*Snapshot, error) {
	snap := &Snapshot{Config: c}

	snap.Shares = make(map[string]*share.Share, len(c.Shares))
	for _, sc := range c.Shares {
		if _, ok := snap.Shares[sc.Name]; ok {
			return nil, fmt.Errorf("share '%s' repeated", sc.Name)
		}
		sh, err := share.New(sc)
		if err != nil {
			return nil, err
		}
		snap.Shares[sc.Name] = sh
		snap.ShareNames = append(snap.ShareNames, sc.Name)
	}

	dynamic := store.Users()
	users, err := auth.NewUsers(c.Users, dynamic)
	if err != nil {
		return nil, err
	}
	snap.Users = users

	// self-registered users get read/write on every share
	dynamicRules := make([]config.Rule, 0, len(dynamic))
	for _, du := range dynamic {
		dynamicRules = append(dynamicRules, config.Rule{
			Who:   du.Name,
			Allow: []string{"R", "W"},
			Roots: []string{"*"},
		})
	}
	snap.Rules, err = rules.New(c.Rules, dynamicRules)
	if err != nil {
		return nil, err
	}

	snap.IPFilter, err = ipfilter.New(c.IPFilter)
	if err != nil {
		return nil, err
	}

	snap.Limiter = limiter.New(c.RateLimit)
	snap.Quota = quota.NewTracker()
	snap.Ops = &fileops.Engine{
		Quota:         snap.Quota,
		Metrics:       m,
		MaxUploadSize: c.UI.MaxUploadSize,
	}

	if c.Dav.Enable {
		snap.Dav = dav.New(c.Dav.MountPath, snap.Shares)
	}

	if c.UI.TextShareDir != "" {
		snap.Text, err = textshare.NewStore(c.UI.TextShareDir)
		if err != nil {
			return nil, err
		}
	}

	return snap, nil
}
