// Package quota tracks per-share disk usage. Usage is computed by a
// directory walk on first demand, then maintained incrementally by
// upload/delete charges so concurrent writers never lose updates.
package quota

import (
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/nh3bh3/cuthttp/internal/server/share"
)

type entry struct {
	mu    sync.Mutex // serializes walks
	valid atomic.Bool
	usage atomic.Int64
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: map[string]*entry{}}
}

func (t *Tracker) entryFor(name string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		e = &entry{}
		t.entries[name] = e
	}
	return e
}

// Usage returns the share's current usage in bytes, walking the tree
// if no cached value exists.
func (t *Tracker) Usage(sh *share.Share) int64 {
	e := t.entryFor(sh.Name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.valid.Load() {
		return e.usage.Load()
	}

	var total int64
	err := filepath.WalkDir(sh.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries do not fail the walk
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("Share", sh.Name).Msg("Usage walk failed")
	}

	e.usage.Store(total)
	e.valid.Store(true)
	return total
}

// Charge adjusts cached usage after a write or delete. Charges on a
// share that was never walked are dropped; the next Usage call
// recomputes from disk anyway.
func (t *Tracker) Charge(name string, delta int64) {
	e := t.entryFor(name)
	if !e.valid.Load() {
		return
	}
	e.usage.Add(delta)
}

// Invalidate discards the cached value, forcing the next Usage call to
// walk again.
func (t *Tracker) Invalidate(name string) {
	// Taken under the walk lock so a walk finishing after the
	// invalidation cannot resurrect the stale value.
	e := t.entryFor(name)
	e.mu.Lock()
	e.valid.Store(false)
	e.mu.Unlock()
}

// Describe renders quota state in human units for admin payloads;
// returns nil for unlimited shares.
func (t *Tracker) Describe(sh *share.Share) map[string]any {
	if sh.QuotaBytes == 0 {
		return nil
	}
	used := t.Usage(sh)
	if used < 0 {
		used = 0
	}
	limit := int64(sh.QuotaBytes)
	remaining := max(limit-used, 0)
	percent := 100.0
	if limit > 0 {
		percent = min(float64(used)/float64(limit)*100.0, 100.0)
	}
	return map[string]any{
		"limit":             limit,
		"limit_display":     humanize.IBytes(sh.QuotaBytes),
		"used":              used,
		"used_display":      humanize.IBytes(uint64(used)),
		"remaining":         remaining,
		"remaining_display": humanize.IBytes(uint64(remaining)),
		"percent_used":      percent,
		"over":              used > limit,
	}
}
