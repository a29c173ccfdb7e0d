// Package share resolves (share, relative path) pairs into absolute
// filesystem paths that are guaranteed to stay inside the share root.
package share

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

type Share struct {
	Name string
	// Root is absolute, cleaned and carries no trailing separator.
	Root string
	// QuotaBytes is 0 for unlimited.
	QuotaBytes uint64
}

// New resolves the share root once. The root must exist and be a
// directory.
func New(c config.Share) (*Share, error) {
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return nil, fserr.Wrap(fserr.KindConfigInvalid, "share '"+c.Name+"'", err)
	}
	root = filepath.Clean(root)

	fi, err := os.Stat(root)
	if err != nil {
		return nil, fserr.Wrap(fserr.KindConfigInvalid, "share '"+c.Name+"': root missing", err)
	}
	if !fi.IsDir() {
		return nil, fserr.New(fserr.KindConfigInvalid, "share '%s': root is not a directory", c.Name)
	}

	var quota uint64
	if c.Quota != "" {
		quota, err = humanize.ParseBytes(c.Quota)
		if err != nil {
			return nil, fserr.Wrap(fserr.KindConfigInvalid, "share '"+c.Name+"': bad quota", err)
		}
	}

	return &Share{Name: c.Name, Root: root, QuotaBytes: quota}, nil
}

// CleanRel normalizes a client-supplied path to a slash-separated
// relative path with no leading slash; "" means the share root.
// Backslashes count as separators for cross-platform clients.
func CleanRel(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // forcing absolute keeps Clean stable
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SafeRel cleans a client-supplied path and rejects traversal
// attempts. A path that still points above its anchor after cleaning
// is an attack, not a path to clamp.
func SafeRel(p string) (string, error) {
	if strings.ContainsRune(p, '\x00') {
		return "", fserr.New(fserr.KindPathEscape, "invalid path")
	}

	unanchored := path.Clean(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/"))
	if unanchored == ".." || strings.HasPrefix(unanchored, "../") {
		return "", fserr.New(fserr.KindPathEscape, "path escapes share root")
	}
	return CleanRel(p), nil
}

// Resolve maps rel onto the share root. A path that would land outside
// the root after normalization fails with PathEscape.
func (s *Share) Resolve(rel string) (string, error) {
	rel, err := SafeRel(rel)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return s.Root, nil
	}

	abs := filepath.Clean(filepath.Join(s.Root, filepath.FromSlash(rel)))
	if !s.Contains(abs) {
		return "", fserr.New(fserr.KindPathEscape, "path escapes share root")
	}
	return abs, nil
}

// Contains reports whether abs is the share root or strictly below it.
// File operations call this again right before each syscall to narrow
// the TOCTOU window.
func (s *Share) Contains(abs string) bool {
	abs = filepath.Clean(abs)
	return abs == s.Root || strings.HasPrefix(abs, s.Root+string(filepath.Separator))
}

// Rel converts an absolute path under the root back to a
// slash-separated relative path.
func (s *Share) Rel(abs string) string {
	rel, err := filepath.Rel(s.Root, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
