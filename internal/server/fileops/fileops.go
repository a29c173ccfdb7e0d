// Package fileops implements the filesystem operations behind both the
// HTTP API and the WebDAV adapter: list, mkdir, upload, download,
// rename and delete. Callers are expected to have authorized the
// operation already; this package only enforces path safety.
package fileops

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/metrics"
	"github.com/nh3bh3/cuthttp/internal/server/quota"
	"github.com/nh3bh3/cuthttp/internal/server/share"
)

const copyChunkSize = 32 * 1024

type Engine struct {
	Quota   *quota.Tracker
	Metrics *metrics.Collector
	// MaxUploadSize caps a single upload; 0 means unlimited.
	MaxUploadSize int64
}

type Entry struct {
	Name  string
	IsDir bool
	Size  int64
	MTime time.Time
}

// List returns the directory's entries sorted by name ascending.
func (e *Engine) List(sh *share.Share, rel string) ([]Entry, error) {
	dir, err := sh.Resolve(rel)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return nil, mapNotFound(err, rel)
	}
	if !fi.IsDir() {
		return nil, fserr.New(fserr.KindNotADirectory, "not a directory: %s", rel)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapNotFound(err, rel)
	}

	out := make([]Entry, 0, len(ents))
	for _, ent := range ents {
		info, err := ent.Info()
		if err != nil {
			log.Warn().Err(err).Str("Name", ent.Name()).Msg("Stat entry failed")
			continue
		}
		// show what a symlink points at, the link itself on a broken target
		if info.Mode()&os.ModeSymlink != 0 {
			if real, err := os.Stat(filepath.Join(dir, ent.Name())); err == nil {
				info = real
			}
		}
		size := info.Size()
		if info.IsDir() {
			size = 0
		}
		out = append(out, Entry{
			Name:  ent.Name(),
			IsDir: info.IsDir(),
			Size:  size,
			MTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Mkdir creates the final path segment only; missing intermediate
// directories fail with ParentMissing.
func (e *Engine) Mkdir(sh *share.Share, rel string) error {
	dir, err := sh.Resolve(rel)
	if err != nil {
		return err
	}
	if !sh.Contains(dir) {
		return fserr.New(fserr.KindPathEscape, "path escapes share root")
	}

	if err := os.Mkdir(dir, 0o777); err != nil {
		switch {
		case errors.Is(err, os.ErrExist):
			return fserr.New(fserr.KindAlreadyExists, "already exists: %s", rel)
		case errors.Is(err, os.ErrNotExist):
			return fserr.New(fserr.KindParentMissing, "parent directory missing: %s", rel)
		default:
			return fserr.Wrap(fserr.KindInternal, "mkdir failed", err)
		}
	}
	return nil
}

// Upload streams r into dirRel under a sanitized version of name.
// Without overwrite the create is exclusive, so two racing uploads of
// the same name cannot clobber each other. Partial files left by a
// failed or oversized upload are removed.
func (e *Engine) Upload(sh *share.Share, dirRel, name string, r io.Reader, overwrite bool) (int64, error) {
	name, err := SanitizeFilename(name)
	if err != nil {
		return 0, err
	}

	target, err := sh.Resolve(path.Join(share.CleanRel(dirRel), name))
	if err != nil {
		return 0, err
	}
	if !sh.Contains(target) {
		return 0, fserr.New(fserr.KindPathEscape, "path escapes share root")
	}

	var quotaBudget int64 = -1
	if sh.QuotaBytes != 0 {
		quotaBudget = int64(sh.QuotaBytes) - e.Quota.Usage(sh)
		if quotaBudget < 0 {
			quotaBudget = 0
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(target, flags, 0o666)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrExist):
			return 0, fserr.New(fserr.KindAlreadyExists, "file already exists: %s", name)
		case errors.Is(err, os.ErrNotExist):
			return 0, fserr.New(fserr.KindParentMissing, "directory missing: %s", dirRel)
		default:
			return 0, fserr.Wrap(fserr.KindInternal, "open for upload failed", err)
		}
	}

	written, err := e.copyBounded(f, r, quotaBudget)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fserr.Wrap(fserr.KindInternal, "close failed", closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(target); rmErr != nil {
			log.Warn().Err(rmErr).Str("Path", target).Msg("Remove partial upload failed")
		}
		return 0, err
	}

	e.Quota.Charge(sh.Name, written)
	if e.Metrics != nil {
		e.Metrics.AddUploadBytes(written)
	}
	return written, nil
}

func (e *Engine) copyBounded(w io.Writer, r io.Reader, quotaBudget int64) (int64, error) {
	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if e.MaxUploadSize > 0 && written > e.MaxUploadSize {
				return written, fserr.New(fserr.KindPayloadTooLarge, "upload exceeds %d bytes", e.MaxUploadSize)
			}
			if quotaBudget >= 0 && written > quotaBudget {
				return written, fserr.New(fserr.KindQuotaExceeded, "share quota exceeded")
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, fserr.Wrap(fserr.KindInternal, "write failed", werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fserr.Wrap(fserr.KindInternal, "read upload stream failed", rerr)
		}
	}
}

// Open opens a file for download. The caller owns the handle.
func (e *Engine) Open(sh *share.Share, rel string) (*os.File, os.FileInfo, error) {
	abs, err := sh.Resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	if !sh.Contains(abs) {
		return nil, nil, fserr.New(fserr.KindPathEscape, "path escapes share root")
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, mapNotFound(err, rel)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fserr.Wrap(fserr.KindInternal, "stat failed", err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, nil, fserr.New(fserr.KindBadRequest, "is a directory: %s", rel)
	}
	return f, fi, nil
}

// Rename changes the last path segment in place. newName must be a
// plain filename.
func (e *Engine) Rename(sh *share.Share, rel, newName string) error {
	newName, err := ValidatePlainName(newName)
	if err != nil {
		return err
	}

	src, err := sh.Resolve(rel)
	if err != nil {
		return err
	}
	dst := filepath.Join(filepath.Dir(src), newName)
	if !sh.Contains(src) || !sh.Contains(dst) {
		return fserr.New(fserr.KindPathEscape, "path escapes share root")
	}

	if _, err := os.Lstat(src); err != nil {
		return mapNotFound(err, rel)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fserr.New(fserr.KindAlreadyExists, "destination already exists: %s", newName)
	}

	if err := os.Rename(src, dst); err != nil {
		return fserr.Wrap(fserr.KindInternal, "rename failed", err)
	}
	return nil
}

type DeleteResult struct {
	Path string
	Err  error
}

// Delete removes each path independently; directories are removed
// recursively. One failure never aborts the remaining paths.
func (e *Engine) Delete(sh *share.Share, rels []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(rels))
	changed := false

	for _, rel := range rels {
		results = append(results, DeleteResult{Path: rel, Err: e.deleteOne(sh, rel, &changed)})
	}

	if changed {
		// recursive removals make incremental accounting unreliable
		e.Quota.Invalidate(sh.Name)
	}
	return results
}

func (e *Engine) deleteOne(sh *share.Share, rel string, changed *bool) error {
	abs, err := sh.Resolve(rel)
	if err != nil {
		return err
	}
	if abs == sh.Root {
		return fserr.New(fserr.KindForbidden, "refusing to delete share root")
	}
	if !sh.Contains(abs) {
		return fserr.New(fserr.KindPathEscape, "path escapes share root")
	}

	// RemoveAll reports success on a missing path; WebDAV and the API
	// both want NotFound, so stat first.
	if _, err := os.Lstat(abs); err != nil {
		return mapNotFound(err, rel)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fserr.Wrap(fserr.KindInternal, "delete failed", err)
	}
	*changed = true
	return nil
}

func mapNotFound(err error, rel string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fserr.New(fserr.KindNotFound, "not found: %s", rel)
	}
	if errors.Is(err, os.ErrPermission) {
		return fserr.New(fserr.KindForbidden, "permission denied: %s", rel)
	}
	return fserr.Wrap(fserr.KindInternal, "filesystem error", err)
}
