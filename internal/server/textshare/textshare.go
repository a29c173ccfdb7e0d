// Package textshare stores small text snippets under short opaque ids,
// for paste-a-link style sharing.
package textshare

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sqids/sqids-go"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

const (
	idMinLength = 7
	idRunes     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MaxTextSize caps one snippet.
	MaxTextSize = 1 << 20
)

func randomIdAlphabet() string {
	s := []byte(idRunes)
	rand.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
	return string(s)
}

type Store struct {
	dir  string
	ider *sqids.Sqids
	seq  atomic.Uint64
}

// NewStore creates dir if needed. The id alphabet is shuffled per
// process so ids are not enumerable across restarts.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o777); err != nil {
		return nil, err
	}

	ider, err := sqids.New(sqids.Options{
		MinLength: idMinLength,
		Alphabet:  randomIdAlphabet(),
	})
	if err != nil {
		return nil, err
	}

	return &Store{dir: abs, ider: ider}, nil
}

// Put stores text and returns its id. The exclusive create retries
// with the next sequence number on the unlikely collision.
func (s *Store) Put(text string) (string, error) {
	if text == "" {
		return "", fserr.New(fserr.KindBadRequest, "empty text")
	}
	if len(text) > MaxTextSize {
		return "", fserr.New(fserr.KindPayloadTooLarge, "text exceeds %d bytes", MaxTextSize)
	}

	for range 8 {
		id, err := s.ider.Encode([]uint64{s.seq.Add(1), rand.Uint64N(1 << 20)})
		if err != nil {
			return "", fserr.Wrap(fserr.KindInternal, "id generation failed", err)
		}

		f, err := os.OpenFile(filepath.Join(s.dir, id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fserr.Wrap(fserr.KindInternal, "store text failed", err)
		}

		_, werr := f.WriteString(text)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(filepath.Join(s.dir, id))
			return "", fserr.New(fserr.KindInternal, "store text failed")
		}
		return id, nil
	}
	return "", fserr.New(fserr.KindInternal, "id space exhausted")
}

// Get returns the snippet for id; unknown or malformed ids are
// NotFound.
func (s *Store) Get(id string) (string, error) {
	if !validId(id) {
		return "", fserr.New(fserr.KindNotFound, "no such text share")
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if errors.Is(err, os.ErrNotExist) {
		return "", fserr.New(fserr.KindNotFound, "no such text share")
	}
	if err != nil {
		return "", fserr.Wrap(fserr.KindInternal, "read text failed", err)
	}
	return string(data), nil
}

// validId keeps ids from addressing the filesystem: alphanumeric only,
// so they cannot contain separators or dots.
func validId(id string) bool {
	if len(id) < idMinLength || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
