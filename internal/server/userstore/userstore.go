// Package userstore persists self-registered users separately from the
// config file, so a config reload never drops them.
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

type record struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type Store struct {
	mu    sync.Mutex
	path  string
	users []record
}

// Open loads path, tolerating a missing file. An empty path yields an
// in-memory store that never persists.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s.path = abs

	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("user store '%s' corrupt: %w", abs, err)
	}
	return s, nil
}

// Add registers a new user, hashing the password with bcrypt before it
// ever touches disk.
func (s *Store) Add(name, password string) error {
	if name == "" || password == "" {
		return fserr.New(fserr.KindBadRequest, "username and password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fserr.Wrap(fserr.KindInternal, "hash password failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			return fserr.New(fserr.KindAlreadyExists, "user '%s' already exists", name)
		}
	}
	s.users = append(s.users, record{Name: name, Secret: string(hash)})
	if err := s.persistLocked(); err != nil {
		s.users = s.users[:len(s.users)-1]
		return err
	}
	return nil
}

func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.Name == name {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return s.persistLocked()
		}
	}
	return fserr.New(fserr.KindNotFound, "no such user: %s", name)
}

// Users returns the dynamic users as config entries, ready to merge
// with the configured ones.
func (s *Store) Users() []config.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]config.User, len(s.users))
	for i, u := range s.users {
		out[i] = config.User{Name: u.Name, Secret: u.Secret, Bcrypt: true}
	}
	return out
}

// persistLocked writes through a temp file and renames, so readers
// never see a half-written store.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fserr.Wrap(fserr.KindInternal, "encode user store failed", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fserr.Wrap(fserr.KindInternal, "write user store failed", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fserr.Wrap(fserr.KindInternal, "replace user store failed", err)
	}
	return nil
}
