package userstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

func TestAddPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Add("carol", "hunter2"))

	users := s.Users()
	require.Len(t, users, 1)
	require.Equal(t, "carol", users[0].Name)
	require.True(t, users[0].Bcrypt)
	// never store the password itself
	require.NotEqual(t, "hunter2", users[0].Secret)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Secret), []byte("hunter2")))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Len(t, reopened.Users(), 1)
}

func TestAddDuplicate(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	require.NoError(t, s.Add("carol", "hunter2"))
	err = s.Add("carol", "other")
	require.Equal(t, fserr.KindAlreadyExists, fserr.KindOf(err))
}

func TestAddValidation(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)

	require.Error(t, s.Add("", "pw"))
	require.Error(t, s.Add("name", ""))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Add("carol", "hunter2"))
	require.NoError(t, s.Remove("carol"))
	require.Empty(t, s.Users())

	err = s.Remove("carol")
	require.Equal(t, fserr.KindNotFound, fserr.KindOf(err))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, reopened.Users())
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Empty(t, s.Users())
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o666))

	_, err := Open(path)
	require.Error(t, err)
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Add("carol", "hunter2"))
	require.Len(t, s.Users(), 1)
}
