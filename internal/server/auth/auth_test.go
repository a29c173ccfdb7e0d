package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nh3bh3/cuthttp/internal/server/config"
)

func testUsers(t *testing.T) Users {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	users, err := NewUsers([]config.User{
		{Name: "alice", Secret: string(hash), Bcrypt: true, Admin: true},
		{Name: "bob", Secret: "plaintext"},
	}, nil)
	require.NoError(t, err)
	return users
}

func TestNewUsersRejectsDuplicates(t *testing.T) {
	_, err := NewUsers([]config.User{
		{Name: "a", Secret: "x"},
		{Name: "a", Secret: "y"},
	}, nil)
	require.Error(t, err)
}

func TestDynamicNeverShadowsConfigured(t *testing.T) {
	users, err := NewUsers(
		[]config.User{{Name: "alice", Secret: "configured"}},
		[]config.User{{Name: "alice", Secret: "dynamic"}, {Name: "carol", Secret: "x"}},
	)
	require.NoError(t, err)

	require.Equal(t, "configured", users["alice"].Secret)
	require.False(t, users["alice"].Dynamic)
	require.True(t, users["carol"].Dynamic)
}

func TestAuthUser(t *testing.T) {
	users := testUsers(t)

	u, err := AuthUser(users, "alice", "s3cret")
	require.NoError(t, err)
	require.True(t, u.Admin)

	_, err = AuthUser(users, "alice", "wrong")
	require.ErrorIs(t, err, ErrSecretMismatch)

	u, err = AuthUser(users, "bob", "plaintext")
	require.NoError(t, err)
	require.False(t, u.Admin)

	_, err = AuthUser(users, "bob", "plaintexT")
	require.ErrorIs(t, err, ErrSecretMismatch)

	_, err = AuthUser(users, "nobody", "x")
	require.ErrorIs(t, err, ErrUserNotExists)
}

func TestHttpBasicAuth(t *testing.T) {
	users := testUsers(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := HttpBasicAuth(users, req)
	require.ErrorIs(t, err, ErrAuthHeaderNotExists)

	req.Header.Set("Authorization", "Bearer nope")
	_, err = HttpBasicAuth(users, req)
	require.ErrorIs(t, err, ErrBadHttpAuthHeader)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("bob", "plaintext")
	u, err := HttpBasicAuth(users, req)
	require.NoError(t, err)
	require.Equal(t, "bob", u.Name)
}
