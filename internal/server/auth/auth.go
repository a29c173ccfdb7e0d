package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/nh3bh3/cuthttp/internal/server/config"
)

var (
	ErrBadHttpAuthHeader   = errors.New("bad http auth header")
	ErrAuthHeaderNotExists = errors.New("http auth header not exists")
	ErrUserNotExists       = errors.New("user not exists")
	ErrSecretMismatch      = errors.New("secret mismatch")
)

// dummyHash is a bcrypt digest of an unguessable throwaway value.
// Verifying unknown users against it keeps the timing of the
// user-not-found path aligned with the wrong-password path.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type User struct {
	Name    string
	Secret  string
	Bcrypt  bool
	Admin   bool
	Dynamic bool
}

type Users map[string]*User

// NewUsers indexes configured plus dynamically registered users.
// Dynamic users never shadow configured ones.
func NewUsers(configured []config.User, dynamic []config.User) (Users, error) {
	users := Users{}
	for _, us := range configured {
		if _, ok := users[us.Name]; ok {
			return nil, fmt.Errorf("user '%s' repeated", us.Name)
		}
		users[us.Name] = &User{
			Name:   us.Name,
			Secret: us.Secret,
			Bcrypt: us.Bcrypt,
			Admin:  us.Admin,
		}
	}
	for _, us := range dynamic {
		if _, ok := users[us.Name]; ok {
			continue
		}
		users[us.Name] = &User{
			Name:    us.Name,
			Secret:  us.Secret,
			Bcrypt:  us.Bcrypt,
			Dynamic: true,
		}
	}
	return users, nil
}

func checkSecret(user *User, password []byte) error {
	if user.Bcrypt {
		err := bcrypt.CompareHashAndPassword([]byte(user.Secret), password)
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrSecretMismatch
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(user.Secret), password) != 1 {
		return ErrSecretMismatch
	}
	return nil
}

func AuthUser(users Users, username, password string) (*User, error) {
	user, ok := users[username]
	if !ok {
		// burn a bcrypt verification so the caller cannot tell
		// unknown-user from wrong-password by timing
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrUserNotExists
	}
	if err := checkSecret(user, []byte(password)); err != nil {
		return nil, err
	}
	return user, nil
}

func HttpBasicAuth(users Users, req *http.Request) (*User, error) {
	if req.Header.Get("Authorization") == "" {
		return nil, ErrAuthHeaderNotExists
	}

	username, password, ok := req.BasicAuth()
	if !ok {
		return nil, ErrBadHttpAuthHeader
	}

	return AuthUser(users, username, password)
}
