package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o666))
	return path
}

const validDoc = `
[listener]
address = ":8080"
network = "tcp"

[logging]
level = "debug"

[[shares]]
name = "docs"
path = "/tmp"
quota = "10 MiB"

[[users]]
name = "alice"
secret = "password"

[[rules]]
who = "alice"
allow = ["R", "W"]
roots = ["docs"]
paths = ["/"]
ipallow = ["10.0.0.0/8"]

[ratelimit]
rps = 10
burst = 20
maxconcurrent = 4
`

func TestDecode(t *testing.T) {
	config := Default
	path := writeConfig(t, validDoc)

	require.NoError(t, Decode(&config, path))
	require.Equal(t, ":8080", config.Listener.Address)
	require.Equal(t, "debug", config.Logging.Level)
	require.Len(t, config.Shares, 1)
	require.Equal(t, "10 MiB", config.Shares[0].Quota)
	require.Len(t, config.Rules, 1)
	require.Equal(t, 10, config.RateLimit.Rps)
	require.True(t, filepath.IsAbs(config.FilePath()))

	// defaults survive where the document is silent
	require.Equal(t, Default.Dav.MountPath, config.Dav.MountPath)
	require.Equal(t, Default.HotReload.DebounceMs, config.HotReload.DebounceMs)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	config := Default
	path := writeConfig(t, validDoc+"\nsurprise = true\n")
	require.Error(t, Decode(&config, path))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Server)
	}{
		{"bad log level", func(c *Server) { c.Logging.Level = "loud" }},
		{"share name with slash", func(c *Server) { c.Shares = []Share{{Name: "a/b", Path: "/tmp"}} }},
		{"bad quota", func(c *Server) { c.Shares = []Share{{Name: "a", Path: "/tmp", Quota: "much"}} }},
		{"duplicate share", func(c *Server) {
			c.Shares = []Share{{Name: "a", Path: "/tmp"}, {Name: "a", Path: "/tmp"}}
		}},
		{"duplicate user", func(c *Server) {
			c.Users = []User{{Name: "u", Secret: "x"}, {Name: "u", Secret: "y"}}
		}},
		{"rule with unknown op", func(c *Server) {
			c.Rules = []Rule{{Who: "*", Allow: []string{"Z"}, Roots: []string{"*"}}}
		}},
		{"rule for unknown user", func(c *Server) {
			c.Rules = []Rule{{Who: "ghost", Allow: []string{"R"}, Roots: []string{"*"}}}
		}},
		{"rule for unknown share", func(c *Server) {
			c.Rules = []Rule{{Who: "*", Allow: []string{"R"}, Roots: []string{"ghost"}}}
		}},
		{"negative rps", func(c *Server) { c.RateLimit.Rps = -1 }},
		{"tls without cert", func(c *Server) { c.Listener.TLS.Enable = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default
			tt.mutate(&config)
			require.Error(t, Validate(&config))
		})
	}
}

func TestValidateDefault(t *testing.T) {
	config := Default
	require.NoError(t, Validate(&config))
}

func TestReDecode(t *testing.T) {
	config := Default
	path := writeConfig(t, validDoc)
	require.NoError(t, Decode(&config, path))

	require.NoError(t, os.WriteFile(path, []byte(validDoc+"\n[ui]\nbrand = \"updated\"\n"), 0o666))

	fresh := Default
	require.NoError(t, ReDecode(&fresh, &config))
	require.Equal(t, "updated", fresh.UI.Brand)

	// the built-in default config has no file to re-read
	fresh = Default
	def := Default
	require.ErrorIs(t, ReDecode(&fresh, &def), ErrReDecodeDefaultConfig)
}
