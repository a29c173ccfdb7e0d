package ipfilter

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nh3bh3/cuthttp/internal/server/config"
)

func mustFilter(t *testing.T, c config.IPFilter) *Filter {
	t.Helper()
	f, err := New(c)
	require.NoError(t, err)
	return f
}

func TestParsePrefixes(t *testing.T) {
	ps, err := ParsePrefixes([]string{"10.0.0.0/8", "192.168.1.5", "2001:db8::/32", "::1", "*"})
	require.NoError(t, err)
	require.Len(t, ps, 6) // "*" expands to both families

	_, err = ParsePrefixes([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = ParsePrefixes([]string{"banana"})
	require.Error(t, err)
}

func TestEmptyAllowMeansAll(t *testing.T) {
	f := mustFilter(t, config.IPFilter{})

	require.True(t, f.Check(netip.MustParseAddr("203.0.113.7")))
	require.True(t, f.Check(netip.MustParseAddr("2001:db8::1")))
}

func TestAllowAndDeny(t *testing.T) {
	f := mustFilter(t, config.IPFilter{
		Allow: []string{"10.0.0.0/8"},
		Deny:  []string{"10.1.0.0/16"},
	})

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.2.3.4", true},
		{"10.1.0.1", false}, // denied subnet inside allowed one
		{"10.1.255.255", false},
		{"192.168.0.1", false}, // outside allow list
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, f.Check(netip.MustParseAddr(tt.ip)), "ip %s", tt.ip)
	}
}

func TestDenyOnly(t *testing.T) {
	f := mustFilter(t, config.IPFilter{Deny: []string{"192.0.2.0/24"}})

	require.False(t, f.Check(netip.MustParseAddr("192.0.2.9")))
	require.True(t, f.Check(netip.MustParseAddr("198.51.100.9")))
}

func TestSingleAddressEntries(t *testing.T) {
	f := mustFilter(t, config.IPFilter{Allow: []string{"192.168.1.5", "::1"}})

	require.True(t, f.Check(netip.MustParseAddr("192.168.1.5")))
	require.False(t, f.Check(netip.MustParseAddr("192.168.1.6")))
	require.True(t, f.Check(netip.MustParseAddr("::1")))
}

func TestMappedV4(t *testing.T) {
	f := mustFilter(t, config.IPFilter{Allow: []string{"10.0.0.0/8"}})

	require.True(t, f.Check(netip.MustParseAddr("::ffff:10.0.0.1")))
	require.False(t, f.Check(netip.MustParseAddr("::ffff:11.0.0.1")))
}

func TestInvalidAddr(t *testing.T) {
	f := mustFilter(t, config.IPFilter{})
	require.False(t, f.Check(netip.Addr{}))
}
