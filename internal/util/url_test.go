package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsUrlValid(t *testing.T) {
	valid := []string{"/", "/a", "/a/b.txt", "/a..b", "/..a/"}
	for _, v := range valid {
		require.True(t, IsUrlValid(v), "path %q", v)
	}

	invalid := []string{"", "a/b", "/a/../b", "/a/..", "/a\x00b"}
	for _, v := range invalid {
		require.False(t, IsUrlValid(v), "path %q", v)
	}
}
