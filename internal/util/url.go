package util

import "strings"

// IsUrlValid rejects URL paths that are empty, relative, or carry
// unresolved parent references.
func IsUrlValid(v string) bool {
	if len(v) == 0 ||
		v[0] != '/' ||
		strings.Contains(v, "/../") ||
		strings.HasSuffix(v, "/..") ||
		strings.ContainsRune(v, '\x00') {
		return false
	}
	return true
}
