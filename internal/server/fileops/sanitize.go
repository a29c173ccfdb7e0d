package fileops

import (
	"strings"

	"github.com/nh3bh3/cuthttp/internal/server/fserr"
)

const maxFilenameLen = 255

// SanitizeFilename reduces a client-supplied filename to its base name
// and rejects anything that could address outside the target
// directory. Returns the cleaned name.
func SanitizeFilename(name string) (string, error) {
	// browsers may send a full client-side path
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return "", fserr.New(fserr.KindBadRequest, "invalid filename")
	}
	if len(name) > maxFilenameLen {
		return "", fserr.New(fserr.KindBadRequest, "filename too long")
	}
	for _, r := range name {
		if r == 0 || r < 0x20 {
			return "", fserr.New(fserr.KindBadRequest, "invalid filename")
		}
	}
	return name, nil
}

// ValidatePlainName is the strict variant used by rename: separators
// are an error, not something to strip.
func ValidatePlainName(name string) (string, error) {
	if strings.ContainsAny(name, "/\\") {
		return "", fserr.New(fserr.KindBadRequest, "invalid filename")
	}
	return SanitizeFilename(name)
}
