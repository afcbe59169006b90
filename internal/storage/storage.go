package storage

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidObjectPath is returned for empty, absolute or parent-escaping object paths
var ErrInvalidObjectPath = errors.New("invalid object path")

// CleanObjectPath normalizes a slash-separated object path and rejects ones that
// would escape the bucket root.
func CleanObjectPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidObjectPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidObjectPath
	}
	return cleaned, nil
}
