package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CleanPath normalizes a store path. It rejects empty, absolute and
// parent-escaping paths so no backend can be steered outside its root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("storage: absolute path %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: path %q escapes the store root", p)
	}
	return cleaned, nil
}

// ValidatePattern reports whether pattern is a well-formed doublestar glob.
func ValidatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("storage: invalid glob pattern %q", pattern)
	}
	return nil
}

// Match reports whether name matches the doublestar pattern.
func Match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// StaticPrefix returns the literal directory prefix of pattern ("memory/"
// for "memory/*/user_memory.json"). Backends that list by key prefix use it
// to narrow the scan before glob filtering.
func StaticPrefix(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	if base == "." {
		return ""
	}
	return base + "/"
}

// FilterSorted returns the names matching pattern in lexical order.
func FilterSorted(pattern string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if Match(pattern, n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
