// Package wildcard matches file names against shell glob patterns.
//
// Patterns support *, ? and [seq] / [!seq] character classes. Matching is
// case-sensitive and * never crosses a path separator. A name with a leading
// dot is only matched when the pattern itself starts with a dot, mirroring
// shell globbing of hidden files.
package wildcard

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// HasMeta reports whether s contains glob metacharacters.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Match tests one name against a glob pattern.
func Match(pattern, name string) (bool, error) {
	if strings.HasPrefix(name, ".") && !strings.HasPrefix(pattern, ".") {
		return false, nil
	}
	return doublestar.Match(pattern, name)
}

// Filter returns the names matching pattern, preserving input order.
func Filter(names []string, pattern string) ([]string, error) {
	var out []string
	for _, name := range names {
		ok, err := Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}
