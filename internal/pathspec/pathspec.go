// Package pathspec classifies command arguments as local or remote and
// normalizes them into absolute paths within their namespace.
//
// A remote path starts with the two-character marker "//" and addresses the
// remote store; everything else is a local filesystem path.
package pathspec

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Marker is the prefix that distinguishes remote paths from local ones.
const Marker = "//"

// Locality says which filesystem a path argument refers to.
type Locality int

const (
	Local Locality = iota
	Remote
)

func (l Locality) String() string {
	if l == Remote {
		return "remote"
	}
	return "local"
}

// Arg is a classified, normalized path argument.
type Arg struct {
	Raw      string
	Path     string // absolute within the locality's namespace
	Locality Locality
}

// IsRemote reports whether a raw argument addresses the remote store.
func IsRemote(raw string) bool {
	return strings.HasPrefix(raw, Marker)
}

// Classify labels a raw argument and normalizes its path.
//
// Remote paths are rooted at "/" with the "//" marker stripped; local paths
// are made absolute, with "~" expanded and an empty argument meaning the
// current directory.
func Classify(raw string) (Arg, error) {
	if IsRemote(raw) {
		return Arg{Raw: raw, Path: normalizeRemote(raw), Locality: Remote}, nil
	}
	p, err := normalizeLocal(raw)
	if err != nil {
		return Arg{}, err
	}
	return Arg{Raw: raw, Path: p, Locality: Local}, nil
}

// ClassifyAll classifies every argument in order.
func ClassifyAll(raws []string) ([]Arg, error) {
	args := make([]Arg, 0, len(raws))
	for _, raw := range raws {
		a, err := Classify(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

// SameLocality reports whether all arguments share one locality.
// An empty list is trivially consistent.
func SameLocality(args []Arg) bool {
	if len(args) == 0 {
		return true
	}
	for _, a := range args[1:] {
		if a.Locality != args[0].Locality {
			return false
		}
	}
	return true
}

// normalizeRemote turns "//a//b/" into "/a/b". The bare marker is the root "/".
func normalizeRemote(raw string) string {
	p := strings.TrimPrefix(raw, Marker)
	p = "/" + strings.TrimLeft(p, "/")
	return path.Clean(p)
}

func normalizeLocal(raw string) (string, error) {
	if raw == "" {
		raw = "."
	}
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Errorf("expand %q: %w", raw, err)
		}
		raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", errors.Errorf("resolve %q: %w", raw, err)
	}
	return abs, nil
}

// Base returns the final path component.
func (a Arg) Base() string {
	if a.Locality == Remote {
		return path.Base(a.Path)
	}
	return filepath.Base(a.Path)
}

// Dir returns the parent of the argument's path.
func (a Arg) Dir() string {
	if a.Locality == Remote {
		return path.Dir(a.Path)
	}
	return filepath.Dir(a.Path)
}

// Join appends name to the argument's path with the locality's separator.
func (a Arg) Join(name string) string {
	return JoinPath(a.Locality, a.Path, name)
}

// JoinPath joins path elements using the locality's separator rules.
func JoinPath(loc Locality, elem ...string) string {
	if loc == Remote {
		return path.Join(elem...)
	}
	return filepath.Join(elem...)
}

// TrailingSeparator reports whether the user wrote the argument with a
// trailing separator, which forces directory semantics for destinations.
// The bare remote root "//" does not count.
func (a Arg) TrailingSeparator() bool {
	if a.Raw == Marker {
		return false
	}
	return strings.HasSuffix(a.Raw, "/") || (a.Locality == Local && strings.HasSuffix(a.Raw, string(filepath.Separator)))
}

// Display renders a normalized path back in user-facing form, restoring the
// "//" marker for remote paths.
func Display(loc Locality, p string) string {
	if loc == Remote {
		return Marker + strings.TrimPrefix(p, "/")
	}
	return p
}
