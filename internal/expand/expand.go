// Package expand resolves path arguments into concrete file entries,
// expanding glob patterns against a directory listing of the appropriate
// filesystem. Expansion is read-only.
package expand

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/pathspec"
	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/store"
	"github.com/drobo-cli/drobo/internal/wildcard"
)

// Expander expands arguments against either filesystem.
type Expander struct {
	local  store.Client
	remote store.Client
}

// New returns an Expander over the two filesystems.
func New(local, remote store.Client) *Expander {
	return &Expander{local: local, remote: remote}
}

func (e *Expander) client(loc pathspec.Locality) store.Client {
	if loc == pathspec.Remote {
		return e.remote
	}
	return e.local
}

// Expand resolves one argument into zero or more entries. A non-glob
// argument resolves to exactly one entry via a direct lookup; a glob in the
// final path component is matched against the parent directory's listing,
// in lexical name order. A glob with no matches yields an empty result, not
// an error.
func (e *Expander) Expand(ctx context.Context, arg pathspec.Arg) ([]store.Entry, error) {
	fs := e.client(arg.Locality)

	pattern := arg.Base()
	if !wildcard.HasMeta(pattern) {
		entry, err := fs.Stat(ctx, arg.Path)
		if err != nil {
			return nil, err
		}
		return []store.Entry{entry}, nil
	}

	dir := arg.Dir()
	if wildcard.HasMeta(dir) {
		return nil, errors.Errorf("%w: wildcards are only supported in the last path component: %q", plan.ErrUsage, arg.Raw)
	}

	entries, err := fs.List(ctx, dir)
	if err != nil {
		return nil, errors.Errorf("cannot expand %q: %w", arg.Raw, err)
	}
	var matched []store.Entry
	for _, entry := range entries {
		ok, err := wildcard.Match(pattern, entry.Name)
		if err != nil {
			return nil, errors.Errorf("%w: bad pattern %q", plan.ErrUsage, arg.Raw)
		}
		if ok {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}
