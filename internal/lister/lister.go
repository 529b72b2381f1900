// Package lister produces sorted, optionally recursive directory listings.
// Every call re-queries the underlying store; nothing is cached between
// calls, so entries may differ from one listing to the next.
package lister

import (
	"context"
	"sort"
	"strings"

	"github.com/drobo-cli/drobo/internal/store"
)

// SortBy selects the listing order.
type SortBy int

const (
	ByName SortBy = iota // lexical ascending
	BySize               // largest first
	ByTime               // newest first
)

// Options mirror the ls flags that affect which entries appear and in what
// order. Formatting is the caller's concern.
type Options struct {
	All       bool // include names starting with a dot
	Recursive bool
	Reverse   bool
	Sort      SortBy
}

// Lister lists directories of one store.
type Lister struct {
	fs store.Client
}

// New returns a Lister over fs.
func New(fs store.Client) *Lister {
	return &Lister{fs: fs}
}

// List returns one directory level, filtered and sorted per opts.
func (l *Lister) List(ctx context.Context, dir string, opts Options) ([]store.Entry, error) {
	entries, err := l.fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	entries = filterHidden(entries, opts.All)
	sortEntries(entries, opts)
	return entries, nil
}

// Walk visits dir's entries in depth-first pre-order, applying the same sort
// order at every level. The walk stops at the first error from fn.
func (l *Lister) Walk(ctx context.Context, dir string, opts Options, fn func(store.Entry) error) error {
	entries, err := l.List(ctx, dir, opts)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
		if e.IsDir() && opts.Recursive {
			if err := l.Walk(ctx, e.Path, opts, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func filterHidden(entries []store.Entry, all bool) []store.Entry {
	if all {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, ".") {
			out = append(out, e)
		}
	}
	return out
}

// sortEntries orders entries per opts. Size and time orderings are
// descending with name-ascending tie-breaks; Reverse inverts the final
// order, tie-breaks included.
func sortEntries(entries []store.Entry, opts Options) {
	var less func(a, b store.Entry) bool
	switch opts.Sort {
	case BySize:
		less = func(a, b store.Entry) bool {
			if a.Size != b.Size {
				return a.Size > b.Size
			}
			return a.Name < b.Name
		}
	case ByTime:
		less = func(a, b store.Entry) bool {
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.After(b.ModTime)
			}
			return a.Name < b.Name
		}
	default:
		less = func(a, b store.Entry) bool { return a.Name < b.Name }
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if opts.Reverse {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}
