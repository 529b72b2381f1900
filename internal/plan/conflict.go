package plan

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/store"
)

// Decision is the conflict-policy verdict for one planned pair.
type Decision int

const (
	Proceed Decision = iota
	Skip
	Fail
)

// CheckConflict decides whether a planned pair may run. A missing
// destination always proceeds. With -u the pair proceeds only when the
// source is strictly newer, otherwise it is skipped. With -f an existing
// destination is overwritten. Without either, an existing destination fails
// the item with a conflict error; the rest of the batch keeps going.
func CheckConflict(ctx context.Context, destFS store.Client, src store.Entry, dest string, opts Options) (Decision, error) {
	destEntry, err := destFS.Stat(ctx, dest)
	if errors.Is(err, store.ErrNotFound) {
		return Proceed, nil
	}
	if err != nil {
		return Fail, err
	}

	switch {
	case opts.Update:
		if src.ModTime.After(destEntry.ModTime) {
			return Proceed, nil
		}
		return Skip, nil
	case opts.Force:
		return Proceed, nil
	}
	return Fail, errors.Errorf("cannot overwrite %q: %w", dest, store.ErrConflict)
}
