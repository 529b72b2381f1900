package plan

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/pathspec"
	"github.com/drobo-cli/drobo/internal/store"
)

// Item is one planned (source, destination) pair.
type Item struct {
	Source store.Entry
	Dest   string
}

// Plan is the fully resolved execution plan for one invocation: the ordered
// items plus the destination directories that must exist before any item
// runs.
type Plan struct {
	Items   []Item
	Mkdirs  []string
	SrcLoc  pathspec.Locality
	DestLoc pathspec.Locality
}

// Resolve maps each expanded source onto exactly one destination path,
// following the cp/mv destination decision table: an explicit target
// directory (-t) or target file (-T) wins, then directory semantics from a
// trailing separator or an existing directory, then the single-source
// verbatim case. Multiple sources with a non-directory destination is a
// usage error.
func Resolve(ctx context.Context, op *Operation, sources []store.Entry, destFS store.Client) (*Plan, error) {
	dest := op.Dest
	p := &Plan{SrcLoc: op.SourceLocality(), DestLoc: dest.Locality}

	destEntry, statErr := destFS.Stat(ctx, dest.Path)
	destExists := statErr == nil
	if statErr != nil && !errors.Is(statErr, store.ErrNotFound) {
		return nil, statErr
	}
	destIsDir := destExists && destEntry.IsDir()

	switch {
	case op.Options.TargetDir:
		if destExists && !destIsDir {
			return nil, errors.Errorf("%w: target %q is not a directory", ErrUsage, dest.Raw)
		}
		if !destExists {
			p.Mkdirs = append(p.Mkdirs, dest.Path)
		}
		for _, src := range sources {
			p.Items = append(p.Items, Item{Source: src, Dest: dest.Join(src.Name)})
		}

	case op.Options.TreatAsFile:
		// Arity was checked on the raw arguments; a glob may still have
		// expanded to several entries.
		if len(sources) != 1 {
			return nil, errors.Errorf("%w: -T requires exactly one source, %d matched", ErrUsage, len(sources))
		}
		p.Items = append(p.Items, Item{Source: sources[0], Dest: dest.Path})

	case dest.TrailingSeparator() || destIsDir:
		if destExists && !destIsDir {
			return nil, errors.Errorf("%w: target %q is not a directory", ErrUsage, dest.Raw)
		}
		if !destExists {
			p.Mkdirs = append(p.Mkdirs, dest.Path)
		}
		for _, src := range sources {
			p.Items = append(p.Items, Item{Source: src, Dest: dest.Join(src.Name)})
		}

	case len(sources) == 1:
		p.Items = append(p.Items, Item{Source: sources[0], Dest: dest.Path})

	default:
		return nil, errors.Errorf("%w: destination %q must be a directory when copying multiple sources", ErrUsage, dest.Raw)
	}

	return p, nil
}
