// Package plan turns a parsed command invocation into the ordered list of
// (source, destination) pairs the engine will execute, and decides per-pair
// conflict outcomes.
package plan

import (
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/lister"
	"github.com/drobo-cli/drobo/internal/pathspec"
)

// Kind is the command being run.
type Kind int

const (
	List Kind = iota
	Copy
	Move
	Remove
)

func (k Kind) String() string {
	switch k {
	case List:
		return "ls"
	case Copy:
		return "cp"
	case Move:
		return "mv"
	default:
		return "rm"
	}
}

// Usage errors abort the whole invocation before any I/O and map to exit
// code 2. MixedLocality and UnsupportedTransfer wrap ErrUsage so a single
// errors.Is covers all three.
var (
	ErrUsage               = errors.New("usage error")
	ErrMixedLocality       = errors.Errorf("%w: cannot mix remote and local source files", ErrUsage)
	ErrUnsupportedTransfer = errors.Errorf("%w: local to local transfers are not supported, use the native tool", ErrUsage)
)

// Options are the recognized flags. TargetDir and TreatAsFile correspond to
// -t and -T; the ls fields only matter for List.
type Options struct {
	Recursive   bool
	TargetDir   bool // destination came from -t and is always a directory
	TreatAsFile bool // -T: destination is a file path, never a directory
	Force       bool
	Update      bool

	All     bool
	DirOnly bool
	Long    bool
	Reverse bool
	Sort    lister.SortBy
}

// Operation is one parsed command invocation.
type Operation struct {
	Kind    Kind
	Sources []pathspec.Arg
	Dest    *pathspec.Arg // nil for List and Remove
	Options Options
}

// Validate enforces the usage-time rules: arity, flag exclusivity and the
// locality invariants. It performs no I/O.
func (op *Operation) Validate() error {
	if len(op.Sources) == 0 {
		return errors.Errorf("%w: missing file operand", ErrUsage)
	}
	if op.Options.TargetDir && op.Options.TreatAsFile {
		return errors.Errorf("%w: cannot combine -t and -T", ErrUsage)
	}
	if !pathspec.SameLocality(op.Sources) {
		return ErrMixedLocality
	}

	switch op.Kind {
	case Copy, Move:
		if op.Dest == nil {
			return errors.Errorf("%w: missing destination operand", ErrUsage)
		}
		if op.Options.TreatAsFile && len(op.Sources) != 1 {
			return errors.Errorf("%w: -T requires exactly one source and one destination", ErrUsage)
		}
		if op.Sources[0].Locality == pathspec.Local && op.Dest.Locality == pathspec.Local {
			return ErrUnsupportedTransfer
		}
	case Remove:
		for _, src := range op.Sources {
			if src.Locality != pathspec.Remote {
				return errors.Errorf("%w: cannot remove %q: only remote files can be removed", ErrUsage, src.Raw)
			}
		}
	case List:
		if op.Sources[0].Locality != pathspec.Remote {
			return errors.Errorf("%w: ls requires a remote path, use the native ls for local paths", ErrUsage)
		}
	}
	return nil
}

// SourceLocality returns the shared locality of the source list.
func (op *Operation) SourceLocality() pathspec.Locality {
	return op.Sources[0].Locality
}
