package engine

import (
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/worker"
)

// Report aggregates one invocation's outcomes: either a pipeline-level
// error that prevented planning, or one result per planned item in planned
// order.
type Report struct {
	Results []worker.Result
	Err     error
}

// ExitCode derives the process exit status: 0 when every item succeeded or
// was intentionally skipped, 1 when any item failed, 2 for a usage error
// that prevented planning.
func (r *Report) ExitCode() int {
	if r.Err != nil {
		if errors.Is(r.Err, plan.ErrUsage) {
			return 2
		}
		return 1
	}
	for _, res := range r.Results {
		if res.Status == worker.Failed {
			return 1
		}
	}
	return 0
}

// Counts tallies results by status.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case worker.Success:
			succeeded++
		case worker.Skipped:
			skipped++
		default:
			failed++
		}
	}
	return succeeded, skipped, failed
}
