// Package worker executes a resolved plan against the source and
// destination stores with bounded concurrency. Results come back in planned
// order regardless of completion order, so reporting and exit-status
// derivation are deterministic.
package worker

import (
	"context"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/drobo-cli/drobo/internal/logging"
	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/store"
)

const defaultConcurrency = 8

// Status is the outcome of one planned item.
type Status int

const (
	Success Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome of one planned pair.
type Result struct {
	Item   plan.Item
	Status Status
	Err    error
	Bytes  int64
}

// Pool runs plan items concurrently. Items never abort their siblings; each
// failure is captured in its own Result.
type Pool struct {
	srcFS       store.Client
	destFS      store.Client
	sameStore   bool
	concurrency int
}

// NewPool returns a pool transferring from srcFS to destFS. sameStore marks
// the two as the same backing store, enabling server-side copy and rename.
func NewPool(srcFS, destFS store.Client, sameStore bool, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Pool{srcFS: srcFS, destFS: destFS, sameStore: sameStore, concurrency: concurrency}
}

// Execute runs every item and returns one Result per item, in item order.
// A canceled context stops dispatching new items; items already running
// finish or fail on their own.
func (p *Pool) Execute(ctx context.Context, kind plan.Kind, items []plan.Item, opts plan.Options) []Result {
	log := logging.GetLogger("worker")
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Item: item, Status: Failed, Err: err}
				return nil
			}
			results[i] = p.executeItem(ctx, kind, item, opts)
			if r := results[i]; r.Err != nil {
				log.Debug().Str("source", item.Source.Path).Str("dest", item.Dest).Err(r.Err).Msg("item failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) executeItem(ctx context.Context, kind plan.Kind, item plan.Item, opts plan.Options) Result {
	switch kind {
	case plan.Copy:
		return p.copyItem(ctx, item, opts)
	case plan.Move:
		return p.moveItem(ctx, item, opts)
	case plan.Remove:
		return p.removeItem(ctx, item, opts)
	}
	return Result{Item: item}
}

func (p *Pool) copyItem(ctx context.Context, item plan.Item, opts plan.Options) Result {
	if item.Source.IsDir() {
		return Result{Item: item, Status: Failed,
			Err: errors.Errorf("%q: %w (use -r for recursive copy)", item.Source.Path, store.ErrIsDirectory)}
	}
	switch decision, err := plan.CheckConflict(ctx, p.destFS, item.Source, item.Dest, opts); decision {
	case plan.Skip:
		return Result{Item: item, Status: Skipped}
	case plan.Fail:
		return Result{Item: item, Status: Failed, Err: err}
	}
	n, err := p.transfer(ctx, item)
	if err != nil {
		return Result{Item: item, Status: Failed, Err: err}
	}
	return Result{Item: item, Status: Success, Bytes: n}
}

func (p *Pool) moveItem(ctx context.Context, item plan.Item, opts plan.Options) Result {
	switch decision, err := plan.CheckConflict(ctx, p.destFS, item.Source, item.Dest, opts); decision {
	case plan.Skip:
		return Result{Item: item, Status: Skipped}
	case plan.Fail:
		return Result{Item: item, Status: Failed, Err: err}
	}

	if p.sameStore {
		if err := p.destFS.Move(ctx, item.Source.Path, item.Dest); err != nil {
			return Result{Item: item, Status: Failed, Err: err}
		}
		return Result{Item: item, Status: Success, Bytes: item.Source.Size}
	}

	// No rename across stores: copy, then delete the source only once the
	// destination write is confirmed. A failed copy leaves the source
	// untouched.
	n, err := p.transfer(ctx, item)
	if err != nil {
		return Result{Item: item, Status: Failed, Err: err}
	}
	if err := p.srcFS.Delete(ctx, item.Source.Path); err != nil {
		return Result{Item: item, Status: Failed, Err: errors.Errorf("copied but could not remove source: %w", err)}
	}
	return Result{Item: item, Status: Success, Bytes: n}
}

func (p *Pool) removeItem(ctx context.Context, item plan.Item, opts plan.Options) Result {
	entry, err := p.srcFS.Stat(ctx, item.Source.Path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && opts.Force {
			return Result{Item: item, Status: Skipped}
		}
		return Result{Item: item, Status: Failed, Err: err}
	}
	if entry.IsDir() && !opts.Recursive {
		return Result{Item: item, Status: Failed,
			Err: errors.Errorf("%q: %w (use -r for recursive removal)", item.Source.Path, store.ErrIsDirectory)}
	}
	if err := p.srcFS.Delete(ctx, item.Source.Path); err != nil {
		if errors.Is(err, store.ErrNotFound) && opts.Force {
			return Result{Item: item, Status: Skipped}
		}
		return Result{Item: item, Status: Failed, Err: err}
	}
	return Result{Item: item, Status: Success}
}

// transfer copies one file's bytes from source to destination, server-side
// when both ends are the same store.
func (p *Pool) transfer(ctx context.Context, item plan.Item) (int64, error) {
	if p.sameStore {
		if err := p.destFS.Copy(ctx, item.Source.Path, item.Dest); err != nil {
			return 0, err
		}
		return item.Source.Size, nil
	}
	rc, err := p.srcFS.Read(ctx, item.Source.Path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return p.destFS.Write(ctx, item.Dest, rc)
}
