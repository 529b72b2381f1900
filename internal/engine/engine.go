// Package engine drives one command invocation through the pipeline:
// classify, expand, resolve, conflict-check and execute, then aggregate the
// per-item outcomes into a single report.
package engine

import (
	"context"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/expand"
	"github.com/drobo-cli/drobo/internal/lister"
	"github.com/drobo-cli/drobo/internal/logging"
	"github.com/drobo-cli/drobo/internal/pathspec"
	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/store"
	"github.com/drobo-cli/drobo/internal/wildcard"
	"github.com/drobo-cli/drobo/internal/worker"
)

// Engine executes operations against a local and a remote store. It holds
// no state across invocations.
type Engine struct {
	local       store.Client
	remote      store.Client
	concurrency int
}

// New returns an Engine over the two stores.
func New(local, remote store.Client, concurrency int) *Engine {
	return &Engine{local: local, remote: remote, concurrency: concurrency}
}

func (e *Engine) fs(loc pathspec.Locality) store.Client {
	if loc == pathspec.Remote {
		return e.remote
	}
	return e.local
}

// Run executes a Copy, Move or Remove operation. Usage-time failures
// short-circuit with no items executed; per-item failures never abort
// sibling items.
func (e *Engine) Run(ctx context.Context, op *plan.Operation) *Report {
	log := logging.GetLogger("engine")
	if err := op.Validate(); err != nil {
		return &Report{Err: err}
	}
	log.Debug().Stringer("command", op.Kind).Int("sources", len(op.Sources)).Msg("running operation")

	switch op.Kind {
	case plan.Copy, plan.Move:
		return e.runTransfer(ctx, op)
	case plan.Remove:
		return e.runRemove(ctx, op)
	}
	return &Report{Err: errors.Errorf("%w: unsupported command", plan.ErrUsage)}
}

func (e *Engine) runTransfer(ctx context.Context, op *plan.Operation) *Report {
	srcFS := e.fs(op.SourceLocality())
	destFS := e.fs(op.Dest.Locality)
	sameStore := op.SourceLocality() == pathspec.Remote && op.Dest.Locality == pathspec.Remote

	exp := expand.New(e.local, e.remote)
	var sources []store.Entry
	var preFailed []preFailure
	for _, arg := range op.Sources {
		entries, err := exp.Expand(ctx, arg)
		switch {
		case err == nil:
			sources = append(sources, entries...)
		case errors.Is(err, store.ErrNotFound):
			// A missing source fails its own item, not the batch. The
			// failure slots in ahead of the next expanded source so the
			// report keeps argument order.
			preFailed = append(preFailed, preFailure{
				res: worker.Result{
					Item:   plan.Item{Source: store.Entry{Path: arg.Path, Name: arg.Base()}},
					Status: worker.Failed,
					Err:    err,
				},
				before: len(sources),
			})
		default:
			return &Report{Err: err}
		}
	}
	if len(sources) == 0 {
		if len(preFailed) > 0 {
			results := make([]worker.Result, len(preFailed))
			for i, pf := range preFailed {
				results[i] = pf.res
			}
			return &Report{Results: results}
		}
		return &Report{Err: errors.Errorf("%w: no files matched", plan.ErrUsage)}
	}

	pl, err := plan.Resolve(ctx, op, sources, destFS)
	if err != nil {
		return &Report{Err: err}
	}

	items, mkdirs, dirGroups, perSource, err := e.expandDirectories(ctx, op, pl, sameStore)
	if err != nil {
		return &Report{Err: err}
	}

	for _, dir := range mkdirs {
		if err := destFS.Mkdir(ctx, dir); err != nil {
			return &Report{Err: errors.Errorf("cannot create directory %q: %w", dir, err)}
		}
	}

	pool := worker.NewPool(srcFS, destFS, sameStore, e.concurrency)
	results := pool.Execute(ctx, op.Kind, items, op.Options)

	// A cross-store move of a directory transfers file by file; the source
	// directory itself goes away only once every one of its items landed.
	// An empty directory has no items to wait for and goes away once the
	// destination directory has been created.
	var extras []worker.Result
	if op.Kind == plan.Move && !sameStore {
		for _, g := range dirGroups {
			if allSucceeded(results, g.itemIdx) {
				if err := srcFS.Delete(ctx, g.path); err != nil {
					extras = append(extras, worker.Result{
						Item:   plan.Item{Source: store.Entry{Path: g.path, Name: filepath.Base(g.path), Kind: store.Dir}},
						Status: worker.Failed,
						Err:    errors.Errorf("moved contents but could not remove source directory: %w", err),
					})
				}
			}
		}
	}

	return &Report{Results: append(mergeResults(preFailed, results, perSource), extras...)}
}

// preFailure is a result produced before planning, tagged with the number of
// expanded sources that precede it.
type preFailure struct {
	res    worker.Result
	before int
}

// mergeResults splices pre-planning failures back into the pool results at
// their argument positions. perSource holds, for each expanded source, how
// many pool items it produced.
func mergeResults(pre []preFailure, results []worker.Result, perSource []int) []worker.Result {
	if len(pre) == 0 {
		return results
	}
	merged := make([]worker.Result, 0, len(pre)+len(results))
	pi, ri := 0, 0
	for si, n := range perSource {
		for pi < len(pre) && pre[pi].before <= si {
			merged = append(merged, pre[pi].res)
			pi++
		}
		merged = append(merged, results[ri:ri+n]...)
		ri += n
	}
	for ; pi < len(pre); pi++ {
		merged = append(merged, pre[pi].res)
	}
	return append(merged, results[ri:]...)
}

// dirGroup ties an expanded source directory to the indices of the items
// its subtree produced.
type dirGroup struct {
	path    string
	itemIdx []int
}

// expandDirectories turns directory sources into file-by-file items via a
// recursive walk. The destination for each source directory was already
// resolved; whether the tree nests under it or fills it directly was
// decided at resolve time, so the walk maps the subtree onto the resolved
// destination verbatim. A directory source without the recursive flag stays
// in the plan for Copy so its failure is reported per item; Move always
// recurses.
func (e *Engine) expandDirectories(ctx context.Context, op *plan.Operation, pl *plan.Plan, sameStore bool) ([]plan.Item, []string, []dirGroup, []int, error) {
	srcFS := e.fs(pl.SrcLoc)
	ls := lister.New(srcFS)

	var items []plan.Item
	var dirGroups []dirGroup
	perSource := make([]int, 0, len(pl.Items))
	mkdirs := pl.Mkdirs
	seen := make(map[string]bool, len(mkdirs))
	for _, d := range mkdirs {
		seen[d] = true
	}
	addMkdir := func(d string) {
		if !seen[d] {
			seen[d] = true
			mkdirs = append(mkdirs, d)
		}
	}

	for _, item := range pl.Items {
		start := len(items)
		switch {
		case !item.Source.IsDir():
			items = append(items, item)
		case op.Kind == plan.Copy && !op.Options.Recursive:
			items = append(items, item)
		case op.Kind == plan.Move && sameStore:
			// Same-store rename handles the whole subtree at once.
			items = append(items, item)
		default:
			group := dirGroup{path: item.Source.Path}
			addMkdir(item.Dest)
			srcPrefix := item.Source.Path + separator(pl.SrcLoc)
			err := ls.Walk(ctx, item.Source.Path, lister.Options{All: true, Recursive: true}, func(entry store.Entry) error {
				rel := strings.TrimPrefix(entry.Path, srcPrefix)
				if pl.SrcLoc == pathspec.Local {
					rel = filepath.ToSlash(rel)
				}
				dest := pathspec.JoinPath(pl.DestLoc, item.Dest, rel)
				if entry.IsDir() {
					addMkdir(dest)
					return nil
				}
				group.itemIdx = append(group.itemIdx, len(items))
				items = append(items, plan.Item{Source: entry, Dest: dest})
				return nil
			})
			if err != nil {
				return nil, nil, nil, nil, err
			}
			dirGroups = append(dirGroups, group)
		}
		perSource = append(perSource, len(items)-start)
	}
	return items, mkdirs, dirGroups, perSource, nil
}

func (e *Engine) runRemove(ctx context.Context, op *plan.Operation) *Report {
	exp := expand.New(e.local, e.remote)

	var items []plan.Item
	for _, arg := range op.Sources {
		if !wildcard.HasMeta(arg.Base()) {
			// Existence is checked at execution time so one missing
			// target cannot abort the batch.
			items = append(items, plan.Item{Source: store.Entry{Path: arg.Path, Name: arg.Base()}})
			continue
		}
		entries, err := exp.Expand(ctx, arg)
		if err != nil {
			return &Report{Err: errors.Errorf("cannot expand %q: %w", arg.Raw, err)}
		}
		for _, entry := range entries {
			items = append(items, plan.Item{Source: entry})
		}
	}
	if len(items) == 0 {
		if op.Options.Force {
			return &Report{}
		}
		return &Report{Err: errors.Errorf("%w: no files matched", plan.ErrUsage)}
	}

	pool := worker.NewPool(e.remote, e.remote, true, e.concurrency)
	return &Report{Results: pool.Execute(ctx, plan.Remove, items, op.Options)}
}

// Listed is one ls output row together with the directory it was listed
// under, which recursive output groups by.
type Listed struct {
	store.Entry
	Dir string
}

// List resolves the single ls target and returns the entries to display, in
// display order. A wildcard in the final component filters the parent
// directory's listing; a file target or -d yields the target itself.
func (e *Engine) List(ctx context.Context, op *plan.Operation) ([]Listed, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	arg := op.Sources[0]
	ls := lister.New(e.remote)
	lopts := lister.Options{
		All:       op.Options.All,
		Recursive: op.Options.Recursive,
		Reverse:   op.Options.Reverse,
		Sort:      op.Options.Sort,
	}

	if mask := arg.Base(); wildcard.HasMeta(mask) {
		dir := arg.Dir()
		entries, err := ls.List(ctx, dir, lopts)
		if err != nil {
			return nil, err
		}
		var out []Listed
		for _, entry := range entries {
			ok, err := wildcard.Match(mask, entry.Name)
			if err != nil {
				return nil, errors.Errorf("%w: bad pattern %q", plan.ErrUsage, arg.Raw)
			}
			if ok {
				out = append(out, Listed{Entry: entry, Dir: dir})
			}
		}
		return out, nil
	}

	target, err := e.remote.Stat(ctx, arg.Path)
	if err != nil {
		return nil, err
	}
	if !target.IsDir() || op.Options.DirOnly {
		return []Listed{{Entry: target, Dir: arg.Dir()}}, nil
	}

	if lopts.Recursive {
		var out []Listed
		err := ls.Walk(ctx, arg.Path, lopts, func(entry store.Entry) error {
			out = append(out, Listed{Entry: entry, Dir: parentOf(entry.Path)})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	entries, err := ls.List(ctx, arg.Path, lopts)
	if err != nil {
		return nil, err
	}
	out := make([]Listed, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Listed{Entry: entry, Dir: arg.Path})
	}
	return out, nil
}

func separator(loc pathspec.Locality) string {
	if loc == pathspec.Remote {
		return "/"
	}
	return string(filepath.Separator)
}

func parentOf(p string) string {
	if i := strings.LastIndex(p, "/"); i > 0 {
		return p[:i]
	}
	return "/"
}

// allSucceeded reports whether every indexed result succeeded. An empty
// index set counts as succeeded, so moving an empty directory still removes
// the source once the destination directory exists.
func allSucceeded(results []worker.Result, idx []int) bool {
	for _, i := range idx {
		if results[i].Status != worker.Success {
			return false
		}
	}
	return true
}
