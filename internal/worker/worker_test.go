package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/store"
)

func file(p string, size int, mod time.Time) store.Entry {
	return store.Entry{Path: p, Name: p[len("/src/"):], Kind: store.File, Size: int64(size), ModTime: mod}
}

func TestExecuteResultsInPlannedOrder(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()
	src := store.NewMem()
	dst := store.NewMem()

	var items []plan.Item
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("/src/f%02d.txt", i)
		src.AddFile(p, []byte("data"), mod)
		items = append(items, plan.Item{
			Source: store.Entry{Path: p, Name: fmt.Sprintf("f%02d.txt", i), Kind: store.File, Size: 4, ModTime: mod},
			Dest:   fmt.Sprintf("/dst/f%02d.txt", i),
		})
	}

	pool := NewPool(src, dst, false, 4)
	results := pool.Execute(ctx, plan.Copy, items, plan.Options{})
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Item.Source.Path != items[i].Source.Path {
			t.Errorf("result %d is for %q, want %q", i, res.Item.Source.Path, items[i].Source.Path)
		}
		if res.Status != Success {
			t.Errorf("result %d status = %v: %v", i, res.Status, res.Err)
		}
	}
}

func TestCopyDirectoryWithoutRecursiveFails(t *testing.T) {
	ctx := context.Background()
	src := store.NewMem()
	src.AddDir("/src/photos")
	dst := store.NewMem()

	item := plan.Item{
		Source: store.Entry{Path: "/src/photos", Name: "photos", Kind: store.Dir},
		Dest:   "/dst/photos",
	}
	results := NewPool(src, dst, false, 1).Execute(ctx, plan.Copy, []plan.Item{item}, plan.Options{})
	if results[0].Status != Failed {
		t.Fatalf("status = %v, want Failed", results[0].Status)
	}
	if !errors.Is(results[0].Err, store.ErrIsDirectory) {
		t.Errorf("err = %v, want ErrIsDirectory", results[0].Err)
	}
}

func TestCopyConflictFailsItemNotBatch(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()
	src := store.NewMem()
	src.AddFile("/src/a.txt", []byte("a"), mod)
	src.AddFile("/src/b.txt", []byte("b"), mod)
	dst := store.NewMem()
	dst.AddFile("/dst/a.txt", []byte("old"), mod)

	items := []plan.Item{
		{Source: file("/src/a.txt", 1, mod), Dest: "/dst/a.txt"},
		{Source: file("/src/b.txt", 1, mod), Dest: "/dst/b.txt"},
	}
	results := NewPool(src, dst, false, 2).Execute(ctx, plan.Copy, items, plan.Options{})

	if results[0].Status != Failed || !errors.Is(results[0].Err, store.ErrConflict) {
		t.Errorf("conflicting item = %v (%v), want Failed with ErrConflict", results[0].Status, results[0].Err)
	}
	if results[1].Status != Success {
		t.Errorf("sibling item = %v (%v), want Success", results[1].Status, results[1].Err)
	}
	if _, ok := dst.Snapshot()["/dst/b.txt"]; !ok {
		t.Error("sibling item was not written")
	}
}

func TestMoveCrossStoreDeletesSourceAfterWrite(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()
	src := store.NewMem()
	src.AddFile("/src/a.txt", []byte("payload"), mod)
	dst := store.NewMem()

	item := plan.Item{Source: file("/src/a.txt", 7, mod), Dest: "/dst/a.txt"}
	results := NewPool(src, dst, false, 1).Execute(ctx, plan.Move, []plan.Item{item}, plan.Options{})
	if results[0].Status != Success {
		t.Fatalf("move failed: %v", results[0].Err)
	}
	if got := dst.Snapshot()["/dst/a.txt"]; got != "payload" {
		t.Errorf("dest contents = %q", got)
	}
	if len(src.Snapshot()) != 0 {
		t.Errorf("source still holds %v", src.Snapshot())
	}
}

func TestMoveCrossStoreKeepsSourceOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()
	src := store.NewMem()
	src.AddFile("/src/a.txt", []byte("payload"), mod)
	dst := store.NewMem()
	dst.Hook = func(op, path string) error {
		if op == "write" {
			return errors.New("disk full")
		}
		return nil
	}

	item := plan.Item{Source: file("/src/a.txt", 7, mod), Dest: "/dst/a.txt"}
	results := NewPool(src, dst, false, 1).Execute(ctx, plan.Move, []plan.Item{item}, plan.Options{})
	if results[0].Status != Failed {
		t.Fatalf("status = %v, want Failed", results[0].Status)
	}
	if _, ok := src.Snapshot()["/src/a.txt"]; !ok {
		t.Error("source removed despite failed write")
	}
}

func TestMoveSameStoreRenames(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()
	fs := store.NewMem()
	fs.AddFile("/a.txt", []byte("x"), mod)

	item := plan.Item{
		Source: store.Entry{Path: "/a.txt", Name: "a.txt", Kind: store.File, Size: 1, ModTime: mod},
		Dest:   "/b.txt",
	}
	results := NewPool(fs, fs, true, 1).Execute(ctx, plan.Move, []plan.Item{item}, plan.Options{})
	if results[0].Status != Success {
		t.Fatalf("move failed: %v", results[0].Err)
	}
	snap := fs.Snapshot()
	if _, ok := snap["/b.txt"]; !ok {
		t.Error("dest missing after rename")
	}
	if _, ok := snap["/a.txt"]; ok {
		t.Error("source present after rename")
	}
}

func TestRemoveMissingWithForceSkips(t *testing.T) {
	ctx := context.Background()
	fs := store.NewMem()

	item := plan.Item{Source: store.Entry{Path: "/gone.txt", Name: "gone.txt"}}
	results := NewPool(fs, fs, true, 1).Execute(ctx, plan.Remove, []plan.Item{item}, plan.Options{Force: true})
	if results[0].Status != Skipped {
		t.Errorf("status = %v (%v), want Skipped", results[0].Status, results[0].Err)
	}

	results = NewPool(fs, fs, true, 1).Execute(ctx, plan.Remove, []plan.Item{item}, plan.Options{})
	if results[0].Status != Failed || !errors.Is(results[0].Err, store.ErrNotFound) {
		t.Errorf("status = %v (%v), want Failed with ErrNotFound", results[0].Status, results[0].Err)
	}
}

func TestRemoveDirectoryNeedsRecursive(t *testing.T) {
	ctx := context.Background()
	fs := store.NewMem()
	fs.AddFile("/d/a.txt", []byte("a"), time.Now())

	item := plan.Item{Source: store.Entry{Path: "/d", Name: "d"}}
	results := NewPool(fs, fs, true, 1).Execute(ctx, plan.Remove, []plan.Item{item}, plan.Options{})
	if results[0].Status != Failed || !errors.Is(results[0].Err, store.ErrIsDirectory) {
		t.Fatalf("status = %v (%v), want Failed with ErrIsDirectory", results[0].Status, results[0].Err)
	}

	results = NewPool(fs, fs, true, 1).Execute(ctx, plan.Remove, []plan.Item{item}, plan.Options{Recursive: true})
	if results[0].Status != Success {
		t.Fatalf("recursive remove failed: %v", results[0].Err)
	}
	if len(fs.Snapshot()) != 0 {
		t.Errorf("files remain: %v", fs.Snapshot())
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := store.NewMem()
	fs.AddFile("/a.txt", []byte("x"), time.Now())
	item := plan.Item{
		Source: store.Entry{Path: "/a.txt", Name: "a.txt", Kind: store.File, Size: 1},
		Dest:   "/b.txt",
	}
	results := NewPool(fs, fs, true, 1).Execute(ctx, plan.Copy, []plan.Item{item}, plan.Options{})
	if results[0].Status != Failed || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("status = %v (%v), want Failed with context.Canceled", results[0].Status, results[0].Err)
	}
}
