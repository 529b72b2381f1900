package plan

import (
	"context"
	"testing"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/pathspec"
	"github.com/drobo-cli/drobo/internal/store"
)

func fileEntry(p, name string) store.Entry {
	return store.Entry{Path: p, Name: name, Kind: store.File}
}

func TestResolveDecisionTable(t *testing.T) {
	ctx := context.Background()
	mod := time.Now()

	newDest := func() *store.MemFS {
		fs := store.NewMem()
		fs.AddDir("/dir")
		fs.AddFile("/existing.txt", []byte("x"), mod)
		return fs
	}

	src1 := fileEntry("/src/a.txt", "a.txt")
	src2 := fileEntry("/src/b.txt", "b.txt")

	rarg := func(raw, p string) pathspec.Arg {
		return pathspec.Arg{Raw: raw, Path: p, Locality: pathspec.Remote}
	}

	tests := []struct {
		name       string
		op         Operation
		sources    []store.Entry
		wantDests  []string
		wantMkdirs []string
		wantErr    bool
	}{
		{
			name: "target directory flag",
			op: Operation{Kind: Copy, Options: Options{TargetDir: true},
				Dest: ptr(rarg("//dir", "/dir"))},
			sources:   []store.Entry{src1, src2},
			wantDests: []string{"/dir/a.txt", "/dir/b.txt"},
		},
		{
			name: "target directory flag creates missing dir",
			op: Operation{Kind: Copy, Options: Options{TargetDir: true},
				Dest: ptr(rarg("//newdir", "/newdir"))},
			sources:    []store.Entry{src1},
			wantDests:  []string{"/newdir/a.txt"},
			wantMkdirs: []string{"/newdir"},
		},
		{
			name: "target directory flag over a file",
			op: Operation{Kind: Copy, Options: Options{TargetDir: true},
				Dest: ptr(rarg("//existing.txt", "/existing.txt"))},
			sources: []store.Entry{src1},
			wantErr: true,
		},
		{
			name: "treat as file",
			op: Operation{Kind: Copy, Options: Options{TreatAsFile: true},
				Dest: ptr(rarg("//dir", "/dir"))},
			sources:   []store.Entry{src1},
			wantDests: []string{"/dir"},
		},
		{
			name: "treat as file with several expanded sources",
			op: Operation{Kind: Copy, Options: Options{TreatAsFile: true},
				Dest: ptr(rarg("//one.txt", "/one.txt"))},
			sources: []store.Entry{src1, src2},
			wantErr: true,
		},
		{
			name:      "existing directory appends basename",
			op:        Operation{Kind: Copy, Dest: ptr(rarg("//dir", "/dir"))},
			sources:   []store.Entry{src1},
			wantDests: []string{"/dir/a.txt"},
		},
		{
			name:       "trailing separator forces directory",
			op:         Operation{Kind: Copy, Dest: ptr(rarg("//fresh/", "/fresh"))},
			sources:    []store.Entry{src1},
			wantDests:  []string{"/fresh/a.txt"},
			wantMkdirs: []string{"/fresh"},
		},
		{
			name:      "single source verbatim",
			op:        Operation{Kind: Copy, Dest: ptr(rarg("//renamed.txt", "/renamed.txt"))},
			sources:   []store.Entry{src1},
			wantDests: []string{"/renamed.txt"},
		},
		{
			name:    "multiple sources need a directory",
			op:      Operation{Kind: Copy, Dest: ptr(rarg("//renamed.txt", "/renamed.txt"))},
			sources: []store.Entry{src1, src2},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := tt.op
			op.Sources = []pathspec.Arg{{Raw: "//src", Path: "/src", Locality: pathspec.Remote}}
			pl, err := Resolve(ctx, &op, tt.sources, newDest())
			if tt.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Fatalf("Resolve = %v, want usage error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(pl.Items) != len(tt.wantDests) {
				t.Fatalf("got %d items, want %d", len(pl.Items), len(tt.wantDests))
			}
			for i, want := range tt.wantDests {
				if pl.Items[i].Dest != want {
					t.Errorf("item %d dest = %q, want %q", i, pl.Items[i].Dest, want)
				}
			}
			if len(pl.Mkdirs) != len(tt.wantMkdirs) {
				t.Fatalf("mkdirs = %v, want %v", pl.Mkdirs, tt.wantMkdirs)
			}
			for i, want := range tt.wantMkdirs {
				if pl.Mkdirs[i] != want {
					t.Errorf("mkdir %d = %q, want %q", i, pl.Mkdirs[i], want)
				}
			}
		})
	}
}

func ptr(a pathspec.Arg) *pathspec.Arg { return &a }

func TestCheckConflict(t *testing.T) {
	ctx := context.Background()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	fs := store.NewMem()
	fs.AddFile("/dest.txt", []byte("old"), older)

	src := store.Entry{Path: "/src.txt", Name: "src.txt", Kind: store.File, ModTime: newer}

	tests := []struct {
		name string
		src  store.Entry
		dest string
		opts Options
		want Decision
	}{
		{"missing destination proceeds", src, "/absent.txt", Options{}, Proceed},
		{"existing destination fails", src, "/dest.txt", Options{}, Fail},
		{"force overwrites", src, "/dest.txt", Options{Force: true}, Proceed},
		{"update with newer source proceeds", src, "/dest.txt", Options{Update: true}, Proceed},
		{
			"update with older source skips",
			store.Entry{Path: "/src.txt", Name: "src.txt", Kind: store.File, ModTime: older.Add(-time.Hour)},
			"/dest.txt", Options{Update: true}, Skip,
		},
		{
			"update with equal mtime skips",
			store.Entry{Path: "/src.txt", Name: "src.txt", Kind: store.File, ModTime: older},
			"/dest.txt", Options{Update: true}, Skip,
		},
		// update is consulted before force when both are given
		{"update wins over force", src, "/dest.txt", Options{Update: true, Force: true}, Proceed},
		{
			"update wins over force and skips",
			store.Entry{Path: "/src.txt", Name: "src.txt", Kind: store.File, ModTime: older},
			"/dest.txt", Options{Update: true, Force: true}, Skip,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckConflict(ctx, fs, tt.src, tt.dest, tt.opts)
			if got != tt.want {
				t.Fatalf("CheckConflict = %v (err %v), want %v", got, err, tt.want)
			}
			if tt.want == Fail && !errors.Is(err, store.ErrConflict) {
				t.Errorf("Fail decision error = %v, want ErrConflict", err)
			}
		})
	}
}
