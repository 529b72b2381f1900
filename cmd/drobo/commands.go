package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/engine"
	"github.com/drobo-cli/drobo/internal/lister"
	"github.com/drobo-cli/drobo/internal/pathspec"
	"github.com/drobo-cli/drobo/internal/plan"
	"github.com/drobo-cli/drobo/internal/store"
	"github.com/drobo-cli/drobo/internal/worker"
)

const usageExitCode = 2

func newLsCmd(app *appContext) *cobra.Command {
	var (
		long      bool
		all       bool
		dirOnly   bool
		recursive bool
		reverse   bool
		bySize    bool
		byTime    bool
	)
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := pathspec.Marker
			if len(args) == 1 {
				raw = args[0]
			}
			arg, err := pathspec.Classify(raw)
			if err != nil {
				return err
			}

			sortBy := lister.ByName
			if bySize {
				sortBy = lister.BySize
			} else if byTime {
				sortBy = lister.ByTime
			}
			op := &plan.Operation{
				Kind:    plan.List,
				Sources: []pathspec.Arg{arg},
				Options: plan.Options{
					All:       all,
					DirOnly:   dirOnly,
					Long:      long,
					Recursive: recursive,
					Reverse:   reverse,
					Sort:      sortBy,
				},
			}

			eng, err := app.engine(cmd.Context())
			if err != nil {
				app.exitCode = exitCodeFor(err)
				return err
			}
			rows, err := eng.List(cmd.Context(), op)
			if err != nil {
				app.exitCode = exitCodeFor(err)
				return errors.Errorf("ls: %w", err)
			}
			printListing(os.Stdout, rows, op.Options)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "use a long listing format")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "do not hide entries starting with .")
	cmd.Flags().BoolVarP(&dirOnly, "directory", "d", false, "list directories themselves, not their contents")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list subdirectories recursively")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "reverse order while sorting")
	cmd.Flags().BoolVarP(&bySize, "size", "S", false, "sort by file size, largest first")
	cmd.Flags().BoolVarP(&byTime, "time", "t", false, "sort by modification time, newest first")
	return cmd
}

func newCpCmd(app *appContext) *cobra.Command {
	var (
		recursive   bool
		force       bool
		update      bool
		treatAsFile bool
		targetDir   string
	)
	cmd := &cobra.Command{
		Use:   "cp [options] <source>... <dest>",
		Short: "Copy files between the local and remote stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := plan.Options{
				Recursive:   recursive,
				Force:       force,
				Update:      update,
				TreatAsFile: treatAsFile,
			}
			op, err := transferOperation(plan.Copy, args, targetDir, opts)
			if err != nil {
				app.exitCode = exitCodeFor(err)
				return err
			}
			return app.runOperation(cmd, op)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy directories recursively")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing destination files")
	cmd.Flags().BoolVarP(&update, "update", "u", false, "copy only when the source is newer")
	cmd.Flags().BoolVarP(&treatAsFile, "no-target-directory", "T", false, "treat the destination as a normal file")
	cmd.Flags().StringVarP(&targetDir, "target-directory", "t", "", "copy all sources into this directory")
	return cmd
}

func newMvCmd(app *appContext) *cobra.Command {
	var (
		force       bool
		update      bool
		treatAsFile bool
		targetDir   string
	)
	cmd := &cobra.Command{
		Use:   "mv [options] <source>... <dest>",
		Short: "Move files between the local and remote stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := plan.Options{
				Force:       force,
				Update:      update,
				TreatAsFile: treatAsFile,
			}
			op, err := transferOperation(plan.Move, args, targetDir, opts)
			if err != nil {
				app.exitCode = exitCodeFor(err)
				return err
			}
			return app.runOperation(cmd, op)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing destination files")
	cmd.Flags().BoolVarP(&update, "update", "u", false, "move only when the source is newer")
	cmd.Flags().BoolVarP(&treatAsFile, "no-target-directory", "T", false, "treat the destination as a normal file")
	cmd.Flags().StringVarP(&targetDir, "target-directory", "t", "", "move all sources into this directory")
	return cmd
}

func newRmCmd(app *appContext) *cobra.Command {
	var (
		force     bool
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "rm [options] <path>...",
		Short: "Remove remote files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := pathspec.ClassifyAll(args)
			if err != nil {
				app.exitCode = exitCodeFor(err)
				return err
			}
			op := &plan.Operation{
				Kind:    plan.Remove,
				Sources: sources,
				Options: plan.Options{Force: force, Recursive: recursive},
			}
			return app.runOperation(cmd, op)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore missing files, never prompt")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

// transferOperation assembles a cp or mv operation from positional arguments.
// With -t the destination is the flag value and every positional argument is
// a source; otherwise the last argument is the destination.
func transferOperation(kind plan.Kind, args []string, targetDir string, opts plan.Options) (*plan.Operation, error) {
	var srcRaw []string
	var destRaw string
	if targetDir != "" {
		opts.TargetDir = true
		srcRaw, destRaw = args, targetDir
	} else {
		if len(args) < 2 {
			return nil, errors.Errorf("%w: missing destination operand after %q", plan.ErrUsage, args[len(args)-1])
		}
		srcRaw, destRaw = args[:len(args)-1], args[len(args)-1]
	}

	sources, err := pathspec.ClassifyAll(srcRaw)
	if err != nil {
		return nil, err
	}
	dest, err := pathspec.Classify(destRaw)
	if err != nil {
		return nil, err
	}
	return &plan.Operation{Kind: kind, Sources: sources, Dest: &dest, Options: opts}, nil
}

// runOperation executes a cp, mv or rm operation, reports per-item failures
// on stderr and records the derived exit code.
func (a *appContext) runOperation(cmd *cobra.Command, op *plan.Operation) error {
	eng, err := a.engine(cmd.Context())
	if err != nil {
		a.exitCode = exitCodeFor(err)
		return err
	}
	rep := eng.Run(cmd.Context(), op)
	a.exitCode = rep.ExitCode()
	if rep.Err != nil {
		return errors.Errorf("%s: %w", op.Kind, rep.Err)
	}
	for _, res := range rep.Results {
		if res.Status == worker.Failed {
			fmt.Fprintf(os.Stderr, "drobo %s: %v\n", op.Kind, res.Err)
		}
	}
	if succeeded, skipped, failed := rep.Counts(); failed > 0 || skipped > 0 {
		fmt.Fprintf(os.Stderr, "drobo %s: %d succeeded, %d skipped, %d failed\n",
			op.Kind, succeeded, skipped, failed)
	}
	return nil
}

// printListing renders ls output. Recursive listings group entries under a
// header per directory, the way ls -R does.
func printListing(w io.Writer, rows []engine.Listed, opts plan.Options) {
	lastDir := ""
	first := true
	for _, row := range rows {
		if opts.Recursive && row.Dir != lastDir {
			if !first {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s:\n", pathspec.Display(pathspec.Remote, row.Dir))
			lastDir = row.Dir
		}
		first = false
		if opts.Long {
			fmt.Fprintln(w, formatLong(row.Entry))
		} else {
			fmt.Fprintln(w, displayName(row.Entry))
		}
	}
}

func formatLong(e store.Entry) string {
	size := "-"
	if !e.IsDir() {
		size = fmt.Sprintf("%d", e.Size)
	}
	mod := "-"
	if !e.ModTime.IsZero() {
		mod = e.ModTime.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%12s  %16s  %s", size, mod, displayName(e))
}

func displayName(e store.Entry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

func exitCodeFor(err error) int {
	if errors.Is(err, plan.ErrUsage) {
		return usageExitCode
	}
	return 1
}
