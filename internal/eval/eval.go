// Package eval implements target evaluation: the staleness oracle that
// decides, per command, whether a rerun is needed, and the command
// runner that executes the gated and always-run commands of a target
// in order.
//
// Rerun gating and command spawning follow the same os.Stat/ModTime and
// os/exec plumbing distri uses for its own build steps
// (cmd/distri/build.go's (*buildctx).pkgSource file-timestamp check,
// internal/batch/batch.go's (*scheduler).build spawning "distri build"
// with exec.CommandContext and per-target log files).
package eval

import (
	"context"
	"io"
	"os"
	"os/exec"

	"rbuild"
	"rbuild/internal/graph"

	"golang.org/x/xerrors"
)

// Options carries the writers that receive the stdout/stderr of spawned
// commands, one writer shared
// by every command of every target evaluated through a single Options
// value (typically a per-target log file, mirroring how
// internal/batch/batch.go in distri writes one log file per package
// under a temp log directory).
type Options struct {
	// Stdout and Stderr receive command output. Both default to io.Discard
	// if nil.
	Stdout, Stderr io.Writer
}

// Evaluate implements the staleness oracle and command runner from the
// design document's target evaluation section: it reads the target's
// modification timestamp, computes the newest input freshness, decides
// per gated command whether to run it, runs gated then always commands
// in order, and returns the freshness successors should observe.
//
// A nil error indicates success, with the returned Freshness being the
// value successors observe. A non-nil error
// indicates the target failed; the caller (the executor) is responsible
// for cancelling the downstream cone.
func Evaluate(ctx context.Context, target *graph.Target, depFreshness []rbuild.Freshness, opts Options) (rbuild.Freshness, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	ownTS := statFreshness(target.Path)
	newestInput := rbuild.MaxFreshness(depFreshness)

	for _, c := range target.Cmds {
		if newestInput.After(ownTS) || c.Stale() {
			if err := run(ctx, target.Path, c.Program, c.Args, stdout, stderr); err != nil {
				return rbuild.Epoch, err
			}
			c.MarkRan()
		}
	}

	for _, c := range target.AlwaysCmds {
		if err := run(ctx, target.Path, c.Program, c.Args, stdout, stderr); err != nil {
			return rbuild.Epoch, err
		}
	}

	freshOwnTS := statFreshness(target.Path)
	return newestInput.Max(freshOwnTS), nil
}

func run(ctx context.Context, targetPath, program string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if xerrors.As(err, &exitErr) {
			return rbuild.Errorf(rbuild.CommandExit, "%s: %v %v: exit status %d", targetPath, program, args, exitErr.ExitCode())
		}
		return rbuild.Errorf(rbuild.CommandSpawn, "%s: %v %v: %v", targetPath, program, args, err)
	}
	return nil
}

func statFreshness(path string) rbuild.Freshness {
	info, err := os.Stat(path)
	if err != nil {
		return rbuild.Epoch
	}
	return rbuild.NewFreshness(info.ModTime())
}
