// Package executor runs a compiled recipe: a worker pool pulls ready
// targets off a work queue, evaluates them, and fans their successors
// back onto the queue as their dependencies finish, cancelling the
// downstream cone of any target that fails.
//
// The dispatcher loop, per-worker status line, and failure cascade are
// adapted from distri's internal/batch/batch.go scheduler: the same
// work/done channel pair, the same golang.org/x/sync/errgroup worker
// pool, and the same "enqueue nodes with no remaining dependencies,
// recurse into To() on success, recurse into markFailed on failure"
// shape. Unlike that scheduler, terminal detection goes through
// github.com/mattn/go-isatty instead of a raw unix.IoctlGetTermios call,
// and every dispatched target is bracketed with internal/trace begin/end
// events.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"rbuild"
	"rbuild/internal/eval"
	"rbuild/internal/graph"
	"rbuild/internal/recipe"
	"rbuild/internal/trace"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// LogOpener returns the writers that should receive the stdout/stderr of
// the commands run while evaluating the target at path. The executor
// calls it once per dispatched target.
type LogOpener func(path string) (stdout, stderr io.Writer, closeFn func())

// Options configures a Run.
type Options struct {
	// Workers is the number of concurrent evaluators. Defaults to 1 if
	// not positive.
	Workers int

	// Logs opens per-target command output. Defaults to discarding all
	// output.
	Logs LogOpener

	// Status receives the live per-worker status display. Defaults to
	// os.Stdout. Status lines are only drawn when Status is a terminal,
	// detected with isatty the way that scheduler gated its own
	// status display.
	Status *os.File

	// Trace enables Chrome trace event emission through internal/trace;
	// the caller installs the sink with trace.Sink before calling Run.
	// When false, no events are emitted.
	Trace bool
}

// Outcome is the terminal state of one evaluated target.
type Outcome struct {
	Freshness rbuild.Freshness
	Err       error
	Cancelled bool
}

// Result is the aggregate outcome of a Run.
type Result struct {
	// Outcomes is keyed by node id, populated for every member of the
	// recipe's closure.
	Outcomes map[int64]*Outcome
	Succeeded, Failed, Cancelled int
}

type job struct{ id int64 }

type jobResult struct {
	id        int64
	freshness rbuild.Freshness
	err       error
}

// Run evaluates every target in rec.Closure in dependency order, using up
// to opts.Workers concurrent evaluators, and returns once every target has
// reached a terminal state or ctx is cancelled.
func Run(ctx context.Context, g *graph.Graph, rec *recipe.Recipe, opts Options) (*Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	statusFile := opts.Status
	if statusFile == nil {
		statusFile = os.Stdout
	}
	terminal := isatty.IsTerminal(statusFile.Fd())

	d := &dispatcher{
		g:         g,
		rec:       rec,
		logs:      opts.Logs,
		status:    newStatusBoard(statusFile, terminal, workers),
		remaining: make(map[int64]int, len(rec.Closure)),
		freshness: make(map[int64]rbuild.Freshness, len(rec.Closure)),
		outcomes:  make(map[int64]*Outcome, len(rec.Closure)),
	}
	for id := range rec.Closure {
		d.remaining[id] = len(predecessorsInClosure(g, rec, id))
	}

	work := make(chan job, len(rec.Closure))
	done := make(chan jobResult)
	eg, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			return d.worker(ctx, w, work, done, opts.Trace)
		})
	}

	for id := range rec.Closure {
		if d.remaining[id] == 0 {
			work <- job{id: id}
		}
	}

	go d.dispatch(ctx, work, done)

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Outcomes: d.outcomes}
	for _, o := range d.outcomes {
		switch {
		case o.Cancelled:
			res.Cancelled++
		case o.Err != nil:
			res.Failed++
		default:
			res.Succeeded++
		}
	}
	return res, nil
}

// predecessorsInClosure returns id's dependency ids that are also part of
// the recipe's closure (every dependency of a closure member is itself a
// closure member, by construction of recipe.Compile, but the filter keeps
// this function correct regardless).
func predecessorsInClosure(g *graph.Graph, rec *recipe.Recipe, id int64) []int64 {
	var out []int64
	for _, p := range g.Predecessors(id) {
		if rec.Closure[p] {
			out = append(out, p)
		}
	}
	return out
}

type dispatcher struct {
	g   *graph.Graph
	rec *recipe.Recipe

	logs   LogOpener
	status *statusBoard

	mu        sync.Mutex
	remaining map[int64]int
	freshness map[int64]rbuild.Freshness
	outcomes  map[int64]*Outcome
	done      int
}

// dispatch owns the scheduler tick: it receives completed jobResults,
// records their outcome, and enqueues every successor whose remaining
// dependency count has reached zero. It closes work once every closure
// member has reached a terminal state.
func (d *dispatcher) dispatch(ctx context.Context, work chan<- job, done <-chan jobResult) {
	defer close(work)
	total := len(d.rec.Closure)
	for d.progress() < total {
		select {
		case r := <-done:
			d.mu.Lock()
			if r.err != nil {
				d.outcomes[r.id] = &Outcome{Err: r.err}
				d.done++
				d.cancelDownstream(r.id)
			} else {
				d.outcomes[r.id] = &Outcome{Freshness: r.freshness}
				d.freshness[r.id] = r.freshness
				d.done++
				for _, s := range d.g.Successors(r.id) {
					if !d.rec.Closure[s] {
						continue
					}
					if _, terminal := d.outcomes[s]; terminal {
						// s was already cancelled via another failed
						// predecessor; do not resurrect it.
						continue
					}
					d.remaining[s]--
					if d.remaining[s] == 0 {
						// work is buffered to hold every closure member at
						// once, so this send cannot block.
						select {
						case work <- job{id: s}:
						case <-ctx.Done():
						}
					}
				}
			}
			d.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (d *dispatcher) progress() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// cancelDownstream marks every not-yet-terminal successor of id, and
// transitively theirs, Cancelled. Callers hold d.mu.
func (d *dispatcher) cancelDownstream(id int64) {
	for _, s := range d.g.Successors(id) {
		if !d.rec.Closure[s] {
			continue
		}
		if _, done := d.outcomes[s]; done {
			continue
		}
		d.outcomes[s] = &Outcome{Cancelled: true, Err: xerrors.Errorf("dependency %s failed", d.g.Label(id))}
		d.done++
		d.cancelDownstream(s)
	}
}

func (d *dispatcher) worker(ctx context.Context, slot int, work <-chan job, done chan<- jobResult, traceOn bool) error {
	for j := range work {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := d.g.Get(j.id)
		if err != nil {
			return err
		}

		d.mu.Lock()
		var depFresh []rbuild.Freshness
		for _, p := range predecessorsInClosure(d.g, d.rec, j.id) {
			depFresh = append(depFresh, d.freshness[p])
		}
		d.mu.Unlock()

		label := d.g.Label(j.id)
		if traceOn {
			trace.Begin(label, slot)
		}
		d.status.update(slot, "building "+label)

		var stdout, stderr io.Writer = io.Discard, io.Discard
		closeFn := func() {}
		if d.logs != nil {
			stdout, stderr, closeFn = d.logs(target.Path)
		}
		fresh, evalErr := eval.Evaluate(ctx, target, depFresh, eval.Options{Stdout: stdout, Stderr: stderr})
		closeFn()

		if traceOn {
			trace.End(label, slot)
		}
		d.status.update(slot, "idle")

		select {
		case done <- jobResult{id: j.id, freshness: fresh, err: evalErr}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// statusBoard renders one line per worker, overwriting
// in place with ANSI cursor movement, the same scheme as distri's
// scheduler.refreshStatus/updateStatus. It is a no-op when the underlying
// file is not a terminal.
type statusBoard struct {
	mu       sync.Mutex
	out      *os.File
	terminal bool
	lines    []string
	last     time.Time
}

func newStatusBoard(out *os.File, terminal bool, workers int) *statusBoard {
	return &statusBoard{out: out, terminal: terminal, lines: make([]string, workers)}
}

func (b *statusBoard) update(slot int, text string) {
	if !b.terminal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if diff := len(b.lines[slot]) - len(text); diff > 0 {
		text += strings.Repeat(" ", diff)
	}
	b.lines[slot] = text
	if time.Since(b.last) < 100*time.Millisecond {
		return
	}
	b.last = time.Now()
	for _, l := range b.lines {
		fmt.Fprintln(b.out, l)
	}
	fmt.Fprintf(b.out, "\033[%dA", len(b.lines))
}
