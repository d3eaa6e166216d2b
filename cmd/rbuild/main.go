// Command rbuild reads a configuration file, compiles a recipe for the
// requested targets (or every target, if none are named), and runs it
// with a parallel executor, persisting command fingerprints to a hash
// cache between runs.
//
// Flag parsing, the verbose/debug error-detail toggle, and the
// funcmain/main split mirror distri's cmd/distri/distri.go, trimmed
// to this engine's single action rather than distri's many verbs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"rbuild"
	"rbuild/internal/cache"
	"rbuild/internal/config"
	"rbuild/internal/executor"
	"rbuild/internal/graph"
	"rbuild/internal/recipe"
	"rbuild/internal/trace"
)

var (
	threads   int
	cachePath string
	tracePath = flag.String("trace", "", "path to write a Chrome trace event file at")
	verbose   bool
	debug     = flag.Bool("debug", false, "format errors with additional detail")
)

func init() {
	const defaultThreads = 8
	const defaultCache = "rbuild.cache"
	flag.IntVar(&threads, "threads", defaultThreads, "number of concurrent workers")
	flag.IntVar(&threads, "t", defaultThreads, "shorthand for -threads")
	flag.StringVar(&cachePath, "cache", defaultCache, "path to the hash cache file")
	flag.StringVar(&cachePath, "c", defaultCache, "shorthand for -cache")
	flag.BoolVar(&verbose, "verbose", false, "echo build command output to the terminal")
	flag.BoolVar(&verbose, "v", false, "shorthand for -verbose")
}

func funcmain() error {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		return fmt.Errorf("syntax: rbuild [-flags] CONFIG [TARGET...]")
	}
	configPath := args[0]
	requested := args[1:]

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *tracePath != "" {
		f, err := os.Create(*tracePath)
		if err != nil {
			return rbuild.Errorf(rbuild.CacheIO, "opening trace file: %v", err)
		}
		trace.Sink(f)
		rbuild.RegisterAtExit(f.Close)
	}

	src, err := os.ReadFile(configPath)
	if err != nil {
		return rbuild.Errorf(rbuild.ConfigIO, "reading %s: %v", configPath, err)
	}

	g, err := config.Parse(string(src))
	if err != nil {
		return err
	}

	if cf, err := os.Open(cachePath); err == nil {
		if err := cache.Read(cf, g); err != nil {
			logger.Printf("warning: %v (continuing as if no cache existed)", err)
		}
		cf.Close()
	} else if !os.IsNotExist(err) {
		logger.Printf("warning: could not open cache %s: %v", cachePath, err)
	}

	outputs, err := resolveTargets(g, requested)
	if err != nil {
		return err
	}

	rec, err := recipe.Compile(g, outputs)
	if err != nil {
		return err
	}

	ctx, canc := rbuild.InterruptibleContext()
	defer canc()

	result, err := executor.Run(ctx, g, rec, executor.Options{
		Workers: threads,
		Trace:   *tracePath != "",
		Logs:    logOpener(verbose),
	})
	if err != nil {
		return err
	}

	if cf, err := os.Create(cachePath); err == nil {
		if err := cache.Write(cf, g); err != nil {
			logger.Printf("warning: writing cache: %v", err)
		}
		cf.Close()
	} else {
		logger.Printf("warning: could not create cache %s: %v", cachePath, err)
	}

	logger.Printf("%d succeeded, %d failed, %d cancelled", result.Succeeded, result.Failed, result.Cancelled)

	for id, outcome := range result.Outcomes {
		if outcome.Err == nil {
			continue
		}
		t, _ := g.Get(id)
		logger.Printf("%s: %v", t.Path, outcome.Err)
	}

	if result.Failed > 0 || result.Cancelled > 0 {
		return fmt.Errorf("build failed")
	}

	return rbuild.RunAtExit()
}

// resolveTargets maps user-supplied target paths to graph identifiers. An
// empty requested list means every target in the graph.
func resolveTargets(g *graph.Graph, requested []string) ([]int64, error) {
	if len(requested) == 0 {
		return g.Iter(), nil
	}
	outputs := make([]int64, 0, len(requested))
	for _, path := range requested {
		id, ok := g.Lookup(path)
		if !ok {
			return nil, rbuild.Errorf(rbuild.UnknownTarget, "unknown target %q", path)
		}
		outputs = append(outputs, id)
	}
	return outputs, nil
}

// logOpener returns per-target log writers. With verbose unset, command
// output is discarded; with it set, both streams go to stderr.
func logOpener(verbose bool) executor.LogOpener {
	return func(path string) (stdout, stderr io.Writer, closeFn func()) {
		if !verbose {
			return io.Discard, io.Discard, func() {}
		}
		return os.Stderr, os.Stderr, func() {}
	}
}

func main() {
	if err := funcmain(); err != nil {
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
