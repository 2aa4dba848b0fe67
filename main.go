package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"

	"github.com/thiremani/memplan/ir"
	"github.com/thiremani/memplan/planner"
)

const (
	GRAPH_SUFFIX = ".mg"
	PLANNED_DIR  = "planned"
)

// defaultMGCache gets env variable MGCACHE.
// If it is not set it falls back to the platform cache directory.
func defaultMGCache() string {
	if env := os.Getenv("MGCACHE"); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	var mgcache string
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "memplan")
		}
		mgcache = filepath.Join(homeDir, "AppData", "Local", "memplan")

	case "darwin":
		mgcache = filepath.Join(homeDir, "Library", "Caches", "memplan")

	default: // Linux and others
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "memplan")
		}
		mgcache = filepath.Join(homeDir, ".cache", "memplan")
	}
	return mgcache
}

// planFile parses one graph file, plans it with strat and writes the
// rewritten graph under pkgDir/planned. Returns the output path.
func planFile(graphFile, pkgDir string, strat planner.Strategy, debug bool) (string, error) {
	source, err := os.ReadFile(graphFile)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", graphFile, err)
	}
	name := strings.TrimSuffix(filepath.Base(graphFile), GRAPH_SUFFIX)
	g, perrs := ir.Parse(name, string(source))
	if len(perrs) > 0 {
		for _, e := range perrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return "", fmt.Errorf("parsing %s: %d errors", graphFile, len(perrs))
	}

	opts := []planner.Option{}
	if debug {
		opts = append(opts, planner.WithDebug(os.Stderr))
	}
	plan, err := planner.PlanMemory(g, strat, opts...)
	if err != nil {
		return "", err
	}
	slog.Info("planned graph", "graph", name, "strategy", strat.String(),
		"arena_bytes", plan.TotalSize, "managed", len(plan.Regions))

	outPath := filepath.Join(pkgDir, PLANNED_DIR, name+GRAPH_SUFFIX)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte(g.String()), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", outPath, err)
	}
	return outPath, nil
}

func compareFile(graphFile string) error {
	source, err := os.ReadFile(graphFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", graphFile, err)
	}
	name := strings.TrimSuffix(filepath.Base(graphFile), GRAPH_SUFFIX)
	results, err := planner.CompareStrategies(name, string(source))
	if err != nil {
		return err
	}
	fmt.Printf("%s:\n", name)
	for _, r := range results {
		fmt.Printf("  %-18s arena=%d bytes, managed=%d\n", r.Strategy, r.TotalSize, r.Managed)
	}
	return nil
}

func main() {
	stratName := flag.String("strategy", planner.GreedyBySize.String(), "packing strategy: naive, greedy_by_size, linear_scan, greedy_by_breadth")
	compare := flag.Bool("compare", false, "plan with every strategy and print arena sizes instead of writing output")
	debug := flag.Bool("debug", false, "dump live ranges and regions per managed value")
	version := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		printVersion()
		return
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cwd := flag.Arg(0)
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting current working directory: %v\n", err)
			os.Exit(1)
		}
	}

	strat, err := planner.ParseStrategy(*stratName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dirEntries, err := os.ReadDir(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading directory %s: %v\n", cwd, err)
		os.Exit(1)
	}
	var graphFiles []string
	for _, entry := range dirEntries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), GRAPH_SUFFIX) {
			graphFiles = append(graphFiles, filepath.Join(cwd, entry.Name()))
		}
	}
	if len(graphFiles) == 0 {
		fmt.Fprintf(os.Stderr, "No %s files found in %s\n", GRAPH_SUFFIX, cwd)
		os.Exit(1)
	}

	if *compare {
		failed := false
		for _, gf := range graphFiles {
			if err := compareFile(gf); err != nil {
				fmt.Fprintln(os.Stderr, err)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	mgcache := defaultMGCache()
	pkg := filepath.Base(cwd)
	pkgDir := filepath.Join(mgcache, pkg)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating cache directory: %v\n", err)
		os.Exit(1)
	}

	// Concurrent invocations share the cache; serialize on a lock file.
	lock := flock.New(filepath.Join(pkgDir, ".lock"))
	if err := lock.Lock(); err != nil {
		fmt.Fprintf(os.Stderr, "Error locking cache directory: %v\n", err)
		os.Exit(1)
	}
	defer lock.Unlock()

	failed := false
	for _, gf := range graphFiles {
		outPath, err := planFile(gf, pkgDir, strat, *debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️ Planning failed for %s: %v\n", gf, err)
			failed = true
			continue
		}
		fmt.Printf("✅ Planned %s -> %s\n", filepath.Base(gf), outPath)
	}
	if failed {
		os.Exit(1)
	}
}
