package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"flowscope/internal/config"
	"flowscope/internal/engine"
	"flowscope/internal/taint"
	"flowscope/internal/watcher"
)

var (
	configPath = flag.String("config", "./flowscope.toml", "Path to config file")
	root       = flag.String("root", "", "Project root to scan (overrides config)")
	watch      = flag.Bool("watch", false, "Stay running and rescan on file changes")
	dotOut     = flag.String("dot", "", "Write dependency graph in DOT format to this file")
	reportOut  = flag.String("report", "", "Write markdown vulnerability report to this file")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("flowscope v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if *root != "" {
		cfg.ProjectRoot = *root
	} else if flag.NArg() > 0 {
		cfg.ProjectRoot = flag.Arg(0)
	}
	if *dotOut != "" {
		cfg.Output.DOT = *dotOut
	}
	if *reportOut != "" {
		cfg.Output.Markdown = *reportOut
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		slog.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := eng.Scan(ctx)
	if err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}
	if !rep.Build.Success {
		for _, e := range rep.Build.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	printSummary(rep)

	if !*watch {
		if hasHighSeverity(rep) {
			os.Exit(2)
		}
		return
	}

	w, err := watcher.New(cfg.Watch.Debounce, cfg.Exclude.Dirs, cfg.Exclude.Files, func(paths []string) {
		slog.Info("files changed, rescanning", "count", len(paths))
		rescan, err := eng.Scan(ctx)
		if err != nil {
			slog.Error("rescan failed", "error", err)
			return
		}
		printSummary(rescan)
	})
	if err != nil {
		slog.Error("failed to initialize watcher", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	if err := w.Watch(cfg.ProjectRoot); err != nil {
		slog.Error("failed to watch project root", "error", err)
		os.Exit(1)
	}

	slog.Info("watching for changes", "root", cfg.ProjectRoot, "debounce", cfg.Watch.Debounce)
	<-ctx.Done()
}

func printSummary(rep *engine.ScanReport) {
	fmt.Printf("modules: %d  imports: %d  cycles: %d\n",
		rep.Build.ModuleCount, rep.Build.ImportCount, len(rep.Build.Cycles))

	for _, c := range rep.Build.Cycles {
		fmt.Printf("  cycle: %s\n", joinCycle(c.Modules))
	}

	if rep.Analysis == nil {
		return
	}
	fmt.Printf("taint flows: %d  vulnerabilities: %d\n",
		len(rep.Analysis.Flows), len(rep.Analysis.Vulnerabilities))

	for _, v := range rep.Analysis.Vulnerabilities {
		fmt.Printf("  [%s] %s (%s): %s.%s:%d -> %s.%s:%d\n",
			v.Severity, v.Name, v.CWE,
			v.Flow.SourceModule, v.Flow.SourceFunction, v.Flow.SourceLine,
			v.Flow.SinkModule, v.Flow.SinkFunction, v.Flow.SinkLine)
	}

	for _, w := range rep.Build.Warnings {
		slog.Warn(w)
	}
	for _, w := range rep.Analysis.Warnings {
		slog.Warn(w)
	}
}

func joinCycle(modules []string) string {
	out := ""
	for _, m := range modules {
		out += m + " -> "
	}
	if len(modules) > 0 {
		out += modules[0]
	}
	return out
}

func hasHighSeverity(rep *engine.ScanReport) bool {
	if rep.Analysis == nil {
		return false
	}
	for _, v := range rep.Analysis.Vulnerabilities {
		if v.Severity == taint.SeverityHigh {
			return true
		}
	}
	return false
}
