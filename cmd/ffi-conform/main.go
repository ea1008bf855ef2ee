package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-ffi/arena"
	"github.com/wippyai/wasm-ffi/harness"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

const (
	exitPass  = 0
	exitFail  = 1
	exitSetup = 2
)

func main() {
	var (
		configFile  = flag.String("config", "", "Config file (toml, yaml or json)")
		golden      = flag.String("golden", "", "Golden transcript file (default: builtin)")
		roots       = flag.String("roots", "", "Component roots (comma-separated)")
		exports     = flag.String("exports", "", "Export implementations to run (comma-separated, default all)")
		importsFlag = flag.String("imports", "", "Import implementations to run (comma-separated, default all)")
		audit       = flag.Bool("audit", true, "Check releases with a ledger")
		failFast    = flag.Bool("fail-fast", false, "Stop at the first failing pair")
		skipBuild   = flag.Bool("skip-build", false, "Use existing artifacts, do not run build commands")
		workDir     = flag.String("work-dir", "", "Directory for generated artifacts (default: temporary)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		color       = flag.String("color", "auto", "Colored output: auto, always or never")
		interactive = flag.Bool("i", false, "Browse results in an interactive matrix")
	)
	flag.Parse()

	cfg, err := harness.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitSetup)
	}

	// flags given explicitly win over file and environment
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "golden":
			cfg.Golden = *golden
		case "roots":
			cfg.Roots = splitList(*roots)
		case "exports":
			cfg.Exports = splitList(*exports)
		case "imports":
			cfg.Imports = splitList(*importsFlag)
		case "audit":
			cfg.Audit = *audit
		case "fail-fast":
			cfg.FailFast = *failFast
		case "skip-build":
			cfg.SkipBuild = *skipBuild
		case "work-dir":
			cfg.WorkDir = *workDir
		case "log-level":
			level, err := zapcore.ParseLevel(*logLevel)
			if err != nil {
				flagErr = err
				return
			}
			cfg.LogLevel = level
		}
	})
	if flagErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", flagErr)
		os.Exit(exitSetup)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitSetup)
	}
	defer logger.Sync()
	harness.SetLogger(logger.Named("harness"))
	wasmhost.SetLogger(logger.Named("wasmhost"))
	arena.SetLogger(logger.Named("arena"))

	os.Exit(run(cfg, *color, *interactive))
}

func run(cfg harness.Config, color string, interactive bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner, err := harness.NewRunner(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}
	defer runner.Close(context.Background())

	report, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}

	if interactive {
		if err := runInteractive(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitSetup
		}
	} else if err := report.WriteText(os.Stdout, styler(color)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitSetup
	}

	if report.Failed() {
		return exitFail
	}
	return exitPass
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
