// Command kv-import runs the key-value transcript against a wasm component
// that exports the contract and prints it to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-ffi/imports"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

func main() {
	var (
		library  = flag.String("library", "", "Path to the component wasm file")
		mode     = flag.String("mode", imports.Direct, "Listing strategy: "+strings.Join(imports.Names(), ", "))
		audit    = flag.Bool("audit", false, "Refuse double releases with a ledger")
		pages    = flag.Uint("memory-pages", 0, "Memory limit in 64 KiB pages (0 = default)")
		logLevel = flag.String("log-level", "warn", "Log level for stderr")
	)
	flag.Parse()

	if *library == "" {
		fmt.Fprintln(os.Stderr, "Usage: kv-import -library <file.wasm> [-mode direct|visitor|cursor] [-audit]")
		os.Exit(1)
	}

	level, err := zapcore.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	if logger, err := cfg.Build(); err == nil {
		defer logger.Sync()
		wasmhost.SetLogger(logger)
	}

	if err := run(context.Background(), *library, *mode, *audit, uint32(*pages)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, library, mode string, audit bool, pages uint32) error {
	importer, err := imports.New(mode, imports.WithAudit(audit))
	if err != nil {
		return err
	}

	wasm, err := os.ReadFile(library)
	if err != nil {
		return fmt.Errorf("read library: %w", err)
	}

	engine, err := wasmhost.NewEngine(ctx, &wasmhost.Config{MemoryLimitPages: pages})
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	name := strings.TrimSuffix(filepath.Base(library), filepath.Ext(library))
	lib, err := engine.Open(ctx, name, wasm)
	if err != nil {
		return err
	}
	defer lib.Close(ctx)

	if !imports.Compatible(mode, lib) {
		return fmt.Errorf("%s does not export %s", library, strings.Join(imports.Requires(mode), ", "))
	}
	return importer.Run(ctx, lib, os.Stdout)
}
