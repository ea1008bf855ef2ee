package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm-ffi/exports/wasmkv"
)

func TestRun_UnknownMode(t *testing.T) {
	if err := run(context.Background(), "missing.wasm", "telepathy", false, 0); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRun_MissingLibrary(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "none.wasm"), "direct", false, 0)
	if err == nil || !strings.Contains(err.Error(), "read library") {
		t.Fatalf("err = %v, want read library error", err)
	}
}

func TestRun_Wasmkv(t *testing.T) {
	wasm, err := wasmkv.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	path := filepath.Join(t.TempDir(), "kvstore.wasm")
	if err := os.WriteFile(path, wasm, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, mode := range []string{"direct", "visitor", "cursor"} {
		t.Run(mode, func(t *testing.T) {
			if err := run(context.Background(), path, mode, true, 0); err != nil {
				t.Fatalf("run: %v", err)
			}
		})
	}
}
