package harness

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/hyp3rd/ewrap"

	"github.com/wippyai/wasm-ffi/arena"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/exports/native"
	"github.com/wippyai/wasm-ffi/exports/wasmkv"
	"github.com/wippyai/wasm-ffi/imports"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

// Export is one export implementation of the matrix.
type Export struct {
	Name string
	// File is the wasm artifact, empty for exports that only exist
	// in-process. Exec importers need a file.
	File string
	open func(ctx context.Context) (contract.Library, error)
}

// Open loads a fresh instance.
func (e *Export) Open(ctx context.Context) (contract.Library, error) {
	return e.open(ctx)
}

// Import is one import implementation of the matrix: a builtin Go importer
// or an exec component.
type Import struct {
	Name      string
	Component *Component
}

// Builtin reports whether the importer runs in-process.
func (i *Import) Builtin() bool { return i.Component == nil }

// BuiltinExports returns the in-process exports. wasmkv is also written to
// workDir so exec importers can load it.
func BuiltinExports(engine *wasmhost.Engine, workDir string) ([]*Export, error) {
	bin, err := wasmkv.Module()
	if err != nil {
		return nil, ewrap.Wrap(err, "generate wasmkv module")
	}
	file := filepath.Join(workDir, wasmkv.Name+".wasm")
	if err := os.WriteFile(file, bin, 0o644); err != nil {
		return nil, ewrap.Wrapf(err, "write %s", file)
	}

	return []*Export{
		{
			Name: native.Name,
			open: func(context.Context) (contract.Library, error) {
				return native.Open(arena.DefaultConfig())
			},
		},
		{
			Name: wasmkv.Name,
			File: file,
			open: func(ctx context.Context) (contract.Library, error) {
				return wasmkv.Open(ctx, engine)
			},
		},
	}, nil
}

// WasmExport returns the export backed by a built wasm component.
func WasmExport(engine *wasmhost.Engine, c *Component) *Export {
	file := c.ArtifactPath()
	return &Export{
		Name: c.Name,
		File: file,
		open: func(ctx context.Context) (contract.Library, error) {
			bin, err := os.ReadFile(file)
			if err != nil {
				return nil, ewrap.Wrapf(err, "read artifact %s", file)
			}
			return engine.Open(ctx, c.Name, bin)
		},
	}
}

// BuiltinImports returns the Go importers.
func BuiltinImports() []*Import {
	names := imports.Names()
	out := make([]*Import, len(names))
	for i, name := range names {
		out[i] = &Import{Name: name}
	}
	return out
}

// selected filters items by name. An empty selection keeps everything.
func selected[T any](items []T, name func(T) string, want []string) []T {
	if len(want) == 0 {
		return items
	}
	return slices.DeleteFunc(slices.Clone(items), func(item T) bool {
		return !slices.Contains(want, name(item))
	})
}
