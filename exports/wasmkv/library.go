package wasmkv

import (
	"context"

	"github.com/wippyai/wasm-ffi/wasmhost"
)

// Name identifies this implementation in the conformance matrix.
const Name = "wasmkv"

// Open loads a fresh instance of the generated module into engine.
func Open(ctx context.Context, engine *wasmhost.Engine) (*wasmhost.Library, error) {
	bin, err := Module()
	if err != nil {
		return nil, err
	}
	return engine.Open(ctx, Name, bin)
}
