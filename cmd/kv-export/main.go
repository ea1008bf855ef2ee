// Command kv-export writes the generated key-value component to disk so
// external importers can load it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wippyai/wasm-ffi/exports/wasmkv"
)

func main() {
	out := flag.String("o", "kvstore.wasm", "Output file")
	flag.Parse()

	wasm, err := wasmkv.Module()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, wasm, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", *out, len(wasm))
}
