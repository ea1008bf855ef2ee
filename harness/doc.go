// Package harness runs the conformance matrix of the key-value contract.
//
// Every export implementation is paired with every import implementation.
// Builtin members run in-process (exports native and wasmkv, importers
// direct, visitor and cursor); further members are discovered as
// directories holding a component.toml:
//
//	name     = "kv-import-go"
//	role     = "import"            # or "export"
//	kind     = "exec"              # "wasm" for exports
//	build    = "go build -o kv-import ../../cmd/kv-import"
//	command  = ["./kv-import", "--library", "{library}"]
//	artifact = "kvstore.wasm"      # exports only
//
// Each pair's transcript is compared line for line with the golden
// transcript. A pair fails on any difference, on an error, when the export
// holds more allocations after the run than before, or when the release
// ledger records a double release. There is no partial credit: a run fails
// if any build or pair fails.
package harness
