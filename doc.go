// Package wasmffi implements an ownership-transfer convention for values that
// cross between independently compiled components through a plain C ABI.
//
// The ABI is the wasm32 C ABI: machine words are four bytes, pointers are
// offsets into a shared linear address space and function pointers are indices
// into that space's function table. A component is anything that lives in such
// a space: a core wasm module produced by any language targeting wasm32, or a
// native Go component operating on a Go-owned arena.
//
// # Architecture Overview
//
//	wasmffi/            Root package with the Memory, Allocator and Table interfaces
//	├── abi/            Borrowed views, owning handles, closure trampolines, caller stack
//	├── arena/          Native Go address space (memory, allocator, function table)
//	├── wasmhost/       wazero-backed address space for wasm32 components
//	├── wasmgen/        Minimal wasm binary assembler
//	├── contract/       Demonstration key-value contract, schema and golden transcript
//	├── exports/        Export implementations of the contract
//	├── imports/        Import implementations of the contract
//	├── harness/        Conformance harness running every export x import pair
//	├── resource/       Handle table backing host-produced closure state
//	├── errors/         Structured error types
//	└── cmd/            ffi-conform, kv-import and kv-export commands
//
// # Primitives
//
// Three primitives make up the convention:
//
//	View      (data, length)                  8 bytes, never freed
//	OwnedPtr  (data, destroy)                 8 bytes, destroy(data) at most once
//	OwnedView (data, length, destroy)        12 bytes, destroy(data) at most once
//	Closure   (call, state, destroy)         12 bytes, destroy(state) at most once
//
// Releasing a handle twice is a no-op, so explicit release and a later
// finalizer-driven release never double free.
//
// # Thread Safety
//
// Primitives are not safe for concurrent release of the same handle. A handle
// shared across goroutines must be released under external synchronization.
package wasmffi
