// Package native implements the key-value contract in Go.
//
// The store lives in an arena address space with the same word layout a
// wasm32 component uses, so importers cannot tell it from a compiled
// export. Keys and values are copied into arena allocations on insert;
// entries are kept sorted by key with binary search.
package native
