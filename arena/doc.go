// Package arena provides a native Go address space.
//
// A Space owns a page-granular linear memory, a first-fit allocator over its
// heap, a table of Go functions indexed by function pointer, a caller stack
// and host trampolines. Components written in Go lay their data out in the
// arena with the same word layout a wasm32 module uses, so an importer reads
// a native store and a wasm store with the same code.
//
// Memory layout:
//
//	[0, 16)                  null guard, never allocated
//	[16, 16+StackSize)       caller stack
//	[heap base, size)        allocator heap, grows a page at a time
//
// Table slots 1 and 2 are the host closure call and drop slots.
package arena
