// Package contract defines the demonstration key-value contract used to
// check that export and import implementations interoperate.
//
// Every operation is expressed with the abi primitives:
//
//	create(ret *OwnedPtr)                         new store, destroy frees it
//	insert(store, key *View, value *View)         last write wins
//	delete(store, key *View)                      absent key is a no-op
//	size(store) u32
//	lookup(store, key *View, out *View) u32       1 if found
//	enumerate(ret *OwnedView, store)              entries in key order
//	clear(store)
//	for_each(store, visitor *Closure)             consumes the visitor
//	cursor(ret *Closure, store)                   next(state, out *Entry) u32
//
// The first six symbols are required. A module also exports the ffi shim
// (ffi_call_destroy, ffi_call_next, ffi_call_visit) so the host can call
// table entries. SchemaText states the core signatures in WIT syntax and
// Schema.Check validates a module's exports against it.
//
// Seed, Removed, Probe and Golden fix the operation sequence and transcript
// that every (export, import) pair must reproduce.
package contract
