// Package resource maps integer handles to Go values.
//
// Foreign code can only hold plain words. When the Go side needs to hand it
// opaque state, such as the state pointer of a host-produced closure, the value
// is stored in a Table and the handle travels instead:
//
//	states := resource.NewTable[*hostState]()
//
//	h, err := states.Insert(state)   // handle crosses the boundary
//	state, ok := states.Get(h)       // borrowed lookup on every call
//	state, ok = states.Remove(h)     // destroy: first call wins
//
// Handle 0 is never issued, so it can stand for the null state. Remove is
// idempotent: only the first call for a handle returns ok. Handles of removed
// values are reused by later inserts.
//
// A Table is safe for concurrent use.
package resource
