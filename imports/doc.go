// Package imports holds the Go import implementations of the key-value
// contract.
//
// All importers perform the same fixed sequence (insert the seed entries,
// delete one, report the size, look one key up) and differ only in how they
// read the remaining entries:
//
//	direct   enumerate into an owned array and walk its views
//	visitor  pass a host closure to for_each
//	cursor   pull entries from a producer closure
//
// Handles received from the export are released through an abi.Scope, so a
// failing step still frees the store.
package imports
