// Package errors provides structured error types for the wasm-ffi module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the exported symbol involved, a field path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLink, errors.KindTypeMismatch).
//		Symbol("lookup").
//		Detail("expected (i32 i32 i32) -> i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Released(errors.PhaseInvoke, "closure")
//	err := errors.OutOfBounds(errors.PhaseLayout, path, 10, 5)
//
// Releasing a handle twice is not an error. KindDoubleRelease is only produced
// by a release ledger that refuses to run a destructor a second time for the
// same allocation.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
