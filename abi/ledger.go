package abi

import (
	"context"
	"sync"

	"github.com/wippyai/wasm-ffi/errors"
)

type ledgerKey struct {
	fn  FuncRef
	ptr Ptr
}

// Ledger is a Destroyer that counts destroy invocations per allocation and
// refuses to destroy a tracked allocation twice. Allocations become tracked
// through Track when a handle crosses into the consumer; untracked pointers
// are passed through and counted.
//
// A Ledger is passed explicitly to the code that releases handles. It is
// safe for concurrent use.
type Ledger struct {
	next       Destroyer
	mu         sync.Mutex
	calls      map[ledgerKey]int
	live       map[ledgerKey]bool
	violations []error
}

// NewLedger wraps next.
func NewLedger(next Destroyer) *Ledger {
	return &Ledger{
		next:  next,
		calls: make(map[ledgerKey]int),
		live:  make(map[ledgerKey]bool),
	}
}

// Track marks the allocation behind (fn, ptr) as live. Null pointers and
// null destroy functions are ignored.
func (l *Ledger) Track(fn FuncRef, ptr Ptr) {
	if fn == 0 || ptr == 0 {
		return
	}
	l.mu.Lock()
	l.live[ledgerKey{fn, ptr}] = true
	l.mu.Unlock()
}

// Destroy forwards to the wrapped Destroyer unless the allocation is tracked
// and already destroyed, in which case it records and returns a double
// release error without reaching the destructor.
func (l *Ledger) Destroy(ctx context.Context, fn FuncRef, ptr Ptr) error {
	k := ledgerKey{fn, ptr}
	l.mu.Lock()
	live, tracked := l.live[k]
	if tracked && !live {
		err := errors.DoubleRelease(uint32(ptr), uint32(fn))
		l.violations = append(l.violations, err)
		l.mu.Unlock()
		return err
	}
	if tracked {
		l.live[k] = false
	}
	l.calls[k]++
	l.mu.Unlock()

	return l.next.Destroy(ctx, fn, ptr)
}

// Calls returns how many times destroy fn reached ptr.
func (l *Ledger) Calls(fn FuncRef, ptr Ptr) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[ledgerKey{fn, ptr}]
}

// Live returns the number of tracked allocations not yet destroyed.
func (l *Ledger) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, live := range l.live {
		if live {
			n++
		}
	}
	return n
}

// Violations returns the double releases refused so far.
func (l *Ledger) Violations() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]error, len(l.violations))
	copy(out, l.violations)
	return out
}
