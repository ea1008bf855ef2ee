package abi

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestLedger_RefusesSecondDestroy(t *testing.T) {
	ctx := context.Background()
	inner := newCountingDestroyer()
	l := NewLedger(inner)
	l.Track(2, 0x100)

	// A confused producer kept an aliasing handle and releases it too.
	consumer := Wrap(0x100, 2)
	alias := consumer

	if err := consumer.Release(ctx, l); err != nil {
		t.Fatal(err)
	}
	err := alias.Release(ctx, l)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRelease, Kind: errors.KindDoubleRelease}) {
		t.Fatalf("alias release = %v", err)
	}
	if inner.calls[0x100] != 1 {
		t.Fatalf("destructor reached %d times, want 1", inner.calls[0x100])
	}
	if l.Calls(2, 0x100) != 1 {
		t.Fatalf("Calls = %d, want 1", l.Calls(2, 0x100))
	}
	if len(l.Violations()) != 1 {
		t.Fatalf("violations = %v", l.Violations())
	}
}

func TestLedger_Untracked(t *testing.T) {
	ctx := context.Background()
	inner := newCountingDestroyer()
	l := NewLedger(inner)

	l.Destroy(ctx, 3, 0x10)
	l.Destroy(ctx, 3, 0x10)
	if inner.calls[0x10] != 2 || l.Calls(3, 0x10) != 2 {
		t.Fatalf("untracked destroys should pass through: inner=%d ledger=%d", inner.calls[0x10], l.Calls(3, 0x10))
	}
	if len(l.Violations()) != 0 {
		t.Fatal("untracked destroys are not violations")
	}
}

func TestLedger_Live(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newCountingDestroyer())
	l.Track(1, 0x10)
	l.Track(1, 0x20)
	l.Track(0, 0x30)
	l.Track(1, 0)

	if l.Live() != 2 {
		t.Fatalf("Live = %d, want 2", l.Live())
	}
	l.Destroy(ctx, 1, 0x10)
	if l.Live() != 1 {
		t.Fatalf("Live = %d, want 1", l.Live())
	}

	// reallocation at the same address is a fresh allocation
	l.Track(1, 0x10)
	if err := l.Destroy(ctx, 1, 0x10); err != nil {
		t.Fatalf("destroy of reallocated pointer: %v", err)
	}
}

func TestLedger_CallsPerAllocation(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(newCountingDestroyer())

	// the same address handed out by two allocators is two allocations
	l.Destroy(ctx, 1, 0x40)
	l.Destroy(ctx, 2, 0x40)
	l.Destroy(ctx, 2, 0x40)

	if n := l.Calls(1, 0x40); n != 1 {
		t.Errorf("Calls(1, 0x40) = %d, want 1", n)
	}
	if n := l.Calls(2, 0x40); n != 2 {
		t.Errorf("Calls(2, 0x40) = %d, want 2", n)
	}
	if n := l.Calls(3, 0x40); n != 0 {
		t.Errorf("Calls(3, 0x40) = %d, want 0", n)
	}
}
