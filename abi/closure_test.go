package abi

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestClosure_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable()
	tbl.funcs[1] = func(args []uint64) uint64 { return args[0] + args[1] }
	tbl.funcs[2] = func([]uint64) uint64 { return 0 }

	c := MakeClosure(1, 100, 2)
	for i := uint64(0); i < 5; i++ {
		res, err := c.Invoke(ctx, tbl, i)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if res[0] != 100+i {
			t.Fatalf("result = %d, want %d", res[0], 100+i)
		}
	}

	d := Destructors(tbl)
	if err := c.Release(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(ctx, d); err != nil {
		t.Fatal(err)
	}
	if tbl.callsTo(2) != 1 {
		t.Fatalf("destroy calls = %d, want 1", tbl.callsTo(2))
	}

	before := len(tbl.calls)
	_, err := c.Invoke(ctx, tbl, 1)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindReleased}) {
		t.Fatalf("Invoke after release = %v", err)
	}
	if len(tbl.calls) != before {
		t.Fatal("invoke after release reached the table")
	}
}

func TestClosure_StateIsFirstArgument(t *testing.T) {
	tbl := newTestTable()
	var gotState uint64
	tbl.funcs[4] = func(args []uint64) uint64 {
		gotState = args[0]
		return 1
	}
	c := MakeClosure(4, 0xABC, 0)
	if _, err := c.Invoke(context.Background(), tbl, 7, 8); err != nil {
		t.Fatal(err)
	}
	if gotState != 0xABC {
		t.Fatalf("state = %#x, want 0xabc", gotState)
	}
}

func TestClosure_Take(t *testing.T) {
	ctx := context.Background()
	d := newCountingDestroyer()
	src := MakeClosure(1, 5, 2)

	dst := src.Take()
	if !src.Released() {
		t.Fatal("source still bound after Take")
	}
	src.Release(ctx, d)
	dst.Release(ctx, d)
	if d.calls[5] != 1 {
		t.Fatalf("destroy calls = %d, want 1", d.calls[5])
	}
}

func TestClosure_NullCall(t *testing.T) {
	c := MakeClosure(0, 5, 2)
	_, err := c.Invoke(context.Background(), newTestTable())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindNullFunction}) {
		t.Fatalf("err = %v", err)
	}
}
