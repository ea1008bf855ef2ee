package abi

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestTrampolines_MakeDispatchDrop(t *testing.T) {
	ctx := context.Background()
	tr := NewTrampolines(5, 6)

	var visited []uint64
	dropped := 0
	c, err := tr.Make(func(_ context.Context, args []uint64) (uint64, error) {
		visited = append(visited, args...)
		return 1, nil
	}, func() { dropped++ })
	if err != nil {
		t.Fatal(err)
	}
	if c.Call != 5 || c.Destroy != 6 || c.State == 0 {
		t.Fatalf("closure = %+v", c)
	}

	res, err := tr.Dispatch(ctx, c.State, []uint64{7, 8})
	if err != nil || res != 1 {
		t.Fatalf("Dispatch = %d, %v", res, err)
	}
	if len(visited) != 2 || visited[0] != 7 {
		t.Fatalf("visited = %v", visited)
	}
	if tr.Live() != 1 {
		t.Fatalf("Live = %d, want 1", tr.Live())
	}

	if !tr.Drop(c.State) {
		t.Fatal("first Drop should report live state")
	}
	if tr.Drop(c.State) {
		t.Fatal("second Drop should be a no-op")
	}
	if dropped != 1 || tr.Live() != 0 {
		t.Fatalf("dropped = %d live = %d", dropped, tr.Live())
	}

	_, err = tr.Dispatch(ctx, c.State, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindReleased}) {
		t.Fatalf("Dispatch after drop = %v", err)
	}
}

func TestTrampolines_ThroughTable(t *testing.T) {
	ctx := context.Background()
	tr := NewTrampolines(5, 6)
	tbl := newTestTable()
	tbl.funcs[5] = func(args []uint64) uint64 {
		r, _ := tr.Dispatch(ctx, Ptr(args[0]), args[1:])
		return r
	}
	tbl.funcs[6] = func(args []uint64) uint64 {
		tr.Drop(Ptr(args[0]))
		return 0
	}

	c, _ := tr.Make(func(_ context.Context, args []uint64) (uint64, error) {
		return args[0] * 2, nil
	}, nil)

	res, err := c.Invoke(ctx, tbl, 21)
	if err != nil || res[0] != 42 {
		t.Fatalf("Invoke = %v, %v", res, err)
	}
	if err := c.Release(ctx, Destructors(tbl)); err != nil {
		t.Fatal(err)
	}
	if tr.Live() != 0 {
		t.Fatalf("Live = %d after release", tr.Live())
	}
}

func TestTrampolines_NoSlots(t *testing.T) {
	tr := NewTrampolines(0, 0)
	if _, err := tr.Make(nil, nil); err == nil {
		t.Fatal("Make without host slots should fail")
	}
}
