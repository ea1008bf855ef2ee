package abi

import (
	"context"
	"testing"
)

func TestOwnedPtr_ReleaseOnce(t *testing.T) {
	ctx := context.Background()
	d := newCountingDestroyer()
	h := Wrap(0x100, 3)

	for range 5 {
		if err := h.Release(ctx, d); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	if d.calls[0x100] != 1 {
		t.Fatalf("destroy calls = %d, want 1", d.calls[0x100])
	}
	if !h.Released() || h.Data != 0 {
		t.Fatalf("handle not reset: %+v", h)
	}
}

func TestOwnedPtr_NullDestroy(t *testing.T) {
	ctx := context.Background()
	d := newCountingDestroyer()
	h := Wrap(0x100, 0)

	if err := h.Release(ctx, d); err != nil {
		t.Fatal(err)
	}
	if len(d.fns) != 0 {
		t.Fatal("release of a non-owning handle reached the destroyer")
	}
	if h.Data != 0x100 {
		t.Fatalf("payload changed: %+v", h)
	}
}

func TestOwnedPtr_NullPayload(t *testing.T) {
	d := newCountingDestroyer()
	h := Wrap(0, 4)
	if err := h.Release(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if len(d.fns) != 0 {
		t.Fatal("destroy called for a null payload")
	}
	if !h.Released() {
		t.Fatal("handle should be released")
	}
}

func TestOwnedPtr_Take(t *testing.T) {
	ctx := context.Background()
	d := newCountingDestroyer()
	producer := Wrap(0x200, 3)

	consumer := producer.Take()
	if !producer.Released() {
		t.Fatal("producer still owns after Take")
	}
	producer.Release(ctx, d)
	consumer.Release(ctx, d)
	producer.Release(ctx, d)

	if d.calls[0x200] != 1 {
		t.Fatalf("destroy calls = %d, want 1", d.calls[0x200])
	}
}

func TestOwnedView_ReleasesData(t *testing.T) {
	ctx := context.Background()
	d := newCountingDestroyer()
	h := WrapView(MakeView(0x300, 4), 9)

	h.Release(ctx, d)
	h.Release(ctx, d)

	if d.calls[0x300] != 1 || d.fns[0] != 9 {
		t.Fatalf("calls = %v fns = %v", d.calls, d.fns)
	}
	if h.View != (View{}) || !h.Released() {
		t.Fatalf("handle not reset: %+v", h)
	}
}

func TestDestructors(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable()
	tbl.funcs[2] = func([]uint64) uint64 { return 0 }

	d := Destructors(tbl)
	if err := d.Destroy(ctx, 2, 0x40); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if len(tbl.calls) != 1 || tbl.calls[0].args[0] != 0x40 {
		t.Fatalf("calls = %+v", tbl.calls)
	}
	if err := d.Destroy(ctx, 0, 0x40); err == nil {
		t.Fatal("null destroy should fail")
	}
	if err := d.Destroy(ctx, 7, 0x40); err == nil {
		t.Fatal("unknown function should fail")
	}
}
