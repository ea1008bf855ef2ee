package abi

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-ffi/errors"
)

func TestStack_FrameLifecycle(t *testing.T) {
	mem := newTestMemory(256)
	s := NewStack(mem, 64, 128)

	f := s.Push()
	v, err := f.String("Alice")
	if err != nil {
		t.Fatal(err)
	}
	if v.Data != 64 || v.Len != 5 {
		t.Fatalf("view = %+v", v)
	}
	got, _ := v.String(mem)
	if got != "Alice" {
		t.Fatalf("content = %q", got)
	}

	p, err := f.View(v)
	if err != nil {
		t.Fatal(err)
	}
	if p%Align != 0 {
		t.Fatalf("view struct at %d is not word aligned", p)
	}
	stored, _ := LoadView(mem, p)
	if stored != v {
		t.Fatalf("stored = %+v, want %+v", stored, v)
	}

	if err := f.Pop(); err != nil {
		t.Fatal(err)
	}
	if s.Used() != 0 || s.Depth() != 0 {
		t.Fatalf("used = %d depth = %d after pop", s.Used(), s.Depth())
	}
	if err := f.Pop(); err != nil {
		t.Fatalf("second pop: %v", err)
	}
	if _, err := f.Alloc(4, 4); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindReleased}) {
		t.Fatalf("alloc in popped frame = %v", err)
	}
}

func TestStack_OutOfOrder(t *testing.T) {
	s := NewStack(newTestMemory(128), 16, 64)
	outer := s.Push()
	inner := s.Push()

	violation := &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindContractViolation}
	if err := outer.Pop(); !stderrors.Is(err, violation) {
		t.Fatalf("outer pop = %v", err)
	}
	if _, err := outer.Alloc(1, 1); !stderrors.Is(err, violation) {
		t.Fatalf("outer alloc = %v", err)
	}
	if err := inner.Pop(); err != nil {
		t.Fatal(err)
	}
	if err := outer.Pop(); err != nil {
		t.Fatal(err)
	}
}

func TestStack_Exhausted(t *testing.T) {
	s := NewStack(newTestMemory(128), 16, 8)
	f := s.Push()
	defer f.Pop()

	if _, err := f.Bytes([]byte("0123456789")); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindAllocation}) {
		t.Fatalf("err = %v", err)
	}
	if s.Used() != 0 {
		t.Fatalf("failed alloc moved the top: %d", s.Used())
	}
}

func TestStack_NestedFramesReuseSpace(t *testing.T) {
	s := NewStack(newTestMemory(128), 16, 64)
	outer := s.Push()
	a, _ := outer.Alloc(8, 4)

	inner := s.Push()
	b, _ := inner.Alloc(8, 4)
	inner.Pop()

	inner2 := s.Push()
	c, _ := inner2.Alloc(8, 4)
	inner2.Pop()
	outer.Pop()

	if b != c {
		t.Fatalf("inner frames should reuse space: %d vs %d", b, c)
	}
	if a == b {
		t.Fatal("inner frame overlapped outer allocation")
	}
}

func TestStack_AlignmentMustBePowerOfTwo(t *testing.T) {
	s := NewStack(newTestMemory(128), 16, 64)
	f := s.Push()
	defer f.Pop()

	if _, err := f.Alloc(4, 3); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindInvalidInput}) {
		t.Fatalf("err = %v", err)
	}
	if s.Used() != 0 {
		t.Fatalf("rejected alloc moved the top: %d", s.Used())
	}
	p, err := f.Alloc(4, 8)
	if err != nil || p%8 != 0 {
		t.Fatalf("Alloc(4, 8) = %#x, %v", p, err)
	}
}
