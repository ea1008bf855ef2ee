package arena

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-ffi/abi"
)

func TestSpace_Layout(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.Allocator().Alloc(8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if p < nullGuard+DefaultConfig().StackSize {
		t.Fatalf("heap allocation %d overlaps the caller stack", p)
	}

	f := s.Stack().Push()
	v, err := f.String("key")
	if err != nil {
		t.Fatal(err)
	}
	if v.Data < nullGuard || v.Data >= abi.Ptr(p) {
		t.Fatalf("stack data at %d outside the stack region", v.Data)
	}
	f.Pop()
}

func TestSpace_Table(t *testing.T) {
	ctx := context.Background()
	s, _ := New(DefaultConfig())

	fn := s.Funcs().Register(func(_ context.Context, args []uint64) (uint64, error) {
		return args[0] + 1, nil
	})
	res, err := s.Table().Call(ctx, uint32(fn), 41)
	if err != nil || res[0] != 42 {
		t.Fatalf("Call = %v, %v", res, err)
	}

	if _, err := s.Table().Call(ctx, 0); err == nil {
		t.Fatal("calling the null function should fail")
	}
	if _, err := s.Table().Call(ctx, 999); err == nil {
		t.Fatal("calling an unknown index should fail")
	}
}

func TestSpace_HostClosure(t *testing.T) {
	ctx := context.Background()
	s, _ := New(DefaultConfig())

	dropped := false
	c, err := s.Trampolines().Make(func(_ context.Context, args []uint64) (uint64, error) {
		return args[0] * 3, nil
	}, func() { dropped = true })
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Invoke(ctx, s.Table(), 5)
	if err != nil || res[0] != 15 {
		t.Fatalf("Invoke = %v, %v", res, err)
	}
	if err := c.Release(ctx, abi.Destructors(s.Table())); err != nil {
		t.Fatal(err)
	}
	if !dropped || s.Trampolines().Live() != 0 {
		t.Fatalf("dropped = %v live = %d", dropped, s.Trampolines().Live())
	}
}

func TestSpace_StackTooLarge(t *testing.T) {
	if _, err := New(Config{InitialPages: 1, MaxPages: 1, StackSize: PageSize}); err == nil {
		t.Fatal("stack larger than memory limit should fail")
	}
}
