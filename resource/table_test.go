package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestTable_Basic(t *testing.T) {
	tbl := NewTable[string]()

	handle, err := tbl.Insert("test value")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := tbl.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, ok = tbl.Remove(handle)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok := tbl.Get(handle); ok {
		t.Fatal("Expected Get to fail after Remove")
	}
}

func TestTable_RemoveIdempotent(t *testing.T) {
	tbl := NewTable[int]()
	h, _ := tbl.Insert(7)

	if _, ok := tbl.Remove(h); !ok {
		t.Fatal("first Remove should succeed")
	}
	if _, ok := tbl.Remove(h); ok {
		t.Fatal("second Remove should report false")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len = %d, want 0", tbl.Len())
	}
}

func TestTable_InvalidHandles(t *testing.T) {
	tbl := NewTable[int]()

	tests := []struct {
		name   string
		handle Handle
	}{
		{"zero", 0},
		{"never issued", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tbl.Get(tt.handle); ok {
				t.Error("Get should fail")
			}
			if _, ok := tbl.Remove(tt.handle); ok {
				t.Error("Remove should fail")
			}
		})
	}
}

func TestTable_HandleReuse(t *testing.T) {
	tbl := NewTable[int]()

	h1, _ := tbl.Insert(1)
	tbl.Remove(h1)
	h2, _ := tbl.Insert(2)

	if h1 != h2 {
		t.Fatalf("Expected handle reuse: h1=%d, h2=%d", h1, h2)
	}
	val, _ := tbl.Get(h2)
	if val != 2 {
		t.Fatalf("Expected 2, got %d", val)
	}
}

func TestTable_Each(t *testing.T) {
	tbl := NewTable[int]()
	for i := 1; i <= 3; i++ {
		tbl.Insert(i * 10)
	}
	h, _ := tbl.Insert(99)
	tbl.Remove(h)

	sum := 0
	tbl.Each(func(_ Handle, v int) bool {
		sum += v
		return true
	})
	if sum != 60 {
		t.Fatalf("sum = %d, want 60", sum)
	}

	visited := 0
	tbl.Each(func(Handle, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
}

type dropCounter struct{ n *int }

func (d dropCounter) Drop() { *d.n++ }

func TestTable_Close(t *testing.T) {
	dropped := 0
	tbl := NewTable[dropCounter]()
	tbl.Insert(dropCounter{&dropped})
	tbl.Insert(dropCounter{&dropped})

	if err := tbl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := tbl.Insert(dropCounter{&dropped}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Insert after Close = %v, want ErrClosed", err)
	}
}

func TestTable_Concurrent(t *testing.T) {
	tbl := NewTable[int]()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h, err := tbl.Insert(v)
				if err != nil {
					t.Errorf("Insert failed: %v", err)
					return
				}
				if got, ok := tbl.Get(h); !ok || got != v {
					t.Errorf("Get(%d) = %d, %v", h, got, ok)
				}
				tbl.Remove(h)
			}
		}(i)
	}
	wg.Wait()

	if tbl.Len() != 0 {
		t.Fatalf("Len = %d, want 0", tbl.Len())
	}
}
