package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindTypeMismatch,
				Path:   []string{"entries", "3", "key"},
				Symbol: "lookup",
				Detail: "wrong arity",
			},
			contains: []string{"[link]", "type_mismatch", "entries.3.key", "in lookup", "wrong arity"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLayout,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[layout]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRelease,
				Kind:   KindAllocation,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[release]", "allocation", "arena full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindTrap,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseInvoke,
		Kind:   KindReleased,
		Detail: "closure used after release",
	}

	if !err.Is(&Error{Phase: PhaseInvoke, Kind: KindReleased}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseRelease, Kind: KindReleased}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseInvoke, Kind: KindTrap}) {
		t.Error("Is should not match different kind")
	}

	var wrapped error = Wrap(PhaseContract, KindInvalidData, err, "enumerate")
	if !errors.Is(wrapped, &Error{Phase: PhaseInvoke, Kind: KindReleased}) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLink, KindTypeMismatch).
		Path("exports", "insert").
		Symbol("insert").
		Value(3).
		Cause(cause).
		Detail("expected %d params, got %d", 3, 2).
		Build()

	if err.Phase != PhaseLink {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLink)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[1] != "insert" {
		t.Errorf("Path = %v, want [exports insert]", err.Path)
	}
	if err.Symbol != "insert" {
		t.Errorf("Symbol = %q, want insert", err.Symbol)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v, want 3", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected 3 params, got 2" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseLayout, []string{"view"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("MemoryOutOfBounds", func(t *testing.T) {
		err := MemoryOutOfBounds(PhaseLayout, 65536, 8)
		if !strings.Contains(err.Detail, "offset=65536") {
			t.Errorf("Detail = %q, should contain offset", err.Detail)
		}
	})

	t.Run("Released", func(t *testing.T) {
		err := Released(PhaseInvoke, "closure")
		if err.Kind != KindReleased {
			t.Errorf("Kind = %v, want %v", err.Kind, KindReleased)
		}
		if err.Detail != "closure used after release" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("DoubleRelease", func(t *testing.T) {
		err := DoubleRelease(0x100, 2)
		if err.Kind != KindDoubleRelease || err.Phase != PhaseRelease {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Value != uint32(0x100) {
			t.Errorf("Value = %v, want 0x100", err.Value)
		}
	})

	t.Run("NullFunction", func(t *testing.T) {
		err := NullFunction(PhaseInvoke)
		if err.Kind != KindNullFunction {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNullFunction)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseContract, 1024, 4)
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch("size", "(i32) -> i32", "(i32)")
		if err.Symbol != "size" || err.Phase != PhaseLink {
			t.Errorf("Symbol=%q Phase=%v", err.Symbol, err.Phase)
		}
	})

	t.Run("MissingExport", func(t *testing.T) {
		err := MissingExport("enumerate")
		if err.Kind != KindMissingExport {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMissingExport)
		}
		if !strings.Contains(err.Error(), "in enumerate") {
			t.Errorf("Error() = %q, should name the symbol", err.Error())
		}
	})

	t.Run("Trap", func(t *testing.T) {
		cause := errors.New("unreachable")
		err := Trap("insert", cause)
		if !errors.Is(err, cause) {
			t.Error("Trap should wrap its cause")
		}
	})
	t.Run("InvalidData", func(t *testing.T) {
		err := InvalidData(PhaseLoad, []string{"ffi_scratch_base"}, "scratch region outside memory")
		if err.Kind != KindInvalidData || !strings.Contains(err.Error(), "at ffi_scratch_base") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		cause := errors.New("unknown type")
		err := ParseFailed("param type of insert", cause)
		if err.Phase != PhaseParse || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
		if err.Detail != "parse param type of insert" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})
}
