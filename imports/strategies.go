package imports

import (
	"context"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// listDirect enumerates into an owned array and walks it.
func listDirect(s *script, store abi.Ptr) error {
	entries, err := s.lib.Enumerate(s.ctx, store)
	if err != nil {
		return err
	}
	s.own(entries.Destroy, entries.View.Data, &entries)

	for e, err := range abi.Elements(s.space.Memory(), entries.View, contract.EntryCodec) {
		if err != nil {
			return err
		}
		if err := s.entry(e); err != nil {
			return err
		}
	}
	return nil
}

// listVisitor hands the export a host closure and lets it drive iteration.
// The export consumes the closure.
func listVisitor(s *script, store abi.Ptr) error {
	if !s.lib.Supports(contract.SymForEach) {
		return errors.Unsupported(errors.PhaseContract, contract.SymForEach)
	}
	mem := s.space.Memory()
	visitor, err := s.space.Trampolines().Make(func(_ context.Context, args []uint64) (uint64, error) {
		if len(args) < 2 {
			return 0, errors.InvalidInput(errors.PhaseInvoke, "visitor takes (key*, value*)")
		}
		k, err := abi.LoadView(mem, abi.Ptr(args[0]))
		if err != nil {
			return 0, err
		}
		v, err := abi.LoadView(mem, abi.Ptr(args[1]))
		if err != nil {
			return 0, err
		}
		if err := s.entry(contract.Entry{Key: k, Value: v}); err != nil {
			return 0, err
		}
		return 1, nil
	}, nil)
	if err != nil {
		return err
	}
	return s.lib.ForEach(s.ctx, store, visitor)
}

// listCursor pulls entries from a producer closure until it is exhausted.
func listCursor(s *script, store abi.Ptr) error {
	if !s.lib.Supports(contract.SymCursor) {
		return errors.Unsupported(errors.PhaseContract, contract.SymCursor)
	}
	cursor, err := s.lib.Cursor(s.ctx, store)
	if err != nil {
		return err
	}
	s.own(cursor.Destroy, cursor.State, &cursor)

	for {
		e, ok, err := contract.Next(s.ctx, s.space, &cursor)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.entry(e); err != nil {
			return err
		}
	}
}
