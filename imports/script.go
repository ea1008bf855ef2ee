package imports

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// script performs the fixed operation sequence against one library. Every
// handle it receives is added to a scope, so the store and any enumeration
// results are released on every exit path.
type script struct {
	ctx    context.Context
	lib    contract.Library
	space  abi.Space
	out    io.Writer
	ledger *abi.Ledger
	d      abi.Destroyer
	scope  *abi.Scope
}

func newScript(ctx context.Context, lib contract.Library, w io.Writer, o options) *script {
	s := &script{
		ctx:   ctx,
		lib:   lib,
		space: lib.Space(),
		out:   w,
	}
	s.d = abi.Destructors(s.space.Table())
	if o.audit {
		s.ledger = abi.NewLedger(s.d)
		s.d = s.ledger
	}
	s.scope = abi.NewScope(s.d)
	return s
}

// own tracks a handle that just crossed into this side and schedules its
// release.
func (s *script) own(fn abi.FuncRef, ptr abi.Ptr, r abi.Releaser) {
	if s.ledger != nil {
		s.ledger.Track(fn, ptr)
	}
	s.scope.Add(r)
}

func (s *script) println(line string) error {
	_, err := fmt.Fprintln(s.out, line)
	return err
}

func (s *script) run(list strategy) (err error) {
	defer func() {
		err = stderrors.Join(err, s.scope.Close(s.ctx), s.audit())
	}()

	store, err := s.lib.Create(s.ctx)
	if err != nil {
		return err
	}
	s.own(store.Destroy, store.Data, &store)

	for _, p := range contract.Seed {
		if err := s.insert(store.Data, p.Key, p.Value); err != nil {
			return err
		}
	}
	if err := s.delete(store.Data, contract.Removed); err != nil {
		return err
	}

	n, err := s.lib.Size(s.ctx, store.Data)
	if err != nil {
		return err
	}
	if err := s.println(contract.SizeLine(n)); err != nil {
		return err
	}

	if err := s.lookup(store.Data, contract.Probe); err != nil {
		return err
	}
	return list(s, store.Data)
}

func (s *script) audit() error {
	if s.ledger == nil {
		return nil
	}
	if n := s.ledger.Live(); n != 0 {
		return errors.ContractViolation(errors.PhaseRelease, fmt.Sprintf("%d handles never released", n))
	}
	return nil
}

func (s *script) insert(store abi.Ptr, key, value string) error {
	f := s.space.Stack().Push()
	defer f.Pop()

	k, err := f.String(key)
	if err != nil {
		return err
	}
	v, err := f.String(value)
	if err != nil {
		return err
	}
	return s.lib.Insert(s.ctx, store, k, v)
}

func (s *script) delete(store abi.Ptr, key string) error {
	f := s.space.Stack().Push()
	defer f.Pop()

	k, err := f.String(key)
	if err != nil {
		return err
	}
	return s.lib.Delete(s.ctx, store, k)
}

func (s *script) lookup(store abi.Ptr, key string) error {
	f := s.space.Stack().Push()
	defer f.Pop()

	k, err := f.String(key)
	if err != nil {
		return err
	}
	v, ok, err := s.lib.Lookup(s.ctx, store, k)
	if err != nil {
		return err
	}
	if !ok {
		return s.println(contract.NotFoundLine(key))
	}
	value, err := v.String(s.space.Memory())
	if err != nil {
		return err
	}
	return s.println(contract.EntryLine(key, value))
}

func (s *script) entry(e contract.Entry) error {
	k, v, err := e.Strings(s.space.Memory())
	if err != nil {
		return err
	}
	return s.println(contract.EntryLine(k, v))
}
