package wasmhost

import (
	"context"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// Library binds the key-value contract to a module's exports. Aggregate
// arguments and return areas are staged on the space's caller stack.
type Library struct {
	name    string
	space   *Space
	missing map[string]bool
}

// Bind validates the module's exports against the contract schema and
// returns a library over them.
func Bind(name string, space *Space) (*Library, error) {
	missing, err := contract.DefaultSchema().Check(space.Exports(), contract.Required)
	if err != nil {
		return nil, err
	}
	l := &Library{name: name, space: space, missing: make(map[string]bool)}
	for _, m := range missing {
		l.missing[m] = true
	}
	return l, nil
}

// Open loads wasm and binds the contract to it.
func (e *Engine) Open(ctx context.Context, name string, wasm []byte) (*Library, error) {
	space, err := e.Load(ctx, name, wasm)
	if err != nil {
		return nil, err
	}
	lib, err := Bind(name, space)
	if err != nil {
		space.Close(ctx)
		return nil, err
	}
	return lib, nil
}

func (l *Library) Name() string     { return l.name }
func (l *Library) Space() abi.Space { return l.space }

func (l *Library) Supports(symbol string) bool {
	return !l.missing[symbol]
}

func (l *Library) require(symbol string) error {
	if l.missing[symbol] {
		return errors.Unsupported(errors.PhaseContract, symbol)
	}
	return nil
}

func (l *Library) Create(ctx context.Context) (abi.OwnedPtr, error) {
	f := l.space.stack.Push()
	defer f.Pop()

	ret, err := f.Alloc(abi.OwnedPtrSize, abi.Align)
	if err != nil {
		return abi.OwnedPtr{}, err
	}
	if _, err := l.space.Call(ctx, contract.SymCreate, uint64(ret)); err != nil {
		return abi.OwnedPtr{}, err
	}
	return abi.LoadOwnedPtr(l.space.mem, ret)
}

func (l *Library) Insert(ctx context.Context, store abi.Ptr, key, value abi.View) error {
	f := l.space.stack.Push()
	defer f.Pop()

	kp, err := f.View(key)
	if err != nil {
		return err
	}
	vp, err := f.View(value)
	if err != nil {
		return err
	}
	_, err = l.space.Call(ctx, contract.SymInsert, uint64(store), uint64(kp), uint64(vp))
	return err
}

func (l *Library) Delete(ctx context.Context, store abi.Ptr, key abi.View) error {
	f := l.space.stack.Push()
	defer f.Pop()

	kp, err := f.View(key)
	if err != nil {
		return err
	}
	_, err = l.space.Call(ctx, contract.SymDelete, uint64(store), uint64(kp))
	return err
}

func (l *Library) Size(ctx context.Context, store abi.Ptr) (uint32, error) {
	res, err := l.space.Call(ctx, contract.SymSize, uint64(store))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (l *Library) Lookup(ctx context.Context, store abi.Ptr, key abi.View) (abi.View, bool, error) {
	f := l.space.stack.Push()
	defer f.Pop()

	kp, err := f.View(key)
	if err != nil {
		return abi.View{}, false, err
	}
	out, err := f.Alloc(abi.ViewSize, abi.Align)
	if err != nil {
		return abi.View{}, false, err
	}
	res, err := l.space.Call(ctx, contract.SymLookup, uint64(store), uint64(kp), uint64(out))
	if err != nil {
		return abi.View{}, false, err
	}
	if uint32(res[0]) == 0 {
		return abi.View{}, false, nil
	}
	v, err := abi.LoadView(l.space.mem, out)
	if err != nil {
		return abi.View{}, false, err
	}
	return v, true, nil
}

func (l *Library) Enumerate(ctx context.Context, store abi.Ptr) (abi.OwnedView, error) {
	f := l.space.stack.Push()
	defer f.Pop()

	ret, err := f.Alloc(abi.OwnedViewSize, abi.Align)
	if err != nil {
		return abi.OwnedView{}, err
	}
	if _, err := l.space.Call(ctx, contract.SymEnumerate, uint64(ret), uint64(store)); err != nil {
		return abi.OwnedView{}, err
	}
	return abi.LoadOwnedView(l.space.mem, ret)
}

func (l *Library) Clear(ctx context.Context, store abi.Ptr) error {
	if err := l.require(contract.SymClear); err != nil {
		return err
	}
	_, err := l.space.Call(ctx, contract.SymClear, uint64(store))
	return err
}

func (l *Library) ForEach(ctx context.Context, store abi.Ptr, visitor abi.Closure) error {
	if err := l.require(contract.SymForEach); err != nil {
		visitor.Release(ctx, abi.Destructors(l.space.table))
		return err
	}
	f := l.space.stack.Push()
	defer f.Pop()

	cp, err := f.Alloc(abi.ClosureSize, abi.Align)
	if err != nil {
		visitor.Release(ctx, abi.Destructors(l.space.table))
		return err
	}
	c := visitor.Take()
	if err := abi.StoreClosure(l.space.mem, cp, c); err != nil {
		c.Release(ctx, abi.Destructors(l.space.table))
		return err
	}
	_, err = l.space.Call(ctx, contract.SymForEach, uint64(store), uint64(cp))
	return err
}

func (l *Library) Cursor(ctx context.Context, store abi.Ptr) (abi.Closure, error) {
	if err := l.require(contract.SymCursor); err != nil {
		return abi.Closure{}, err
	}
	f := l.space.stack.Push()
	defer f.Pop()

	ret, err := f.Alloc(abi.ClosureSize, abi.Align)
	if err != nil {
		return abi.Closure{}, err
	}
	if _, err := l.space.Call(ctx, contract.SymCursor, uint64(ret), uint64(store)); err != nil {
		return abi.Closure{}, err
	}
	return abi.LoadClosure(l.space.mem, ret)
}

// Live reads the module's live allocation counter.
func (l *Library) Live(_ context.Context) (int, error) {
	n, ok := l.space.Global(GlobalLive)
	if !ok {
		return 0, errors.Unsupported(errors.PhaseContract, GlobalLive)
	}
	return int(n), nil
}

func (l *Library) Close(ctx context.Context) error {
	return l.space.Close(ctx)
}

var _ contract.Library = (*Library)(nil)
