package wasmhost

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/errors"
)

// HostModule is the import module name under which host closures are
// provided to components.
const HostModule = "ffi"

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine runs wasm32 components under wazero. Every loaded module gets its
// own address space.
type Engine struct {
	runtime wazero.Runtime
	mu      sync.RWMutex
	spaces  map[string]*Space
	seq     atomic.Uint64
}

// NewEngine creates a wazero runtime and registers the ffi host module.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		spaces:  make(map[string]*Space),
	}
	if err := e.registerHost(ctx); err != nil {
		e.runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

func (e *Engine) registerHost(ctx context.Context) error {
	i32 := api.ValueTypeI32
	_, err := e.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.closureCall), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		Export("closure_call").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.closureDrop), []api.ValueType{i32}, nil).
		Export("closure_drop").
		Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err)
	}
	return nil
}

// closureCall runs a host closure on behalf of the calling module. Errors
// surface as a trap of the guest call that reached it.
func (e *Engine) closureCall(ctx context.Context, mod api.Module, stack []uint64) {
	s := e.lookup(mod.Name())
	if s == nil {
		panic(errors.NotFound(errors.PhaseInvoke, "address space", mod.Name()))
	}
	res, err := s.tramp.Dispatch(ctx, abi.Ptr(uint32(stack[0])), []uint64{stack[1], stack[2]})
	if err != nil {
		Logger().Warn("host closure failed",
			zap.String("module", mod.Name()),
			zap.Uint32("state", uint32(stack[0])),
			zap.Error(err))
		panic(err)
	}
	stack[0] = uint64(uint32(res))
}

func (e *Engine) closureDrop(_ context.Context, mod api.Module, stack []uint64) {
	s := e.lookup(mod.Name())
	if s == nil {
		panic(errors.NotFound(errors.PhaseInvoke, "address space", mod.Name()))
	}
	s.tramp.Drop(abi.Ptr(uint32(stack[0])))
}

func (e *Engine) lookup(name string) *Space {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spaces[name]
}

func (e *Engine) forget(name string) {
	e.mu.Lock()
	delete(e.spaces, name)
	e.mu.Unlock()
}

// Load compiles and instantiates a core module and returns its address
// space. The same binary may be loaded any number of times; each load is an
// independent instance.
func (e *Engine) Load(ctx context.Context, name string, wasm []byte) (*Space, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}

	instName := fmt.Sprintf("%s#%d", name, e.seq.Add(1))
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(instName))
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	s, err := newSpace(e, instName, mod)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}

	e.mu.Lock()
	e.spaces[instName] = s
	e.mu.Unlock()

	Logger().Debug("module loaded",
		zap.String("name", instName),
		zap.Uint32("memory", s.mem.Size()),
		zap.Int("exports", len(mod.ExportedFunctionDefinitions())))
	return s, nil
}

// Close releases the runtime and every module loaded into it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.spaces = make(map[string]*Space)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}
