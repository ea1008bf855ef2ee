package abi

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"
)

// Releaser is anything that owns a foreign allocation: *OwnedPtr,
// *OwnedView and *Closure.
type Releaser interface {
	Release(ctx context.Context, d Destroyer) error
}

// Scope releases everything added to it when closed, in reverse order of
// addition. Use it with defer so release happens on every exit path:
//
//	scope := abi.NewScope(destroyer)
//	defer scope.Close(ctx)
type Scope struct {
	d     Destroyer
	items []Releaser
}

// NewScope creates a scope that releases through d.
func NewScope(d Destroyer) *Scope {
	return &Scope{d: d}
}

// Add registers r for release and returns it.
func (s *Scope) Add(r Releaser) Releaser {
	s.items = append(s.items, r)
	return r
}

// Close releases every registered item, last added first. All items are
// released even if some fail; the failures are joined.
func (s *Scope) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		if err := s.items[i].Release(ctx, s.d); err != nil {
			errs = append(errs, err)
		}
	}
	s.items = s.items[:0]
	return stderrors.Join(errs...)
}

// Guarded owns a handle on behalf of a garbage-collected holder. It is
// released either explicitly or by a cleanup once the holder is collected,
// whichever comes first.
type Guarded struct {
	mu      sync.Mutex
	r       Releaser
	d       Destroyer
	cleanup runtime.Cleanup
}

// Guard ties the release of r to the lifetime of holder. r must not
// reference holder or the cleanup never runs.
func Guard[T any](holder *T, r Releaser, d Destroyer) *Guarded {
	g := &Guarded{r: r, d: d}
	g.cleanup = runtime.AddCleanup(holder, func(g *Guarded) {
		_ = g.release(context.Background())
	}, g)
	return g
}

// Release releases the guarded handle now. Later calls and the pending
// cleanup become no-ops.
func (g *Guarded) Release(ctx context.Context) error {
	g.cleanup.Stop()
	return g.release(ctx)
}

func (g *Guarded) release(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.Release(ctx, g.d)
}
