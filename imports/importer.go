package imports

import (
	"context"
	"io"
	"slices"
	"sort"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// Importer consumes a contract.Library through the fixed sequence and writes
// the transcript to w, one line per report.
type Importer interface {
	Name() string
	Run(ctx context.Context, lib contract.Library, w io.Writer) error
}

// Option configures an importer.
type Option func(*options)

type options struct {
	audit bool
}

// WithAudit routes every release through an abi.Ledger. Double releases and
// handles left unreleased at the end of a run fail the run.
func WithAudit(enabled bool) Option {
	return func(o *options) { o.audit = enabled }
}

// strategy reads the remaining entries of a store after the fixed mutations.
type strategy func(s *script, store abi.Ptr) error

type importer struct {
	name string
	opts options
	list strategy
}

func (i *importer) Name() string { return i.name }

func (i *importer) Run(ctx context.Context, lib contract.Library, w io.Writer) error {
	return newScript(ctx, lib, w, i.opts).run(i.list)
}

var registry = map[string]strategy{
	Direct:  listDirect,
	Visitor: listVisitor,
	Cursor:  listCursor,
}

// Names of the builtin importers.
const (
	Direct  = "direct"
	Visitor = "visitor"
	Cursor  = "cursor"
)

// Names returns the builtin importer names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the builtin importer called name.
func New(name string, opts ...Option) (Importer, error) {
	list, ok := registry[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseContract, "importer", name)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &importer{name: name, opts: o, list: list}, nil
}

// Requires reports the optional contract symbols an importer depends on.
func Requires(name string) []string {
	switch name {
	case Visitor:
		return []string{contract.SymForEach}
	case Cursor:
		return []string{contract.SymCursor}
	}
	return nil
}

// Compatible reports whether lib exports everything the importer needs.
func Compatible(name string, lib contract.Library) bool {
	return !slices.ContainsFunc(Requires(name), func(sym string) bool { return !lib.Supports(sym) })
}
