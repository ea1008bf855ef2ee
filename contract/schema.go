package contract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/errors"
)

// SchemaText describes the core wasm signatures of the contract in WIT
// syntax. Pointers and sizes are u32; every aggregate travels by pointer.
// Names are kebab-case and map to snake_case symbols.
const SchemaText = `
interface kv {
    create: func(ret: u32);
    insert: func(store: u32, key: u32, value: u32);
    delete: func(store: u32, key: u32);
    size: func(store: u32) -> u32;
    lookup: func(store: u32, key: u32, out: u32) -> u32;
    enumerate: func(ret: u32, store: u32);
    clear: func(store: u32);
    for-each: func(store: u32, visitor: u32);
    cursor: func(ret: u32, store: u32);
}

interface ffi-shim {
    ffi-call-destroy: func(fn: u32, ptr: u32);
    ffi-call-next: func(fn: u32, state: u32, out: u32) -> u32;
    ffi-call-visit: func(fn: u32, state: u32, key: u32, value: u32) -> u32;
}
`

// Signature is a core function signature using wasm value type names
// ("i32", "i64", "f32", "f64").
type Signature struct {
	Params  []string
	Results []string
}

func (s Signature) String() string {
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(s.Params, ", "), strings.Join(s.Results, ", "))
}

// Equal reports whether both signatures have the same types.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.Params, o.Params) && slices.Equal(s.Results, o.Results)
}

// Schema maps symbol names to their expected core signatures.
type Schema struct {
	funcs map[string]Signature
	order []string
}

var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// ParseSchema reads function declarations from WIT text.
func ParseSchema(text string) (*Schema, error) {
	s := &Schema{funcs: make(map[string]Signature)}

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ReplaceAll(match[1], "-", "_")
		var sig Signature

		if params := strings.TrimSpace(match[2]); params != "" {
			for _, p := range strings.Split(params, ",") {
				typStr := p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				core, err := coreType(typStr)
				if err != nil {
					return nil, errors.ParseFailed("param type of "+name, err)
				}
				sig.Params = append(sig.Params, core)
			}
		}

		if result := strings.TrimSpace(match[3]); result != "" && result != "()" {
			core, err := coreType(result)
			if err != nil {
				return nil, errors.ParseFailed("result type of "+name, err)
			}
			sig.Results = []string{core}
		}

		if _, dup := s.funcs[name]; dup {
			return nil, errors.InvalidInput(errors.PhaseParse, "duplicate function "+name)
		}
		s.funcs[name] = sig
		s.order = append(s.order, name)
	}

	if len(s.funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in WIT text")
	}
	return s, nil
}

// coreType maps a WIT primitive to the core wasm type it lowers to.
func coreType(s string) (string, error) {
	t, err := wit.ParseType(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	switch t.(type) {
	case wit.Bool, wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.Char:
		return "i32", nil
	case wit.S64, wit.U64:
		return "i64", nil
	case wit.F32:
		return "f32", nil
	case wit.F64:
		return "f64", nil
	}
	return "", fmt.Errorf("type %s does not lower to a single core value", s)
}

var defaultSchema = sync.OnceValues(func() (*Schema, error) { return ParseSchema(SchemaText) })

// DefaultSchema returns the parsed contract schema.
func DefaultSchema() *Schema {
	s, err := defaultSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Symbols returns the declared symbol names in declaration order.
func (s *Schema) Symbols() []string {
	return slices.Clone(s.order)
}

// Signature returns the expected signature of symbol.
func (s *Schema) Signature(symbol string) (Signature, bool) {
	sig, ok := s.funcs[symbol]
	return sig, ok
}

// Check compares exported signatures against the schema. Symbols listed in
// required must be present; others are optional and reported in missing
// when absent. A present symbol with a different signature is an error.
func (s *Schema) Check(exports map[string]Signature, required []string) (missing []string, err error) {
	for _, name := range s.order {
		want := s.funcs[name]
		got, ok := exports[name]
		if !ok {
			if slices.Contains(required, name) {
				return nil, errors.MissingExport(name)
			}
			missing = append(missing, name)
			continue
		}
		if !got.Equal(want) {
			return nil, errors.TypeMismatch(name, want.String(), got.String())
		}
	}
	return missing, nil
}
