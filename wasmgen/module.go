package wasmgen

import (
	"slices"

	"github.com/wippyai/wasm-ffi/errors"
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) equal(o FuncType) bool {
	return slices.Equal(ft.Params, o.Params) && slices.Equal(ft.Results, o.Results)
}

type funcImport struct {
	module string
	name   string
	typ    uint32
}

type global struct {
	typ     ValType
	mutable bool
	init    int32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

// Func is a function defined in the module.
type Func struct {
	Name   string
	idx    uint32
	typ    uint32
	params uint32
	locals []ValType
	Body   *Code
}

// Index returns the function index, counting imports first.
func (f *Func) Index() uint32 {
	return f.idx
}

// Local declares a local of type t and returns its index.
func (f *Func) Local(t ValType) uint32 {
	f.locals = append(f.locals, t)
	return f.params + uint32(len(f.locals)) - 1
}

// Module assembles a core wasm module with at most one memory and one
// funcref table.
type Module struct {
	types    []FuncType
	imports  []funcImport
	funcs    []*Func
	memory   *[2]uint32
	memMax   bool
	table    []uint32
	hasTable bool
	globals  []global
	exports  []export
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{}
}

// Type interns a signature and returns its type index.
func (m *Module) Type(params, results []ValType) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
// Imports must be declared before any function is defined.
func (m *Module) ImportFunc(module, name string, params, results []ValType) (uint32, error) {
	if len(m.funcs) > 0 {
		return 0, errors.InvalidInput(errors.PhaseLoad, "function import declared after function definitions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typ: m.Type(params, results)})
	return uint32(len(m.imports) - 1), nil
}

// Func defines a function and returns it for its body to be written.
func (m *Module) Func(name string, params, results []ValType) *Func {
	f := &Func{
		Name:   name,
		idx:    uint32(len(m.imports) + len(m.funcs)),
		typ:    m.Type(params, results),
		params: uint32(len(params)),
		Body:   &Code{},
	}
	m.funcs = append(m.funcs, f)
	return f
}

// Memory declares the module's memory in pages.
func (m *Module) Memory(min, max uint32) {
	m.memory = &[2]uint32{min, max}
	m.memMax = max > 0
}

// Elem places a function in the table and returns its slot. Slot 0 is kept
// empty so that it stays the null function pointer.
func (m *Module) Elem(fn uint32) uint32 {
	m.hasTable = true
	m.table = append(m.table, fn)
	return uint32(len(m.table))
}

// Global declares an i32 global and returns its index.
func (m *Module) Global(mutable bool, init int32) uint32 {
	m.globals = append(m.globals, global{typ: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

func (m *Module) ExportFunc(name string, fn uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: fn})
}

func (m *Module) ExportGlobal(name string, g uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindGlobal, idx: g})
}

func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindMemory, idx: 0})
}

func (m *Module) ExportTable(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindTable, idx: 0})
}

// Encode produces the binary module.
func (m *Module) Encode() ([]byte, error) {
	for _, f := range m.funcs {
		if f.Body.depth != 0 {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Symbol(f.Name).
				Detail("unbalanced blocks: %d left open", f.Body.depth).
				Build()
		}
	}

	buf := &Buffer{}
	buf.WriteBytes([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) // magic + version

	if len(m.types) > 0 {
		m.encodeTypes(buf)
	}
	if len(m.imports) > 0 {
		m.encodeImports(buf)
	}
	if len(m.funcs) > 0 {
		m.encodeFuncs(buf)
	}
	if m.hasTable {
		m.encodeTable(buf)
	}
	if m.memory != nil {
		m.encodeMemory(buf)
	}
	if len(m.globals) > 0 {
		m.encodeGlobals(buf)
	}
	if len(m.exports) > 0 {
		m.encodeExports(buf)
	}
	if m.hasTable {
		m.encodeElems(buf)
	}
	if len(m.funcs) > 0 {
		m.encodeCode(buf)
	}
	return buf.Bytes, nil
}

func (m *Module) encodeTypes(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.types)))
	for _, ft := range m.types {
		sec.AppendByte(funcTypeMarker)
		sec.WriteU32(uint32(len(ft.Params)))
		for _, p := range ft.Params {
			sec.AppendByte(byte(p))
		}
		sec.WriteU32(uint32(len(ft.Results)))
		for _, r := range ft.Results {
			sec.AppendByte(byte(r))
		}
	}
	buf.Section(sectionType, sec)
}

func (m *Module) encodeImports(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.imports)))
	for _, imp := range m.imports {
		sec.WriteString(imp.module)
		sec.WriteString(imp.name)
		sec.AppendByte(kindFunc)
		sec.WriteU32(imp.typ)
	}
	buf.Section(sectionImport, sec)
}

func (m *Module) encodeFuncs(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.funcs)))
	for _, f := range m.funcs {
		sec.WriteU32(f.typ)
	}
	buf.Section(sectionFunc, sec)
}

func (m *Module) encodeTable(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(1)
	sec.AppendByte(funcRef)
	size := uint32(len(m.table)) + 1
	sec.WriteLimits(size, &size)
	buf.Section(sectionTable, sec)
}

func (m *Module) encodeMemory(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(1)
	if m.memMax {
		sec.WriteLimits(m.memory[0], &m.memory[1])
	} else {
		sec.WriteLimits(m.memory[0], nil)
	}
	buf.Section(sectionMemory, sec)
}

func (m *Module) encodeGlobals(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.globals)))
	for _, g := range m.globals {
		sec.AppendByte(byte(g.typ))
		if g.mutable {
			sec.AppendByte(0x01)
		} else {
			sec.AppendByte(0x00)
		}
		sec.AppendByte(opI32Const)
		sec.WriteI32(g.init)
		sec.AppendByte(opEnd)
	}
	buf.Section(sectionGlobal, sec)
}

func (m *Module) encodeExports(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.exports)))
	for _, e := range m.exports {
		sec.WriteString(e.name)
		sec.AppendByte(e.kind)
		sec.WriteU32(e.idx)
	}
	buf.Section(sectionExport, sec)
}

// encodeElems writes one active segment filling the table from slot 1.
func (m *Module) encodeElems(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(1)
	sec.AppendByte(0x00)
	sec.AppendByte(opI32Const)
	sec.WriteI32(1)
	sec.AppendByte(opEnd)
	sec.WriteU32(uint32(len(m.table)))
	for _, fn := range m.table {
		sec.WriteU32(fn)
	}
	buf.Section(sectionElem, sec)
}

func (m *Module) encodeCode(buf *Buffer) {
	sec := &Buffer{}
	sec.WriteU32(uint32(len(m.funcs)))
	for _, f := range m.funcs {
		code := &Buffer{}

		// Group consecutive locals
		var groups []struct {
			count uint32
			vt    ValType
		}
		for _, l := range f.locals {
			if len(groups) > 0 && groups[len(groups)-1].vt == l {
				groups[len(groups)-1].count++
			} else {
				groups = append(groups, struct {
					count uint32
					vt    ValType
				}{1, l})
			}
		}

		code.WriteU32(uint32(len(groups)))
		for _, g := range groups {
			code.WriteU32(g.count)
			code.AppendByte(byte(g.vt))
		}

		code.WriteBytes(f.Body.buf.Bytes)
		code.AppendByte(opEnd)

		sec.WriteU32(uint32(len(code.Bytes)))
		sec.WriteBytes(code.Bytes)
	}
	buf.Section(sectionCode, sec)
}
