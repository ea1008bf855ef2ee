package wasmgen

// Code builds a function body. Methods append one instruction each and
// return the builder so sequences read in stack order:
//
//	c.LocalGet(0).LocalGet(1).I32Add()
type Code struct {
	buf   Buffer
	depth int
}

func (c *Code) op(b byte) *Code {
	c.buf.AppendByte(b)
	return c
}

func (c *Code) opU32(b byte, imm uint32) *Code {
	c.buf.AppendByte(b)
	c.buf.WriteU32(imm)
	return c
}

func (c *Code) memarg(b byte, align, offset uint32) *Code {
	c.buf.AppendByte(b)
	c.buf.WriteU32(align)
	c.buf.WriteU32(offset)
	return c
}

// Control flow.

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Nop() *Code         { return c.op(opNop) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) Select() *Code      { return c.op(opSelect) }

func (c *Code) Block() *Code {
	c.depth++
	c.buf.AppendByte(opBlock)
	c.buf.AppendByte(blockEmpty)
	return c
}

func (c *Code) Loop() *Code {
	c.depth++
	c.buf.AppendByte(opLoop)
	c.buf.AppendByte(blockEmpty)
	return c
}

func (c *Code) If() *Code {
	c.depth++
	c.buf.AppendByte(opIf)
	c.buf.AppendByte(blockEmpty)
	return c
}

// IfResult opens an if block that leaves one value of type t.
func (c *Code) IfResult(t ValType) *Code {
	c.depth++
	c.buf.AppendByte(opIf)
	c.buf.AppendByte(byte(t))
	return c
}

func (c *Code) Else() *Code { return c.op(opElse) }

func (c *Code) End() *Code {
	c.depth--
	return c.op(opEnd)
}

func (c *Code) Br(depth uint32) *Code   { return c.opU32(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.opU32(opBrIf, depth) }

// Calls.

func (c *Code) Call(fn uint32) *Code { return c.opU32(opCall, fn) }

// CallIndirect calls through table 0 with the function index on top of the
// stack.
func (c *Code) CallIndirect(typeIdx uint32) *Code {
	c.buf.AppendByte(opCallIndirect)
	c.buf.WriteU32(typeIdx)
	c.buf.WriteU32(0)
	return c
}

// Variables.

func (c *Code) LocalGet(i uint32) *Code  { return c.opU32(opLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.opU32(opLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.opU32(opLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.opU32(opGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.opU32(opGlobalSet, i) }

// Memory.

func (c *Code) I32Load(offset uint32) *Code   { return c.memarg(opI32Load, 2, offset) }
func (c *Code) I32Load8U(offset uint32) *Code { return c.memarg(opI32Load8U, 0, offset) }
func (c *Code) I32Store(offset uint32) *Code  { return c.memarg(opI32Store, 2, offset) }
func (c *Code) I32Store8(offset uint32) *Code { return c.memarg(opI32Store8, 0, offset) }

func (c *Code) MemorySize() *Code {
	c.buf.AppendByte(opMemorySize)
	c.buf.AppendByte(0x00)
	return c
}

func (c *Code) MemoryGrow() *Code {
	c.buf.AppendByte(opMemoryGrow)
	c.buf.AppendByte(0x00)
	return c
}

// MemoryCopy pops (dst, src, n). Overlapping ranges are handled.
func (c *Code) MemoryCopy() *Code {
	c.buf.AppendByte(opPrefixMisc)
	c.buf.WriteU32(miscMemoryCopy)
	c.buf.AppendByte(0x00)
	c.buf.AppendByte(0x00)
	return c
}

// MemoryFill pops (dst, value, n).
func (c *Code) MemoryFill() *Code {
	c.buf.AppendByte(opPrefixMisc)
	c.buf.WriteU32(miscMemoryFill)
	c.buf.AppendByte(0x00)
	return c
}

// Numeric.

func (c *Code) I32Const(v int32) *Code {
	c.buf.AppendByte(opI32Const)
	c.buf.WriteI32(v)
	return c
}

func (c *Code) I32Eqz() *Code  { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code   { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code   { return c.op(opI32Ne) }
func (c *Code) I32LtS() *Code  { return c.op(opI32LtS) }
func (c *Code) I32LtU() *Code  { return c.op(opI32LtU) }
func (c *Code) I32GtS() *Code  { return c.op(opI32GtS) }
func (c *Code) I32GtU() *Code  { return c.op(opI32GtU) }
func (c *Code) I32LeU() *Code  { return c.op(opI32LeU) }
func (c *Code) I32GeU() *Code  { return c.op(opI32GeU) }
func (c *Code) I32Add() *Code  { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code  { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code  { return c.op(opI32Mul) }
func (c *Code) I32DivU() *Code { return c.op(opI32DivU) }
func (c *Code) I32And() *Code  { return c.op(opI32And) }
func (c *Code) I32Or() *Code   { return c.op(opI32Or) }
func (c *Code) I32Shl() *Code  { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code { return c.op(opI32ShrU) }
