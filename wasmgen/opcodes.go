package wasmgen

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

// Section IDs.
const (
	sectionType   byte = 1
	sectionImport byte = 2
	sectionFunc   byte = 3
	sectionTable  byte = 4
	sectionMemory byte = 5
	sectionGlobal byte = 6
	sectionExport byte = 7
	sectionElem   byte = 9
	sectionCode   byte = 10
)

// Import and export kinds.
const (
	kindFunc   byte = 0x00
	kindTable  byte = 0x01
	kindMemory byte = 0x02
	kindGlobal byte = 0x03
)

const (
	funcTypeMarker byte = 0x60
	funcRef        byte = 0x70
	blockEmpty     byte = 0x40
)

// Opcodes used by the builder.
const (
	opUnreachable  byte = 0x00
	opNop          byte = 0x01
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0B
	opBr           byte = 0x0C
	opBrIf         byte = 0x0D
	opReturn       byte = 0x0F
	opCall         byte = 0x10
	opCallIndirect byte = 0x11
	opDrop         byte = 0x1A
	opSelect       byte = 0x1B
	opLocalGet     byte = 0x20
	opLocalSet     byte = 0x21
	opLocalTee     byte = 0x22
	opGlobalGet    byte = 0x23
	opGlobalSet    byte = 0x24
	opI32Load      byte = 0x28
	opI32Load8U    byte = 0x2D
	opI32Store     byte = 0x36
	opI32Store8    byte = 0x3A
	opMemorySize   byte = 0x3F
	opMemoryGrow   byte = 0x40
	opI32Const     byte = 0x41
	opI32Eqz       byte = 0x45
	opI32Eq        byte = 0x46
	opI32Ne        byte = 0x47
	opI32LtS       byte = 0x48
	opI32LtU       byte = 0x49
	opI32GtS       byte = 0x4A
	opI32GtU       byte = 0x4B
	opI32LeU       byte = 0x4D
	opI32GeU       byte = 0x4F
	opI32Add       byte = 0x6A
	opI32Sub       byte = 0x6B
	opI32Mul       byte = 0x6C
	opI32DivU      byte = 0x6E
	opI32And       byte = 0x71
	opI32Or        byte = 0x72
	opI32Shl       byte = 0x74
	opI32ShrU      byte = 0x76
	opPrefixMisc   byte = 0xFC
	miscMemoryCopy      = 10
	miscMemoryFill      = 11
)
