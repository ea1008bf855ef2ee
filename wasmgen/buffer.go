package wasmgen

import "encoding/binary"

// Buffer accumulates an encoded module or section.
type Buffer struct {
	Bytes []byte
}

func (b *Buffer) AppendByte(v byte) { b.Bytes = append(b.Bytes, v) }

func (b *Buffer) WriteBytes(v []byte) { b.Bytes = append(b.Bytes, v...) }

// WriteU32 appends v as unsigned LEB128, which is the varint layout
// encoding/binary already produces.
func (b *Buffer) WriteU32(v uint32) {
	b.Bytes = binary.AppendUvarint(b.Bytes, uint64(v))
}

// WriteI32 appends v as signed LEB128. binary.AppendVarint zigzags, so
// the sign-extending form is written out here.
func (b *Buffer) WriteI32(v int32) {
	for more := true; more; {
		c := byte(v) & 0x7f
		v >>= 7
		more = !(v == 0 && c&0x40 == 0 || v == -1 && c&0x40 != 0)
		if more {
			c |= 0x80
		}
		b.Bytes = append(b.Bytes, c)
	}
}

// WriteString appends a length-prefixed name.
func (b *Buffer) WriteString(s string) {
	b.WriteU32(uint32(len(s)))
	b.Bytes = append(b.Bytes, s...)
}

// WriteLimits appends a limits pair; a nil max leaves the upper bound open.
func (b *Buffer) WriteLimits(min uint32, max *uint32) {
	if max == nil {
		b.AppendByte(0x00)
		b.WriteU32(min)
		return
	}
	b.AppendByte(0x01)
	b.WriteU32(min)
	b.WriteU32(*max)
}

// Section appends content as section id with its byte size prefixed.
func (b *Buffer) Section(id byte, content *Buffer) {
	b.AppendByte(id)
	b.WriteU32(uint32(len(content.Bytes)))
	b.WriteBytes(content.Bytes)
}
