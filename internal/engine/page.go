package engine

import "encoding/binary"

const (
	headerSize = 8
	nameSize   = 32

	// MaxNameLen is the longest object name the engine accepts.
	MaxNameLen = nameSize - 1

	minPageSize = headerSize + nameSize + 24
	maxObjectID = 0x7FFF
	maxSpan     = 0xFFFE
)

const (
	flagUsed     byte = 1 << 0
	flagFinal    byte = 1 << 1
	flagDeleted  byte = 1 << 7
	flagReserved byte = 0x7C
)

const (
	typeHeader byte = 1
	typeData   byte = 2
)

type pageHeader struct {
	flags  byte
	typ    byte
	id     uint16
	span   uint16
	length uint16
}

func (h pageHeader) encode(dst []byte) {
	dst[0] = h.flags
	dst[1] = h.typ
	binary.LittleEndian.PutUint16(dst[2:], h.id)
	binary.LittleEndian.PutUint16(dst[4:], h.span)
	binary.LittleEndian.PutUint16(dst[6:], h.length)
}

func decodeHeader(b []byte) pageHeader {
	return pageHeader{
		flags:  b[0],
		typ:    b[1],
		id:     binary.LittleEndian.Uint16(b[2:]),
		span:   binary.LittleEndian.Uint16(b[4:]),
		length: binary.LittleEndian.Uint16(b[6:]),
	}
}

func isErased(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

func (h pageHeader) used() bool    { return h.flags&flagUsed == 0 }
func (h pageHeader) final() bool   { return h.flags&flagFinal == 0 }
func (h pageHeader) deleted() bool { return h.flags&flagDeleted == 0 }
