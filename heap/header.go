package heap

import (
	"encoding/binary"
	"math"
)

const (
	// HeaderSize is the number of bytes of block metadata preceding each payload in the arena.
	HeaderSize = 16
	// Alignment is the byte boundary that block sizes and payload offsets are rounded to.
	Alignment = 16
)

// Handle is an opaque reference to an allocated block's payload, expressed as the payload's
// byte offset within the heap arena. Callers receive a Handle from Alloc and must hand the
// same value back to Free; they must not derive header locations from it.
type Handle int

// NoAllocation is the Handle value returned from Alloc when no allocation was made.
const NoAllocation Handle = -1

// noBlock marks the end of the block chain in a header's next field.
const noBlock = -1

// blockHeader is a typed view over the HeaderSize bytes of metadata that precede a block's
// payload. The header lives inside the arena itself, so the chain survives entirely within
// the heap's fixed byte region. Field layout: payload capacity (uint32), used flag (uint32),
// arena offset of the next header (uint64, with all-ones meaning last block).
type blockHeader struct {
	arena  []byte
	offset int
}

func (b blockHeader) dataSize() int {
	return int(binary.LittleEndian.Uint32(b.arena[b.offset:]))
}

func (b blockHeader) setDataSize(size int) {
	binary.LittleEndian.PutUint32(b.arena[b.offset:], uint32(size))
}

func (b blockHeader) used() bool {
	return binary.LittleEndian.Uint32(b.arena[b.offset+4:]) != 0
}

func (b blockHeader) setUsed(used bool) {
	var flag uint32
	if used {
		flag = 1
	}
	binary.LittleEndian.PutUint32(b.arena[b.offset+4:], flag)
}

func (b blockHeader) next() int {
	raw := binary.LittleEndian.Uint64(b.arena[b.offset+8:])
	if raw == math.MaxUint64 {
		return noBlock
	}
	return int(raw)
}

func (b blockHeader) setNext(offset int) {
	raw := uint64(math.MaxUint64)
	if offset != noBlock {
		raw = uint64(offset)
	}
	binary.LittleEndian.PutUint64(b.arena[b.offset+8:], raw)
}

func (b blockHeader) payload() Handle {
	return Handle(b.offset + HeaderSize)
}
