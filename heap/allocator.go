package heap

import (
	"github.com/GiveGrandpaCrawl/os-lab/heaputils"
	"github.com/GiveGrandpaCrawl/os-lab/internal/utils"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

// Heap is a dynamic-memory allocator over a single fixed-size byte arena. The arena is carved
// into a singly linked, address-ordered chain of blocks with no gaps and no overlaps; each
// block is a header followed by its payload. Alloc hands out payloads with a first-fit search,
// splitting oversized free blocks in place, and Free returns them, merging every run of
// adjacent free blocks back into one. The arena is never grown, shrunk, or relocated.
//
// All mutation is guarded by a single exclusive lock scoped to the heap, so a Heap may be
// shared between goroutines unless it was created with ExternallySynchronized.
type Heap struct {
	mutex     utils.OptionalMutex
	logger    *slog.Logger
	callbacks memoryCallbacks

	arena []byte
	start int

	allocCount int
	allocBytes int
	freeCount  int
	freeBytes  int

	userData *swiss.Map[Handle, any]
}

var _ heaputils.Validatable = &Heap{}

func (h *Heap) header(offset int) blockHeader {
	return blockHeader{arena: h.arena, offset: offset}
}

// Init resets the heap to its starting state: one free block spanning the whole arena.
// New calls this on the caller's behalf. Calling Init on a live heap silently discards
// every outstanding allocation, so guaranteeing single initialization (or quiescence
// around a deliberate reset) is the caller's contract, not an enforced one.
func (h *Heap) Init() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	heaputils.DebugCheckPow2(uint(Alignment), "Alignment")

	h.start = 0
	first := h.header(h.start)
	first.setDataSize(len(h.arena) - HeaderSize)
	first.setUsed(false)
	first.setNext(noBlock)

	h.allocCount = 0
	h.allocBytes = 0
	h.freeCount = 1
	h.freeBytes = len(h.arena) - HeaderSize
	h.userData = swiss.NewMap[Handle, any](42)
}

// Size returns the total byte capacity of the heap arena, headers included.
func (h *Heap) Size() int {
	return len(h.arena)
}

// SumFreeSize returns the number of payload bytes currently available across all free blocks.
// Header bytes recovered by future coalescing are not counted.
func (h *Heap) SumFreeSize() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.freeBytes
}

// AllocationCount returns the number of live allocations, i.e. successful Alloc calls minus
// successful Free calls since the last Init.
func (h *Heap) AllocationCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.allocCount
}

// FreeRegionsCount returns the number of distinct free blocks in the chain. Adjacent free
// blocks are always merged on Free, so consecutive regions are never double-counted.
func (h *Heap) FreeRegionsCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.freeCount
}

// IsEmpty will return true if this heap has no live allocations
func (h *Heap) IsEmpty() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.allocCount == 0
}

// Alloc reserves a block with a payload capacity of at least size bytes, rounded up to a
// multiple of Alignment, and returns its Handle. A size of 0 is accepted and consumes the
// minimum block footprint. The search is first-fit: the lowest-address free block that can
// hold the request is selected, and split in place when a non-trivial remainder would be
// left over.
//
// When no free block qualifies, Alloc returns NoAllocation and an error wrapping
// OutOfMemoryError. It never blocks waiting for memory to become available.
func (h *Heap) Alloc(size int) (Handle, error) {
	if size < 0 {
		return NoAllocation, errors.Newf("invalid allocation size: %d", size)
	}

	// No block can ever hold more than the arena's payload capacity. Rejecting such
	// requests before rounding also keeps size+HeaderSize from wrapping for sizes near
	// the int maximum.
	if size > len(h.arena)-HeaderSize {
		h.logger.Debug("Heap::Alloc exhausted",
			slog.Int("Size", size),
			slog.Int("Capacity", len(h.arena)-HeaderSize))
		return NoAllocation, errors.Wrapf(OutOfMemoryError, "requested %d bytes, heap payload capacity is %d bytes", size, len(h.arena)-HeaderSize)
	}

	// Two separate roundings, both upward: requiredSize is the full footprint carved out
	// of the matched block (header included), payloadSize is the capacity recorded for
	// the caller. HeaderSize is a multiple of Alignment, so the two always agree and the
	// chain stays gapless.
	payloadSize := heaputils.AlignUp(size, Alignment)
	requiredSize := heaputils.AlignUp(size+HeaderSize, Alignment)

	handle, capacity, freeBytes := h.claimBlock(payloadSize, requiredSize)
	if handle == NoAllocation {
		h.logger.Debug("Heap::Alloc exhausted",
			slog.Int("Size", size),
			slog.Int("FreeBytes", freeBytes))
		return NoAllocation, errors.Wrapf(OutOfMemoryError, "requested %d bytes, %d payload bytes free", size, freeBytes)
	}

	h.logger.Debug("Heap::Alloc",
		slog.Int("Size", size),
		slog.Int("Handle", int(handle)),
		slog.Int("Capacity", capacity))
	h.callbacks.Allocate(handle, capacity)

	return handle, nil
}

func (h *Heap) claimBlock(payloadSize, requiredSize int) (handle Handle, capacity int, freeBytes int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for curr := h.start; curr != noBlock; {
		header := h.header(curr)
		next := header.next()

		if !header.used() && header.dataSize() >= payloadSize {
			h.freeBytes -= header.dataSize()

			if header.dataSize() > requiredSize {
				// Split: carve a free remainder directly after the allocated prefix
				remainderOffset := curr + requiredSize
				remainder := h.header(remainderOffset)
				remainder.setDataSize(header.dataSize() - requiredSize)
				remainder.setUsed(false)
				remainder.setNext(next)

				header.setDataSize(payloadSize)
				header.setNext(remainderOffset)

				h.freeBytes += remainder.dataSize()
			} else {
				h.freeCount--
			}

			header.setUsed(true)
			h.allocCount++
			h.allocBytes += header.dataSize()

			handle = header.payload()
			h.userData.Put(handle, nil)

			heaputils.DebugValidate(h)
			return handle, header.dataSize(), h.freeBytes
		}

		curr = next
	}

	return NoAllocation, 0, h.freeBytes
}

// Free releases a block previously returned by Alloc and merges it with any adjacent free
// blocks. The handle must sit exactly one header past a block boundary: a misaligned handle,
// a handle into the interior of a block, or a handle whose block was already freed all
// surface an error wrapping InvalidHandleError. That condition is non-recoverable by
// contract; it means the caller double-freed or passed a foreign pointer, and the heap can
// no longer vouch for the integrity of its bookkeeping.
func (h *Heap) Free(handle Handle) error {
	headerOffset := int(handle) - HeaderSize
	if headerOffset < 0 || headerOffset%Alignment != 0 {
		return errors.Wrapf(InvalidHandleError, "handle %d does not sit %d bytes past a %d-byte boundary", handle, HeaderSize, Alignment)
	}

	capacity, err := h.releaseBlock(headerOffset, handle)
	if err != nil {
		return err
	}

	h.logger.Debug("Heap::Free",
		slog.Int("Handle", int(handle)),
		slog.Int("Capacity", capacity))
	h.callbacks.Free(handle, capacity)

	return nil
}

func (h *Heap) releaseBlock(headerOffset int, handle Handle) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for curr := h.start; curr != noBlock; {
		header := h.header(curr)

		if curr == headerOffset {
			if !header.used() {
				return 0, errors.Wrapf(InvalidHandleError, "handle %d was already freed", handle)
			}

			capacity := header.dataSize()
			header.setUsed(false)
			h.allocCount--
			h.allocBytes -= capacity
			h.freeCount++
			h.freeBytes += capacity
			h.userData.Delete(handle)

			h.coalesce()
			heaputils.DebugValidate(h)

			return capacity, nil
		}

		curr = header.next()
	}

	return 0, errors.Wrapf(InvalidHandleError, "no block in this heap owns handle %d", handle)
}

// coalesce merges every run of adjacent free blocks into a single block. After each merge the
// same block is re-tested against its new successor, so arbitrarily long runs collapse in one
// pass. The absorbed block's header bytes become payload of the merged block.
//
// The heap lock must already be held.
func (h *Heap) coalesce() {
	for curr := h.start; curr != noBlock; {
		header := h.header(curr)
		nextOffset := header.next()
		if nextOffset == noBlock {
			return
		}

		next := h.header(nextOffset)
		if !header.used() && !next.used() {
			header.setDataSize(header.dataSize() + next.dataSize() + HeaderSize)
			header.setNext(next.next())
			h.freeCount--
			h.freeBytes += HeaderSize
		} else {
			curr = nextOffset
		}
	}
}

// Bytes returns the caller-owned payload slice for a live allocation. The slice aliases the
// heap arena directly, so it remains valid only until the handle is freed. Handles that do
// not identify a live allocation produce an error wrapping InvalidHandleError.
func (h *Heap) Bytes(handle Handle) ([]byte, error) {
	headerOffset := int(handle) - HeaderSize
	if headerOffset < 0 || headerOffset%Alignment != 0 {
		return nil, errors.Wrapf(InvalidHandleError, "handle %d does not sit %d bytes past a %d-byte boundary", handle, HeaderSize, Alignment)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for curr := h.start; curr != noBlock; {
		header := h.header(curr)

		if curr == headerOffset {
			if !header.used() {
				return nil, errors.Wrapf(InvalidHandleError, "handle %d identifies a free block", handle)
			}
			return h.arena[int(handle) : int(handle)+header.dataSize()], nil
		}

		curr = header.next()
	}

	return nil, errors.Wrapf(InvalidHandleError, "no block in this heap owns handle %d", handle)
}

// AllocationUserData returns the userdata value attached to a live allocation. Freshly
// allocated blocks carry a nil userdata.
func (h *Heap) AllocationUserData(handle Handle) (any, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	userData, ok := h.userData.Get(handle)
	if !ok {
		return nil, errors.Wrapf(InvalidHandleError, "no live allocation owns handle %d", handle)
	}
	return userData, nil
}

// SetAllocationUserData attaches an opaque userdata value to a live allocation. The value is
// discarded when the allocation is freed.
func (h *Heap) SetAllocationUserData(handle Handle, userData any) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	_, ok := h.userData.Get(handle)
	if !ok {
		return errors.Wrapf(InvalidHandleError, "no live allocation owns handle %d", handle)
	}
	h.userData.Put(handle, userData)
	return nil
}

// VisitAllRegions will call the provided callback once for each block in the heap, in address
// order, allocated and free alike. The walk happens under the heap lock, so the callback must
// not call back into the heap.
func (h *Heap) VisitAllRegions(handleBlock func(handle Handle, offset int, size int, userData any, free bool) error) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.visitRegions(handleBlock)
}

func (h *Heap) visitRegions(handleBlock func(handle Handle, offset int, size int, userData any, free bool) error) error {
	for curr := h.start; curr != noBlock; {
		header := h.header(curr)

		var userData any
		if header.used() {
			userData, _ = h.userData.Get(header.payload())
		}

		err := handleBlock(header.payload(), curr, header.dataSize(), userData, !header.used())
		if err != nil {
			return err
		}

		curr = header.next()
	}

	return nil
}

// AddStatistics sums this heap's allocation statistics into the statistics currently present
// in the provided heaputils.Statistics object.
func (h *Heap) AddStatistics(stats *heaputils.Statistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.HeapCount++
	stats.HeapBytes += len(h.arena)
	stats.AllocationCount += h.allocCount
	stats.AllocationBytes += h.allocBytes
}

// AddDetailedStatistics sums this heap's allocation statistics into the statistics currently
// present in the provided heaputils.DetailedStatistics object. Unlike AddStatistics, this
// walks the full block chain.
func (h *Heap) AddDetailedStatistics(stats *heaputils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.HeapCount++
	stats.HeapBytes += len(h.arena)

	_ = h.visitRegions(func(handle Handle, offset int, size int, userData any, free bool) error {
		if free {
			stats.AddFreeRange(size)
		} else {
			stats.AddAllocation(size)
		}
		return nil
	})
}

// Validate performs internal consistency checks on the block chain: the first header sits at
// the arena base, consecutive headers are adjacent with no gap or overlap, every size and
// offset is a multiple of Alignment, the chain covers the arena exactly, and the maintained
// counters agree with a full walk. When the heap is functioning correctly it should not be
// possible for this method to return an error.
//
// Validate does not take the heap lock; the caller must guarantee that no other goroutine is
// mutating the heap for the duration of the call.
func (h *Heap) Validate() error {
	if h.start != 0 {
		return errors.Newf("the first header sits at offset %d, but it must sit at the heap base", h.start)
	}

	var coverage, allocCount, allocBytes, freeCount, freeBytes int
	expectedOffset := 0

	for curr := h.start; curr != noBlock; {
		header := h.header(curr)

		if curr != expectedOffset {
			return errors.Newf("header at offset %d leaves a gap or overlap, the previous block ends at offset %d", curr, expectedOffset)
		}
		if curr%Alignment != 0 {
			return errors.Newf("header at offset %d is not %d-byte aligned", curr, Alignment)
		}
		if curr+HeaderSize > len(h.arena) {
			return errors.Newf("header at offset %d extends past the end of the %d-byte arena", curr, len(h.arena))
		}

		size := header.dataSize()
		if size%Alignment != 0 {
			return errors.Newf("block at offset %d has payload capacity %d, which is not a multiple of %d", curr, size, Alignment)
		}
		if curr+HeaderSize+size > len(h.arena) {
			return errors.Newf("block at offset %d spans %d bytes, which extends past the end of the %d-byte arena", curr, HeaderSize+size, len(h.arena))
		}

		coverage += HeaderSize + size
		if header.used() {
			allocCount++
			allocBytes += size
		} else {
			freeCount++
			freeBytes += size
		}

		expectedOffset = curr + HeaderSize + size
		curr = header.next()
	}

	if coverage != len(h.arena) {
		return errors.Newf("the chain covers %d bytes, but the arena is %d bytes", coverage, len(h.arena))
	}
	if allocCount != h.allocCount {
		return errors.Newf("the heap's allocation count is %d, but the chain contains %d used blocks", h.allocCount, allocCount)
	}
	if allocBytes != h.allocBytes {
		return errors.Newf("the heap's allocation byte count is %d, but the chain's used blocks add up to %d", h.allocBytes, allocBytes)
	}
	if freeCount != h.freeCount {
		return errors.Newf("the heap's free region count is %d, but the chain contains %d free blocks", h.freeCount, freeCount)
	}
	if freeBytes != h.freeBytes {
		return errors.Newf("the heap's free byte count is %d, but the chain's free blocks add up to %d", h.freeBytes, freeBytes)
	}

	return nil
}
