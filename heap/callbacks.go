package heap

// AllocateBlockCallback is executed after each successful Alloc. The size parameter is the
// payload capacity of the new block, which may be larger than the requested size.
type AllocateBlockCallback func(
	heap *Heap,
	handle Handle,
	size int,
	userData interface{},
)

// FreeBlockCallback is executed after each successful Free. The size parameter is the payload
// capacity the block had at the moment it was released, before any coalescing.
type FreeBlockCallback func(
	heap *Heap,
	handle Handle,
	size int,
	userData interface{},
)

// MemoryCallbackOptions provides optional callbacks that fire on successful allocations and
// frees. The callbacks run outside the heap's critical section, so they may call back into
// the heap, but they must tolerate other operations landing between the triggering call and
// the callback itself.
type MemoryCallbackOptions struct {
	Allocate AllocateBlockCallback
	Free     FreeBlockCallback
	UserData interface{}
}

type memoryCallbacks struct {
	Callbacks *MemoryCallbackOptions
	Heap      *Heap
}

func (c *memoryCallbacks) Allocate(
	handle Handle,
	size int,
) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(c.Heap, handle, size, c.Callbacks.UserData)
	}
}

func (c *memoryCallbacks) Free(
	handle Handle,
	size int,
) {
	if c.Callbacks != nil && c.Callbacks.Free != nil {
		c.Callbacks.Free(c.Heap, handle, size, c.Callbacks.UserData)
	}
}
