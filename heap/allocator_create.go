package heap

import (
	"math"

	"github.com/GiveGrandpaCrawl/os-lab/heaputils"
	"github.com/GiveGrandpaCrawl/os-lab/internal/utils"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// CreateOptions contains all the configuration used to build a new Heap in New
type CreateOptions struct {
	// Size is the total byte capacity of the heap arena, headers included. It must be a
	// positive multiple of Alignment with room for at least one header and one payload.
	Size int

	// Logger is an optional slog.Logger that the heap will use to report debug information
	// about allocations and frees. slog.Default() is used when this is left nil.
	Logger *slog.Logger

	// Callbacks is an optional set of callbacks executed on successful allocations and frees
	Callbacks *MemoryCallbackOptions

	// ExternallySynchronized disables the heap's internal mutex. Only set this when every
	// Alloc and Free is guaranteed to come from a single goroutine at a time.
	ExternallySynchronized bool
}

// New creates a Heap from the provided CreateOptions and installs the initial free block
// spanning the whole arena.
func New(options CreateOptions) (*Heap, error) {
	if options.Size < 2*HeaderSize {
		return nil, errors.Newf("heap size %d cannot fit a block header and a payload", options.Size)
	}
	// Payload capacities are recorded as uint32 in the block headers
	if options.Size-HeaderSize > math.MaxUint32 {
		return nil, errors.Newf("heap size %d exceeds the maximum addressable capacity", options.Size)
	}

	err := heaputils.CheckAligned(uint(options.Size), Alignment, "heap size")
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Heap{
		logger: logger,
		mutex: utils.OptionalMutex{
			UseMutex: !options.ExternallySynchronized,
		},
		arena: make([]byte, options.Size),
	}
	h.callbacks = memoryCallbacks{
		Callbacks: options.Callbacks,
		Heap:      h,
	}
	h.Init()

	return h, nil
}
