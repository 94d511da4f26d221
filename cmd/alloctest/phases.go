package main

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/GiveGrandpaCrawl/os-lab/heap"
)

// lcg is a classic linear congruential generator, kept so the random phase produces the
// same size sequence for a given seed.
type lcg struct {
	next uint64
}

func (r *lcg) srand(seed uint64) {
	r.next = seed
}

func (r *lcg) rand() int {
	r.next = r.next*1103515245 + 12345
	return int(uint32(r.next/65536) % 32768)
}

func basicPhase(h *heap.Heap) error {
	fmt.Println("Entering basic phase...")

	handle, err := h.Alloc(100)
	if err != nil {
		return errors.Wrap(err, "unable to allocate memory")
	}
	fmt.Printf("Allocated handle: %d\n", handle)

	if err := h.Free(handle); err != nil {
		return err
	}

	fmt.Println("Basic phase passed.")
	fmt.Println()
	return nil
}

func boundaryPhase(h *heap.Heap) error {
	fmt.Println("Entering boundary phase...")

	// Nearly the whole heap in one block
	large, err := h.Alloc(h.Size() - 128)
	if err != nil {
		return errors.Wrap(err, "failed to allocate very large block")
	}
	fmt.Println("Allocated very large block.")
	if err := h.Free(large); err != nil {
		return err
	}

	// More than the heap can ever hold must fail cleanly
	exceed, err := h.Alloc(h.Size())
	if err == nil {
		_ = h.Free(exceed)
		return errors.New("allocation exceeding heap capacity unexpectedly succeeded")
	}
	if !errors.Is(err, heap.OutOfMemoryError) {
		return err
	}
	fmt.Println("Rejected allocation exceeding heap capacity.")

	// The minimum request
	small, err := h.Alloc(1)
	if err != nil {
		return errors.Wrap(err, "failed to allocate very small block")
	}
	fmt.Println("Allocated very small block.")
	if err := h.Free(small); err != nil {
		return err
	}

	fmt.Println("Boundary phase passed.")
	fmt.Println()
	return nil
}

func randomPhase(h *heap.Heap) error {
	fmt.Println("Entering random phase...")

	var rng lcg
	rng.srand(seed)

	var passed, failed int
	handles := make([]heap.Handle, 0, 10)

	for i := 0; i < 10; i++ {
		size := rng.rand()%100000 + 1
		handle, err := h.Alloc(size)
		if err != nil {
			if !errors.Is(err, heap.OutOfMemoryError) {
				return err
			}
			fmt.Println("Failed to allocate memory.")
			failed++
			continue
		}
		fmt.Printf("Allocated handle: %d, size: %d\n", handle, size)
		handles = append(handles, handle)
		passed++
	}

	for _, handle := range handles {
		if err := h.Free(handle); err != nil {
			return err
		}
		fmt.Printf("Memory deallocated: %d\n", handle)
	}

	fmt.Printf("Random phase completed. Passed: %d, Failed: %d.\n", passed, failed)
	fmt.Println()
	return nil
}

func stressPhase(h *heap.Heap) error {
	fmt.Println("Entering stress phase...")

	const (
		totalIterations = 255
		blockSize       = 65537 // 64KB + 1, forces the worst-case rounding
	)

	var passed, failed int
	handles := make([]heap.Handle, totalIterations)

	for i := 0; i < totalIterations; i++ {
		handle, err := h.Alloc(blockSize)
		if err != nil {
			if !errors.Is(err, heap.OutOfMemoryError) {
				return err
			}
			handle = heap.NoAllocation
			failed++
		}
		handles[i] = handle
	}
	fmt.Printf("The last allocated handle: %d\n", handles[totalIterations-1])

	for _, handle := range handles {
		if handle == heap.NoAllocation {
			continue
		}
		if err := h.Free(handle); err != nil {
			return err
		}
		passed++
		if passed%10 == 0 {
			fmt.Printf("%d iterations passed.\n", passed)
		}
	}

	fmt.Printf("Stress phase completed.\n%d allocations and deallocations attempted.\nPassed: %d, Failed: %d.\n", totalIterations, passed, failed)
	fmt.Println()
	return nil
}

func overwritePhase(h *heap.Heap) error {
	fmt.Println("Entering overwrite phase...")

	messages := []string{
		"hello, world!",
		"first-fit keeps allocation order predictable",
		"coalescing merges every run of adjacent free blocks back into one",
	}

	handles := make([]heap.Handle, len(messages))
	for i, message := range messages {
		handle, err := h.Alloc(len(message))
		if err != nil {
			return errors.Wrapf(err, "failed to allocate block %d", i+1)
		}
		if err := h.SetAllocationUserData(handle, fmt.Sprintf("message-%d", i+1)); err != nil {
			return err
		}

		payload, err := h.Bytes(handle)
		if err != nil {
			return err
		}
		copy(payload, message)
		handles[i] = handle
	}

	for i, message := range messages {
		fmt.Printf("String %d: %s\n", i+1, message)

		payload, err := h.Bytes(handles[i])
		if err != nil {
			return err
		}
		if !bytes.Equal(payload[:len(message)], []byte(message)) {
			return errors.Newf("data in block %d was changed", i+1)
		}
	}

	for _, handle := range handles {
		if err := h.Free(handle); err != nil {
			return err
		}
	}

	fmt.Println("Overwrite phase passed.")
	fmt.Println()
	return nil
}
