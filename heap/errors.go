package heap

import "github.com/pkg/errors"

// OutOfMemoryError is the error returned from Alloc when no free block is large enough to
// satisfy the request. It is an ordinary, recoverable condition: the heap is left exactly
// as it was, and the caller decides whether to retry later or fail its own operation.
var OutOfMemoryError error = errors.New("no free block is large enough to satisfy the allocation")

// InvalidHandleError is the error returned from Free and other handle-accepting methods when
// the handle does not identify a live allocation in the heap. It indicates caller misuse
// (double free, foreign pointer, corruption) and is non-recoverable by contract: the heap
// cannot vouch for the integrity of its block chain afterward.
var InvalidHandleError error = errors.New("handle does not identify a live allocation in this heap")
