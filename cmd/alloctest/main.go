package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/GiveGrandpaCrawl/os-lab/heap"
)

var (
	heapSize  int
	seed      uint64
	verbose   bool
	dumpStats bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alloctest",
		Short: "Exercise the fixed-region heap allocator",
		Long: `The alloctest command runs a five-phase exercise against a single fixed-size
heap: a basic allocate/free round trip, boundary conditions around the heap
capacity, pseudo-random allocation sizes, a batch stress run, and an overwrite
check that writes through payload slices and verifies the data survived.

Example:
  alloctest
  alloctest --heap-size 33554432 --seed 42
  alloctest --verbose --dump-stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlloctest()
		},
	}
	cmd.Flags().IntVar(&heapSize, "heap-size", 16<<20, "Total byte capacity of the heap")
	cmd.Flags().Uint64Var(&seed, "seed", 1000, "Seed for the pseudo-random size generator")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable allocator debug logging")
	cmd.Flags().BoolVar(&dumpStats, "dump-stats", false, "Print a detailed JSON block map after each phase")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAlloctest() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))

	h, err := heap.New(heap.CreateOptions{
		Size:   heapSize,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	phases := []struct {
		name string
		run  func(h *heap.Heap) error
	}{
		{"basic", basicPhase},
		{"boundary", boundaryPhase},
		{"random", randomPhase},
		{"stress", stressPhase},
		{"overwrite", overwritePhase},
	}

	for _, phase := range phases {
		if err := phase.run(h); err != nil {
			return fmt.Errorf("%s phase: %w", phase.name, err)
		}
		if err := h.Validate(); err != nil {
			return fmt.Errorf("%s phase left the heap inconsistent: %w", phase.name, err)
		}
		if dumpStats {
			fmt.Println(h.BuildStatsString(true))
		}
	}

	fmt.Println("Alloctest Success!")
	return nil
}
