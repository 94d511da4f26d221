package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	workerCount int
	workerSleep time.Duration
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proctest",
		Short: "Spawn sleeping workers and report the active-worker count",
		Long: `The proctest command spawns a handful of short-lived workers and prints the
active-worker count after startup, after each spawn, and after waiting for
every worker to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProctest()
		},
	}
	cmd.Flags().IntVar(&workerCount, "workers", 3, "Number of workers to spawn")
	cmd.Flags().DurationVar(&workerSleep, "sleep", 100*time.Millisecond, "How long each worker sleeps before exiting")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runProctest() error {
	var active atomic.Int64
	var wg sync.WaitGroup

	printActive := func() {
		fmt.Printf("Active workers: %d\n", active.Load())
	}

	fmt.Println("Init:")
	printActive()

	for i := 0; i < workerCount; i++ {
		active.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer active.Add(-1)
			time.Sleep(workerSleep)
		}()

		fmt.Println("After spawning:")
		printActive()
	}

	wg.Wait()

	fmt.Println("After waiting:")
	printActive()
	return nil
}
