// Command mergesort is the process entry point for one rank of a sort
// run: it reads this rank's id and peer table from its environment (set
// by whatever launcher started the run, mirroring the teacher's
// netsort.go, which read the same information from os.Args), then drives
// the full pipeline to completion.
//
// Usage: mergesort <input-path> <output-path> [threads-per-process]
//
// Exit codes: 0 success; 2 a failure whose error wraps fabric.ErrAborted
// (a fabric call on a connection this rank had already closed); 1 usage
// errors and every other failure, before or after the fabric is up
// (§6/§7).
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/config"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/fabric"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/logging"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(os.Stderr, "Usage: mergesort <input-path> <output-path> [threads-per-process]")
		return 1
	}
	inputPath, outputPath := args[0], args[1]

	rank, err := rankFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(args) == 3 {
		threads, err := strconv.Atoi(args[2])
		if err != nil || threads <= 0 {
			fmt.Fprintln(os.Stderr, "threads-per-process must be a positive integer")
			return 1
		}
		cfg.PoolSize = threads
	}

	if err := logging.Init(rank, os.Getenv("MERGESORT_LOG_LEVEL")); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		return 1
	}

	if err := pipeline.Run(cfg, rank, inputPath, outputPath); err != nil {
		log.Error("mergesort: run failed", zap.Int("rank", rank), zap.Error(err))
		if errors.Is(err, fabric.ErrAborted) {
			return 2
		}
		return 1
	}
	return 0
}

// rankFromEnv reads this process's rank from MERGESORT_RANK, defaulting to
// 0 for the single-process, no-peer-table case (§8's W = 1 run).
func rankFromEnv() (int, error) {
	v := os.Getenv("MERGESORT_RANK")
	if v == "" {
		return 0, nil
	}
	rank, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid MERGESORT_RANK %q: %w", v, err)
	}
	return rank, nil
}

// loadConfig reads the peer table and run configuration from the YAML file
// named by MERGESORT_PEERS, or returns a bare, defaulted single-process
// configuration when that variable is unset.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("MERGESORT_PEERS")
	if path == "" {
		return config.New(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading peer config %s: %w", path, err)
	}
	return cfg, nil
}
