// Package pipeline wires every other internal package into the single
// per-rank control flow described in §2: Boundary Scanner, Partition
// Planner, and dissemination run on the coordinator only; every rank then
// runs the Local Sorter and takes part in the Distributed Tree Merger;
// the coordinator alone writes the final output file.
package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/boundary"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/config"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/fabric"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/partition"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/scratch"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/sortlocal"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/treemerge"
)

const coordinator = 0

// Run executes the full sort for one rank and, on the coordinator, leaves
// the globally sorted output at outputPath. Every other rank returns nil
// once it has shipped its local run into the merge tree.
func Run(cfg *config.Config, rank int, inputPath, outputPath string) (err error) {
	world := cfg.WorldSize()

	sp, err := scratch.New(cfg.TmpDir, rank)
	if err != nil {
		return fmt.Errorf("pipeline: rank %d: allocating scratch space: %w", rank, err)
	}
	defer sp.Close()

	if world == 1 {
		return runSingleProcess(cfg, sp, inputPath, outputPath)
	}

	f, err := fabric.Dial(cfg, rank)
	if err != nil {
		return fmt.Errorf("pipeline: rank %d: dialing fabric: %w", rank, err)
	}
	defer func() {
		if err != nil {
			f.Abort(err)
		}
		f.Close()
	}()

	myRange, err := disseminateRanges(f, cfg, inputPath)
	if err != nil {
		return fmt.Errorf("pipeline: rank %d: disseminating partition plan: %w", rank, err)
	}

	localRun := sp.NextPath("local-run")
	if err := sortlocal.Sort(inputPath, myRange.StartOffset, myRange.EndOffset, localRun, cfg.PoolSize, cfg.StrictCorruption); err != nil {
		return fmt.Errorf("pipeline: rank %d: local sort: %w", rank, err)
	}

	final, err := treemerge.Run(f, sp, localRun)
	if err != nil {
		return fmt.Errorf("pipeline: rank %d: tree merge: %w", rank, err)
	}

	if rank == coordinator {
		if err := publish(final, outputPath); err != nil {
			return fmt.Errorf("pipeline: rank %d: publishing output: %w", rank, err)
		}
		log.Info("pipeline: run complete", zap.Int("world", world), zap.String("output", outputPath))
	}
	return nil
}

// runSingleProcess implements §8's W = 1 degenerate case: local sort over
// the whole file followed by a copy to the output path, with no fabric or
// tree merge involved at all.
func runSingleProcess(cfg *config.Config, sp *scratch.Space, inputPath, outputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("pipeline: stat input: %w", err)
	}
	localRun := sp.NextPath("local-run")
	if err := sortlocal.Sort(inputPath, 0, info.Size(), localRun, cfg.PoolSize, cfg.StrictCorruption); err != nil {
		return fmt.Errorf("pipeline: single-process sort: %w", err)
	}
	if err := publish(localRun, outputPath); err != nil {
		return fmt.Errorf("pipeline: publishing output: %w", err)
	}
	log.Info("pipeline: run complete", zap.Int("world", 1), zap.String("output", outputPath))
	return nil
}

// publish moves src to dst, falling back to a copy-then-remove when the two
// paths live on different filesystems (os.Rename's EXDEV case).
func publish(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// disseminateRanges runs the Boundary Scanner and Partition Planner on the
// coordinator, then hands every rank its own byte range, either by
// broadcasting the full per-rank table or by scattering one range per rank
// depending on partition.ShouldScatter (§4.3).
func disseminateRanges(f fabric.Fabric, cfg *config.Config, inputPath string) (partition.Range, error) {
	rank := f.Rank()
	world := f.World()

	if rank == coordinator {
		table, err := boundary.Scan(inputPath)
		if err != nil {
			return partition.Range{}, fmt.Errorf("boundary scan: %w", err)
		}
		ranges := partition.Plan(table.Offsets, table.TotalRecords, table.FileSize, world)

		if partition.ShouldScatter(table.TotalRecords, cfg) {
			perRank := make([][]byte, world)
			for r, rg := range ranges {
				perRank[r] = encodeRange(rg)
			}
			got, err := f.Scatter(coordinator, perRank)
			if err != nil {
				return partition.Range{}, err
			}
			return decodeRange(got)
		}

		got, err := f.Broadcast(coordinator, encodeRanges(ranges))
		if err != nil {
			return partition.Range{}, err
		}
		all, err := decodeRanges(got, world)
		if err != nil {
			return partition.Range{}, err
		}
		return all[rank], nil
	}

	// Broadcast and Scatter are the same operation from a non-root rank's
	// point of view — both just receive one message from the coordinator
	// — so a non-coordinator rank doesn't need to know in advance which
	// one the coordinator chose. It tells them apart by payload size: the
	// full table is world ranges, a scattered share is exactly one.
	got, err := f.Recv(coordinator)
	if err != nil {
		return partition.Range{}, err
	}
	if len(got) == 16 {
		return decodeRange(got)
	}
	all, err := decodeRanges(got, world)
	if err != nil {
		return partition.Range{}, err
	}
	return all[rank], nil
}

func encodeRange(rg partition.Range) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(rg.StartOffset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(rg.EndOffset))
	return buf
}

func decodeRange(buf []byte) (partition.Range, error) {
	if len(buf) != 16 {
		return partition.Range{}, fmt.Errorf("pipeline: malformed range payload of length %d", len(buf))
	}
	return partition.Range{
		StartOffset: int64(binary.LittleEndian.Uint64(buf[0:8])),
		EndOffset:   int64(binary.LittleEndian.Uint64(buf[8:16])),
	}, nil
}

func encodeRanges(ranges []partition.Range) []byte {
	buf := make([]byte, 0, 16*len(ranges))
	for _, rg := range ranges {
		buf = append(buf, encodeRange(rg)...)
	}
	return buf
}

func decodeRanges(buf []byte, world int) ([]partition.Range, error) {
	if len(buf) != 16*world {
		return nil, fmt.Errorf("pipeline: malformed range table of length %d for world %d", len(buf), world)
	}
	out := make([]partition.Range, world)
	for r := 0; r < world; r++ {
		rg, err := decodeRange(buf[r*16 : r*16+16])
		if err != nil {
			return nil, err
		}
		out[r] = rg
	}
	return out, nil
}
