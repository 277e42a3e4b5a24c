// Package treemerge implements the Distributed Tree Merger of §4.6: a
// logarithmic-depth binary reduction in which each round halves the
// number of active ranks, until rank 0 alone holds the globally sorted
// file. Every rank, active or not, participates in every round's barrier
// — the fabric's barrier semantics require it, per §9's Open Question #2.
package treemerge

import (
	"fmt"
	"os"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/fabric"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/kway"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/scratch"
)

// Run drives the state machine described in §4.6 starting from localRun
// (this rank's already-sorted local run) and returns the path of the
// final, globally sorted file. That path is only meaningful on rank 0 —
// every other rank returns an empty path once it has shipped its data
// away and gone inactive.
func Run(f fabric.Fabric, sp *scratch.Space, localRun string) (string, error) {
	rank := f.Rank()
	world := f.World()

	current := localRun
	active := true

	for step := 1; step < world; step *= 2 {
		if active {
			if rank%(2*step) == 0 {
				partner := rank + step
				if partner < world {
					incoming := sp.NextPath("incoming")
					if err := f.RecvFile(partner, incoming); err != nil {
						return "", fmt.Errorf("treemerge: rank %d receiving from %d: %w", rank, partner, err)
					}
					merged := sp.NextPath("merged")
					if err := kway.Merge([]string{current, incoming}, merged); err != nil {
						return "", fmt.Errorf("treemerge: rank %d merging with %d: %w", rank, partner, err)
					}
					os.Remove(current)
					os.Remove(incoming)
					current = merged
					log.Info("treemerge: merged partner into current run",
						zap.Int("rank", rank), zap.Int("partner", partner), zap.Int("step", step))
				}
				// else: no partner this round; stay active, unchanged.
			} else if rank%step == 0 {
				partner := rank - step
				if err := f.SendFile(partner, current); err != nil {
					return "", fmt.Errorf("treemerge: rank %d sending to %d: %w", rank, partner, err)
				}
				os.Remove(current)
				current = ""
				active = false
				log.Info("treemerge: shipped run to partner and went inactive",
					zap.Int("rank", rank), zap.Int("partner", partner), zap.Int("step", step))
			}
		}

		if err := f.Barrier(); err != nil {
			return "", fmt.Errorf("treemerge: rank %d barrier at step %d: %w", rank, step, err)
		}
	}

	if rank == 0 {
		return current, nil
	}
	return "", nil
}
