// Package partition computes the record-aligned, record-count-balanced
// byte range assigned to each rank (§4.3), and decides whether the
// coordinator disseminates the boundary table by full broadcast or by
// per-rank scatter.
package partition

import "github.com/SalimTag/SPM-Distributed-MergeSort/internal/config"

// Range is a record-boundary-aligned byte range assigned to one rank.
// EndOffset is always a concrete byte offset (possibly equal to the file's
// size, for the rank holding the last slice, or to StartOffset for a rank
// with no records at all).
type Range struct {
	StartOffset int64
	EndOffset   int64
}

// Empty reports whether this range contains no records.
func (r Range) Empty() bool {
	return r.StartOffset == r.EndOffset
}

// RecordRange computes [startRecord, endRecord) for rank out of worldSize,
// balancing totalRecords as evenly as possible: the first `extra` ranks
// get one extra record each.
func RecordRange(rank, worldSize, totalRecords int) (start, end int) {
	base := totalRecords / worldSize
	extra := totalRecords % worldSize
	start = rank*base + min(rank, extra)
	end = start + base
	if rank < extra {
		end++
	}
	return start, end
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Plan computes, for every rank, the byte range of records it owns, given
// the coordinator's boundary table and the file's total size. It is run
// only on the coordinator; the per-rank Range values are what gets
// disseminated (in full or piecemeal, see ShouldScatter). Ranges are always
// resolved to concrete byte offsets: the coordinator already knows
// fileSize, so the "to end of file" sentinel of §4.3 is resolved here
// rather than left for downstream readers to interpret.
func Plan(offsets []int64, totalRecords int, fileSize int64, worldSize int) []Range {
	ranges := make([]Range, worldSize)
	for r := 0; r < worldSize; r++ {
		startRec, endRec := RecordRange(r, worldSize, totalRecords)
		var rg Range
		if startRec >= totalRecords {
			// No records at all for this rank (W > total_records).
			rg.StartOffset = fileSize
			rg.EndOffset = fileSize
		} else {
			rg.StartOffset = offsets[startRec]
			if endRec < totalRecords {
				rg.EndOffset = offsets[endRec]
			} else {
				rg.EndOffset = fileSize
			}
		}
		ranges[r] = rg
	}
	return ranges
}

// ShouldScatter reports whether the coordinator should scatter per-rank
// (start, end) pairs instead of broadcasting the full offsets vector, per
// the threshold in cfg.LargeFileThreshold (§4.3).
func ShouldScatter(totalRecords int, cfg *config.Config) bool {
	threshold := cfg.LargeFileThreshold
	if threshold == 0 {
		threshold = config.DefaultLargeFileThreshold
	}
	if cfg.Dissemination == config.DisseminationScatter {
		return true
	}
	return totalRecords > threshold
}
