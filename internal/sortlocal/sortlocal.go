// Package sortlocal implements the Local Sorter (§4.4): memory-map the
// input file, build an in-memory index of {key, payload, len} entries for
// a rank's assigned byte range, sort the index in parallel, and stream the
// sorted index out to a run file. The sort never copies payload bytes
// during comparison — entries are views into the mapping.
package sortlocal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

// ParallelThreshold is the index-vector length above which the sort fans
// out across the thread pool instead of running sequentially (§4.4 step 4).
const ParallelThreshold = 1000

// SequentialFloor is the sub-range size below which a parallel partition
// task is delegated to a sequential sort rather than split further.
const SequentialFloor = 10_000

// entry is {key, payload-pointer, len}: a view into the memory-mapped
// input, never a copy of the payload bytes (§3 Record index entry).
type entry struct {
	key     uint64
	payload []byte
}

// Sort reads every record whose start offset lies in [startOffset,
// endOffset) from inputPath, sorts them by key using up to poolSize
// goroutines, and writes the sorted run to outPath.
//
// Failure to open or map inputPath, or to create outPath, is fatal
// (§4.4's IoOpenError). A corrupt or truncated record within the slice
// truncates the local run at that point without failing the rank, unless
// strictCorruption is set, in which case it is promoted to a fatal error.
func Sort(inputPath string, startOffset, endOffset int64, outPath string, poolSize int, strictCorruption bool) (err error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("sortlocal: opening input: %w", err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("sortlocal: mapping input: %w", err)
	}
	defer m.Unmap()

	buf := []byte(m)
	if endOffset < 0 || endOffset > int64(len(buf)) {
		endOffset = int64(len(buf))
	}

	entries, walkErr := walk(buf, startOffset, endOffset, strictCorruption)
	if walkErr != nil {
		return fmt.Errorf("sortlocal: %w", walkErr)
	}

	if err := parallelSortEntries(entries, poolSize); err != nil {
		return fmt.Errorf("sortlocal: sorting: %w", err)
	}

	if err := writeRun(outPath, entries); err != nil {
		return fmt.Errorf("sortlocal: writing run: %w", err)
	}
	return nil
}

// walk indexes every record in buf[startOffset:endOffset] without copying
// payload bytes. It stops early, logging a warning, on an invalid header —
// unless strictCorruption is set, in which case it returns an error.
func walk(buf []byte, startOffset, endOffset int64, strictCorruption bool) ([]entry, error) {
	var entries []entry
	cursor := startOffset
	for cursor < endOffset {
		rec, next, err := record.Decode(buf, cursor)
		if err != nil {
			if strictCorruption {
				return nil, err
			}
			log.Warn("sortlocal: stopping at corrupt record",
				zap.Int64("offset", cursor), zap.Error(err))
			break
		}
		entries = append(entries, entry{key: rec.Key, payload: rec.Payload})
		cursor = next
	}
	return entries, nil
}

// parallelSortEntries sorts entries by key, splitting into independent
// sub-ranges around a pivot and dispatching them to the pool when the
// slice is large enough to be worth the fan-out (§4.4 step 4, §9's
// "task-parallel partition scheme with an explicit sub-range threshold").
func parallelSortEntries(entries []entry, poolSize int) error {
	if len(entries) <= ParallelThreshold || poolSize <= 1 {
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		return nil
	}

	sem := make(chan struct{}, poolSize)
	g, _ := errgroup.WithContext(context.Background())
	var recurse func(s []entry)
	recurse = func(s []entry) {
		if len(s) <= SequentialFloor {
			sort.Slice(s, func(i, j int) bool { return s[i].key < s[j].key })
			return
		}
		pivot := medianOfThree(s)
		lo, hi := partitionAroundPivot(s, pivot)

		left, right := s[:lo], s[hi:]

		var wg sync.WaitGroup
		for _, sub := range [][]entry{left, right} {
			sub := sub
			if len(sub) == 0 {
				continue
			}
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				g.Go(func() error {
					defer wg.Done()
					defer func() { <-sem }()
					recurse(sub)
					return nil
				})
			default:
				recurse(sub)
			}
		}
		wg.Wait()
	}
	recurse(entries)
	return g.Wait()
}

// medianOfThree picks a pivot key from the first, middle, and last
// elements, a cheap, allocation-free way to avoid worst-case partitions on
// already-sorted or reverse-sorted input.
func medianOfThree(s []entry) uint64 {
	a, b, c := s[0].key, s[len(s)/2].key, s[len(s)-1].key
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		b = a
	}
	return b
}

// partitionAroundPivot performs a 3-way Dutch-flag partition of s into
// [<pivot | ==pivot | >pivot], returning the boundaries of the equal-to
// region so both recursive halves exclude it.
func partitionAroundPivot(s []entry, pivot uint64) (lo, hi int) {
	lt, gt := 0, len(s)
	i := 0
	for i < gt {
		switch {
		case s[i].key < pivot:
			s[lt], s[i] = s[i], s[lt]
			lt++
			i++
		case s[i].key > pivot:
			gt--
			s[i], s[gt] = s[gt], s[i]
		default:
			i++
		}
	}
	return lt, gt
}

// writeRun streams entries, in their current order, to outPath as a
// record stream: header re-emitted, payload copied verbatim from the
// mapping.
func writeRun(outPath string, entries []entry) (err error) {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriterSize(out, 1<<20)
	for _, e := range entries {
		if werr := record.WriteTo(w, record.Record{Key: e.key, Payload: e.payload}); werr != nil {
			return werr
		}
	}
	return w.Flush()
}
