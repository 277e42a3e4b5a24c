// Package boundary implements the coordinator-only single pass that
// enumerates record start offsets in the input file (§4.2).
package boundary

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

// Table is the ordered vector of record start offsets discovered by Scan,
// plus the file size it was built against.
type Table struct {
	Offsets      []int64
	FileSize     int64
	TotalRecords int
}

// Scan walks path from offset 0, reading each record's header and skipping
// its payload, recording every record's start offset. It runs only on the
// coordinator (rank 0); every other rank receives the derived partition
// plan instead of re-scanning the file itself.
//
// Scan terminates successfully when it reaches the file's exact size. An
// invalid length field or a short header/payload read ends the scan early
// with a logged warning rather than an error — the boundary table simply
// stops at the last fully-valid record, per §4.2 and §7's non-fatal
// corruption handling.
func Scan(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	r := bufio.NewReaderSize(f, 1<<20)
	var offsets []int64
	var cursor int64

	var header [record.HeaderSize]byte
	for cursor < size {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			log.Warn("boundary: scan ended on truncated header",
				zap.Int64("offset", cursor), zap.Error(err))
			break
		}
		length := binary.LittleEndian.Uint32(header[8:12])
		if length < record.PayloadMin || length > record.PayloadMax {
			log.Warn("boundary: scan ended on invalid length",
				zap.Int64("offset", cursor), zap.Uint32("len", length))
			break
		}
		start := cursor
		skipped, err := io.CopyN(io.Discard, r, int64(length))
		cursor += record.HeaderSize + skipped
		if err != nil {
			log.Warn("boundary: scan ended on truncated payload",
				zap.Int64("offset", start), zap.Error(err))
			break
		}
		offsets = append(offsets, start)
	}

	return &Table{Offsets: offsets, FileSize: size, TotalRecords: len(offsets)}, nil
}
