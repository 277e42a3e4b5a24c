// Package transport implements the Bulk File Transport primitive of §4.7:
// a length-prefixed, chunked file stream used both by the tree merger
// (shipping a rank's current sorted run to its partner) and, implicitly,
// by any other component that needs to move a large file across the
// message-passing fabric. Every length travels as a portable unsigned
// 64-bit integer, never a native-width int, so the wire format is
// correct between heterogeneous endpoints.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// MaxChunkSize bounds a single chunk's size, mirroring the 128 MiB ceiling
// the original MPI implementation used for its send buffer.
const MaxChunkSize = 128 << 20

// Send stats path for its exact byte length, writes that length as a
// single fixed-width uint64, then streams the file's contents to w in
// chunks of at most MaxChunkSize. An empty file is legal and signaled by a
// length of 0 with no following bytes.
func Send(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transport: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("transport: stat %s: %w", path, err)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(info.Size()))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: writing length: %w", err)
	}

	buf := make([]byte, MaxChunkSize)
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		return fmt.Errorf("transport: streaming %s: %w", path, err)
	}
	return nil
}

// Receive reads a length-prefixed byte stream from r and writes exactly
// that many bytes to a freshly created file at path, in chunks of at most
// bufSize (MaxChunkSize is used when bufSize is 0 or negative).
func Receive(r io.Reader, path string, bufSize int) (err error) {
	if bufSize <= 0 {
		bufSize = MaxChunkSize
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("transport: reading length: %w", err)
	}
	remaining := binary.LittleEndian.Uint64(lenBuf[:])

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("transport: creating %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, bufSize)
	for remaining > 0 {
		want := uint64(len(buf))
		if remaining < want {
			want = remaining
		}
		n, rerr := io.ReadFull(r, buf[:want])
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("transport: writing %s: %w", path, werr)
			}
			remaining -= uint64(n)
		}
		if rerr != nil {
			return fmt.Errorf("transport: short read, %d bytes remaining: %w", remaining, rerr)
		}
	}
	return nil
}
