// Package record implements the on-disk record codec: a 12-byte header
// (8-byte key, 4-byte payload length) followed by the payload itself, with
// no padding, no framing, and no trailer. Records are read-only once
// constructed — callers never mutate a Record in place.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed 12-byte header: 8 bytes key + 4 bytes len.
	HeaderSize = 12

	// PayloadMin and PayloadMax bound a record's payload length in bytes.
	PayloadMin = 8
	PayloadMax = 4096
)

var (
	// ErrCorruptRecord is returned when a header's len field falls outside
	// [PayloadMin, PayloadMax].
	ErrCorruptRecord = errors.New("record: corrupt header: len out of range")

	// ErrTruncatedRecord is returned when fewer than HeaderSize or len bytes
	// are available where a full record was expected.
	ErrTruncatedRecord = errors.New("record: truncated record")
)

// Record is a single {key, payload} pair. Payload is never mutated after
// construction; it may alias memory owned by a memory-mapped file, so it
// must not be retained past the lifetime of that mapping.
type Record struct {
	Key     uint64
	Payload []byte
}

// Len reports the on-disk size of r, header included.
func (r Record) Len() int64 {
	return HeaderSize + int64(len(r.Payload))
}

// Decode reads one record from buf starting at offset off, returning the
// record and the offset of the next record. buf is not copied; Payload
// aliases buf[off+HeaderSize : off+HeaderSize+len].
func Decode(buf []byte, off int64) (Record, int64, error) {
	if off+HeaderSize > int64(len(buf)) {
		return Record{}, off, ErrTruncatedRecord
	}
	header := buf[off : off+HeaderSize]
	key := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])
	if length < PayloadMin || length > PayloadMax {
		return Record{}, off, fmt.Errorf("%w: len=%d", ErrCorruptRecord, length)
	}
	payloadStart := off + HeaderSize
	payloadEnd := payloadStart + int64(length)
	if payloadEnd > int64(len(buf)) {
		return Record{}, off, ErrTruncatedRecord
	}
	return Record{Key: key, Payload: buf[payloadStart:payloadEnd]}, payloadEnd, nil
}

// ReadFrom reads exactly one record from r using one fixed-size read for
// the header and one for the payload. It is the buffered-stream counterpart
// to Decode, used by components that walk a file sequentially instead of
// operating on a memory-mapped view.
func ReadFrom(r io.Reader) (Record, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
	key := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])
	if length < PayloadMin || length > PayloadMax {
		return Record{}, fmt.Errorf("%w: len=%d", ErrCorruptRecord, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
	return Record{Key: key, Payload: payload}, nil
}

// WriteTo emits r's header and payload verbatim to w.
func WriteTo(w io.Writer, r Record) error {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], r.Key)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(r.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(r.Payload)
	return err
}
