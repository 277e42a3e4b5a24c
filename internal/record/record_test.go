package record_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

func TestWriteThenDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	recs := genRecords(rng, 50, 1_000_000)
	buf := encodeAll(recs)

	var off int64
	for _, want := range recs {
		got, next, err := record.Decode(buf, off)
		require.NoError(t, err)
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Payload, got.Payload)
		off = next
	}
	assert.Equal(t, int64(len(buf)), off)
}

func TestWriteThenReadFromRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	recs := genRecords(rng, 20, 1_000_000)
	buf := encodeAll(recs)

	r := bytes.NewReader(buf)
	for _, want := range recs {
		got, err := record.ReadFrom(r)
		require.NoError(t, err)
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Payload, got.Payload)
	}
}

func TestDecodeRejectsLenTooSmall(t *testing.T) {
	buf := make([]byte, record.HeaderSize)
	// len = 5, below PayloadMin
	buf[8] = 5
	_, _, err := record.Decode(buf, 0)
	assert.ErrorIs(t, err, record.ErrCorruptRecord)
}

func TestDecodeRejectsLenTooLarge(t *testing.T) {
	buf := make([]byte, record.HeaderSize)
	buf[8] = 0xFF
	buf[9] = 0xFF
	_, _, err := record.Decode(buf, 0)
	assert.ErrorIs(t, err, record.ErrCorruptRecord)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	buf := make([]byte, record.HeaderSize-1)
	_, _, err := record.Decode(buf, 0)
	assert.ErrorIs(t, err, record.ErrTruncatedRecord)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	buf := make([]byte, record.HeaderSize+4)
	buf[8] = 8 // declares 8 bytes of payload, only 4 present
	_, _, err := record.Decode(buf, 0)
	assert.ErrorIs(t, err, record.ErrTruncatedRecord)
}

func TestReadFromReturnsEOFAtEnd(t *testing.T) {
	r := bytes.NewReader(nil)
	_, err := record.ReadFrom(r)
	assert.ErrorIs(t, err, io.EOF)
}
