package boundary_test

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/boundary"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/logging"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

func init() {
	logging.DiscardForTests()
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestScanEmptyFile(t *testing.T) {
	path := writeFile(t, nil)
	table, err := boundary.Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 0, table.TotalRecords)
	assert.Equal(t, int64(0), table.FileSize)
}

func TestScanThreeRecords(t *testing.T) {
	var buf bytes.Buffer
	recs := []record.Record{
		{Key: 5, Payload: []byte("AAAA AAAA")},
		{Key: 2, Payload: []byte("BBBB BBBB")},
		{Key: 9, Payload: []byte("CCCC CCCC")},
	}
	var offsets []int64
	var off int64
	for _, r := range recs {
		offsets = append(offsets, off)
		require.NoError(t, record.WriteTo(&buf, r))
		off += r.Len()
	}

	path := writeFile(t, buf.Bytes())
	table, err := boundary.Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.TotalRecords)
	assert.Equal(t, offsets, table.Offsets)
	assert.Equal(t, int64(buf.Len()), table.FileSize)
}

func TestScanManyRandomRecords(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var buf bytes.Buffer
	var offsets []int64
	var off int64
	for i := 0; i < 500; i++ {
		length := record.PayloadMin + rng.Intn(record.PayloadMax-record.PayloadMin+1)
		payload := make([]byte, length)
		rng.Read(payload)
		r := record.Record{Key: rng.Uint64(), Payload: payload}
		offsets = append(offsets, off)
		require.NoError(t, record.WriteTo(&buf, r))
		off += r.Len()
	}

	path := writeFile(t, buf.Bytes())
	table, err := boundary.Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 500, table.TotalRecords)
	assert.Equal(t, offsets, table.Offsets)
}

func TestScanStopsAtInvalidLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, record.WriteTo(&buf, record.Record{Key: 1, Payload: []byte("12345678")}))
	validEnd := buf.Len()
	// append a header declaring an out-of-range length (5 < PayloadMin)
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0})

	path := writeFile(t, buf.Bytes())
	table, err := boundary.Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.TotalRecords)
	assert.Equal(t, []int64{0}, table.Offsets)
	assert.Equal(t, int64(validEnd+12), table.FileSize)
}

func TestScanStopsAtTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, record.WriteTo(&buf, record.Record{Key: 1, Payload: []byte("12345678")}))
	// header declaring 8 bytes of payload, but only write 3
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 8, 0, 0, 0})
	buf.Write([]byte{1, 2, 3})

	path := writeFile(t, buf.Bytes())
	table, err := boundary.Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.TotalRecords)
}
