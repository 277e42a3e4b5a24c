package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

func TestRunReportsUsageErrorOnWrongArgCount(t *testing.T) {
	assert.Equal(t, 1, run(nil))
	assert.Equal(t, 1, run([]string{"only-one"}))
	assert.Equal(t, 1, run([]string{"a", "b", "c", "d"}))
}

func TestRunReportsUsageErrorOnBadThreadCount(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(input, nil, 0o644))
	output := filepath.Join(dir, "out.bin")
	assert.Equal(t, 1, run([]string{input, output, "not-a-number"}))
}

func TestRunSucceedsOnSingleProcessInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, record.WriteTo(f, record.Record{Key: 9, Payload: []byte("xxxxxxxx")}))
	require.NoError(t, record.WriteTo(f, record.Record{Key: 1, Payload: []byte("yyyyyyyy")}))
	require.NoError(t, f.Close())

	output := filepath.Join(dir, "out.bin")
	os.Unsetenv("MERGESORT_RANK")
	os.Unsetenv("MERGESORT_PEERS")
	assert.Equal(t, 0, run([]string{input, output, "2"}))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
