package scratch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/scratch"
)

func TestNextPathNeverCollides(t *testing.T) {
	base := t.TempDir()
	sp, err := scratch.New(base, 3)
	require.NoError(t, err)
	defer sp.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := sp.NextPath("run")
		assert.False(t, seen[p], "path reused: %s", p)
		seen[p] = true
		assert.Equal(t, filepath.Dir(p), sp.Dir())
	}
}

func TestCloseRemovesDirectory(t *testing.T) {
	base := t.TempDir()
	sp, err := scratch.New(base, 0)
	require.NoError(t, err)
	dir := sp.Dir()

	_, statErr := os.Stat(dir)
	require.NoError(t, statErr)

	sp.Close()

	_, statErr = os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDistinctRanksNeverCollideInSharedBase(t *testing.T) {
	base := t.TempDir()
	a, err := scratch.New(base, 0)
	require.NoError(t, err)
	defer a.Close()
	b, err := scratch.New(base, 1)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Dir(), b.Dir())
}
