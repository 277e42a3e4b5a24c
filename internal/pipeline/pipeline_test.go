package pipeline_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/config"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/logging"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/pipeline"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

func init() {
	logging.DiscardForTests()
}

func freePorts(t *testing.T, n int) []string {
	t.Helper()
	ports := make([]string, n)
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		_, port, err := net.SplitHostPort(ln.Addr().String())
		require.NoError(t, err)
		ports[i] = port
		require.NoError(t, ln.Close())
	}
	return ports
}

func writeInput(t *testing.T, dir string, n int, seed int64) (string, []record.Record) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	recs := make([]record.Record, n)
	for i := range recs {
		payload := make([]byte, 8+rng.Intn(32))
		rng.Read(payload)
		recs[i] = record.Record{Key: uint64(rng.Intn(1000)), Payload: payload}
	}
	path := filepath.Join(dir, "input.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, r := range recs {
		require.NoError(t, record.WriteTo(f, r))
	}
	return path, recs
}

func readOutput(t *testing.T, path string) []record.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []record.Record
	r := bytes.NewReader(data)
	for {
		rec, err := record.ReadFrom(r)
		if err != nil {
			break
		}
		out = append(out, rec)
	}
	return out
}

func assertSameMultiset(t *testing.T, want, got []record.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	count := make(map[string]int, len(want))
	key := func(r record.Record) string { return fmt.Sprintf("%d:%s", r.Key, r.Payload) }
	for _, r := range want {
		count[key(r)]++
	}
	for _, r := range got {
		count[key(r)]--
	}
	for k, c := range count {
		assert.Zero(t, c, "multiset mismatch for %q", k)
	}
}

func TestSingleProcessDegeneratesToLocalSortPlusCopy(t *testing.T) {
	dir := t.TempDir()
	input, want := writeInput(t, dir, 300, 1)
	output := filepath.Join(dir, "output.bin")

	cfg := &config.Config{TmpDir: dir}
	require.NoError(t, pipeline.Run(cfg, 0, input, output))

	got := readOutput(t, output)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Key, got[i].Key)
	}
	assertSameMultiset(t, want, got)
}

func TestDistributedRunProducesGloballySortedOutput(t *testing.T) {
	const world = 3
	dir := t.TempDir()
	input, want := writeInput(t, dir, 500, 2)
	output := filepath.Join(dir, "output.bin")

	ports := freePorts(t, world)
	peers := make([]config.PeerAddr, world)
	for r := 0; r < world; r++ {
		peers[r] = config.PeerAddr{Rank: r, Host: "127.0.0.1", Port: ports[r]}
	}
	cfg := &config.Config{Peers: peers, TmpDir: dir}

	var g errgroup.Group
	for r := 0; r < world; r++ {
		r := r
		g.Go(func() error {
			return pipeline.Run(cfg, r, input, output)
		})
	}
	require.NoError(t, g.Wait())

	got := readOutput(t, output)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Key, got[i].Key)
	}
	assertSameMultiset(t, want, got)
}

func TestDistributedRunScattersAboveThreshold(t *testing.T) {
	const world = 2
	dir := t.TempDir()
	input, want := writeInput(t, dir, 50, 3)
	output := filepath.Join(dir, "output.bin")

	ports := freePorts(t, world)
	peers := make([]config.PeerAddr, world)
	for r := 0; r < world; r++ {
		peers[r] = config.PeerAddr{Rank: r, Host: "127.0.0.1", Port: ports[r]}
	}
	cfg := &config.Config{Peers: peers, TmpDir: dir, LargeFileThreshold: 10}

	var g errgroup.Group
	for r := 0; r < world; r++ {
		r := r
		g.Go(func() error {
			return pipeline.Run(cfg, r, input, output)
		})
	}
	require.NoError(t, g.Wait())

	got := readOutput(t, output)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Key, got[i].Key)
	}
	assertSameMultiset(t, want, got)
}
