// Package scratch manages each process's per-rank temporary directory:
// creation at startup, unique filename generation for intermediate sorted
// runs, and best-effort teardown on shutdown.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Space is a per-rank scratch directory and its monotonic name counter.
// The counter is combined with the rank so that two ranks whose configured
// base directories happen to coincide can never collide on a filename.
type Space struct {
	dir     string
	rank    int
	counter int64
}

// New creates a fresh scratch directory for rank under base (falling back
// to the process working directory, then os.TempDir(), if base is empty).
func New(base string, rank int) (*Space, error) {
	if base == "" {
		if wd, err := os.Getwd(); err == nil {
			base = wd
		} else {
			base = os.TempDir()
		}
	}
	dir, err := os.MkdirTemp(base, fmt.Sprintf("mergesort-rank%d-*", rank))
	if err != nil {
		return nil, fmt.Errorf("scratch: creating directory under %s: %w", base, err)
	}
	return &Space{dir: dir, rank: rank}, nil
}

// Dir returns the scratch directory's path.
func (s *Space) Dir() string {
	return s.dir
}

// NextPath returns a new, never-before-used path within the scratch
// directory for a file tagged with label (e.g. "local-run", "merged").
func (s *Space) NextPath(label string) string {
	n := atomic.AddInt64(&s.counter, 1)
	name := fmt.Sprintf("%s-r%d-%d", label, s.rank, n)
	return filepath.Join(s.dir, name)
}

// Close removes the entire scratch tree. Errors are logged, never
// returned, matching §4.8's "errors during cleanup are logged, never
// propagated".
func (s *Space) Close() {
	if err := os.RemoveAll(s.dir); err != nil {
		log.Warn("scratch: cleanup failed", zap.Int("rank", s.rank), zap.String("dir", s.dir), zap.Error(err))
	}
}
