// Package fabric implements the message-passing fabric the distributed
// tree merger runs on: point-to-point send/receive, coordinator-rooted
// broadcast and scatter, a global barrier, and a whole-job abort. It is a
// small, purpose-built generalization of the teacher's raw TCP rendezvous
// (distributed-net-packages-sorting/src/netsort.go), which dialed peers
// from a YAML host/port table and identified each connection with a
// handshake rank id.
//
// Only the goroutine that calls Dial may call the methods below — the
// "funneled" thread-safety contract of §5: worker goroutines inside the
// local sorter's pool never touch the fabric.
package fabric

import (
	"errors"
	"fmt"
	"net"
)

// ErrAborted is returned by a fabric call on this rank that fails because
// this rank's own Abort or Close has already closed the connection. A
// peer's Abort is not reported as ErrAborted here: it shows up as an
// ordinary connection error on this rank's next call to that peer.
var ErrAborted = errors.New("fabric: communicator aborted")

// Fabric is the message-passing surface the distributed tree merger and
// partition planner are built on.
type Fabric interface {
	Rank() int
	World() int

	// Send delivers data to rank `to`; Recv blocks until a message from
	// rank `from` arrives. Used for small control messages (partition
	// ranges, barrier tokens) — never for sorted run file bodies, which go
	// through SendFile/RecvFile instead.
	Send(to int, data []byte) error
	Recv(from int) ([]byte, error)

	// SendFile/RecvFile move a sorted run's bytes between ranks using the
	// chunked Bulk File Transport of §4.7.
	SendFile(to int, path string) error
	RecvFile(from int, path string) error

	// Broadcast, called by every rank, distributes data from root to every
	// other rank and returns it on every rank (including root).
	Broadcast(root int, data []byte) ([]byte, error)

	// Scatter, called by every rank, distributes perRank[r] to rank r and
	// returns that rank's own share. perRank is read only on root; other
	// ranks may pass nil.
	Scatter(root int, perRank [][]byte) ([]byte, error)

	// Barrier blocks every rank until all ranks have called Barrier,
	// establishing happens-before between every operation before the call
	// on every rank and every operation after it on every rank (§5).
	Barrier() error

	// Abort logs reason and closes every connection this rank holds. Later
	// fabric calls on this rank fail with ErrAborted; other ranks see a
	// connection error on their next call to this rank, and reason itself
	// is not sent to them. Used for fatal, job-ending errors (§7).
	Abort(reason error)

	Close() error
}

// fatalf builds a consistently formatted, rank-tagged fatal error line
// matching §7's "the coordinator prints a single error line identifying
// the failing rank and message before aborting". An I/O error caused by a
// connection this process already closed (via Abort or Close) is
// reported as ErrAborted rather than a fresh transport error.
func fatalf(rank int, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("rank %d: %w", rank, ErrAborted)
	}
	return fmt.Errorf("rank %d: %w", rank, err)
}
