package fabric

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/config"
	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/transport"
)

const (
	kindData byte = 1
	kindFile byte = 2
)

// connection dial retry tuning, matching the teacher's
// dial-and-retry loop in listenForData.
const dialRetryInterval = 10 * time.Millisecond

// TCP is a full-mesh, TCP-backed Fabric: every pair of ranks holds one
// open connection, established once at Dial time. For ranks i<j, rank i
// listens and rank j dials, so rank 0 (the coordinator) never needs to
// know any other rank's address in advance — only its own listen address
// and the full peer table (as in the teacher's YAML server list).
type TCP struct {
	rank  int
	world int

	mu    sync.Mutex
	conns map[int]net.Conn

	once sync.Once
}

// Dial establishes the full mesh described by cfg.Peers for this rank and
// blocks until every connection is up.
func Dial(cfg *config.Config, rank int) (*TCP, error) {
	world := cfg.WorldSize()
	if world == 1 {
		return nil, fmt.Errorf("fabric: Dial called with world size 1; the tree merger should not run")
	}

	byRank := make(map[int]config.PeerAddr, world)
	for _, p := range cfg.Peers {
		byRank[p.Rank] = p
	}
	self, ok := byRank[rank]
	if !ok {
		return nil, fmt.Errorf("fabric: no peer table entry for rank %d", rank)
	}

	t := &TCP{
		rank:  rank,
		world: world,
		conns: make(map[int]net.Conn, world-1),
	}

	numAccepts := 0
	for r := range byRank {
		if r > rank {
			numAccepts++
		}
	}

	var g errgroup.Group

	if numAccepts > 0 {
		ln, err := net.Listen("tcp", self.Host+":"+self.Port)
		if err != nil {
			return nil, fmt.Errorf("fabric: listening on %s:%s: %w", self.Host, self.Port, err)
		}
		g.Go(func() error {
			defer ln.Close()
			for i := 0; i < numAccepts; i++ {
				conn, err := ln.Accept()
				if err != nil {
					return fmt.Errorf("fabric: accept: %w", err)
				}
				peerRank, err := readHandshake(conn)
				if err != nil {
					conn.Close()
					return fmt.Errorf("fabric: handshake: %w", err)
				}
				t.mu.Lock()
				t.conns[peerRank] = conn
				t.mu.Unlock()
			}
			return nil
		})
	}

	var lowerRanks []int
	for r := range byRank {
		if r < rank {
			lowerRanks = append(lowerRanks, r)
		}
	}
	sort.Ints(lowerRanks)
	for _, r := range lowerRanks {
		r := r
		peer := byRank[r]
		g.Go(func() error {
			conn, err := dialWithRetry(peer.Host + ":" + peer.Port)
			if err != nil {
				return fmt.Errorf("fabric: dialing rank %d: %w", r, err)
			}
			if err := writeHandshake(conn, rank); err != nil {
				conn.Close()
				return fmt.Errorf("fabric: handshake to rank %d: %w", r, err)
			}
			t.mu.Lock()
			t.conns[r] = conn
			t.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func dialWithRetry(addr string) (net.Conn, error) {
	deadline := time.Now().Add(30 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(dialRetryInterval)
	}
}

func writeHandshake(w io.Writer, rank int) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(rank))
	_, err := w.Write(buf[:])
	return err
}

func readHandshake(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(buf[:])), nil
}

func (t *TCP) Rank() int  { return t.rank }
func (t *TCP) World() int { return t.world }

func (t *TCP) conn(peer int) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[peer]
	if !ok {
		return nil, fmt.Errorf("fabric: no connection to rank %d", peer)
	}
	return c, nil
}

func (t *TCP) Send(to int, data []byte) error {
	c, err := t.conn(to)
	if err != nil {
		return err
	}
	if _, err := c.Write([]byte{kindData}); err != nil {
		return fatalf(t.rank, "send to %d: %w", to, err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	if _, err := c.Write(lenBuf[:]); err != nil {
		return fatalf(t.rank, "send to %d: %w", to, err)
	}
	if len(data) > 0 {
		if _, err := c.Write(data); err != nil {
			return fatalf(t.rank, "send to %d: %w", to, err)
		}
	}
	return nil
}

func (t *TCP) Recv(from int) ([]byte, error) {
	c, err := t.conn(from)
	if err != nil {
		return nil, err
	}
	var kind [1]byte
	if _, err := io.ReadFull(c, kind[:]); err != nil {
		return nil, fatalf(t.rank, "recv from %d: %w", from, err)
	}
	if kind[0] != kindData {
		return nil, fatalf(t.rank, "recv from %d: unexpected frame kind %d", from, kind[0])
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(c, lenBuf[:]); err != nil {
		return nil, fatalf(t.rank, "recv from %d: %w", from, err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(c, data); err != nil {
			return nil, fatalf(t.rank, "recv from %d: %w", from, err)
		}
	}
	return data, nil
}

func (t *TCP) SendFile(to int, path string) error {
	c, err := t.conn(to)
	if err != nil {
		return err
	}
	if _, err := c.Write([]byte{kindFile}); err != nil {
		return fatalf(t.rank, "sendfile to %d: %w", to, err)
	}
	if err := transport.Send(c, path); err != nil {
		return fatalf(t.rank, "sendfile to %d: %w", to, err)
	}
	return nil
}

func (t *TCP) RecvFile(from int, path string) error {
	c, err := t.conn(from)
	if err != nil {
		return err
	}
	var kind [1]byte
	if _, err := io.ReadFull(c, kind[:]); err != nil {
		return fatalf(t.rank, "recvfile from %d: %w", from, err)
	}
	if kind[0] != kindFile {
		return fatalf(t.rank, "recvfile from %d: unexpected frame kind %d", from, kind[0])
	}
	if err := transport.Receive(c, path, 0); err != nil {
		return fatalf(t.rank, "recvfile from %d: %w", from, err)
	}
	return nil
}

func (t *TCP) Broadcast(root int, data []byte) ([]byte, error) {
	if t.rank == root {
		var g errgroup.Group
		for r := 0; r < t.world; r++ {
			if r == root {
				continue
			}
			r := r
			g.Go(func() error { return t.Send(r, data) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return data, nil
	}
	return t.Recv(root)
}

func (t *TCP) Scatter(root int, perRank [][]byte) ([]byte, error) {
	if t.rank == root {
		var g errgroup.Group
		for r := 0; r < t.world; r++ {
			if r == root {
				continue
			}
			r := r
			g.Go(func() error { return t.Send(r, perRank[r]) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return perRank[root], nil
	}
	return t.Recv(root)
}

// Barrier is centralized at rank 0: every other rank sends a token and
// waits for a release; rank 0 waits for every token, then releases
// everyone. This is the global barrier §4.6/§9 requires every rank
// (active or not) to keep participating in.
func (t *TCP) Barrier() error {
	const coordinator = 0
	if t.rank == coordinator {
		for r := 0; r < t.world; r++ {
			if r == coordinator {
				continue
			}
			if _, err := t.Recv(r); err != nil {
				return err
			}
		}
		var g errgroup.Group
		for r := 0; r < t.world; r++ {
			if r == coordinator {
				continue
			}
			r := r
			g.Go(func() error { return t.Send(r, nil) })
		}
		return g.Wait()
	}
	if err := t.Send(coordinator, nil); err != nil {
		return err
	}
	_, err := t.Recv(coordinator)
	return err
}

func (t *TCP) Abort(reason error) {
	t.once.Do(func() {
		log.Error("fabric: aborting communicator", zap.Int("rank", t.rank), zap.Error(reason))
		t.Close()
	})
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for _, c := range t.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
