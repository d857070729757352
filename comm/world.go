package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// mailboxDepth is the number of messages that may be in flight between an
// ordered pair of ranks.
const mailboxDepth = 4

// World is a set of in-process ranks connected by channels. Each rank is
// expected to run on its own goroutine.
type World struct {
	size int
	// mail[src][dst] carries messages from src to dst in FIFO order.
	mail  [][]chan []byte
	done  chan struct{}
	once  sync.Once
	cause error
}

// NewWorld returns a World of size ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic("world size < 1")
	}
	w := &World{
		size: size,
		mail: make([][]chan []byte, size),
		done: make(chan struct{}),
	}
	for src := range w.mail {
		w.mail[src] = make([]chan []byte, size)
		for dst := range w.mail[src] {
			w.mail[src][dst] = make(chan []byte, mailboxDepth)
		}
	}
	return w
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Comm returns the communicator of the given rank.
func (w *World) Comm(rank int) Comm {
	if rank < 0 || rank >= w.size {
		panic("rank out of range")
	}
	return &rankComm{w: w, rank: rank}
}

// Abort terminates every pending and future collective of the world.
// Only the first cause is kept.
func (w *World) Abort(cause error) {
	if cause == nil {
		cause = errors.New("abort requested")
	}
	w.once.Do(func() {
		w.cause = cause
		close(w.done)
	})
}

// Cause returns the error the world was aborted with, or nil.
func (w *World) Cause() error {
	select {
	case <-w.done:
		return w.cause
	default:
		return nil
	}
}

func abortErr(cause error) error {
	return fmt.Errorf("%w: %v", ErrAborted, cause)
}

// Run starts size ranks, each calling fn on its own goroutine with its
// communicator, and waits for all of them. The first rank to fail aborts the
// world; its error is returned. Cancelling ctx aborts the world as well.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c Comm) error) error {
	w := NewWorld(size)
	g, ctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(ctx, func() { w.Abort(context.Cause(ctx)) })
	defer stop()
	for rank := 0; rank < size; rank++ {
		c := w.Comm(rank)
		g.Go(func() error {
			err := fn(ctx, c)
			if err != nil {
				w.Abort(fmt.Errorf("rank %d: %w", rank, err))
			}
			return err
		})
	}
	err := g.Wait()
	if cause := w.Cause(); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

type rankComm struct {
	w    *World
	rank int
}

func (c *rankComm) Rank() int { return c.rank }
func (c *rankComm) Size() int { return c.w.size }

func (c *rankComm) Abort(cause error) { c.w.Abort(cause) }

func (c *rankComm) send(dst int, b []byte) error {
	select {
	case <-c.w.done:
		return abortErr(c.w.cause)
	default:
	}
	select {
	case c.w.mail[c.rank][dst] <- b:
		return nil
	case <-c.w.done:
		return abortErr(c.w.cause)
	}
}

func (c *rankComm) recv(src int) ([]byte, error) {
	select {
	case b := <-c.w.mail[src][c.rank]:
		return b, nil
	case <-c.w.done:
		return nil, abortErr(c.w.cause)
	}
}

func (c *rankComm) AllToAll(parts [][]byte) ([][]byte, error) {
	n := c.w.size
	if err := checkParts(parts, n); err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		dst := (c.rank + i) % n
		if err := c.send(dst, parts[dst]); err != nil {
			return nil, err
		}
	}
	got := make([][]byte, n)
	got[c.rank] = parts[c.rank]
	for i := 1; i < n; i++ {
		src := (c.rank - i + n) % n
		b, err := c.recv(src)
		if err != nil {
			return nil, err
		}
		got[src] = b
	}
	return got, nil
}

func (c *rankComm) AllGather(b []byte) ([][]byte, error) {
	parts := make([][]byte, c.w.size)
	for i := range parts {
		parts[i] = b
	}
	return c.AllToAll(parts)
}

func (c *rankComm) Barrier() error {
	_, err := c.AllToAll(make([][]byte, c.w.size))
	return err
}

func (c *rankComm) AllReduceFloat64(op Op, x float64) (float64, error) {
	return allReduce(c, op, x, reduceFloat64)
}

func (c *rankComm) AllReduceInt(op Op, x int) (int, error) {
	return allReduce(c, op, x, reduceInt)
}

func (c *rankComm) Bcast(root int, b []byte) ([]byte, error) {
	if err := checkRoot(root, c.w.size); err != nil {
		return nil, err
	}
	if c.rank != root {
		return c.recv(root)
	}
	for dst := 0; dst < c.w.size; dst++ {
		if dst == root {
			continue
		}
		if err := c.send(dst, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (c *rankComm) Scatter(root int, parts [][]byte) ([]byte, error) {
	if err := checkRoot(root, c.w.size); err != nil {
		return nil, err
	}
	if c.rank != root {
		return c.recv(root)
	}
	if err := checkParts(parts, c.w.size); err != nil {
		return nil, err
	}
	for dst := 0; dst < c.w.size; dst++ {
		if dst == root {
			continue
		}
		if err := c.send(dst, parts[dst]); err != nil {
			return nil, err
		}
	}
	return parts[root], nil
}

func (c *rankComm) Gather(root int, b []byte) ([][]byte, error) {
	if err := checkRoot(root, c.w.size); err != nil {
		return nil, err
	}
	if c.rank != root {
		return nil, c.send(root, b)
	}
	got := make([][]byte, c.w.size)
	got[root] = b
	for src := 0; src < c.w.size; src++ {
		if src == root {
			continue
		}
		msg, err := c.recv(src)
		if err != nil {
			return nil, err
		}
		got[src] = msg
	}
	return got, nil
}

func checkRoot(root, size int) error {
	if root < 0 || root >= size {
		return fmt.Errorf("root %d out of range [0,%d)", root, size)
	}
	return nil
}

func checkParts(parts [][]byte, size int) error {
	if len(parts) != size {
		return fmt.Errorf("got %d parts for %d ranks", len(parts), size)
	}
	return nil
}
