package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectives(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	results := make(map[int][]string)
	record := func(rank int, s string) {
		mu.Lock()
		results[rank] = append(results[rank], s)
		mu.Unlock()
	}
	err := Run(context.Background(), size, func(ctx context.Context, c Comm) error {
		r := c.Rank()
		sum, err := c.AllReduceFloat64(OpSum, float64(r)+0.5)
		if err != nil {
			return err
		}
		record(r, fmt.Sprint("sum=", sum))

		mn, err := c.AllReduceInt(OpMin, 10-r)
		if err != nil {
			return err
		}
		record(r, fmt.Sprint("min=", mn))

		b, err := c.Bcast(2, []byte(fmt.Sprint("from", r)))
		if err != nil {
			return err
		}
		record(r, string(b))

		var parts [][]byte
		if r == Root {
			parts = [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
		}
		part, err := c.Scatter(Root, parts)
		if err != nil {
			return err
		}
		record(r, string(part))

		all, err := c.Gather(Root, []byte{byte(r)})
		if err != nil {
			return err
		}
		if r == Root {
			record(r, fmt.Sprint(all))
		} else if all != nil {
			return errors.New("non-root received gather result")
		}

		out := make([][]byte, size)
		for dst := range out {
			out[dst] = []byte(fmt.Sprintf("%d->%d", r, dst))
		}
		in, err := c.AllToAll(out)
		if err != nil {
			return err
		}
		for src, msg := range in {
			if string(msg) != fmt.Sprintf("%d->%d", src, r) {
				return fmt.Errorf("rank %d got %q from %d", r, msg, src)
			}
		}
		return c.Barrier()
	})
	require.NoError(t, err)
	letters := []string{"a", "b", "c", "d"}
	for r := 0; r < size; r++ {
		got := results[r]
		require.GreaterOrEqual(t, len(got), 4)
		assert.Equal(t, "sum=8", got[0])
		assert.Equal(t, "min=7", got[1])
		assert.Equal(t, "from2", got[2])
		assert.Equal(t, letters[r], got[3])
	}
	assert.Equal(t, "[[0] [1] [2] [3]]", results[Root][4])
}

func TestManyRounds(t *testing.T) {
	// Back to back collectives with mixed patterns must not deadlock or mix rounds.
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		for round := 0; round < 200; round++ {
			v, err := c.AllReduceInt(OpSum, round)
			if err != nil {
				return err
			}
			if v != 3*round {
				return fmt.Errorf("round %d: got %d", round, v)
			}
			if _, err := c.Gather(round%3, []byte{1}); err != nil {
				return err
			}
			if _, err := c.Bcast(round%3, []byte{2}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAbortPropagates(t *testing.T) {
	errBoom := errors.New("boom")
	var blockedErr error
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		if c.Rank() == 1 {
			return errBoom
		}
		// Rank 1 never joins: the barrier can only end by abort.
		err := c.Barrier()
		if c.Rank() == 0 {
			blockedErr = err
		}
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, blockedErr, ErrAborted)
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Run(ctx, 2, func(ctx context.Context, c Comm) error {
		if c.Rank() == 0 {
			cancel()
			<-ctx.Done()
			return nil
		}
		return c.Barrier() // rank 0 never joins
	})
	assert.ErrorIs(t, err, ErrAborted)
}

func TestSelf(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	v, err := c.AllReduceFloat64(OpMax, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	got, err := c.AllToAll([][]byte{[]byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "x", string(got[0]))
	_, err = c.AllToAll(nil)
	assert.Error(t, err)

	c.Abort(errors.New("stop"))
	assert.ErrorIs(t, c.Barrier(), ErrAborted)
}

func TestReduceExactInts(t *testing.T) {
	const size = 3
	const big = 1<<60 + 1
	err := Run(context.Background(), size, func(ctx context.Context, c Comm) error {
		r := c.Rank()
		sum, err := c.AllReduceInt(OpSum, big+r)
		if err != nil {
			return err
		}
		mx, err := c.AllReduceInt(OpMax, big+r)
		if err != nil {
			return err
		}
		if sum != 3*big+3 || mx != big+2 {
			return fmt.Errorf("rank %d: sum=%d max=%d", r, sum, mx)
		}
		_, err = c.AllReduceInt(Op(7), r)
		if err == nil {
			return errors.New("unsupported op accepted")
		}
		return nil
	})
	require.NoError(t, err)
}
