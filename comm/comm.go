// Package comm provides rank based message passing for running the mesh
// generator over several cooperating sub-domains.
//
// The API follows MPI collectives. Every rank of a communicator must call the
// same collectives in the same order. Payloads are opaque byte slices which
// must not be modified after being handed to a collective.
package comm

import (
	"errors"
	"fmt"
	"math"
)

// Op is an aggregation operation for reductions.
type Op int

const (
	OpSum Op = iota
	OpMax
	OpMin
)

func (op Op) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

const (
	// Root is the rank 0 node.
	Root int = 0
)

// ErrAborted is returned by every collective once the communicator
// has been aborted.
var ErrAborted = errors.New("communicator aborted")

// Comm is a communicator among a fixed set of ranks.
type Comm interface {
	// Rank returns the rank of the caller in [0, Size).
	Rank() int
	// Size returns the number of ranks.
	Size() int
	// Barrier blocks until every rank has called Barrier.
	Barrier() error
	// AllReduceFloat64 combines x over all ranks with op. Every rank
	// receives the same result.
	AllReduceFloat64(op Op, x float64) (float64, error)
	// AllReduceInt combines x over all ranks with op.
	AllReduceInt(op Op, x int) (int, error)
	// Bcast returns root's b on every rank.
	Bcast(root int, b []byte) ([]byte, error)
	// Scatter sends parts[i] from root to rank i. parts is ignored on non-root ranks.
	Scatter(root int, parts [][]byte) ([]byte, error)
	// Gather collects b from every rank on root, in rank order.
	// Non-root ranks receive nil.
	Gather(root int, b []byte) ([][]byte, error)
	// AllGather collects b from every rank on every rank, in rank order.
	AllGather(b []byte) ([][]byte, error)
	// AllToAll sends parts[i] to rank i and returns the part every rank
	// addressed to the caller, indexed by source rank.
	AllToAll(parts [][]byte) ([][]byte, error)
	// Abort terminates the communicator for all ranks with the given cause.
	Abort(cause error)
}

// reduceFloat64 combines values in rank order so every rank computes bit-identical results.
func reduceFloat64(op Op, vals []float64) float64 {
	acc := vals[0]
	for _, v := range vals[1:] {
		switch op {
		case OpSum:
			acc += v
		case OpMax:
			acc = math.Max(acc, v)
		case OpMin:
			acc = math.Min(acc, v)
		}
	}
	return acc
}

func reduceInt(op Op, vals []int) int {
	acc := vals[0]
	for _, v := range vals[1:] {
		switch op {
		case OpSum:
			acc += v
		case OpMax:
			acc = max(acc, v)
		case OpMin:
			acc = min(acc, v)
		}
	}
	return acc
}

func checkOp(op Op) error {
	if op < OpSum || op > OpMin {
		return fmt.Errorf("unsupported reduction %v", op)
	}
	return nil
}
