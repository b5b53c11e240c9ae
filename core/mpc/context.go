// Package mpc defines the party/context handle threaded through secure
// tensor operations.
//
// The imputation core never inspects identity-bearing fields of the handle.
// The only information it reads is the number of parties and the row
// partition boundaries of horizontally partitioned datasets; everything else
// belongs to the secure-computation runtime behind the tensor contract.
package mpc

import (
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// Context routes secure tensor operations and describes how dataset rows
// are distributed across parties.
type Context interface {
	// Parties returns the number of participating parties.
	Parties() int

	// PartitionBounds returns the cumulative row boundaries of a
	// horizontally partitioned dataset: party p owns the global rows
	// [bounds[p], bounds[p+1]). len(bounds) == Parties()+1 and
	// bounds[0] == 0.
	PartitionBounds() []int
}

// LocalContext is the single-process Context used with plaintext tensors
// and in tests. It simulates a multi-party row layout without any
// transport.
type LocalContext struct {
	bounds []int
}

// Local creates a LocalContext from per-party row counts.
//
//	ctx, err := mpc.Local(40, 35, 25) // 3 parties, 100 rows
func Local(rowCounts ...int) (*LocalContext, error) {
	if len(rowCounts) == 0 {
		return nil, errors.NewValueError("mpc.Local", "at least one party is required")
	}
	bounds := make([]int, len(rowCounts)+1)
	for i, n := range rowCounts {
		if n < 0 {
			return nil, errors.NewValueError("mpc.Local", "negative partition size")
		}
		bounds[i+1] = bounds[i] + n
	}
	return &LocalContext{bounds: bounds}, nil
}

// Parties implements Context.
func (c *LocalContext) Parties() int {
	return len(c.bounds) - 1
}

// PartitionBounds implements Context.
func (c *LocalContext) PartitionBounds() []int {
	return append([]int(nil), c.bounds...)
}

// OwnerOf returns the party owning global row i and the row's local offset
// within that party's shard.
func (c *LocalContext) OwnerOf(i int) (party, local int, err error) {
	if i < 0 || i >= c.bounds[len(c.bounds)-1] {
		return 0, 0, errors.NewValueError("mpc.OwnerOf", "row index out of range")
	}
	for p := 0; p < c.Parties(); p++ {
		if i < c.bounds[p+1] {
			return p, i - c.bounds[p], nil
		}
	}
	// Unreachable given the range check above.
	return 0, 0, errors.NewValueError("mpc.OwnerOf", "row index out of range")
}

// Rows returns the total number of rows across all partitions.
func (c *LocalContext) Rows() int {
	return c.bounds[len(c.bounds)-1]
}
