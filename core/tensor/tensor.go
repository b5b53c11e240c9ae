// Package tensor defines the opaque tensor capability contract the
// imputation engine is written against, together with its plaintext
// implementations.
//
// The contract is what makes the engine transparent over cleartext,
// secret-shared and horizontally partitioned data: every operation the
// core needs (arithmetic, transpose, slicing, same-domain construction,
// copying) is expressed here, and nothing in the core ever reads an
// element value directly. Reveal, the only confidentiality boundary
// crossing, is a separate optional interface and is never called by the
// core algorithms themselves.
//
// Two implementations ship with this package:
//
//   - Dense: a gonum mat.Dense backed plaintext tensor.
//   - Partitioned: a horizontally partitioned plaintext layout whose row
//     ownership follows an mpc.Context's partition bounds.
//
// Secure backends (additively shared tensors and the like) satisfy the same
// interfaces and plug in without changes to the engine.
package tensor

import (
	"math/rand"

	"github.com/0xTCG/secure-mice/core/mpc"
)

// Dist tags the distribution used for random tensor construction.
type Dist int

const (
	// Uniform draws elements uniformly from [-1, 1).
	Uniform Dist = iota
	// Normal draws elements from the standard normal distribution.
	Normal
)

// Tensor is a 2-D numeric container generic over a secure capability.
//
// All arithmetic stays inside the tensor's native numeric domain; only
// shapes are public. Operations return new tensors and never alias the
// receiver's storage unless documented otherwise. Mixing tensors from
// different backends in one operation is an error.
type Tensor interface {
	// Dims returns the (rows, cols) shape. Shape is public information.
	Dims() (rows, cols int)

	// Backend returns the same-domain constructor set for this tensor.
	Backend() Backend

	// Add returns the elementwise sum.
	Add(o Tensor) (Tensor, error)

	// Sub returns the elementwise difference.
	Sub(o Tensor) (Tensor, error)

	// MatMul returns the matrix product.
	MatMul(o Tensor) (Tensor, error)

	// MulElem returns the elementwise (Hadamard) product.
	MulElem(o Tensor) (Tensor, error)

	// Scale returns the tensor multiplied by a public scalar.
	Scale(c float64) Tensor

	// T returns the transpose.
	T() Tensor

	// Copy returns an independent-state duplicate.
	Copy() Tensor

	// TakeRows gathers the given global rows, in the given order, into a
	// new tensor.
	TakeRows(idx []int) (Tensor, error)

	// SliceRows returns a copy of rows [start, end).
	SliceRows(start, end int) (Tensor, error)

	// Col returns column j as a (rows, 1) tensor.
	Col(j int) (Tensor, error)

	// DropCol returns a copy with column j removed.
	DropCol(j int) (Tensor, error)

	// AppendOnes returns a copy with a trailing bias column of ones.
	AppendOnes() Tensor

	// SetRows writes vals (a len(rows) x 1 tensor) into column col at the
	// given global rows, mutating the receiver.
	SetRows(col int, rows []int, vals Tensor) error

	// Inverse returns the inverse of a small square tensor. It exists for
	// the closed-form normal-equations solve only; secure backends
	// implement it with their small-matrix inversion protocol.
	Inverse() (Tensor, error)
}

// Backend constructs tensors in the same numeric domain as the tensor it
// was obtained from. This is how the engine creates weight vectors, noise
// and zero initializers without knowing the domain.
type Backend interface {
	// Zeros returns a (rows, cols) tensor of zeros.
	Zeros(rows, cols int) Tensor

	// New lifts public plaintext values into the domain.
	New(rows, cols int, data []float64) Tensor

	// Rand returns a (rows, cols) tensor with elements drawn from dist.
	// A nil rng falls back to the backend's own randomness.
	Rand(rows, cols int, dist Dist, rng *rand.Rand) Tensor
}

// Revealer is implemented by tensors whose backend can reconstruct
// plaintext values. Calling Reveal crosses the confidentiality boundary
// and is reserved for the orchestration layer around the engine.
type Revealer interface {
	Reveal(ctx mpc.Context) (Tensor, error)
}
