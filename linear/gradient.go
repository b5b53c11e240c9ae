package linear

import (
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// miniBatches is the fixed number of row batches used by the "mbgd"
// optimizer.
const miniBatches = 10

// closedFormThreshold is the bias-augmented feature count below which the
// exact normal-equations solve replaces gradient descent. Descent buys
// nothing for such small systems and the exact solve needs no step tuning.
const closedFormThreshold = 4

// normalParts holds the precomputed invariants of the gradient update
// rule: cov = XᵀX and ref = Xᵀy (or its linearized logistic analogue).
// Precomputing them once is required because recomputing XᵀX every epoch
// pays a secure multiplication per element per epoch under shared backends.
type normalParts struct {
	cov tensor.Tensor
	ref tensor.Tensor
}

// precompute builds the update-rule invariants for one batch.
func precompute(Xb, y tensor.Tensor) (normalParts, error) {
	Xt := Xb.T()
	cov, err := Xt.MatMul(Xb)
	if err != nil {
		return normalParts{}, err
	}
	ref, err := Xt.MatMul(y)
	if err != nil {
		return normalParts{}, err
	}
	return normalParts{cov: cov, ref: ref}, nil
}

// batchRanges splits rows [0, r) into at most n contiguous non-empty
// ranges.
func batchRanges(r, n int) [][2]int {
	ranges := make([][2]int, 0, n)
	for i := 0; i < n; i++ {
		start := i * r / n
		end := (i + 1) * r / n
		if start < end {
			ranges = append(ranges, [2]int{start, end})
		}
	}
	return ranges
}

// precomputeBatches builds per-batch invariants for mini-batch descent.
func precomputeBatches(Xb, y tensor.Tensor) ([]normalParts, error) {
	r, _ := Xb.Dims()
	ranges := batchRanges(r, miniBatches)
	parts := make([]normalParts, 0, len(ranges))
	for _, rg := range ranges {
		bX, err := Xb.SliceRows(rg[0], rg[1])
		if err != nil {
			return nil, err
		}
		bY, err := y.SliceRows(rg[0], rg[1])
		if err != nil {
			return nil, err
		}
		p, err := precompute(bX, bY)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// descend iterates w <- w + step*(ref - covScale*cov*w) once per batch per
// epoch. covScale is 1 for the linear model and 1/4 for the linearized
// logistic gradient.
func descend(w tensor.Tensor, parts []normalParts, step float64, epochs int, covScale float64) (tensor.Tensor, error) {
	for e := 0; e < epochs; e++ {
		for _, p := range parts {
			cw, err := p.cov.MatMul(w)
			if err != nil {
				return nil, err
			}
			if covScale != 1 {
				cw = cw.Scale(covScale)
			}
			grad, err := p.ref.Sub(cw)
			if err != nil {
				return nil, err
			}
			w, err = w.Add(grad.Scale(step))
			if err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

// closedForm computes (XᵀX)⁻¹Xᵀy exactly.
func closedForm(Xb, y tensor.Tensor) (tensor.Tensor, error) {
	p, err := precompute(Xb, y)
	if err != nil {
		return nil, err
	}
	inv, err := p.cov.Inverse()
	if err != nil {
		return nil, err
	}
	return inv.MatMul(p.ref)
}

// initWeights returns the gradient-descent starting point: the current
// coefficients when their shape matches (warm start, and the randomized
// weights of stochastic rounds), zeros otherwise.
func initWeights(coef tensor.Tensor, backend tensor.Backend, n int) tensor.Tensor {
	if coef != nil {
		r, c := coef.Dims()
		if r == n && c == 1 {
			return coef
		}
	}
	return backend.Zeros(n, 1)
}

// validateXY checks the design-matrix/target shapes shared by both models.
func validateXY(op string, X, y tensor.Tensor) (rows, cols int, err error) {
	r, c := X.Dims()
	yr, yc := y.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if yr != r {
		return 0, 0, errors.NewDimensionError(op, r, yr, 0)
	}
	if yc != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return r, c, nil
}
