package model

import (
	"github.com/0xTCG/secure-mice/core/tensor"
)

// Optimizer selects the gradient-descent variant used by Fit. An
// unrecognized tag is a configuration error, surfaced immediately.
type Optimizer string

const (
	// BGD is batch gradient descent with precomputed normal-equation
	// invariants (cov = XᵀX, ref = Xᵀy computed once).
	BGD Optimizer = "bgd"

	// MBGD is mini-batch gradient descent over a fixed number of row
	// batches, each with its own precomputed invariants.
	MBGD Optimizer = "mbgd"
)

// Valid reports whether the optimizer tag is one of the supported variants.
func (o Optimizer) Valid() bool {
	return o == BGD || o == MBGD
}

// Model is the regression-model contract the imputation engine drives.
// LinReg and LogReg are the two interchangeable implementations; both keep
// every computation inside the tensor's native numeric domain.
//
// A Model instance is not safe for concurrent Fit calls: its coefficient
// state is exclusively owned by the Imputer, MI or MICE driving it, and
// rounds are strictly sequential.
type Model interface {
	// Fit trains on design matrix X and targets y, mutating the model's
	// coefficients in place, and returns them. A bias column is appended
	// internally; when the bias-augmented feature count is below four the
	// closed-form normal-equations solve replaces gradient descent.
	Fit(X, y tensor.Tensor, step float64, epochs int, opt Optimizer) (tensor.Tensor, error)

	// Predict computes predictions for X (bias column appended
	// internally). A non-zero noiseScale adds independently drawn noise
	// scaled by noiseScale to each prediction, emulating proper multiple
	// imputation variability.
	Predict(X tensor.Tensor, noiseScale float64) (tensor.Tensor, error)

	// Loss returns the model's loss on (X, y) as a 1x1 tensor, staying in
	// the native numeric domain.
	Loss(X, y tensor.Tensor) (tensor.Tensor, error)

	// RandomizeWeights replaces the coefficients with fresh random draws
	// of shape (nWeights, 1), where nWeights is the bias-augmented feature
	// count; nWeights <= 0 reuses the current coefficient shape. Used by
	// the stochastic imputation mode to diversify rounds. The backend
	// supplies the numeric domain of the draws.
	RandomizeWeights(backend tensor.Backend, nWeights int, dist tensor.Dist)

	// Coefficients returns the current coefficient tensor of shape
	// (features+1, 1), or nil before the first Fit or randomization.
	Coefficients() tensor.Tensor

	// SetCoefficients installs externally produced coefficients, e.g. the
	// pooled estimate after Rubin's combining step.
	SetCoefficients(coef tensor.Tensor) error
}
