// Package preprocessing provides plaintext feature scaling for datasets
// entering the imputation pipeline.
//
// Gradient descent with a shared step size is sensitive to feature scale,
// so standardizing columns before fitting imputation models markedly
// improves convergence. Scaling happens on plaintext data before it is
// lifted into a secure domain or partitioned, hence the *tensor.Dense
// interfaces here.
//
// Example usage:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	if err := scaler.Fit(data); err != nil {
//		log.Fatal(err)
//	}
//	scaled, err := scaler.Transform(data)
package preprocessing

import (
	"math"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// StandardScaler standardizes features column-wise to zero mean and unit
// variance.
type StandardScaler struct {
	state *model.StateManager

	// Mean holds the per-column means computed by Fit.
	Mean []float64

	// Scale holds the per-column standard deviations computed by Fit.
	// Zero-variance columns get scale 1 so Transform leaves them centered
	// but otherwise untouched.
	Scale []float64

	// WithMean selects whether Transform subtracts the column mean.
	WithMean bool

	// WithStd selects whether Transform divides by the column deviation.
	WithStd bool
}

// NewStandardScaler creates a StandardScaler. withMean and withStd select
// centering and variance scaling independently.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// Fit computes the per-column mean and standard deviation of X.
func (s *StandardScaler) Fit(X *tensor.Dense) (err error) {
	defer errors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(r)
		s.Mean[j] = mean

		var ss float64
		for i := 0; i < r; i++ {
			d := X.At(i, j) - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(r))
		if sd == 0 {
			sd = 1
		}
		s.Scale[j] = sd
	}

	s.state.SetFitted()
	s.state.SetDimensions(c, r)
	return nil
}

// Transform returns a standardized copy of X using the fitted statistics.
func (s *StandardScaler) Transform(X *tensor.Dense) (_ *tensor.Dense, err error) {
	defer errors.Recover(&err, "StandardScaler.Transform")
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.Mean), c, 1)
	}

	out := X.Copy().(*tensor.Dense)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			v := out.At(i, j)
			if s.WithMean {
				v -= s.Mean[j]
			}
			if s.WithStd {
				v /= s.Scale[j]
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// FitTransform fits the scaler on X and returns the transformed copy.
func (s *StandardScaler) FitTransform(X *tensor.Dense) (*tensor.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back to the original scale.
// Imputed values produced on scaled data go through this before being
// reported in original units.
func (s *StandardScaler) InverseTransform(X *tensor.Dense) (_ *tensor.Dense, err error) {
	defer errors.Recover(&err, "StandardScaler.InverseTransform")
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", len(s.Mean), c, 1)
	}

	out := X.Copy().(*tensor.Dense)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			v := out.At(i, j)
			if s.WithStd {
				v *= s.Scale[j]
			}
			if s.WithMean {
				v += s.Mean[j]
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// IsFitted returns whether Fit has been called.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// MinMaxScaler rescales features column-wise to the [Min, Max] interval.
// Useful ahead of the polynomial sigmoid, whose approximation degrades for
// scores far outside [-2, 2].
type MinMaxScaler struct {
	state *model.StateManager

	// Min and Max define the target interval.
	Min, Max float64

	dataMin []float64
	dataMax []float64
}

// NewMinMaxScaler creates a MinMaxScaler targeting [min, max].
func NewMinMaxScaler(min, max float64) (*MinMaxScaler, error) {
	if min >= max {
		return nil, errors.NewConfigError("range", [2]float64{min, max}, "min must be below max")
	}
	return &MinMaxScaler{state: model.NewStateManager(), Min: min, Max: max}, nil
}

// Fit records the per-column minima and maxima of X.
func (s *MinMaxScaler) Fit(X *tensor.Dense) (err error) {
	defer errors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.dataMin = make([]float64, c)
	s.dataMax = make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		s.dataMin[j] = lo
		s.dataMax[j] = hi
	}

	s.state.SetFitted()
	s.state.SetDimensions(c, r)
	return nil
}

// Transform returns a rescaled copy of X. Constant columns map to Min.
func (s *MinMaxScaler) Transform(X *tensor.Dense) (_ *tensor.Dense, err error) {
	defer errors.Recover(&err, "MinMaxScaler.Transform")
	if err := s.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != len(s.dataMin) {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", len(s.dataMin), c, 1)
	}

	out := X.Copy().(*tensor.Dense)
	span := s.Max - s.Min
	for j := 0; j < c; j++ {
		width := s.dataMax[j] - s.dataMin[j]
		for i := 0; i < r; i++ {
			if width == 0 {
				out.Set(i, j, s.Min)
				continue
			}
			out.Set(i, j, s.Min+(out.At(i, j)-s.dataMin[j])/width*span)
		}
	}
	return out, nil
}

// FitTransform fits the scaler on X and returns the transformed copy.
func (s *MinMaxScaler) FitTransform(X *tensor.Dense) (*tensor.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// IsFitted returns whether Fit has been called.
func (s *MinMaxScaler) IsFitted() bool {
	return s.state.IsFitted()
}
