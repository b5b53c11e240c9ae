// Package linear provides the two regression models driven by the
// imputation engine: LinReg (least squares) and LogReg (logistic with a
// polynomial sigmoid), both written against the tensor capability contract
// so they run unchanged over plaintext, secret-shared and partitioned data.
//
// Fitting uses the closed-form normal-equations solve for very small
// feature spaces and gradient descent with precomputed invariants
// otherwise:
//
//	w ← w + step·(Xᵀy − XᵀX·w)
//
// The invariants XᵀX and Xᵀy are computed once per fit (or once per batch
// for the "mbgd" optimizer) because each secure multiplication is a
// collective operation; recomputing them every epoch would multiply the
// protocol cost by the epoch count.
//
// Example usage:
//
//	m := linear.NewLinReg(linear.WithSeed(42))
//	coef, err := m.Fit(X, y, 1e-3, 100, model.BGD)
//	if err != nil {
//		log.Fatal(err)
//	}
//	pred, err := m.Predict(XTest, 0)
package linear

import (
	"math/rand"
	"time"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// LinReg is a linear least-squares regression model over the tensor
// contract. Its coefficient tensor has shape (features+1, 1); the trailing
// entry is the bias.
type LinReg struct {
	state  *model.StateManager
	coef   tensor.Tensor
	rng    *rand.Rand
	logger log.Logger
}

// NewLinReg creates a linear regression model. The model must be trained
// with Fit (or given weights via WithInitialWeights or RandomizeWeights)
// before predicting.
func NewLinReg(opts ...Option) *LinReg {
	o := newOptions(opts...)
	m := &LinReg{
		state: model.NewStateManager(),
		coef:  o.coef,
		rng:   o.newRand(),
	}
	if o.logger != nil {
		m.logger = o.logger
	} else {
		m.logger = log.GetLoggerWithName("linear").With(
			log.ModelNameKey, "LinReg",
		)
	}
	if m.coef != nil {
		m.state.SetFitted()
	}
	return m
}

// Fit trains the model on design matrix X and targets y, mutating the
// coefficients in place and returning them.
//
// A bias column is appended to X internally. When the bias-augmented
// feature count is below four the closed-form solve (XᵀX)⁻¹Xᵀy is used and
// step/epochs/opt are ignored; otherwise opt selects batch ("bgd") or
// mini-batch ("mbgd") gradient descent. Any other optimizer tag is a
// configuration error.
func (m *LinReg) Fit(X, y tensor.Tensor, step float64, epochs int, opt model.Optimizer) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LinReg.Fit")

	startTime := time.Now()
	r, c, err := validateXY("LinReg.Fit", X, y)
	if err != nil {
		return nil, err
	}

	Xb := X.AppendOnes()
	f := c + 1

	m.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.OptimizerKey, string(opt),
		log.EpochsKey, epochs,
	)

	switch {
	case f < closedFormThreshold:
		m.coef, err = closedForm(Xb, y)
	default:
		if !opt.Valid() {
			return nil, errors.Mark(
				errors.NewConfigError("optimizer", string(opt), "must be \"bgd\" or \"mbgd\""),
				errors.ErrUnknownOptimizer)
		}
		var parts []normalParts
		if opt == model.BGD {
			var p normalParts
			if p, err = precompute(Xb, y); err == nil {
				parts = []normalParts{p}
			}
		} else {
			parts, err = precomputeBatches(Xb, y)
		}
		if err != nil {
			return nil, err
		}
		w := initWeights(m.coef, X.Backend(), f)
		m.coef, err = descend(w, parts, step, epochs, 1)
	}
	if err != nil {
		return nil, err
	}

	m.state.SetFitted()
	m.state.SetDimensions(c, r)

	m.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)

	return m.coef, nil
}

// Predict computes X̃·coef, where X̃ has the appended bias column. A
// non-zero noiseScale adds independent normal noise scaled by noiseScale
// to each prediction.
func (m *LinReg) Predict(X tensor.Tensor, noiseScale float64) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LinReg.Predict")
	if err := m.state.RequireFitted("LinReg", "Predict"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	cr, _ := m.coef.Dims()
	if c+1 != cr {
		return nil, errors.NewDimensionError("LinReg.Predict", cr-1, c, 1)
	}

	m.logger.Debug("Prediction started",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, r,
	)

	pred, err := X.AppendOnes().MatMul(m.coef)
	if err != nil {
		return nil, err
	}
	if noiseScale != 0 {
		noise := X.Backend().Rand(r, 1, tensor.Normal, m.rng).Scale(noiseScale)
		pred, err = pred.Add(noise)
		if err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// Loss returns the sum of squared residuals (y − X̃w)ᵀ(y − X̃w) as a 1x1
// tensor in the native numeric domain.
func (m *LinReg) Loss(X, y tensor.Tensor) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LinReg.Loss")
	if err := m.state.RequireFitted("LinReg", "Loss"); err != nil {
		return nil, err
	}
	pred, err := X.AppendOnes().MatMul(m.coef)
	if err != nil {
		return nil, err
	}
	res, err := y.Sub(pred)
	if err != nil {
		return nil, err
	}
	return res.T().MatMul(res)
}

// RandomizeWeights replaces the coefficients with fresh draws from dist.
func (m *LinReg) RandomizeWeights(backend tensor.Backend, nWeights int, dist tensor.Dist) {
	if nWeights <= 0 && m.coef != nil {
		nWeights, _ = m.coef.Dims()
	}
	if nWeights <= 0 {
		return
	}
	m.coef = backend.Rand(nWeights, 1, dist, m.rng)
	m.state.SetFitted()
}

// Coefficients returns the current coefficient tensor, or nil before the
// first Fit.
func (m *LinReg) Coefficients() tensor.Tensor {
	return m.coef
}

// SetCoefficients installs externally produced coefficients, e.g. the
// pooled estimate of an MI run.
func (m *LinReg) SetCoefficients(coef tensor.Tensor) error {
	if coef == nil {
		return errors.NewValueError("LinReg.SetCoefficients", "nil coefficients")
	}
	if _, c := coef.Dims(); c != 1 {
		return errors.NewValueError("LinReg.SetCoefficients", "coefficients must be a column vector")
	}
	m.coef = coef
	m.state.SetFitted()
	return nil
}

// IsFitted returns whether the model has been fitted.
func (m *LinReg) IsFitted() bool {
	return m.state.IsFitted()
}

var _ model.Model = (*LinReg)(nil)
