package linear

import (
	"math/rand"
	"time"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// LogReg is a logistic regression model over the tensor contract,
// interchangeable with LinReg as an imputation or fit model.
//
// Secure backends cannot evaluate exp, so the sigmoid is replaced by its
// degree-3 polynomial approximation
//
//	σ(z) ≈ 1/2 + z/4 − z³/48
//
// which keeps prediction inside the native numeric domain (additions and
// multiplications only). Training linearizes the sigmoid to σ(z) ≈ 1/2 +
// z/4, which turns the logistic gradient Xᵀ(y − σ(Xw)) into
// Xᵀ(y − 1/2) − XᵀX·w/4 and preserves the precomputed-invariant structure
// of the linear model's update rule.
type LogReg struct {
	state  *model.StateManager
	coef   tensor.Tensor
	rng    *rand.Rand
	logger log.Logger
}

// NewLogReg creates a logistic regression model.
func NewLogReg(opts ...Option) *LogReg {
	o := newOptions(opts...)
	m := &LogReg{
		state: model.NewStateManager(),
		coef:  o.coef,
		rng:   o.newRand(),
	}
	if o.logger != nil {
		m.logger = o.logger
	} else {
		m.logger = log.GetLoggerWithName("linear").With(
			log.ModelNameKey, "LogReg",
		)
	}
	if m.coef != nil {
		m.state.SetFitted()
	}
	return m
}

// shiftedTargets returns y − 1/2, the linearized-gradient target vector.
func shiftedTargets(y tensor.Tensor) (tensor.Tensor, error) {
	r, _ := y.Dims()
	halves := make([]float64, r)
	for i := range halves {
		halves[i] = 0.5
	}
	return y.Sub(y.Backend().New(r, 1, halves))
}

// Fit trains the model with the same dispatch as LinReg: closed-form for
// bias-augmented feature counts below four (solving the linearized system
// against 4·(y − 1/2)), gradient descent with precomputed invariants
// otherwise.
func (m *LogReg) Fit(X, y tensor.Tensor, step float64, epochs int, opt model.Optimizer) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LogReg.Fit")

	startTime := time.Now()
	r, c, err := validateXY("LogReg.Fit", X, y)
	if err != nil {
		return nil, err
	}

	Xb := X.AppendOnes()
	f := c + 1

	ys, err := shiftedTargets(y)
	if err != nil {
		return nil, err
	}

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
		m.coef, err = closedForm(Xb, ys.Scale(4))
	default:
		if !opt.Valid() {
			return nil, errors.Mark(
				errors.NewConfigError("optimizer", string(opt), "must be \"bgd\" or \"mbgd\""),
				errors.ErrUnknownOptimizer)
		}
		var parts []normalParts
		if opt == model.BGD {
			var p normalParts
			if p, err = precompute(Xb, ys); err == nil {
				parts = []normalParts{p}
			}
		} else {
			parts, err = precomputeBatches(Xb, ys)
		}
		if err != nil {
			return nil, err
		}
		w := initWeights(m.coef, X.Backend(), f)
		m.coef, err = descend(w, parts, step, epochs, 0.25)
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

// sigmoidPoly applies the degree-3 polynomial sigmoid approximation
// elementwise to the linear scores.
func sigmoidPoly(z tensor.Tensor) (tensor.Tensor, error) {
	r, _ := z.Dims()
	halves := make([]float64, r)
	for i := range halves {
		halves[i] = 0.5
	}

	z2, err := z.MulElem(z)
	if err != nil {
		return nil, err
	}
	z3, err := z2.MulElem(z)
	if err != nil {
		return nil, err
	}

	p, err := z.Backend().New(r, 1, halves).Add(z.Scale(0.25))
	if err != nil {
		return nil, err
	}
	return p.Sub(z3.Scale(1.0 / 48.0))
}

// Predict computes the approximated class-1 probabilities for X. A
// non-zero noiseScale adds independent normal noise scaled by noiseScale.
func (m *LogReg) Predict(X tensor.Tensor, noiseScale float64) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LogReg.Predict")
	if err := m.state.RequireFitted("LogReg", "Predict"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	cr, _ := m.coef.Dims()
	if c+1 != cr {
		return nil, errors.NewDimensionError("LogReg.Predict", cr-1, c, 1)
	}

	m.logger.Debug("Prediction started",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, r,
	)

	z, err := X.AppendOnes().MatMul(m.coef)
	if err != nil {
		return nil, err
	}
	pred, err := sigmoidPoly(z)
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

// Loss returns the sum of squared residuals between y and the approximated
// probabilities, as a 1x1 tensor. The call contract matches LinReg.Loss.
func (m *LogReg) Loss(X, y tensor.Tensor) (_ tensor.Tensor, err error) {
	defer errors.Recover(&err, "LogReg.Loss")
	if err := m.state.RequireFitted("LogReg", "Loss"); err != nil {
		return nil, err
	}
	z, err := X.AppendOnes().MatMul(m.coef)
	if err != nil {
		return nil, err
	}
	pred, err := sigmoidPoly(z)
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
func (m *LogReg) RandomizeWeights(backend tensor.Backend, nWeights int, dist tensor.Dist) {
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
func (m *LogReg) Coefficients() tensor.Tensor {
	return m.coef
}

// SetCoefficients installs externally produced coefficients.
func (m *LogReg) SetCoefficients(coef tensor.Tensor) error {
	if coef == nil {
		return errors.NewValueError("LogReg.SetCoefficients", "nil coefficients")
	}
	if _, c := coef.Dims(); c != 1 {
		return errors.NewValueError("LogReg.SetCoefficients", "coefficients must be a column vector")
	}
	m.coef = coef
	m.state.SetFitted()
	return nil
}

// IsFitted returns whether the model has been fitted.
func (m *LogReg) IsFitted() bool {
	return m.state.IsFitted()
}

var _ model.Model = (*LogReg)(nil)
