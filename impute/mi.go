package impute

import (
	"time"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// FitParams carries the hyperparameters shared by the MI and MICE fit
// loops. The imputation model and the downstream model are tuned
// independently, hence the separate step sizes and epoch counts.
type FitParams struct {
	// ImputeStep and ImputeEpochs configure the per-column imputation
	// model fits.
	ImputeStep   float64
	ImputeEpochs int

	// FitStep and FitEpochs configure the downstream model fit on each
	// completed dataset.
	FitStep   float64
	FitEpochs int

	// NoiseScale scales the Gaussian perturbation added to imputed
	// values. Zero disables the noise, making batched rounds identical.
	NoiseScale float64

	// Mode selects Stochastic or Batched round generation.
	Mode Mode

	// Optimizer selects the gradient-descent variant for all fits.
	// Empty defaults to batch gradient descent.
	Optimizer model.Optimizer
}

func (p *FitParams) validate() error {
	if !p.Mode.Valid() {
		return errors.Mark(
			errors.NewConfigError("mode", string(p.Mode), "must be \"stochastic\" or \"batched\""),
			errors.ErrUnknownMode)
	}
	if p.Optimizer == "" {
		p.Optimizer = model.BGD
	} else if !p.Optimizer.Valid() {
		return errors.Mark(
			errors.NewConfigError("optimizer", string(p.Optimizer), "must be \"bgd\" or \"mbgd\""),
			errors.ErrUnknownOptimizer)
	}
	return nil
}

// fitStart captures the downstream model's coefficients before the round
// loop, and reset pins them back before each round's fit. Without the
// reset every fit would warm-start from the previous round's estimate, so
// identical completed datasets would produce different estimates and the
// pooled vector would not equal a single round's fit.
type fitStart struct {
	coef tensor.Tensor
}

func captureFitStart(m model.Model) fitStart {
	var s fitStart
	if c := m.Coefficients(); c != nil {
		s.coef = c.Copy()
	}
	return s
}

func (s fitStart) reset(m model.Model, data tensor.Tensor) error {
	if s.coef != nil {
		return m.SetCoefficients(s.coef.Copy())
	}
	_, c := data.Dims()
	return m.SetCoefficients(data.Backend().Zeros(c+1, 1))
}

// MI runs factor-based multiple imputation on a single column: it
// produces factor independently completed datasets, fits the downstream
// model on each, and pools the coefficient estimates into one vector.
//
// MI owns one Imputer for the target column and one downstream model.
// After Fit the downstream model carries the pooled coefficients, so its
// Predict and Loss operate on the combined estimate.
type MI struct {
	factor   int
	imputer  *Imputer
	fitModel model.Model
	logger   log.Logger
}

// MIOption configures an MI ensemble at construction time.
type MIOption func(*MI)

// WithMILogger replaces the ensemble's logger.
func WithMILogger(logger log.Logger) MIOption {
	return func(mi *MI) {
		mi.logger = logger
	}
}

// WithMIReveal installs the reveal contract on the owned imputer.
func WithMIReveal(f RevealFunc) MIOption {
	return func(mi *MI) {
		mi.imputer.reveal = f
	}
}

// NewMI creates an MI ensemble producing factor completed datasets.
// imputeModel predicts the missing column; fitModel is the downstream
// model fitted per round and updated with the pooled coefficients.
func NewMI(factor int, imputeModel, fitModel model.Model, opts ...MIOption) (*MI, error) {
	if factor < 1 {
		return nil, errors.NewConfigError("factor", factor, "must be at least 1")
	}
	mi := &MI{
		factor:   factor,
		imputer:  NewImputer(imputeModel),
		fitModel: fitModel,
		logger:   log.GetLoggerWithName("impute").With(log.ModelNameKey, "MI"),
	}
	for _, opt := range opts {
		opt(mi)
	}
	return mi, nil
}

// Factor returns the number of imputation rounds.
func (mi *MI) Factor() int {
	return mi.factor
}

// Imputer returns the owned single-column imputer.
func (mi *MI) Imputer() *Imputer {
	return mi.imputer
}

// FitModel returns the downstream model; after Fit it carries the pooled
// coefficients.
func (mi *MI) FitModel() model.Model {
	return mi.fitModel
}

// Fit runs the full split, impute, fit, pool pipeline and returns the
// factor completed datasets. data holds the design matrix with the
// incomplete column at index col; labels is the downstream target vector,
// which must itself be complete.
//
// In batched mode the imputation model is fitted once and only the
// prediction noise varies per round. In stochastic mode the imputation
// model is re-randomized and re-fitted before every round. The rounds run
// strictly in order; each impute is a collective operation.
func (mi *MI) Fit(ctx mpc.Context, data, labels tensor.Tensor, missing []int, col int, p FitParams) (completed []tensor.Tensor, err error) {
	defer errors.Recover(&err, "MI.Fit")
	if err = p.validate(); err != nil {
		return nil, err
	}

	r, _ := data.Dims()
	if lr, _ := labels.Dims(); lr != r {
		return nil, errors.NewDimensionError("MI.Fit", r, lr, 0)
	}

	start := time.Now()
	mi.logger.Info("Starting multiple imputation",
		log.OperationKey, log.OperationImpute,
		log.PhaseKey, log.PhaseImputation,
		log.FactorKey, mi.factor,
		log.ModeKey, string(p.Mode),
		log.ColumnKey, col,
		log.MissingRowsKey, len(missing),
		log.PartitionsKey, ctx.Parties(),
	)

	complete, _, colLabels, err := mi.imputer.Split(data, col, missing)
	if err != nil {
		return nil, err
	}

	if p.Mode == Batched {
		if err = mi.imputer.Fit(complete, colLabels, p.ImputeStep, p.ImputeEpochs, Batched, p.Optimizer); err != nil {
			return nil, err
		}
	}

	snap := captureFitStart(mi.fitModel)
	completed = make([]tensor.Tensor, 0, mi.factor)
	coefs := make([]tensor.Tensor, 0, mi.factor)
	for round := 0; round < mi.factor; round++ {
		if p.Mode == Stochastic {
			if err = mi.imputer.Fit(complete, colLabels, p.ImputeStep, p.ImputeEpochs, Stochastic, p.Optimizer); err != nil {
				return nil, err
			}
		}
		d, err := mi.imputer.Impute(data, missing, col, p.NoiseScale)
		if err != nil {
			return nil, err
		}
		if err = snap.reset(mi.fitModel, d); err != nil {
			return nil, err
		}
		if _, err = mi.fitModel.Fit(d, labels, p.FitStep, p.FitEpochs, p.Optimizer); err != nil {
			return nil, err
		}
		// The model's coefficients are reset before the next round's fit,
		// so each round's estimate is snapshotted first.
		coefs = append(coefs, mi.fitModel.Coefficients().Copy())
		completed = append(completed, d)

		mi.logger.Debug("Imputation round complete",
			log.RoundKey, round,
			log.FactorKey, mi.factor,
		)
	}

	pooled, err := Pool(coefs)
	if err != nil {
		return nil, err
	}
	if err = mi.fitModel.SetCoefficients(pooled); err != nil {
		return nil, err
	}

	mi.logger.Info("Multiple imputation complete",
		log.PhaseKey, log.PhasePooling,
		log.FactorKey, mi.factor,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return completed, nil
}
