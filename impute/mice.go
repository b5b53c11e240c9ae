package impute

import (
	"time"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// MICE runs multiple imputation by chained equations over several
// incomplete columns at once. Each target column gets its own imputer,
// trained on the other columns of the fully observed rows; imputation
// then proceeds column by column within each round, with every column's
// predictions reading the values already imputed for earlier columns in
// the same pass.
//
// The column order is fixed and identical for all parties. Under secure
// backends every impute is a collective operation, so the parties must
// walk the chain in lockstep.
type MICE struct {
	factor   int
	cols     []int
	imputers []*Imputer
	fitModel model.Model
	logger   log.Logger
}

// MICEOption configures a MICE ensemble at construction time.
type MICEOption func(*MICE)

// WithMICELogger replaces the ensemble's logger.
func WithMICELogger(logger log.Logger) MICEOption {
	return func(mc *MICE) {
		mc.logger = logger
	}
}

// WithMICEReveal installs the reveal contract on every per-column
// imputer.
func WithMICEReveal(f RevealFunc) MICEOption {
	return func(mc *MICE) {
		for _, im := range mc.imputers {
			im.reveal = f
		}
	}
}

// NewMICE creates a MICE ensemble. cols lists the incomplete column
// indices in strictly increasing order and colModels supplies one
// regression model per listed column, in the same order. fitModel is the
// downstream model fitted per round and updated with the pooled
// coefficients.
func NewMICE(factor int, fitModel model.Model, cols []int, colModels []model.Model, opts ...MICEOption) (*MICE, error) {
	if factor < 1 {
		return nil, errors.NewConfigError("factor", factor, "must be at least 1")
	}
	if len(cols) == 0 {
		return nil, errors.NewConfigError("cols", cols, "at least one target column is required")
	}
	if len(colModels) != len(cols) {
		return nil, errors.NewConfigError("colModels", len(colModels), "one model per target column is required")
	}
	for k := 1; k < len(cols); k++ {
		if cols[k] <= cols[k-1] {
			return nil, errors.NewConfigError("cols", cols, "column indices must be strictly increasing")
		}
	}

	mc := &MICE{
		factor:   factor,
		cols:     append([]int(nil), cols...),
		imputers: make([]*Imputer, len(cols)),
		fitModel: fitModel,
		logger:   log.GetLoggerWithName("impute").With(log.ModelNameKey, "MICE"),
	}
	for k, m := range colModels {
		mc.imputers[k] = NewImputer(m)
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc, nil
}

// Factor returns the number of imputation rounds.
func (mc *MICE) Factor() int {
	return mc.factor
}

// Columns returns the target column indices in chain order.
func (mc *MICE) Columns() []int {
	return append([]int(nil), mc.cols...)
}

// ImputerFor returns the imputer owned for column col, or nil when col is
// not a target column.
func (mc *MICE) ImputerFor(col int) *Imputer {
	for k, c := range mc.cols {
		if c == col {
			return mc.imputers[k]
		}
	}
	return nil
}

// FitModel returns the downstream model; after Fit it carries the pooled
// coefficients.
func (mc *MICE) FitModel() model.Model {
	return mc.fitModel
}

// fullyObserved returns the indices of rows with no missing value in any
// target column. The per-column imputers train on these rows only, so no
// placeholder value ever enters a training design matrix.
func (mc *MICE) fullyObserved(rows int, masks [][]bool) ([]int, error) {
	if len(masks) != len(mc.cols) {
		return nil, errors.NewConfigError("masks", len(masks), "one mask per target column is required")
	}
	for _, mask := range masks {
		if len(mask) != rows {
			return nil, errors.NewDimensionError("MICE.Fit", rows, len(mask), 0)
		}
	}
	var observed []int
	for i := 0; i < rows; i++ {
		complete := true
		for _, mask := range masks {
			if mask[i] {
				complete = false
				break
			}
		}
		if complete {
			observed = append(observed, i)
		}
	}
	if len(observed) == 0 {
		return nil, errors.NewModelError("MICE.Fit", "no fully observed rows to train on", errors.ErrEmptyData)
	}
	return observed, nil
}

// trainColumn fits the imputer for chain position k on the fully observed
// rows, using every other column as features and column cols[k] as the
// label.
func (mc *MICE) trainColumn(k int, data tensor.Tensor, observed []int, p FitParams) error {
	col := mc.cols[k]
	rowsTaken, err := data.TakeRows(observed)
	if err != nil {
		return err
	}
	features, err := rowsTaken.DropCol(col)
	if err != nil {
		return err
	}
	colVals, err := rowsTaken.Col(col)
	if err != nil {
		return err
	}
	return mc.imputers[k].Fit(features, colVals, p.ImputeStep, p.ImputeEpochs, p.Mode, p.Optimizer)
}

// Fit runs the chained pipeline: a training pass over all target columns,
// then factor rounds each taking a fresh copy of data, imputing the
// columns in chain order in place, and fitting the downstream model on
// the completed copy. The per-round coefficient estimates are pooled into
// the downstream model. masks[k] is the missingness mask for the k-th
// target column; labels is the downstream target vector and must be
// complete.
//
// In batched mode the training pass fits each column's imputer once. In
// stochastic mode every round re-randomizes and re-fits each imputer
// before its column is imputed, so the chain itself varies across rounds.
func (mc *MICE) Fit(ctx mpc.Context, data, labels tensor.Tensor, masks [][]bool, p FitParams) (completed []tensor.Tensor, err error) {
	defer errors.Recover(&err, "MICE.Fit")
	if err = p.validate(); err != nil {
		return nil, err
	}

	r, c := data.Dims()
	if lr, _ := labels.Dims(); lr != r {
		return nil, errors.NewDimensionError("MICE.Fit", r, lr, 0)
	}
	for _, col := range mc.cols {
		if col < 0 || col >= c {
			return nil, errors.NewValueError("MICE.Fit", "target column out of range")
		}
	}
	observed, err := mc.fullyObserved(r, masks)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	mc.logger.Info("Starting chained imputation",
		log.OperationKey, log.OperationImpute,
		log.PhaseKey, log.PhaseTraining,
		log.FactorKey, mc.factor,
		log.ModeKey, string(p.Mode),
		log.SamplesKey, r,
		log.PartitionsKey, ctx.Parties(),
	)

	for k := range mc.cols {
		if err = mc.trainColumn(k, data, observed, p); err != nil {
			return nil, err
		}
	}

	snap := captureFitStart(mc.fitModel)
	completed = make([]tensor.Tensor, 0, mc.factor)
	coefs := make([]tensor.Tensor, 0, mc.factor)
	for round := 0; round < mc.factor; round++ {
		d := data.Copy()
		for k, col := range mc.cols {
			if p.Mode == Stochastic && round > 0 {
				if err = mc.trainColumn(k, data, observed, p); err != nil {
					return nil, err
				}
			}
			if err = mc.imputers[k].ImputeInPlace(d, masks[k], col, p.NoiseScale); err != nil {
				return nil, err
			}
		}
		if err = snap.reset(mc.fitModel, d); err != nil {
			return nil, err
		}
		if _, err = mc.fitModel.Fit(d, labels, p.FitStep, p.FitEpochs, p.Optimizer); err != nil {
			return nil, err
		}
		coefs = append(coefs, mc.fitModel.Coefficients().Copy())
		completed = append(completed, d)

		mc.logger.Debug("Chained round complete",
			log.RoundKey, round,
			log.FactorKey, mc.factor,
		)
	}

	pooled, err := Pool(coefs)
	if err != nil {
		return nil, err
	}
	if err = mc.fitModel.SetCoefficients(pooled); err != nil {
		return nil, err
	}

	mc.logger.Info("Chained imputation complete",
		log.PhaseKey, log.PhasePooling,
		log.FactorKey, mc.factor,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return completed, nil
}
