// Package impute implements multiple imputation over the tensor capability
// contract: the single-model Imputer, factor-based multiple imputation
// (MI), chained-equations multiple imputation (MICE) and Rubin-style
// pooling of the per-round coefficient estimates.
//
// The engine is deliberately sequential. Every tensor operation that
// touches secure values is a collective operation between parties, so the
// factor rounds and the MICE column loop run in a globally fixed order;
// parallelizing them would desynchronize the parties.
//
// Missingness is addressed in two first-class forms, used by different
// call paths:
//
//   - an explicit list of missing row indices (Split, Impute), used by MI
//     and direct callers;
//   - a boolean mask over all rows (ImputeInPlace, UpdateViaMask), used by
//     MICE, whose chained passes must write into a shared dataset copy.
package impute

import (
	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// Mode selects how the factor imputation rounds are produced. An
// unrecognized mode is a configuration error.
type Mode string

const (
	// Stochastic re-randomizes and re-fits the imputation model before
	// every round, so both the model and the prediction noise differ
	// across rounds.
	Stochastic Mode = "stochastic"

	// Batched fits the imputation model once and reuses it verbatim for
	// all rounds; only the prediction-time noise differs.
	Batched Mode = "batched"
)

// Valid reports whether the mode is one of the supported variants.
func (m Mode) Valid() bool {
	return m == Stochastic || m == Batched
}

// RevealFunc passes secure values through the caller-chosen reveal
// contract before they are written into a plaintext output buffer. The
// default is the identity (same-domain writes).
type RevealFunc func(tensor.Tensor) (tensor.Tensor, error)

// Imputer trains one regression model on the complete rows of a dataset
// and predicts values for the incomplete rows of a designated column. It
// owns exactly one model and holds no dataset state between calls.
type Imputer struct {
	model  model.Model
	reveal RevealFunc
	logger log.Logger
}

// ImputerOption configures an Imputer at construction time.
type ImputerOption func(*Imputer)

// WithReveal installs the reveal contract applied to predictions before
// they are written into the output dataset. Required when the model's
// backend is secure but the output buffer is plaintext.
func WithReveal(f RevealFunc) ImputerOption {
	return func(im *Imputer) {
		im.reveal = f
	}
}

// WithImputerLogger replaces the imputer's logger.
func WithImputerLogger(logger log.Logger) ImputerOption {
	return func(im *Imputer) {
		im.logger = logger
	}
}

// NewImputer creates an Imputer around a regression model.
func NewImputer(m model.Model, opts ...ImputerOption) *Imputer {
	im := &Imputer{
		model:  m,
		logger: log.GetLoggerWithName("impute").With(log.ModelNameKey, "Imputer"),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Model returns the owned regression model.
func (im *Imputer) Model() model.Model {
	return im.model
}

// partitionRows splits [0, rows) into complete and missing index lists,
// both in original dataset order.
func partitionRows(op string, rows int, missing []int) (complete, miss []int, err error) {
	missingSet := make(map[int]bool, len(missing))
	for _, i := range missing {
		if i < 0 || i >= rows {
			return nil, nil, errors.NewValueError(op, "missing row index out of range")
		}
		missingSet[i] = true
	}
	complete = make([]int, 0, rows-len(missingSet))
	miss = make([]int, 0, len(missingSet))
	for i := 0; i < rows; i++ {
		if missingSet[i] {
			miss = append(miss, i)
		} else {
			complete = append(complete, i)
		}
	}
	return complete, miss, nil
}

// rowsFromMask converts a boolean missingness mask to an index list.
func rowsFromMask(mask []bool) []int {
	var rows []int
	for i, m := range mask {
		if m {
			rows = append(rows, i)
		}
	}
	return rows
}

// Split partitions data on targetCol into the complete-row feature matrix,
// the incomplete-row feature matrix and the complete-row labels. Row order
// follows the original dataset order; targetCol is removed from the
// feature matrices and becomes the label vector.
//
// incomplete is nil when there are no missing rows. An entirely missing
// column is a fatal input error: there is nothing to train on.
func (im *Imputer) Split(data tensor.Tensor, targetCol int, missing []int) (complete, incomplete, labels tensor.Tensor, err error) {
	r, c := data.Dims()
	if targetCol < 0 || targetCol >= c {
		return nil, nil, nil, errors.NewValueError("Imputer.Split", "target column out of range")
	}

	completeIdx, missIdx, err := partitionRows("Imputer.Split", r, missing)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(completeIdx) == 0 {
		return nil, nil, nil, errors.NewModelError("Imputer.Split", "no complete rows for target column", errors.ErrEmptyData)
	}

	im.logger.Debug("Split",
		log.OperationKey, log.OperationSplit,
		log.SamplesKey, r,
		log.ColumnKey, targetCol,
		log.MissingRowsKey, len(missIdx),
	)

	features, err := data.DropCol(targetCol)
	if err != nil {
		return nil, nil, nil, err
	}
	complete, err = features.TakeRows(completeIdx)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(missIdx) > 0 {
		incomplete, err = features.TakeRows(missIdx)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	col, err := data.Col(targetCol)
	if err != nil {
		return nil, nil, nil, err
	}
	labels, err = col.TakeRows(completeIdx)
	if err != nil {
		return nil, nil, nil, err
	}
	return complete, incomplete, labels, nil
}

// SplitPartitioned is the Split variant for horizontally partitioned data,
// where row ownership is physically distributed. Missing rows are still
// given as global indices, but each index is resolved to its owning party
// by a range test against ctx's partition boundaries before the per-party
// shards are gathered.
func (im *Imputer) SplitPartitioned(ctx mpc.Context, data *tensor.Partitioned, targetCol int, missing []int) (complete, incomplete, labels tensor.Tensor, err error) {
	bounds := ctx.PartitionBounds()
	total := bounds[len(bounds)-1]
	if r, _ := data.Dims(); r != total {
		return nil, nil, nil, errors.NewDimensionError("Imputer.SplitPartitioned", total, r, 0)
	}

	// Range-test every missing index against the party boundaries. The
	// per-party counts are logged; the values never leave their shard.
	perParty := make([]int, ctx.Parties())
	for _, i := range missing {
		if i < 0 || i >= total {
			return nil, nil, nil, errors.NewValueError("Imputer.SplitPartitioned", "missing row index out of range")
		}
		for p := 0; p < ctx.Parties(); p++ {
			if i >= bounds[p] && i < bounds[p+1] {
				perParty[p]++
				break
			}
		}
	}
	im.logger.Debug("Partitioned split",
		log.OperationKey, log.OperationSplit,
		log.PartitionsKey, ctx.Parties(),
		log.ColumnKey, targetCol,
		log.MissingRowsKey, len(missing),
		"impute.missing_per_party", perParty,
	)

	return im.Split(data, targetCol, missing)
}

// Fit trains the owned model on the complete partition. In stochastic
// mode the weights are first replaced with fresh random draws so each of
// the factor rounds trains from an independently randomized starting
// point; in batched mode the single fit is reused verbatim by all rounds.
//
// When the model's bias-augmented feature count is small enough for the
// closed-form solve, the randomized weights are discarded by the exact
// solution and stochastic mode produces the same fit every round. Round
// variation then comes from the prediction noise alone; use a non-zero
// NoiseScale with few-feature imputation models.
func (im *Imputer) Fit(complete, labels tensor.Tensor, step float64, epochs int, mode Mode, opt model.Optimizer) error {
	if !mode.Valid() {
		return errors.Mark(
			errors.NewConfigError("mode", string(mode), "must be \"stochastic\" or \"batched\""),
			errors.ErrUnknownMode)
	}
	if mode == Stochastic {
		_, c := complete.Dims()
		im.model.RandomizeWeights(complete.Backend(), c+1, tensor.Uniform)
	}
	_, err := im.model.Fit(complete, labels, step, epochs, opt)
	return err
}

// Update writes vals into column col of dst at the given rows, passing
// them through the imputer's reveal contract first. This is the shared
// writer behind Impute and ImputeInPlace; partitioned destinations route
// each write into the owning party's local storage.
func (im *Imputer) Update(dst tensor.Tensor, col int, rows []int, vals tensor.Tensor) error {
	if im.reveal != nil {
		revealed, err := im.reveal(vals)
		if err != nil {
			return err
		}
		vals = revealed
	}
	return dst.SetRows(col, rows, vals)
}

// UpdateViaMask is Update with mask addressing.
func (im *Imputer) UpdateViaMask(dst tensor.Tensor, col int, mask []bool, vals tensor.Tensor) error {
	return im.Update(dst, col, rowsFromMask(mask), vals)
}

// Impute predicts values for the missing rows of col and returns a
// completed copy of data. With no missing rows the input is returned
// unchanged; predicting on an empty matrix is never attempted.
func (im *Imputer) Impute(data tensor.Tensor, missing []int, col int, noiseScale float64) (tensor.Tensor, error) {
	if len(missing) == 0 {
		return data, nil
	}
	r, c := data.Dims()
	if col < 0 || col >= c {
		return nil, errors.NewValueError("Imputer.Impute", "column index out of range")
	}
	for _, i := range missing {
		if i < 0 || i >= r {
			return nil, errors.NewValueError("Imputer.Impute", "missing row index out of range")
		}
	}

	features, err := data.DropCol(col)
	if err != nil {
		return nil, err
	}
	missFeatures, err := features.TakeRows(missing)
	if err != nil {
		return nil, err
	}
	pred, err := im.model.Predict(missFeatures, noiseScale)
	if err != nil {
		return nil, err
	}
	if pr, _ := pred.Dims(); pr != len(missing) {
		return nil, errors.NewDimensionError("Imputer.Impute", len(missing), pr, 0)
	}

	im.logger.Debug("Imputed column",
		log.OperationKey, log.OperationImpute,
		log.ColumnKey, col,
		log.MissingRowsKey, len(missing),
		log.NoiseScaleKey, noiseScale,
	)

	out := data.Copy()
	if err := im.Update(out, col, missing, pred); err != nil {
		return nil, err
	}
	return out, nil
}

// ImputeInPlace predicts values for the rows masked as missing and writes
// them directly into data. MICE requires the in-place variant: within one
// chained pass each column's imputer must observe the values already
// imputed for earlier columns. A mask with no set rows is a no-op.
func (im *Imputer) ImputeInPlace(data tensor.Tensor, mask []bool, col int, noiseScale float64) error {
	r, c := data.Dims()
	if len(mask) != r {
		return errors.NewDimensionError("Imputer.ImputeInPlace", r, len(mask), 0)
	}
	if col < 0 || col >= c {
		return errors.NewValueError("Imputer.ImputeInPlace", "column index out of range")
	}
	missing := rowsFromMask(mask)
	if len(missing) == 0 {
		return nil
	}

	features, err := data.DropCol(col)
	if err != nil {
		return err
	}
	missFeatures, err := features.TakeRows(missing)
	if err != nil {
		return err
	}
	pred, err := im.model.Predict(missFeatures, noiseScale)
	if err != nil {
		return err
	}
	if pr, _ := pred.Dims(); pr != len(missing) {
		return errors.NewDimensionError("Imputer.ImputeInPlace", len(missing), pr, 0)
	}
	return im.Update(data, col, missing, pred)
}
