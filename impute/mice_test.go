package impute

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/linear"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// chainData builds a three-column dataset with strong column-to-column
// dependencies, masks for columns 1 and 2, and an outcome vector. Rows 3
// and 10 are missing in both target columns.
func chainData(t *testing.T, rows int, seed int64) (data, truth, labels *tensor.Dense, masks [][]bool) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	raw := make([]float64, rows*3)
	ys := make([]float64, rows)
	for i := 0; i < rows; i++ {
		x0 := rng.NormFloat64()
		x1 := 0.8*x0 + 0.5*rng.NormFloat64()
		x2 := -0.5*x0 + 0.6*x1 + 0.4*rng.NormFloat64()
		raw[i*3+0] = x0
		raw[i*3+1] = x1
		raw[i*3+2] = x2
		ys[i] = x0 - x1 + 2*x2
	}
	truth = mustDense(t, rows, 3, raw)
	labels = mustDense(t, rows, 1, ys)
	data = truth.Copy().(*tensor.Dense)

	mask1 := make([]bool, rows)
	mask2 := make([]bool, rows)
	for _, i := range []int{3, 10, 20, 25} {
		mask1[i] = true
		data.Set(i, 1, 0)
	}
	for _, i := range []int{3, 10, 30, 35} {
		mask2[i] = true
		data.Set(i, 2, 0)
	}
	return data, truth, labels, [][]bool{mask1, mask2}
}

func TestNewMICEValidation(t *testing.T) {
	lin := func() model.Model { return linear.NewLinReg() }

	_, err := NewMICE(0, lin(), []int{1}, []model.Model{lin()})
	assert.Error(t, err, "factor below 1")

	_, err = NewMICE(2, lin(), nil, nil)
	assert.Error(t, err, "no target columns")

	_, err = NewMICE(2, lin(), []int{1, 2}, []model.Model{lin()})
	assert.Error(t, err, "model count mismatch")

	_, err = NewMICE(2, lin(), []int{2, 1}, []model.Model{lin(), lin()})
	assert.Error(t, err, "columns not increasing")

	mc, err := NewMICE(2, lin(), []int{1, 2}, []model.Model{lin(), lin()})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, mc.Columns())
	assert.NotNil(t, mc.ImputerFor(1))
	assert.Nil(t, mc.ImputerFor(0))
}

func TestMICEMaskValidation(t *testing.T) {
	ctx := localCtx(t, 10)
	data, _, labels, _ := chainData(t, 40, 51)
	short, err := data.SliceRows(0, 10)
	require.NoError(t, err)
	shortLabels, err := labels.SliceRows(0, 10)
	require.NoError(t, err)

	mc, err := NewMICE(2, linear.NewLinReg(),
		[]int{1, 2}, []model.Model{linear.NewLinReg(), linear.NewLinReg()})
	require.NoError(t, err)

	p := FitParams{Mode: Batched, ImputeStep: 0.001, ImputeEpochs: 10, FitStep: 0.001, FitEpochs: 10}

	// One mask per column.
	_, err = mc.Fit(ctx, short, shortLabels, [][]bool{make([]bool, 10)}, p)
	assert.Error(t, err)

	// Mask length must match the row count.
	_, err = mc.Fit(ctx, short, shortLabels, [][]bool{make([]bool, 10), make([]bool, 7)}, p)
	assert.Error(t, err)
}

func TestMICENoFullyObservedRows(t *testing.T) {
	ctx := localCtx(t, 6)
	data, _, labels, _ := chainData(t, 40, 52)
	short, err := data.SliceRows(0, 6)
	require.NoError(t, err)
	shortLabels, err := labels.SliceRows(0, 6)
	require.NoError(t, err)

	mc, err := NewMICE(2, linear.NewLinReg(),
		[]int{1, 2}, []model.Model{linear.NewLinReg(), linear.NewLinReg()})
	require.NoError(t, err)

	all := make([]bool, 6)
	for i := range all {
		all[i] = true
	}
	_, err = mc.Fit(ctx, short, shortLabels, [][]bool{all, make([]bool, 6)}, FitParams{
		Mode: Batched, ImputeStep: 0.001, ImputeEpochs: 10, FitStep: 0.001, FitEpochs: 10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestMICEImputesAllMaskedCells(t *testing.T) {
	ctx := localCtx(t, 80)
	data, truth, labels, masks := chainData(t, 80, 53)

	mc, err := NewMICE(3, linear.NewLinReg(linear.WithSeed(1)),
		[]int{1, 2}, []model.Model{
			linear.NewLinReg(linear.WithSeed(2)),
			linear.NewLinReg(linear.WithSeed(3)),
		})
	require.NoError(t, err)

	completed, err := mc.Fit(ctx, data, labels, masks, FitParams{
		ImputeStep:   0.002,
		ImputeEpochs: 100,
		FitStep:      0.002,
		FitEpochs:    300,
		NoiseScale:   0,
		Mode:         Batched,
	})
	require.NoError(t, err)
	require.Len(t, completed, 3)

	d := completed[0].(*tensor.Dense)
	for col, mask := range map[int][]bool{1: masks[0], 2: masks[1]} {
		for i, m := range mask {
			if m {
				assert.NotEqual(t, 0.0, d.At(i, col), "cell (%d, %d) not imputed", i, col)
				// The column dependencies are strong, so the imputations
				// track the withheld truth.
				assert.InDelta(t, truth.At(i, col), d.At(i, col), 1.5,
					"cell (%d, %d) far from ground truth", i, col)
			}
		}
	}

	// The input still carries its placeholders.
	assert.Equal(t, 0.0, data.At(3, 1))
	assert.Equal(t, 0.0, data.At(3, 2))

	// Downstream pooled estimate approximates y = x0 - x1 + 2*x2.
	pooled := mc.FitModel().Coefficients().(*tensor.Dense)
	for j, want := range []float64{1, -1, 2} {
		assert.InDelta(t, want, pooled.At(j, 0), 0.3, "pooled weight %d", j)
	}
}

func TestMICEBatchedPooledEqualsSingleRoundFit(t *testing.T) {
	// Batched mode with zero noise completes every round identically, and
	// each round's downstream fit starts from the same coefficients, so the
	// pooled mean must equal an independent fit on one round's dataset.
	ctx := localCtx(t, 80)
	data, _, labels, masks := chainData(t, 80, 56)

	mc, err := NewMICE(4, linear.NewLinReg(linear.WithSeed(1)),
		[]int{1, 2}, []model.Model{
			linear.NewLinReg(linear.WithSeed(2)),
			linear.NewLinReg(linear.WithSeed(3)),
		})
	require.NoError(t, err)

	completed, err := mc.Fit(ctx, data, labels, masks, FitParams{
		ImputeStep:   0.002,
		ImputeEpochs: 100,
		FitStep:      0.002,
		FitEpochs:    50,
		NoiseScale:   0,
		Mode:         Batched,
	})
	require.NoError(t, err)
	require.Len(t, completed, 4)

	single := linear.NewLinReg()
	_, err = single.Fit(completed[0], labels, 0.002, 50, model.BGD)
	require.NoError(t, err)

	pooled := mc.FitModel().Coefficients().(*tensor.Dense)
	want := single.Coefficients().(*tensor.Dense)
	pr, _ := pooled.Dims()
	require.Equal(t, 4, pr)
	for j := 0; j < pr; j++ {
		assert.InDelta(t, want.At(j, 0), pooled.At(j, 0), 1e-12, "coefficient %d", j)
	}
}

func TestMICEChainsColumnsWithinRound(t *testing.T) {
	ctx := localCtx(t, 80)
	data, _, labels, masks := chainData(t, 80, 54)

	mc, err := NewMICE(1, linear.NewLinReg(),
		[]int{1, 2}, []model.Model{linear.NewLinReg(), linear.NewLinReg()})
	require.NoError(t, err)

	completed, err := mc.Fit(ctx, data, labels, masks, FitParams{
		ImputeStep:   0.002,
		ImputeEpochs: 100,
		FitStep:      0.002,
		FitEpochs:    100,
		NoiseScale:   0,
		Mode:         Batched,
	})
	require.NoError(t, err)
	d := completed[0].(*tensor.Dense)

	// Row 3 is missing in both columns. Column 2's prediction must be
	// computed from the value just imputed for column 1, not from the
	// placeholder still present in the input.
	im2 := mc.ImputerFor(2)
	require.NotNil(t, im2)

	chained, err := d.DropCol(2)
	require.NoError(t, err)
	chainedRow, err := chained.TakeRows([]int{3})
	require.NoError(t, err)
	fromChained, err := im2.Model().Predict(chainedRow, 0)
	require.NoError(t, err)
	assert.InDelta(t, denseAt(t, fromChained, 0, 0), d.At(3, 2), 1e-9,
		"imputed value does not match a prediction on the chained features")

	stale, err := data.DropCol(2)
	require.NoError(t, err)
	staleRow, err := stale.TakeRows([]int{3})
	require.NoError(t, err)
	fromStale, err := im2.Model().Predict(staleRow, 0)
	require.NoError(t, err)
	assert.NotEqual(t, denseAt(t, fromStale, 0, 0), d.At(3, 2),
		"imputation used the placeholder instead of the chained value")
}

func TestMICEStochasticRoundsDiverge(t *testing.T) {
	ctx := localCtx(t, 80)
	// A fourth column pushes the per-column imputers onto the
	// gradient-descent path, where random restarts matter.
	rng := rand.New(rand.NewSource(55))
	rows := 80
	raw := make([]float64, rows*4)
	ys := make([]float64, rows)
	for i := 0; i < rows; i++ {
		x0 := rng.NormFloat64()
		x1 := 2*x0 + 0.1*rng.NormFloat64()
		x2 := -x0 + 0.5*x1 + 0.1*rng.NormFloat64()
		x3 := x0 + x2 + 0.1*rng.NormFloat64()
		raw[i*4+0], raw[i*4+1], raw[i*4+2], raw[i*4+3] = x0, x1, x2, x3
		ys[i] = x0 + x3
	}
	data := mustDense(t, rows, 4, raw)
	labels := mustDense(t, rows, 1, ys)

	mask := make([]bool, rows)
	for _, i := range []int{3, 10, 20} {
		mask[i] = true
		data.Set(i, 3, 0)
	}

	mc, err := NewMICE(2, linear.NewLinReg(linear.WithSeed(1)),
		[]int{3}, []model.Model{linear.NewLinReg(linear.WithSeed(2))})
	require.NoError(t, err)

	completed, err := mc.Fit(ctx, data, labels, [][]bool{mask}, FitParams{
		ImputeStep:   0.002,
		ImputeEpochs: 3,
		FitStep:      0.002,
		FitEpochs:    50,
		NoiseScale:   0,
		Mode:         Stochastic,
	})
	require.NoError(t, err)
	require.Len(t, completed, 2)

	diverged := false
	for _, i := range []int{3, 10, 20} {
		if denseAt(t, completed[0], i, 3) != denseAt(t, completed[1], i, 3) {
			diverged = true
			break
		}
	}
	assert.True(t, diverged, "stochastic chained rounds produced identical imputations")
}
