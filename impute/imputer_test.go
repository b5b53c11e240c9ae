package impute

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xTCG/secure-mice/core/model"
	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/linear"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

func mustDense(t *testing.T, rows, cols int, data []float64) *tensor.Dense {
	t.Helper()
	d, err := tensor.NewDense(rows, cols, data)
	require.NoError(t, err)
	return d
}

// correlatedData builds a dataset whose columns carry mutual signal, an
// outcome driven by all columns, and the ground truth kept aside. The
// missing rows of targetCol are zeroed in the returned data.
func correlatedData(t *testing.T, rows, cols int, targetCol int, missing []int, seed int64) (data, truth, labels *tensor.Dense) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	raw := make([]float64, rows*cols)
	ys := make([]float64, rows)
	for i := 0; i < rows; i++ {
		base := rng.NormFloat64()
		for j := 0; j < cols; j++ {
			raw[i*cols+j] = base + 0.3*rng.NormFloat64()
			if j > 0 {
				raw[i*cols+j] += 0.2 * raw[i*cols+j-1]
			}
		}
		for j := 0; j < cols; j++ {
			ys[i] += float64(j+1) * raw[i*cols+j]
		}
	}
	truth = mustDense(t, rows, cols, raw)
	labels = mustDense(t, rows, 1, ys)
	data = truth.Copy().(*tensor.Dense)
	for _, i := range missing {
		data.Set(i, targetCol, 0)
	}
	return data, truth, labels
}

func TestImputerSplit(t *testing.T) {
	data := mustDense(t, 5, 3, []float64{
		1, 10, 100,
		2, 20, 200,
		3, 30, 300,
		4, 40, 400,
		5, 50, 500,
	})
	im := NewImputer(linear.NewLinReg())

	complete, incomplete, labels, err := im.Split(data, 1, []int{1, 3})
	require.NoError(t, err)

	// Complete rows 0, 2, 4 keep their order; column 1 becomes the label.
	cd := complete.(*tensor.Dense)
	cr, cc := cd.Dims()
	require.Equal(t, 3, cr)
	require.Equal(t, 2, cc)
	assert.Equal(t, 3.0, cd.At(1, 0))
	assert.Equal(t, 300.0, cd.At(1, 1))

	id := incomplete.(*tensor.Dense)
	ir, _ := id.Dims()
	require.Equal(t, 2, ir)
	assert.Equal(t, 2.0, id.At(0, 0))
	assert.Equal(t, 4.0, id.At(1, 0))

	ld := labels.(*tensor.Dense)
	lr, lc := ld.Dims()
	require.Equal(t, 3, lr)
	require.Equal(t, 1, lc)
	assert.Equal(t, []float64{10, 30, 50}, []float64{ld.At(0, 0), ld.At(1, 0), ld.At(2, 0)})
}

func TestImputerSplitNoMissing(t *testing.T) {
	data := mustDense(t, 3, 2, []float64{1, 2, 3, 4, 5, 6})
	im := NewImputer(linear.NewLinReg())

	complete, incomplete, _, err := im.Split(data, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, incomplete)
	cr, _ := complete.Dims()
	assert.Equal(t, 3, cr)
}

func TestImputerSplitAllMissing(t *testing.T) {
	data := mustDense(t, 3, 2, nil)
	im := NewImputer(linear.NewLinReg())

	_, _, _, err := im.Split(data, 0, []int{0, 1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestImputerSplitValidation(t *testing.T) {
	data := mustDense(t, 3, 2, nil)
	im := NewImputer(linear.NewLinReg())

	_, _, _, err := im.Split(data, 5, nil)
	assert.Error(t, err, "target column out of range")

	_, _, _, err = im.Split(data, 0, []int{7})
	assert.Error(t, err, "missing index out of range")
}

func TestImputerSplitPartitioned(t *testing.T) {
	ctx, err := mpc.Local(3, 2)
	require.NoError(t, err)
	flat := mustDense(t, 5, 3, []float64{
		1, 10, 100,
		2, 20, 200,
		3, 30, 300,
		4, 40, 400,
		5, 50, 500,
	})
	pt, err := tensor.Partition(flat, ctx)
	require.NoError(t, err)

	im := NewImputer(linear.NewLinReg())
	complete, incomplete, labels, err := im.SplitPartitioned(ctx, pt, 1, []int{1, 4})
	require.NoError(t, err)

	cd := complete.(*tensor.Dense)
	cr, _ := cd.Dims()
	require.Equal(t, 3, cr)
	assert.Equal(t, 3.0, cd.At(1, 0))

	id := incomplete.(*tensor.Dense)
	assert.Equal(t, 5.0, id.At(1, 0))

	ld := labels.(*tensor.Dense)
	assert.Equal(t, 40.0, ld.At(2, 0))

	// Out-of-range global index.
	_, _, _, err = im.SplitPartitioned(ctx, pt, 1, []int{9})
	assert.Error(t, err)
}

func TestImputeIdentityOnComplete(t *testing.T) {
	data, _, _ := correlatedData(t, 20, 3, 2, nil, 31)
	im := NewImputer(linear.NewLinReg())

	// No missing rows: the input comes back unchanged without touching
	// the model, which is not even fitted here.
	out, err := im.Impute(data, nil, 2, 0.5)
	require.NoError(t, err)
	assert.Same(t, tensor.Tensor(data), out)
}

func TestImputeFillsOnlyMissingRows(t *testing.T) {
	missing := []int{2, 7, 11}
	data, _, _ := correlatedData(t, 20, 3, 2, missing, 32)

	im := NewImputer(linear.NewLinReg())
	complete, _, labels, err := im.Split(data, 2, missing)
	require.NoError(t, err)
	require.NoError(t, im.Fit(complete, labels, 0, 0, Batched, model.BGD))

	out, err := im.Impute(data, missing, 2, 0)
	require.NoError(t, err)
	od := out.(*tensor.Dense)

	// The original is untouched and the copy differs only at the missing
	// rows of the target column.
	for _, i := range missing {
		assert.Equal(t, 0.0, data.At(i, 2), "input mutated at row %d", i)
		assert.NotEqual(t, 0.0, od.At(i, 2), "row %d not imputed", i)
	}
	for i := 0; i < 20; i++ {
		isMissing := i == 2 || i == 7 || i == 11
		for j := 0; j < 3; j++ {
			if !isMissing || j != 2 {
				assert.Equal(t, data.At(i, j), od.At(i, j),
					"unexpected change at (%d, %d)", i, j)
			}
		}
	}
}

func TestImputeInPlace(t *testing.T) {
	missing := []int{4, 9}
	data, _, _ := correlatedData(t, 15, 3, 1, missing, 33)

	im := NewImputer(linear.NewLinReg())
	complete, _, labels, err := im.Split(data, 1, missing)
	require.NoError(t, err)
	require.NoError(t, im.Fit(complete, labels, 0, 0, Batched, model.BGD))

	mask := make([]bool, 15)
	mask[4], mask[9] = true, true
	require.NoError(t, im.ImputeInPlace(data, mask, 1, 0))
	assert.NotEqual(t, 0.0, data.At(4, 1))
	assert.NotEqual(t, 0.0, data.At(9, 1))

	// Mask length must match the row count.
	assert.Error(t, im.ImputeInPlace(data, make([]bool, 3), 1, 0))

	// An empty mask is a no-op even on an unfitted imputer.
	fresh := NewImputer(linear.NewLinReg())
	require.NoError(t, fresh.ImputeInPlace(data, make([]bool, 15), 1, 0))
}

func TestImputerFitInvalidMode(t *testing.T) {
	data, _, _ := correlatedData(t, 10, 3, 2, nil, 34)
	im := NewImputer(linear.NewLinReg())
	complete, _, labels, err := im.Split(data, 2, nil)
	require.NoError(t, err)

	err = im.Fit(complete, labels, 0.001, 10, Mode("adaptive"), model.BGD)
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, errors.ErrUnknownMode))
}

func TestImputerStochasticFitDeterministicUnderClosedForm(t *testing.T) {
	// Two feature columns keep the model under the closed-form threshold,
	// where the exact solve discards the randomized starting weights.
	// Stochastic refits must then reproduce the same coefficients.
	data, _, _ := correlatedData(t, 30, 3, 2, nil, 35)
	im := NewImputer(linear.NewLinReg(linear.WithSeed(9)))
	complete, _, labels, err := im.Split(data, 2, nil)
	require.NoError(t, err)

	require.NoError(t, im.Fit(complete, labels, 0.001, 10, Stochastic, model.BGD))
	first := im.Model().Coefficients().Copy().(*tensor.Dense)

	require.NoError(t, im.Fit(complete, labels, 0.001, 10, Stochastic, model.BGD))
	second := im.Model().Coefficients().(*tensor.Dense)

	r, _ := first.Dims()
	for i := 0; i < r; i++ {
		assert.Equal(t, first.At(i, 0), second.At(i, 0), "coefficient %d", i)
	}
}

func TestUpdateAppliesReveal(t *testing.T) {
	calls := 0
	im := NewImputer(linear.NewLinReg(), WithReveal(func(v tensor.Tensor) (tensor.Tensor, error) {
		calls++
		return v.Scale(10), nil
	}))

	dst := mustDense(t, 4, 2, nil)
	vals := mustDense(t, 2, 1, []float64{1, 2})
	require.NoError(t, im.Update(dst, 1, []int{0, 2}, vals))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 10.0, dst.At(0, 1))
	assert.Equal(t, 20.0, dst.At(2, 1))
}

func TestUpdateViaMask(t *testing.T) {
	im := NewImputer(linear.NewLinReg())
	dst := mustDense(t, 4, 2, nil)
	vals := mustDense(t, 2, 1, []float64{5, 6})

	mask := []bool{false, true, false, true}
	require.NoError(t, im.UpdateViaMask(dst, 0, mask, vals))
	assert.Equal(t, 5.0, dst.At(1, 0))
	assert.Equal(t, 6.0, dst.At(3, 0))
}
