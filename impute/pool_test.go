package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

func TestPoolElementwiseMean(t *testing.T) {
	coefs := []tensor.Tensor{
		mustDense(t, 3, 1, []float64{1, 2, 3}),
		mustDense(t, 3, 1, []float64{3, 4, 5}),
		mustDense(t, 3, 1, []float64{5, 6, 7}),
	}

	pooled, err := Pool(coefs)
	require.NoError(t, err)

	pd := pooled.(*tensor.Dense)
	want := []float64{3, 4, 5}
	for i, w := range want {
		assert.Equal(t, w, pd.At(i, 0))
	}

	// Pooling must not mutate the inputs.
	assert.Equal(t, 1.0, coefs[0].(*tensor.Dense).At(0, 0))
}

func TestPoolSingleEstimate(t *testing.T) {
	pooled, err := Pool([]tensor.Tensor{mustDense(t, 2, 1, []float64{7, 9})})
	require.NoError(t, err)
	assert.Equal(t, 7.0, pooled.(*tensor.Dense).At(0, 0))
	assert.Equal(t, 9.0, pooled.(*tensor.Dense).At(1, 0))
}

func TestPoolValidation(t *testing.T) {
	_, err := Pool(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = Pool([]tensor.Tensor{
		mustDense(t, 3, 1, nil),
		mustDense(t, 2, 1, nil),
	})
	assert.Error(t, err, "shape mismatch")
}

func TestBetweenVariance(t *testing.T) {
	coefs := []*tensor.Dense{
		mustDense(t, 2, 1, []float64{1, 10}),
		mustDense(t, 2, 1, []float64{2, 10}),
		mustDense(t, 2, 1, []float64{3, 10}),
	}

	b, err := BetweenVariance(coefs)
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.InDelta(t, 1.0, b[0], 1e-12) // sample variance of {1,2,3}
	assert.Equal(t, 0.0, b[1])
}

func TestBetweenVarianceValidation(t *testing.T) {
	_, err := BetweenVariance([]*tensor.Dense{mustDense(t, 2, 1, nil)})
	assert.Error(t, err, "needs at least two estimates")

	_, err = BetweenVariance([]*tensor.Dense{
		mustDense(t, 2, 2, nil),
		mustDense(t, 2, 2, nil),
	})
	assert.Error(t, err, "not a column vector")
}
