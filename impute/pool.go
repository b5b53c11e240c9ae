package impute

import (
	"gonum.org/v1/gonum/stat"

	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// Pool combines per-round coefficient estimates into a single vector by
// elementwise mean, the mean-only form of Rubin's combining rule. The
// combination uses only tensor addition and a public scalar, so it works
// unchanged in every numeric domain.
func Pool(coefs []tensor.Tensor) (tensor.Tensor, error) {
	if len(coefs) == 0 {
		return nil, errors.NewModelError("Pool", "no coefficient estimates to pool", errors.ErrEmptyData)
	}
	r0, c0 := coefs[0].Dims()
	sum := coefs[0].Copy()
	for _, coef := range coefs[1:] {
		r, c := coef.Dims()
		if r != r0 || c != c0 {
			return nil, errors.NewDimensionError("Pool", r0, r, 0)
		}
		s, err := sum.Add(coef)
		if err != nil {
			return nil, err
		}
		sum = s
	}
	return sum.Scale(1 / float64(len(coefs))), nil
}

// BetweenVariance returns the per-coefficient between-imputation
// variance, the B term of Rubin's rule, computed over revealed plaintext
// estimates. It is a diagnostic for how much the rounds disagree; the
// within-imputation term would need per-round standard errors, which the
// gradient-descent fits do not produce.
func BetweenVariance(coefs []*tensor.Dense) ([]float64, error) {
	if len(coefs) < 2 {
		return nil, errors.NewValueError("BetweenVariance", "at least two estimates are required")
	}
	r0, c0 := coefs[0].Dims()
	if c0 != 1 {
		return nil, errors.NewDimensionError("BetweenVariance", 1, c0, 1)
	}
	out := make([]float64, r0)
	samples := make([]float64, len(coefs))
	for i := 0; i < r0; i++ {
		for m, coef := range coefs {
			r, c := coef.Dims()
			if r != r0 || c != 1 {
				return nil, errors.NewDimensionError("BetweenVariance", r0, r, 0)
			}
			samples[m] = coef.At(i, 0)
		}
		out[i] = stat.Variance(samples, nil)
	}
	return out, nil
}
