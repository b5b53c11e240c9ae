// Package metrics evaluates imputation and downstream-model quality over
// revealed plaintext tensors.
//
// The engine itself never reads element values, so every metric here
// takes *tensor.Dense columns: either plaintext data, or secure results
// after the orchestration layer has crossed the reveal boundary. The
// regression metrics (MSE, RMSE, MAE, R²) score the downstream model;
// ImputationRMSE and Accuracy score the imputations themselves when a
// ground-truth dataset is available, as in simulation studies that mask
// known values before imputing them.
package metrics

import (
	"math"

	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// column validates that t is a non-empty (n, 1) tensor and returns n.
func column(op string, t *tensor.Dense) (int, error) {
	r, c := t.Dims()
	if r == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if c != 1 {
		return 0, errors.NewDimensionError(op, 1, c, 1)
	}
	return r, nil
}

// pair validates that yTrue and yPred are matching (n, 1) tensors.
func pair(op string, yTrue, yPred *tensor.Dense) (int, error) {
	n, err := column(op, yTrue)
	if err != nil {
		return 0, err
	}
	m, err := column(op, yPred)
	if err != nil {
		return 0, err
	}
	if m != n {
		return 0, errors.NewDimensionError(op, n, m, 0)
	}
	return n, nil
}

// MSE returns the mean squared error between true and predicted columns.
func MSE(yTrue, yPred *tensor.Dense) (float64, error) {
	n, err := pair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.At(i, 0) - yPred.At(i, 0)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE returns the root mean squared error, in the units of the target.
func RMSE(yTrue, yPred *tensor.Dense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error, which is less sensitive to
// outliers than MSE.
func MAE(yTrue, yPred *tensor.Dense) (float64, error) {
	n, err := pair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.At(i, 0) - yPred.At(i, 0))
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination. 1 is a perfect fit,
// 0 matches predicting the mean, negative is worse than the mean. A
// target with no variance has no defined R² and is reported as an error.
func R2Score(yTrue, yPred *tensor.Dense) (float64, error) {
	n, err := pair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.At(i, 0)
	}
	mean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		yt := yTrue.At(i, 0)
		tss += (yt - mean) * (yt - mean)
		diff := yt - yPred.At(i, 0)
		rss += diff * diff
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "no variance in yTrue")
	}
	return 1 - rss/tss, nil
}

// ImputationRMSE scores imputed values against ground truth on the rows
// masked as missing in column col. truth and imputed are full datasets of
// identical shape; only the masked rows of col contribute.
func ImputationRMSE(truth, imputed *tensor.Dense, mask []bool, col int) (float64, error) {
	tr, tc := truth.Dims()
	ir, ic := imputed.Dims()
	if tr != ir || tc != ic {
		return 0, errors.NewDimensionError("ImputationRMSE", tr, ir, 0)
	}
	if len(mask) != tr {
		return 0, errors.NewDimensionError("ImputationRMSE", tr, len(mask), 0)
	}
	if col < 0 || col >= tc {
		return 0, errors.NewValueError("ImputationRMSE", "column index out of range")
	}
	var sum float64
	count := 0
	for i, m := range mask {
		if !m {
			continue
		}
		diff := truth.At(i, col) - imputed.At(i, col)
		sum += diff * diff
		count++
	}
	if count == 0 {
		return 0, errors.NewValueError("ImputationRMSE", "mask selects no rows")
	}
	return math.Sqrt(sum / float64(count)), nil
}

// Accuracy returns the fraction of thresholded predictions matching the
// binary labels. Predictions at or above threshold count as class 1.
// Pairs with the polynomial-sigmoid logistic model, whose outputs land
// near the (0, 1) interval but are not clamped.
func Accuracy(yTrue, yPred *tensor.Dense, threshold float64) (float64, error) {
	n, err := pair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		pred := 0.0
		if yPred.At(i, 0) >= threshold {
			pred = 1.0
		}
		if pred == yTrue.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
