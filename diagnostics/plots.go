// Package diagnostics renders plots for inspecting imputation results.
// Like metrics, it works on revealed plaintext tensors only; nothing here
// is called by the engine itself.
package diagnostics

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// columnValues extracts the values of column col, split into observed and
// imputed groups by the missingness mask.
func columnValues(data *tensor.Dense, mask []bool, col int) (observed, imputed []float64, err error) {
	r, c := data.Dims()
	if len(mask) != r {
		return nil, nil, errors.NewDimensionError("diagnostics", r, len(mask), 0)
	}
	if col < 0 || col >= c {
		return nil, nil, errors.NewValueError("diagnostics", "column index out of range")
	}
	for i := 0; i < r; i++ {
		if mask[i] {
			imputed = append(imputed, data.At(i, col))
		} else {
			observed = append(observed, data.At(i, col))
		}
	}
	return observed, imputed, nil
}

// SaveObservedVsImputed writes a histogram comparing the observed and the
// imputed value distributions of column col in a completed dataset. A
// large shift between the two is the standard visual check for an
// implausible imputation model.
func SaveObservedVsImputed(data *tensor.Dense, mask []bool, col int, path string) error {
	observed, imputed, err := columnValues(data, mask, col)
	if err != nil {
		return err
	}
	if len(imputed) == 0 {
		return errors.NewValueError("SaveObservedVsImputed", "mask selects no rows")
	}

	p := plot.New()
	p.Title.Text = "Observed vs imputed values"
	p.X.Label.Text = "value"
	p.Y.Label.Text = "density"

	obsHist, err := plotter.NewHist(plotter.Values(observed), 16)
	if err != nil {
		return errors.Wrap(err, "SaveObservedVsImputed: observed histogram")
	}
	obsHist.Normalize(1)
	obsHist.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 160}

	impHist, err := plotter.NewHist(plotter.Values(imputed), 16)
	if err != nil {
		return errors.Wrap(err, "SaveObservedVsImputed: imputed histogram")
	}
	impHist.Normalize(1)
	impHist.FillColor = color.RGBA{R: 220, G: 80, B: 60, A: 160}

	p.Add(obsHist, impHist)
	p.Legend.Add("observed", obsHist)
	p.Legend.Add("imputed", impHist)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "SaveObservedVsImputed: save")
	}
	return nil
}

// SaveFitScatter writes a predicted-vs-actual scatter for the downstream
// model, with the identity line for reference.
func SaveFitScatter(yTrue, yPred *tensor.Dense, path string) error {
	n, c := yTrue.Dims()
	if pr, pc := yPred.Dims(); pr != n || pc != c || c != 1 {
		return errors.NewDimensionError("SaveFitScatter", n, pr, 0)
	}

	pts := make(plotter.XYs, n)
	minV, maxV := yTrue.At(0, 0), yTrue.At(0, 0)
	for i := 0; i < n; i++ {
		pts[i].X = yTrue.At(i, 0)
		pts[i].Y = yPred.At(i, 0)
		if pts[i].X < minV {
			minV = pts[i].X
		}
		if pts[i].X > maxV {
			maxV = pts[i].X
		}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "SaveFitScatter: scatter")
	}
	ident, err := plotter.NewLine(plotter.XYs{{X: minV, Y: minV}, {X: maxV, Y: maxV}})
	if err != nil {
		return errors.Wrap(err, "SaveFitScatter: identity line")
	}
	ident.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}

	p := plot.New()
	p.Title.Text = "Predicted vs actual"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"
	p.Add(scatter, ident)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "SaveFitScatter: save")
	}
	return nil
}
