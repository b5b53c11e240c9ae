package tensor

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// Dense is the plaintext Tensor implementation backed by gonum's mat.Dense.
type Dense struct {
	data *mat.Dense
}

// NewDense creates a Dense tensor from row-major data. A nil data slice
// yields a zero tensor.
func NewDense(rows, cols int, data []float64) (*Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.NewValueError("tensor.NewDense", "all dimensions must be positive")
	}
	if data != nil && len(data) != rows*cols {
		return nil, errors.NewDimensionError("tensor.NewDense", rows*cols, len(data), 0)
	}
	return &Dense{data: mat.NewDense(rows, cols, data)}, nil
}

// FromMat wraps an existing mat.Dense without copying.
func FromMat(m *mat.Dense) *Dense {
	return &Dense{data: m}
}

// Zeros creates a (rows, cols) Dense tensor of zeros.
func Zeros(rows, cols int) (*Dense, error) {
	return NewDense(rows, cols, nil)
}

// Mat returns the underlying mat.Dense. Mutating it mutates the tensor.
func (d *Dense) Mat() *mat.Dense {
	return d.data
}

// At returns the element at (i, j). Plaintext access is a Dense-only
// capability and deliberately not part of the Tensor contract.
func (d *Dense) At(i, j int) float64 {
	return d.data.At(i, j)
}

// Set writes the element at (i, j).
func (d *Dense) Set(i, j int, v float64) {
	d.data.Set(i, j, v)
}

// Dims implements Tensor.
func (d *Dense) Dims() (int, int) {
	return d.data.Dims()
}

// Backend implements Tensor.
func (d *Dense) Backend() Backend {
	return denseBackend{}
}

// asDense rejects operands from other numeric domains. A partitioned
// operand shares the plaintext domain and is gathered, which mirrors the
// collective gather a dense-partitioned operation implies.
func asDense(op string, o Tensor) (*Dense, error) {
	switch t := o.(type) {
	case *Dense:
		return t, nil
	case *Partitioned:
		return t.materialize(), nil
	}
	return nil, errors.NewValueError(op, "mixed tensor domains")
}

// Add implements Tensor.
func (d *Dense) Add(o Tensor) (Tensor, error) {
	other, err := asDense("Dense.Add", o)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	or, oc := other.Dims()
	if r != or || c != oc {
		return nil, errors.NewDimensionError("Dense.Add", r*c, or*oc, 0)
	}
	var out mat.Dense
	out.Add(d.data, other.data)
	return &Dense{data: &out}, nil
}

// Sub implements Tensor.
func (d *Dense) Sub(o Tensor) (Tensor, error) {
	other, err := asDense("Dense.Sub", o)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	or, oc := other.Dims()
	if r != or || c != oc {
		return nil, errors.NewDimensionError("Dense.Sub", r*c, or*oc, 0)
	}
	var out mat.Dense
	out.Sub(d.data, other.data)
	return &Dense{data: &out}, nil
}

// MatMul implements Tensor.
func (d *Dense) MatMul(o Tensor) (Tensor, error) {
	other, err := asDense("Dense.MatMul", o)
	if err != nil {
		return nil, err
	}
	_, c := d.Dims()
	or, _ := other.Dims()
	if c != or {
		return nil, errors.NewDimensionError("Dense.MatMul", c, or, 0)
	}
	var out mat.Dense
	out.Mul(d.data, other.data)
	return &Dense{data: &out}, nil
}

// MulElem implements Tensor.
func (d *Dense) MulElem(o Tensor) (Tensor, error) {
	other, err := asDense("Dense.MulElem", o)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	or, oc := other.Dims()
	if r != or || c != oc {
		return nil, errors.NewDimensionError("Dense.MulElem", r*c, or*oc, 0)
	}
	var out mat.Dense
	out.MulElem(d.data, other.data)
	return &Dense{data: &out}, nil
}

// Scale implements Tensor.
func (d *Dense) Scale(c float64) Tensor {
	var out mat.Dense
	out.Scale(c, d.data)
	return &Dense{data: &out}
}

// T implements Tensor. The result owns its own storage.
func (d *Dense) T() Tensor {
	var out mat.Dense
	out.CloneFrom(d.data.T())
	return &Dense{data: &out}
}

// Copy implements Tensor.
func (d *Dense) Copy() Tensor {
	var out mat.Dense
	out.CloneFrom(d.data)
	return &Dense{data: &out}
}

// TakeRows implements Tensor.
func (d *Dense) TakeRows(idx []int) (Tensor, error) {
	r, c := d.Dims()
	if len(idx) == 0 {
		return nil, errors.NewValueError("Dense.TakeRows", "empty row selection")
	}
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		if i < 0 || i >= r {
			return nil, errors.NewValueError("Dense.TakeRows", "row index out of range")
		}
		out.SetRow(k, d.data.RawRowView(i))
	}
	return &Dense{data: out}, nil
}

// SliceRows implements Tensor.
func (d *Dense) SliceRows(start, end int) (Tensor, error) {
	r, c := d.Dims()
	if start < 0 || end > r || start >= end {
		return nil, errors.NewValueError("Dense.SliceRows", "invalid row range")
	}
	var out mat.Dense
	out.CloneFrom(d.data.Slice(start, end, 0, c))
	return &Dense{data: &out}, nil
}

// Col implements Tensor.
func (d *Dense) Col(j int) (Tensor, error) {
	r, c := d.Dims()
	if j < 0 || j >= c {
		return nil, errors.NewValueError("Dense.Col", "column index out of range")
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, d.data.At(i, j))
	}
	return &Dense{data: out}, nil
}

// DropCol implements Tensor.
func (d *Dense) DropCol(j int) (Tensor, error) {
	r, c := d.Dims()
	if j < 0 || j >= c {
		return nil, errors.NewValueError("Dense.DropCol", "column index out of range")
	}
	if c == 1 {
		return nil, errors.NewValueError("Dense.DropCol", "cannot drop the only column")
	}
	out := mat.NewDense(r, c-1, nil)
	for i := 0; i < r; i++ {
		k := 0
		for jj := 0; jj < c; jj++ {
			if jj == j {
				continue
			}
			out.Set(i, k, d.data.At(i, jj))
			k++
		}
	}
	return &Dense{data: out}, nil
}

// AppendOnes implements Tensor.
func (d *Dense) AppendOnes() Tensor {
	r, c := d.Dims()
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, d.data.At(i, j))
		}
		out.Set(i, c, 1.0)
	}
	return &Dense{data: out}
}

// SetRows implements Tensor.
func (d *Dense) SetRows(col int, rows []int, vals Tensor) error {
	v, err := asDense("Dense.SetRows", vals)
	if err != nil {
		return err
	}
	r, c := d.Dims()
	vr, vc := v.Dims()
	if vc != 1 {
		return errors.NewValueError("Dense.SetRows", "vals must be a column vector")
	}
	if vr != len(rows) {
		return errors.NewDimensionError("Dense.SetRows", len(rows), vr, 0)
	}
	if col < 0 || col >= c {
		return errors.NewValueError("Dense.SetRows", "column index out of range")
	}
	for k, i := range rows {
		if i < 0 || i >= r {
			return errors.NewValueError("Dense.SetRows", "row index out of range")
		}
		d.data.Set(i, col, v.data.At(k, 0))
	}
	return nil
}

// Inverse implements Tensor.
func (d *Dense) Inverse() (Tensor, error) {
	r, c := d.Dims()
	if r != c {
		return nil, errors.NewDimensionError("Dense.Inverse", r, c, 1)
	}
	var out mat.Dense
	if err := out.Inverse(d.data); err != nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "Dense.Inverse")
	}
	return &Dense{data: &out}, nil
}

// Reveal implements Revealer. For plaintext tensors reveal is the identity
// on a copy; it exists so orchestration code can treat all backends alike.
func (d *Dense) Reveal(_ mpc.Context) (Tensor, error) {
	return d.Copy(), nil
}

// denseBackend constructs plaintext tensors.
type denseBackend struct{}

// Zeros implements Backend.
func (denseBackend) Zeros(rows, cols int) Tensor {
	return &Dense{data: mat.NewDense(rows, cols, nil)}
}

// New implements Backend.
func (denseBackend) New(rows, cols int, data []float64) Tensor {
	return &Dense{data: mat.NewDense(rows, cols, data)}
}

// Rand implements Backend.
func (denseBackend) Rand(rows, cols int, dist Dist, rng *rand.Rand) Tensor {
	draw := func() float64 {
		switch dist {
		case Normal:
			if rng != nil {
				return rng.NormFloat64()
			}
			return rand.NormFloat64()
		default:
			if rng != nil {
				return rng.Float64()*2 - 1
			}
			return rand.Float64()*2 - 1
		}
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, draw())
		}
	}
	return &Dense{data: out}
}
