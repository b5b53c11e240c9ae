package tensor

import (
	"gonum.org/v1/gonum/mat"

	"github.com/0xTCG/secure-mice/core/mpc"
	"github.com/0xTCG/secure-mice/pkg/errors"
)

// Partitioned is a horizontally partitioned tensor: each party owns a
// contiguous range of rows, stored as a local shard. Row ownership follows
// the cumulative bounds of an mpc.Context, so global row i lives at local
// offset i-bounds[p] inside party p's shard.
//
// Row-local operations (column selection, bias append, per-row writes)
// preserve the partitioning. Operations that mix rows across parties
// (arithmetic, transpose, row gathering) materialize their result as a
// Dense tensor, which mirrors how a real multi-party run gathers shares
// into a collective computation.
type Partitioned struct {
	shards []*Dense
	bounds []int
}

// NewPartitioned assembles a partitioned tensor from per-party shards laid
// out according to ctx's partition bounds.
func NewPartitioned(ctx mpc.Context, shards []*Dense) (*Partitioned, error) {
	bounds := ctx.PartitionBounds()
	if len(shards) != ctx.Parties() {
		return nil, errors.NewDimensionError("tensor.NewPartitioned", ctx.Parties(), len(shards), 0)
	}
	cols := -1
	for p, s := range shards {
		r, c := s.Dims()
		if want := bounds[p+1] - bounds[p]; r != want {
			return nil, errors.NewDimensionError("tensor.NewPartitioned", want, r, 0)
		}
		if cols == -1 {
			cols = c
		} else if c != cols {
			return nil, errors.NewDimensionError("tensor.NewPartitioned", cols, c, 1)
		}
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), bounds...)}, nil
}

// Partition splits a dense tensor into per-party shards along ctx's
// partition bounds. Useful for simulating a multi-party layout in tests
// and demos.
func Partition(d *Dense, ctx mpc.Context) (*Partitioned, error) {
	bounds := ctx.PartitionBounds()
	r, _ := d.Dims()
	if bounds[len(bounds)-1] != r {
		return nil, errors.NewDimensionError("tensor.Partition", bounds[len(bounds)-1], r, 0)
	}
	shards := make([]*Dense, ctx.Parties())
	for p := range shards {
		s, err := d.SliceRows(bounds[p], bounds[p+1])
		if err != nil {
			return nil, err
		}
		shards[p] = s.(*Dense)
	}
	return NewPartitioned(ctx, shards)
}

// Parties returns the number of row partitions.
func (pt *Partitioned) Parties() int {
	return len(pt.shards)
}

// Bounds returns the cumulative row boundaries.
func (pt *Partitioned) Bounds() []int {
	return append([]int(nil), pt.bounds...)
}

// Shard returns party p's local shard. Mutating it mutates the tensor.
func (pt *Partitioned) Shard(p int) *Dense {
	return pt.shards[p]
}

// ownerOf maps a global row to (party, local offset).
func (pt *Partitioned) ownerOf(i int) (int, int, error) {
	if i < 0 || i >= pt.bounds[len(pt.bounds)-1] {
		return 0, 0, errors.NewValueError("Partitioned", "row index out of range")
	}
	for p := 0; p < len(pt.shards); p++ {
		if i < pt.bounds[p+1] {
			return p, i - pt.bounds[p], nil
		}
	}
	return 0, 0, errors.NewValueError("Partitioned", "row index out of range")
}

// materialize concatenates the shards into one dense tensor.
func (pt *Partitioned) materialize() *Dense {
	rows := pt.bounds[len(pt.bounds)-1]
	_, cols := pt.shards[0].Dims()
	out := mat.NewDense(rows, cols, nil)
	for p, s := range pt.shards {
		sr, _ := s.Dims()
		for i := 0; i < sr; i++ {
			out.SetRow(pt.bounds[p]+i, s.Mat().RawRowView(i))
		}
	}
	return &Dense{data: out}
}

// Dims implements Tensor.
func (pt *Partitioned) Dims() (int, int) {
	_, cols := pt.shards[0].Dims()
	return pt.bounds[len(pt.bounds)-1], cols
}

// Backend implements Tensor. Weight vectors and noise are shared values,
// not row-partitioned data, so the dense backend serves both layouts.
func (pt *Partitioned) Backend() Backend {
	return denseBackend{}
}

// Add implements Tensor.
func (pt *Partitioned) Add(o Tensor) (Tensor, error) {
	return pt.materialize().Add(o)
}

// Sub implements Tensor.
func (pt *Partitioned) Sub(o Tensor) (Tensor, error) {
	return pt.materialize().Sub(o)
}

// MatMul implements Tensor.
func (pt *Partitioned) MatMul(o Tensor) (Tensor, error) {
	return pt.materialize().MatMul(o)
}

// MulElem implements Tensor.
func (pt *Partitioned) MulElem(o Tensor) (Tensor, error) {
	return pt.materialize().MulElem(o)
}

// Scale implements Tensor.
func (pt *Partitioned) Scale(c float64) Tensor {
	shards := make([]*Dense, len(pt.shards))
	for p, s := range pt.shards {
		shards[p] = s.Scale(c).(*Dense)
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), pt.bounds...)}
}

// T implements Tensor.
func (pt *Partitioned) T() Tensor {
	return pt.materialize().T()
}

// Copy implements Tensor.
func (pt *Partitioned) Copy() Tensor {
	shards := make([]*Dense, len(pt.shards))
	for p, s := range pt.shards {
		shards[p] = s.Copy().(*Dense)
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), pt.bounds...)}
}

// TakeRows implements Tensor. The gathered rows cross party boundaries, so
// the result is dense.
func (pt *Partitioned) TakeRows(idx []int) (Tensor, error) {
	if len(idx) == 0 {
		return nil, errors.NewValueError("Partitioned.TakeRows", "empty row selection")
	}
	_, cols := pt.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		p, local, err := pt.ownerOf(i)
		if err != nil {
			return nil, err
		}
		out.SetRow(k, pt.shards[p].Mat().RawRowView(local))
	}
	return &Dense{data: out}, nil
}

// SliceRows implements Tensor.
func (pt *Partitioned) SliceRows(start, end int) (Tensor, error) {
	return pt.materialize().SliceRows(start, end)
}

// Col implements Tensor. Column selection is row-local, so the result
// keeps the partition layout.
func (pt *Partitioned) Col(j int) (Tensor, error) {
	shards := make([]*Dense, len(pt.shards))
	for p, s := range pt.shards {
		col, err := s.Col(j)
		if err != nil {
			return nil, err
		}
		shards[p] = col.(*Dense)
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), pt.bounds...)}, nil
}

// DropCol implements Tensor.
func (pt *Partitioned) DropCol(j int) (Tensor, error) {
	shards := make([]*Dense, len(pt.shards))
	for p, s := range pt.shards {
		dropped, err := s.DropCol(j)
		if err != nil {
			return nil, err
		}
		shards[p] = dropped.(*Dense)
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), pt.bounds...)}, nil
}

// AppendOnes implements Tensor.
func (pt *Partitioned) AppendOnes() Tensor {
	shards := make([]*Dense, len(pt.shards))
	for p, s := range pt.shards {
		shards[p] = s.AppendOnes().(*Dense)
	}
	return &Partitioned{shards: shards, bounds: append([]int(nil), pt.bounds...)}
}

// SetRows implements Tensor. Each write is routed to the owning party's
// local storage.
func (pt *Partitioned) SetRows(col int, rows []int, vals Tensor) error {
	v, err := asDense("Partitioned.SetRows", vals)
	if err != nil {
		return err
	}
	vr, vc := v.Dims()
	if vc != 1 {
		return errors.NewValueError("Partitioned.SetRows", "vals must be a column vector")
	}
	if vr != len(rows) {
		return errors.NewDimensionError("Partitioned.SetRows", len(rows), vr, 0)
	}
	for k, i := range rows {
		p, local, err := pt.ownerOf(i)
		if err != nil {
			return err
		}
		pt.shards[p].Set(local, col, v.At(k, 0))
	}
	return nil
}

// Inverse implements Tensor. Partitioned matrices are never inverted by
// the engine; the closed-form solve runs on the gathered normal matrix.
func (pt *Partitioned) Inverse() (Tensor, error) {
	return pt.materialize().Inverse()
}

// Reveal implements Revealer by materializing the shard union.
func (pt *Partitioned) Reveal(_ mpc.Context) (Tensor, error) {
	return pt.materialize(), nil
}
