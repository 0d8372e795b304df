// Package embedding holds precomputed per-residue protein structure
// embeddings and reads them from disk.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned for embeddings without rows or features.
var ErrEmpty = errors.New("embedding is empty")

// Embedding is a residues x features matrix.
type Embedding struct {
	Name string
	Data *mat.Dense
}

// FromRows copies rows into a new Embedding. All rows must share a length.
func FromRows(name string, rows [][]float64) (*Embedding, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	dim := len(rows[0])
	flat := make([]float64, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), dim)
		}
		flat = append(flat, row...)
	}
	return FromFlat(name, flat, len(rows), dim)
}

// FromFlat wraps row-major data of shape rows x dim. data is not copied.
func FromFlat(name string, data []float64, rows, dim int) (*Embedding, error) {
	if rows <= 0 || dim <= 0 {
		return nil, ErrEmpty
	}
	if len(data) != rows*dim {
		return nil, fmt.Errorf("have %d values for shape [%d %d]", len(data), rows, dim)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value at row %d, feature %d", i/dim, i%dim)
		}
		// Embeddings travel as float32.
		if math.Abs(v) > math.MaxFloat32 {
			return nil, fmt.Errorf("value %g at row %d, feature %d overflows float32", v, i/dim, i%dim)
		}
	}
	return &Embedding{Name: name, Data: mat.NewDense(rows, dim, data)}, nil
}

// Rows is the number of residues.
func (e *Embedding) Rows() int {
	r, _ := e.Data.Dims()
	return r
}

// Dim is the number of features per residue.
func (e *Embedding) Dim() int {
	_, c := e.Data.Dims()
	return c
}

// Clone returns a deep copy.
func (e *Embedding) Clone() *Embedding {
	return &Embedding{Name: e.Name, Data: mat.DenseCopyOf(e.Data)}
}

// Float32Rows converts the matrix to nested float32 slices for transport.
func (e *Embedding) Float32Rows() [][]float32 {
	rows, dim := e.Data.Dims()
	out := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		src := e.Data.RawRowView(i)
		dst := make([]float32, dim)
		for j, v := range src {
			dst[j] = float32(v)
		}
		out[i] = dst
	}
	return out
}

// Pooled averages the embedding over residues.
func (e *Embedding) Pooled() []float64 {
	rows, dim := e.Data.Dims()
	out := make([]float64, dim)
	for i := 0; i < rows; i++ {
		floats.Add(out, e.Data.RawRowView(i))
	}
	floats.Scale(1/float64(rows), out)
	return out
}

// Feature is one entry of the pooled vector.
type Feature struct {
	Index int
	Value float64
}

// Digest summarizes an embedding in a few numbers.
type Digest struct {
	Residues int
	Dim      int
	Norm     float64
	Mean     float64
	Std      float64
	Top      []Feature
}

// Digest summarizes the mean-pooled vector and keeps the k strongest features.
func (e *Embedding) Digest(k int) Digest {
	pooled := e.Pooled()
	mean, std := stat.MeanStdDev(pooled, nil)
	if len(pooled) < 2 {
		std = 0
	}

	idx := make([]int, len(pooled))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(pooled[idx[a]]) > math.Abs(pooled[idx[b]])
	})
	if k > len(idx) {
		k = len(idx)
	}
	top := make([]Feature, 0, k)
	for _, i := range idx[:k] {
		top = append(top, Feature{Index: i, Value: pooled[i]})
	}

	return Digest{
		Residues: e.Rows(),
		Dim:      e.Dim(),
		Norm:     floats.Norm(pooled, 2),
		Mean:     mean,
		Std:      std,
		Top:      top,
	}
}

func (d Digest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "protein structure embedding: %d residues x %d features; pooled norm=%.4f mean=%.4f std=%.4f",
		d.Residues, d.Dim, d.Norm, d.Mean, d.Std)
	if len(d.Top) > 0 {
		b.WriteString("; strongest features:")
		for _, f := range d.Top {
			fmt.Fprintf(&b, " f%d=%.4f", f.Index, f.Value)
		}
	}
	return b.String()
}
