package index

import "fmt"

// CSRMatrix is a compressed sparse row matrix. Row i's nonzero entries are
// Data[Indptr[i]:Indptr[i+1]] at columns Indices[Indptr[i]:Indptr[i+1]].
type CSRMatrix struct {
	Data    []float64
	Indices []int
	Indptr  []int
	Rows    int
	Cols    int
}

// Validate checks the structural invariants of the matrix.
func (m *CSRMatrix) Validate() error {
	if len(m.Indptr) != m.Rows+1 {
		return fmt.Errorf("indptr length %d, expected %d", len(m.Indptr), m.Rows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("indices length %d does not match data length %d", len(m.Indices), len(m.Data))
	}
	if m.Rows > 0 && m.Indptr[0] != 0 {
		return fmt.Errorf("indptr must start at 0, got %d", m.Indptr[0])
	}
	for i := 1; i < len(m.Indptr); i++ {
		if m.Indptr[i] < m.Indptr[i-1] {
			return fmt.Errorf("indptr not monotonic at row %d", i)
		}
	}
	if len(m.Indptr) > 0 && m.Indptr[len(m.Indptr)-1] != len(m.Data) {
		return fmt.Errorf("indptr end %d does not match data length %d", m.Indptr[len(m.Indptr)-1], len(m.Data))
	}
	for _, col := range m.Indices {
		if col < 0 || col >= m.Cols {
			return fmt.Errorf("column index %d out of range [0,%d)", col, m.Cols)
		}
	}
	return nil
}

// RowDot returns the dot product of row i against the dense vector.
// The vector length must equal Cols.
func (m *CSRMatrix) RowDot(i int, dense []float64) float64 {
	var dot float64
	for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
		dot += m.Data[k] * dense[m.Indices[k]]
	}
	return dot
}
