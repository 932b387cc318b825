package selection

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// CorrelationMatrix returns the Pearson correlation of every column pair.
// Constant columns yield NaN entries because their correlation is
// undefined.
func CorrelationMatrix(X mat.Matrix) (*mat.SymDense, error) {
	if X == nil {
		return nil, errors.NewValueError("CorrelationMatrix", "input matrix must not be nil")
	}
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return nil, errors.NewValueError("CorrelationMatrix", "need at least two rows and one column")
	}

	dst := mat.NewSymDense(cols, nil)
	stat.CorrelationMatrix(dst, X, nil)
	return dst, nil
}

// RankCorrelationMatrix returns Spearman correlations: every column is
// replaced by its ranks, ties sharing the average rank, and the Pearson
// correlation of the ranked data is computed.
func RankCorrelationMatrix(X mat.Matrix) (*mat.SymDense, error) {
	if X == nil {
		return nil, errors.NewValueError("RankCorrelationMatrix", "input matrix must not be nil")
	}
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return nil, errors.NewValueError("RankCorrelationMatrix", "need at least two rows and one column")
	}

	ranked := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, j)
		}
		for i, r := range rankValues(col) {
			ranked.Set(i, j, r)
		}
	}

	dst := mat.NewSymDense(cols, nil)
	stat.CorrelationMatrix(dst, ranked, nil)
	return dst, nil
}

// rankValues assigns 1-based ranks, averaging over ties.
func rankValues(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
