package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixedRanker reports canned importances so ranking is exact.
type fixedRanker struct {
	importances []float64
	fitted      bool
}

func (f *fixedRanker) Fit(X, y mat.Matrix) error {
	f.fitted = true
	return nil
}

func (f *fixedRanker) GetFeatureImportances() []float64 {
	return f.importances
}

func selectorData() (*mat.Dense, *mat.Dense) {
	n := 40
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		center := 1.0
		if i >= n/2 {
			center = 4.0
			y.Set(i, 0, 1.0)
		}
		X.Set(i, 0, center+float64(i%5)*0.1)
		X.Set(i, 1, 1.0) // Constant
		X.Set(i, 2, float64(i%3))
	}
	return X, y
}

func TestImportanceSelector(t *testing.T) {
	t.Run("Ranking with a fixed estimator", func(t *testing.T) {
		X := mat.NewDense(6, 4, []float64{
			1, 2, 3, 4,
			5, 6, 7, 8,
			9, 10, 11, 12,
			13, 14, 15, 16,
			17, 18, 19, 20,
			21, 22, 23, 24,
		})
		y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

		ranker := &fixedRanker{importances: []float64{0.10, 0.50, 0.05, 0.35}}
		sel := NewImportanceSelector(2).WithEstimator(ranker)
		require.NoError(t, sel.Fit(X, y))
		assert.True(t, ranker.fitted)
		assert.True(t, sel.IsFitted())

		assert.Equal(t, []int{1, 3, 0, 2}, sel.Ranking())
		assert.Equal(t, []int{1, 3}, sel.SelectedIndices())
		assert.Equal(t, 2, sel.NSelected())
		assert.Equal(t, []float64{0.10, 0.50, 0.05, 0.35}, sel.Importances())

		out, err := sel.Transform(X)
		require.NoError(t, err)
		rows, cols := out.Dims()
		assert.Equal(t, 6, rows)
		assert.Equal(t, 2, cols)
		for i := 0; i < rows; i++ {
			assert.Equal(t, X.At(i, 1), out.At(i, 0))
			assert.Equal(t, X.At(i, 3), out.At(i, 1))
		}
	})

	t.Run("Default forest finds the informative column", func(t *testing.T) {
		X, y := selectorData()

		sel := NewImportanceSelector(1)
		out, err := sel.FitTransform(X, y)
		require.NoError(t, err)

		assert.Equal(t, []int{0}, sel.SelectedIndices())
		rows, cols := out.Dims()
		assert.Equal(t, 40, rows)
		assert.Equal(t, 1, cols)
		assert.Equal(t, X.At(0, 0), out.At(0, 0))
	})

	t.Run("TopN above feature count keeps everything", func(t *testing.T) {
		X, y := selectorData()

		ranker := &fixedRanker{importances: []float64{0.5, 0.2, 0.3}}
		sel := NewImportanceSelector(10).WithEstimator(ranker)
		require.NoError(t, sel.Fit(X, y))
		assert.Equal(t, []int{0, 1, 2}, sel.SelectedIndices())
	})

	t.Run("Errors", func(t *testing.T) {
		X, y := selectorData()

		assert.Error(t, NewImportanceSelector(0).Fit(X, y))
		assert.Error(t, NewImportanceSelector(-3).Fit(X, y))
		assert.Error(t, NewImportanceSelector(2).Fit(nil, y))

		sel := NewImportanceSelector(2)
		_, err := sel.Transform(X)
		assert.Error(t, err, "transform before fit must fail")

		ranker := &fixedRanker{importances: []float64{0.5, 0.2, 0.3}}
		require.NoError(t, sel.WithEstimator(ranker).Fit(X, y))
		_, err = sel.Transform(mat.NewDense(4, 7, nil))
		assert.Error(t, err)
	})
}
