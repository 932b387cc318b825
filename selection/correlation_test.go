package selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCorrelationMatrix(t *testing.T) {
	t.Run("Known Pearson value", func(t *testing.T) {
		X := mat.NewDense(4, 2, []float64{
			1, 1,
			2, 3,
			3, 2,
			4, 4,
		})

		corr, err := CorrelationMatrix(X)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, corr.At(0, 0), 1e-12)
		assert.InDelta(t, 1.0, corr.At(1, 1), 1e-12)
		assert.InDelta(t, 0.8, corr.At(0, 1), 1e-12)
		assert.Equal(t, corr.At(0, 1), corr.At(1, 0))
	})

	t.Run("Perfect linear relationships", func(t *testing.T) {
		n := 10
		X := mat.NewDense(n, 3, nil)
		for i := 0; i < n; i++ {
			x := float64(i)
			X.Set(i, 0, x)
			X.Set(i, 1, 2*x+1)
			X.Set(i, 2, -3*x)
		}

		corr, err := CorrelationMatrix(X)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, corr.At(0, 1), 1e-10)
		assert.InDelta(t, -1.0, corr.At(0, 2), 1e-10)
		assert.InDelta(t, -1.0, corr.At(1, 2), 1e-10)
	})

	t.Run("Constant column is NaN", func(t *testing.T) {
		X := mat.NewDense(5, 2, []float64{
			1, 7,
			2, 7,
			3, 7,
			4, 7,
			5, 7,
		})

		corr, err := CorrelationMatrix(X)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(corr.At(0, 1)))
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := CorrelationMatrix(nil)
		assert.Error(t, err)

		_, err = CorrelationMatrix(mat.NewDense(1, 3, nil))
		assert.Error(t, err, "a single row has no correlation")
	})
}

func TestRankCorrelationMatrix(t *testing.T) {
	t.Run("Monotone nonlinear relation", func(t *testing.T) {
		n := 10
		X := mat.NewDense(n, 2, nil)
		for i := 0; i < n; i++ {
			x := float64(i + 1)
			X.Set(i, 0, x)
			X.Set(i, 1, x*x*x)
		}

		pearson, err := CorrelationMatrix(X)
		require.NoError(t, err)
		spearman, err := RankCorrelationMatrix(X)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, spearman.At(0, 1), 1e-12, "ranks of a monotone map agree exactly")
		assert.Less(t, pearson.At(0, 1), 0.999, "the cubic is not linear")
	})

	t.Run("Ties share the average rank", func(t *testing.T) {
		X := mat.NewDense(4, 2, []float64{
			1, 1,
			2, 2,
			2, 3,
			3, 4,
		})

		spearman, err := RankCorrelationMatrix(X)
		require.NoError(t, err)
		// Ranks (1, 2.5, 2.5, 4) against (1, 2, 3, 4).
		assert.InDelta(t, 3.0/math.Sqrt(10), spearman.At(0, 1), 1e-12)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := RankCorrelationMatrix(nil)
		assert.Error(t, err)
	})
}

func TestRankValues(t *testing.T) {
	assert.Equal(t, []float64{4, 1, 2.5, 2.5}, rankValues([]float64{3, 1, 2, 2}))
	assert.Equal(t, []float64{1, 2, 3}, rankValues([]float64{10, 20, 30}))
	assert.Equal(t, []float64{2, 2, 2}, rankValues([]float64{5, 5, 5}))
}
