package model_selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/linear"
)

// thresholdEstimator predicts class 1 when the first feature exceeds its
// threshold parameter. Its accuracy depends only on that parameter, which
// makes grid-search outcomes deterministic.
type thresholdEstimator struct {
	threshold float64
	fitted    bool
}

func (e *thresholdEstimator) Fit(X, y mat.Matrix) error {
	e.fitted = true
	return nil
}

func (e *thresholdEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if X.At(i, 0) > e.threshold {
			out.Set(i, 0, 1.0)
		}
	}
	return out, nil
}

func (e *thresholdEstimator) GetParams() map[string]interface{} {
	return map[string]interface{}{"threshold": e.threshold}
}

func (e *thresholdEstimator) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "threshold":
			f, ok := value.(float64)
			if !ok {
				return fmt.Errorf("threshold must be float64, got %T", value)
			}
			e.threshold = f
		default:
			return fmt.Errorf("unknown parameter: %s", key)
		}
	}
	return nil
}

func TestGridSearchCV(t *testing.T) {
	t.Run("Finds the separating threshold", func(t *testing.T) {
		// x = 0..19, class 1 for x >= 10; threshold 9.5 is perfect.
		n := 20
		X := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			if i >= 10 {
				y.Set(i, 0, 1.0)
			}
		}

		gs := NewGridSearchCV(func() Estimator {
			return &thresholdEstimator{}
		}, map[string][]interface{}{
			"threshold": {3.0, 9.5, 15.0},
		}, NewStratifiedKFold(4, true, 42), "accuracy")

		require.NoError(t, gs.Fit(X, y))

		assert.Equal(t, 9.5, gs.BestParams_["threshold"])
		assert.InDelta(t, 1.0, gs.BestScore_, 1e-10)
		assert.Equal(t, 3, len(gs.CVResults_))

		best, ok := gs.BestEstimator_.(*thresholdEstimator)
		require.True(t, ok)
		assert.True(t, best.fitted, "best estimator must be refitted on full data")
		assert.Equal(t, 9.5, best.threshold)

		pred, err := gs.Predict(X)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			assert.Equal(t, y.At(i, 0), pred.At(i, 0), "row %d", i)
		}
	})

	t.Run("Grid over two parameters", func(t *testing.T) {
		X, y := blobs(10)

		gs := NewGridSearchCV(func() Estimator {
			return linear.NewLogisticRegression(linear.WithLRRandomState(42))
		}, map[string][]interface{}{
			"C":        {0.5, 1.0},
			"max_iter": {50, 100},
		}, NewStratifiedKFold(2, true, 42), "accuracy")

		require.NoError(t, gs.Fit(X, y))

		assert.Equal(t, 4, len(gs.CVResults_), "2x2 grid")
		assert.Greater(t, gs.BestScore_, 0.8)
		assert.NotNil(t, gs.BestEstimator_)

		proba, err := gs.PredictProba(X)
		require.NoError(t, err)
		rows, cols := proba.Dims()
		assert.Equal(t, 20, rows)
		assert.Equal(t, 2, cols)
	})

	t.Run("Empty grid evaluates defaults", func(t *testing.T) {
		n := 20
		X := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			if i >= 10 {
				y.Set(i, 0, 1.0)
			}
		}

		gs := NewGridSearchCV(func() Estimator {
			return &thresholdEstimator{threshold: 9.5}
		}, nil, NewStratifiedKFold(2, false, 0), "accuracy")

		require.NoError(t, gs.Fit(X, y))
		assert.Equal(t, 1, len(gs.CVResults_))
		assert.Empty(t, gs.BestParams_)
	})

	t.Run("Invalid parameter combination", func(t *testing.T) {
		X, y := blobs(5)

		gs := NewGridSearchCV(func() Estimator {
			return &thresholdEstimator{}
		}, map[string][]interface{}{
			"no_such_param": {1.0},
		}, NewKFold(2, false, 0), "accuracy")

		err := gs.Fit(X, y)
		assert.Error(t, err)
	})

	t.Run("Predict before Fit", func(t *testing.T) {
		gs := NewGridSearchCV(func() Estimator {
			return &thresholdEstimator{}
		}, nil, nil, "accuracy")

		_, err := gs.Predict(mat.NewDense(2, 1, nil))
		assert.Error(t, err)
	})
}

func TestParamCombinations(t *testing.T) {
	t.Run("Cartesian product in stable order", func(t *testing.T) {
		combos, err := paramCombinations(map[string][]interface{}{
			"b": {"x", "y"},
			"a": {1, 2},
		})
		require.NoError(t, err)
		require.Equal(t, 4, len(combos))

		// Keys expand in sorted order, so "a" varies slowest.
		assert.Equal(t, map[string]interface{}{"a": 1, "b": "x"}, combos[0])
		assert.Equal(t, map[string]interface{}{"a": 1, "b": "y"}, combos[1])
		assert.Equal(t, map[string]interface{}{"a": 2, "b": "x"}, combos[2])
		assert.Equal(t, map[string]interface{}{"a": 2, "b": "y"}, combos[3])
	})

	t.Run("Empty grid", func(t *testing.T) {
		combos, err := paramCombinations(nil)
		require.NoError(t, err)
		require.Equal(t, 1, len(combos))
		assert.Empty(t, combos[0])
	})

	t.Run("Parameter without candidates", func(t *testing.T) {
		_, err := paramCombinations(map[string][]interface{}{"a": {}})
		assert.Error(t, err)
	})
}
