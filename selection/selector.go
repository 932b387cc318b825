// Package selection ranks features by model importance and keeps the
// strongest ones. It also provides the correlation matrices used when
// exploring a feature table before training.
package selection

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/ensemble"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// ImportanceRanker scores features while fitting a supervised model.
// Tree ensembles satisfy it out of the box.
type ImportanceRanker interface {
	Fit(X, y mat.Matrix) error
	GetFeatureImportances() []float64
}

// ImportanceSelector keeps the TopN features ranked by the importances of
// a fitted estimator and drops the rest.
type ImportanceSelector struct {
	model.BaseEstimator

	// TopN is how many features survive the selection.
	TopN int

	// Estimator ranks the features. When nil, Fit trains a random forest.
	Estimator ImportanceRanker

	importances_ []float64
	ranking_     []int
	selected_    []int
	nFeatures_   int
}

// NewImportanceSelector creates a selector keeping the topN best features.
func NewImportanceSelector(topN int) *ImportanceSelector {
	return &ImportanceSelector{TopN: topN}
}

// WithEstimator sets the model whose importances drive the ranking.
func (s *ImportanceSelector) WithEstimator(est ImportanceRanker) *ImportanceSelector {
	s.Estimator = est
	return s
}

// Fit trains the ranking estimator on (X, y) and decides which columns
// to keep. When TopN exceeds the number of columns, every feature is
// kept and a warning is logged.
func (s *ImportanceSelector) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ImportanceSelector.Fit")

	if X == nil || y == nil {
		return errors.NewValueError("ImportanceSelector.Fit", "X and y must not be nil")
	}
	if s.TopN <= 0 {
		return errors.NewValueError("ImportanceSelector.Fit", "top_n must be positive")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("ImportanceSelector.Fit", "empty data", errors.ErrEmptyData)
	}

	keep := s.TopN
	if keep > cols {
		log.GetLoggerWithName("selection").Warn("top_n exceeds feature count, keeping all features",
			"top_n", s.TopN,
			log.FeaturesKey, cols)
		keep = cols
	}

	est := s.Estimator
	if est == nil {
		est = ensemble.NewRandomForestClassifier().
			WithNEstimators(50).
			WithRandomState(42)
	}
	if err := est.Fit(X, y); err != nil {
		return errors.Wrap(err, "fitting the ranking estimator failed")
	}

	importances := est.GetFeatureImportances()
	if len(importances) != cols {
		return errors.NewDimensionError("ImportanceSelector.Fit", cols, len(importances), 1)
	}

	s.importances_ = make([]float64, cols)
	copy(s.importances_, importances)

	s.ranking_ = make([]int, cols)
	for j := range s.ranking_ {
		s.ranking_[j] = j
	}
	sort.SliceStable(s.ranking_, func(a, b int) bool {
		return s.importances_[s.ranking_[a]] > s.importances_[s.ranking_[b]]
	})

	// Selected columns stay in their original order so transformed
	// matrices line up with the input layout.
	s.selected_ = make([]int, keep)
	copy(s.selected_, s.ranking_[:keep])
	sort.Ints(s.selected_)

	s.nFeatures_ = cols
	s.SetFitted()
	return nil
}

// Transform returns X restricted to the selected columns.
func (s *ImportanceSelector) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("ImportanceSelector", "Transform")
	}
	rows, cols := X.Dims()
	if cols != s.nFeatures_ {
		return nil, errors.NewDimensionError("ImportanceSelector.Transform", s.nFeatures_, cols, 1)
	}

	out := mat.NewDense(rows, len(s.selected_), nil)
	for outCol, j := range s.selected_ {
		for i := 0; i < rows; i++ {
			out.Set(i, outCol, X.At(i, j))
		}
	}
	return out, nil
}

// FitTransform fits the selector and transforms the same data.
func (s *ImportanceSelector) FitTransform(X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// SelectedIndices returns the kept column indices in ascending order.
func (s *ImportanceSelector) SelectedIndices() []int {
	out := make([]int, len(s.selected_))
	copy(out, s.selected_)
	return out
}

// Ranking returns every column index ordered from most to least important.
func (s *ImportanceSelector) Ranking() []int {
	out := make([]int, len(s.ranking_))
	copy(out, s.ranking_)
	return out
}

// Importances returns the importance score of each input column.
func (s *ImportanceSelector) Importances() []float64 {
	out := make([]float64, len(s.importances_))
	copy(out, s.importances_)
	return out
}

// NSelected returns how many columns survive the selection.
func (s *ImportanceSelector) NSelected() int {
	return len(s.selected_)
}
