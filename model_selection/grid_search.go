package model_selection

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// Estimator is a tunable classifier. Grid search clones candidates by
// building a fresh instance and applying SetParams.
type Estimator interface {
	Classifier
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// GridResult records the cross-validated scores of one parameter
// combination.
type GridResult struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
}

// GridSearchCV exhaustively cross-validates every combination of the
// parameter grid and refits the best one on the full data.
type GridSearchCV struct {
	Factory   func() Estimator
	ParamGrid map[string][]interface{}
	CV        Splitter
	Scoring   string

	BestParams_    map[string]interface{}
	BestScore_     float64
	BestEstimator_ Estimator
	CVResults_     []GridResult
}

// NewGridSearchCV creates a grid search over factory-built estimators.
// A nil cv defaults to stratified 5-fold with shuffling.
func NewGridSearchCV(factory func() Estimator, paramGrid map[string][]interface{}, cv Splitter, scoring string) *GridSearchCV {
	if cv == nil {
		cv = NewStratifiedKFold(5, true, 42)
	}
	return &GridSearchCV{
		Factory:   factory,
		ParamGrid: paramGrid,
		CV:        cv,
		Scoring:   scoring,
	}
}

// Fit evaluates every parameter combination with cross-validation, then
// refits the winning estimator on all of X, y.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	if gs.Factory == nil {
		return errors.NewValueError("GridSearchCV.Fit", "nil estimator factory")
	}
	scorer, err := GetScorer(gs.Scoring)
	if err != nil {
		return err
	}
	combos, err := paramCombinations(gs.ParamGrid)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("model_selection.grid_search")
	gs.CVResults_ = make([]GridResult, 0, len(combos))
	bestIdx := -1

	for i, combo := range combos {
		// Validate the combination once before the fold goroutines use it.
		probe := gs.Factory()
		if len(combo) > 0 {
			if err := probe.SetParams(combo); err != nil {
				return errors.Wrapf(err, "invalid parameter combination %v", combo)
			}
		}

		params := combo
		result, err := CrossValidate(func() Classifier {
			clf := gs.Factory()
			if len(params) > 0 {
				_ = clf.SetParams(params)
			}
			return clf
		}, X, y, gs.CV, gs.Scoring)
		if err != nil {
			return errors.Wrapf(err, "parameter combination %v failed", combo)
		}

		mean := result.GetMeanScore()
		gs.CVResults_ = append(gs.CVResults_, GridResult{
			Params:    combo,
			MeanScore: mean,
			StdScore:  result.GetStdScore(),
		})
		logger.Debug("grid point evaluated",
			"params", combo,
			"mean_score", mean,
		)

		if bestIdx < 0 {
			bestIdx = i
			continue
		}
		better := mean > gs.CVResults_[bestIdx].MeanScore
		if !scorer.GreaterIsBetter {
			better = mean < gs.CVResults_[bestIdx].MeanScore
		}
		if better {
			bestIdx = i
		}
	}

	gs.BestParams_ = gs.CVResults_[bestIdx].Params
	gs.BestScore_ = gs.CVResults_[bestIdx].MeanScore

	best := gs.Factory()
	if len(gs.BestParams_) > 0 {
		if err := best.SetParams(gs.BestParams_); err != nil {
			return err
		}
	}
	if err := best.Fit(X, y); err != nil {
		return errors.Wrap(err, "refitting best estimator failed")
	}
	gs.BestEstimator_ = best

	logger.Info("grid search finished",
		"best_params", gs.BestParams_,
		"best_score", gs.BestScore_,
		"scoring", scorer.Name,
		"candidates", len(combos),
	)
	return nil
}

// Predict delegates to the refitted best estimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator_ == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator_.Predict(X)
}

// PredictProba delegates to the best estimator when it supports
// probability output.
func (gs *GridSearchCV) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator_ == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "PredictProba")
	}
	probaClf, ok := gs.BestEstimator_.(ProbaClassifier)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV.PredictProba", "best estimator does not support probability predictions")
	}
	return probaClf.PredictProba(X)
}

// paramCombinations expands the grid into its cartesian product. Keys are
// visited in sorted order so the result order is stable. An empty grid
// yields a single empty combination (estimator defaults).
func paramCombinations(grid map[string][]interface{}) ([]map[string]interface{}, error) {
	if len(grid) == 0 {
		return []map[string]interface{}{{}}, nil
	}
	keys := make([]string, 0, len(grid))
	for k := range grid {
		if len(grid[k]) == 0 {
			return nil, errors.NewValueError("GridSearchCV", "parameter "+k+" has no candidate values")
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(combos)*len(grid[k]))
		for _, combo := range combos {
			for _, v := range grid[k] {
				expanded := make(map[string]interface{}, len(combo)+1)
				for ck, cv := range combo {
					expanded[ck] = cv
				}
				expanded[k] = v
				next = append(next, expanded)
			}
		}
		combos = next
	}
	return combos, nil
}
