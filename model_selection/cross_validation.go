package model_selection

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// Classifier is the estimator contract cross-validation trains per fold.
type Classifier interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaClassifier adds probability output, required by auc, log_loss and
// brier scoring.
type ProbaClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// CVResult stores per-fold cross-validation scores and the fitted models.
type CVResult struct {
	TrainScores []float64
	TestScores  []float64
	Models      []Classifier
	BestFold    int
	BestScore   float64
}

// GetMeanScore returns the mean test score across folds.
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, score := range cv.TestScores {
		sum += score
	}
	return sum / float64(len(cv.TestScores))
}

// GetStdScore returns the sample standard deviation of the test scores.
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0.0
	}
	mean := cv.GetMeanScore()
	sumSq := 0.0
	for _, score := range cv.TestScores {
		diff := score - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(cv.TestScores)-1))
}

// CrossValidate trains one model per fold concurrently and scores it on
// the held-out rows. factory must return a fresh, unfitted classifier on
// every call.
func CrossValidate(factory func() Classifier, X, y mat.Matrix, splitter Splitter, scoring string) (*CVResult, error) {
	if factory == nil {
		return nil, errors.NewValueError("CrossValidate", "nil model factory")
	}
	if X == nil || y == nil {
		return nil, errors.NewValueError("CrossValidate", "nil input")
	}
	scorer, err := GetScorer(scoring)
	if err != nil {
		return nil, err
	}

	folds := splitter.Split(X, y)
	nFolds := len(folds)
	result := &CVResult{
		TrainScores: make([]float64, nFolds),
		TestScores:  make([]float64, nFolds),
		Models:      make([]Classifier, nFolds),
	}

	logger := log.GetLoggerWithName("model_selection.cv")

	var wg sync.WaitGroup
	foldErrs := make([]error, nFolds)
	for foldIdx := 0; foldIdx < nFolds; foldIdx++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			fold := folds[idx]
			trainX, trainY := Subset(X, y, fold.TrainIndices)
			testX, testY := Subset(X, y, fold.TestIndices)

			clf := factory()
			if err := clf.Fit(trainX, trainY); err != nil {
				foldErrs[idx] = errors.Wrapf(err, "fold %d training failed", idx)
				return
			}
			result.Models[idx] = clf

			trainScore, err := scoreFold(scorer, clf, trainX, trainY)
			if err != nil {
				foldErrs[idx] = errors.Wrapf(err, "fold %d train scoring failed", idx)
				return
			}
			result.TrainScores[idx] = trainScore

			testScore, err := scoreFold(scorer, clf, testX, testY)
			if err != nil {
				foldErrs[idx] = errors.Wrapf(err, "fold %d test scoring failed", idx)
				return
			}
			result.TestScores[idx] = testScore

			logger.Debug("fold finished",
				"fold", idx+1,
				"folds", nFolds,
				"scoring", scorer.Name,
				"train", trainScore,
				"test", testScore,
			)
		}(foldIdx)
	}
	wg.Wait()

	for _, err := range foldErrs {
		if err != nil {
			return nil, err
		}
	}

	result.BestScore = result.TestScores[0]
	result.BestFold = 0
	for i := 1; i < nFolds; i++ {
		better := result.TestScores[i] > result.BestScore
		if !scorer.GreaterIsBetter {
			better = result.TestScores[i] < result.BestScore
		}
		if better {
			result.BestScore = result.TestScores[i]
			result.BestFold = i
		}
	}
	return result, nil
}

// scoreFold produces the scorer's input from the fitted model and applies
// the scorer.
func scoreFold(scorer Scorer, clf Classifier, X, y mat.Matrix) (float64, error) {
	yTrue, err := vecFromMatrix("CrossValidate", y)
	if err != nil {
		return 0, err
	}

	if scorer.NeedsProba {
		probaClf, ok := clf.(ProbaClassifier)
		if !ok {
			return 0, errors.NewValueError("CrossValidate", "scoring "+scorer.Name+" requires probability predictions")
		}
		proba, err := probaClf.PredictProba(X)
		if err != nil {
			return 0, err
		}
		score, err := positiveColumn(proba)
		if err != nil {
			return 0, err
		}
		return scorer.Score(yTrue, score)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		return 0, err
	}
	yPred, err := vecFromMatrix("CrossValidate", pred)
	if err != nil {
		return 0, err
	}
	return scorer.Score(yTrue, yPred)
}

// vecFromMatrix flattens an n×1 matrix into a vector.
func vecFromMatrix(op string, m mat.Matrix) (*mat.VecDense, error) {
	rows, cols := m.Dims()
	if cols != 1 {
		return nil, errors.NewDimensionError(op, 1, cols, 1)
	}
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// positiveColumn extracts the positive-class probability. Two-column
// matrices use column 1, single columns pass through.
func positiveColumn(proba mat.Matrix) (*mat.VecDense, error) {
	rows, cols := proba.Dims()
	switch cols {
	case 1:
		return vecFromMatrix("CrossValidate", proba)
	case 2:
		v := mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			v.SetVec(i, proba.At(i, 1))
		}
		return v, nil
	default:
		return nil, errors.NewValueError("CrossValidate", "probability matrix must have 1 or 2 columns")
	}
}
