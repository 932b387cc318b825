package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/metrics"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// positiveLabel is the encoded positive class used by label-based scorers.
const positiveLabel = 1.0

// Scorer evaluates predictions against ground truth. Label scorers take
// hard predictions; probability scorers take the positive-class score.
type Scorer struct {
	Name            string
	NeedsProba      bool
	GreaterIsBetter bool

	fn func(yTrue, yScore *mat.VecDense) (float64, error)
}

// Score applies the scorer.
func (s Scorer) Score(yTrue, yScore *mat.VecDense) (float64, error) {
	return s.fn(yTrue, yScore)
}

// GetScorer resolves a scoring name to a Scorer. Supported names:
// accuracy, precision, recall, f1, auc, log_loss, brier.
func GetScorer(name string) (Scorer, error) {
	switch name {
	case "accuracy", "":
		return Scorer{
			Name:            "accuracy",
			GreaterIsBetter: true,
			fn:              metrics.Accuracy,
		}, nil
	case "precision":
		return Scorer{
			Name:            "precision",
			GreaterIsBetter: true,
			fn: func(yTrue, yPred *mat.VecDense) (float64, error) {
				return metrics.Precision(yTrue, yPred, positiveLabel)
			},
		}, nil
	case "recall":
		return Scorer{
			Name:            "recall",
			GreaterIsBetter: true,
			fn: func(yTrue, yPred *mat.VecDense) (float64, error) {
				return metrics.Recall(yTrue, yPred, positiveLabel)
			},
		}, nil
	case "f1":
		return Scorer{
			Name:            "f1",
			GreaterIsBetter: true,
			fn: func(yTrue, yPred *mat.VecDense) (float64, error) {
				return metrics.F1Score(yTrue, yPred, positiveLabel)
			},
		}, nil
	case "auc":
		return Scorer{
			Name:            "auc",
			NeedsProba:      true,
			GreaterIsBetter: true,
			fn:              metrics.AUC,
		}, nil
	case "log_loss", "logloss":
		return Scorer{
			Name:            "log_loss",
			NeedsProba:      true,
			GreaterIsBetter: false,
			fn:              metrics.BinaryLogLoss,
		}, nil
	case "brier":
		// Mean squared error between the positive-class probability and
		// the 0/1 label.
		return Scorer{
			Name:            "brier",
			NeedsProba:      true,
			GreaterIsBetter: false,
			fn:              metrics.MSE,
		}, nil
	default:
		return Scorer{}, errors.NewValueError("GetScorer", "unknown scoring name: "+name)
	}
}
