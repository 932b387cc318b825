// Package ensemble provides tree-ensemble classifiers for attrition
// prediction: bagged random forests, gradient boosting and stacked
// generalization over heterogeneous base models.
package ensemble

import (
	"math"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// ObjectiveFunction defines the per-sample loss interface used by
// gradient boosting.
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample.
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample.
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample.
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial raw score for this objective.
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective.
	Name() string
}

// probEpsilon clips probabilities away from 0 and 1 so logs and
// divisions stay finite.
const probEpsilon = 1e-15

// BinaryLogisticObjective implements binary cross-entropy on raw scores.
// Predictions passed in are raw (pre-sigmoid) ensemble outputs.
type BinaryLogisticObjective struct{}

// NewBinaryLogisticObjective creates the binary classification objective.
func NewBinaryLogisticObjective() *BinaryLogisticObjective {
	return &BinaryLogisticObjective{}
}

// CalculateGradient returns p - y for the sigmoid-transformed score.
func (o *BinaryLogisticObjective) CalculateGradient(prediction, target float64) float64 {
	p := sigmoid(prediction)
	return p - target
}

// CalculateHessian returns p(1-p), floored for numerical stability.
func (o *BinaryLogisticObjective) CalculateHessian(prediction, target float64) float64 {
	p := sigmoid(prediction)
	h := p * (1.0 - p)
	if h < probEpsilon {
		h = probEpsilon
	}
	return h
}

// CalculateLoss returns the binary cross-entropy of one sample.
func (o *BinaryLogisticObjective) CalculateLoss(prediction, target float64) float64 {
	p := clipProbability(sigmoid(prediction))
	if target == 1.0 {
		return -math.Log(p)
	}
	return -math.Log(1.0 - p)
}

// GetInitScore returns the log-odds of the base rate, the raw score that
// minimizes the loss before any tree is added.
func (o *BinaryLogisticObjective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	p := clipProbability(sum / float64(len(targets)))
	return math.Log(p / (1.0 - p))
}

// Name returns the objective identifier.
func (o *BinaryLogisticObjective) Name() string {
	return "binary"
}

// CreateObjective resolves an objective name.
func CreateObjective(name string) (ObjectiveFunction, error) {
	switch name {
	case "binary", "":
		return NewBinaryLogisticObjective(), nil
	default:
		return nil, errors.NewValueError("CreateObjective", "unknown objective: "+name)
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func clipProbability(p float64) float64 {
	if p < probEpsilon {
		return probEpsilon
	}
	if p > 1.0-probEpsilon {
		return 1.0 - probEpsilon
	}
	return p
}
