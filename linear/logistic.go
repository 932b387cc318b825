package linear

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// LogisticRegression is a gradient-descent logistic classifier compatible
// with scikit-learn's LogisticRegression. Binary problems train a single
// weight vector; multiclass problems train one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string
	c            float64
	fitIntercept bool
	maxIter      int
	tol          float64
	randomState  int64

	coef_      [][]float64
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     []int

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a classifier with sklearn defaults:
// l2 penalty, C=1.0, fit_intercept=true, max_iter=100, tol=1e-4.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		c:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		randomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}

	if lr.randomState >= 0 {
		lr.rand = rand.New(rand.NewSource(lr.randomState))
	} else {
		lr.rand = rand.New(rand.NewSource(rand.Int63()))
	}
	return lr
}

// WithLRPenalty sets the regularization type, "l2" or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithLogisticFitIntercept sets whether to fit an intercept term.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of gradient descent iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient-norm stopping tolerance.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState seeds weight initialization for reproducible fits.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
		if seed >= 0 {
			lr.rand = rand.New(rand.NewSource(seed))
		}
	}
}

// Fit trains the model. y must be an n×1 matrix of integer class labels.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError("LogisticRegression.Fit", "nil input")
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	lr.extractClasses(y)
	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "need at least 2 classes")
	}
	lr.nFeatures_ = nFeatures
	lr.initializeWeights(nFeatures)

	converged := true
	if lr.nClasses_ == 2 {
		converged = lr.fitBinaryFor(X, lr.binaryTargets(y, lr.classes_[1]), 0)
	} else {
		for classIdx, class := range lr.classes_ {
			if !lr.fitBinaryFor(X, lr.binaryTargets(y, class), classIdx) {
				converged = false
			}
		}
	}

	// A tolerance break on the final iteration still counts as converged.
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, "gradient norm above tolerance"))
	}

	for classIdx := range lr.coef_ {
		if err := errors.CheckNumericalStability("LogisticRegression.Fit", lr.coef_[classIdx], lr.nIter_[classIdx]); err != nil {
			return err
		}
	}

	lr.state.SetFitted()
	lr.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// extractClasses records the sorted unique integer labels in y.
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nSets := 1
	if lr.nClasses_ > 2 {
		nSets = lr.nClasses_
	}
	lr.coef_ = make([][]float64, nSets)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, nSets)
	lr.nIter_ = make([]int, nSets)
}

// binaryTargets converts labels to 0/1 with 1 marking the given class.
func (lr *LogisticRegression) binaryTargets(y mat.Matrix, positive int) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positive {
			out[i] = 1
		}
	}
	return out
}

// fitBinaryFor runs full-batch gradient descent on one weight set with an
// adaptive learning rate and L2 regularization. It reports whether the
// gradient norm dropped below the tolerance before the iteration cap.
func (lr *LogisticRegression) fitBinaryFor(X mat.Matrix, yBinary []float64, classIdx int) bool {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[classIdx]
	intercept := &lr.intercept_[classIdx]

	const baseLearningRate = 1.0
	gradWeights := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			diff := sigmoid(z) - yBinary[i]
			gradIntercept += diff
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += diff * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / lr.c
			for j := range weights {
				gradWeights[j] += lambda * weights[j] / float64(nSamples)
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.nIter_[classIdx] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.tol {
			return true
		}
	}
	return false
}

// decision computes the raw score of sample i for one weight set.
func (lr *LogisticRegression) decision(X mat.Matrix, i, classIdx int) float64 {
	z := lr.intercept_[classIdx]
	for j := 0; j < lr.nFeatures_; j++ {
		z += X.At(i, j) * lr.coef_[classIdx][j]
	}
	return z
}

// Predict returns an n×1 matrix of predicted class labels.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Predict")
	}
	nSamples, cols := X.Dims()
	if cols != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.Predict", lr.nFeatures_, cols, 1)
	}

	predictions := mat.NewDense(nSamples, 1, nil)
	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			if sigmoid(lr.decision(X, i, 0)) >= 0.5 {
				predictions.Set(i, 0, float64(lr.classes_[1]))
			} else {
				predictions.Set(i, 0, float64(lr.classes_[0]))
			}
		}
		return predictions, nil
	}

	for i := 0; i < nSamples; i++ {
		best, bestScore := 0, math.Inf(-1)
		for classIdx := 0; classIdx < lr.nClasses_; classIdx++ {
			if score := lr.decision(X, i, classIdx); score > bestScore {
				bestScore = score
				best = classIdx
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns an n×nClasses matrix of class probabilities.
// Multiclass scores are normalized with softmax.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}
	nSamples, cols := X.Dims()
	if cols != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures_, cols, 1)
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			p := sigmoid(lr.decision(X, i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	scores := make([]float64, lr.nClasses_)
	for i := 0; i < nSamples; i++ {
		maxScore := math.Inf(-1)
		for classIdx := 0; classIdx < lr.nClasses_; classIdx++ {
			scores[classIdx] = lr.decision(X, i, classIdx)
			if scores[classIdx] > maxScore {
				maxScore = scores[classIdx]
			}
		}
		sum := 0.0
		for classIdx := range scores {
			scores[classIdx] = math.Exp(scores[classIdx] - maxScore)
			sum += scores[classIdx]
		}
		for classIdx := range scores {
			probas.Set(i, classIdx, scores[classIdx]/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels seen during fit.
func (lr *LogisticRegression) Classes() []int {
	out := make([]int, len(lr.classes_))
	copy(out, lr.classes_)
	return out
}

// Coef returns the fitted weight vectors, one per class for multiclass.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i, w := range lr.coef_ {
		out[i] = make([]float64, len(w))
		copy(out[i], w)
	}
	return out
}

// Intercept returns the fitted intercept terms.
func (lr *LogisticRegression) Intercept() []float64 {
	out := make([]float64, len(lr.intercept_))
	copy(out, lr.intercept_)
	return out
}

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns hyperparameters in sklearn naming.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// SetParams updates hyperparameters from a sklearn-style map.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "penalty must be a string")
			}
			lr.penalty = v
		case "C":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "C must be a float")
			}
			lr.c = v
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "fit_intercept must be a bool")
			}
			lr.fitIntercept = v
		case "max_iter":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "max_iter must be an int")
			}
			lr.maxIter = int(v)
		case "tol":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "tol must be a float")
			}
			lr.tol = v
		case "random_state":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "random_state must be an int")
			}
			lr.randomState = int64(v)
			if lr.randomState >= 0 {
				lr.rand = rand.New(rand.NewSource(lr.randomState))
			}
		default:
			return errors.NewValueError("LogisticRegression.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

// toFloat widens numeric parameter values.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// sigmoid computes the logistic function.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
