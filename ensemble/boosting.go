package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// boostedNode is one node of a regression tree fit on gradients.
type boostedNode struct {
	Feature   int
	Threshold float64
	Left      *boostedNode
	Right     *boostedNode
	Leaf      bool
	Value     float64
}

// GradientBoostingClassifier is a binary classifier built from an
// additive ensemble of regression trees fit on the gradients of a
// logistic loss. Split quality and leaf values use second-order
// (gradient/hessian) statistics.
type GradientBoostingClassifier struct {
	model.BaseEstimator

	// Hyperparameters
	NEstimators    int     // Number of boosting iterations
	LearningRate   float64 // Shrinkage applied to each tree
	MaxDepth       int     // Maximum tree depth, <= 0 means no limit
	MinSamplesLeaf int     // Minimum number of samples in one leaf
	RegLambda      float64 // L2 regularization on leaf values
	MinGainToSplit float64 // Minimum gain required to keep a split
	EarlyStopping  int     // Stop after this many rounds without improvement, 0 disables
	Objective      string  // Objective name, "binary" by default

	// Fitted state
	objective   ObjectiveFunction
	initScore_  float64
	trees_      []*boostedNode
	classes_    []float64
	nFeatures_  int
	importances []float64
}

// NewGradientBoostingClassifier creates a boosting classifier with
// defaults suited to tabular attrition data.
func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 20,
		RegLambda:      0.0,
		MinGainToSplit: 1e-7,
		EarlyStopping:  0,
		Objective:      "binary",
	}
}

// WithNEstimators sets the number of boosting iterations.
func (gb *GradientBoostingClassifier) WithNEstimators(n int) *GradientBoostingClassifier {
	gb.NEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage rate.
func (gb *GradientBoostingClassifier) WithLearningRate(lr float64) *GradientBoostingClassifier {
	gb.LearningRate = lr
	return gb
}

// WithMaxDepth sets the maximum tree depth.
func (gb *GradientBoostingClassifier) WithMaxDepth(d int) *GradientBoostingClassifier {
	gb.MaxDepth = d
	return gb
}

// WithMinSamplesLeaf sets the minimum samples per leaf.
func (gb *GradientBoostingClassifier) WithMinSamplesLeaf(n int) *GradientBoostingClassifier {
	gb.MinSamplesLeaf = n
	return gb
}

// WithRegLambda sets the L2 regularization on leaf values.
func (gb *GradientBoostingClassifier) WithRegLambda(lambda float64) *GradientBoostingClassifier {
	gb.RegLambda = lambda
	return gb
}

// WithEarlyStopping stops training after rounds iterations without
// training-loss improvement.
func (gb *GradientBoostingClassifier) WithEarlyStopping(rounds int) *GradientBoostingClassifier {
	gb.EarlyStopping = rounds
	return gb
}

// Fit trains the boosted ensemble on binary labels.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	if X == nil || y == nil {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "nil input")
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("GradientBoostingClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", 1, yCols, 1)
	}

	classSet := make(map[float64]bool)
	for i := 0; i < rows; i++ {
		classSet[y.At(i, 0)] = true
	}
	if len(classSet) != 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "binary classification requires exactly 2 classes")
	}
	classes := make([]float64, 0, 2)
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Float64s(classes)
	gb.classes_ = classes
	gb.nFeatures_ = cols

	objective, err := CreateObjective(gb.Objective)
	if err != nil {
		return err
	}
	gb.objective = objective

	// Targets are 0/1 regardless of the original label values.
	targets := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if y.At(i, 0) == classes[1] {
			targets[i] = 1.0
		}
	}

	gb.initScore_ = objective.GetInitScore(targets)
	gb.trees_ = nil
	gb.importances = make([]float64, cols)

	rawScores := make([]float64, rows)
	for i := range rawScores {
		rawScores[i] = gb.initScore_
	}
	gradients := make([]float64, rows)
	hessians := make([]float64, rows)
	rootIndices := make([]int, rows)
	for i := range rootIndices {
		rootIndices[i] = i
	}

	logger := log.GetLoggerWithName("ensemble.boosting")
	bestLoss := math.Inf(1)
	roundsWithoutImprovement := 0

	for iter := 0; iter < gb.NEstimators; iter++ {
		for i := 0; i < rows; i++ {
			gradients[i] = objective.CalculateGradient(rawScores[i], targets[i])
			hessians[i] = objective.CalculateHessian(rawScores[i], targets[i])
		}

		root := gb.buildNode(X, gradients, hessians, rootIndices, 0)
		gb.trees_ = append(gb.trees_, root)

		loss := 0.0
		for i := 0; i < rows; i++ {
			rawScores[i] += gb.LearningRate * predictNode(root, X, i)
			loss += objective.CalculateLoss(rawScores[i], targets[i])
		}
		loss /= float64(rows)
		if err := errors.CheckScalar("GradientBoostingClassifier.Fit", loss, iter); err != nil {
			return err
		}

		if iter%10 == 0 {
			logger.Debug("training progress",
				"iteration", iter,
				"loss", loss)
		}

		if loss < bestLoss-1e-7 {
			bestLoss = loss
			roundsWithoutImprovement = 0
		} else {
			roundsWithoutImprovement++
			if gb.EarlyStopping > 0 && roundsWithoutImprovement >= gb.EarlyStopping {
				logger.Info("early stopping",
					"iteration", iter,
					"best_loss", bestLoss)
				break
			}
		}
	}

	gb.SetFitted()
	return nil
}

// buildNode recursively grows a regression tree on the current
// gradient/hessian statistics.
func (gb *GradientBoostingClassifier) buildNode(X mat.Matrix, gradients, hessians []float64, indices []int, depth int) *boostedNode {
	sumGrad := 0.0
	sumHess := 0.0
	for _, idx := range indices {
		sumGrad += gradients[idx]
		sumHess += hessians[idx]
	}

	if (gb.MaxDepth > 0 && depth >= gb.MaxDepth) || len(indices) < 2*gb.MinSamplesLeaf {
		return gb.leafNode(sumGrad, sumHess)
	}

	feature, threshold, gain, left, right := gb.findBestSplit(X, gradients, hessians, indices, sumGrad, sumHess)
	if gain < gb.MinGainToSplit {
		return gb.leafNode(sumGrad, sumHess)
	}
	gb.importances[feature] += gain

	return &boostedNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      gb.buildNode(X, gradients, hessians, left, depth+1),
		Right:     gb.buildNode(X, gradients, hessians, right, depth+1),
	}
}

// leafNode computes the regularized optimal leaf value -G/(H+lambda).
func (gb *GradientBoostingClassifier) leafNode(sumGrad, sumHess float64) *boostedNode {
	epsilon := 1e-10
	if math.Abs(sumHess) < epsilon {
		sumHess = epsilon
	}
	return &boostedNode{
		Leaf:  true,
		Value: -sumGrad / (sumHess + gb.RegLambda + epsilon),
	}
}

// findBestSplit scans every feature with prefix gradient/hessian sums.
func (gb *GradientBoostingClassifier) findBestSplit(X mat.Matrix, gradients, hessians []float64, indices []int, totalGrad, totalHess float64) (int, float64, float64, []int, []int) {
	_, cols := X.Dims()

	bestGain := math.Inf(-1)
	bestFeature := -1
	bestThreshold := 0.0

	sorted := make([]int, len(indices))
	for j := 0; j < cols; j++ {
		copy(sorted, indices)
		feature := j
		sort.Slice(sorted, func(a, b int) bool {
			return X.At(sorted[a], feature) < X.At(sorted[b], feature)
		})

		leftGrad := 0.0
		leftHess := 0.0
		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			leftGrad += gradients[idx]
			leftHess += hessians[idx]

			current := X.At(idx, feature)
			next := X.At(sorted[i+1], feature)
			if current == next {
				continue
			}
			leftCount := i + 1
			rightCount := len(sorted) - leftCount
			if leftCount < gb.MinSamplesLeaf || rightCount < gb.MinSamplesLeaf {
				continue
			}

			gain := gb.splitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (current + next) / 2.0
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, math.Inf(-1), nil, nil
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if X.At(idx, bestFeature) <= bestThreshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return bestFeature, bestThreshold, bestGain, left, right
}

// splitGain is the second-order gain of a candidate split.
func (gb *GradientBoostingClassifier) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := gb.RegLambda

	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}

// predictNode walks one tree for one row.
func predictNode(node *boostedNode, X mat.Matrix, row int) float64 {
	for !node.Leaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// rawScore returns the pre-sigmoid ensemble output for one row.
func (gb *GradientBoostingClassifier) rawScore(X mat.Matrix, row int) float64 {
	score := gb.initScore_
	for _, tree := range gb.trees_ {
		score += gb.LearningRate * predictNode(tree, X, row)
	}
	return score
}

// Predict returns an n×1 matrix of predicted class labels.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "Predict")
	}
	rows, cols := X.Dims()
	if cols != gb.nFeatures_ {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.Predict", gb.nFeatures_, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if sigmoid(gb.rawScore(X, i)) >= 0.5 {
			out.Set(i, 0, gb.classes_[1])
		} else {
			out.Set(i, 0, gb.classes_[0])
		}
	}
	return out, nil
}

// PredictProba returns an n×2 matrix of class probabilities.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != gb.nFeatures_ {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.PredictProba", gb.nFeatures_, cols, 1)
	}
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := sigmoid(gb.rawScore(X, i))
		out.Set(i, 0, 1.0-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := gb.Predict(X)
	if err != nil {
		return 0.0
	}
	rows, _ := y.Dims()
	if rows == 0 {
		return 0.0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the sorted class labels.
func (gb *GradientBoostingClassifier) Classes() []float64 {
	out := make([]float64, len(gb.classes_))
	copy(out, gb.classes_)
	return out
}

// NTrees returns the number of trees actually grown, which can be
// below NEstimators when early stopping triggered.
func (gb *GradientBoostingClassifier) NTrees() int {
	return len(gb.trees_)
}

// GetFeatureImportances returns gain-based importances normalized to
// sum to 1.
func (gb *GradientBoostingClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(gb.importances))
	copy(out, gb.importances)
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}

// GetParams returns hyperparameters in sklearn naming.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      gb.NEstimators,
		"learning_rate":     gb.LearningRate,
		"max_depth":         gb.MaxDepth,
		"min_samples_leaf":  gb.MinSamplesLeaf,
		"reg_lambda":        gb.RegLambda,
		"min_gain_to_split": gb.MinGainToSplit,
		"early_stopping":    gb.EarlyStopping,
		"objective":         gb.Objective,
	}
}

// SetParams updates hyperparameters from a sklearn-style map.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "n_estimators must be an int")
			}
			gb.NEstimators = v
		case "learning_rate":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "learning_rate must be a float")
			}
			gb.LearningRate = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "max_depth must be an int")
			}
			gb.MaxDepth = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "min_samples_leaf must be an int")
			}
			gb.MinSamplesLeaf = v
		case "reg_lambda":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "reg_lambda must be a float")
			}
			gb.RegLambda = v
		case "min_gain_to_split":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "min_gain_to_split must be a float")
			}
			gb.MinGainToSplit = v
		case "early_stopping":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "early_stopping must be an int")
			}
			gb.EarlyStopping = v
		case "objective":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "objective must be a string")
			}
			gb.Objective = v
		default:
			return errors.NewValueError("GradientBoostingClassifier.SetParams", "unknown parameter "+key)
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

// toInt narrows numeric parameter values.
func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
