// Package tree implements CART decision trees for classification.
//
// DecisionTreeClassifier grows binary trees by exhaustive search over
// midpoint thresholds, choosing splits that maximize impurity decrease
// under the configured criterion. It is the base learner for the
// ensemble package.
package tree

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// node is a single tree node. Leaves carry the class distribution of the
// training samples that reached them.
type node struct {
	Feature   int
	Threshold float64
	Left      *node
	Right     *node
	Leaf      bool
	Counts    []float64
	Total     float64
}

// DecisionTreeClassifier is a CART classifier over dense matrices.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int64

	root        *node
	classes_    []float64
	nClasses_   int
	nFeatures_  int
	importances []float64
	rng         *rand.Rand
}

// NewDecisionTreeClassifier creates a classifier with sklearn-style
// defaults: gini criterion, unlimited depth, min_samples_split=2,
// min_samples_leaf=1.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit grows the tree on training data. y must be an n×1 matrix of class
// labels; labels may be arbitrary floats and are sorted into classes_.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "nil input")
	}
	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "criterion must be gini or entropy")
	}

	dt.state.Reset()
	dt.nFeatures_ = cols

	seen := make(map[float64]bool)
	labels := make([]float64, rows)
	for i := 0; i < rows; i++ {
		labels[i] = y.At(i, 0)
		seen[labels[i]] = true
	}
	dt.classes_ = make([]float64, 0, len(seen))
	for c := range seen {
		dt.classes_ = append(dt.classes_, c)
	}
	sort.Float64s(dt.classes_)
	dt.nClasses_ = len(dt.classes_)

	classIndex := make(map[float64]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}
	yIdx := make([]int, rows)
	for i, l := range labels {
		yIdx[i] = classIndex[l]
	}

	if dt.randomState >= 0 {
		dt.rng = rand.New(rand.NewSource(dt.randomState))
	} else {
		dt.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}

	dt.importances = make([]float64, cols)
	dt.root = dt.buildNode(X, yIdx, indices, 0, rows)
	dt.normalizeImportances()

	dt.state.SetFitted()
	dt.state.SetDimensions(cols, rows)
	return nil
}

// buildNode recursively grows the tree from the samples in indices.
func (dt *DecisionTreeClassifier) buildNode(X mat.Matrix, yIdx, indices []int, depth, nTotal int) *node {
	counts := make([]float64, dt.nClasses_)
	for _, idx := range indices {
		counts[yIdx[idx]]++
	}
	n := len(indices)
	leaf := &node{Leaf: true, Counts: counts, Total: float64(n)}

	if dt.maxDepth >= 0 && depth >= dt.maxDepth {
		return leaf
	}
	if n < dt.minSamplesSplit {
		return leaf
	}
	if dt.impurity(counts, float64(n)) == 0 {
		return leaf
	}

	feature, threshold, gain, leftIdx, rightIdx := dt.findBestSplit(X, yIdx, indices, counts)
	if feature < 0 {
		return leaf
	}

	// Importance accumulates the impurity decrease weighted by the
	// fraction of samples flowing through this node.
	dt.importances[feature] += float64(n) / float64(nTotal) * gain

	return &node{
		Feature:   feature,
		Threshold: threshold,
		Left:      dt.buildNode(X, yIdx, leftIdx, depth+1, nTotal),
		Right:     dt.buildNode(X, yIdx, rightIdx, depth+1, nTotal),
		Counts:    counts,
		Total:     float64(n),
	}
}

// findBestSplit searches every candidate feature for the threshold with
// the largest impurity decrease. It returns feature -1 when no split
// satisfies the leaf-size constraint.
func (dt *DecisionTreeClassifier) findBestSplit(X mat.Matrix, yIdx, indices []int, parentCounts []float64) (int, float64, float64, []int, []int) {
	n := len(indices)
	parentImpurity := dt.impurity(parentCounts, float64(n))

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0
	features := dt.candidateFeatures()

	sorted := make([]int, n)
	leftCounts := make([]float64, dt.nClasses_)
	rightCounts := make([]float64, dt.nClasses_)

	for _, f := range features {
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			return X.At(sorted[a], f) < X.At(sorted[b], f)
		})

		for i := range leftCounts {
			leftCounts[i] = 0
			rightCounts[i] = parentCounts[i]
		}

		for i := 0; i < n-1; i++ {
			cls := yIdx[sorted[i]]
			leftCounts[cls]++
			rightCounts[cls]--

			v, next := X.At(sorted[i], f), X.At(sorted[i+1], f)
			if v == next {
				continue
			}
			nLeft, nRight := i+1, n-i-1
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			gain := parentImpurity -
				float64(nLeft)/float64(n)*dt.impurity(leftCounts, float64(nLeft)) -
				float64(nRight)/float64(n)*dt.impurity(rightCounts, float64(nRight))
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}

	if bestFeature < 0 || bestGain <= 0 {
		return -1, 0, 0, nil, nil
	}

	var leftIdx, rightIdx []int
	for _, idx := range indices {
		if X.At(idx, bestFeature) <= bestThreshold {
			leftIdx = append(leftIdx, idx)
		} else {
			rightIdx = append(rightIdx, idx)
		}
	}
	return bestFeature, bestThreshold, bestGain, leftIdx, rightIdx
}

// candidateFeatures returns the feature indices to examine at a split.
// With maxFeatures set, a random subset is drawn per node.
func (dt *DecisionTreeClassifier) candidateFeatures() []int {
	all := make([]int, dt.nFeatures_)
	for i := range all {
		all[i] = i
	}
	if dt.maxFeatures <= 0 || dt.maxFeatures >= dt.nFeatures_ {
		return all
	}
	dt.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	subset := all[:dt.maxFeatures]
	sort.Ints(subset)
	return subset
}

// impurity computes the configured criterion over a class count vector.
func (dt *DecisionTreeClassifier) impurity(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	if dt.criterion == "entropy" {
		e := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				e -= p * math.Log2(p)
			}
		}
		return e
	}
	// Gini
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

func (dt *DecisionTreeClassifier) normalizeImportances() {
	sum := 0.0
	for _, imp := range dt.importances {
		sum += imp
	}
	for i := range dt.importances {
		dt.importances[i] = errors.SafeDivide(dt.importances[i], sum)
	}
}

// Predict returns an n×1 matrix of predicted class labels.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}
	rows, cols := X.Dims()
	if cols != dt.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Predict", dt.nFeatures_, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		counts := dt.traverse(X, i)
		best := 0
		for j := 1; j < len(counts); j++ {
			if counts[j] > counts[best] {
				best = j
			}
		}
		out.Set(i, 0, dt.classes_[best])
	}
	return out, nil
}

// PredictProba returns an n×nClasses matrix of class probabilities
// derived from leaf class frequencies.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != dt.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.nFeatures_, cols, 1)
	}

	out := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		counts := dt.traverse(X, i)
		total := 0.0
		for _, c := range counts {
			total += c
		}
		for j, c := range counts {
			if total > 0 {
				out.Set(i, j, c/total)
			}
		}
	}
	return out, nil
}

// traverse walks row i of X down to its leaf and returns the leaf counts.
func (dt *DecisionTreeClassifier) traverse(X mat.Matrix, i int) []float64 {
	n := dt.root
	for !n.Leaf {
		if X.At(i, n.Feature) <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Counts
}

// Score returns the accuracy on the given data. Prediction failures
// score zero.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// GetFeatureImportances returns normalized impurity-decrease importances.
// The slice sums to 1 when any split was made.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(dt.importances))
	copy(out, dt.importances)
	return out
}

// Classes returns the sorted class labels seen during fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	out := make([]float64, len(dt.classes_))
	copy(out, dt.classes_)
	return out
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetDepth returns the depth of the grown tree. A root-only tree has
// depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return nodeDepth(dt.root)
}

func nodeDepth(n *node) int {
	if n == nil || n.Leaf {
		return 0
	}
	l, r := nodeDepth(n.Left), nodeDepth(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// GetNLeaves returns the number of leaf nodes.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.root)
}

func countLeaves(n *node) int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	return countLeaves(n.Left) + countLeaves(n.Right)
}

// GetParams returns hyperparameters in sklearn naming.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters from a sklearn-style map. Unknown
// keys are rejected.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "criterion must be a string")
			}
			dt.criterion = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "max_depth must be an int")
			}
			dt.maxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "min_samples_split must be an int")
			}
			dt.minSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "min_samples_leaf must be an int")
			}
			dt.minSamplesLeaf = v
		case "max_features":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "max_features must be an int")
			}
			dt.maxFeatures = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "random_state must be an int")
			}
			dt.randomState = int64(v)
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}

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
