package ensemble

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/core/parallel"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
	"github.com/mathiasfls/attrition/tree"
)

// RandomForestClassifier bags decision trees grown on bootstrap samples
// with per-split feature subsampling. Trees are fit in parallel and
// predictions average the per-tree class probabilities.
type RandomForestClassifier struct {
	model.BaseEstimator

	// Hyperparameters
	NEstimators     int    // Number of trees
	Criterion       string // Split quality measure, "gini" or "entropy"
	MaxDepth        int    // Maximum tree depth, negative means unlimited
	MinSamplesSplit int    // Minimum samples to split an internal node
	MinSamplesLeaf  int    // Minimum samples at a leaf
	MaxFeatures     string // Features per split: "sqrt", "log2" or "all"
	Bootstrap       bool   // Sample rows with replacement per tree
	RandomState     int    // Base seed; tree i uses RandomState+i

	// Fitted state
	trees_     []*tree.DecisionTreeClassifier
	classes_   []float64
	nFeatures_ int
}

// NewRandomForestClassifier creates a forest with sklearn-like defaults.
func NewRandomForestClassifier() *RandomForestClassifier {
	return &RandomForestClassifier{
		NEstimators:     100,
		Criterion:       "gini",
		MaxDepth:        -1,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestClassifier) WithNEstimators(n int) *RandomForestClassifier {
	rf.NEstimators = n
	return rf
}

// WithCriterion sets the split quality measure.
func (rf *RandomForestClassifier) WithCriterion(criterion string) *RandomForestClassifier {
	rf.Criterion = criterion
	return rf
}

// WithMaxDepth sets the maximum tree depth.
func (rf *RandomForestClassifier) WithMaxDepth(d int) *RandomForestClassifier {
	rf.MaxDepth = d
	return rf
}

// WithMinSamplesSplit sets the minimum samples to split a node.
func (rf *RandomForestClassifier) WithMinSamplesSplit(n int) *RandomForestClassifier {
	rf.MinSamplesSplit = n
	return rf
}

// WithMinSamplesLeaf sets the minimum samples per leaf.
func (rf *RandomForestClassifier) WithMinSamplesLeaf(n int) *RandomForestClassifier {
	rf.MinSamplesLeaf = n
	return rf
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2" or
// "all".
func (rf *RandomForestClassifier) WithMaxFeatures(mode string) *RandomForestClassifier {
	rf.MaxFeatures = mode
	return rf
}

// WithBootstrap toggles bootstrap row sampling.
func (rf *RandomForestClassifier) WithBootstrap(b bool) *RandomForestClassifier {
	rf.Bootstrap = b
	return rf
}

// WithRandomState sets the base random seed.
func (rf *RandomForestClassifier) WithRandomState(seed int) *RandomForestClassifier {
	rf.RandomState = seed
	return rf
}

// resolveMaxFeatures maps the feature budget mode to a count.
func (rf *RandomForestClassifier) resolveMaxFeatures(cols int) (int, error) {
	switch rf.MaxFeatures {
	case "sqrt", "":
		k := int(math.Sqrt(float64(cols)))
		if k < 1 {
			k = 1
		}
		return k, nil
	case "log2":
		k := int(math.Log2(float64(cols)))
		if k < 1 {
			k = 1
		}
		return k, nil
	case "all":
		return cols, nil
	default:
		return 0, errors.NewValueError("RandomForestClassifier", "max_features must be sqrt, log2 or all")
	}
}

// Fit grows the forest. Trees are trained concurrently, each on its own
// bootstrap sample with a deterministic per-tree seed.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if X == nil || y == nil {
		return errors.NewValueError("RandomForestClassifier.Fit", "nil input")
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}
	if rf.NEstimators < 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", "n_estimators must be positive")
	}

	maxFeatures, err := rf.resolveMaxFeatures(cols)
	if err != nil {
		return err
	}

	classSet := make(map[float64]bool)
	for i := 0; i < rows; i++ {
		classSet[y.At(i, 0)] = true
	}
	classes := make([]float64, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Float64s(classes)
	rf.classes_ = classes
	rf.nFeatures_ = cols

	logger := log.GetLoggerWithName("ensemble.forest")
	logger.Debug("growing forest",
		"trees", rf.NEstimators,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"max_features", maxFeatures)

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	treeErrs := make([]error, rf.NEstimators)

	parallel.Parallelize(rf.NEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			seed := int64(rf.RandomState + t)

			trainX, trainY := X, y
			if rf.Bootstrap {
				trainX, trainY = bootstrapSample(X, y, rows, cols, seed)
			}

			clf := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.Criterion),
				tree.WithMaxDepth(rf.MaxDepth),
				tree.WithMinSamplesSplit(rf.MinSamplesSplit),
				tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(seed),
			)
			if err := clf.Fit(trainX, trainY); err != nil {
				treeErrs[t] = errors.Wrapf(err, "tree %d failed", t)
				return
			}
			trees[t] = clf
		}
	})

	for _, err := range treeErrs {
		if err != nil {
			return err
		}
	}
	rf.trees_ = trees
	rf.SetFitted()
	return nil
}

// bootstrapSample draws rows with replacement.
func bootstrapSample(X, y mat.Matrix, rows, cols int, seed int64) (mat.Matrix, mat.Matrix) {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 - reproducible resampling, not cryptography
	sampleX := mat.NewDense(rows, cols, nil)
	sampleY := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		src := rng.Intn(rows)
		for j := 0; j < cols; j++ {
			sampleX.Set(i, j, X.At(src, j))
		}
		sampleY.Set(i, 0, y.At(src, 0))
	}
	return sampleX, sampleY
}

// Predict returns the class with the highest average probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, nClasses := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, rf.classes_[best])
	}
	return out, nil
}

// PredictProba averages the per-tree class probabilities. Trees grown on
// bootstrap samples can miss rare classes, so their outputs are aligned
// to the forest's class list before averaging.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != rf.nFeatures_ {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.nFeatures_, cols, 1)
	}

	classIndex := make(map[float64]int, len(rf.classes_))
	for i, c := range rf.classes_ {
		classIndex[c] = i
	}

	out := mat.NewDense(rows, len(rf.classes_), nil)
	for _, clf := range rf.trees_ {
		proba, err := clf.PredictProba(X)
		if err != nil {
			return nil, err
		}
		treeClasses := clf.Classes()
		for i := 0; i < rows; i++ {
			for c, label := range treeClasses {
				col := classIndex[label]
				out.Set(i, col, out.At(i, col)+proba.At(i, c))
			}
		}
	}

	scale := 1.0 / float64(len(rf.trees_))
	for i := 0; i < rows; i++ {
		for c := 0; c < len(rf.classes_); c++ {
			out.Set(i, c, out.At(i, c)*scale)
		}
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []float64 {
	out := make([]float64, len(rf.classes_))
	copy(out, rf.classes_)
	return out
}

// NTrees returns the number of fitted trees.
func (rf *RandomForestClassifier) NTrees() int {
	return len(rf.trees_)
}

// GetFeatureImportances averages the per-tree impurity-decrease
// importances and normalizes the result to sum to 1.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, rf.nFeatures_)
	if len(rf.trees_) == 0 {
		return out
	}
	for _, clf := range rf.trees_ {
		for j, v := range clf.GetFeatureImportances() {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	for j := range out {
		out[j] = errors.SafeDivide(out[j], total)
	}
	return out
}

// GetParams returns hyperparameters in sklearn naming.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
	}
}

// SetParams updates hyperparameters from a sklearn-style map.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "n_estimators must be an int")
			}
			rf.NEstimators = v
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "criterion must be a string")
			}
			rf.Criterion = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "max_depth must be an int")
			}
			rf.MaxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "min_samples_split must be an int")
			}
			rf.MinSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "min_samples_leaf must be an int")
			}
			rf.MinSamplesLeaf = v
		case "max_features":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "max_features must be a string")
			}
			rf.MaxFeatures = v
		case "bootstrap":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "bootstrap must be a bool")
			}
			rf.Bootstrap = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "random_state must be an int")
			}
			rf.RandomState = v
		default:
			return errors.NewValueError("RandomForestClassifier.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}
