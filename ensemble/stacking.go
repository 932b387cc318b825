package ensemble

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/linear"
	"github.com/mathiasfls/attrition/model_selection"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// BaseModel is the contract stacking requires of its level-0 and meta
// models.
type BaseModel interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaModel produces class probabilities; column 1 of a two-column
// output is the positive class.
type ProbaModel interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// DecisionModel produces raw margin scores, squashed through a sigmoid
// when used as meta features.
type DecisionModel interface {
	DecisionFunction(X mat.Matrix) (*mat.VecDense, error)
}

// StackingClassifier combines heterogeneous binary classifiers by
// training a meta-model on their out-of-fold predictions. The meta-model
// never sees predictions made on a base model's own training rows.
type StackingClassifier struct {
	model.BaseEstimator

	// Bases build fresh level-0 models; one fresh instance is fit per
	// cross-validation fold and once more on the full training set.
	Bases []func() BaseModel
	// Meta builds the level-1 model. Defaults to logistic regression.
	Meta func() BaseModel
	// CVFolds is the number of stratified folds used to produce
	// out-of-fold meta features.
	CVFolds     int
	RandomState int

	// Fitted state
	bases_     []BaseModel
	meta_      BaseModel
	classes_   []float64
	nFeatures_ int
}

// NewStackingClassifier creates a stacking ensemble over the given base
// model factories.
func NewStackingClassifier(bases ...func() BaseModel) *StackingClassifier {
	return &StackingClassifier{
		Bases:       bases,
		CVFolds:     5,
		RandomState: 42,
	}
}

// WithMeta sets the meta-model factory.
func (sc *StackingClassifier) WithMeta(meta func() BaseModel) *StackingClassifier {
	sc.Meta = meta
	return sc
}

// WithCVFolds sets the number of out-of-fold splits.
func (sc *StackingClassifier) WithCVFolds(k int) *StackingClassifier {
	sc.CVFolds = k
	return sc
}

// WithRandomState sets the fold-shuffling seed.
func (sc *StackingClassifier) WithRandomState(seed int) *StackingClassifier {
	sc.RandomState = seed
	return sc
}

// Fit builds out-of-fold meta features, trains the meta-model on them,
// then refits every base on the full training set.
func (sc *StackingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "StackingClassifier.Fit")

	if len(sc.Bases) == 0 {
		return errors.NewValueError("StackingClassifier.Fit", "at least one base model is required")
	}
	if X == nil || y == nil {
		return errors.NewValueError("StackingClassifier.Fit", "nil input")
	}
	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("StackingClassifier.Fit", rows, yRows, 0)
	}

	classSet := make(map[float64]bool)
	for i := 0; i < rows; i++ {
		classSet[y.At(i, 0)] = true
	}
	if len(classSet) != 2 {
		return errors.NewValueError("StackingClassifier.Fit", "binary classification requires exactly 2 classes")
	}
	classes := make([]float64, 0, 2)
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Float64s(classes)
	sc.classes_ = classes
	sc.nFeatures_ = cols

	// 0/1 labels for the base fits and the meta-model.
	y01 := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if y.At(i, 0) == classes[1] {
			y01.Set(i, 0, 1.0)
		}
	}

	logger := log.GetLoggerWithName("ensemble.stacking")
	logger.Debug("building out-of-fold meta features",
		"bases", len(sc.Bases),
		"folds", sc.CVFolds,
		log.SamplesKey, rows)

	skf := model_selection.NewStratifiedKFold(sc.CVFolds, true, sc.RandomState)
	folds := skf.Split(X, y01)

	metaX := mat.NewDense(rows, len(sc.Bases), nil)
	var wg sync.WaitGroup
	foldErrs := make([]error, len(folds))

	for foldIdx := range folds {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			fold := folds[idx]
			trainX, trainY := model_selection.Subset(X, y01, fold.TrainIndices)

			testIndices := make([]int, len(fold.TestIndices))
			copy(testIndices, fold.TestIndices)
			sort.Ints(testIndices)
			testX := takeRows(X, testIndices)

			for b, factory := range sc.Bases {
				clf := factory()
				if err := clf.Fit(trainX, trainY); err != nil {
					foldErrs[idx] = errors.Wrapf(err, "fold %d base %d training failed", idx, b)
					return
				}
				scores, err := baseScores(clf, testX)
				if err != nil {
					foldErrs[idx] = errors.Wrapf(err, "fold %d base %d scoring failed", idx, b)
					return
				}
				// Folds own disjoint row sets, so concurrent writes
				// never collide.
				for k, row := range testIndices {
					metaX.Set(row, b, scores.AtVec(k))
				}
			}
		}(foldIdx)
	}
	wg.Wait()

	for _, err := range foldErrs {
		if err != nil {
			return err
		}
	}

	meta := sc.Meta
	if meta == nil {
		seed := int64(sc.RandomState)
		meta = func() BaseModel {
			return linear.NewLogisticRegression(linear.WithLRRandomState(seed))
		}
	}
	sc.meta_ = meta()
	if err := sc.meta_.Fit(metaX, y01); err != nil {
		return errors.Wrap(err, "meta-model training failed")
	}

	// Refit every base on the full training set for prediction time.
	sc.bases_ = make([]BaseModel, len(sc.Bases))
	for b, factory := range sc.Bases {
		clf := factory()
		if err := clf.Fit(X, y01); err != nil {
			return errors.Wrapf(err, "base %d full refit failed", b)
		}
		sc.bases_[b] = clf
	}

	sc.SetFitted()
	return nil
}

// metaFeatures runs every refitted base over X.
func (sc *StackingClassifier) metaFeatures(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != sc.nFeatures_ {
		return nil, errors.NewDimensionError("StackingClassifier", sc.nFeatures_, cols, 1)
	}
	features := mat.NewDense(rows, len(sc.bases_), nil)
	for b, clf := range sc.bases_ {
		scores, err := baseScores(clf, X)
		if err != nil {
			return nil, errors.Wrapf(err, "base %d scoring failed", b)
		}
		for i := 0; i < rows; i++ {
			features.Set(i, b, scores.AtVec(i))
		}
	}
	return features, nil
}

// Predict chains the refitted bases into the meta-model.
func (sc *StackingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !sc.IsFitted() {
		return nil, errors.NewNotFittedError("StackingClassifier", "Predict")
	}
	features, err := sc.metaFeatures(X)
	if err != nil {
		return nil, err
	}
	pred, err := sc.meta_.Predict(features)
	if err != nil {
		return nil, err
	}
	rows, _ := pred.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == 1.0 {
			out.Set(i, 0, sc.classes_[1])
		} else {
			out.Set(i, 0, sc.classes_[0])
		}
	}
	return out, nil
}

// PredictProba chains the refitted bases into the meta-model's
// probability output.
func (sc *StackingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !sc.IsFitted() {
		return nil, errors.NewNotFittedError("StackingClassifier", "PredictProba")
	}
	probaMeta, ok := sc.meta_.(ProbaModel)
	if !ok {
		return nil, errors.NewValueError("StackingClassifier.PredictProba", "meta-model does not support probability predictions")
	}
	features, err := sc.metaFeatures(X)
	if err != nil {
		return nil, err
	}
	return probaMeta.PredictProba(features)
}

// Score returns the mean accuracy on the given test data and labels.
func (sc *StackingClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := sc.Predict(X)
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
func (sc *StackingClassifier) Classes() []float64 {
	out := make([]float64, len(sc.classes_))
	copy(out, sc.classes_)
	return out
}

// baseScores turns one base model's output into a meta-feature column:
// positive-class probability when available, otherwise sigmoid-squashed
// decision values.
func baseScores(clf BaseModel, X mat.Matrix) (*mat.VecDense, error) {
	rows, _ := X.Dims()

	if probaClf, ok := clf.(ProbaModel); ok {
		proba, err := probaClf.PredictProba(X)
		if err != nil {
			return nil, err
		}
		_, cols := proba.Dims()
		v := mat.NewVecDense(rows, nil)
		switch cols {
		case 1:
			for i := 0; i < rows; i++ {
				v.SetVec(i, proba.At(i, 0))
			}
		case 2:
			for i := 0; i < rows; i++ {
				v.SetVec(i, proba.At(i, 1))
			}
		default:
			return nil, errors.NewValueError("StackingClassifier", "base probability matrix must have 1 or 2 columns")
		}
		return v, nil
	}

	if decisionClf, ok := clf.(DecisionModel); ok {
		scores, err := decisionClf.DecisionFunction(X)
		if err != nil {
			return nil, err
		}
		v := mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			v.SetVec(i, sigmoid(scores.AtVec(i)))
		}
		return v, nil
	}

	return nil, errors.NewValueError("StackingClassifier", "base model must provide PredictProba or DecisionFunction")
}

// takeRows extracts the given rows of X in order.
func takeRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}
