// Package bayes implements naive Bayes classifiers over count features.
//
// MultinomialNB is the text-classification workhorse: it consumes the
// term-count matrices produced by the textproc vectorizers and supports
// incremental updates through PartialFit.
package bayes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// zeroAlphaGuard replaces alpha when smoothing is disabled so that unseen
// features produce very small likelihoods instead of -Inf.
const zeroAlphaGuard = 1e-10

// MultinomialNB is a multinomial naive Bayes classifier with Laplace
// smoothing, compatible with scikit-learn's MultinomialNB.
type MultinomialNB struct {
	state *model.StateManager

	alpha    float64
	fitPrior bool

	classes_      []int
	classIndex    map[int]int
	classCount_   []float64
	featureCount_ [][]float64
	nFeatures_    int
	nSamplesSeen_ int
}

// NBOption is a functional option for MultinomialNB.
type NBOption func(*MultinomialNB)

// WithAlpha sets the additive smoothing parameter (default 1.0).
func WithAlpha(alpha float64) NBOption {
	return func(nb *MultinomialNB) {
		nb.alpha = alpha
	}
}

// WithFitPrior controls whether class priors are learned from data.
// When false, a uniform prior is used.
func WithFitPrior(fit bool) NBOption {
	return func(nb *MultinomialNB) {
		nb.fitPrior = fit
	}
}

// NewMultinomialNB creates a classifier with alpha=1.0 and learned priors.
func NewMultinomialNB(opts ...NBOption) *MultinomialNB {
	nb := &MultinomialNB{
		state:    model.NewStateManager(),
		alpha:    1.0,
		fitPrior: true,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit trains the model from scratch on count data. Negative feature
// values are invalid for multinomial models.
func (nb *MultinomialNB) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError("MultinomialNB.Fit", "nil input")
	}
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(classMap))
	for c := range classMap {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	nb.reset()
	return nb.PartialFit(X, y, classes)
}

func (nb *MultinomialNB) reset() {
	nb.state.Reset()
	nb.classes_ = nil
	nb.classIndex = nil
	nb.classCount_ = nil
	nb.featureCount_ = nil
	nb.nFeatures_ = 0
	nb.nSamplesSeen_ = 0
}

// PartialFit updates counts from a batch. The first call must name the
// full class list; later calls pass nil.
func (nb *MultinomialNB) PartialFit(X, y mat.Matrix, classes []int) error {
	if X == nil || y == nil {
		return errors.NewValueError("MultinomialNB.PartialFit", "nil input")
	}
	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("MultinomialNB.PartialFit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("MultinomialNB.PartialFit", rows, yRows, 0)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if X.At(i, j) < 0 {
				return errors.NewValueError("MultinomialNB.PartialFit", "negative values are not allowed for multinomial counts")
			}
		}
	}

	if nb.classes_ == nil {
		if len(classes) == 0 {
			return errors.NewValueError("MultinomialNB.PartialFit", "classes must be provided on the first call")
		}
		sorted := make([]int, len(classes))
		copy(sorted, classes)
		sort.Ints(sorted)
		nb.classes_ = sorted
		nb.classIndex = make(map[int]int, len(sorted))
		for i, c := range sorted {
			nb.classIndex[c] = i
		}
		nb.classCount_ = make([]float64, len(sorted))
		nb.featureCount_ = make([][]float64, len(sorted))
		for i := range nb.featureCount_ {
			nb.featureCount_[i] = make([]float64, cols)
		}
		nb.nFeatures_ = cols
	} else if cols != nb.nFeatures_ {
		return errors.NewDimensionError("MultinomialNB.PartialFit", nb.nFeatures_, cols, 1)
	}

	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		idx, ok := nb.classIndex[label]
		if !ok {
			return errors.NewValueError("MultinomialNB.PartialFit", "label outside declared classes")
		}
		nb.classCount_[idx]++
		for j := 0; j < cols; j++ {
			nb.featureCount_[idx][j] += X.At(i, j)
		}
	}
	nb.nSamplesSeen_ += rows

	nb.state.SetFitted()
	nb.state.SetDimensions(cols, nb.nSamplesSeen_)
	return nil
}

// jointLogLikelihood computes log P(c) + Σ_j x_j log θ_cj per class for
// each row of X.
func (nb *MultinomialNB) jointLogLikelihood(X mat.Matrix) (*mat.Dense, error) {
	if !nb.state.IsFitted() {
		return nil, errors.NewNotFittedError("MultinomialNB", "Predict")
	}
	rows, cols := X.Dims()
	if cols != nb.nFeatures_ {
		return nil, errors.NewDimensionError("MultinomialNB.Predict", nb.nFeatures_, cols, 1)
	}

	alpha := nb.alpha
	if alpha <= 0 {
		alpha = zeroAlphaGuard
	}

	nClasses := len(nb.classes_)
	logPrior := make([]float64, nClasses)
	total := 0.0
	for _, c := range nb.classCount_ {
		total += c
	}
	for idx := range logPrior {
		if nb.fitPrior {
			logPrior[idx] = math.Log(nb.classCount_[idx] / total)
		} else {
			logPrior[idx] = -math.Log(float64(nClasses))
		}
	}

	// Per-class log feature probabilities with additive smoothing.
	logProb := make([][]float64, nClasses)
	for idx := range logProb {
		classTotal := 0.0
		for _, c := range nb.featureCount_[idx] {
			classTotal += c
		}
		denom := math.Log(classTotal + alpha*float64(nb.nFeatures_))
		logProb[idx] = make([]float64, nb.nFeatures_)
		for j := 0; j < nb.nFeatures_; j++ {
			logProb[idx][j] = math.Log(nb.featureCount_[idx][j]+alpha) - denom
		}
	}

	out := mat.NewDense(rows, nClasses, nil)
	for i := 0; i < rows; i++ {
		for idx := 0; idx < nClasses; idx++ {
			ll := logPrior[idx]
			for j := 0; j < nb.nFeatures_; j++ {
				if v := X.At(i, j); v != 0 {
					ll += v * logProb[idx][j]
				}
			}
			out.Set(i, idx, ll)
		}
	}
	return out, nil
}

// Predict returns an n×1 matrix of predicted class labels.
func (nb *MultinomialNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	rows, nClasses := jll.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for idx := 1; idx < nClasses; idx++ {
			if jll.At(i, idx) > jll.At(i, best) {
				best = idx
			}
		}
		out.Set(i, 0, float64(nb.classes_[best]))
	}
	return out, nil
}

// PredictLogProba returns log-normalized class probabilities.
func (nb *MultinomialNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	rows, nClasses := jll.Dims()
	for i := 0; i < rows; i++ {
		// logsumexp normalization per row.
		maxLL := math.Inf(-1)
		for idx := 0; idx < nClasses; idx++ {
			if jll.At(i, idx) > maxLL {
				maxLL = jll.At(i, idx)
			}
		}
		sum := 0.0
		for idx := 0; idx < nClasses; idx++ {
			sum += math.Exp(jll.At(i, idx) - maxLL)
		}
		logSum := maxLL + math.Log(sum)
		for idx := 0; idx < nClasses; idx++ {
			jll.Set(i, idx, jll.At(i, idx)-logSum)
		}
	}
	return jll, nil
}

// PredictProba returns an n×nClasses matrix of class probabilities.
func (nb *MultinomialNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	rows, nClasses := logProba.Dims()
	out := mat.NewDense(rows, nClasses, nil)
	for i := 0; i < rows; i++ {
		for idx := 0; idx < nClasses; idx++ {
			out.Set(i, idx, math.Exp(logProba.At(i, idx)))
		}
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (nb *MultinomialNB) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	if rows == 0 {
		return 0, errors.NewValueError("MultinomialNB.Score", "empty labels")
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// Classes returns the sorted class labels declared at fit time.
func (nb *MultinomialNB) Classes() []int {
	out := make([]int, len(nb.classes_))
	copy(out, nb.classes_)
	return out
}

// NSamplesSeen returns the cumulative number of samples consumed.
func (nb *MultinomialNB) NSamplesSeen() int {
	return nb.nSamplesSeen_
}

// IsFitted reports whether any fitting call has completed.
func (nb *MultinomialNB) IsFitted() bool {
	return nb.state.IsFitted()
}

// GetParams returns hyperparameters in sklearn naming.
func (nb *MultinomialNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":     nb.alpha,
		"fit_prior": nb.fitPrior,
	}
}
