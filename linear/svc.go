package linear

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// LinearSVC is a linear support vector classifier trained with the
// Pegasos stochastic sub-gradient method over the hinge loss. It handles
// binary problems; probability estimates are a sigmoid calibration of the
// decision margin.
type LinearSVC struct {
	state *model.StateManager

	c            float64
	fitIntercept bool
	maxIter      int
	tol          float64
	shuffle      bool
	randomState  int64

	coef_      []float64
	intercept_ float64
	classes_   []int
	nFeatures_ int
	nIter_     int

	rng *rand.Rand
}

// SVCOption is a functional option for LinearSVC.
type SVCOption func(*LinearSVC)

// NewLinearSVC creates a classifier with defaults C=1.0,
// fit_intercept=true, max_iter=1000, tol=1e-4.
func NewLinearSVC(opts ...SVCOption) *LinearSVC {
	svc := &LinearSVC{
		state:        model.NewStateManager(),
		c:            1.0,
		fitIntercept: true,
		maxIter:      1000,
		tol:          1e-4,
		shuffle:      true,
		randomState:  -1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithSVCC sets the regularization parameter C.
func WithSVCC(c float64) SVCOption {
	return func(svc *LinearSVC) {
		svc.c = c
	}
}

// WithSVCMaxIter sets the maximum number of epochs.
func WithSVCMaxIter(maxIter int) SVCOption {
	return func(svc *LinearSVC) {
		svc.maxIter = maxIter
	}
}

// WithSVCTol sets the stopping tolerance on the epoch loss change.
func WithSVCTol(tol float64) SVCOption {
	return func(svc *LinearSVC) {
		svc.tol = tol
	}
}

// WithSVCFitIntercept sets whether to fit an intercept term.
func WithSVCFitIntercept(fit bool) SVCOption {
	return func(svc *LinearSVC) {
		svc.fitIntercept = fit
	}
}

// WithSVCRandomState seeds the sample shuffling for reproducible fits.
func WithSVCRandomState(seed int64) SVCOption {
	return func(svc *LinearSVC) {
		svc.randomState = seed
	}
}

// Fit trains the classifier. y must be an n×1 matrix holding exactly two
// distinct integer labels.
func (svc *LinearSVC) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError("LinearSVC.Fit", "nil input")
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LinearSVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LinearSVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LinearSVC.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("LinearSVC.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	classMap := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	if len(classMap) != 2 {
		return errors.NewValueError("LinearSVC.Fit", "LinearSVC requires exactly 2 classes")
	}
	svc.classes_ = make([]int, 0, 2)
	for class := range classMap {
		svc.classes_ = append(svc.classes_, class)
	}
	sort.Ints(svc.classes_)

	// Signed targets: classes_[1] is +1.
	signs := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		if int(y.At(i, 0)) == svc.classes_[1] {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}

	if svc.randomState >= 0 {
		svc.rng = rand.New(rand.NewSource(svc.randomState))
	} else {
		svc.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	svc.nFeatures_ = nFeatures
	svc.coef_ = make([]float64, nFeatures)
	svc.intercept_ = 0

	// Pegasos: lambda couples the regularizer to C and the sample count.
	lambda := 1.0 / (svc.c * float64(nSamples))
	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	t := 0
	prevLoss := math.Inf(1)
	converged := false
	for epoch := 0; epoch < svc.maxIter; epoch++ {
		if svc.shuffle {
			svc.rng.Shuffle(nSamples, func(a, b int) {
				indices[a], indices[b] = indices[b], indices[a]
			})
		}

		for _, i := range indices {
			t++
			eta := 1.0 / (lambda * float64(t))

			margin := svc.intercept_
			for j := 0; j < nFeatures; j++ {
				margin += X.At(i, j) * svc.coef_[j]
			}
			margin *= signs[i]

			decay := 1.0 - eta*lambda
			if margin < 1 {
				for j := 0; j < nFeatures; j++ {
					svc.coef_[j] = decay*svc.coef_[j] + eta*signs[i]*X.At(i, j)
				}
				if svc.fitIntercept {
					svc.intercept_ += eta * signs[i]
				}
			} else {
				for j := 0; j < nFeatures; j++ {
					svc.coef_[j] *= decay
				}
			}
		}

		svc.nIter_ = epoch + 1

		loss := svc.hingeLoss(X, signs, lambda)
		if math.Abs(prevLoss-loss) < svc.tol {
			converged = true
			break
		}
		prevLoss = loss
	}

	// A tolerance break on the final epoch still counts as converged.
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LinearSVC", svc.maxIter, "hinge loss still changing above tolerance"))
	}

	if err := errors.CheckNumericalStability("LinearSVC.Fit", svc.coef_, svc.nIter_); err != nil {
		return err
	}

	svc.state.SetFitted()
	svc.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// hingeLoss computes the regularized mean hinge loss over the data.
func (svc *LinearSVC) hingeLoss(X mat.Matrix, signs []float64, lambda float64) float64 {
	nSamples := len(signs)
	loss := 0.0
	for i := 0; i < nSamples; i++ {
		margin := svc.intercept_
		for j := 0; j < svc.nFeatures_; j++ {
			margin += X.At(i, j) * svc.coef_[j]
		}
		if h := 1 - signs[i]*margin; h > 0 {
			loss += h
		}
	}
	loss /= float64(nSamples)

	reg := 0.0
	for _, w := range svc.coef_ {
		reg += w * w
	}
	return loss + lambda/2*reg
}

// DecisionFunction returns the signed distance of each sample to the
// separating hyperplane.
func (svc *LinearSVC) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if !svc.state.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "DecisionFunction")
	}
	nSamples, cols := X.Dims()
	if cols != svc.nFeatures_ {
		return nil, errors.NewDimensionError("LinearSVC.DecisionFunction", svc.nFeatures_, cols, 1)
	}

	out := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		z := svc.intercept_
		for j := 0; j < svc.nFeatures_; j++ {
			z += X.At(i, j) * svc.coef_[j]
		}
		out.SetVec(i, z)
	}
	return out, nil
}

// Predict returns an n×1 matrix of predicted class labels.
func (svc *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := svc.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(scores.Len(), 1, nil)
	for i := 0; i < scores.Len(); i++ {
		if scores.AtVec(i) >= 0 {
			out.Set(i, 0, float64(svc.classes_[1]))
		} else {
			out.Set(i, 0, float64(svc.classes_[0]))
		}
	}
	return out, nil
}

// PredictProba returns sigmoid-calibrated probabilities from the decision
// margin. Columns follow Classes() order.
func (svc *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := svc.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(scores.Len(), 2, nil)
	for i := 0; i < scores.Len(); i++ {
		p := sigmoid(scores.AtVec(i))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (svc *LinearSVC) Score(X, y mat.Matrix) float64 {
	predictions, err := svc.Predict(X)
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
func (svc *LinearSVC) Classes() []int {
	out := make([]int, len(svc.classes_))
	copy(out, svc.classes_)
	return out
}

// Coef returns the fitted weight vector.
func (svc *LinearSVC) Coef() []float64 {
	out := make([]float64, len(svc.coef_))
	copy(out, svc.coef_)
	return out
}

// Intercept returns the fitted intercept term.
func (svc *LinearSVC) Intercept() float64 {
	return svc.intercept_
}

// NIter returns the number of epochs the last fit ran.
func (svc *LinearSVC) NIter() int {
	return svc.nIter_
}

// IsFitted reports whether Fit has completed.
func (svc *LinearSVC) IsFitted() bool {
	return svc.state.IsFitted()
}

// GetParams returns hyperparameters in sklearn naming.
func (svc *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             svc.c,
		"fit_intercept": svc.fitIntercept,
		"max_iter":      svc.maxIter,
		"tol":           svc.tol,
		"random_state":  svc.randomState,
	}
}

// SetParams updates hyperparameters from a sklearn-style map.
func (svc *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "C must be a float")
			}
			svc.c = v
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "fit_intercept must be a bool")
			}
			svc.fitIntercept = v
		case "max_iter":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "max_iter must be an int")
			}
			svc.maxIter = int(v)
		case "tol":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "tol must be a float")
			}
			svc.tol = v
		case "random_state":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "random_state must be an int")
			}
			svc.randomState = int64(v)
		default:
			return errors.NewValueError("LinearSVC.SetParams", "unknown parameter "+key)
		}
	}
	return nil
}
