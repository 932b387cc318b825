package resample

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// RandomUnderSampler trims the majority class down to a multiple of the
// minority count. Minority rows are always kept and the sampler never
// duplicates anything.
type RandomUnderSampler struct {
	// Ratio is the target majority size as a multiple of the minority
	// count. 1.0 gives balanced classes.
	Ratio float64

	// RandomState seeds the majority sample.
	RandomState int64
}

// NewRandomUnderSampler returns a sampler targeting balanced classes.
func NewRandomUnderSampler() *RandomUnderSampler {
	return &RandomUnderSampler{Ratio: 1.0, RandomState: 42}
}

// WithRatio sets the target majority to minority ratio.
func (u *RandomUnderSampler) WithRatio(ratio float64) *RandomUnderSampler {
	u.Ratio = ratio
	return u
}

// WithRandomState seeds the sampler.
func (u *RandomUnderSampler) WithRandomState(seed int64) *RandomUnderSampler {
	u.RandomState = seed
	return u
}

// FitResample returns (X, y) with the majority class sampled down. Row
// order of the input is preserved. When the target exceeds the majority
// pool the data is returned unchanged apart from copying.
func (u *RandomUnderSampler) FitResample(X, y mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	if X == nil || y == nil {
		return nil, nil, errors.NewValueError("RandomUnderSampler.FitResample", "X and y must not be nil")
	}
	if u.Ratio <= 0 {
		return nil, nil, errors.NewValueError("RandomUnderSampler.FitResample", "ratio must be positive")
	}

	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if yRows != rows {
		return nil, nil, errors.NewDimensionError("RandomUnderSampler.FitResample", rows, yRows, 0)
	}

	_, _, minIdx, majIdx, err := splitBinary(y, "RandomUnderSampler.FitResample")
	if err != nil {
		return nil, nil, err
	}

	target := int(u.Ratio * float64(len(minIdx)))
	kept := make([]int, 0, len(minIdx)+target)
	kept = append(kept, minIdx...)
	if target >= len(majIdx) {
		kept = append(kept, majIdx...)
	} else {
		rng := rand.New(rand.NewSource(u.RandomState)) // #nosec G404 - reproducible resampling, not cryptography
		for _, p := range rng.Perm(len(majIdx))[:target] {
			kept = append(kept, majIdx[p])
		}
	}
	sort.Ints(kept)

	outX := mat.NewDense(len(kept), cols, nil)
	outY := mat.NewDense(len(kept), 1, nil)
	for row, idx := range kept {
		for j := 0; j < cols; j++ {
			outX.Set(row, j, X.At(idx, j))
		}
		outY.Set(row, 0, y.At(idx, 0))
	}

	log.GetLoggerWithName("resample").Debug("undersampled majority class",
		"minority", len(minIdx),
		"majority_before", len(majIdx),
		"majority_after", len(kept)-len(minIdx),
	)
	return outX, outY, nil
}
