// Package model_selection provides data splitting, cross-validation and
// hyperparameter search utilities for the attrition classifiers.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// Fold holds the row indices of one train/test split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) []Fold
	GetNSplits() int
}

// KFold splits samples into k consecutive folds, optionally shuffled.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a k-fold splitter. Fewer than 2 splits falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[current:current+testSize])

		trainIndices := make([]int, 0, nSamples-testSize)
		trainIndices = append(trainIndices, indices[:current]...)
		trainIndices = append(trainIndices, indices[current+testSize:]...)

		folds[i] = Fold{
			TrainIndices: trainIndices,
			TestIndices:  testIndices,
		}
		current += testSize
	}
	return folds
}

// StratifiedKFold splits samples so each fold preserves the class ratio
// of y.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	classIndices := make(map[float64][]int)
	labels := make([]float64, 0)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		if _, seen := classIndices[label]; !seen {
			labels = append(labels, label)
		}
		classIndices[label] = append(classIndices[label], i)
	}
	// Iterate classes in a fixed order so folds are reproducible.
	sort.Float64s(labels)

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
		for _, label := range labels {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	folds := make([]Fold, skf.NSplits)
	for _, label := range labels {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		current := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			for j := 0; j < testSize && current < nClass; j++ {
				folds[i].TestIndices = append(folds[i].TestIndices, indices[current])
				current++
			}
		}
	}

	for i := 0; i < skf.NSplits; i++ {
		testSet := make(map[int]bool, len(folds[i].TestIndices))
		for _, idx := range folds[i].TestIndices {
			testSet[idx] = true
		}
		for j := 0; j < nSamples; j++ {
			if !testSet[j] {
				folds[i].TrainIndices = append(folds[i].TrainIndices, j)
			}
		}
	}
	return folds
}

// splitOptions configures TrainTestSplit.
type splitOptions struct {
	seed     int
	stratify bool
}

// SplitOption is a functional option for TrainTestSplit.
type SplitOption func(*splitOptions)

// WithSeed fixes the shuffling seed.
func WithSeed(seed int) SplitOption {
	return func(o *splitOptions) {
		o.seed = seed
	}
}

// WithStratify preserves the class ratio of y in both partitions.
func WithStratify() SplitOption {
	return func(o *splitOptions) {
		o.stratify = true
	}
}

// TrainTestSplit shuffles the samples and partitions them into a training
// and a test set. testFraction is the share of rows assigned to the test
// set, each class keeping at least one training row under stratification.
func TrainTestSplit(X, y mat.Matrix, testFraction float64, opts ...SplitOption) (trainIdx, testIdx []int, err error) {
	if X == nil || y == nil {
		return nil, nil, errors.NewValueError("TrainTestSplit", "nil input")
	}
	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, yRows, 0)
	}
	if nSamples < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "need at least 2 samples")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "testFraction must be in (0, 1)")
	}

	options := &splitOptions{seed: 42}
	for _, opt := range opts {
		opt(options)
	}
	r := rand.New(rand.NewPCG(uint64(options.seed), uint64(options.seed)))

	if !options.stratify {
		indices := make([]int, nSamples)
		for i := range indices {
			indices[i] = i
		}
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := int(float64(nSamples) * testFraction)
		if nTest < 1 {
			nTest = 1
		}
		if nTest >= nSamples {
			nTest = nSamples - 1
		}
		return indices[nTest:], indices[:nTest], nil
	}

	classIndices := make(map[float64][]int)
	labels := make([]float64, 0)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		if _, seen := classIndices[label]; !seen {
			labels = append(labels, label)
		}
		classIndices[label] = append(classIndices[label], i)
	}
	sort.Float64s(labels)

	for _, label := range labels {
		indices := classIndices[label]
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := int(float64(len(indices)) * testFraction)
		if nTest >= len(indices) {
			nTest = len(indices) - 1
		}
		testIdx = append(testIdx, indices[:nTest]...)
		trainIdx = append(trainIdx, indices[nTest:]...)
	}
	if len(testIdx) == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test fraction too small for stratified split")
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx, nil
}

// Subset extracts the rows of X and y named by indices, in sorted order.
func Subset(X, y mat.Matrix, indices []int) (mat.Matrix, mat.Matrix) {
	rows := len(indices)
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)

	xSubset := mat.NewDense(rows, xCols, nil)
	ySubset := mat.NewDense(rows, yCols, nil)
	for i, idx := range sorted {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}
