// Package resample rebalances binary training sets. SMOTE oversamples
// the minority class with synthetic neighbors and trims the majority
// class; RandomUnderSampler trims the majority class alone. Balancing
// belongs on the training split only, after the evaluation split has
// been carved off.
package resample

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/parallel"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// neighborParallelThreshold is the minority size below which neighbor
// search runs sequentially.
const neighborParallelThreshold = 64

// SMOTE generates synthetic minority rows by interpolating toward
// nearest minority neighbors, then samples the majority class down to a
// multiple of the synthetic count. Minority originals are always kept.
type SMOTE struct {
	// PercOver controls oversampling: each minority row yields
	// PercOver/100 synthetic rows. Must be at least 100.
	PercOver int

	// PercUnder controls undersampling: PercUnder/100 times the number
	// of synthetic rows are kept from the majority class. Drawn without
	// replacement while the majority pool lasts.
	PercUnder int

	// K is how many nearest minority neighbors interpolation can pick
	// from, capped at the available neighbor count.
	K int

	// RandomState seeds neighbor choice, interpolation and sampling.
	RandomState int64
}

// NewSMOTE returns a resampler oversampling threefold and keeping 1.5
// majority rows per synthetic row.
func NewSMOTE() *SMOTE {
	return &SMOTE{
		PercOver:    300,
		PercUnder:   150,
		K:           5,
		RandomState: 42,
	}
}

// WithPercOver sets the oversampling percentage.
func (s *SMOTE) WithPercOver(percOver int) *SMOTE {
	s.PercOver = percOver
	return s
}

// WithPercUnder sets the undersampling percentage.
func (s *SMOTE) WithPercUnder(percUnder int) *SMOTE {
	s.PercUnder = percUnder
	return s
}

// WithK sets the neighbor count.
func (s *SMOTE) WithK(k int) *SMOTE {
	s.K = k
	return s
}

// WithRandomState seeds the resampler.
func (s *SMOTE) WithRandomState(seed int64) *SMOTE {
	s.RandomState = seed
	return s
}

// FitResample returns a rebalanced copy of (X, y). Rows come out
// grouped: minority originals, then synthetic rows, then the sampled
// majority.
func (s *SMOTE) FitResample(X, y mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	if X == nil || y == nil {
		return nil, nil, errors.NewValueError("SMOTE.FitResample", "X and y must not be nil")
	}
	if s.PercOver < 100 {
		return nil, nil, errors.NewValueError("SMOTE.FitResample", "perc_over must be at least 100")
	}
	if s.PercUnder <= 0 {
		return nil, nil, errors.NewValueError("SMOTE.FitResample", "perc_under must be positive")
	}
	if s.K < 1 {
		return nil, nil, errors.NewValueError("SMOTE.FitResample", "k must be at least 1")
	}

	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if yRows != rows {
		return nil, nil, errors.NewDimensionError("SMOTE.FitResample", rows, yRows, 0)
	}

	minLabel, majLabel, minIdx, majIdx, err := splitBinary(y, "SMOTE.FitResample")
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(s.RandomState)) // #nosec G404 - reproducible resampling, not cryptography

	minority := extractRows(X, minIdx, cols)

	// Neighbor lists are independent per row; small minority sets are
	// not worth the goroutines. Interpolation stays sequential so a
	// fixed seed yields identical output.
	neighborLists := make([][]int, len(minority))
	parallel.ParallelizeWithThreshold(len(minority), neighborParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			neighborLists[i] = nearestNeighbors(minority, i, s.K)
		}
	})

	perRow := s.PercOver / 100
	synthetic := make([][]float64, 0, len(minority)*perRow)
	for i := range minority {
		for r := 0; r < perRow; r++ {
			synthetic = append(synthetic, interpolate(minority[i], minority, neighborLists[i], rng))
		}
	}

	// Majority kept per synthetic row; without replacement while the
	// pool allows it.
	need := int(float64(s.PercUnder) / 100.0 * float64(len(synthetic)))
	var kept []int
	if need <= len(majIdx) {
		perm := rng.Perm(len(majIdx))[:need]
		kept = make([]int, need)
		for i, p := range perm {
			kept[i] = majIdx[p]
		}
	} else {
		kept = make([]int, need)
		for i := range kept {
			kept[i] = majIdx[rng.Intn(len(majIdx))]
		}
	}
	sort.Ints(kept)

	total := len(minIdx) + len(synthetic) + len(kept)
	outX := mat.NewDense(total, cols, nil)
	outY := mat.NewDense(total, 1, nil)

	row := 0
	for _, values := range minority {
		outX.SetRow(row, values)
		outY.Set(row, 0, minLabel)
		row++
	}
	for _, values := range synthetic {
		outX.SetRow(row, values)
		outY.Set(row, 0, minLabel)
		row++
	}
	for _, idx := range kept {
		for j := 0; j < cols; j++ {
			outX.Set(row, j, X.At(idx, j))
		}
		outY.Set(row, 0, majLabel)
		row++
	}

	log.GetLoggerWithName("resample").Debug("rebalanced training set",
		"minority_before", len(minIdx),
		"majority_before", len(majIdx),
		"minority_after", len(minIdx)+len(synthetic),
		"majority_after", len(kept),
	)
	return outX, outY, nil
}

// splitBinary labels the two classes of y and collects their row
// indices. The class with fewer rows is the minority; ties go to the
// smaller label.
func splitBinary(y mat.Matrix, op string) (minLabel, majLabel float64, minIdx, majIdx []int, err error) {
	rows, _ := y.Dims()
	byLabel := make(map[float64][]int)
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		byLabel[v] = append(byLabel[v], i)
	}
	if len(byLabel) != 2 {
		return 0, 0, nil, nil, errors.NewValueError(op,
			"resampling requires exactly two classes")
	}

	labels := make([]float64, 0, 2)
	for v := range byLabel {
		labels = append(labels, v)
	}
	sort.Float64s(labels)

	minLabel, majLabel = labels[0], labels[1]
	if len(byLabel[majLabel]) < len(byLabel[minLabel]) {
		minLabel, majLabel = majLabel, minLabel
	}
	return minLabel, majLabel, byLabel[minLabel], byLabel[majLabel], nil
}

// extractRows copies the selected rows of X into a slice of vectors.
func extractRows(X mat.Matrix, indices []int, cols int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = X.At(idx, j)
		}
		out[i] = row
	}
	return out
}

// nearestNeighbors returns the indices of the up-to-k closest minority
// rows to row i, by Euclidean distance. A lone minority row has no
// neighbors.
func nearestNeighbors(minority [][]float64, i, k int) []int {
	type candidate struct {
		idx  int
		dist float64
	}
	cands := make([]candidate, 0, len(minority)-1)
	for j := range minority {
		if j == i {
			continue
		}
		d := 0.0
		for f := range minority[i] {
			diff := minority[i][f] - minority[j][f]
			d += diff * diff
		}
		cands = append(cands, candidate{idx: j, dist: math.Sqrt(d)})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		return cands[a].idx < cands[b].idx
	})

	if k > len(cands) {
		k = len(cands)
	}
	out := make([]int, k)
	for n := 0; n < k; n++ {
		out[n] = cands[n].idx
	}
	return out
}

// interpolate builds one synthetic row between base and a random
// neighbor. Without neighbors the base row is duplicated.
func interpolate(base []float64, minority [][]float64, neighbors []int, rng *rand.Rand) []float64 {
	out := make([]float64, len(base))
	if len(neighbors) == 0 {
		copy(out, base)
		return out
	}
	neighbor := minority[neighbors[rng.Intn(len(neighbors))]]
	u := rng.Float64()
	for f := range base {
		out[f] = base[f] + u*(neighbor[f]-base[f])
	}
	return out
}
