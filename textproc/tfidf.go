package textproc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// TfidfVectorizer weights term counts by smoothed inverse document
// frequency, ln((1+n)/(1+df)) + 1, and optionally L2-normalizes each
// row. The IDF vector is frozen at Fit together with the vocabulary.
type TfidfVectorizer struct {
	*CountVectorizer

	// Norm enables L2 normalization of each output row.
	Norm bool

	idf_ []float64
}

// NewTfidfVectorizer returns a tf-idf vectorizer with L2 normalization
// enabled.
func NewTfidfVectorizer() *TfidfVectorizer {
	return &TfidfVectorizer{CountVectorizer: NewCountVectorizer(), Norm: true}
}

// WithNorm toggles L2 row normalization.
func (tv *TfidfVectorizer) WithNorm(norm bool) *TfidfVectorizer {
	tv.Norm = norm
	return tv
}

// Fit builds the vocabulary and the IDF vector from the training corpus.
func (tv *TfidfVectorizer) Fit(docs []string) error {
	if err := tv.CountVectorizer.Fit(docs); err != nil {
		return err
	}

	n := float64(tv.nDocs_)
	tv.idf_ = make([]float64, len(tv.docFreq_))
	for j, df := range tv.docFreq_ {
		tv.idf_[j] = math.Log((1+n)/(1+float64(df))) + 1
	}
	return nil
}

// Transform produces tf-idf rows for the documents. Rows without any
// vocabulary term stay all zero.
func (tv *TfidfVectorizer) Transform(docs []string) (*mat.Dense, error) {
	counts, err := tv.CountVectorizer.Transform(docs)
	if err != nil {
		return nil, err
	}

	rows, cols := counts.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			counts.Set(i, j, counts.At(i, j)*tv.idf_[j])
		}
		if !tv.Norm {
			continue
		}
		ss := 0.0
		for j := 0; j < cols; j++ {
			v := counts.At(i, j)
			ss += v * v
		}
		if ss == 0 {
			continue
		}
		norm := math.Sqrt(ss)
		for j := 0; j < cols; j++ {
			counts.Set(i, j, counts.At(i, j)/norm)
		}
	}
	return counts, nil
}

// FitTransform fits on the corpus and transforms it.
func (tv *TfidfVectorizer) FitTransform(docs []string) (*mat.Dense, error) {
	if err := tv.Fit(docs); err != nil {
		return nil, err
	}
	return tv.Transform(docs)
}

// IDF returns the fitted inverse document frequency per column.
func (tv *TfidfVectorizer) IDF() []float64 {
	out := make([]float64, len(tv.idf_))
	copy(out, tv.idf_)
	return out
}
