package textproc

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// CountVectorizer turns documents into term-count rows. The vocabulary
// is frozen when Fit sees the training corpus; tokens outside it are
// ignored at transform time.
type CountVectorizer struct {
	model.BaseEstimator

	// Tokenizer splits documents. Defaults to word-boundary splitting.
	Tokenizer Tokenizer

	// Normalizer cleans documents before tokenization. Nil skips cleaning.
	Normalizer *Normalizer

	// Stopwords are dropped after tokenization.
	Stopwords Stopwords

	// MinDF prunes rare terms: values below 1 are a fraction of the
	// corpus, values of 1 and above an absolute document count.
	MinDF float64

	// MaxFeatures caps the vocabulary at the most frequent terms.
	// Zero means no cap.
	MaxFeatures int

	vocabulary_   map[string]int
	featureNames_ []string
	docFreq_      []int
	nDocs_        int
}

// NewCountVectorizer returns a vectorizer with word tokenization, no
// stopwords and no pruning.
func NewCountVectorizer() *CountVectorizer {
	return &CountVectorizer{Tokenizer: NewWordTokenizer()}
}

// WithTokenizer sets the tokenizer.
func (cv *CountVectorizer) WithTokenizer(t Tokenizer) *CountVectorizer {
	cv.Tokenizer = t
	return cv
}

// WithNormalizer sets the text normalizer applied before tokenization.
func (cv *CountVectorizer) WithNormalizer(n *Normalizer) *CountVectorizer {
	cv.Normalizer = n
	return cv
}

// WithStopwords sets the stopword set.
func (cv *CountVectorizer) WithStopwords(s Stopwords) *CountVectorizer {
	cv.Stopwords = s
	return cv
}

// WithMinDF sets the document-frequency pruning threshold.
func (cv *CountVectorizer) WithMinDF(minDF float64) *CountVectorizer {
	cv.MinDF = minDF
	return cv
}

// WithMaxFeatures caps the vocabulary size.
func (cv *CountVectorizer) WithMaxFeatures(n int) *CountVectorizer {
	cv.MaxFeatures = n
	return cv
}

// Fit builds the vocabulary from the training corpus. Terms are kept in
// sorted order so the same corpus always yields the same columns.
func (cv *CountVectorizer) Fit(docs []string) (err error) {
	defer errors.Recover(&err, "CountVectorizer.Fit")

	if len(docs) == 0 {
		return errors.NewValueError("CountVectorizer.Fit", "corpus must not be empty")
	}

	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range cv.analyze(doc) {
			termFreq[tok]++
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	threshold := cv.MinDF
	if threshold > 0 && threshold < 1 {
		threshold *= float64(len(docs))
	}

	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if float64(df) >= threshold {
			terms = append(terms, term)
		}
	}

	if cv.MaxFeatures > 0 && len(terms) > cv.MaxFeatures {
		// Keep the corpus-wide most frequent terms, ties alphabetical.
		sort.Slice(terms, func(a, b int) bool {
			if termFreq[terms[a]] != termFreq[terms[b]] {
				return termFreq[terms[a]] > termFreq[terms[b]]
			}
			return terms[a] < terms[b]
		})
		terms = terms[:cv.MaxFeatures]
	}

	if len(terms) == 0 {
		return errors.NewEmptyVocabularyError(cv.MinDF, len(docs))
	}

	sort.Strings(terms)
	cv.featureNames_ = terms
	cv.vocabulary_ = make(map[string]int, len(terms))
	cv.docFreq_ = make([]int, len(terms))
	for j, term := range terms {
		cv.vocabulary_[term] = j
		cv.docFreq_[j] = docFreq[term]
	}
	cv.nDocs_ = len(docs)

	log.GetLoggerWithName("textproc").Debug("vocabulary built",
		"terms", len(terms),
		"documents", len(docs),
		"min_df", cv.MinDF,
	)

	cv.SetFitted()
	return nil
}

// Transform maps documents onto the fitted vocabulary. Unknown tokens
// contribute nothing.
func (cv *CountVectorizer) Transform(docs []string) (*mat.Dense, error) {
	if !cv.IsFitted() {
		return nil, errors.NewNotFittedError("CountVectorizer", "Transform")
	}
	if len(docs) == 0 {
		return nil, errors.NewValueError("CountVectorizer.Transform", "no documents to transform")
	}

	out := mat.NewDense(len(docs), len(cv.featureNames_), nil)
	for i, doc := range docs {
		for _, tok := range cv.analyze(doc) {
			if j, ok := cv.vocabulary_[tok]; ok {
				out.Set(i, j, out.At(i, j)+1)
			}
		}
	}
	return out, nil
}

// FitTransform fits the vocabulary and transforms the same corpus.
func (cv *CountVectorizer) FitTransform(docs []string) (*mat.Dense, error) {
	if err := cv.Fit(docs); err != nil {
		return nil, err
	}
	return cv.Transform(docs)
}

// TermCounts tallies one document against the fitted vocabulary. The
// result holds exactly the nonzero entries of the document's row.
func (cv *CountVectorizer) TermCounts(doc string) (map[string]int, error) {
	if !cv.IsFitted() {
		return nil, errors.NewNotFittedError("CountVectorizer", "TermCounts")
	}

	counts := make(map[string]int)
	for _, tok := range cv.analyze(doc) {
		if _, ok := cv.vocabulary_[tok]; ok {
			counts[tok]++
		}
	}
	return counts, nil
}

// Vocabulary returns a copy of the term to column mapping.
func (cv *CountVectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(cv.vocabulary_))
	for term, j := range cv.vocabulary_ {
		out[term] = j
	}
	return out
}

// FeatureNames returns the vocabulary terms in column order.
func (cv *CountVectorizer) FeatureNames() []string {
	out := make([]string, len(cv.featureNames_))
	copy(out, cv.featureNames_)
	return out
}

// DocumentFrequencies returns how many training documents contained each
// vocabulary term, in column order.
func (cv *CountVectorizer) DocumentFrequencies() []int {
	out := make([]int, len(cv.docFreq_))
	copy(out, cv.docFreq_)
	return out
}

// NDocuments returns the training corpus size.
func (cv *CountVectorizer) NDocuments() int {
	return cv.nDocs_
}

// analyze runs the normalize, tokenize, stopword pipeline for one
// document.
func (cv *CountVectorizer) analyze(doc string) []string {
	if cv.Normalizer != nil {
		doc = cv.Normalizer.Normalize(doc)
	}
	var tokens []string
	if cv.Tokenizer != nil {
		tokens = cv.Tokenizer.Tokenize(doc)
	} else {
		tokens = (&WordTokenizer{}).Tokenize(doc)
	}
	return cv.Stopwords.Filter(tokens)
}
