package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

func TestCountVectorizer(t *testing.T) {
	corpus := []string{
		"apple banana apple",
		"banana cherry",
		"apple cherry cherry",
	}

	t.Run("Fit builds a sorted vocabulary", func(t *testing.T) {
		cv := NewCountVectorizer()
		X, err := cv.FitTransform(corpus)
		require.NoError(t, err)

		assert.Equal(t, []string{"apple", "banana", "cherry"}, cv.FeatureNames())
		assert.Equal(t, map[string]int{"apple": 0, "banana": 1, "cherry": 2}, cv.Vocabulary())
		assert.Equal(t, []int{2, 2, 2}, cv.DocumentFrequencies())
		assert.Equal(t, 3, cv.NDocuments())

		want := mat.NewDense(3, 3, []float64{
			2, 1, 0,
			0, 1, 1,
			1, 0, 2,
		})
		assert.True(t, mat.Equal(want, X), "got %v", mat.Formatted(X))
	})

	t.Run("Same corpus gives the same matrix", func(t *testing.T) {
		first := NewCountVectorizer()
		Xa, err := first.FitTransform(corpus)
		require.NoError(t, err)

		second := NewCountVectorizer()
		Xb, err := second.FitTransform(corpus)
		require.NoError(t, err)

		assert.Equal(t, first.FeatureNames(), second.FeatureNames())
		assert.True(t, mat.Equal(Xa, Xb))
	})

	t.Run("MinDF as absolute count", func(t *testing.T) {
		docs := []string{"apple banana", "apple cherry", "apple durian"}

		cv := NewCountVectorizer().WithMinDF(2)
		require.NoError(t, cv.Fit(docs))
		assert.Equal(t, []string{"apple"}, cv.FeatureNames())
	})

	t.Run("MinDF as fraction", func(t *testing.T) {
		docs := []string{"apple banana", "apple cherry", "apple durian"}

		cv := NewCountVectorizer().WithMinDF(0.5)
		require.NoError(t, cv.Fit(docs))
		assert.Equal(t, []string{"apple"}, cv.FeatureNames())
	})

	t.Run("MaxFeatures keeps the most frequent terms", func(t *testing.T) {
		docs := []string{"a a a b b c", "a b c"}

		cv := NewCountVectorizer().WithMaxFeatures(2)
		require.NoError(t, cv.Fit(docs))
		assert.Equal(t, []string{"a", "b"}, cv.FeatureNames())
	})

	t.Run("Normalizer and stopwords", func(t *testing.T) {
		docs := []string{"The colleagues are GREAT!!!", "the 123 office"}

		cv := NewCountVectorizer().
			WithNormalizer(NewNormalizer()).
			WithStopwords(NewStopwords("the"))
		require.NoError(t, cv.Fit(docs))
		assert.Equal(t, []string{"are", "colleagues", "great", "office"}, cv.FeatureNames())
	})

	t.Run("Unknown tokens are ignored at transform", func(t *testing.T) {
		cv := NewCountVectorizer()
		require.NoError(t, cv.Fit(corpus))

		X, err := cv.Transform([]string{"apple zebra zebra"})
		require.NoError(t, err)
		assert.Equal(t, 1.0, X.At(0, 0))
		assert.Equal(t, 0.0, X.At(0, 1))
		assert.Equal(t, 0.0, X.At(0, 2))
	})

	t.Run("TermCounts matches the matrix row", func(t *testing.T) {
		cv := NewCountVectorizer()
		require.NoError(t, cv.Fit(corpus))

		doc := "banana apple banana zebra"
		counts, err := cv.TermCounts(doc)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"apple": 1, "banana": 2}, counts)

		X, err := cv.Transform([]string{doc})
		require.NoError(t, err)
		for term, j := range cv.Vocabulary() {
			assert.Equal(t, float64(counts[term]), X.At(0, j), "term %q", term)
		}
	})

	t.Run("Empty vocabulary fails fast", func(t *testing.T) {
		cv := NewCountVectorizer().WithStopwords(NewStopwords("the", "a"))
		err := cv.Fit([]string{"the the a", "a the"})
		require.Error(t, err)

		var vocabErr *errors.EmptyVocabularyError
		require.True(t, errors.As(err, &vocabErr))
		assert.Equal(t, 2, vocabErr.Documents)

		cv = NewCountVectorizer().WithMinDF(10)
		err = cv.Fit(corpus)
		require.Error(t, err)
		require.True(t, errors.As(err, &vocabErr))
		assert.Equal(t, 10.0, vocabErr.MinDF)
	})

	t.Run("Errors", func(t *testing.T) {
		cv := NewCountVectorizer()
		assert.Error(t, cv.Fit(nil))

		_, err := cv.Transform([]string{"anything"})
		assert.Error(t, err, "transform before fit must fail")

		_, err = cv.TermCounts("anything")
		assert.Error(t, err)

		require.NoError(t, cv.Fit(corpus))
		_, err = cv.Transform(nil)
		assert.Error(t, err)
	})
}
