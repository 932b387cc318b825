package textproc

import (
	"strings"
	"unicode"

	"github.com/go-ego/gse"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// Tokenizer splits a document into tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WordTokenizer splits on anything that is not a letter or digit. It
// suits scripts that delimit words with spaces or punctuation.
type WordTokenizer struct{}

// NewWordTokenizer returns a word-boundary tokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize splits text at non-alphanumeric runes.
func (t *WordTokenizer) Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// SegmentTokenizer cuts unsegmented scripts such as Chinese with a
// dictionary-driven segmenter.
type SegmentTokenizer struct {
	seg *gse.Segmenter
}

// NewSegmentTokenizer loads the embedded segmentation dictionary. The
// load is the expensive part, so build one tokenizer and share it.
func NewSegmentTokenizer() (*SegmentTokenizer, error) {
	var seg gse.Segmenter
	if err := seg.LoadDictEmbed(); err != nil {
		return nil, errors.Wrap(err, "attrition: failed to load the segmentation dictionary")
	}
	log.GetLoggerWithName("textproc").Debug("segmentation dictionary loaded")
	return &SegmentTokenizer{seg: &seg}, nil
}

// Tokenize segments text and drops tokens without letters or digits.
func (t *SegmentTokenizer) Tokenize(text string) []string {
	cut := t.seg.Cut(text, true)
	tokens := make([]string, 0, len(cut))
	for _, tok := range cut {
		if hasAlnum(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// DetectTokenizer routes each document to word splitting or dictionary
// segmentation based on its share of Han runes.
type DetectTokenizer struct {
	// HanThreshold is the Han share of letter runes above which the
	// document is treated as an unsegmented script.
	HanThreshold float64

	word    *WordTokenizer
	segment *SegmentTokenizer
}

// NewDetectTokenizer builds a routing tokenizer with a 0.3 Han threshold.
func NewDetectTokenizer() (*DetectTokenizer, error) {
	segment, err := NewSegmentTokenizer()
	if err != nil {
		return nil, err
	}
	return &DetectTokenizer{
		HanThreshold: 0.3,
		word:         NewWordTokenizer(),
		segment:      segment,
	}, nil
}

// Tokenize picks a tokenizer per document.
func (t *DetectTokenizer) Tokenize(text string) []string {
	if hanRatio(text) >= t.HanThreshold {
		return t.segment.Tokenize(text)
	}
	return t.word.Tokenize(text)
}

// hanRatio is the share of Han runes among letter runes.
func hanRatio(text string) float64 {
	letters, han := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Han, r) {
			han++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(han) / float64(letters)
}

// hasAlnum reports whether the token carries at least one letter or digit.
func hasAlnum(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
