// Package textproc turns free-form review text into numeric feature
// matrices. It covers normalization, stopword filtering, tokenization of
// both space-delimited and unsegmented scripts, and count/tf-idf
// vectorization with a vocabulary frozen at fit time.
package textproc

import (
	"strings"
	"unicode"
)

// Normalizer cleans raw text before tokenization. Every step can be
// switched off independently; the zero value changes nothing.
type Normalizer struct {
	// Lowercase folds the text to lower case.
	Lowercase bool

	// StripDigits removes decimal digit runes.
	StripDigits bool

	// StripPunctuation removes punctuation and symbol runes.
	StripPunctuation bool

	// CollapseSpaces squeezes runs of whitespace into single spaces and
	// trims the ends.
	CollapseSpaces bool
}

// NewNormalizer returns a Normalizer with every step enabled.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Lowercase:        true,
		StripDigits:      true,
		StripPunctuation: true,
		CollapseSpaces:   true,
	}
}

// Normalize applies the enabled steps in a fixed order: case folding,
// rune stripping, whitespace collapsing.
func (n *Normalizer) Normalize(text string) string {
	if n.Lowercase {
		text = strings.ToLower(text)
	}

	if n.StripDigits || n.StripPunctuation {
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if n.StripDigits && unicode.IsDigit(r) {
				continue
			}
			if n.StripPunctuation && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
				continue
			}
			b.WriteRune(r)
		}
		text = b.String()
	}

	if n.CollapseSpaces {
		text = strings.Join(strings.Fields(text), " ")
	}
	return text
}
