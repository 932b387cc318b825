package textproc

import (
	"bufio"
	"os"
	"strings"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// Stopwords is a set of tokens dropped after tokenization.
type Stopwords map[string]struct{}

// NewStopwords builds a set from the given words.
func NewStopwords(words ...string) Stopwords {
	s := make(Stopwords, len(words))
	s.Add(words...)
	return s
}

// LoadStopwords reads a stopword file with one word per line. Blank lines
// and lines starting with '#' are skipped; surrounding whitespace is
// trimmed.
func LoadStopwords(path string) (Stopwords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "attrition: failed to open stopword file %s", path)
	}
	defer f.Close()

	s := make(Stopwords)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		s[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "attrition: failed to read stopword file %s", path)
	}
	return s, nil
}

// Add inserts words into the set.
func (s Stopwords) Add(words ...string) {
	for _, w := range words {
		s[w] = struct{}{}
	}
}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Filter returns the tokens that are not stopwords, preserving order.
func (s Stopwords) Filter(tokens []string) []string {
	if len(s) == 0 {
		return tokens
	}
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !s.Contains(tok) {
			kept = append(kept, tok)
		}
	}
	return kept
}
