package textproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopwords(t *testing.T) {
	t.Run("Contains and Filter", func(t *testing.T) {
		s := NewStopwords("the", "a", "of")
		assert.True(t, s.Contains("the"))
		assert.False(t, s.Contains("cat"))

		got := s.Filter([]string{"the", "cat", "a", "sat", "of"})
		assert.Equal(t, []string{"cat", "sat"}, got)
	})

	t.Run("Empty set passes everything", func(t *testing.T) {
		var s Stopwords
		tokens := []string{"keep", "them", "all"}
		assert.Equal(t, tokens, s.Filter(tokens))
	})

	t.Run("Add", func(t *testing.T) {
		s := NewStopwords("one")
		s.Add("two", "three")
		assert.Len(t, s, 3)
		assert.True(t, s.Contains("three"))
	})

	t.Run("LoadStopwords", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stop.txt")
		content := "the\n# a comment\n\n  and  \nof\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		s, err := LoadStopwords(path)
		require.NoError(t, err)
		assert.Len(t, s, 3)
		assert.True(t, s.Contains("the"))
		assert.True(t, s.Contains("and"), "surrounding whitespace is trimmed")
		assert.True(t, s.Contains("of"))
		assert.False(t, s.Contains("# a comment"))
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadStopwords(filepath.Join(t.TempDir(), "absent.txt"))
		assert.Error(t, err)
	})
}
