package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiasfls/attrition/pkg/errors"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ",", cfg.Data.Delimiter)
	assert.Equal(t, "Attrition", cfg.Data.TargetColumn)
	assert.Equal(t, "Yes", cfg.Data.PositiveLabel)
	assert.Equal(t, 10, cfg.Selection.TopN)
	assert.Equal(t, 0.3, cfg.Split.TestFraction)
	assert.True(t, cfg.Split.Stratify)
	assert.Equal(t, 300, cfg.Balance.PercOver)
	assert.Equal(t, 150, cfg.Balance.PercUnder)
	assert.Equal(t, 5, cfg.Balance.K)
	assert.Equal(t, 10, cfg.Training.CVFolds)
	assert.Equal(t, []string{"svm", "forest", "boosting", "stacking"}, cfg.Training.Models)
	assert.Equal(t, 0.5, cfg.Cognitive.SentimentThreshold)
	assert.Equal(t, "en", cfg.Cognitive.TargetLanguage)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("YAML with defaults filled", func(t *testing.T) {
		path := writeConfigFile(t, "run.yaml", `
data:
  employees_path: employees.csv
  positive_label: "Yes"
  drop_columns: [EmployeeNumber]
  categorical_columns: [JobLevel]
selection:
  top_n: 5
split:
  test_fraction: 0.25
  stratify: true
training:
  models: [svm, forest]
  cv_folds: 3
  grids:
    svm:
      C: [0.5, 2.0]
plots_dir: out
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, "employees.csv", cfg.Data.EmployeesPath)
		assert.Equal(t, []string{"EmployeeNumber"}, cfg.Data.DropColumns)
		assert.Equal(t, 5, cfg.Selection.TopN)
		assert.Equal(t, 0.25, cfg.Split.TestFraction)
		assert.Equal(t, []string{"svm", "forest"}, cfg.Training.Models)
		assert.Equal(t, 3, cfg.Training.CVFolds)
		assert.Equal(t, "out", cfg.PlotsDir)

		require.Contains(t, cfg.Training.Grids, "svm")
		assert.Equal(t, []interface{}{0.5, 2.0}, cfg.Training.Grids["svm"]["C"])

		// Unset values come from the defaults.
		assert.Equal(t, ",", cfg.Data.Delimiter)
		assert.Equal(t, "Attrition", cfg.Data.TargetColumn)
		assert.Equal(t, 300, cfg.Balance.PercOver)
		assert.Equal(t, "accuracy", cfg.Training.Scoring)
	})

	t.Run("JSON", func(t *testing.T) {
		path := writeConfigFile(t, "run.json",
			`{"data": {"employees_path": "hr.csv"}, "selection": {"top_n": 7}}`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hr.csv", cfg.Data.EmployeesPath)
		assert.Equal(t, 7, cfg.Selection.TopN)
	})

	t.Run("Environment wins over the file", func(t *testing.T) {
		t.Setenv("ATTRITION_SENTIMENT_KEY", "from-env")
		t.Setenv("ATTRITION_SENTIMENT_THRESHOLD", "0.8")
		path := writeConfigFile(t, "run.yaml", `
data:
  employees_path: employees.csv
cognitive:
  sentiment_key: from-file
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Cognitive.SentimentKey)
		assert.Equal(t, 0.8, cfg.Cognitive.SentimentThreshold)
	})

	t.Run("Unsupported extension", func(t *testing.T) {
		path := writeConfigFile(t, "run.toml", "data = 1")
		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := writeConfigFile(t, "bad.yaml", "data: [unclosed")
		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ATTRITION_EMPLOYEES_PATH", "env.csv")
	t.Setenv("ATTRITION_TRANSLATOR_ENDPOINT", "https://translate.example")
	t.Setenv("ATTRITION_TRANSLATOR_KEY", "tkey")

	cfg := LoadFromEnv()
	assert.Equal(t, "env.csv", cfg.Data.EmployeesPath)
	assert.Equal(t, "https://translate.example", cfg.Cognitive.TranslatorEndpoint)
	assert.Equal(t, "tkey", cfg.Cognitive.TranslatorKey)
	assert.Equal(t, 10, cfg.Selection.TopN)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := NewConfig()
		cfg.Data.EmployeesPath = "employees.csv"
		return cfg
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Rejects bad settings", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*Config)
		}{
			{"missing employees path", func(c *Config) { c.Data.EmployeesPath = "" }},
			{"multi-rune delimiter", func(c *Config) { c.Data.Delimiter = ";;" }},
			{"zero top_n", func(c *Config) { c.Selection.TopN = 0 }},
			{"test fraction one", func(c *Config) { c.Split.TestFraction = 1 }},
			{"perc_over below 100", func(c *Config) { c.Balance.PercOver = 50 }},
			{"zero perc_under", func(c *Config) { c.Balance.PercUnder = 0 }},
			{"zero k", func(c *Config) { c.Balance.K = 0 }},
			{"single cv fold", func(c *Config) { c.Training.CVFolds = 1 }},
			{"unknown model", func(c *Config) { c.Training.Models = []string{"xgboost"} }},
			{"negative min_df", func(c *Config) { c.Text.MinDF = -1 }},
			{"threshold above one", func(c *Config) { c.Cognitive.SentimentThreshold = 1.5 }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := valid()
				tc.mutate(&cfg)
				err := cfg.Validate()
				require.Error(t, err)

				var vErr *errors.ValidationError
				assert.True(t, errors.As(err, &vErr))
			})
		}
	})
}
