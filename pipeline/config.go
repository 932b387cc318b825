// Package pipeline assembles the attrition toolkit into an end-to-end
// run: load tables, prepare and select features, balance the training
// split, tune and stack classifiers, evaluate on held-out rows, and
// optionally score free-text feedback with the text and cognitive
// branches. Configuration is YAML with environment overrides for
// service endpoints and keys.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// DataConfig names the input tables and how to read them.
type DataConfig struct {
	EmployeesPath string `yaml:"employees_path" json:"employees_path"`
	// FeedbackPath enables the text branch when set. The file must have
	// exactly as many rows as the employees table.
	FeedbackPath   string `yaml:"feedback_path" json:"feedback_path"`
	FeedbackColumn string `yaml:"feedback_column" json:"feedback_column"`
	Delimiter      string `yaml:"delimiter" json:"delimiter"`
	TargetColumn   string `yaml:"target_column" json:"target_column"`
	PositiveLabel  string `yaml:"positive_label" json:"positive_label"`
	// DropColumns are removed before any modelling (identifiers, leak
	// columns). Naming an absent column is an error.
	DropColumns        []string `yaml:"drop_columns" json:"drop_columns"`
	CategoricalColumns []string `yaml:"categorical_columns" json:"categorical_columns"`
	StopwordPath       string   `yaml:"stopword_path" json:"stopword_path"`
}

// SelectionConfig controls importance-based feature selection.
type SelectionConfig struct {
	TopN int `yaml:"top_n" json:"top_n"`
}

// SplitConfig controls the train/test split.
type SplitConfig struct {
	TestFraction float64 `yaml:"test_fraction" json:"test_fraction"`
	Seed         int     `yaml:"seed" json:"seed"`
	Stratify     bool    `yaml:"stratify" json:"stratify"`
}

// BalanceConfig controls SMOTE on the training split.
type BalanceConfig struct {
	PercOver  int `yaml:"perc_over" json:"perc_over"`
	PercUnder int `yaml:"perc_under" json:"perc_under"`
	K         int `yaml:"k" json:"k"`
	Seed      int `yaml:"seed" json:"seed"`
}

// TrainingConfig names the models to tune and how to score them.
// Grids holds per-model parameter grids in sklearn naming; a model
// without a grid entry uses its built-in default grid.
type TrainingConfig struct {
	Models  []string                            `yaml:"models" json:"models"`
	CVFolds int                                 `yaml:"cv_folds" json:"cv_folds"`
	Scoring string                              `yaml:"scoring" json:"scoring"`
	Seed    int                                 `yaml:"seed" json:"seed"`
	Grids   map[string]map[string][]interface{} `yaml:"grids" json:"grids"`
}

// TextConfig controls feedback vectorization and the naive Bayes
// cross-validation of the text branch.
type TextConfig struct {
	MinDF       float64 `yaml:"min_df" json:"min_df"`
	MaxFeatures int     `yaml:"max_features" json:"max_features"`
	TFIDF       bool    `yaml:"tfidf" json:"tfidf"`
	// Language is the feedback language passed to the cognitive
	// services, for example "zh-Hans".
	Language string `yaml:"language" json:"language"`
}

// CognitiveConfig holds the external service endpoints and keys. The
// sentiment branch runs only when SentimentEndpoint is set.
type CognitiveConfig struct {
	TranslatorEndpoint string  `yaml:"translator_endpoint" json:"translator_endpoint"`
	TranslatorKey      string  `yaml:"translator_key" json:"translator_key"`
	SentimentEndpoint  string  `yaml:"sentiment_endpoint" json:"sentiment_endpoint"`
	SentimentKey       string  `yaml:"sentiment_key" json:"sentiment_key"`
	SentimentThreshold float64 `yaml:"sentiment_threshold" json:"sentiment_threshold"`
	// TargetLanguage is what feedback is translated into before
	// sentiment scoring when it differs from the feedback language.
	TargetLanguage string `yaml:"target_language" json:"target_language"`
}

// Config is the full pipeline configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" json:"data"`
	Selection SelectionConfig `yaml:"selection" json:"selection"`
	Split     SplitConfig     `yaml:"split" json:"split"`
	Balance   BalanceConfig   `yaml:"balance" json:"balance"`
	Training  TrainingConfig  `yaml:"training" json:"training"`
	Text      TextConfig      `yaml:"text" json:"text"`
	Cognitive CognitiveConfig `yaml:"cognitive" json:"cognitive"`
	// PlotsDir enables diagnostic charts when set.
	PlotsDir string `yaml:"plots_dir" json:"plots_dir"`
}

// KnownModels lists the model names Training.Models accepts.
var KnownModels = []string{"svm", "forest", "boosting", "stacking"}

// NewConfig returns the default configuration, mirroring the reference
// attrition study: top 10 features, 300/150 SMOTE, 30% test split,
// 10-fold tuning, 0.5 sentiment threshold.
func NewConfig() Config {
	return Config{
		Data: DataConfig{
			Delimiter:      ",",
			TargetColumn:   "Attrition",
			PositiveLabel:  "Yes",
			FeedbackColumn: "Feedback",
		},
		Selection: SelectionConfig{TopN: 10},
		Split: SplitConfig{
			TestFraction: 0.3,
			Seed:         42,
			Stratify:     true,
		},
		Balance: BalanceConfig{
			PercOver:  300,
			PercUnder: 150,
			K:         5,
			Seed:      42,
		},
		Training: TrainingConfig{
			Models:  []string{"svm", "forest", "boosting", "stacking"},
			CVFolds: 10,
			Scoring: "accuracy",
			Seed:    42,
		},
		Text: TextConfig{
			MinDF:    2,
			Language: "zh-Hans",
		},
		Cognitive: CognitiveConfig{
			SentimentThreshold: 0.5,
			TargetLanguage:     "en",
		},
	}
}

// WithDefaults fills zero values with the defaults from NewConfig.
// Booleans are left alone so an explicit false survives.
func (c Config) WithDefaults() Config {
	d := NewConfig()
	if c.Data.Delimiter == "" {
		c.Data.Delimiter = d.Data.Delimiter
	}
	if c.Data.TargetColumn == "" {
		c.Data.TargetColumn = d.Data.TargetColumn
	}
	if c.Data.PositiveLabel == "" {
		c.Data.PositiveLabel = d.Data.PositiveLabel
	}
	if c.Data.FeedbackColumn == "" {
		c.Data.FeedbackColumn = d.Data.FeedbackColumn
	}
	if c.Selection.TopN == 0 {
		c.Selection.TopN = d.Selection.TopN
	}
	if c.Split.TestFraction == 0 {
		c.Split.TestFraction = d.Split.TestFraction
	}
	if c.Split.Seed == 0 {
		c.Split.Seed = d.Split.Seed
	}
	if c.Balance.PercOver == 0 {
		c.Balance.PercOver = d.Balance.PercOver
	}
	if c.Balance.PercUnder == 0 {
		c.Balance.PercUnder = d.Balance.PercUnder
	}
	if c.Balance.K == 0 {
		c.Balance.K = d.Balance.K
	}
	if c.Balance.Seed == 0 {
		c.Balance.Seed = d.Balance.Seed
	}
	if len(c.Training.Models) == 0 {
		c.Training.Models = d.Training.Models
	}
	if c.Training.CVFolds == 0 {
		c.Training.CVFolds = d.Training.CVFolds
	}
	if c.Training.Scoring == "" {
		c.Training.Scoring = d.Training.Scoring
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = d.Training.Seed
	}
	if c.Text.MinDF == 0 {
		c.Text.MinDF = d.Text.MinDF
	}
	if c.Text.Language == "" {
		c.Text.Language = d.Text.Language
	}
	if c.Cognitive.SentimentThreshold == 0 {
		c.Cognitive.SentimentThreshold = d.Cognitive.SentimentThreshold
	}
	if c.Cognitive.TargetLanguage == "" {
		c.Cognitive.TargetLanguage = d.Cognitive.TargetLanguage
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Data.EmployeesPath == "" {
		return errors.NewValidationError("data.employees_path", "must be set", c.Data.EmployeesPath)
	}
	if len([]rune(c.Data.Delimiter)) != 1 {
		return errors.NewValidationError("data.delimiter", "must be a single character", c.Data.Delimiter)
	}
	if c.Selection.TopN <= 0 {
		return errors.NewValidationError("selection.top_n", "must be positive", c.Selection.TopN)
	}
	if c.Split.TestFraction <= 0 || c.Split.TestFraction >= 1 {
		return errors.NewValidationError("split.test_fraction", "must be in (0, 1)", c.Split.TestFraction)
	}
	if c.Balance.PercOver < 100 {
		return errors.NewValidationError("balance.perc_over", "must be at least 100", c.Balance.PercOver)
	}
	if c.Balance.PercUnder <= 0 {
		return errors.NewValidationError("balance.perc_under", "must be positive", c.Balance.PercUnder)
	}
	if c.Balance.K < 1 {
		return errors.NewValidationError("balance.k", "must be at least 1", c.Balance.K)
	}
	if c.Training.CVFolds < 2 {
		return errors.NewValidationError("training.cv_folds", "must be at least 2", c.Training.CVFolds)
	}
	for _, name := range c.Training.Models {
		if !knownModel(name) {
			return errors.NewValidationError("training.models", "unknown model (want one of "+strings.Join(KnownModels, ", ")+")", name)
		}
	}
	if c.Text.MinDF < 0 {
		return errors.NewValidationError("text.min_df", "must be non-negative", c.Text.MinDF)
	}
	if c.Cognitive.SentimentThreshold < 0 || c.Cognitive.SentimentThreshold > 1 {
		return errors.NewValidationError("cognitive.sentiment_threshold", "must be in [0, 1]", c.Cognitive.SentimentThreshold)
	}
	return nil
}

func knownModel(name string) bool {
	for _, m := range KnownModels {
		if m == name {
			return true
		}
	}
	return false
}

// LoadFromFile reads a configuration file, fills defaults, and applies
// environment overrides on top so keys never have to live in the file.
// The format follows the extension: .yaml, .yml or .json.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return Config{}, errors.Wrapf(err, "attrition: failed to read config %s", path)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, errors.NewValueError("pipeline.LoadFromFile", "unsupported config format "+ext)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "attrition: failed to parse config %s", path)
	}
	return cfg.WithDefaults().withEnvOverrides(), nil
}

// LoadFromEnv builds a configuration from defaults plus ATTRITION_*
// environment variables.
func LoadFromEnv() Config {
	return NewConfig().withEnvOverrides()
}

// withEnvOverrides applies ATTRITION_* variables. Environment values win
// over file values so deployments can inject endpoints and keys.
func (c Config) withEnvOverrides() Config {
	envOverride(&c.Data.EmployeesPath, "ATTRITION_EMPLOYEES_PATH")
	envOverride(&c.Data.FeedbackPath, "ATTRITION_FEEDBACK_PATH")
	envOverride(&c.Cognitive.TranslatorEndpoint, "ATTRITION_TRANSLATOR_ENDPOINT")
	envOverride(&c.Cognitive.TranslatorKey, "ATTRITION_TRANSLATOR_KEY")
	envOverride(&c.Cognitive.SentimentEndpoint, "ATTRITION_SENTIMENT_ENDPOINT")
	envOverride(&c.Cognitive.SentimentKey, "ATTRITION_SENTIMENT_KEY")
	envOverrideFloat(&c.Cognitive.SentimentThreshold, "ATTRITION_SENTIMENT_THRESHOLD")
	envOverride(&c.PlotsDir, "ATTRITION_PLOTS_DIR")
	return c
}

func envOverride(field *string, key string) {
	if val := os.Getenv(key); val != "" {
		*field = val
	}
}

func envOverrideFloat(field *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*field = parsed
		}
	}
}
