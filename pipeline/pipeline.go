package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/cognitive"
	"github.com/mathiasfls/attrition/dataset"
	"github.com/mathiasfls/attrition/diagnostics"
	"github.com/mathiasfls/attrition/model_selection"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
	"github.com/mathiasfls/attrition/preprocessing"
	"github.com/mathiasfls/attrition/resample"
	"github.com/mathiasfls/attrition/selection"
)

// Translator is the translation surface the sentiment branch needs.
// *cognitive.TranslationClient satisfies it.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// SentimentScorer is the scoring surface of the sentiment branch.
// *cognitive.SentimentClient satisfies it.
type SentimentScorer interface {
	Score(ctx context.Context, text, language string) (float64, error)
}

// Pipeline runs the attrition study end to end from a Config.
type Pipeline struct {
	cfg        Config
	translator Translator
	sentiment  SentimentScorer
	logger     log.Logger
}

// New builds a pipeline. Cognitive clients are constructed from the
// config when their endpoints are set.
func New(cfg Config) *Pipeline {
	cfg = cfg.WithDefaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: log.GetLoggerWithName("pipeline"),
	}
	if cfg.Cognitive.TranslatorEndpoint != "" {
		p.translator = cognitive.NewTranslationClient(cfg.Cognitive.TranslatorEndpoint, cfg.Cognitive.TranslatorKey)
	}
	if cfg.Cognitive.SentimentEndpoint != "" {
		p.sentiment = cognitive.NewSentimentClient(cfg.Cognitive.SentimentEndpoint, cfg.Cognitive.SentimentKey)
	}
	return p
}

// WithTranslator swaps the translation client.
func (p *Pipeline) WithTranslator(t Translator) *Pipeline {
	p.translator = t
	return p
}

// WithSentimentScorer swaps the sentiment client.
func (p *Pipeline) WithSentimentScorer(s SentimentScorer) *Pipeline {
	p.sentiment = s
	return p
}

// Run executes every configured stage and returns the run report.
// Stages that touch external services degrade on failure; everything
// else fails fast.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	report := &Report{}

	table, err := p.load()
	if err != nil {
		return nil, err
	}
	report.Rows = table.NumRows()

	features, y, negLabel, err := p.prepare(table, report)
	if err != nil {
		return nil, err
	}

	X, err := p.selectFeatures(features, y, report)
	if err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY, err := p.split(X, y, report)
	if err != nil {
		return nil, err
	}

	balX, balY, err := p.balance(trainX, trainY, negLabel, report)
	if err != nil {
		return nil, err
	}

	scaledTrain, scaledTest, err := scaleFeatures(balX, testX)
	if err != nil {
		return nil, err
	}

	if err := p.trainModels(ctx, scaledTrain, balY, scaledTest, testY, report); err != nil {
		return nil, err
	}

	if p.cfg.Data.FeedbackPath != "" {
		texts, err := p.loadFeedback(features)
		if err != nil {
			return nil, err
		}
		if err := p.textBranch(texts, y, report); err != nil {
			return nil, err
		}
		p.sentimentBranch(ctx, texts, report)
	}

	p.logger.Info("pipeline finished",
		log.SamplesKey, report.Rows,
		"models", len(report.Models),
		"selected_features", len(report.SelectedFeatures),
	)
	return report, nil
}

func (p *Pipeline) load() (*dataset.Table, error) {
	delim := []rune(p.cfg.Data.Delimiter)[0]
	table, err := dataset.ReadCSV(p.cfg.Data.EmployeesPath,
		dataset.WithDelimiter(delim),
		dataset.WithName("employees"),
	)
	if err != nil {
		return nil, err
	}
	p.logger.Info("employees loaded",
		log.SamplesKey, table.NumRows(),
		log.FeaturesKey, table.NumCols(),
		"path", p.cfg.Data.EmployeesPath,
	)
	return table, nil
}

// prepare drops configured and degenerate columns, casts categoricals,
// and splits the target off into a 0/1 vector. It returns the feature
// table, the targets, and the negative level name for chart labels.
func (p *Pipeline) prepare(table *dataset.Table, report *Report) (*dataset.Table, *mat.VecDense, string, error) {
	t := table
	var err error
	if len(p.cfg.Data.DropColumns) > 0 {
		if t, err = t.DropColumns(p.cfg.Data.DropColumns...); err != nil {
			return nil, nil, "", err
		}
		report.DroppedColumns = append(report.DroppedColumns, p.cfg.Data.DropColumns...)
	}
	if len(p.cfg.Data.CategoricalColumns) > 0 {
		if t, err = preprocessing.CastCategorical(t, p.cfg.Data.CategoricalColumns...); err != nil {
			return nil, nil, "", err
		}
	}

	target, err := t.Column(p.cfg.Data.TargetColumn)
	if err != nil {
		return nil, nil, "", err
	}
	negLabel := "other"
	if len(target.Levels) == 2 {
		for _, level := range target.Levels {
			if level != p.cfg.Data.PositiveLabel {
				negLabel = level
			}
		}
	}

	y, err := t.LabelVector(p.cfg.Data.TargetColumn, p.cfg.Data.PositiveLabel)
	if err != nil {
		return nil, nil, "", err
	}
	features, err := t.DropColumns(p.cfg.Data.TargetColumn)
	if err != nil {
		return nil, nil, "", err
	}

	features, droppedIDs, err := preprocessing.DropIdentifierColumns(features)
	if err != nil {
		return nil, nil, "", err
	}
	report.DroppedColumns = append(report.DroppedColumns, droppedIDs...)

	features, droppedConst, err := preprocessing.DropZeroVariance(features)
	if err != nil {
		return nil, nil, "", err
	}
	report.DroppedColumns = append(report.DroppedColumns, droppedConst...)

	return features, y, negLabel, nil
}

func (p *Pipeline) selectFeatures(features *dataset.Table, y *mat.VecDense, report *Report) (mat.Matrix, error) {
	sel := selection.NewImportanceSelector(p.cfg.Selection.TopN)
	X, err := sel.FitTransform(features.Matrix(), y)
	if err != nil {
		return nil, err
	}

	names := features.Names()
	importances := sel.Importances()
	for _, idx := range sel.SelectedIndices() {
		report.SelectedFeatures = append(report.SelectedFeatures, names[idx])
		report.Importances = append(report.Importances, importances[idx])
	}
	p.logger.Info("features selected",
		log.FeaturesKey, len(report.SelectedFeatures),
		"from", features.NumCols(),
	)

	p.writeChart(func(path string) error {
		return diagnostics.FeatureImportanceChart(report.SelectedFeatures, report.Importances, path)
	}, "feature_importance.png")
	return X, nil
}

func (p *Pipeline) split(X mat.Matrix, y *mat.VecDense, report *Report) (trainX, trainY, testX, testY mat.Matrix, err error) {
	opts := []model_selection.SplitOption{model_selection.WithSeed(p.cfg.Split.Seed)}
	if p.cfg.Split.Stratify {
		opts = append(opts, model_selection.WithStratify())
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplit(X, y, p.cfg.Split.TestFraction, opts...)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	trainX, trainY = model_selection.Subset(X, y, trainIdx)
	testX, testY = model_selection.Subset(X, y, testIdx)
	report.TrainRows = len(trainIdx)
	report.TestRows = len(testIdx)
	return trainX, trainY, testX, testY, nil
}

func (p *Pipeline) balance(trainX, trainY mat.Matrix, negLabel string, report *Report) (mat.Matrix, mat.Matrix, error) {
	negBefore, posBefore := classCounts(trainY)
	report.MinorityBefore = minInt(negBefore, posBefore)

	p.writeChart(func(path string) error {
		return diagnostics.ClassBalanceChart(
			[]int{negBefore, posBefore},
			[]string{negLabel, p.cfg.Data.PositiveLabel},
			path,
		)
	}, "class_balance_before.png")

	smote := resample.NewSMOTE().
		WithPercOver(p.cfg.Balance.PercOver).
		WithPercUnder(p.cfg.Balance.PercUnder).
		WithK(p.cfg.Balance.K).
		WithRandomState(int64(p.cfg.Balance.Seed))
	balX, balY, err := smote.FitResample(trainX, trainY)
	if err != nil {
		return nil, nil, err
	}

	negAfter, posAfter := classCounts(balY)
	report.MinorityAfter = minInt(negAfter, posAfter)
	rows, _ := balY.Dims()
	report.BalancedRows = rows

	p.writeChart(func(path string) error {
		return diagnostics.ClassBalanceChart(
			[]int{negAfter, posAfter},
			[]string{negLabel, p.cfg.Data.PositiveLabel},
			path,
		)
	}, "class_balance_after.png")

	p.logger.Info("training split balanced",
		"minority_before", report.MinorityBefore,
		"minority_after", report.MinorityAfter,
		log.SamplesKey, rows,
	)
	return balX, balY, nil
}

// writeChart renders one diagnostic chart when a plot directory is
// configured. Chart failures are logged and swallowed; diagnostics
// never sink a run.
func (p *Pipeline) writeChart(render func(path string) error, name string) {
	if p.cfg.PlotsDir == "" {
		return
	}
	if err := os.MkdirAll(p.cfg.PlotsDir, 0o750); err != nil {
		p.logger.Warn("plot directory not writable", log.ErrAttr(err))
		return
	}
	if err := render(filepath.Join(p.cfg.PlotsDir, name)); err != nil {
		p.logger.Warn("chart rendering failed", "chart", name, log.ErrAttr(err))
	}
}

// loadFeedback reads the feedback table and pulls the text column,
// validating row alignment against the employees table.
func (p *Pipeline) loadFeedback(features *dataset.Table) ([]string, error) {
	delim := []rune(p.cfg.Data.Delimiter)[0]
	fb, err := dataset.ReadCSV(p.cfg.Data.FeedbackPath,
		dataset.WithDelimiter(delim),
		dataset.WithName("feedback"),
	)
	if err != nil {
		return nil, err
	}
	col, err := fb.Column(p.cfg.Data.FeedbackColumn)
	if err != nil {
		return nil, err
	}
	if col.Kind != dataset.Categorical {
		return nil, errors.NewValueError("pipeline.loadFeedback",
			"feedback column "+p.cfg.Data.FeedbackColumn+" is not text")
	}
	texts := make([]string, col.Len())
	for i := range texts {
		texts[i] = col.Level(i)
	}
	if err := dataset.AlignFeedback(features, texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func classCounts(y mat.Matrix) (neg, pos int) {
	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		if y.At(i, 0) == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
