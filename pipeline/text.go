package pipeline

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/bayes"
	"github.com/mathiasfls/attrition/cognitive"
	"github.com/mathiasfls/attrition/model_selection"
	"github.com/mathiasfls/attrition/pkg/log"
	"github.com/mathiasfls/attrition/textproc"
)

// textBranch vectorizes the feedback corpus and cross-validates a naive
// Bayes baseline against the attrition labels. Text errors fail the run;
// they mean broken input, not a flaky service.
func (p *Pipeline) textBranch(texts []string, y *mat.VecDense, report *Report) error {
	tok, err := textproc.NewDetectTokenizer()
	if err != nil {
		return err
	}

	var stop textproc.Stopwords
	if p.cfg.Data.StopwordPath != "" {
		if stop, err = textproc.LoadStopwords(p.cfg.Data.StopwordPath); err != nil {
			return err
		}
	}

	counts := textproc.NewCountVectorizer().
		WithTokenizer(tok).
		WithMinDF(p.cfg.Text.MinDF)
	if stop != nil {
		counts = counts.WithStopwords(stop)
	}
	if p.cfg.Text.MaxFeatures > 0 {
		counts = counts.WithMaxFeatures(p.cfg.Text.MaxFeatures)
	}

	// The vocabulary is fitted on the whole corpus before the folds are
	// drawn, as the reference study does. Fold scores therefore share one
	// term space instead of refitting the vectorizer per fold; the
	// held-out tabular split above is unaffected.
	var X *mat.Dense
	var vocabSize int
	if p.cfg.Text.TFIDF {
		tfidf := textproc.NewTfidfVectorizer()
		tfidf.CountVectorizer = counts
		if X, err = tfidf.FitTransform(texts); err != nil {
			return err
		}
		vocabSize = len(tfidf.FeatureNames())
	} else {
		if X, err = counts.FitTransform(texts); err != nil {
			return err
		}
		vocabSize = len(counts.FeatureNames())
	}

	splitter := model_selection.NewStratifiedKFold(p.cfg.Training.CVFolds, true, p.cfg.Training.Seed)
	result, err := model_selection.CrossValidate(func() model_selection.Classifier {
		return bayes.NewMultinomialNB()
	}, X, y, splitter, "accuracy")
	if err != nil {
		return err
	}

	report.Text = &TextReport{
		Documents:  len(texts),
		VocabSize:  vocabSize,
		CVAccuracy: result.GetMeanScore(),
		CVStd:      result.GetStdScore(),
	}
	p.logger.Info("text branch evaluated",
		log.DocumentsKey, len(texts),
		log.VocabSizeKey, vocabSize,
		"cv_accuracy", report.Text.CVAccuracy,
	)
	return nil
}

// sentimentBranch scores each feedback document through the cognitive
// services, translating first when the feedback language differs from
// the scoring language. Service failures are logged and counted but
// never abort the run; the rest of the report stays intact.
func (p *Pipeline) sentimentBranch(ctx context.Context, texts []string, report *Report) {
	if p.sentiment == nil {
		return
	}
	labeler := cognitive.NewSentimentLabeler().WithThreshold(p.cfg.Cognitive.SentimentThreshold)
	sr := &SentimentReport{}

	for _, text := range texts {
		if ctx.Err() != nil {
			p.logger.Warn("sentiment branch cancelled", log.ErrAttr(ctx.Err()))
			break
		}

		doc := text
		lang := p.cfg.Text.Language
		target := p.cfg.Cognitive.TargetLanguage
		if p.translator != nil && target != "" && lang != target {
			translated, err := p.translator.Translate(ctx, doc, lang, target)
			if err != nil {
				p.logger.Warn("translation failed, scoring original text",
					log.ServiceKey, "translation",
					log.ErrAttr(err),
				)
			} else {
				doc = translated
				lang = target
				sr.Translated++
			}
		}

		score, err := p.sentiment.Score(ctx, doc, lang)
		if err != nil {
			sr.Failures++
			p.logger.Warn("sentiment scoring failed",
				log.ServiceKey, "sentiment",
				log.ErrAttr(err),
			)
			continue
		}
		sr.Scores = append(sr.Scores, score)
		sr.Labels = append(sr.Labels, labeler.Label(score))
		sr.Scored++
	}

	report.Sentiment = sr
	p.logger.Info("sentiment branch finished",
		"scored", sr.Scored,
		"translated", sr.Translated,
		"failures", sr.Failures,
		log.ThresholdKey, p.cfg.Cognitive.SentimentThreshold,
	)
}
