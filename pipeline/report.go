package pipeline

import (
	"fmt"
	"strings"

	"github.com/mathiasfls/attrition/metrics"
)

// ModelReport holds the tuning and held-out results for one model.
type ModelReport struct {
	Name       string
	BestParams map[string]interface{}
	// CVScore is the best cross-validated score found during tuning.
	// Models fitted without a grid (stacking) report their training CV
	// as NaN and are judged on Test alone.
	CVScore float64
	Test    metrics.Report
}

// TextReport summarizes the feedback classification branch.
type TextReport struct {
	Documents  int
	VocabSize  int
	CVAccuracy float64
	CVStd      float64
}

// SentimentReport summarizes the cognitive scoring branch. Scores and
// Labels are aligned with the feedback rows that were scored; Failures
// counts documents skipped because a service call failed.
type SentimentReport struct {
	Scored     int
	Translated int
	Failures   int
	Scores     []float64
	Labels     []string
}

// Report is the outcome of one pipeline run.
type Report struct {
	Rows           int
	DroppedColumns []string
	// SelectedFeatures are the surviving top-N column names, in input
	// order; Importances are their importance scores from the ranking
	// model.
	SelectedFeatures []string
	Importances      []float64

	TrainRows      int
	TestRows       int
	MinorityBefore int
	MinorityAfter  int
	BalancedRows   int

	Models    []ModelReport
	Text      *TextReport
	Sentiment *SentimentReport
}

// BestModel returns the model report with the highest held-out accuracy,
// or nil when no model was trained.
func (r *Report) BestModel() *ModelReport {
	var best *ModelReport
	for i := range r.Models {
		if best == nil || r.Models[i].Test.Accuracy > best.Test.Accuracy {
			best = &r.Models[i]
		}
	}
	return best
}

// String renders a human-readable run summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%d train=%d test=%d\n", r.Rows, r.TrainRows, r.TestRows)
	fmt.Fprintf(&b, "selected features: %s\n", strings.Join(r.SelectedFeatures, ", "))
	fmt.Fprintf(&b, "minority %d -> %d (balanced train rows %d)\n",
		r.MinorityBefore, r.MinorityAfter, r.BalancedRows)
	for _, m := range r.Models {
		fmt.Fprintf(&b, "%-10s %s\n", m.Name, m.Test.String())
	}
	if r.Text != nil {
		fmt.Fprintf(&b, "text: %d documents, %d terms, cv accuracy %.4f (±%.4f)\n",
			r.Text.Documents, r.Text.VocabSize, r.Text.CVAccuracy, r.Text.CVStd)
	}
	if r.Sentiment != nil {
		fmt.Fprintf(&b, "sentiment: %d scored, %d translated, %d failures\n",
			r.Sentiment.Scored, r.Sentiment.Translated, r.Sentiment.Failures)
	}
	return b.String()
}
