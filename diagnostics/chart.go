// Package diagnostics renders quick-look charts for attrition runs.
//
// The charts are plain PNG bar charts meant for eyeballing a run, not
// for publication: class balance before and after resampling, and the
// importance ranking that drove feature selection.
package diagnostics

import (
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// ClassBalanceChart writes a bar chart of per-class row counts to path.
// The file format follows the path extension; use .png.
func ClassBalanceChart(counts []int, labels []string, path string) error {
	if len(counts) == 0 {
		return errors.NewValueError("ClassBalanceChart", "counts must not be empty")
	}
	if len(counts) != len(labels) {
		return errors.NewDimensionError("ClassBalanceChart", len(counts), len(labels), 0)
	}

	p := plot.New()
	p.Title.Text = "Class balance"
	p.Y.Label.Text = "Rows"

	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return errors.Wrap(err, "attrition: failed to build class balance chart")
	}
	bars.LineStyle.Width = 0
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(4*vg.Inch, 3*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "attrition: failed to write chart %s", path)
	}
	log.GetLoggerWithName("diagnostics").Debug("class balance chart written",
		"path", path, "classes", len(counts))
	return nil
}

// FeatureImportanceChart writes a horizontal bar chart of importances to
// path, most important feature on top.
func FeatureImportanceChart(names []string, importances []float64, path string) error {
	if len(names) == 0 {
		return errors.NewValueError("FeatureImportanceChart", "names must not be empty")
	}
	if len(names) != len(importances) {
		return errors.NewDimensionError("FeatureImportanceChart", len(names), len(importances), 0)
	}

	// Sort ascending so the largest bar renders at the top of the axis.
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] < importances[order[b]]
	})

	sortedNames := make([]string, len(names))
	values := make(plotter.Values, len(names))
	for i, idx := range order {
		sortedNames[i] = names[idx]
		values[i] = importances[idx]
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "attrition: failed to build feature importance chart")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = 0
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalY(sortedNames...)

	height := vg.Length(len(names))*vg.Points(20) + vg.Inch
	if height < 3*vg.Inch {
		height = 3 * vg.Inch
	}
	if err := p.Save(5*vg.Inch, height, path); err != nil {
		return errors.Wrapf(err, "attrition: failed to write chart %s", path)
	}
	log.GetLoggerWithName("diagnostics").Debug("feature importance chart written",
		"path", path, log.FeaturesKey, len(names))
	return nil
}
