// Package attrition predicts employee attrition from HR tables and free-text
// feedback, end to end: CSV loading, feature preparation, importance-based
// selection, SMOTE balancing, model tuning and text mining.
//
// The toolkit keeps a scikit-learn-like surface so the individual stages can
// also be used on their own, outside the YAML-configured pipeline.
//
// # Features
//
// - Tabular pipeline: cleaning, categorical encoding, zero-variance and identifier pruning
// - Class balancing: SMOTE oversampling with majority undersampling
// - Model zoo: linear SVM, logistic regression, random forest, gradient boosting, stacking
// - Tuning: stratified k-fold cross-validation and grid search
// - Text branch: Chinese-aware tokenization, count/tf-idf vectorization, naive Bayes
// - Cognitive branch: translation and sentiment scoring over HTTP, degrading gracefully
//
// # Installation
//
// Install with go get:
//
//	go get github.com/mathiasfls/attrition
//
// # Quick Start
//
// Running the whole pipeline from a config file:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/mathiasfls/attrition/pipeline"
//	)
//
//	func main() {
//	    cfg, err := pipeline.LoadFromFile("attrition.yaml")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    report, err := pipeline.New(cfg).Run(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Println(report)
//	}
//
// The stages compose individually as well:
//
//	table, _ := dataset.ReadCSV("employees.csv")
//	y, _ := table.LabelVector("Attrition", "Yes")
//	selector := selection.NewImportanceSelector(10)
//	X, _ := selector.FitTransform(table.Matrix(), y)
//
// # Packages
//
// The toolkit is organized into focused packages:
//
//   - pipeline: YAML/JSON-configured end-to-end run
//   - dataset: CSV loading and column-typed tables
//   - preprocessing: encoding, scaling, column pruning
//   - selection: importance- and correlation-based feature selection
//   - resample: SMOTE and random undersampling
//   - linear: linear SVM and logistic regression
//   - tree, ensemble: decision trees, random forest, gradient boosting, stacking
//   - bayes: multinomial naive Bayes for the text branch
//   - textproc: normalization, tokenization, stopwords, count/tf-idf vectorizers
//   - model_selection: splits, cross-validation, grid search
//   - metrics: classification metrics and evaluation reports
//   - cognitive: translation and sentiment REST clients
//   - diagnostics: quick-look PNG charts
//   - core/model: fitted-state tracking and gob persistence
//   - core/parallel: worker-pool helpers for the tree ensembles
//   - pkg/errors, pkg/log: typed errors, warnings and structured logging
package attrition
