package pipeline

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/ensemble"
	"github.com/mathiasfls/attrition/linear"
	"github.com/mathiasfls/attrition/metrics"
	"github.com/mathiasfls/attrition/model_selection"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
	"github.com/mathiasfls/attrition/preprocessing"
)

// scaleFeatures standardizes the balanced training matrix and maps the
// held-out split with the training statistics. The margin-based models
// need comparable feature scales, and the scaler must never see the
// evaluation rows.
func scaleFeatures(trainX, testX mat.Matrix) (mat.Matrix, mat.Matrix, error) {
	scaler := preprocessing.NewStandardScalerDefault()
	scaledTrain, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, nil, err
	}
	scaledTest, err := scaler.Transform(testX)
	if err != nil {
		return nil, nil, err
	}
	return scaledTrain, scaledTest, nil
}

// trainModels tunes each configured model on the balanced training data
// and evaluates the refitted winner on the held-out split.
func (p *Pipeline) trainModels(ctx context.Context, trainX, trainY, testX, testY mat.Matrix, report *Report) error {
	testVec, err := labelVec(testY)
	if err != nil {
		return err
	}

	for _, name := range p.cfg.Training.Models {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "attrition: training cancelled")
		}

		var mr ModelReport
		if name == "stacking" {
			mr, err = p.trainStacking(trainX, trainY, testX, testVec)
		} else {
			mr, err = p.tuneModel(name, trainX, trainY, testX, testVec)
		}
		if err != nil {
			return err
		}
		report.Models = append(report.Models, mr)
		p.logger.Info("model evaluated",
			log.ModelNameKey, mr.Name,
			"accuracy", mr.Test.Accuracy,
			"recall", mr.Test.Recall,
		)
	}
	return nil
}

func (p *Pipeline) tuneModel(name string, trainX, trainY, testX mat.Matrix, testY *mat.VecDense) (ModelReport, error) {
	factory, err := p.modelFactory(name)
	if err != nil {
		return ModelReport{}, err
	}
	grid := p.cfg.Training.Grids[name]
	if grid == nil {
		grid = defaultGrid(name)
	}

	cv := model_selection.NewStratifiedKFold(p.cfg.Training.CVFolds, true, p.cfg.Training.Seed)
	gs := model_selection.NewGridSearchCV(factory, grid, cv, p.cfg.Training.Scoring)
	if err := gs.Fit(trainX, trainY); err != nil {
		return ModelReport{}, errors.Wrapf(err, "attrition: tuning %s failed", name)
	}

	test, err := metrics.EvaluateClassifier(gs, testX, testY, 1)
	if err != nil {
		return ModelReport{}, err
	}
	return ModelReport{
		Name:       name,
		BestParams: gs.BestParams_,
		CVScore:    gs.BestScore_,
		Test:       test,
	}, nil
}

// trainStacking fits the stacked ensemble over the tuned model family.
// The stack is not grid-searched; its bases run with their defaults and
// the logistic meta-model combines their out-of-fold scores.
func (p *Pipeline) trainStacking(trainX, trainY, testX mat.Matrix, testY *mat.VecDense) (ModelReport, error) {
	seed := p.cfg.Training.Seed
	sc := ensemble.NewStackingClassifier(
		func() ensemble.BaseModel {
			return linear.NewLinearSVC(linear.WithSVCRandomState(int64(seed)))
		},
		func() ensemble.BaseModel {
			return ensemble.NewRandomForestClassifier().WithRandomState(seed)
		},
		func() ensemble.BaseModel {
			return ensemble.NewGradientBoostingClassifier().WithMinSamplesLeaf(2)
		},
	).WithRandomState(seed)

	if err := sc.Fit(trainX, trainY); err != nil {
		return ModelReport{}, errors.Wrap(err, "attrition: fitting the stacked ensemble failed")
	}
	test, err := metrics.EvaluateClassifier(sc, testX, testY, 1)
	if err != nil {
		return ModelReport{}, err
	}
	return ModelReport{
		Name:    "stacking",
		CVScore: math.NaN(),
		Test:    test,
	}, nil
}

func (p *Pipeline) modelFactory(name string) (func() model_selection.Estimator, error) {
	seed := p.cfg.Training.Seed
	switch name {
	case "svm":
		return func() model_selection.Estimator {
			return linear.NewLinearSVC(linear.WithSVCRandomState(int64(seed)))
		}, nil
	case "forest":
		return func() model_selection.Estimator {
			return ensemble.NewRandomForestClassifier().WithRandomState(seed)
		}, nil
	case "boosting":
		return func() model_selection.Estimator {
			return ensemble.NewGradientBoostingClassifier()
		}, nil
	default:
		return nil, errors.NewValueError("pipeline.modelFactory", "unknown model "+name)
	}
}

// defaultGrid returns the tuning grid used when the config names none.
// Values follow the reference study's search ranges.
func defaultGrid(name string) map[string][]interface{} {
	switch name {
	case "svm":
		return map[string][]interface{}{
			"C": {0.1, 1.0, 10.0},
		}
	case "forest":
		return map[string][]interface{}{
			"n_estimators": {100},
			"max_depth":    {-1, 10},
		}
	case "boosting":
		return map[string][]interface{}{
			"n_estimators":  {100},
			"learning_rate": {0.1},
		}
	}
	return nil
}

// labelVec copies the first column of an n×1 matrix into a vector.
func labelVec(y mat.Matrix) (*mat.VecDense, error) {
	if y == nil {
		return nil, errors.NewValueError("pipeline.labelVec", "nil labels")
	}
	rows, _ := y.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, y.At(i, 0))
	}
	return v, nil
}
