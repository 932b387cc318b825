package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// Predictor はラベルを予測できるモデルの最小インターフェース
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor はクラス確率も出力できるモデルのインターフェース
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Report は2値分類モデルの評価結果をまとめたもの
// AUCとLogLossはモデルが確率を出力できる場合のみ設定される（それ以外はNaN）
type Report struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	AUC       float64
	LogLoss   float64
	Confusion ConfusionMatrix
}

// String は評価結果の要約を返す
func (r Report) String() string {
	return fmt.Sprintf(
		"accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f auc=%.4f (tp=%d fp=%d tn=%d fn=%d)",
		r.Accuracy, r.Precision, r.Recall, r.F1, r.AUC,
		r.Confusion.TP, r.Confusion.FP, r.Confusion.TN, r.Confusion.FN,
	)
}

// EvaluateClassifier はモデルをテストデータで評価し、主要な指標をまとめて返す
//
// パラメータ:
//   - model: 評価するモデル
//   - X: テストデータ
//   - y: 正解ラベル
//   - positive: 陽性として扱うラベル値
//
// 戻り値:
//   - Report: 評価結果
//   - error: 予測や指標計算に失敗した場合
func EvaluateClassifier(model Predictor, X mat.Matrix, y *mat.VecDense, positive float64) (Report, error) {
	if model == nil {
		return Report{}, errors.NewValueError("EvaluateClassifier", "nil model")
	}

	pred, err := model.Predict(X)
	if err != nil {
		return Report{}, err
	}
	yPred, err := matrixToVec("EvaluateClassifier", pred)
	if err != nil {
		return Report{}, err
	}

	var report Report
	if report.Accuracy, err = Accuracy(y, yPred); err != nil {
		return Report{}, err
	}
	if report.Precision, err = Precision(y, yPred, positive); err != nil {
		return Report{}, err
	}
	if report.Recall, err = Recall(y, yPred, positive); err != nil {
		return Report{}, err
	}
	if report.F1, err = F1Score(y, yPred, positive); err != nil {
		return Report{}, err
	}
	if report.Confusion, err = NewConfusionMatrix(y, yPred, positive); err != nil {
		return Report{}, err
	}

	report.AUC = math.NaN()
	report.LogLoss = math.NaN()
	if prob, ok := model.(ProbaPredictor); ok {
		proba, err := prob.PredictProba(X)
		if err != nil {
			return Report{}, err
		}
		scores, err := positiveScores(proba)
		if err != nil {
			return Report{}, err
		}
		if report.AUC, err = AUC(y, scores); err != nil {
			return Report{}, err
		}
		if report.LogLoss, err = BinaryLogLoss(y, scores); err != nil {
			return Report{}, err
		}
	}

	return report, nil
}

// matrixToVec はn×1行列をベクトルに変換する
func matrixToVec(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// positiveScores は確率行列から陽性クラスのスコア列を取り出す
// 2列の行列は2列目（クラス1）、1列の行列はそのまま使う
func positiveScores(proba mat.Matrix) (*mat.VecDense, error) {
	if proba == nil {
		return nil, errors.NewValueError("EvaluateClassifier", "nil probability matrix")
	}
	r, c := proba.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("EvaluateClassifier", "empty probability matrix")
	}
	col := 0
	if c >= 2 {
		col = 1
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, proba.At(i, col))
	}
	return v, nil
}
