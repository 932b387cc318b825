package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// logLossEpsilon は対数損失計算時のクリッピング値（log(0)を避ける）
const logLossEpsilon = 1e-15

// checkVectors は2つのベクトルの共通検証を行い、要素数を返す
func checkVectors(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinaryLabels はラベルが0/1のみであることを検証する
func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		v := y.AtVec(i)
		if v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率（一致したラベルの割合）を計算する
// 多クラスのラベルにも対応する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix は2値分類の混同行列
// positiveラベルに一致した行が陽性として数えられる
type ConfusionMatrix struct {
	// TP は真陽性の数
	TP int
	// FP は偽陽性の数
	FP int
	// TN は真陰性の数
	TN int
	// FN は偽陰性の数
	FN int
}

// Total は全サンプル数を返す
func (c ConfusionMatrix) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// NewConfusionMatrix は正解ラベルと予測ラベルから混同行列を計算する
//
// パラメータ:
//   - yTrue: 正解ラベル
//   - yPred: 予測ラベル
//   - positive: 陽性として扱うラベル値
//
// 戻り値:
//   - ConfusionMatrix: 混同行列
//   - error: エラーが発生した場合
func NewConfusionMatrix(yTrue, yPred *mat.VecDense, positive float64) (ConfusionMatrix, error) {
	n, err := checkVectors("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}

	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i) == positive
		predicted := yPred.AtVec(i) == positive
		switch {
		case actual && predicted:
			cm.TP++
		case !actual && predicted:
			cm.FP++
		case actual && !predicted:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Precision は適合率 TP/(TP+FP) を計算する
// 陽性と予測したサンプルが1つもない場合はNaNを返し、警告を発生させる
func Precision(yTrue, yPred *mat.VecDense, positive float64) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}

	if cm.TP+cm.FP == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("Precision", "no predicted positives", math.NaN()))
		return math.NaN(), nil
	}
	return float64(cm.TP) / float64(cm.TP+cm.FP), nil
}

// Recall は再現率 TP/(TP+FN) を計算する
// 正解ラベルに陽性が1つもない場合はNaNを返し、警告を発生させる
func Recall(yTrue, yPred *mat.VecDense, positive float64) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}

	if cm.TP+cm.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("Recall", "no positive ground truth", math.NaN()))
		return math.NaN(), nil
	}
	return float64(cm.TP) / float64(cm.TP+cm.FN), nil
}

// F1Score は適合率と再現率の調和平均を計算する
// どちらかが未定義、または両方が0の場合はNaNを返し、警告を発生させる
func F1Score(yTrue, yPred *mat.VecDense, positive float64) (float64, error) {
	p, err := Precision(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}
	r, err := Recall(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(p) || math.IsNaN(r) || p+r == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("F1Score", "precision and recall are both zero or undefined", math.NaN()))
		return math.NaN(), nil
	}
	return 2 * p * r / (p + r), nil
}

// AUC はROC曲線下面積をMann-Whitney統計量（順位法）で計算する
// 同点の予測値には平均順位を割り当てる
// 正解ラベルが片方のクラスしか含まない場合は0.5を返し、警告を発生させる
//
// パラメータ:
//   - yTrue: 正解ラベル（0または1）
//   - yPred: 予測スコア（大きいほど陽性らしい）
//
// 戻り値:
//   - float64: AUC（0から1）
//   - error: エラーが発生した場合
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		}
	}
	nNeg := n - nPos

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	// 予測スコアの昇順で順位を付ける
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) < yPred.AtVec(order[b])
	})

	// 同点グループには平均順位を割り当てる
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(order[j]) == yPred.AtVec(order[i]) {
			j++
		}
		// 順位は1始まり。グループ [i, j) の平均順位
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[order[k]] = avgRank
		}
		i = j
	}

	// U統計量から AUC = (Σ陽性の順位 - nPos(nPos+1)/2) / (nPos * nNeg)
	sumRanksPos := 0.0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			sumRanksPos += ranks[i]
		}
	}
	u := sumRanksPos - float64(nPos)*float64(nPos+1)/2.0
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する
// 複数列の行列は最初の列だけを使う
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}

	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss は2値分類の対数損失（交差エントロピー）を計算する
// 予測確率は [ε, 1-ε] にクリッピングされる
//
// パラメータ:
//   - yTrue: 正解ラベル(0または1)
//   - yPred: 陽性クラスの予測確率
//
// 戻り値:
//   - float64: 対数損失（0以上、小さいほど良い）
//   - error: エラーが発生した場合
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := yPred.AtVec(i)
		// クリッピングしてlog(0)を避ける
		if p < logLossEpsilon {
			p = logLossEpsilon
		} else if p > 1-logLossEpsilon {
			p = 1 - logLossEpsilon
		}

		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
