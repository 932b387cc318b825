package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// VarianceThreshold は分散が閾値以下の特徴量を除去する特徴量選択器
// 定数列（分散0）の除去に使うのが典型的な用途
type VarianceThreshold struct {
	model.BaseEstimator

	// Threshold は除去の閾値（分散がこの値以下の列を除去する）
	Threshold float64

	// Variances は学習時に計算した各特徴量の分散
	Variances []float64

	// NFeatures は入力の特徴量数
	NFeatures int

	support []bool
}

// NewVarianceThreshold は指定した閾値でVarianceThresholdを作成する
func NewVarianceThreshold(threshold float64) *VarianceThreshold {
	return &VarianceThreshold{Threshold: threshold}
}

// NewVarianceThresholdDefault はデフォルト（閾値0、定数列のみ除去）のVarianceThresholdを作成する
func NewVarianceThresholdDefault() *VarianceThreshold {
	return NewVarianceThreshold(0)
}

// Fit は各特徴量の分散を計算し、残す列を決定する
//
// パラメータ:
//   - X: 訓練データ (n_samples × n_features の行列)
//
// 戻り値:
//   - error: 全ての列が閾値以下の場合などのエラー
func (v *VarianceThreshold) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("VarianceThreshold.Fit", "empty data", errors.ErrEmptyData)
	}

	v.NFeatures = c
	v.Variances = make([]float64, c)
	v.support = make([]bool, c)

	kept := 0
	for j := 0; j < c; j++ {
		mean := 0.0
		for i := 0; i < r; i++ {
			mean += X.At(i, j)
		}
		mean /= float64(r)

		ss := 0.0
		for i := 0; i < r; i++ {
			diff := X.At(i, j) - mean
			ss += diff * diff
		}
		v.Variances[j] = ss / float64(r)

		if v.Variances[j] > v.Threshold {
			v.support[j] = true
			kept++
		}
	}

	if kept == 0 {
		return errors.NewValueError("VarianceThreshold.Fit",
			fmt.Sprintf("no feature has variance above threshold %g", v.Threshold))
	}

	v.SetFitted()
	return nil
}

// Transform は閾値を超える分散を持つ列だけを残した行列を返す
//
// パラメータ:
//   - X: 変換するデータ
//
// 戻り値:
//   - mat.Matrix: 選択された列のみの行列
//   - error: エラーが発生した場合
func (v *VarianceThreshold) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !v.IsFitted() {
		return nil, errors.NewNotFittedError("VarianceThreshold", "Transform")
	}

	r, c := X.Dims()
	if c != v.NFeatures {
		return nil, errors.NewDimensionError("VarianceThreshold.Transform", v.NFeatures, c, 1)
	}

	indices := v.SelectedIndices()
	result := mat.NewDense(r, len(indices), nil)
	for out, j := range indices {
		for i := 0; i < r; i++ {
			result.Set(i, out, X.At(i, j))
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (v *VarianceThreshold) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := v.Fit(X); err != nil {
		return nil, err
	}
	return v.Transform(X)
}

// SupportMask は各入力列を残すかどうかのマスクを返す
func (v *VarianceThreshold) SupportMask() []bool {
	mask := make([]bool, len(v.support))
	copy(mask, v.support)
	return mask
}

// SelectedIndices は残される列のインデックスを昇順で返す
func (v *VarianceThreshold) SelectedIndices() []int {
	indices := make([]int, 0, len(v.support))
	for j, keep := range v.support {
		if keep {
			indices = append(indices, j)
		}
	}
	return indices
}

// GetParams はパラメータを取得する（scikit-learn互換）
func (v *VarianceThreshold) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"threshold": v.Threshold,
	}
}

// String は文字列表現を返す
func (v *VarianceThreshold) String() string {
	return fmt.Sprintf("VarianceThreshold(threshold=%g)", v.Threshold)
}
