package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/core/model"
	"github.com/mathiasfls/attrition/pkg/errors"
)

// LabelEncoder はラベル文字列を0からn_classes-1の整数コードに変換する
// クラスはソート順に割り当てられるため、同じ入力集合は常に同じ符号化になる
type LabelEncoder struct {
	model.BaseEstimator

	// Classes は学習したクラスラベル（ソート済み）
	Classes []string

	codes map[string]int
}

// NewLabelEncoder はLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit はラベル集合からクラスを学習する
//
// パラメータ:
//   - labels: 学習するラベル列
//
// 戻り値:
//   - error: ラベルが空の場合のエラー
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty labels", errors.ErrEmptyData)
	}

	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	e.Classes = make([]string, 0, len(seen))
	for l := range seen {
		e.Classes = append(e.Classes, l)
	}
	sort.Strings(e.Classes)

	e.codes = make(map[string]int, len(e.Classes))
	for i, l := range e.Classes {
		e.codes[l] = i
	}

	e.SetFitted()
	return nil
}

// Transform はラベルをコードに変換する
// 未知のラベルはエラーになる
func (e *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}

	out := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := e.codes[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("unknown label %q", l))
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform は学習と変換を一度に行う
func (e *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform はコードをラベル文字列に戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}

	out := make([]string, len(codes))
	for i, c := range codes {
		idx := int(c)
		if idx < 0 || idx >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range", idx))
		}
		out[i] = e.Classes[idx]
	}
	return out, nil
}

// OneHotEncoder はカテゴリコード行列を0/1の指示行列に展開する
// 各列のカテゴリ集合は学習時に固定され、変換時の未知カテゴリはエラーになる
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories は学習した各列のカテゴリ値（列ごとに昇順）
	Categories [][]float64

	// NFeatures は入力の特徴量数
	NFeatures int
}

// NewOneHotEncoder はOneHotEncoderを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// Fit は各列のカテゴリ集合を学習する
//
// パラメータ:
//   - X: カテゴリコードの行列 (n_samples × n_features)
//
// 戻り値:
//   - error: エラーが発生した場合
func (e *OneHotEncoder) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	e.NFeatures = c
	e.Categories = make([][]float64, c)
	for j := 0; j < c; j++ {
		seen := make(map[float64]bool, r)
		for i := 0; i < r; i++ {
			seen[X.At(i, j)] = true
		}
		cats := make([]float64, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Float64s(cats)
		e.Categories[j] = cats
	}

	e.SetFitted()
	return nil
}

// Transform はカテゴリコードを指示行列に変換する
//
// パラメータ:
//   - X: 変換するカテゴリコードの行列
//
// 戻り値:
//   - mat.Matrix: 0/1の指示行列（列数は全カテゴリ数の合計）
//   - error: 未知カテゴリや次元不一致のエラー
func (e *OneHotEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}

	r, c := X.Dims()
	if c != e.NFeatures {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, c, 1)
	}

	offsets := make([]int, c)
	total := 0
	for j, cats := range e.Categories {
		offsets[j] = total
		total += len(cats)
	}

	result := mat.NewDense(r, total, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			pos := sort.SearchFloat64s(e.Categories[j], v)
			if pos >= len(e.Categories[j]) || e.Categories[j][pos] != v {
				return nil, errors.NewValueError("OneHotEncoder.Transform",
					fmt.Sprintf("unknown category %g in column %d", v, j))
			}
			result.Set(i, offsets[j]+pos, 1)
		}
	}
	return result, nil
}

// FitTransform は学習と変換を一度に行う
func (e *OneHotEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// FeatureNames は入力列名から展開後の特徴量名を生成する
// 例: dept → dept=0, dept=1, ...
func (e *OneHotEncoder) FeatureNames(inputNames []string) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "FeatureNames")
	}
	if len(inputNames) != e.NFeatures {
		return nil, errors.NewDimensionError("OneHotEncoder.FeatureNames", e.NFeatures, len(inputNames), 1)
	}

	var names []string
	for j, cats := range e.Categories {
		for _, v := range cats {
			names = append(names, fmt.Sprintf("%s=%g", inputNames[j], v))
		}
	}
	return names, nil
}
