package preprocessing

import (
	"fmt"
	"math"

	"github.com/mathiasfls/attrition/dataset"
	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// DropZeroVariance はテーブルから分散0の列を除去する
// 除去した列名も返すので、呼び出し側でログに残せる
//
// パラメータ:
//   - t: 入力テーブル
//
// 戻り値:
//   - *dataset.Table: 分散0の列を除いた新しいテーブル
//   - []string: 除去した列名
//   - error: 全列が定数の場合などのエラー
func DropZeroVariance(t *dataset.Table) (*dataset.Table, []string, error) {
	var dropped []string
	for _, name := range t.Names() {
		col, err := t.Column(name)
		if err != nil {
			return nil, nil, err
		}
		if col.Variance() == 0 {
			dropped = append(dropped, name)
		}
	}

	if len(dropped) == t.NumCols() {
		return nil, nil, errors.NewValueError("preprocessing.DropZeroVariance",
			"every column is constant")
	}
	if len(dropped) == 0 {
		return t, nil, nil
	}

	out, err := t.DropColumns(dropped...)
	if err != nil {
		return nil, nil, err
	}

	log.GetLoggerWithName("preprocessing").Debug("dropped constant columns",
		log.ComponentKey, "preprocessing",
		"dropped", dropped,
	)
	return out, dropped, nil
}

// CastCategorical は名義尺度の整数コードを持つ数値列をカテゴリ列に変換する
// 存在しない列名を指定した場合はエラーになる
//
// パラメータ:
//   - t: 入力テーブル
//   - cols: カテゴリに変換する列名
//
// 戻り値:
//   - *dataset.Table: 変換後の新しいテーブル
//   - error: 列が存在しない場合などのエラー
func CastCategorical(t *dataset.Table, cols ...string) (*dataset.Table, error) {
	out := t
	for _, name := range cols {
		col, err := out.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind == dataset.Categorical {
			continue
		}

		levels := make([]string, col.Len())
		for i, v := range col.Values {
			if v != float64(int(v)) {
				return nil, errors.NewValueError("preprocessing.CastCategorical",
					fmt.Sprintf("column %s has non-integer value %g", name, v))
			}
			levels[i] = fmt.Sprintf("%d", int(v))
		}
		out, err = out.ReplaceColumn(name, dataset.NewCategoricalColumn(name, levels))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DropIdentifierColumns は全行で値が一意な識別子風の列（社員番号など）を除去する
// 連続値の列は大きなテーブルでは偶然すべて一意になり得るため、
// 整数値のみの列だけを識別子候補とみなす
// 行数1以下のテーブルでは何も除去しない
func DropIdentifierColumns(t *dataset.Table) (*dataset.Table, []string, error) {
	rows := t.NumRows()
	if rows < 2 {
		return t, nil, nil
	}

	var dropped []string
	for _, name := range t.Names() {
		col, err := t.Column(name)
		if err != nil {
			return nil, nil, err
		}
		seen := make(map[float64]bool, rows)
		unique := true
		for _, v := range col.Values {
			if v != math.Trunc(v) || seen[v] {
				unique = false
				break
			}
			seen[v] = true
		}
		if unique {
			dropped = append(dropped, name)
		}
	}

	if len(dropped) == 0 {
		return t, nil, nil
	}
	if len(dropped) == t.NumCols() {
		return nil, nil, errors.NewValueError("preprocessing.DropIdentifierColumns",
			"every column is identifier-like")
	}

	out, err := t.DropColumns(dropped...)
	if err != nil {
		return nil, nil, err
	}

	log.GetLoggerWithName("preprocessing").Debug("dropped identifier columns",
		log.ComponentKey, "preprocessing",
		"dropped", dropped,
	)
	return out, dropped, nil
}
