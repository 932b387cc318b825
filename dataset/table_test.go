package dataset

import (
	"math"
	"testing"

	"github.com/mathiasfls/attrition/pkg/errors"
)

func mustTable(t *testing.T, name string, cols ...Column) *Table {
	t.Helper()
	tbl, err := NewTable(name, cols...)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tbl
}

func TestNewTable(t *testing.T) {
	age := NewNumericColumn("age", []float64{31, 44, 28})
	dept := NewCategoricalColumn("department", []string{"sales", "hr", "sales"})

	tbl := mustTable(t, "employees", age, dept)

	if tbl.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", tbl.NumRows())
	}
	if tbl.NumCols() != 2 {
		t.Errorf("NumCols = %d, want 2", tbl.NumCols())
	}

	names := tbl.Names()
	if names[0] != "age" || names[1] != "department" {
		t.Errorf("Names = %v, want [age department]", names)
	}
}

func TestNewTableErrors(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
	}{
		{
			name: "length mismatch",
			cols: []Column{
				NewNumericColumn("a", []float64{1, 2, 3}),
				NewNumericColumn("b", []float64{1, 2}),
			},
		},
		{
			name: "duplicate name",
			cols: []Column{
				NewNumericColumn("a", []float64{1}),
				NewNumericColumn("a", []float64{2}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable("bad", tt.cols...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCategoricalCoding(t *testing.T) {
	col := NewCategoricalColumn("dept", []string{"sales", "hr", "sales", "it"})

	// Levels are sorted unique values.
	wantLevels := []string{"hr", "it", "sales"}
	if len(col.Levels) != len(wantLevels) {
		t.Fatalf("Levels = %v, want %v", col.Levels, wantLevels)
	}
	for i, l := range wantLevels {
		if col.Levels[i] != l {
			t.Errorf("Levels[%d] = %q, want %q", i, col.Levels[i], l)
		}
	}

	// Codes index into levels: sales=2, hr=0, it=1.
	wantCodes := []float64{2, 0, 2, 1}
	for i, c := range wantCodes {
		if col.Values[i] != c {
			t.Errorf("Values[%d] = %v, want %v", i, col.Values[i], c)
		}
	}

	if got := col.Level(0); got != "sales" {
		t.Errorf("Level(0) = %q, want sales", got)
	}
	if got := col.LevelIndex("it"); got != 1 {
		t.Errorf("LevelIndex(it) = %d, want 1", got)
	}
	if got := col.LevelIndex("missing"); got != -1 {
		t.Errorf("LevelIndex(missing) = %d, want -1", got)
	}
}

func TestColumnVariance(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"constant", []float64{5, 5, 5, 5}, 0},
		{"simple", []float64{1, 2, 3, 4}, 5.0 / 3.0},
		{"single", []float64{7}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := NewNumericColumn("x", tt.values)
			got := col.Variance()
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("Variance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumnLookup(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("age", []float64{31, 44}),
	)

	if _, err := tbl.Column("age"); err != nil {
		t.Errorf("Column(age) failed: %v", err)
	}

	_, err := tbl.Column("salary")
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	var missing *errors.MissingColumnError
	if !errors.As(err, &missing) {
		t.Errorf("error type = %T, want *MissingColumnError", err)
	}
	if missing.Column != "salary" {
		t.Errorf("missing.Column = %q, want salary", missing.Column)
	}
}

func TestDropAndSelectColumns(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("id", []float64{1, 2}),
		NewNumericColumn("age", []float64{31, 44}),
		NewCategoricalColumn("dept", []string{"sales", "hr"}),
	)

	dropped, err := tbl.DropColumns("id")
	if err != nil {
		t.Fatalf("DropColumns failed: %v", err)
	}
	if dropped.NumCols() != 2 || dropped.HasColumn("id") {
		t.Errorf("DropColumns kept id: names = %v", dropped.Names())
	}
	// Original is untouched.
	if !tbl.HasColumn("id") {
		t.Error("DropColumns mutated the source table")
	}

	if _, err := tbl.DropColumns("nope"); err == nil {
		t.Error("DropColumns of missing column should fail")
	}

	sel, err := tbl.SelectColumns("dept", "age")
	if err != nil {
		t.Fatalf("SelectColumns failed: %v", err)
	}
	names := sel.Names()
	if names[0] != "dept" || names[1] != "age" {
		t.Errorf("SelectColumns order = %v, want [dept age]", names)
	}
}

func TestMatrix(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("age", []float64{31, 44}),
		NewCategoricalColumn("dept", []string{"sales", "hr"}),
	)

	m := tbl.Matrix()
	rows, cols := m.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("Matrix dims = %dx%d, want 2x2", rows, cols)
	}
	if m.At(0, 0) != 31 {
		t.Errorf("At(0,0) = %v, want 31", m.At(0, 0))
	}
	// Categorical codes: hr=0, sales=1.
	if m.At(0, 1) != 1 || m.At(1, 1) != 0 {
		t.Errorf("categorical codes = [%v %v], want [1 0]", m.At(0, 1), m.At(1, 1))
	}
}

func TestSelectRows(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("age", []float64{31, 44, 28}),
		NewCategoricalColumn("dept", []string{"sales", "hr", "it"}),
	)

	sub, err := tbl.SelectRows([]int{2, 0, 0})
	if err != nil {
		t.Fatalf("SelectRows failed: %v", err)
	}
	if sub.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", sub.NumRows())
	}
	age, _ := sub.Column("age")
	want := []float64{28, 31, 31}
	for i, w := range want {
		if age.Values[i] != w {
			t.Errorf("age[%d] = %v, want %v", i, age.Values[i], w)
		}
	}
	dept, _ := sub.Column("dept")
	if dept.Level(0) != "it" {
		t.Errorf("dept level(0) = %q, want it", dept.Level(0))
	}

	if _, err := tbl.SelectRows([]int{5}); err == nil {
		t.Error("out-of-range index should fail")
	}
}

func TestLabelVector(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewCategoricalColumn("left", []string{"Yes", "No", "Yes", "No"}),
		NewNumericColumn("age", []float64{31, 44, 28, 50}),
	)

	y, err := tbl.LabelVector("left", "Yes")
	if err != nil {
		t.Fatalf("LabelVector failed: %v", err)
	}
	want := []float64{1, 0, 1, 0}
	for i, w := range want {
		if y.AtVec(i) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.AtVec(i), w)
		}
	}

	// Positive level absent from the column.
	if _, err := tbl.LabelVector("left", "Maybe"); err == nil {
		t.Error("absent positive level should fail")
	}
	// Numeric target column.
	if _, err := tbl.LabelVector("age", "31"); err == nil {
		t.Error("numeric column should fail")
	}
	// Missing column.
	if _, err := tbl.LabelVector("gone", "Yes"); err == nil {
		t.Error("missing column should fail")
	}
}

func TestReplaceColumn(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("age", []float64{31, 44}),
	)

	scaled := NewNumericColumn("age", []float64{0.1, 0.9})
	out, err := tbl.ReplaceColumn("age", scaled)
	if err != nil {
		t.Fatalf("ReplaceColumn failed: %v", err)
	}
	col, _ := out.Column("age")
	if col.Values[0] != 0.1 {
		t.Errorf("replaced value = %v, want 0.1", col.Values[0])
	}

	if _, err := tbl.ReplaceColumn("age", NewNumericColumn("age", []float64{1})); err == nil {
		t.Error("length mismatch should fail")
	}
}

func TestAlignFeedback(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewNumericColumn("age", []float64{31, 44}),
	)

	if err := AlignFeedback(tbl, []string{"fine", "tired"}); err != nil {
		t.Errorf("aligned feedback rejected: %v", err)
	}

	err := AlignFeedback(tbl, []string{"fine"})
	if err == nil {
		t.Fatal("misaligned feedback should fail")
	}
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("error type = %T, want *DimensionError", err)
	}
}

func TestVectorToLevels(t *testing.T) {
	tbl := mustTable(t, "employees",
		NewCategoricalColumn("left", []string{"Yes", "No"}),
	)
	y, err := tbl.LabelVector("left", "Yes")
	if err != nil {
		t.Fatalf("LabelVector failed: %v", err)
	}
	got := VectorToLevels(y, "No", "Yes")
	if got[0] != "Yes" || got[1] != "No" {
		t.Errorf("VectorToLevels = %v, want [Yes No]", got)
	}
}
