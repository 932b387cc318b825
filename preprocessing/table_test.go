package preprocessing

import (
	"testing"

	"github.com/mathiasfls/attrition/dataset"
	"github.com/mathiasfls/attrition/pkg/errors"
)

func buildTable(t *testing.T, cols ...dataset.Column) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable("hr", cols...)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tbl
}

func TestDropZeroVariance(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("age", []float64{31, 44, 28}),
		dataset.NewNumericColumn("constant", []float64{1, 1, 1}),
		dataset.NewCategoricalColumn("dept", []string{"sales", "hr", "it"}),
	)

	out, dropped, err := DropZeroVariance(tbl)
	if err != nil {
		t.Fatalf("DropZeroVariance failed: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "constant" {
		t.Errorf("dropped = %v, want [constant]", dropped)
	}
	if out.HasColumn("constant") {
		t.Error("constant column survived")
	}
	for _, name := range out.Names() {
		col, _ := out.Column(name)
		if col.Variance() == 0 {
			t.Errorf("column %s still has zero variance", name)
		}
	}
}

func TestDropZeroVarianceNoDrop(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("age", []float64{31, 44, 28}),
	)
	out, dropped, err := DropZeroVariance(tbl)
	if err != nil {
		t.Fatalf("DropZeroVariance failed: %v", err)
	}
	if dropped != nil {
		t.Errorf("dropped = %v, want nil", dropped)
	}
	if out != tbl {
		t.Error("unchanged table should be returned as-is")
	}
}

func TestDropZeroVarianceAllConstant(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("a", []float64{1, 1}),
		dataset.NewNumericColumn("b", []float64{2, 2}),
	)
	if _, _, err := DropZeroVariance(tbl); err == nil {
		t.Error("all-constant table should fail")
	}
}

func TestCastCategorical(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("grade", []float64{2, 0, 1, 2}),
		dataset.NewNumericColumn("age", []float64{31, 44, 28, 50}),
	)

	out, err := CastCategorical(tbl, "grade")
	if err != nil {
		t.Fatalf("CastCategorical failed: %v", err)
	}

	grade, _ := out.Column("grade")
	if grade.Kind != dataset.Categorical {
		t.Fatalf("grade kind = %v, want categorical", grade.Kind)
	}
	// Levels from the string forms "0","1","2", sorted.
	if grade.Level(0) != "2" || grade.Level(1) != "0" {
		t.Errorf("levels = [%q %q], want [2 0]", grade.Level(0), grade.Level(1))
	}

	// Numeric column stays numeric.
	age, _ := out.Column("age")
	if age.Kind != dataset.Numeric {
		t.Errorf("age kind = %v, want numeric", age.Kind)
	}
}

func TestCastCategoricalErrors(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("rate", []float64{0.5, 0.7}),
	)

	_, err := CastCategorical(tbl, "missing")
	if err == nil {
		t.Fatal("missing column should fail")
	}
	var missing *errors.MissingColumnError
	if !errors.As(err, &missing) {
		t.Errorf("error type = %T, want *MissingColumnError", err)
	}

	// Non-integer values cannot be nominal codes.
	if _, err := CastCategorical(tbl, "rate"); err == nil {
		t.Error("non-integer column should fail")
	}
}

func TestCastCategoricalIdempotent(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewCategoricalColumn("dept", []string{"a", "b"}),
	)
	out, err := CastCategorical(tbl, "dept")
	if err != nil {
		t.Fatalf("CastCategorical failed: %v", err)
	}
	dept, _ := out.Column("dept")
	if dept.Level(0) != "a" {
		t.Errorf("level(0) = %q, want a", dept.Level(0))
	}
}

func TestDropIdentifierColumns(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("employee_id", []float64{101, 102, 103, 104}),
		dataset.NewNumericColumn("age", []float64{31, 44, 31, 50}),
	)

	out, dropped, err := DropIdentifierColumns(tbl)
	if err != nil {
		t.Fatalf("DropIdentifierColumns failed: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "employee_id" {
		t.Errorf("dropped = %v, want [employee_id]", dropped)
	}
	if out.HasColumn("employee_id") {
		t.Error("identifier column survived")
	}
	if !out.HasColumn("age") {
		t.Error("age column was dropped")
	}
}

func TestDropIdentifierColumnsKeepsContinuous(t *testing.T) {
	// All-unique but fractional: a continuous measurement, not an
	// identifier.
	tbl := buildTable(t,
		dataset.NewNumericColumn("employee_id", []float64{101, 102, 103, 104}),
		dataset.NewNumericColumn("hourly_rate", []float64{31.5, 44.25, 18.75, 50.1}),
	)

	out, dropped, err := DropIdentifierColumns(tbl)
	if err != nil {
		t.Fatalf("DropIdentifierColumns failed: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "employee_id" {
		t.Errorf("dropped = %v, want [employee_id]", dropped)
	}
	if !out.HasColumn("hourly_rate") {
		t.Error("continuous column was dropped")
	}
}

func TestDropIdentifierColumnsAllUnique(t *testing.T) {
	tbl := buildTable(t,
		dataset.NewNumericColumn("id", []float64{1, 2}),
		dataset.NewNumericColumn("badge", []float64{7, 9}),
	)
	if _, _, err := DropIdentifierColumns(tbl); err == nil {
		t.Error("all-identifier table should fail")
	}
}
