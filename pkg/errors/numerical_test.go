package errors

import (
	"math"
	"testing"
)

type denseStub struct {
	rows, cols int
	values     []float64
}

func (d denseStub) At(i, j int) float64 {
	return d.values[i*d.cols+j]
}

func TestCheckNumericalStability(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{name: "finite values", values: []float64{1.0, -2.5, 0.0}, wantErr: false},
		{name: "NaN", values: []float64{1.0, math.NaN()}, wantErr: true},
		{name: "positive Inf", values: []float64{math.Inf(1)}, wantErr: true},
		{name: "negative Inf", values: []float64{math.Inf(-1)}, wantErr: true},
		{name: "empty slice", values: nil, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNumericalStability("test_op", tt.values, 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckNumericalStability() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var instErr *NumericalInstabilityError
			if !As(err, &instErr) {
				t.Fatalf("expected NumericalInstabilityError, got %T", err)
			}
			if instErr.Operation != "test_op" || instErr.Iteration != 3 {
				t.Errorf("unexpected error fields: %+v", instErr)
			}
		})
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("loss", 0.25, 0); err != nil {
		t.Errorf("finite scalar should pass, got %v", err)
	}
	if err := CheckScalar("loss", math.NaN(), 7); err == nil {
		t.Error("NaN scalar should fail")
	}
}

func TestCheckMatrix(t *testing.T) {
	t.Run("finite matrix passes", func(t *testing.T) {
		m := denseStub{rows: 2, cols: 2, values: []float64{1, 2, 3, 4}}
		if err := CheckMatrix("Fit", m, 2, 2, 0); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("NaN cell is reported", func(t *testing.T) {
		m := denseStub{rows: 2, cols: 2, values: []float64{1, math.NaN(), 3, 4}}
		err := CheckMatrix("Fit", m, 2, 2, 0)
		if err == nil {
			t.Fatal("expected an error for a NaN cell")
		}
		var instErr *NumericalInstabilityError
		if !As(err, &instErr) {
			t.Fatalf("expected NumericalInstabilityError, got %T", err)
		}
		if len(instErr.Values) != 1 || !math.IsNaN(instErr.Values[0]) {
			t.Errorf("unexpected reported values: %v", instErr.Values)
		}
	})
}

func TestSafeDivide(t *testing.T) {
	tests := []struct {
		name        string
		numerator   float64
		denominator float64
		want        float64
	}{
		{name: "normal division", numerator: 6, denominator: 3, want: 2},
		{name: "zero denominator", numerator: 5, denominator: 0, want: 0},
		{name: "near-zero denominator", numerator: 5, denominator: 1e-12, want: 0},
		{name: "zero numerator", numerator: 0, denominator: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeDivide(tt.numerator, tt.denominator); got != tt.want {
				t.Errorf("SafeDivide(%v, %v) = %v, want %v", tt.numerator, tt.denominator, got, tt.want)
			}
		})
	}
}
