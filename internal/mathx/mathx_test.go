package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	if got := Clamp(0.5, 0, 1); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
	if got := Clamp(-0.1, 0, 1); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := Clamp(1.5, 0, 1); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
	if got := Clamp(-2, -1, 1); got != -1 {
		t.Fatalf("expected -1, got %f", got)
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(0.3, 0.5); got != 0.3 {
		t.Fatalf("finite value must pass through, got %f", got)
	}
	if got := Sanitize(math.NaN(), 0.5); got != 0.5 {
		t.Fatalf("NaN must map to fallback, got %f", got)
	}
	if got := Sanitize(math.Inf(1), 0.5); got != 0.5 {
		t.Fatalf("+Inf must map to fallback, got %f", got)
	}
	if got := Sanitize(math.Inf(-1), -0.2); got != -0.2 {
		t.Fatalf("-Inf must map to fallback, got %f", got)
	}
}

func TestIsFinite(t *testing.T) {
	cases := []struct {
		v    float64
		want bool
	}{
		{0, true},
		{-1.5, true},
		{math.MaxFloat64, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, c := range cases {
		if got := IsFinite(c.v); got != c.want {
			t.Fatalf("IsFinite(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestSign(t *testing.T) {
	if Sign(0.001) != 1 || Sign(-0.001) != -1 || Sign(0) != 0 {
		t.Fatal("sign mapping broken")
	}
	if Sign(math.NaN()) != 0 {
		t.Fatal("NaN must map to 0")
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float64{3, 4}); got != 5 {
		t.Fatalf("expected 5, got %f", got)
	}
	if got := Norm(nil); got != 0 {
		t.Fatalf("empty norm must be 0, got %f", got)
	}
}

func TestMeanStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(xs); got != 5 {
		t.Fatalf("expected mean 5, got %f", got)
	}
	if got := StdDev(xs); math.Abs(got-2) > 1e-12 {
		t.Fatalf("expected stddev 2, got %f", got)
	}
	if got := Mean(nil); got != 0 {
		t.Fatalf("empty mean must be 0, got %f", got)
	}
	if got := StdDev([]float64{1}); got != 0 {
		t.Fatalf("single-sample stddev must be 0, got %f", got)
	}
}
