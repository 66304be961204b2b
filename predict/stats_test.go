package predict

import (
	"errors"
	"math"
	"testing"
)

func TestSummarizeScenario(t *testing.T) {
	probs := []float64{0.2, 0.6, 0.9, 0.4}

	s, err := Summarize(probs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(s.Mean-0.525) > 1e-12 {
		t.Errorf("mean = %v, want 0.525", s.Mean)
	}
	if s.Min != 0.2 || s.Max != 0.9 {
		t.Errorf("min/max = %v/%v, want 0.2/0.9", s.Min, s.Max)
	}
	if s.RiskCount != 2 || s.NoRiskCount != 2 {
		t.Errorf("risk split = %d/%d, want 2/2", s.RiskCount, s.NoRiskCount)
	}
	if want := math.Sqrt(0.066875); math.Abs(s.Std-want) > 1e-12 {
		t.Errorf("std = %v, want %v", s.Std, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoPredictions) {
		t.Fatalf("expected ErrNoPredictions, got %v", err)
	}
}

func TestSummarizeBoundaryProbability(t *testing.T) {
	// exactly 0.5 counts as no-risk
	s, err := Summarize([]float64{0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RiskCount != 0 || s.NoRiskCount != 1 {
		t.Errorf("risk split = %d/%d, want 0/1", s.RiskCount, s.NoRiskCount)
	}
}

func TestSummarizeInvariants(t *testing.T) {
	cases := [][]float64{
		{0.5},
		{0.0, 1.0},
		{0.1, 0.1, 0.1},
		{0.99, 0.51, 0.49, 0.01, 0.5},
	}
	for _, probs := range cases {
		s, err := Summarize(probs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.RiskCount+s.NoRiskCount != len(probs) {
			t.Errorf("%v: counts %d+%d != %d", probs, s.RiskCount, s.NoRiskCount, len(probs))
		}
		if s.Min > s.Mean || s.Mean > s.Max {
			t.Errorf("%v: mean %v outside [%v, %v]", probs, s.Mean, s.Min, s.Max)
		}
		if s.Std < 0 {
			t.Errorf("%v: negative std %v", probs, s.Std)
		}
	}
}

func TestDescribeQuartiles(t *testing.T) {
	probs := []float64{0.2, 0.6, 0.9, 0.4}

	d, err := Describe(probs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(d.Median-0.5) > 1e-12 {
		t.Errorf("median = %v, want 0.5", d.Median)
	}
	if math.Abs(d.Q25-0.35) > 1e-12 {
		t.Errorf("q25 = %v, want 0.35", d.Q25)
	}
	if math.Abs(d.Q75-0.675) > 1e-12 {
		t.Errorf("q75 = %v, want 0.675", d.Q75)
	}
}

func TestDescribeSingleValue(t *testing.T) {
	d, err := Describe([]float64{0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Median != 0.7 || d.Q25 != 0.7 || d.Q75 != 0.7 {
		t.Errorf("single-value quartiles = %v/%v/%v, want all 0.7", d.Q25, d.Median, d.Q75)
	}
}

func TestDescribeDoesNotMutateInput(t *testing.T) {
	probs := []float64{0.9, 0.1, 0.5}
	if _, err := Describe(probs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probs[0] != 0.9 || probs[1] != 0.1 || probs[2] != 0.5 {
		t.Errorf("input mutated: %v", probs)
	}
}
