package ml

import (
	"errors"
	"fmt"
	"math"
)

// LogisticRegression is a binary classifier artifact with a declared
// input schema. Positive-class probability is the sigmoid of the
// linear score.
type LogisticRegression struct {
	Features  []string  `json:"feature_names"`
	Coef      []float64 `json:"coefficients"`
	Intercept float64   `json:"intercept"`
}

func (m *LogisticRegression) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("logistic regression has no coefficients")
	}
	if len(m.Features) != 0 && len(m.Features) != len(m.Coef) {
		return fmt.Errorf("feature names (%d) do not match coefficients (%d)",
			len(m.Features), len(m.Coef))
	}
	return nil
}

func (m *LogisticRegression) score(row []float64) (float64, error) {
	if len(row) != len(m.Coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coef), len(row))
	}
	z := m.Intercept
	for i, v := range row {
		z += m.Coef[i] * v
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// Predict returns the hard 0/1 label per row at the 0.5 threshold.
func (m *LogisticRegression) Predict(features [][]float64) ([]float64, error) {
	labels := make([]float64, len(features))
	for i, row := range features {
		p, err := m.score(row)
		if err != nil {
			return nil, err
		}
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// PredictProba returns [P(class 0), P(class 1)] per row.
func (m *LogisticRegression) PredictProba(features [][]float64) ([][]float64, error) {
	probs := make([][]float64, len(features))
	for i, row := range features {
		p, err := m.score(row)
		if err != nil {
			return nil, err
		}
		probs[i] = []float64{1 - p, p}
	}
	return probs, nil
}

func (m *LogisticRegression) FeatureNamesIn() []string {
	if len(m.Features) == 0 {
		return nil
	}
	return append([]string(nil), m.Features...)
}
