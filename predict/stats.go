package predict

import (
	"errors"
	"math"
	"sort"
)

// ErrNoPredictions is returned when statistics are requested over an
// empty probability vector; the mean is undefined there and callers
// must guard zero-row batches first.
var ErrNoPredictions = errors.New("no predictions to summarize")

// Summary is the batch statistics record. Std is the population
// standard deviation. RiskCount counts p > 0.5, NoRiskCount the rest,
// so the two always add up to the input length.
type Summary struct {
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Std         float64 `json:"std"`
	RiskCount   int     `json:"risk_count"`
	NoRiskCount int     `json:"no_risk_count"`
}

// Summarize aggregates a probability vector into the six-field batch
// statistics record. Empty input is an explicit error.
func Summarize(probs []float64) (Summary, error) {
	if len(probs) == 0 {
		return Summary{}, ErrNoPredictions
	}

	s := Summary{Min: probs[0], Max: probs[0]}
	sum := 0.0
	for _, p := range probs {
		sum += p
		if p < s.Min {
			s.Min = p
		}
		if p > s.Max {
			s.Max = p
		}
		if p > 0.5 {
			s.RiskCount++
		} else {
			s.NoRiskCount++
		}
	}
	s.Mean = sum / float64(len(probs))

	variance := 0.0
	for _, p := range probs {
		d := p - s.Mean
		variance += d * d
	}
	s.Std = math.Sqrt(variance / float64(len(probs)))

	return s, nil
}

// Distribution extends Summary with order statistics for monitoring
// views.
type Distribution struct {
	Summary
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// Describe computes the extended distribution of a probability vector.
func Describe(probs []float64) (Distribution, error) {
	summary, err := Summarize(probs)
	if err != nil {
		return Distribution{}, err
	}

	sorted := append([]float64(nil), probs...)
	sort.Float64s(sorted)

	return Distribution{
		Summary: summary,
		Median:  percentile(sorted, 50),
		Q25:     percentile(sorted, 25),
		Q75:     percentile(sorted, 75),
	}, nil
}

// percentile interpolates linearly between the two nearest ranks of an
// ascending-sorted slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
