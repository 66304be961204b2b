// Package predict orchestrates normalization, inference and result
// assembly for patient batches.
package predict

import (
	"errors"

	"heartguard/dataset"
)

// ErrEmptyBatch rejects zero-row input before any scoring happens.
var ErrEmptyBatch = errors.New("batch contains no rows")

// Model is what the predictor needs from a loaded artifact: one score
// per normalized row.
type Model interface {
	Score(t *dataset.Table) ([]float64, error)
}

// Result pairs one row's identifier with its prediction. The ID is the
// raw `id` cell when the input carried that column, else the zero-based
// row index.
type Result struct {
	ID         interface{} `json:"id"`
	Prediction float64     `json:"prediction"`
}

// Predictor runs the full batch path against a single loaded model.
// It is stateless apart from the model and safe for concurrent use.
type Predictor struct {
	model Model
}

func NewPredictor(model Model) *Predictor {
	return &Predictor{model: model}
}

// PredictBatch normalizes the raw batch, scores it and zips the output
// with row identifiers. Identifiers come from the original pre-pruning
// `id` column; normalization drops that column before scoring.
// Inference failures propagate untouched.
func (p *Predictor) PredictBatch(t *dataset.Table) ([]Result, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, ErrEmptyBatch
	}

	ids := rowIdentifiers(t)

	normalized := dataset.Normalize(t)
	scores, err := p.model.Score(normalized)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(scores))
	for i, score := range scores {
		results[i] = Result{ID: ids[i], Prediction: score}
	}
	return results, nil
}

// PredictSingle is PredictBatch over a one-row table. Keeping it on
// the batch path guarantees the two call shapes can never diverge.
func (p *Predictor) PredictSingle(t *dataset.Table) (float64, error) {
	results, err := p.PredictBatch(t)
	if err != nil {
		return 0, err
	}
	return results[0].Prediction, nil
}

func rowIdentifiers(t *dataset.Table) []interface{} {
	ids := make([]interface{}, t.NumRows())
	if t.HasColumn("id") {
		for i := range ids {
			ids[i] = t.Cell(i, "id").Interface()
		}
		return ids
	}
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Probabilities extracts the prediction column from a result set.
func Probabilities(results []Result) []float64 {
	probs := make([]float64, len(results))
	for i, r := range results {
		probs[i] = r.Prediction
	}
	return probs
}
