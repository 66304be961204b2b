// Package ml owns the serialized classifier artifact: loading,
// capability discovery, metadata introspection and scoring.
package ml

import "fmt"

// Classifier is the minimal contract every artifact satisfies: score a
// numeric feature matrix and return one raw decision value per row.
type Classifier interface {
	Predict(features [][]float64) ([]float64, error)
}

// ProbaClassifier is the optional probability capability. PredictProba
// returns one row per input with the per-class probabilities in class
// order; the positive class is the second column.
type ProbaClassifier interface {
	Classifier
	PredictProba(features [][]float64) ([][]float64, error)
}

// FeatureNamer is the optional capability of declaring the exact input
// schema the artifact was trained on.
type FeatureNamer interface {
	FeatureNamesIn() []string
}

// StagedPipeline is the optional capability of exposing a staged view:
// named transformation stages ending in a terminal estimator.
type StagedPipeline interface {
	StageNames() []string
	TerminalType() string
}

// LoadError reports an artifact that is missing on disk or cannot be
// deserialized. It is fatal to the prediction capability but not to
// the process.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError reports a classifier call that failed during scoring,
// typically a schema mismatch surfacing after normalization.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
