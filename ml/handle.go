package ml

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"heartguard/dataset"
)

// Capabilities records which optional contracts the loaded artifact
// satisfies. Resolved once at load; scoring never re-probes the model.
type Capabilities struct {
	Probability  bool
	FeatureNames bool
	Staged       bool
}

// Metadata describes the loaded artifact. FeaturesCount is an int when
// the schema is introspectable and the string "unknown" otherwise.
type Metadata struct {
	ModelPath      string      `json:"model_path"`
	ModelType      string      `json:"model_type"`
	FeaturesCount  interface{} `json:"features_count"`
	ModelLoaded    bool        `json:"model_loaded"`
	PipelineSteps  []string    `json:"pipeline_steps,omitempty"`
	ClassifierType string      `json:"classifier_type,omitempty"`
}

// Handle owns the loaded classifier for the process lifetime. It is
// immutable after Load and safe for concurrent scoring.
type Handle struct {
	path  string
	kind  string
	model Classifier
	caps  Capabilities
	meta  Metadata
}

type artifactEnvelope struct {
	Type string `json:"type"`
}

// Load reads and decodes a model artifact. A missing or undecodable
// file yields a *LoadError; metadata introspection is best-effort and
// never fails the load.
func Load(path string) (*Handle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var envelope artifactEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	model, err := decodeArtifact(envelope.Type, raw)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	h := &Handle{path: path, kind: envelope.Type, model: model}
	h.caps = resolveCapabilities(model)
	h.meta = buildMetadata(h)

	log.Printf("Model loaded from %s (type=%s, features=%v)", path, envelope.Type, h.meta.FeaturesCount)
	return h, nil
}

func decodeArtifact(kind string, raw json.RawMessage) (Classifier, error) {
	switch kind {
	case "pipeline":
		return decodePipeline(raw)
	default:
		return decodeEstimator(kind, raw)
	}
}

func decodeEstimator(kind string, raw json.RawMessage) (Classifier, error) {
	switch kind {
	case "logistic_regression":
		model := &LogisticRegression{}
		if err := json.Unmarshal(raw, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	case "decision_tree":
		model := &DecisionTree{}
		if err := json.Unmarshal(raw, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported artifact type: %q", kind)
	}
}

func resolveCapabilities(model Classifier) Capabilities {
	caps := Capabilities{}
	if _, ok := model.(ProbaClassifier); ok {
		caps.Probability = true
	}
	if namer, ok := model.(FeatureNamer); ok && len(namer.FeatureNamesIn()) > 0 {
		caps.FeatureNames = true
	}
	if _, ok := model.(StagedPipeline); ok {
		caps.Staged = true
	}
	return caps
}

// featureCountStrategy tries one way of counting the artifact's input
// features. Strategies run in order at load time; the first success
// wins and failures fall through silently.
type featureCountStrategy func(Classifier) (int, bool)

var featureCountStrategies = []featureCountStrategy{
	countFromFeatureNames,
	countFromPipelineScaler,
}

func countFromFeatureNames(model Classifier) (int, bool) {
	namer, ok := model.(FeatureNamer)
	if !ok {
		return 0, false
	}
	names := namer.FeatureNamesIn()
	if len(names) == 0 {
		return 0, false
	}
	return len(names), true
}

func countFromPipelineScaler(model Classifier) (int, bool) {
	type scaled interface{ scalerWidth() (int, bool) }
	s, ok := model.(scaled)
	if !ok {
		return 0, false
	}
	return s.scalerWidth()
}

func buildMetadata(h *Handle) Metadata {
	meta := Metadata{
		ModelPath:     h.path,
		ModelType:     h.kind,
		FeaturesCount: "unknown",
		ModelLoaded:   true,
	}
	for _, strategy := range featureCountStrategies {
		if count, ok := strategy(h.model); ok {
			meta.FeaturesCount = count
			break
		}
	}
	if staged, ok := h.model.(StagedPipeline); ok {
		meta.PipelineSteps = staged.StageNames()
		meta.ClassifierType = staged.TerminalType()
	}
	return meta
}

// Info returns the metadata captured at load time.
func (h *Handle) Info() Metadata { return h.meta }

// Capabilities returns the capability descriptor resolved at load time.
func (h *Handle) Capabilities() Capabilities { return h.caps }

// Path returns the artifact location on disk.
func (h *Handle) Path() string { return h.path }

// FeatureNames reports the declared input schema when the artifact has
// one.
func (h *Handle) FeatureNames() ([]string, bool) {
	if !h.caps.FeatureNames {
		return nil, false
	}
	return h.model.(FeatureNamer).FeatureNamesIn(), true
}

// Score runs inference over a normalized table and returns one value
// per row: the positive-class probability when the artifact exposes
// probability output, the raw decision value otherwise. Schema
// mismatches and classifier failures come back as *InferenceError.
func (h *Handle) Score(t *dataset.Table) ([]float64, error) {
	matrix, err := h.alignMatrix(t)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	if h.caps.Probability {
		proba, err := h.model.(ProbaClassifier).PredictProba(matrix)
		if err != nil {
			return nil, &InferenceError{Err: err}
		}
		out := make([]float64, len(proba))
		for i, row := range proba {
			if len(row) < 2 {
				return nil, &InferenceError{Err: fmt.Errorf("probability output has %d classes, want 2", len(row))}
			}
			out[i] = row[1]
		}
		return out, nil
	}

	out, err := h.model.Predict(matrix)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	return out, nil
}

// alignMatrix projects the table onto the model's declared schema, or
// takes columns positionally when the artifact declares none. Missing
// columns and non-numeric cells are the schema-mismatch surface.
func (h *Handle) alignMatrix(t *dataset.Table) ([][]float64, error) {
	columns, ok := h.FeatureNames()
	if !ok {
		columns = t.Columns()
	}

	for _, name := range columns {
		if !t.HasColumn(name) {
			return nil, fmt.Errorf("missing feature column: %s", name)
		}
	}

	matrix := make([][]float64, t.NumRows())
	for r := range matrix {
		row := make([]float64, len(columns))
		for i, name := range columns {
			cell := t.Cell(r, name)
			if !cell.IsNumber() {
				return nil, fmt.Errorf("column %s row %d is not numeric", name, r)
			}
			row[i] = cell.Num
		}
		matrix[r] = row
	}
	return matrix, nil
}
