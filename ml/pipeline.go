package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StandardScaler is a preprocessing stage: (x - mean) / scale per
// feature, with the trained column order attached.
type StandardScaler struct {
	Features []string  `json:"feature_names"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return errors.New("scaler mean/scale length mismatch")
	}
	return nil
}

func (s *StandardScaler) Transform(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("scaler expected %d features, got %d", len(s.Mean), len(row))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			div := s.Scale[j]
			if div == 0 {
				div = 1
			}
			scaled[j] = (v - s.Mean[j]) / div
		}
		out[i] = scaled
	}
	return out, nil
}

// FeatureNamesOut reports the schema the scaler emits, used as a
// fallback when the terminal estimator declares no feature names.
func (s *StandardScaler) FeatureNamesOut() []string {
	if len(s.Features) == 0 {
		return nil
	}
	return append([]string(nil), s.Features...)
}

// PipelineModel chains named stages: zero or more scalers followed by
// a terminal estimator.
type PipelineModel struct {
	stageNames []string
	scalers    []*StandardScaler
	terminal   Classifier
	termType   string
}

// probaPipeline is the pipeline variant whose terminal estimator has
// probability output. Keeping it a separate type means the capability
// check stays a plain type assertion at load time.
type probaPipeline struct {
	*PipelineModel
}

func (p *probaPipeline) PredictProba(features [][]float64) ([][]float64, error) {
	transformed, err := p.transform(features)
	if err != nil {
		return nil, err
	}
	return p.terminal.(ProbaClassifier).PredictProba(transformed)
}

func decodePipeline(raw json.RawMessage) (Classifier, error) {
	var envelope struct {
		Stages []json.RawMessage `json:"stages"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}

	p := &PipelineModel{}
	for i, stageRaw := range envelope.Stages {
		var head struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(stageRaw, &head); err != nil {
			return nil, err
		}
		if head.Name == "" {
			head.Name = fmt.Sprintf("stage_%d", i)
		}
		p.stageNames = append(p.stageNames, head.Name)

		last := i == len(envelope.Stages)-1
		switch head.Type {
		case "standard_scaler":
			if last {
				return nil, errors.New("pipeline terminates in a scaler")
			}
			scaler := &StandardScaler{}
			if err := json.Unmarshal(stageRaw, scaler); err != nil {
				return nil, err
			}
			if err := scaler.validate(); err != nil {
				return nil, err
			}
			p.scalers = append(p.scalers, scaler)
		default:
			if !last {
				return nil, fmt.Errorf("unsupported intermediate stage type: %s", head.Type)
			}
			terminal, err := decodeEstimator(head.Type, stageRaw)
			if err != nil {
				return nil, err
			}
			p.terminal = terminal
			p.termType = head.Type
		}
	}
	if p.terminal == nil {
		return nil, errors.New("pipeline has no terminal estimator")
	}
	if _, ok := p.terminal.(ProbaClassifier); ok {
		return &probaPipeline{p}, nil
	}
	return p, nil
}

func (p *PipelineModel) transform(features [][]float64) ([][]float64, error) {
	var err error
	for _, scaler := range p.scalers {
		features, err = scaler.Transform(features)
		if err != nil {
			return nil, err
		}
	}
	return features, nil
}

func (p *PipelineModel) Predict(features [][]float64) ([]float64, error) {
	transformed, err := p.transform(features)
	if err != nil {
		return nil, err
	}
	return p.terminal.Predict(transformed)
}

func (p *PipelineModel) StageNames() []string {
	return append([]string(nil), p.stageNames...)
}

func (p *PipelineModel) Terminal() Classifier { return p.terminal }

// TerminalType is the declared type name of the terminal estimator.
func (p *PipelineModel) TerminalType() string { return p.termType }

// scalerWidth reports the input width of the first preprocessing
// stage, used for feature counting when no stage declares names.
func (p *PipelineModel) scalerWidth() (int, bool) {
	for _, scaler := range p.scalers {
		if len(scaler.Mean) > 0 {
			return len(scaler.Mean), true
		}
	}
	return 0, false
}

// FeatureNamesIn prefers the terminal estimator's declared schema and
// falls back to the first scaler's output schema.
func (p *PipelineModel) FeatureNamesIn() []string {
	if namer, ok := p.terminal.(FeatureNamer); ok {
		if names := namer.FeatureNamesIn(); len(names) > 0 {
			return names
		}
	}
	for _, scaler := range p.scalers {
		if names := scaler.FeatureNamesOut(); len(names) > 0 {
			return names
		}
	}
	return nil
}
