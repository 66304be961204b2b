package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"heartguard/dataset"
	"heartguard/ml"
	"heartguard/predict"
	"heartguard/store"
)

type fakeScorer struct {
	single    float64
	singleErr error
	batchErr  error
}

func (f *fakeScorer) PredictSingle(t *dataset.Table) (float64, error) {
	if f.singleErr != nil {
		return 0, f.singleErr
	}
	return f.single, nil
}

func (f *fakeScorer) PredictBatch(t *dataset.Table) ([]predict.Result, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]predict.Result, t.NumRows())
	for i := range results {
		results[i] = predict.Result{ID: i, Prediction: 0.8}
	}
	return results, nil
}

type fakeModel struct {
	meta ml.Metadata
}

func (f *fakeModel) Info() ml.Metadata { return f.meta }

func resetCollaborators(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetScorer(nil)
		SetModel(nil)
		SetResultStore(nil)
		SetMonitor(nil)
	})
	SetScorer(nil)
	SetModel(nil)
	SetResultStore(nil)
	SetMonitor(nil)
}

func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	return mux
}

func TestHealthWithoutModel(t *testing.T) {
	resetCollaborators(t)
	mux := newTestMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["api"] != "healthy" {
		t.Errorf("api = %v", payload["api"])
	}
	if payload["model_loaded"] != false {
		t.Errorf("model_loaded = %v, want false", payload["model_loaded"])
	}
}

func TestHealthWithModel(t *testing.T) {
	resetCollaborators(t)
	SetModel(&fakeModel{meta: ml.Metadata{
		ModelPath:      "models/heart_risk_model.json",
		ModelType:      "pipeline",
		FeaturesCount:  5,
		ModelLoaded:    true,
		PipelineSteps:  []string{"scaler", "classifier"},
		ClassifierType: "logistic_regression",
	}})
	mux := newTestMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["model_loaded"] != true {
		t.Errorf("model_loaded = %v, want true", payload["model_loaded"])
	}
	if payload["model_type"] != "pipeline" {
		t.Errorf("model_type = %v", payload["model_type"])
	}
	if payload["classifier_type"] != "logistic_regression" {
		t.Errorf("classifier_type = %v", payload["classifier_type"])
	}
}

func TestModelInfoUnavailable(t *testing.T) {
	resetCollaborators(t)
	mux := newTestMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/model/info", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPredictSingle(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{single: 0.82})
	mux := newTestMux()

	body := strings.NewReader(`{"id": 7, "age": 55, "cholesterol": 240, "heart_rate": 72, "gender": "male"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp PredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Prediction != 0.82 {
		t.Errorf("prediction = %v, want 0.82", resp.Prediction)
	}
	if resp.RiskLevel != "high" {
		t.Errorf("risk_level = %q, want high", resp.RiskLevel)
	}
	if diff := resp.Confidence - 0.64; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("confidence = %v, want 0.64", resp.Confidence)
	}
	if id, ok := resp.PatientID.(float64); !ok || id != 7 {
		t.Errorf("patient_id = %v, want 7", resp.PatientID)
	}
}

func TestPredictSingleWithoutScorer(t *testing.T) {
	resetCollaborators(t)
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"age": 55}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPredictSingleInvalidJSON(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{})
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPredictSingleScorerError(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{singleErr: errors.New("column missing: age")})
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"cholesterol": 240}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestPredictCSV(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{})

	resultStore, err := store.Open(filepath.Join(t.TempDir(), "results.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer resultStore.Close()
	SetResultStore(resultStore)

	mux := newTestMux()

	csv := "id,age,cholesterol,heart_rate\n1,55,240,72\n2,61,210,80\n"
	body, contentType := multipartCSV(t, "patients.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp BatchPredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Predictions) != 2 {
		t.Fatalf("predictions = %d, want 2", len(resp.Predictions))
	}
	if resp.Statistics.RiskCount != 2 {
		t.Errorf("risk_count = %d, want 2", resp.Statistics.RiskCount)
	}
	if !strings.HasPrefix(resp.DownloadURL, "/api/download/") {
		t.Fatalf("download_url = %q", resp.DownloadURL)
	}

	// the token in the URL resolves through the store
	token := strings.TrimPrefix(resp.DownloadURL, "/api/download/")
	if _, err := resultStore.GetCSV(context.Background(), token); err != nil {
		t.Errorf("stored batch not retrievable: %v", err)
	}
}

func TestPredictCSVRejectsWrongExtension(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{})
	mux := newTestMux()

	body, contentType := multipartCSV(t, "patients.txt", "age,cholesterol,heart_rate\n55,240,72\n")
	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPredictCSVMissingRequiredColumn(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{})
	mux := newTestMux()

	body, contentType := multipartCSV(t, "patients.csv", "age,cholesterol\n55,240\n")
	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "heart_rate") {
		t.Errorf("error should name the missing column: %s", rec.Body.String())
	}
}

func TestPredictCSVInferenceFailure(t *testing.T) {
	resetCollaborators(t)
	SetScorer(&fakeScorer{batchErr: &ml.InferenceError{Err: errors.New("shape mismatch")}})
	mux := newTestMux()

	body, contentType := multipartCSV(t, "patients.csv", "age,cholesterol,heart_rate\n55,240,72\n")
	req := httptest.NewRequest(http.MethodPost, "/api/predict/csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestDownload(t *testing.T) {
	resetCollaborators(t)

	resultStore, err := store.Open(filepath.Join(t.TempDir(), "results.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer resultStore.Close()
	SetResultStore(resultStore)

	token, err := resultStore.SaveBatch(context.Background(),
		[]store.Row{{ID: "1", Prediction: 0.8}})
	if err != nil {
		t.Fatalf("save batch: %v", err)
	}

	mux := newTestMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/"+token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "heart_risk_predictions.csv") {
		t.Errorf("content disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "id,prediction\n1,0.8\n" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/0000000000000000", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token status = %d, want 404", rec.Code)
	}
}

func TestBatchStatsEmpty(t *testing.T) {
	resetCollaborators(t)
	mux := newTestMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/batches", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Batches []interface{} `json:"batches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Batches == nil {
		t.Error("batches should encode as an empty array, not null")
	}
}
