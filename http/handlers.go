package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"heartguard/dataset"
	"heartguard/ml"
	"heartguard/monitoring"
	"heartguard/predict"
	"heartguard/store"
)

// Scorer is the prediction capability the handlers dispatch to.
type Scorer interface {
	PredictBatch(t *dataset.Table) ([]predict.Result, error)
	PredictSingle(t *dataset.Table) (float64, error)
}

// ModelInfo exposes the loaded artifact's metadata.
type ModelInfo interface {
	Info() ml.Metadata
}

// requiredColumns must be present in every CSV upload.
var requiredColumns = []string{"age", "cholesterol", "heart_rate"}

var (
	activeScorer Scorer
	activeModel  ModelInfo
	resultStore  *store.Store
	monitor      *monitoring.Hub
)

// SetScorer installs the predictor used by the prediction endpoints.
// A nil scorer makes them answer 503, matching the degraded mode after
// a failed model load.
func SetScorer(s Scorer) { activeScorer = s }

// SetModel installs the metadata source for health and info endpoints.
func SetModel(m ModelInfo) { activeModel = m }

// SetResultStore installs the download token store.
func SetResultStore(s *store.Store) { resultStore = s }

// SetMonitor installs the batch event hub.
func SetMonitor(h *monitoring.Hub) { monitor = h }

// PredictionResponse is the single-record prediction payload.
type PredictionResponse struct {
	PatientID  interface{} `json:"patient_id"`
	Prediction float64     `json:"prediction"`
	RiskLevel  string      `json:"risk_level"`
	Confidence float64     `json:"confidence"`
}

// BatchPredictionResponse is the CSV upload payload.
type BatchPredictionResponse struct {
	Message     string           `json:"message"`
	Predictions []predict.Result `json:"predictions"`
	DownloadURL string           `json:"download_url,omitempty"`
	Statistics  predict.Summary  `json:"statistics"`
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/model/info", handleModelInfo)
	mux.HandleFunc("POST /api/predict", handlePredictSingle)
	mux.HandleFunc("POST /api/predict/csv", handlePredictCSV)
	mux.HandleFunc("GET /api/download/{token}", handleDownload)
	mux.HandleFunc("GET /api/stats/batches", handleBatchStats)
	mux.HandleFunc("GET /api/ws/monitor", handleMonitorWS)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"api":          "healthy",
		"model_loaded": activeModel != nil,
	}
	if activeModel != nil {
		meta := activeModel.Info()
		payload["model_path"] = meta.ModelPath
		payload["model_type"] = meta.ModelType
		payload["features_count"] = meta.FeaturesCount
		if len(meta.PipelineSteps) > 0 {
			payload["pipeline_steps"] = meta.PipelineSteps
			payload["classifier_type"] = meta.ClassifierType
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if activeModel == nil {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(activeModel.Info())
}

func handlePredictSingle(w http.ResponseWriter, r *http.Request) {
	if activeScorer == nil {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var record map[string]interface{}
	if err := decoder.Decode(&record); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	prediction, err := activeScorer.PredictSingle(dataset.FromRecord(record))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to process record: %v", err), http.StatusBadRequest)
		return
	}

	patientID := interface{}("unknown")
	if id, ok := record["id"]; ok {
		patientID = id
	}

	riskLevel := "low"
	if prediction > 0.5 {
		riskLevel = "high"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PredictionResponse{
		PatientID:  patientID,
		Prediction: prediction,
		RiskLevel:  riskLevel,
		Confidence: math.Abs(prediction-0.5) * 2,
	})
}

func handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	if activeScorer == nil {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		http.Error(w, "file must be in CSV format", http.StatusBadRequest)
		return
	}

	table, err := dataset.ReadCSV(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse CSV: %v", err), http.StatusBadRequest)
		return
	}
	if err := dataset.RequireColumns(table, requiredColumns...); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := activeScorer.PredictBatch(table)
	if err != nil {
		if errors.Is(err, predict.ErrEmptyBatch) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("failed to process file: %v", err), http.StatusInternalServerError)
		return
	}

	probs := predict.Probabilities(results)
	summary, err := predict.Summarize(probs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var downloadURL string
	if resultStore != nil {
		token, err := resultStore.SaveBatch(r.Context(), toStoreRows(results))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to store results: %v", err), http.StatusInternalServerError)
			return
		}
		downloadURL = "/api/download/" + token

		if monitor != nil {
			if dist, err := predict.Describe(probs); err == nil {
				monitor.PublishBatch(monitoring.BatchEvent{
					Token:      token,
					Rows:       len(results),
					Statistics: dist,
				})
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BatchPredictionResponse{
		Message:     fmt.Sprintf("processed %d records", len(results)),
		Predictions: results,
		DownloadURL: downloadURL,
		Statistics:  summary,
	})
}

func handleDownload(w http.ResponseWriter, r *http.Request) {
	if resultStore == nil {
		http.Error(w, "result store unavailable", http.StatusServiceUnavailable)
		return
	}

	token := r.PathValue("token")
	body, err := resultStore.GetCSV(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="heart_risk_predictions.csv"`)
	w.Write(body)
}

func handleBatchStats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	batches := []monitoring.BatchEvent{}
	if monitor != nil {
		batches = monitor.Recent(limit)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"batches": batches})
}

func handleMonitorWS(w http.ResponseWriter, r *http.Request) {
	if monitor == nil {
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return
	}
	monitor.HandleWebSocket(w, r)
}

func toStoreRows(results []predict.Result) []store.Row {
	rows := make([]store.Row, len(results))
	for i, result := range results {
		rows[i] = store.Row{ID: fmt.Sprintf("%v", result.ID), Prediction: result.Prediction}
	}
	return rows
}
