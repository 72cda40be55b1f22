package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agridash/db"
	"agridash/ml"
	"agridash/soil"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

type predictResponse struct {
	Fertilizer     string `json:"fertilizer"`
	FertilizerType string `json:"fertilizer_type"`
}

type soilTestView struct {
	soil.Test
	StatusClasses map[string]string `json:"status_classes"`
}

type handlers struct {
	deps Deps
}

func RegisterHandlers(mux *http.ServeMux, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{deps: deps}

	h.handle(mux, "GET /api/health", h.handleHealth)
	h.handle(mux, "GET /api/ready", h.handleReady)
	h.handle(mux, "GET /api/options", h.handleOptions)
	h.handle(mux, "POST /api/predict", h.handlePredict)
	h.handle(mux, "POST /predict", h.handlePredict)
	h.handle(mux, "GET /api/model", h.handleModel)
	h.handle(mux, "GET /api/predictions", h.handlePredictions)
	h.handle(mux, "GET /api/training-log", h.handleTrainingLog)
	h.handle(mux, "POST /api/soil-tests", h.handleCreateSoilTest)
	h.handle(mux, "GET /api/soil-tests", h.handleListSoilTests)
	h.handle(mux, "GET /api/soil-tests/recommendation", h.handleRecommendation)
	if deps.Metrics != nil {
		mux.HandleFunc("GET /metrics", h.handleMetrics)
	}
}

// handle registers fn and records per-route metrics under pattern.
func (h *handlers) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	route := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		route = pattern[i+1:]
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Metrics == nil {
			fn(w, r)
			return
		}
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		fn(wrapped, r)
		h.deps.Metrics.ObserveRequest(r.Method, route, wrapped.statusCode, time.Since(start))
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.deps.Predictor == nil || !h.deps.Predictor.Available() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  ml.ErrModelUnavailable.Error(),
		})
		return
	}
	manifest, err := h.deps.Predictor.Manifest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"bundle_id": manifest.BundleID,
		"artifacts": h.artifactState(),
	})
}

func (h *handlers) artifactState() string {
	if h.deps.Watcher != nil && h.deps.Watcher.Stale() {
		return "stale"
	}
	return "fresh"
}

func (h *handlers) handleOptions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Predictor == nil {
		h.writeError(w, r, ml.ErrModelUnavailable)
		return
	}
	options, err := h.deps.Predictor.Options()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pred, bundleID, in, err := h.predict(r)
	if h.deps.Metrics != nil {
		h.deps.Metrics.ObservePrediction(string(ml.Kind(err)), time.Since(start))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.deps.RecordPredictions && h.deps.Store != nil {
		rec := db.PredictionRecord{
			RequestID:   GetRequestID(r.Context()),
			BundleID:    bundleID,
			N:           in.Nitrogen,
			P:           in.Phosphorus,
			K:           in.Potassium,
			Temperature: in.Temperature,
			Humidity:    in.Humidity,
			PH:          in.PH,
			Moisture:    in.Moisture,
			Crop:        ml.Normalize(in.Crop),
			Region:      ml.Normalize(in.Region),
			Month:       ml.Normalize(in.Month),
			Fertilizer:  pred.Fertilizer,
			Category:    pred.Category,
			Confidence:  pred.Confidence,
		}
		if _, err := h.deps.Store.SavePrediction(r.Context(), rec); err != nil {
			h.deps.Logger.Warn("failed to record prediction", zap.Error(err), zap.String("request_id", rec.RequestID))
		}
	}

	writeJSON(w, http.StatusOK, predictResponse{Fertilizer: pred.Fertilizer, FertilizerType: pred.Category})
}

func (h *handlers) predict(r *http.Request) (ml.Prediction, string, ml.Input, error) {
	if h.deps.Predictor == nil || !h.deps.Predictor.Available() {
		return ml.Prediction{}, "", ml.Input{}, ml.ErrModelUnavailable
	}
	in, err := decodePredictRequest(r)
	if err != nil {
		return ml.Prediction{}, "", ml.Input{}, err
	}
	manifest, err := h.deps.Predictor.Manifest()
	if err != nil {
		return ml.Prediction{}, "", in, err
	}
	pred, err := h.deps.Predictor.Predict(in)
	return pred, manifest.BundleID, in, err
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	if h.deps.Predictor == nil {
		h.writeError(w, r, ml.ErrModelUnavailable)
		return
	}
	manifest, err := h.deps.Predictor.Manifest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bundle_id":     manifest.BundleID,
		"model_type":    manifest.ModelType,
		"created_at":    manifest.CreatedAt,
		"num_classes":   manifest.NumClasses,
		"feature_names": manifest.FeatureNames,
		"artifacts":     h.artifactState(),
	})
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			h.writeError(w, r, &ml.InvalidInputError{Field: "limit", Reason: "must be an integer between 1 and 500"})
			return
		}
		limit = n
	}
	records, err := h.deps.Store.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	logs, err := h.deps.Store.LoadTrainingLog(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *handlers) handleCreateSoilTest(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	var test soil.Test
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&test); err != nil {
		h.writeError(w, r, &ml.InvalidInputError{Field: "body", Reason: err.Error()})
		return
	}
	test.ID = 0
	test.CreatedAt = time.Now().UTC()
	if err := test.Validate(); err != nil {
		h.writeError(w, r, &ml.InvalidInputError{Field: "soil_test", Reason: err.Error()})
		return
	}
	id, err := h.deps.Store.SaveSoilTest(r.Context(), test)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	test.ID = id
	writeJSON(w, http.StatusCreated, newSoilTestView(test))
}

func (h *handlers) handleListSoilTests(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	farmID := strings.TrimSpace(r.URL.Query().Get("farm_id"))
	if farmID == "" {
		h.writeError(w, r, &ml.InvalidInputError{Field: "farm_id", Reason: "is required"})
		return
	}
	tests, err := h.deps.Store.SoilTests(r.Context(), farmID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]soilTestView, len(tests))
	for i, t := range tests {
		views[i] = newSoilTestView(t)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handlers) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w, r) {
		return
	}
	q := r.URL.Query()
	farmID := strings.TrimSpace(q.Get("farm_id"))
	crop := strings.TrimSpace(q.Get("crop"))
	if farmID == "" {
		h.writeError(w, r, &ml.InvalidInputError{Field: "farm_id", Reason: "is required"})
		return
	}
	if crop == "" {
		h.writeError(w, r, &ml.InvalidInputError{Field: "crop", Reason: "is required"})
		return
	}
	tests, err := h.deps.Store.SoilTests(r.Context(), farmID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, soil.Recommend(tests, crop))
}

func (h *handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.deps.Metrics.SetModelAvailable(h.deps.Predictor != nil && h.deps.Predictor.Available())
	h.deps.Metrics.SetArtifactsStale(h.deps.Watcher != nil && h.deps.Watcher.Stale())
	h.deps.Metrics.Handler().ServeHTTP(w, r)
}

func (h *handlers) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if h.deps.Store != nil {
		return true
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable", Kind: "storage_unavailable"})
	return false
}

func newSoilTestView(t soil.Test) soilTestView {
	return soilTestView{
		Test: t,
		StatusClasses: map[string]string{
			"nitrogen":   soil.StatusClass(t.NitrogenLevel),
			"phosphorus": soil.StatusClass(t.PhosphorusLevel),
			"potassium":  soil.StatusClass(t.PotassiumLevel),
		},
	}
}

// writeError maps err onto a status code and the error body.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ml.Kind(err)
	resp := errorResponse{Error: err.Error(), Kind: string(kind), Field: ml.Field(err)}

	var status int
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
		resp = errorResponse{Error: "request body too large", Kind: string(ml.KindInvalidInput)}
	case ml.IsClientError(err):
		status = http.StatusBadRequest
	case kind == ml.KindModelUnavailable:
		status = http.StatusServiceUnavailable
	case kind == ml.KindArtifactMismatch:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		h.deps.Logger.Error("request failed",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"internal server error","kind":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(payload, '\n'))
}
