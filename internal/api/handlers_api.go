package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"github.com/lox/laundrydesk/internal/chart"
	"github.com/lox/laundrydesk/internal/chatbot"
	"github.com/lox/laundrydesk/internal/feed"
	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/inventory"
	"github.com/lox/laundrydesk/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, trained := s.deps.Forecast.Cache().Age(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"message":       "Revenue prediction API is running",
		"model_trained": trained,
	})
}

type trainRequest struct {
	Strategy string `json:"strategy" validate:"omitempty,oneof=linear multi seasonal seasonal-mean"`
}

type trainResponse struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	RunID            string           `json:"run_id"`
	Strategy         string           `json:"strategy"`
	Metrics          forecast.Metrics `json:"metrics"`
	TrainingDataSize int              `json:"training_data_size"`
	TrainedAt        time.Time        `json:"trained_at"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Strategy == "" {
		req.Strategy = r.URL.Query().Get("strategy")
	}
	req.Strategy = strings.ToLower(strings.TrimSpace(req.Strategy))
	if err := validateStruct(r.Context(), &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snap, err := s.deps.Forecast.TrainFresh(r.Context(), forecast.Strategy(req.Strategy))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainResponse{
		Success:          true,
		Message:          "Model trained successfully with fresh data",
		RunID:            snap.RunID,
		Strategy:         string(snap.Model.Strategy()),
		Metrics:          snap.Metrics,
		TrainingDataSize: snap.Rows,
		TrainedAt:        snap.TrainedAt,
	})
}

type predictQuery struct {
	Days     int    `default:"30" validate:"min=0,max=365"`
	Strategy string `validate:"omitempty,oneof=linear multi seasonal seasonal-mean"`
}

func bindPredictQuery(r *http.Request) (predictQuery, error) {
	var q predictQuery
	if err := defaults.Set(&q); err != nil {
		return q, err
	}
	values := r.URL.Query()
	if v := strings.TrimSpace(values.Get("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, &badRequestError{msg: fmt.Sprintf("days must be an integer, got %q", v)}
		}
		q.Days = n
	}
	q.Strategy = strings.ToLower(strings.TrimSpace(values.Get("strategy")))
	return q, validateStruct(r.Context(), &q)
}

type predictionJSON struct {
	Date             string   `json:"date"`
	PredictedRevenue float64  `json:"predicted_revenue"`
	UpperBound       *float64 `json:"upper_bound,omitempty"`
	LowerBound       *float64 `json:"lower_bound,omitempty"`
}

type fittedJSON struct {
	Date          string  `json:"date"`
	ActualRevenue float64 `json:"actual_revenue"`
	FittedRevenue float64 `json:"fitted_revenue"`
}

type predictSummary struct {
	TotalPredicted float64 `json:"total_predicted"`
	AverageDaily   float64 `json:"average_daily"`
	Days           int     `json:"days"`
}

type modelInfo struct {
	forecast.Metrics
	RunID               string    `json:"run_id"`
	Strategy            string    `json:"strategy"`
	TrainedWithDataSize int       `json:"trained_with_data_size"`
	TrainedAt           time.Time `json:"trained_at"`
}

type predictResponse struct {
	Success      bool             `json:"success"`
	Predictions  []predictionJSON `json:"predictions"`
	FittedValues []fittedJSON     `json:"fitted_values"`
	Summary      predictSummary   `json:"summary"`
	ModelInfo    modelInfo        `json:"model_info"`
}

func newModelInfo(snap *forecast.Snapshot) modelInfo {
	return modelInfo{
		Metrics:             snap.Metrics,
		RunID:               snap.RunID,
		Strategy:            string(snap.Model.Strategy()),
		TrainedWithDataSize: snap.Rows,
		TrainedAt:           snap.TrainedAt,
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	q, err := bindPredictQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fc, err := s.deps.Forecast.Predict(r.Context(), q.Days, forecast.Strategy(q.Strategy))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := predictResponse{
		Success:      true,
		Predictions:  make([]predictionJSON, len(fc.Result.Predictions)),
		FittedValues: make([]fittedJSON, len(fc.Fitted)),
		Summary: predictSummary{
			TotalPredicted: fc.Result.TotalPredicted,
			AverageDaily:   fc.Result.AverageDaily,
			Days:           fc.Days,
		},
		ModelInfo: newModelInfo(fc.Snapshot),
	}
	for i, p := range fc.Result.Predictions {
		resp.Predictions[i] = predictionJSON{
			Date:             p.Date.Format(time.DateOnly),
			PredictedRevenue: p.PredictedRevenue,
			UpperBound:       p.UpperBound,
			LowerBound:       p.LowerBound,
		}
	}
	for i, f := range fc.Fitted {
		resp.FittedValues[i] = fittedJSON{
			Date:          f.Date.Format(time.DateOnly),
			ActualRevenue: f.ActualRevenue,
			FittedRevenue: f.FittedRevenue,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePredictChart draws the cached model when it matches the requested
// strategy and trains a fresh one otherwise.
func (s *Server) handlePredictChart(w http.ResponseWriter, r *http.Request) {
	q, err := bindPredictQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	strategy := forecast.Strategy(q.Strategy)
	if strategy == "" {
		strategy = s.deps.Forecast.DefaultStrategy()
	}

	snap := s.deps.Forecast.Cache().Load()
	if snap == nil || snap.Model.Strategy() != strategy {
		snap, err = s.deps.Forecast.TrainFresh(r.Context(), strategy)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	key := fmt.Sprintf("%s/%d", snap.RunID, q.Days)
	if data, ok := s.charts.Get(key); ok {
		writePNG(w, data)
		return
	}

	fc, err := forecast.Project(snap, q.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := chart.Render(chart.FromForecast(fc))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.charts.Set(key, data)
	writePNG(w, data)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

type observationJSON struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	obs, err := s.deps.Forecast.History(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]observationJSON, len(obs))
	for i, o := range obs {
		data[i] = observationJSON{Date: o.Date.Format(time.DateOnly), Revenue: o.Revenue}
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"data":          data,
		"total_records": len(data),
		"summary":       feed.Summarize(obs),
	})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inventory == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "inventory prediction is not configured"})
		return
	}
	preds, err := s.deps.Inventory.Predict(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if preds == nil {
		preds = []inventory.Prediction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"predictions": preds,
		"total_items": len(preds),
		"method":      "Moving Average",
		"description": fmt.Sprintf("Average daily usage from the last %d transactions", inventory.RecentTransactions),
	})
}

type runJSON struct {
	ID          string   `json:"id"`
	Strategy    string   `json:"strategy"`
	TrainedAt   string   `json:"trained_at"`
	DataSize    int      `json:"data_size"`
	MAE         float64  `json:"mae"`
	RMSE        float64  `json:"rmse"`
	R2          *float64 `json:"r2"`
	ErrorMetric string   `json:"error_metric"`
	ErrorValue  float64  `json:"error_value"`
}

func newRunJSON(run models.ModelRun) runJSON {
	out := runJSON{
		ID:          run.ID,
		Strategy:    run.Strategy,
		TrainedAt:   run.TrainedAt.UTC().Format(time.RFC3339),
		DataSize:    run.DataSize,
		MAE:         run.MAE,
		RMSE:        run.RMSE,
		ErrorMetric: run.ErrorMetric,
		ErrorValue:  run.ErrorValue,
	}
	if run.R2.Valid {
		r2 := run.R2.Float64
		out.R2 = &r2
	}
	return out
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"success": true, "trained": false}
	if snap := s.deps.Forecast.Cache().Load(); snap != nil {
		age, _ := s.deps.Forecast.Cache().Age(time.Now())
		resp["trained"] = true
		resp["model"] = newModelInfo(snap)
		resp["age_seconds"] = int(age.Seconds())
	}
	if s.deps.Runs != nil {
		runs, err := s.deps.Runs.GetModelRuns(10)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		recent := make([]runJSON, len(runs))
		for i, run := range runs {
			recent[i] = newRunJSON(run)
		}
		resp["recent_runs"] = recent
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatbotInfo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "chatbot is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Chatbot API is ready",
		"responder": s.deps.Chat.Name(),
		"faq_count": s.deps.Knowledge.Len(),
		"usage": map[string]any{
			"method":   "POST",
			"endpoint": "/api/chatbot",
			"body":     map[string]string{"message": "your question here"},
		},
	})
}

type chatRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "chatbot is not configured"})
		return
	}
	var req chatRequest
	if err := bindJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reply":   chatbot.Answer(r.Context(), s.deps.Chat, req.Message),
		"sender":  "bot",
	})
}

func (s *Server) handleChatbotReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Knowledge == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "chatbot is not configured"})
		return
	}
	n, err := s.deps.Knowledge.Reload(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "FAQ data reloaded successfully",
		"faq_count": n,
	})
}
