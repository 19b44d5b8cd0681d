package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/laundrydesk/internal/api"
	"github.com/lox/laundrydesk/internal/chatbot"
	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/inventory"
	"github.com/lox/laundrydesk/internal/models"
	"github.com/lox/laundrydesk/internal/store"
)

type stubSource struct {
	obs []models.Observation
	err error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Observations(context.Context) ([]models.Observation, error) {
	return s.obs, s.err
}

type stubInventory struct {
	preds []inventory.Prediction
	err   error
}

func (s *stubInventory) Predict(context.Context) ([]inventory.Prediction, error) {
	return s.preds, s.err
}

// linearSeries is 100, 110, 120, ... starting 2025-10-01.
func linearSeries(n int) []models.Observation {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Observation, n)
	for i := range out {
		out[i] = models.Observation{Date: start.AddDate(0, 0, i), Revenue: 100 + 10*float64(i)}
	}
	return out
}

var testFAQs = chatbot.StaticFAQs{
	{ID: 1, Question: "Jam buka laundry kapan?", Answer: "Kami buka setiap hari pukul 07.00 sampai 21.00."},
	{ID: 2, Question: "Berapa harga cuci kiloan?", Answer: "Cuci kiloan Rp7.000 per kg."},
}

func newTestServer(t *testing.T, src *stubSource, opts api.Options) (*api.Server, *forecast.Service) {
	t.Helper()
	st, err := store.Open(store.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := forecast.NewService(src, st, forecast.NewCache())
	kb := chatbot.NewKnowledgeBase(testFAQs)
	bot := chatbot.NewKeywordBot(kb, 0)
	_, err = kb.Reload(context.Background())
	require.NoError(t, err)

	srv := api.NewServer(api.Deps{
		Forecast:  svc,
		Inventory: &stubInventory{preds: []inventory.Prediction{{Name: "Deterjen", Status: inventory.StatusSafe}}},
		Chat:      bot,
		Knowledge: kb,
		Runs:      st,
	}, opts)
	return srv, svc
}

func do(t *testing.T, srv *api.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, svc := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	body := decode(t, do(t, srv, "GET", "/api/health", ""))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_trained"])

	_, err := svc.TrainFresh(context.Background(), forecast.StrategyLinear)
	require.NoError(t, err)

	body = decode(t, do(t, srv, "GET", "/api/health", ""))
	assert.Equal(t, true, body["model_trained"])
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{})

	w := do(t, srv, "OPTIONS", "/api/predict", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTrainEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "POST", "/api/train", `{"strategy":"linear"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Model trained successfully with fresh data", body["message"])
	assert.Equal(t, "linear", body["strategy"])
	assert.EqualValues(t, 14, body["training_data_size"])
	assert.NotEmpty(t, body["run_id"])

	m := body["metrics"].(map[string]any)
	assert.InDelta(t, 0, m["mae"], 1e-6)
	assert.InDelta(t, 1, m["r2"], 1e-9)
}

func TestTrainEndpoint_StrategyFromQuery(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "GET", "/api/train?strategy=seasonal-mean", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "seasonal-mean", decode(t, w)["strategy"])
}

func TestTrainEndpoint_StrategyIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "POST", "/api/train", `{"strategy":" Seasonal "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "seasonal", decode(t, w)["strategy"])

	w = do(t, srv, "GET", "/api/train?strategy=LINEAR", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "linear", decode(t, w)["strategy"])
}

func TestTrainEndpoint_UnknownStrategy(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "POST", "/api/train", `{"strategy":"arima"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["details"], "strategy must be one of: linear, multi, seasonal, seasonal-mean")
}

func TestTrainEndpoint_InsufficientData(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(5)}, api.Options{})

	w := do(t, srv, "POST", "/api/train", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestTrainEndpoint_SourceFailure(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{err: errors.New("connection refused")}, api.Options{})

	w := do(t, srv, "POST", "/api/train", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "connection refused")
}

func TestPredictEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "GET", "/api/predict?days=3&strategy=linear", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success     bool `json:"success"`
		Predictions []struct {
			Date             string   `json:"date"`
			PredictedRevenue float64  `json:"predicted_revenue"`
			UpperBound       *float64 `json:"upper_bound"`
			LowerBound       *float64 `json:"lower_bound"`
		} `json:"predictions"`
		FittedValues []struct {
			Date          string  `json:"date"`
			ActualRevenue float64 `json:"actual_revenue"`
		} `json:"fitted_values"`
		Summary struct {
			TotalPredicted float64 `json:"total_predicted"`
			AverageDaily   float64 `json:"average_daily"`
			Days           int     `json:"days"`
		} `json:"summary"`
		ModelInfo struct {
			Strategy            string `json:"strategy"`
			TrainedWithDataSize int    `json:"trained_with_data_size"`
		} `json:"model_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.True(t, body.Success)
	require.Len(t, body.Predictions, 3)
	assert.Equal(t, "2025-10-15", body.Predictions[0].Date)
	assert.InDelta(t, 240, body.Predictions[0].PredictedRevenue, 1e-6)
	assert.InDelta(t, 260, body.Predictions[2].PredictedRevenue, 1e-6)
	require.NotNil(t, body.Predictions[0].UpperBound)
	require.NotNil(t, body.Predictions[0].LowerBound)
	assert.InDelta(t, 240, *body.Predictions[0].UpperBound, 1e-6)
	assert.InDelta(t, 240, *body.Predictions[0].LowerBound, 1e-6)

	require.Len(t, body.FittedValues, 14)
	assert.Equal(t, "2025-10-01", body.FittedValues[0].Date)
	assert.InDelta(t, 100, body.FittedValues[0].ActualRevenue, 1e-9)

	assert.InDelta(t, 750, body.Summary.TotalPredicted, 1e-6)
	assert.InDelta(t, 250, body.Summary.AverageDaily, 1e-6)
	assert.Equal(t, 3, body.Summary.Days)
	assert.Equal(t, "linear", body.ModelInfo.Strategy)
	assert.Equal(t, 14, body.ModelInfo.TrainedWithDataSize)
}

func TestPredictEndpoint_DefaultsToThirtyDays(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	body := decode(t, do(t, srv, "GET", "/api/predict", ""))
	assert.Len(t, body["predictions"], 30)
	assert.Equal(t, "seasonal", body["model_info"].(map[string]any)["strategy"])
}

func TestPredictEndpoint_ZeroDays(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "GET", "/api/predict?days=0&strategy=linear", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Empty(t, body["predictions"])
	assert.EqualValues(t, 0, body["summary"].(map[string]any)["average_daily"])
}

func TestPredictEndpoint_InvalidDays(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	tests := []struct {
		query  string
		detail string
	}{
		{"days=abc", ""},
		{"days=-1", "days must be at least 0"},
		{"days=400", "days must be at most 365"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, srv, "GET", "/api/predict?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tt.detail != "" {
				assert.Contains(t, decode(t, w)["details"], tt.detail)
			}
		})
	}
}

func TestPredictChartEndpoint(t *testing.T) {
	t.Parallel()
	srv, svc := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	w := do(t, srv, "GET", "/api/predict/chart.png?days=7&strategy=linear", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	first := svc.Cache().Load()
	require.NotNil(t, first)

	// Same strategy reuses the cached model.
	w = do(t, srv, "GET", "/api/predict/chart.png?days=7&strategy=linear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, first, svc.Cache().Load())
}

func TestHistoricalEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(3)}, api.Options{})

	w := do(t, srv, "GET", "/api/historical", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["total_records"])

	data := body["data"].([]any)
	assert.Equal(t, map[string]any{"date": "2025-10-01", "revenue": 100.0}, data[0])

	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 330, summary["total_revenue"])
	assert.EqualValues(t, 110, summary["average_daily"])
	assert.EqualValues(t, 100, summary["min_revenue"])
	assert.EqualValues(t, 120, summary["max_revenue"])
}

func TestInventoryEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{})

	w := do(t, srv, "GET", "/api/inventory-prediction", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Moving Average", body["method"])
	assert.EqualValues(t, 1, body["total_items"])
}

func TestInventoryEndpoint_NotConfigured(t *testing.T) {
	t.Parallel()
	svc := forecast.NewService(&stubSource{}, nil, forecast.NewCache())
	srv := api.NewServer(api.Deps{Forecast: svc}, api.Options{})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, "GET", "/api/inventory-prediction", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, "POST", "/api/chatbot", `{"message":"halo"}`).Code)
}

func TestModelEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{obs: linearSeries(14)}, api.Options{})

	body := decode(t, do(t, srv, "GET", "/api/model", ""))
	assert.Equal(t, false, body["trained"])
	assert.Empty(t, body["recent_runs"])

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/train", `{"strategy":"linear"}`).Code)

	body = decode(t, do(t, srv, "GET", "/api/model", ""))
	assert.Equal(t, true, body["trained"])
	runs := body["recent_runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "linear", runs[0].(map[string]any)["strategy"])
	assert.Equal(t, "linear", body["model"].(map[string]any)["strategy"])
}

func TestChatbotEndpoints(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{ChatBurst: 10})

	info := decode(t, do(t, srv, "GET", "/api/chatbot", ""))
	assert.Equal(t, "Chatbot API is ready", info["message"])
	assert.EqualValues(t, 2, info["faq_count"])
	assert.Equal(t, "keyword", info["responder"])

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"match", "jam buka laundry", "Kami buka setiap hari pukul 07.00 sampai 21.00."},
		{"empty", "   ", chatbot.Greeting},
		{"no match", "apakah bisa antar jemput ke bandara", chatbot.Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]string{"message": tt.message})
			require.NoError(t, err)
			w := do(t, srv, "POST", "/api/chatbot", string(payload))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, tt.want, body["reply"])
			assert.Equal(t, "bot", body["sender"])
		})
	}

	reload := decode(t, do(t, srv, "POST", "/api/chatbot/reload", ""))
	assert.Equal(t, "FAQ data reloaded successfully", reload["message"])
	assert.EqualValues(t, 2, reload["faq_count"])
}

func TestChatbotEndpoint_MessageTooLong(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{})

	payload, err := json.Marshal(map[string]string{"message": strings.Repeat("a", 2001)})
	require.NoError(t, err)
	w := do(t, srv, "POST", "/api/chatbot", string(payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"], "message must be at most 2000 characters")
}

func TestChatbotEndpoint_RateLimited(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{ChatRPS: 0.001, ChatBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/chatbot", `{"message":"halo"}`).Code)
	w := do(t, srv, "POST", "/api/chatbot", `{"message":"halo"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestChatbotEndpoint_InvalidJSON(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSource{}, api.Options{})

	w := do(t, srv, "POST", "/api/chatbot", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
