package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lox/laundrydesk/internal/chart"
	"github.com/lox/laundrydesk/internal/chatbot"
	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/inventory"
	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/models"
)

// InventoryPredictor estimates stock outlook.
type InventoryPredictor interface {
	Predict(ctx context.Context) ([]inventory.Prediction, error)
}

// RunLister lists recorded model trainings.
type RunLister interface {
	GetModelRuns(limit int) ([]models.ModelRun, error)
}

// Deps are the services behind the HTTP API. Inventory, Chat and Runs may be
// nil, in which case their endpoints report the feature as unavailable.
type Deps struct {
	Forecast  *forecast.Service
	Inventory InventoryPredictor
	Chat      chatbot.Responder
	Knowledge *chatbot.KnowledgeBase
	Runs      RunLister
}

type Options struct {
	Port      string
	ChatRPS   float64
	ChatBurst int
	ChartTTL  time.Duration
}

type Server struct {
	deps    Deps
	port    string
	charts  *chart.Cache
	limiter *clientLimiter
	log     zerolog.Logger
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.Port == "" {
		opts.Port = "5000"
	}
	if opts.ChatRPS <= 0 {
		opts.ChatRPS = 1
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}
	if opts.ChartTTL <= 0 {
		opts.ChartTTL = 5 * time.Minute
	}
	return &Server{
		deps:    deps,
		port:    opts.Port,
		charts:  chart.NewCache(opts.ChartTTL),
		limiter: newClientLimiter(opts.ChatRPS, opts.ChatBurst),
		log:     logging.Component("api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("GET /api/predict", s.handlePredict)
	mux.HandleFunc("GET /api/predict/chart.png", s.handlePredictChart)
	mux.HandleFunc("GET /api/historical", s.handleHistorical)
	mux.HandleFunc("GET /api/inventory-prediction", s.handleInventory)
	mux.HandleFunc("GET /api/model", s.handleModel)
	mux.HandleFunc("GET /api/chatbot", s.handleChatbotInfo)
	mux.Handle("POST /api/chatbot", s.limiter.middleware(http.HandlerFunc(s.handleChatbot)))
	mux.Handle("GET /api/chatbot/reload", s.limiter.middleware(http.HandlerFunc(s.handleChatbotReload)))
	mux.Handle("POST /api/chatbot/reload", s.limiter.middleware(http.HandlerFunc(s.handleChatbotReload)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logRequests(cors(mux))
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", server.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
