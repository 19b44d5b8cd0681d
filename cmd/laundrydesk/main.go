package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/lox/laundrydesk/internal/api"
	"github.com/lox/laundrydesk/internal/chart"
	"github.com/lox/laundrydesk/internal/chatbot"
	"github.com/lox/laundrydesk/internal/feed"
	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/inventory"
	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/scheduler"
	"github.com/lox/laundrydesk/internal/store"
	"github.com/lox/laundrydesk/internal/supabase"
)

type Globals struct {
	LogLevel  string `help:"Log level." default:"info" env:"LOG_LEVEL"`
	LogFormat string `help:"Log format." default:"console" enum:"console,json" env:"LOG_FORMAT"`
	DB        string `help:"SQLite database path; :memory: keeps run history ephemeral." default:":memory:" env:"DATABASE_PATH"`

	SupabaseURL string `help:"Supabase project URL." env:"SUPABASE_URL,VITE_SUPABASE_URL,NEXT_PUBLIC_SUPABASE_URL"`
	SupabaseKey string `help:"Supabase API key." env:"SUPABASE_KEY,SUPABASE_ANON_KEY,VITE_SUPABASE_ANON_KEY,NEXT_PUBLIC_SUPABASE_ANON_KEY"`

	Source      string        `help:"Revenue feed." default:"supabase" enum:"supabase,ftp" env:"REVENUE_SOURCE"`
	FTPAddr     string        `help:"FTP server host:port for the CSV export." env:"FTP_ADDR"`
	FTPUser     string        `help:"FTP user; anonymous when empty." env:"FTP_USER"`
	FTPPassword string        `help:"FTP password." env:"FTP_PASSWORD"`
	FTPPath     string        `help:"Path of the financials CSV on the FTP server." default:"financials.csv" env:"FTP_PATH"`
	FTPTimeout  time.Duration `help:"FTP dial timeout." default:"30s" env:"FTP_TIMEOUT"`

	Strategy   string `help:"Default forecasting strategy." default:"seasonal" enum:"linear,multi,seasonal,seasonal-mean" env:"FORECAST_STRATEGY"`
	MaxGapDays int    `help:"Drop history before the last gap longer than this many days; 0 keeps everything." default:"21" env:"MAX_GAP_DAYS"`

	GroqAPIKey string `help:"Groq API key; enables the LLM chatbot." env:"GROQ_API_KEY"`
	LLMBaseURL string `help:"OpenAI compatible endpoint." default:"https://api.groq.com/openai/v1" env:"LLM_BASE_URL"`
	LLMModel   string `help:"Chat model." default:"llama3-8b-8192" env:"LLM_MODEL"`
}

type CLI struct {
	Globals

	Serve      ServeCmd      `cmd:"" default:"1" help:"Run the HTTP API."`
	Train      TrainCmd      `cmd:"" help:"Train a model on fresh data and print its metrics."`
	Predict    PredictCmd    `cmd:"" help:"Forecast daily revenue."`
	Historical HistoricalCmd `cmd:"" help:"Print the daily revenue series."`
	Inventory  InventoryCmd  `cmd:"" help:"Estimate remaining days of stock."`
	Chat       ChatCmd       `cmd:"" help:"Ask the FAQ chatbot a question."`
}

// app holds the wired services shared by every command.
type app struct {
	store     *store.Store
	db        *supabase.Client
	forecast  *forecast.Service
	knowledge *chatbot.KnowledgeBase
	chat      chatbot.Responder
}

func (g *Globals) open() (*app, error) {
	if g.DB != store.MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(g.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}

	db, err := supabase.New(g.SupabaseURL, g.SupabaseKey)
	switch {
	case err == nil:
		a.db = db
	case errors.Is(err, supabase.ErrNotConfigured) && g.Source == "ftp":
		log.Warn().Msg("supabase not configured; inventory and FAQ loading disabled")
	default:
		st.Close()
		return nil, err
	}

	var src feed.Source
	switch g.Source {
	case "ftp":
		if g.FTPAddr == "" {
			st.Close()
			return nil, errors.New("--ftp-addr is required for the ftp source")
		}
		src = feed.NewFTPSource(feed.FTPConfig{
			Addr:     g.FTPAddr,
			User:     g.FTPUser,
			Password: g.FTPPassword,
			Path:     g.FTPPath,
			Timeout:  g.FTPTimeout,
		})
	default:
		src = feed.NewSupabaseSource(db)
	}

	a.forecast = forecast.NewService(feed.NewRecorded(src, st), st, forecast.NewCache(),
		forecast.WithDefaultStrategy(forecast.Strategy(g.Strategy)),
		forecast.WithMaxGapDays(g.MaxGapDays),
	)

	if a.db != nil {
		a.knowledge = chatbot.NewKnowledgeBase(chatbot.NewSupabaseFAQs(a.db))
		a.chat = g.responder(a.knowledge)
	}
	return a, nil
}

// responder prefers the LLM when a key is configured and falls back to
// keyword matching otherwise.
func (g *Globals) responder(kb *chatbot.KnowledgeBase) chatbot.Responder {
	bot, err := chatbot.NewLLMBot(chatbot.LLMConfig{
		APIKey:  g.GroqAPIKey,
		BaseURL: g.LLMBaseURL,
		Model:   g.LLMModel,
	}, kb)
	if err == nil {
		return bot
	}
	log.Info().Msg("no llm api key; using keyword chatbot")
	return chatbot.NewKeywordBot(kb, chatbot.DefaultMatchThreshold)
}

func (a *app) Close() error {
	return a.store.Close()
}

type ServeCmd struct {
	Port            string        `help:"HTTP server port." default:"5000" env:"PORT"`
	NoSchedule      bool          `help:"Disable background retraining and FAQ reloads." env:"NO_SCHEDULE"`
	RetrainInterval time.Duration `help:"How often to refresh the cached model." default:"1h" env:"RETRAIN_INTERVAL"`
	FAQInterval     time.Duration `help:"How often to reload the FAQ table." default:"6h" env:"FAQ_INTERVAL"`
	ChatRPS         float64       `help:"Chatbot requests per second per client." default:"1" env:"CHAT_RPS"`
	ChatBurst       int           `help:"Chatbot burst per client." default:"5" env:"CHAT_BURST"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := api.Deps{
		Forecast: a.forecast,
		Runs:     a.store,
	}
	if a.db != nil {
		deps.Inventory = inventory.NewPredictor(a.db)
		deps.Chat = a.chat
		deps.Knowledge = a.knowledge
	}

	if a.knowledge != nil {
		primeKnowledge(ctx, a.knowledge)
	}

	if !c.NoSchedule {
		var faqs scheduler.Reloader
		if a.knowledge != nil {
			faqs = a.knowledge
		}
		sched := scheduler.New(a.forecast, faqs, scheduler.Config{
			TrainInterval:  c.RetrainInterval,
			ReloadInterval: c.FAQInterval,
		})
		go sched.Run(ctx)
	} else {
		log.Info().Msg("background jobs disabled (--no-schedule)")
	}

	server := api.NewServer(deps, api.Options{
		Port:      c.Port,
		ChatRPS:   c.ChatRPS,
		ChatBurst: c.ChatBurst,
	})
	return server.Run(ctx)
}

// primeKnowledge loads the FAQ set before the API starts answering. A failure
// is logged and left for the scheduler or a manual reload to recover.
func primeKnowledge(ctx context.Context, kb *chatbot.KnowledgeBase) {
	n, err := kb.Reload(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("initial faq load failed")
		return
	}
	log.Info().Int("faqs", n).Msg("faqs loaded")
}

type TrainCmd struct {
	Strategy string `help:"Strategy to train (linear, multi, seasonal, seasonal-mean); defaults to --strategy."`
}

func (c *TrainCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	strategy, err := optionalStrategy(c.Strategy)
	if err != nil {
		return err
	}
	snap, err := a.forecast.TrainFresh(context.Background(), strategy)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"run_id":             snap.RunID,
		"strategy":           snap.Model.Strategy(),
		"training_data_size": snap.Rows,
		"metrics":            snap.Metrics,
	})
}

type PredictCmd struct {
	Days     int    `help:"Days to forecast." default:"30"`
	Strategy string `help:"Strategy to use (linear, multi, seasonal, seasonal-mean); defaults to --strategy."`
	Chart    string `help:"Also write a PNG chart to this path." type:"path"`
}

func (c *PredictCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	strategy, err := optionalStrategy(c.Strategy)
	if err != nil {
		return err
	}
	fc, err := a.forecast.Predict(context.Background(), c.Days, strategy)
	if err != nil {
		return err
	}

	if c.Chart != "" {
		if err := writeChart(c.Chart, fc); err != nil {
			return err
		}
		log.Info().Str("path", c.Chart).Msg("chart written")
	}

	fmt.Printf("%-12s %14s %14s %14s\n", "date", "predicted", "lower", "upper")
	for _, p := range fc.Result.Predictions {
		fmt.Printf("%-12s %14.0f %14.0f %14.0f\n",
			p.Date.Format(time.DateOnly), p.PredictedRevenue, deref(p.LowerBound), deref(p.UpperBound))
	}
	fmt.Printf("\n%s over %d days: total %.0f, average %.0f/day (MAE %.0f)\n",
		fc.Snapshot.Model.Strategy(), fc.Days, fc.Result.TotalPredicted, fc.Result.AverageDaily, fc.Snapshot.Metrics.MAE)
	return nil
}

type HistoricalCmd struct {
	JSON bool `help:"Print the series as JSON."`
}

func (c *HistoricalCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	obs, err := a.forecast.History(context.Background())
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(obs)
	}
	for _, o := range obs {
		fmt.Printf("%s %14.0f\n", o.Date.Format(time.DateOnly), o.Revenue)
	}
	s := feed.Summarize(obs)
	fmt.Printf("\n%d days, total %.0f, average %.0f, min %.0f, max %.0f\n",
		s.TotalDays, s.TotalRevenue, s.AverageRevenue, s.MinRevenue, s.MaxRevenue)
	return nil
}

type InventoryCmd struct{}

func (c *InventoryCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.db == nil {
		return supabase.ErrNotConfigured
	}

	preds, err := inventory.NewPredictor(a.db).Predict(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%-24s %10s %10s %8s  %s\n", "item", "stock", "daily", "days", "status")
	for _, p := range preds {
		fmt.Printf("%-24s %10.2f %10.4f %8d  %s (%s)\n", p.Name, p.Stock, p.DailyUsage, p.DaysLeft, p.Status, p.Reason)
	}
	return nil
}

type ChatCmd struct {
	Message string `arg:"" help:"Question to ask."`
}

func (c *ChatCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.knowledge == nil {
		return supabase.ErrNotConfigured
	}

	ctx := context.Background()
	if _, err := a.knowledge.Reload(ctx); err != nil {
		return err
	}
	fmt.Println(chatbot.Answer(ctx, a.chat, c.Message))
	return nil
}

// optionalStrategy parses s, leaving an empty value for the service default.
func optionalStrategy(s string) (forecast.Strategy, error) {
	if s == "" {
		return "", nil
	}
	return forecast.ParseStrategy(s)
}

func writeChart(path string, fc *forecast.Forecast) error {
	data, err := chart.Render(chart.FromForecast(fc))
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("laundrydesk"),
		kong.Description("Revenue forecasting, stock outlook and FAQ chatbot for a laundry business."),
		kong.UsageOnError(),
	)
	if err := logging.Setup(cli.LogLevel, cli.LogFormat, os.Stderr); err != nil {
		ctx.FatalIfErrorf(err)
	}
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
