package forecast

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/laundrydesk/internal/feed"
	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/metrics"
	"github.com/lox/laundrydesk/internal/models"
)

// DefaultMinObservations is the smallest series the service will train on,
// whatever the strategy accepts.
const DefaultMinObservations = 10

// RunRecorder stores training history.
type RunRecorder interface {
	InsertModelRun(run models.ModelRun) error
}

// Service trains models from a feed and serves forecasts from the cache.
type Service struct {
	src        feed.Source
	runs       RunRecorder
	cache      *Cache
	strategy   Strategy
	maxGapDays int
	minObs     int
	now        func() time.Time
	log        zerolog.Logger
}

type ServiceOption func(*Service)

// WithDefaultStrategy sets the strategy used when a caller passes "".
func WithDefaultStrategy(s Strategy) ServiceOption {
	return func(svc *Service) { svc.strategy = s }
}

// WithMaxGapDays sets the gap after which older history is discarded.
func WithMaxGapDays(days int) ServiceOption {
	return func(svc *Service) { svc.maxGapDays = days }
}

func WithMinObservations(n int) ServiceOption {
	return func(svc *Service) { svc.minObs = n }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// NewService wires a feed to a cache. runs may be nil.
func NewService(src feed.Source, runs RunRecorder, cache *Cache, opts ...ServiceOption) *Service {
	svc := &Service{
		src:        src,
		runs:       runs,
		cache:      cache,
		strategy:   StrategySeasonal,
		maxGapDays: feed.DefaultMaxGapDays,
		minObs:     DefaultMinObservations,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logging.Component("forecast"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cache == nil {
		svc.cache = NewCache()
	}
	return svc
}

func (s *Service) DefaultStrategy() Strategy { return s.strategy }

func (s *Service) Cache() *Cache { return s.cache }

// History fetches the untrimmed revenue series.
func (s *Service) History(ctx context.Context) ([]models.Observation, error) {
	return s.src.Observations(ctx)
}

// TrainFresh fetches the latest series, trains the strategy on it and swaps
// the result into the cache. An empty strategy selects the default.
func (s *Service) TrainFresh(ctx context.Context, strategy Strategy) (*Snapshot, error) {
	if strategy == "" {
		strategy = s.strategy
	}
	start := time.Now()
	defer func() {
		metrics.ModelTrainingDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	}()

	snap, err := s.train(ctx, strategy)
	if err != nil {
		metrics.ModelTrainingsTotal.WithLabelValues(string(strategy), "error").Inc()
		return nil, err
	}
	metrics.ModelTrainingsTotal.WithLabelValues(string(strategy), "success").Inc()
	metrics.ModelTrainingRows.Set(float64(snap.Rows))

	s.cache.Store(snap)
	s.record(snap)
	s.log.Info().
		Str("run_id", snap.RunID).
		Str("strategy", string(strategy)).
		Int("rows", snap.Rows).
		Float64("mae", snap.Metrics.MAE).
		Msg("model trained")
	return snap, nil
}

func (s *Service) train(ctx context.Context, strategy Strategy) (*Snapshot, error) {
	model, err := New(strategy)
	if err != nil {
		return nil, err
	}

	obs, err := s.src.Observations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch revenue: %w", err)
	}
	obs = feed.TrimBeforeGap(sortedCopy(obs), s.maxGapDays)

	need := max(s.minObs, MinObservations(strategy))
	if len(obs) < need {
		return nil, insufficient(len(obs), need)
	}

	m, err := model.Train(obs)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", strategy, err)
	}
	return &Snapshot{
		RunID:     uuid.NewString(),
		Model:     model,
		Metrics:   m,
		TrainedAt: s.now(),
		Rows:      len(obs),
	}, nil
}

func (s *Service) record(snap *Snapshot) {
	if s.runs == nil {
		return
	}
	run := models.ModelRun{
		ID:          snap.RunID,
		Strategy:    string(snap.Model.Strategy()),
		TrainedAt:   snap.TrainedAt,
		DataSize:    snap.Rows,
		MAE:         snap.Metrics.MAE,
		RMSE:        snap.Metrics.RMSE,
		ErrorMetric: string(snap.Metrics.Percent),
		ErrorValue:  snap.Metrics.PercentValue(),
	}
	if snap.Metrics.R2 != nil {
		run.R2 = sql.NullFloat64{Float64: *snap.Metrics.R2, Valid: true}
	}
	if err := s.runs.InsertModelRun(run); err != nil {
		s.log.Warn().Err(err).Str("run_id", snap.RunID).Msg("record model run")
	}
}

// Forecast is a banded projection together with the fit that produced it.
type Forecast struct {
	Days     int
	Result   *PredictionResult
	Fitted   []FittedValue
	Snapshot *Snapshot
}

// Predict retrains on fresh data and projects days ahead with MAE bands.
func (s *Service) Predict(ctx context.Context, days int, strategy Strategy) (*Forecast, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative, got %d", days)
	}
	snap, err := s.TrainFresh(ctx, strategy)
	if err != nil {
		return nil, err
	}
	return Project(snap, days)
}

// Project forecasts from an already trained snapshot.
func Project(snap *Snapshot, days int) (*Forecast, error) {
	result, err := snap.Model.PredictFuture(days)
	if err != nil {
		return nil, err
	}
	fitted, err := snap.Model.FittedValues()
	if err != nil {
		return nil, err
	}
	return &Forecast{
		Days:     days,
		Result:   result.WithBounds(snap.Metrics.MAE),
		Fitted:   fitted,
		Snapshot: snap,
	}, nil
}
