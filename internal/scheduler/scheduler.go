// Package scheduler keeps the cached model and FAQ set fresh in the
// background while the API serves requests.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/logging"
)

// Trainer retrains the forecasting model from fresh data.
type Trainer interface {
	TrainFresh(ctx context.Context, strategy forecast.Strategy) (*forecast.Snapshot, error)
}

// Reloader refreshes the chatbot knowledge base.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

type Scheduler struct {
	trainer        Trainer
	faqs           Reloader
	strategy       forecast.Strategy
	trainInterval  time.Duration
	reloadInterval time.Duration
	jobTimeout     time.Duration
	log            zerolog.Logger
}

type Config struct {
	// Strategy is passed to every retrain; empty uses the service default.
	Strategy       forecast.Strategy
	TrainInterval  time.Duration
	ReloadInterval time.Duration
	JobTimeout     time.Duration
}

// New builds a scheduler. faqs may be nil when the chatbot is disabled.
// A zero interval disables that job.
func New(trainer Trainer, faqs Reloader, cfg Config) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Scheduler{
		trainer:        trainer,
		faqs:           faqs,
		strategy:       cfg.Strategy,
		trainInterval:  cfg.TrainInterval,
		reloadInterval: cfg.ReloadInterval,
		jobTimeout:     cfg.JobTimeout,
		log:            logging.Component("scheduler"),
	}
}

// Run loads FAQs and trains once, then repeats each job on its interval
// until ctx is cancelled. FAQs go first since a retrain can take up to the
// job timeout.
func (s *Scheduler) Run(ctx context.Context) {
	s.reloadFAQs(ctx)
	s.retrain(ctx)

	trainC, stopTrain := tick(s.trainInterval)
	reloadC, stopReload := tick(s.reloadInterval)
	defer stopTrain()
	defer stopReload()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutting down")
			return
		case <-trainC:
			s.retrain(ctx)
		case <-reloadC:
			s.reloadFAQs(ctx)
		}
	}
}

// tick returns a nil channel for a disabled job so its select case never fires.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (s *Scheduler) retrain(ctx context.Context) {
	if s.trainer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	snap, err := s.trainer.TrainFresh(ctx, s.strategy)
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduled retrain failed")
		return
	}
	s.log.Debug().Str("run_id", snap.RunID).Int("rows", snap.Rows).Msg("scheduled retrain")
}

func (s *Scheduler) reloadFAQs(ctx context.Context) {
	if s.faqs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	n, err := s.faqs.Reload(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("faq reload failed")
		return
	}
	s.log.Debug().Int("faqs", n).Msg("faqs reloaded")
}
