package feed

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/metrics"
	"github.com/lox/laundrydesk/internal/models"
)

// Recorder persists fetch attempts and the last good series.
type Recorder interface {
	StartFetchRun(source string) (*models.FetchRun, error)
	CompleteFetchRun(run *models.FetchRun, rows int, fetchErr error) error
	ReplaceDailyRevenue(obs []models.Observation) error
	GetDailyRevenue() ([]models.Observation, error)
}

// Recorded wraps a Source, logging every fetch to the store. When the
// upstream fetch fails it serves the last series it stored, if any.
type Recorded struct {
	src Source
	rec Recorder
	log zerolog.Logger
}

func NewRecorded(src Source, rec Recorder) *Recorded {
	return &Recorded{src: src, rec: rec, log: logging.Component("feed")}
}

func (r *Recorded) Name() string { return r.src.Name() }

func (r *Recorded) Observations(ctx context.Context) ([]models.Observation, error) {
	run, err := r.rec.StartFetchRun(r.src.Name())
	if err != nil {
		r.log.Warn().Err(err).Msg("start fetch run")
	}

	obs, fetchErr := r.src.Observations(ctx)
	if cerr := r.rec.CompleteFetchRun(run, len(obs), fetchErr); cerr != nil {
		r.log.Warn().Err(cerr).Msg("complete fetch run")
	}

	if fetchErr != nil {
		metrics.FeedFetchesTotal.WithLabelValues(r.src.Name(), "error").Inc()
		cached, err := r.rec.GetDailyRevenue()
		if err != nil || len(cached) == 0 {
			return nil, fetchErr
		}
		r.log.Warn().Err(fetchErr).Int("rows", len(cached)).Msg("fetch failed, serving stored series")
		return cached, nil
	}

	metrics.FeedFetchesTotal.WithLabelValues(r.src.Name(), "success").Inc()
	if err := r.rec.ReplaceDailyRevenue(obs); err != nil {
		r.log.Warn().Err(err).Int("rows", len(obs)).Msg("store daily revenue")
	}
	r.log.Debug().Int("rows", len(obs)).Str("source", r.src.Name()).Msg("fetched revenue")
	return obs, nil
}
