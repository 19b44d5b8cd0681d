package forecast

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

var (
	// ErrInsufficientData means the training set is below the model's minimum.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotTrained means a prediction was requested before Train succeeded.
	ErrNotTrained = errors.New("model must be trained first")
)

// Strategy selects a concrete Model.
type Strategy string

const (
	StrategyLinear       Strategy = "linear"
	StrategyMulti        Strategy = "multi"
	StrategySeasonal     Strategy = "seasonal"
	StrategySeasonalMean Strategy = "seasonal-mean"
)

var strategies = []Strategy{StrategyLinear, StrategyMulti, StrategySeasonal, StrategySeasonalMean}

func Strategies() []Strategy {
	return slices.Clone(strategies)
}

func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(strategies, st) {
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Model is a revenue forecasting strategy. Train replaces any previous fit in
// full; a failed Train leaves the previous fit untouched.
type Model interface {
	Strategy() Strategy
	Train(obs []models.Observation) (Metrics, error)
	PredictFuture(days int) (*PredictionResult, error)
	FittedValues() ([]FittedValue, error)
	Metrics() Metrics
}

// New returns an untrained model for the strategy.
func New(s Strategy) (Model, error) {
	switch s {
	case StrategyLinear:
		return NewLinearModel(), nil
	case StrategyMulti:
		return NewMultiFeatureModel(), nil
	case StrategySeasonal:
		return NewSeasonalModel(SeasonalRobust), nil
	case StrategySeasonalMean:
		return NewSeasonalModel(SeasonalMean), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", s)
}

// MinObservations is the smallest training set the strategy accepts.
func MinObservations(s Strategy) int {
	switch s {
	case StrategyLinear:
		return minLinearPoints
	case StrategyMulti:
		return minMultiPoints
	}
	return 1
}

type Prediction struct {
	Date             time.Time
	PredictedRevenue float64
	UpperBound       *float64
	LowerBound       *float64
}

type PredictionResult struct {
	Predictions    []Prediction
	TotalPredicted float64
	AverageDaily   float64
}

// WithBounds attaches upper = p+mae and lower = max(0, p-mae) to every
// prediction.
func (r *PredictionResult) WithBounds(mae float64) *PredictionResult {
	for i := range r.Predictions {
		p := r.Predictions[i].PredictedRevenue
		upper := p + mae
		lower := max(0, p-mae)
		r.Predictions[i].UpperBound = &upper
		r.Predictions[i].LowerBound = &lower
	}
	return r
}

type FittedValue struct {
	Date          time.Time
	ActualRevenue float64
	FittedRevenue float64
}

// sortedCopy returns obs ordered by date with dates truncated to the day.
func sortedCopy(obs []models.Observation) []models.Observation {
	out := make([]models.Observation, len(obs))
	for i, o := range obs {
		out[i] = models.Observation{Date: Day(o.Date), Revenue: o.Revenue}
	}
	slices.SortStableFunc(out, func(a, b models.Observation) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// project evaluates predict for each of the days after last, clamped at zero.
func project(last time.Time, days int, predict func(date time.Time, step int) float64) *PredictionResult {
	result := &PredictionResult{Predictions: make([]Prediction, 0, max(days, 0))}
	for i := 1; i <= days; i++ {
		date := last.AddDate(0, 0, i)
		p := max(0, predict(date, i))
		result.Predictions = append(result.Predictions, Prediction{Date: date, PredictedRevenue: p})
		result.TotalPredicted += p
	}
	if days > 0 {
		result.AverageDaily = result.TotalPredicted / float64(days)
	}
	return result
}

func revenues(obs []models.Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Revenue
	}
	return out
}

func insufficient(have, want int) error {
	return fmt.Errorf("need at least %d observations, have %d: %w", want, have, ErrInsufficientData)
}
