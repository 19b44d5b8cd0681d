package forecast

import (
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

// LinearModel regresses revenue on the day offset from the first observation.
// Metrics are computed on the training data.
type LinearModel struct {
	reg     SimpleRegression
	start   time.Time
	history []models.Observation
	metrics Metrics
	trained bool
}

func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

func (m *LinearModel) Strategy() Strategy { return StrategyLinear }

func (m *LinearModel) Train(obs []models.Observation) (Metrics, error) {
	history := sortedCopy(obs)
	if len(history) < minLinearPoints {
		return Metrics{}, insufficient(len(history), minLinearPoints)
	}

	start := history[0].Date
	x := make([]float64, len(history))
	for i, o := range history {
		x[i] = float64(DayOffset(start, o.Date))
	}
	y := revenues(history)

	var reg SimpleRegression
	if err := reg.Fit(x, y); err != nil {
		return Metrics{}, err
	}

	metrics := linearMetrics(y, reg.PredictAll(x))
	slope := reg.Slope
	metrics.Slope = &slope

	m.reg = reg
	m.start = start
	m.history = history
	m.metrics = metrics
	m.trained = true
	return metrics, nil
}

func (m *LinearModel) Coefficients() (slope, intercept float64) {
	return m.reg.Slope, m.reg.Intercept
}

func (m *LinearModel) Metrics() Metrics { return m.metrics }

func (m *LinearModel) FittedValues() ([]FittedValue, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	out := make([]FittedValue, len(m.history))
	for i, o := range m.history {
		pred := m.reg.Predict(float64(DayOffset(m.start, o.Date)))
		out[i] = FittedValue{Date: o.Date, ActualRevenue: o.Revenue, FittedRevenue: max(0, pred)}
	}
	return out, nil
}

func (m *LinearModel) PredictFuture(days int) (*PredictionResult, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	last := m.history[len(m.history)-1].Date
	return project(last, days, func(date time.Time, _ int) float64 {
		return m.reg.Predict(float64(DayOffset(m.start, date)))
	}), nil
}
