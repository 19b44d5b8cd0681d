package forecast

import (
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

// MultiFeatureModel regresses revenue on weekday, day of month, month and day
// offset. It fits on a seeded 80% partition and reports metrics on the
// held-out 20%.
type MultiFeatureModel struct {
	reg     MultiRegression
	start   time.Time
	history []models.Observation
	metrics Metrics
	trained bool
	seed    uint64
}

func NewMultiFeatureModel() *MultiFeatureModel {
	return &MultiFeatureModel{seed: splitSeed}
}

func (m *MultiFeatureModel) Strategy() Strategy { return StrategyMulti }

func (m *MultiFeatureModel) Train(obs []models.Observation) (Metrics, error) {
	history := sortedCopy(obs)
	if len(history) < minMultiPoints {
		return Metrics{}, insufficient(len(history), minMultiPoints)
	}

	start := history[0].Date
	x := make([][]float64, len(history))
	for i, o := range history {
		x[i] = Features(MultiFeatures, start, o.Date)
	}
	y := revenues(history)

	trainIdx, testIdx := splitIndices(len(history), m.seed)
	xTrain, yTrain := pick(x, y, trainIdx)
	xTest, yTest := pick(x, y, testIdx)

	var reg MultiRegression
	if err := reg.Fit(xTrain, yTrain); err != nil {
		return Metrics{}, err
	}
	metrics := linearMetrics(yTest, reg.PredictAll(xTest))

	m.reg = reg
	m.start = start
	m.history = history
	m.metrics = metrics
	m.trained = true
	return metrics, nil
}

func (m *MultiFeatureModel) Metrics() Metrics { return m.metrics }

func (m *MultiFeatureModel) FittedValues() ([]FittedValue, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	out := make([]FittedValue, len(m.history))
	for i, o := range m.history {
		pred := m.reg.Predict(Features(MultiFeatures, m.start, o.Date))
		out[i] = FittedValue{Date: o.Date, ActualRevenue: o.Revenue, FittedRevenue: max(0, pred)}
	}
	return out, nil
}

func (m *MultiFeatureModel) PredictFuture(days int) (*PredictionResult, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	last := m.history[len(m.history)-1].Date
	return project(last, days, func(date time.Time, _ int) float64 {
		return m.reg.Predict(Features(MultiFeatures, m.start, date))
	}), nil
}

func pick(x [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	px := make([][]float64, len(idx))
	py := make([]float64, len(idx))
	for i, j := range idx {
		px[i] = x[j]
		py[i] = y[j]
	}
	return px, py
}
