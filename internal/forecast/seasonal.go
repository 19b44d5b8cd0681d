package forecast

import (
	"slices"
	"time"

	"github.com/lox/laundrydesk/internal/models"
)

// SeasonalVariant selects how a weekday bucket is reduced to a baseline.
type SeasonalVariant int

const (
	// SeasonalRobust uses a trimmed median blended with the global median.
	SeasonalRobust SeasonalVariant = iota
	// SeasonalMean uses the bucket mean, double-weighting the most recent weeks.
	SeasonalMean
)

const (
	trimFraction  = 0.10
	minTrimBucket = 5
	profileWeight = 0.8

	robustTrendWindow = 60
	meanTrendWindow   = 30

	// Trend magnitude is capped at this fraction of the global median per day.
	maxTrendFraction = 0.005

	recentWeeks  = 4
	recentWeight = 2
)

// SeasonalModel predicts a per-weekday baseline plus a damped linear trend.
// The trend is anchored at the end of history: fitted values for index i of n
// use trend*(i-n) and forecasts for step k use trend*k.
type SeasonalModel struct {
	variant      SeasonalVariant
	profile      [7]float64
	trend        float64
	globalMedian float64
	history      []models.Observation
	fitted       []FittedValue
	metrics      Metrics
	trained      bool
}

func NewSeasonalModel(variant SeasonalVariant) *SeasonalModel {
	return &SeasonalModel{variant: variant}
}

func (m *SeasonalModel) Strategy() Strategy {
	if m.variant == SeasonalMean {
		return StrategySeasonalMean
	}
	return StrategySeasonal
}

func (m *SeasonalModel) Train(obs []models.Observation) (Metrics, error) {
	history := sortedCopy(obs)
	if len(history) == 0 {
		return Metrics{}, insufficient(0, 1)
	}

	values := revenues(history)
	globalMedian := median(values)

	var buckets [7][]float64
	for _, o := range history {
		wd := Weekday(o.Date)
		buckets[wd] = append(buckets[wd], o.Revenue)
	}

	var profile [7]float64
	window := robustTrendWindow
	for wd, bucket := range buckets {
		switch {
		case len(bucket) == 0:
			profile[wd] = globalMedian
		case m.variant == SeasonalMean:
			profile[wd] = recencyWeightedMean(bucket)
		default:
			profile[wd] = profileWeight*trimmedMedian(bucket) + (1-profileWeight)*globalMedian
		}
	}
	if m.variant == SeasonalMean {
		window = meanTrendWindow
	}

	trend := capTrend(recentSlope(values, window), maxTrendFraction*globalMedian)

	n := len(history)
	fitted := make([]FittedValue, n)
	predicted := make([]float64, n)
	for i, o := range history {
		p := max(0, profile[Weekday(o.Date)]+trend*float64(i-n))
		predicted[i] = p
		fitted[i] = FittedValue{Date: o.Date, ActualRevenue: o.Revenue, FittedRevenue: p}
	}

	metrics := Metrics{
		MAE:       MAE(values, predicted),
		RMSE:      RMSE(values, predicted),
		Evaluated: n,
	}
	if m.variant == SeasonalMean {
		mape := MAPE(values, predicted)
		metrics.MAPE = &mape
		metrics.Percent = PercentMAPE
	} else {
		wmape := WMAPE(values, predicted)
		metrics.WMAPE = &wmape
		metrics.Percent = PercentWMAPE
	}

	m.profile = profile
	m.trend = trend
	m.globalMedian = globalMedian
	m.history = history
	m.fitted = fitted
	m.metrics = metrics
	m.trained = true
	return metrics, nil
}

func (m *SeasonalModel) Metrics() Metrics { return m.metrics }

// Profile returns the weekday baselines, Monday first.
func (m *SeasonalModel) Profile() [7]float64 { return m.profile }

func (m *SeasonalModel) Trend() float64 { return m.trend }

func (m *SeasonalModel) GlobalMedian() float64 { return m.globalMedian }

func (m *SeasonalModel) FittedValues() ([]FittedValue, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	return slices.Clone(m.fitted), nil
}

func (m *SeasonalModel) PredictFuture(days int) (*PredictionResult, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	last := m.history[len(m.history)-1].Date
	return project(last, days, func(date time.Time, step int) float64 {
		return m.profile[Weekday(date)] + m.trend*float64(step)
	}), nil
}

// recentSlope fits index against value over the last window values.
func recentSlope(values []float64, window int) float64 {
	if len(values) < 2 {
		return 0
	}
	recent := values[max(0, len(values)-window):]
	x := make([]float64, len(recent))
	for i := range x {
		x[i] = float64(i)
	}
	slope, _ := olsLine(x, recent)
	return slope
}

// capTrend limits slope to [-limit, limit]. A non-positive limit flattens it.
func capTrend(slope, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	if slope > limit {
		return limit
	}
	if slope < -limit {
		return -limit
	}
	return slope
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sortedMedian(sorted)
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// trimmedMedian drops the lowest and highest 10% of buckets with at least
// minTrimBucket values before taking the median.
func trimmedMedian(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if len(sorted) >= minTrimBucket {
		k := int(trimFraction * float64(len(sorted)))
		sorted = sorted[k : len(sorted)-k]
	}
	return sortedMedian(sorted)
}

// recencyWeightedMean weights the last recentWeeks values double once the
// bucket has at least that many.
func recencyWeightedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < recentWeeks {
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
	split := len(values) - recentWeeks
	var sum, weight float64
	for i, v := range values {
		w := 1.0
		if i >= split {
			w = recentWeight
		}
		sum += w * v
		weight += w
	}
	return sum / weight
}
