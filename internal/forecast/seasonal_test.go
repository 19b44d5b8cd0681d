package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapTrend(t *testing.T) {
	tests := []struct {
		name  string
		slope float64
		limit float64
		want  float64
	}{
		{"within positive limit", 1.5, 2.0, 1.5},
		{"within negative limit", -1.5, 2.0, -1.5},
		{"at limit", 2.0, 2.0, 2.0},
		{"exceeds positive limit", 50, 2.0, 2.0},
		{"exceeds negative limit", -50, 2.0, -2.0},
		{"zero limit flattens", 3, 0, 0},
		{"negative limit flattens", 3, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capTrend(tt.slope, tt.limit)
			if got != tt.want {
				t.Errorf("capTrend(%v, %v) = %v, want %v", tt.slope, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTrimmedMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single", []float64{7}, 7},
		{"small bucket untrimmed", []float64{1, 100, 3, 2}, 2.5},
		{"five values", []float64{5, 1, 4, 2, 3}, 3},
		{"ten values trims one each side", []float64{-1000, 2, 3, 4, 5, 6, 7, 8, 9, 1000}, 5.5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, trimmedMedian(tt.values), 1e-12)
		})
	}
}

func TestRecencyWeightedMean(t *testing.T) {
	assert.InDelta(t, 15, recencyWeightedMean([]float64{10, 20}), 1e-12)
	assert.InDelta(t, 200.0/12, recencyWeightedMean([]float64{10, 10, 10, 10, 20, 20, 20, 20}), 1e-12)
	assert.Equal(t, 0.0, recencyWeightedMean(nil))
}

func TestMedian_DoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	assert.Equal(t, 2.0, median(values))
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestSeasonalModel_ConstantSeries(t *testing.T) {
	obs := series(day(2025, 1, 6), 28, func(int) float64 { return 100 })

	for _, variant := range []SeasonalVariant{SeasonalRobust, SeasonalMean} {
		m := NewSeasonalModel(variant)
		metrics, err := m.Train(obs)
		require.NoError(t, err)

		for wd, v := range m.Profile() {
			assert.InDelta(t, 100, v, 1e-9, "weekday %d", wd)
		}
		assert.Equal(t, 0.0, m.Trend())
		assert.InDelta(t, 0, metrics.MAE, 1e-9)
		assert.InDelta(t, 0, metrics.PercentValue(), 1e-9)
		assert.Nil(t, metrics.R2)

		result, err := m.PredictFuture(7)
		require.NoError(t, err)
		for _, p := range result.Predictions {
			assert.InDelta(t, 100, p.PredictedRevenue, 1e-9)
		}
	}
}

func TestSeasonalModel_RobustProfile(t *testing.T) {
	// Eight weeks starting on a Monday with revenue 100 on Monday up to 700
	// on Sunday. The global median is 400.
	obs := series(day(2025, 1, 6), 56, func(i int) float64 { return 100 * float64(i%7+1) })

	m := NewSeasonalModel(SeasonalRobust)
	metrics, err := m.Train(obs)
	require.NoError(t, err)

	assert.Equal(t, 400.0, m.GlobalMedian())
	profile := m.Profile()
	for wd := 0; wd < 7; wd++ {
		want := 0.8*100*float64(wd+1) + 0.2*400
		assert.InDelta(t, want, profile[wd], 1e-9, "weekday %d", wd)
	}
	assert.Equal(t, PercentWMAPE, metrics.Percent)
	assert.NotNil(t, metrics.WMAPE)
	assert.Nil(t, metrics.MAPE)
}

func TestSeasonalModel_MeanReportsMAPE(t *testing.T) {
	obs := series(day(2025, 1, 6), 35, func(i int) float64 { return 100 * float64(i%7+1) })

	m := NewSeasonalModel(SeasonalMean)
	metrics, err := m.Train(obs)
	require.NoError(t, err)
	assert.Equal(t, StrategySeasonalMean, m.Strategy())
	assert.Equal(t, PercentMAPE, metrics.Percent)
	assert.NotNil(t, metrics.MAPE)
	assert.Nil(t, metrics.WMAPE)

	profile := m.Profile()
	for wd := 0; wd < 7; wd++ {
		assert.InDelta(t, 100*float64(wd+1), profile[wd], 1e-9, "weekday %d", wd)
	}
}

func TestSeasonalModel_TrendIsCapped(t *testing.T) {
	obs := series(day(2025, 3, 1), 30, func(i int) float64 { return 100 + 50*float64(i) })

	m := NewSeasonalModel(SeasonalRobust)
	_, err := m.Train(obs)
	require.NoError(t, err)

	assert.InDelta(t, 825, m.GlobalMedian(), 1e-9)
	assert.InDelta(t, maxTrendFraction*825, m.Trend(), 1e-9)

	down := series(day(2025, 3, 1), 30, func(i int) float64 { return 2000 - 50*float64(i) })
	_, err = m.Train(down)
	require.NoError(t, err)
	assert.InDelta(t, -maxTrendFraction*m.GlobalMedian(), m.Trend(), 1e-9)
}

func TestSeasonalModel_TrendCappedAcrossGap(t *testing.T) {
	before := series(day(2025, 1, 1), 30, func(int) float64 { return 1000 })
	// 60 silent days, then a steep climb.
	after := series(day(2025, 1, 31).AddDate(0, 0, 60), 30, func(i int) float64 { return 1000 + 200*float64(i) })
	obs := append(before, after...)

	for _, variant := range []SeasonalVariant{SeasonalRobust, SeasonalMean} {
		m := NewSeasonalModel(variant)
		_, err := m.Train(obs)
		require.NoError(t, err)

		limit := maxTrendFraction * m.GlobalMedian()
		assert.LessOrEqual(t, math.Abs(m.Trend()), limit+1e-9, "variant %d", variant)
		assert.InDelta(t, limit, m.Trend(), 1e-9, "variant %d", variant)
	}
}

func TestSeasonalModel_RobustProfileResistsOutlier(t *testing.T) {
	// Five full weeks from a Monday, so each weekday bucket holds five values.
	weekly := func(i int) float64 { return 100 * float64(i%7+1) }
	clean := series(day(2025, 1, 6), 35, weekly)
	spiked := series(day(2025, 1, 6), 35, weekly)
	spiked[0].Revenue = 100000

	mondayShift := func(variant SeasonalVariant) float64 {
		base := NewSeasonalModel(variant)
		_, err := base.Train(clean)
		require.NoError(t, err)
		withOutlier := NewSeasonalModel(variant)
		_, err = withOutlier.Train(spiked)
		require.NoError(t, err)
		return math.Abs(withOutlier.Profile()[0] - base.Profile()[0])
	}

	robust := mondayShift(SeasonalRobust)
	mean := mondayShift(SeasonalMean)
	assert.Less(t, robust, mean)
	assert.InDelta(t, 0, robust, 1e-9)
	assert.Greater(t, mean, 10000.0)
}

func TestSeasonalModel_TrendAnchoring(t *testing.T) {
	obs := series(day(2025, 3, 3), 40, func(i int) float64 {
		return 300 + 20*float64(i%7) + 2*float64(i)
	})

	m := NewSeasonalModel(SeasonalRobust)
	_, err := m.Train(obs)
	require.NoError(t, err)

	profile := m.Profile()
	trend := m.Trend()
	require.NotZero(t, trend)

	fitted, err := m.FittedValues()
	require.NoError(t, err)
	n := len(obs)
	for i, f := range fitted {
		want := max(0, profile[Weekday(f.Date)]+trend*float64(i-n))
		assert.InDelta(t, want, f.FittedRevenue, 1e-9, "index %d", i)
	}

	result, err := m.PredictFuture(5)
	require.NoError(t, err)
	for k, p := range result.Predictions {
		want := max(0, profile[Weekday(p.Date)]+trend*float64(k+1))
		assert.InDelta(t, want, p.PredictedRevenue, 1e-9, "step %d", k+1)
	}
}

func TestSeasonalModel_EmptyBucketsUseGlobalMedian(t *testing.T) {
	// Monday, Tuesday and Wednesday only.
	obs := series(day(2025, 1, 6), 3, func(i int) float64 { return []float64{10, 20, 60}[i] })

	for _, variant := range []SeasonalVariant{SeasonalRobust, SeasonalMean} {
		m := NewSeasonalModel(variant)
		_, err := m.Train(obs)
		require.NoError(t, err)

		profile := m.Profile()
		for wd := 3; wd < 7; wd++ {
			assert.Equal(t, 20.0, profile[wd], "weekday %d", wd)
		}
	}
}

func TestSeasonalModel_SingleObservation(t *testing.T) {
	m := NewSeasonalModel(SeasonalRobust)
	_, err := m.Train(series(day(2025, 1, 6), 1, func(int) float64 { return 50 }))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Trend())

	_, err = m.Train(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
