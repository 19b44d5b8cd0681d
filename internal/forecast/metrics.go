package forecast

import "math"

// PercentError names the percentage metric a model reports. MAPE and WMAPE
// are not comparable, so a model reports exactly one.
type PercentError string

const (
	PercentMAPE  PercentError = "mape"
	PercentWMAPE PercentError = "wmape"
)

// Metrics describes fit quality. R2 is nil for models whose fit is not a
// single linear projection. Exactly one of MAPE and WMAPE is set.
type Metrics struct {
	MAE       float64      `json:"mae"`
	RMSE      float64      `json:"rmse"`
	R2        *float64     `json:"r2"`
	MAPE      *float64     `json:"mape,omitempty"`
	WMAPE     *float64     `json:"wmape,omitempty"`
	Percent   PercentError `json:"percent_metric"`
	Slope     *float64     `json:"slope,omitempty"`
	Evaluated int          `json:"evaluated_on"`
}

// PercentValue returns whichever percentage metric is populated.
func (m Metrics) PercentValue() float64 {
	switch {
	case m.WMAPE != nil:
		return *m.WMAPE
	case m.MAPE != nil:
		return *m.MAPE
	}
	return 0
}

// R2Value returns R² or 0 when not applicable.
func (m Metrics) R2Value() float64 {
	if m.R2 == nil {
		return 0
	}
	return *m.R2
}

func MAE(actual, predicted []float64) float64 {
	n := pairs(actual, predicted)
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(n)
}

func RMSE(actual, predicted []float64) float64 {
	n := pairs(actual, predicted)
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		e := actual[i] - predicted[i]
		sum += e * e
	}
	return math.Sqrt(sum / float64(n))
}

// MAPE is the mean of |actual-predicted|/actual over non-zero actuals, as a
// percentage. It is 0 when every actual is zero.
func MAPE(actual, predicted []float64) float64 {
	n := pairs(actual, predicted)
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 100
}

// WMAPE is Σ|error| / Σactual as a percentage, 0 when Σactual is 0.
func WMAPE(actual, predicted []float64) float64 {
	n := pairs(actual, predicted)
	var errSum, actualSum float64
	for i := 0; i < n; i++ {
		errSum += math.Abs(actual[i] - predicted[i])
		actualSum += actual[i]
	}
	if actualSum == 0 {
		return 0
	}
	return errSum / actualSum * 100
}

// R2 is the coefficient of determination, 0 when the actuals have no variance.
func R2(actual, predicted []float64) float64 {
	n := pairs(actual, predicted)
	if n == 0 {
		return 0
	}
	var mean float64
	for i := 0; i < n; i++ {
		mean += actual[i]
	}
	mean /= float64(n)

	var ssTot, ssRes float64
	for i := 0; i < n; i++ {
		d := actual[i] - mean
		ssTot += d * d
		e := actual[i] - predicted[i]
		ssRes += e * e
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

func linearMetrics(actual, predicted []float64) Metrics {
	r2 := R2(actual, predicted)
	mape := MAPE(actual, predicted)
	return Metrics{
		MAE:       MAE(actual, predicted),
		RMSE:      RMSE(actual, predicted),
		R2:        &r2,
		MAPE:      &mape,
		Percent:   PercentMAPE,
		Evaluated: pairs(actual, predicted),
	}
}

func pairs(actual, predicted []float64) int {
	return min(len(actual), len(predicted))
}
