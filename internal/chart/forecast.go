package chart

import (
	"fmt"

	"github.com/lox/laundrydesk/internal/forecast"
)

// FromForecast plots actuals and fitted values over the training window and
// the banded projection after it. Predictions without bounds get a flat band.
func FromForecast(fc *forecast.Forecast) Data {
	d := Data{
		Title: fmt.Sprintf("Revenue forecast, %s, next %d days", fc.Snapshot.Model.Strategy(), fc.Days),
	}
	for _, f := range fc.Fitted {
		d.Actual = append(d.Actual, Point{Date: f.Date, Value: f.ActualRevenue})
		d.Fitted = append(d.Fitted, Point{Date: f.Date, Value: f.FittedRevenue})
	}
	for _, p := range fc.Result.Predictions {
		bp := BandPoint{Date: p.Date, Value: p.PredictedRevenue, Lower: p.PredictedRevenue, Upper: p.PredictedRevenue}
		if p.LowerBound != nil && p.UpperBound != nil {
			bp.Lower, bp.Upper = *p.LowerBound, *p.UpperBound
		}
		d.Forecast = append(d.Forecast, bp)
	}
	return d
}
