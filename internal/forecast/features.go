package forecast

import (
	"math"
	"time"
)

// FeatureSet selects the shape of the vector produced by Features.
type FeatureSet int

const (
	// SimpleFeatures is the single day-offset feature.
	SimpleFeatures FeatureSet = iota
	// MultiFeatures is weekday, day of month, month and day offset.
	MultiFeatures
)

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayOffset returns the number of whole calendar days from start to t.
func DayOffset(start, t time.Time) int {
	return int(math.Round(Day(t).Sub(Day(start)).Hours() / 24))
}

// Weekday returns 0 for Monday through 6 for Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Features converts a date into a feature vector relative to start.
func Features(set FeatureSet, start, date time.Time) []float64 {
	offset := float64(DayOffset(start, date))
	if set == SimpleFeatures {
		return []float64{offset}
	}
	return []float64{
		float64(Weekday(date)),
		float64(date.Day()),
		float64(date.Month()),
		offset,
	}
}
