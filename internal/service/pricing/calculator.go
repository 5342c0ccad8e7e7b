package pricing

import "math"

// Tariff holds the configured fare constants. Rates are in sum.
type Tariff struct {
	BaseFare       float64
	FreeDistanceKM float64
	PerKMRate      float64
	PerMinuteRate  float64
}

// Fare computes the price for a trip. The first FreeDistanceKM kilometers
// are covered by the base fare; waiting is billed per whole minute, partial
// minutes are free.
//
// The same function serves the live display and the final settlement, so
// the running total a client watches can never diverge from what they are
// charged at the end.
func (t Tariff) Fare(distanceKM, waitMinutes float64) float64 {
	billableKM := distanceKM - t.FreeDistanceKM
	if billableKM < 0 {
		billableKM = 0
	}
	return t.BaseFare + billableKM*t.PerKMRate + math.Floor(waitMinutes)*t.PerMinuteRate
}
