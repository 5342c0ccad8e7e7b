package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Custom event helpers

// RecordOrderMatched records a successful dispatch match
func (nr *NewRelicApp) RecordOrderMatched(stationName string, driverID int64, distanceKM float64) {
	nr.RecordCustomEvent("OrderMatched", map[string]interface{}{
		"station":     stationName,
		"driver_id":   driverID,
		"distance_km": distanceKM,
	})
}

// RecordOrderBroadcast records a no-match fallback to the open pool
func (nr *NewRelicApp) RecordOrderBroadcast(stationName string) {
	nr.RecordCustomEvent("OrderBroadcast", map[string]interface{}{
		"station": stationName,
	})
}

// RecordTripSettled records a trip settlement
func (nr *NewRelicApp) RecordTripSettled(driverID int64, distanceKM, waitMinutes, fare float64) {
	nr.RecordCustomEvent("TripSettled", map[string]interface{}{
		"driver_id":    driverID,
		"distance_km":  distanceKM,
		"wait_minutes": waitMinutes,
		"fare":         fare,
	})
}
