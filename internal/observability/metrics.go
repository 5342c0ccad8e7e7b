package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "matches_total", Help: "Total number of successful station-queue matches"})
	NoMatchTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "no_match_total", Help: "Total requests that fell back to broadcast"})

	TripsAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "trips_accepted_total", Help: "Total trips created by driver acceptance"})
	TripsFinished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "trips_finished_total", Help: "Total trips settled"})
	TripsCanceled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "trips_canceled_total", Help: "Total trips canceled before settlement"})

	SamplesAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "position_samples_accepted_total", Help: "Position samples accepted into distance accrual"})
	SamplesRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "position_samples_rejected_total", Help: "Position samples rejected by the noise/teleport filter"})

	RefreshPushFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "station_dispatch", Name: "refresh_push_failures_total", Help: "Live refresh pushes that failed delivery"})
)
