package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/domain/trip"
	"github.com/taxipark/station-dispatch/internal/service/dispatch"
	"github.com/taxipark/station-dispatch/internal/service/lifecycle"
	apperrors "github.com/taxipark/station-dispatch/pkg/errors"
	"github.com/taxipark/station-dispatch/pkg/logger"
	"github.com/taxipark/station-dispatch/pkg/monitoring"
	"github.com/taxipark/station-dispatch/pkg/websocket"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Engine   *lifecycle.Engine
	Matcher  *dispatch.Matcher
	Board    dispatch.Board
	Drivers  driver.Repository
	Trips    trip.Store
	Stations *station.Index
	Hub      *websocket.Hub
	Monitor  *monitoring.NewRelicApp
	Logger   *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *lifecycle.Engine,
	matcher *dispatch.Matcher,
	board dispatch.Board,
	drivers driver.Repository,
	trips trip.Store,
	stations *station.Index,
	hub *websocket.Hub,
	monitor *monitoring.NewRelicApp,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		Engine:   engine,
		Matcher:  matcher,
		Board:    board,
		Drivers:  drivers,
		Trips:    trips,
		Stations: stations,
		Hub:      hub,
		Monitor:  monitor,
		Logger:   log,
	}
}

// respondError translates domain errors into HTTP responses so handlers
// do not repeat the mapping.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, driver.ErrDriverNotFound):
		status, message = http.StatusNotFound, "Driver not found"
	case errors.Is(err, trip.ErrTripNotFound):
		status, message = http.StatusNotFound, "No active trip for driver"
	case errors.Is(err, dispatch.ErrOrderNotFound):
		status, message = http.StatusNotFound, "Order not found"
	case errors.Is(err, driver.ErrNoDriversAvailable):
		status, message = http.StatusNotFound, "No free drivers at the nearest station"
	case errors.Is(err, dispatch.ErrOrderClaimed):
		status, message = http.StatusConflict, "Order is already taken by another driver"
	case errors.Is(err, driver.ErrDriverNotAvailable):
		status, message = http.StatusConflict, "Driver cannot take orders right now"
	case errors.Is(err, trip.ErrTripExists):
		status, message = http.StatusConflict, "Driver already has an active trip"
	case errors.Is(err, trip.ErrRideInProgress):
		status, message = http.StatusConflict, "Cannot cancel while riding"
	default:
		appErr := apperrors.GetAppError(err)
		status, message = appErr.Status, appErr.Message
		if status == http.StatusInternalServerError {
			h.Logger.Error("Unhandled error", logger.Err(err))
		}
	}

	c.JSON(status, gin.H{"error": message})
}
