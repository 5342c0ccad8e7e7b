package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taxipark/station-dispatch/internal/api/dto"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// Arrive handles POST /v1/drivers/:id/arrive
func (h *Handlers) Arrive(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	if err := h.Engine.Arrive(c.Request.Context(), driverID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Arrival recorded"})
}

// ToggleWait handles POST /v1/drivers/:id/wait
func (h *Handlers) ToggleWait(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	waiting, err := h.Engine.ToggleWait(c.Request.Context(), driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Wait clock toggled",
		Data:    gin.H{"waiting": waiting},
	})
}

// StartRide handles POST /v1/drivers/:id/ride
func (h *Handlers) StartRide(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	if err := h.Engine.StartRide(c.Request.Context(), driverID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Ride started"})
}

// FinishTrip handles POST /v1/drivers/:id/finish
func (h *Handlers) FinishTrip(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	settlement, err := h.Engine.Finish(c.Request.Context(), driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.Monitor != nil {
		h.Monitor.RecordTripSettled(driverID, settlement.DistanceKM, settlement.WaitMinutes, settlement.Fare)
	}
	h.Logger.Info("Trip settled",
		logger.Int64("driver_id", driverID),
		logger.Float64("distance_km", settlement.DistanceKM),
		logger.Float64("fare", settlement.Fare),
	)

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Trip finished", Data: settlement})
}

// CancelTrip handles POST /v1/drivers/:id/cancel
func (h *Handlers) CancelTrip(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	if err := h.Engine.Cancel(c.Request.Context(), driverID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Trip canceled"})
}

// GetTrip handles GET /v1/drivers/:id/trip. The fare shown is a preview
// computed from the live accumulators, not a final bill.
func (h *Handlers) GetTrip(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	t, err := h.Trips.Get(c.Request.Context(), driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	waitMin := t.LiveWaitMinutes(time.Now())
	c.JSON(http.StatusOK, dto.TripResponse{
		DriverID:    t.DriverID,
		ClientID:    t.ClientID,
		Phase:       string(t.Phase),
		DistanceKM:  t.DistanceKM,
		WaitMinutes: waitMin,
		FareSoFar:   h.Engine.Tariff().Fare(t.DistanceKM, waitMin),
	})
}

func (h *Handlers) driverParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver id"})
		return 0, false
	}
	return id, true
}
