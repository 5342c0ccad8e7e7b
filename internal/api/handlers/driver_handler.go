package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taxipark/station-dispatch/internal/api/dto"
	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// RegisterDriver handles PUT /v1/drivers/:id. It creates the driver row if
// needed and stores the submitted profile. Status and queue placement are
// untouched, so re-registering while queued keeps the driver's spot.
func (h *Handlers) RegisterDriver(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	var req dto.RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	d, err := h.Drivers.Get(ctx, driverID)
	if errors.Is(err, driver.ErrDriverNotFound) {
		d = &driver.Driver{ID: driverID, Status: driver.StatusOffline}
		err = nil
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	d.Name = req.Name
	d.CarInfo = req.CarInfo
	d.Phone = req.Phone
	if err := h.Drivers.Save(ctx, d); err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("Driver profile saved",
		logger.Int64("driver_id", driverID),
		logger.String("name", req.Name),
	)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Driver registered", Data: driverResponse(d)})
}

// UpdateDriverLocation handles POST /v1/drivers/:id/location. Unknown
// drivers are registered on their first sample and queued at the nearest
// station; drivers on a ride accrue distance through the step filter.
func (h *Handlers) UpdateDriverLocation(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	if err := h.Engine.IngestPosition(c.Request.Context(), driverID, req.Latitude, req.Longitude); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Location updated"})
}

// GetDriver handles GET /v1/drivers/:id
func (h *Handlers) GetDriver(c *gin.Context) {
	driverID, ok := h.driverParam(c)
	if !ok {
		return
	}

	d, err := h.Drivers.Get(c.Request.Context(), driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driverResponse(d))
}

// GetStationQueue handles GET /v1/stations/:name/drivers. Drivers come
// back in queue order, longest wait first.
func (h *Handlers) GetStationQueue(c *gin.Context) {
	name := c.Param("name")

	queued, err := h.Drivers.QueuedAtStation(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.DriverResponse, 0, len(queued))
	for _, d := range queued {
		out = append(out, driverResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"station": name, "drivers": out})
}

// GetStations handles GET /v1/stations
func (h *Handlers) GetStations(c *gin.Context) {
	stations := h.Stations.All()
	out := make([]dto.StationResponse, 0, len(stations))
	for _, s := range stations {
		out = append(out, dto.StationResponse{Name: s.Name, Latitude: s.Lat, Longitude: s.Lon})
	}
	c.JSON(http.StatusOK, gin.H{"stations": out})
}

func driverResponse(d *driver.Driver) dto.DriverResponse {
	return dto.DriverResponse{
		ID:        d.ID,
		Name:      d.Name,
		CarInfo:   d.CarInfo,
		Phone:     d.Phone,
		Status:    string(d.Status),
		Station:   d.Station,
		Latitude:  d.LastLat,
		Longitude: d.LastLon,
	}
}
