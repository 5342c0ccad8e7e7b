package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taxipark/station-dispatch/internal/api/handlers"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket connection
		v1.GET("/ws", h.HandleWebSocket)

		// Order endpoints
		orders := v1.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("/:id", h.GetOrder)
		}

		// Driver endpoints
		drivers := v1.Group("/drivers")
		{
			drivers.GET("/:id", h.GetDriver)
			drivers.PUT("/:id", h.RegisterDriver)
			drivers.POST("/:id/location", h.UpdateDriverLocation)
			drivers.POST("/:id/accept", h.AcceptOrder)
			drivers.POST("/:id/decline", h.DeclineOrder)
			drivers.POST("/:id/arrive", h.Arrive)
			drivers.POST("/:id/wait", h.ToggleWait)
			drivers.POST("/:id/ride", h.StartRide)
			drivers.POST("/:id/finish", h.FinishTrip)
			drivers.POST("/:id/cancel", h.CancelTrip)
			drivers.GET("/:id/trip", h.GetTrip)
		}

		// Station endpoints
		stations := v1.Group("/stations")
		{
			stations.GET("", h.GetStations)
			stations.GET("/:name/drivers", h.GetStationQueue)
		}
	}
}
