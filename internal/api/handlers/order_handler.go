package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taxipark/station-dispatch/internal/api/dto"
	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/service/dispatch"
	"github.com/taxipark/station-dispatch/internal/service/lifecycle"
	"github.com/taxipark/station-dispatch/pkg/logger"
	"github.com/taxipark/station-dispatch/pkg/websocket"
)

// CreateOrder handles POST /v1/orders. The pickup point is snapped to the
// nearest station and the order is offered to the driver who has waited
// there longest. When the station queue is empty the order is broadcast to
// every connected driver instead.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	if !validCoordinates(req.PickupLatitude, req.PickupLongitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	ctx := c.Request.Context()
	st, _ := h.Stations.Nearest(req.PickupLatitude, req.PickupLongitude)

	order := &dispatch.Order{
		ID:            uuid.New(),
		ClientID:      req.ClientID,
		ClientName:    req.ClientName,
		ClientContact: req.ClientContact,
		PickupLat:     req.PickupLatitude,
		PickupLon:     req.PickupLongitude,
		Station:       st.Name,
		CreatedAt:     time.Now(),
	}
	if err := h.Board.Put(ctx, order); err != nil {
		h.Logger.Error("Failed to store order", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	h.Logger.Info("Order received",
		logger.String("order_id", order.ID.String()),
		logger.Int64("client_id", req.ClientID),
		logger.String("station", st.Name),
	)

	offered := h.offerOrder(ctx, order)
	status := "offered"
	if offered == nil {
		status = "broadcast"
	}

	c.JSON(http.StatusOK, dto.OrderResponse{
		ID:              order.ID,
		ClientID:        order.ClientID,
		ClientName:      order.ClientName,
		Station:         order.Station,
		PickupLatitude:  order.PickupLat,
		PickupLongitude: order.PickupLon,
		Status:          status,
		OfferedTo:       offered,
	})
}

// GetOrder handles GET /v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, err := h.Board.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := "open"
	if order.OfferedTo != nil {
		status = "offered"
	}
	c.JSON(http.StatusOK, dto.OrderResponse{
		ID:              order.ID,
		ClientID:        order.ClientID,
		ClientName:      order.ClientName,
		Station:         order.Station,
		PickupLatitude:  order.PickupLat,
		PickupLongitude: order.PickupLon,
		Status:          status,
		OfferedTo:       order.OfferedTo,
	})
}

// AcceptOrder handles POST /v1/drivers/:id/accept. The claim is first
// write wins, so with a broadcast order the quickest driver gets the trip
// and everyone else gets a conflict.
func (h *Handlers) AcceptOrder(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver id"})
		return
	}

	var req dto.AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	ctx := c.Request.Context()
	order, err := h.Board.Get(ctx, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.Board.Claim(ctx, orderID, driverID); err != nil {
		h.respondError(c, err)
		return
	}

	t, err := h.Engine.Accept(ctx, lifecycle.AcceptRequest{
		DriverID:      driverID,
		ClientID:      order.ClientID,
		ClientName:    order.ClientName,
		ClientContact: order.ClientContact,
		PickupLat:     order.PickupLat,
		PickupLon:     order.PickupLon,
	})
	if err != nil {
		// The claim never became a trip; release it or the order would
		// stay refused for every later driver.
		if uerr := h.Board.Unclaim(ctx, orderID, driverID); uerr != nil {
			h.Logger.Warn("Failed to release dead claim",
				logger.String("order_id", orderID.String()),
				logger.Int64("driver_id", driverID),
				logger.Err(uerr),
			)
		}
		h.respondError(c, err)
		return
	}

	if err := h.Board.Remove(ctx, orderID); err != nil {
		h.Logger.Warn("Failed to remove claimed order", logger.String("order_id", orderID.String()), logger.Err(err))
	}

	if _, err := h.Hub.Send(ctx, order.ClientID, "Driver accepted your order and is on the way."); err != nil {
		h.Logger.Debug("Failed to notify client of acceptance", logger.Int64("client_id", order.ClientID), logger.Err(err))
	}

	h.Logger.Info("Order accepted",
		logger.String("order_id", orderID.String()),
		logger.Int64("driver_id", driverID),
	)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Order accepted",
		Data: dto.TripResponse{
			DriverID: t.DriverID,
			ClientID: t.ClientID,
			Phase:    string(t.Phase),
		},
	})
}

// DeclineOrder handles POST /v1/drivers/:id/decline. The declining driver
// is excluded for this order and the offer moves to the next driver in the
// station queue; when the queue runs out the order is broadcast.
func (h *Handlers) DeclineOrder(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver id"})
		return
	}

	var req dto.DeclineOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	ctx := c.Request.Context()
	order, err := h.Board.Exclude(ctx, orderID, driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("Order declined",
		logger.String("order_id", orderID.String()),
		logger.Int64("driver_id", driverID),
	)

	offered := h.offerOrder(ctx, order)
	status := "offered"
	if offered == nil {
		status = "broadcast"
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Order passed on",
		Data:    gin.H{"status": status, "offered_to": offered},
	})
}

// offerOrder finds the next driver for the order and pushes the offer to
// them. It returns the driver id, or nil when no queued driver is left and
// the order was broadcast instead.
func (h *Handlers) offerOrder(ctx context.Context, order *dispatch.Order) *int64 {
	cand, err := h.Matcher.Match(ctx, order.PickupLat, order.PickupLon, order.ExcludedSet())
	if errors.Is(err, driver.ErrNoDriversAvailable) {
		if h.Monitor != nil {
			h.Monitor.RecordOrderBroadcast(order.Station)
		}
		if err := h.Board.SetOffered(ctx, order.ID, nil); err != nil {
			h.Logger.Warn("Failed to clear order offer", logger.Err(err))
		}
		h.Hub.Broadcast("driver", broadcastMessage(order))
		if _, err := h.Hub.Send(ctx, order.ClientID, "No free driver right now, please wait."); err != nil {
			h.Logger.Debug("Failed to notify client of broadcast", logger.Int64("client_id", order.ClientID), logger.Err(err))
		}
		h.Logger.Info("Order broadcast to all drivers",
			logger.String("order_id", order.ID.String()),
			logger.String("station", order.Station),
		)
		return nil
	}
	if err != nil {
		h.Logger.Error("Matching failed", logger.String("order_id", order.ID.String()), logger.Err(err))
		return nil
	}

	id := cand.Driver.ID
	if err := h.Board.SetOffered(ctx, order.ID, &id); err != nil {
		h.Logger.Warn("Failed to record order offer", logger.Err(err))
	}

	if h.Monitor != nil {
		h.Monitor.RecordOrderMatched(cand.Station, id, cand.StationDistanceKM)
	}

	if _, err := h.Hub.Send(ctx, id, offerText(order, cand.StationDistanceKM)); err != nil {
		h.Logger.Warn("Failed to push offer to driver",
			logger.Int64("driver_id", id),
			logger.Err(err),
		)
	}
	h.Logger.Info("Order offered",
		logger.String("order_id", order.ID.String()),
		logger.Int64("driver_id", id),
		logger.String("station", cand.Station),
	)
	return &id
}

func offerText(order *dispatch.Order, distanceKM float64) string {
	name := order.ClientName
	if name == "" {
		name = "Client"
	}
	text := fmt.Sprintf("New order %s: %s at %s, %.1f km from the station (%.5f, %.5f)",
		order.ID, name, order.Station, distanceKM, order.PickupLat, order.PickupLon)
	if order.ClientContact != "" {
		text += ", contact: " + order.ClientContact
	}
	return text
}

func broadcastMessage(order *dispatch.Order) websocket.Message {
	return websocket.Message{
		Type: "order_broadcast",
		Data: gin.H{
			"order_id": order.ID.String(),
			"station":  order.Station,
			"pickup": gin.H{
				"latitude":  order.PickupLat,
				"longitude": order.PickupLon,
			},
		},
	}
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
