package dto

import "github.com/google/uuid"

// CreateOrderRequest represents a client asking for a taxi
type CreateOrderRequest struct {
	ClientID        int64   `json:"client_id" binding:"required"`
	ClientName      string  `json:"client_name"`
	ClientContact   string  `json:"client_contact"`
	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`
}

// UpdateLocationRequest represents a driver location sample. Coordinates
// carry no required binding because 0 is a legitimate value; ranges are
// checked by the handler instead.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RegisterDriverRequest carries the profile a driver submits when signing
// up or updating their details
type RegisterDriverRequest struct {
	Name    string `json:"name" binding:"required"`
	CarInfo string `json:"car_info"`
	Phone   string `json:"phone"`
}

// AcceptOrderRequest represents a driver taking an open order
type AcceptOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// DeclineOrderRequest represents a driver passing on an offer
type DeclineOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// OrderResponse is the open order as shown to drivers and the client
type OrderResponse struct {
	ID              uuid.UUID `json:"id"`
	ClientID        int64     `json:"client_id"`
	ClientName      string    `json:"client_name,omitempty"`
	Station         string    `json:"station"`
	PickupLatitude  float64   `json:"pickup_latitude"`
	PickupLongitude float64   `json:"pickup_longitude"`
	Status          string    `json:"status"`
	OfferedTo       *int64    `json:"offered_to,omitempty"`
}

// TripResponse is the live view of an active trip
type TripResponse struct {
	DriverID    int64   `json:"driver_id"`
	ClientID    int64   `json:"client_id"`
	Phase       string  `json:"phase"`
	DistanceKM  float64 `json:"distance_km"`
	WaitMinutes float64 `json:"wait_minutes"`
	FareSoFar   float64 `json:"fare_so_far"`
}

// DriverResponse is the driver profile with queue placement
type DriverResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name,omitempty"`
	CarInfo   string   `json:"car_info,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Status    string   `json:"status"`
	Station   *string  `json:"station,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// StationResponse is one pickup station
type StationResponse struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
