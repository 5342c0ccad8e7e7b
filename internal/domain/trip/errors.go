package trip

import "errors"

var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrTripExists     = errors.New("driver already has an active trip")
	ErrRideInProgress = errors.New("trip is already riding")
)
