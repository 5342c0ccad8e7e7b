package driver

import "errors"

var (
	ErrDriverNotFound      = errors.New("driver not found")
	ErrDriverNotAvailable  = errors.New("driver is not available")
	ErrNoDriversAvailable  = errors.New("no drivers available at station")
	ErrInvalidDriverStatus = errors.New("invalid driver status")
)
