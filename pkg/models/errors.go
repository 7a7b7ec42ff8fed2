package models

import "errors"

var (
	// ErrInvalidMAC indicates input that cannot be normalized to a MAC address.
	ErrInvalidMAC = errors.New("invalid MAC address")
	// ErrInvalidStatus indicates a status outside the closed policy set.
	ErrInvalidStatus = errors.New("invalid device status")

	errInvalidDuration = errors.New("invalid duration")
)
