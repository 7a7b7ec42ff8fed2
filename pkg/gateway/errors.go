package gateway

import "errors"

var (
	ErrNoEndpoint       = errors.New("no gateway endpoint answered version discovery")
	ErrInvalidEndpoint  = errors.New("invalid gateway endpoint URL")
	ErrAuthRequired     = errors.New("gateway pairing required")
	ErrNotConnected     = errors.New("gateway client is not connected")
	ErrSessionRejected  = errors.New("gateway rejected the session token")
	ErrRequestFailed    = errors.New("gateway request failed")
	ErrUnexpectedStatus = errors.New("unexpected gateway response status")
	ErrChallengeMissing = errors.New("gateway login response carried no challenge")
	ErrPairingDenied    = errors.New("pairing request denied on the gateway")
	ErrPairingTimeout   = errors.New("pairing request timed out on the gateway")
)
