package scanner

import "errors"

var (
	// ErrNoInterface is returned when the scan interface is not configured.
	ErrNoInterface = errors.New("scan interface is required")

	// ErrScanFailed wraps exec failures and timeouts from the scan command.
	ErrScanFailed = errors.New("network scan failed")

	// ErrEmptyScan is returned when a scan completes without seeing a single
	// device. The segment always contains at least the gateway, so an empty
	// result means the scan itself is broken and must not drive policy.
	ErrEmptyScan = errors.New("network scan returned no devices")
)
