package gateway

import "net/http"

// HTTPClient is the interface for making HTTP requests. It lets tests
// stub the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionStore supplies the pairing token and persists rotated session
// tokens between runs. credstore.Store satisfies it.
type SessionStore interface {
	AppToken() (string, error)
	SessionToken() string
	SaveSessionToken(token string) error
	Refresh() (string, error)
}
