package config

import "context"

// ConfigLoader loads configuration from a backing source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that can validate themselves.
// Validate may also fill in defaults for unset fields.
type Validator interface {
	Validate() error
}
