package api

import (
	"context"

	"github.com/lanwarden/lanwarden/pkg/models"
)

// Registry is the slice of the policy store the API serves.
type Registry interface {
	List(ctx context.Context) ([]models.Device, error)
	Get(ctx context.Context, mac string) (*models.Device, error)
	Upsert(ctx context.Context, mac string, status models.Status, comment string) error
	UpdateStatus(ctx context.Context, mac string, status models.Status) error
	UpdateComment(ctx context.Context, mac, comment string) error
	Delete(ctx context.Context, mac string) error
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

// Gateway is the slice of the enforcement client the API drives.
type Gateway interface {
	Connected() bool
	TestConnection(ctx context.Context) error
	Block(ctx context.Context, mac string) error
	Allow(ctx context.Context, mac string) error
}
