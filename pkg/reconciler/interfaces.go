package reconciler

import (
	"context"
	"time"

	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Scanner yields the canonical MACs currently present on the segment.
type Scanner interface {
	Scan(ctx context.Context) ([]string, error)
}

// Registry is the slice of the policy store the engine drives.
type Registry interface {
	List(ctx context.Context) ([]models.Device, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Device, error)
	Upsert(ctx context.Context, mac string, status models.Status, comment string) error
	Touch(ctx context.Context, mac string) error
}

// Gateway is the slice of the enforcement client the engine drives.
type Gateway interface {
	Initialize(ctx context.Context) error
	Connected() bool
	Block(ctx context.Context, mac string) error
	Allow(ctx context.Context, mac string) error
	ListLanHosts(ctx context.Context) ([]gateway.LanHost, error)
	Hostname(ctx context.Context, mac string) (string, error)
}
