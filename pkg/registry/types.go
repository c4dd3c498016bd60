package registry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// State is the registry's current published value for one asset. Freshness
// is derived at read time, never stored.
type State struct {
	Price     decimal.Decimal
	Timestamp time.Time
	Valid     bool
}

// Publisher is an identity authorized to submit price updates. Deactivated
// publishers are retained, not erased.
type Publisher struct {
	Identity           string
	Active             bool
	RegisteredAt       time.Time
	LastPublishedAt    time.Time
	StakeHint          string
	DeactivationReason string
}

// Registry is the authoritative store of the last accepted price per asset
// plus the publisher authorization set. Implementations must serialize
// concurrent writes to the same asset; last-writer-wins is acceptable.
type Registry interface {
	// Write stores the price and timestamp for an asset and marks it valid
	Write(ctx context.Context, asset string, price decimal.Decimal, timestamp time.Time) error

	// Invalidate clears the valid flag without altering price or timestamp
	Invalidate(ctx context.Context, asset string) error

	// ReadState returns the current published state for an asset
	ReadState(ctx context.Context, asset string) (State, error)

	// IsFresh reports whether the published value is within the staleness
	// threshold of now; an invalidated or absent value is never fresh
	IsFresh(ctx context.Context, asset string) (bool, error)

	// Ping checks connectivity to the backing store
	Ping(ctx context.Context) error

	// RegisterPublisher activates a new publisher identity; fails if the
	// identity is already active
	RegisterPublisher(ctx context.Context, identity, stakeHint string) error

	// DeactivatePublisher deactivates an active publisher, retaining the
	// record; fails if the identity is not currently active
	DeactivatePublisher(ctx context.Context, identity, reason string) error

	// IsActivePublisher reports whether the identity may publish
	IsActivePublisher(ctx context.Context, identity string) (bool, error)

	// GetPublisher returns the publisher record for an identity
	GetPublisher(ctx context.Context, identity string) (Publisher, error)

	// ActivePublisherCount returns the number of active publishers
	ActivePublisherCount(ctx context.Context) (int, error)

	// TouchPublished updates a publisher's last-published timestamp
	TouchPublished(ctx context.Context, identity string, at time.Time) error

	// IsAdmin reports whether the identity holds the governance role
	IsAdmin(ctx context.Context, identity string) (bool, error)
}
