package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory is an in-process registry backend. All operations are serialized
// under one mutex, which is the write-atomicity guarantee the engine
// relies on.
type Memory struct {
	mu         sync.RWMutex
	states     map[string]State
	publishers map[string]Publisher
	admin      string
	staleness  time.Duration
	now        func() time.Time
}

// Ensure Memory implements Registry.
var _ Registry = (*Memory)(nil)

// NewMemory creates an in-memory registry. The admin identity is seeded as
// an active publisher holding the governance role; every later
// authorization change goes through the same gated paths.
func NewMemory(admin string, staleness time.Duration) *Memory {
	m := &Memory{
		states:     make(map[string]State),
		publishers: make(map[string]Publisher),
		admin:      admin,
		staleness:  staleness,
		now:        time.Now,
	}
	m.publishers[admin] = Publisher{
		Identity:     admin,
		Active:       true,
		RegisteredAt: m.now(),
		StakeHint:    "bootstrap",
	}
	return m
}

// Write stores the price and timestamp for an asset and marks it valid
func (m *Memory) Write(_ context.Context, asset string, price decimal.Decimal, timestamp time.Time) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositivePrice, price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[asset] = State{
		Price:     price,
		Timestamp: timestamp,
		Valid:     true,
	}
	return nil
}

// Invalidate clears the valid flag without altering price or timestamp
func (m *Memory) Invalidate(_ context.Context, asset string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	state.Valid = false
	m.states[asset] = state
	return nil
}

// ReadState returns the current published state for an asset
func (m *Memory) ReadState(_ context.Context, asset string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[asset]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	return state, nil
}

// IsFresh reports whether the published value is within the staleness
// threshold of now
func (m *Memory) IsFresh(ctx context.Context, asset string) (bool, error) {
	state, err := m.ReadState(ctx, asset)
	if err != nil {
		return false, err
	}
	if !state.Valid {
		return false, nil
	}
	return m.now().Sub(state.Timestamp) <= m.staleness, nil
}

// Ping checks connectivity; always reachable in-process
func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// RegisterPublisher activates a new publisher identity
func (m *Memory) RegisterPublisher(_ context.Context, identity, stakeHint string) error {
	if identity == "" {
		return fmt.Errorf("%w", ErrEmptyIdentity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.publishers[identity]; ok && existing.Active {
		return fmt.Errorf("%w: %s", ErrPublisherAlreadyActive, identity)
	}

	// A previously deactivated identity may be re-registered; its record
	// is reactivated in place to keep history.
	pub, ok := m.publishers[identity]
	if !ok {
		pub = Publisher{Identity: identity, RegisteredAt: m.now()}
	}
	pub.Active = true
	pub.StakeHint = stakeHint
	pub.DeactivationReason = ""
	m.publishers[identity] = pub
	return nil
}

// DeactivatePublisher deactivates an active publisher, retaining the record
func (m *Memory) DeactivatePublisher(_ context.Context, identity, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, ok := m.publishers[identity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPublisherNotFound, identity)
	}
	if !pub.Active {
		return fmt.Errorf("%w: %s", ErrPublisherNotActive, identity)
	}

	pub.Active = false
	pub.DeactivationReason = reason
	m.publishers[identity] = pub
	return nil
}

// IsActivePublisher reports whether the identity may publish
func (m *Memory) IsActivePublisher(_ context.Context, identity string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pub, ok := m.publishers[identity]
	return ok && pub.Active, nil
}

// GetPublisher returns the publisher record for an identity
func (m *Memory) GetPublisher(_ context.Context, identity string) (Publisher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pub, ok := m.publishers[identity]
	if !ok {
		return Publisher{}, fmt.Errorf("%w: %s", ErrPublisherNotFound, identity)
	}
	return pub, nil
}

// ActivePublisherCount returns the number of active publishers
func (m *Memory) ActivePublisherCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, pub := range m.publishers {
		if pub.Active {
			count++
		}
	}
	return count, nil
}

// TouchPublished updates a publisher's last-published timestamp
func (m *Memory) TouchPublished(_ context.Context, identity string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, ok := m.publishers[identity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPublisherNotFound, identity)
	}
	pub.LastPublishedAt = at
	m.publishers[identity] = pub
	return nil
}

// IsAdmin reports whether the identity holds the governance role
func (m *Memory) IsAdmin(_ context.Context, identity string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if identity != m.admin {
		return false, nil
	}
	pub, ok := m.publishers[identity]
	return ok && pub.Active, nil
}
