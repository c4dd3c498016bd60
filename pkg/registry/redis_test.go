package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, err := NewRedis(context.Background(), client, "admin", time.Hour)
	require.NoError(t, err)
	return reg, mr
}

func TestRedis_SeedsBootstrapAdmin(t *testing.T) {
	reg, _ := newTestRedis(t)
	ctx := context.Background()

	active, err := reg.IsActivePublisher(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, active)

	admin, err := reg.IsAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin)

	pub, err := reg.GetPublisher(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", pub.StakeHint)

	count, err := reg.ActivePublisherCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedis_WriteAndReadState(t *testing.T) {
	reg, mr := newTestRedis(t)
	ctx := context.Background()

	at := time.Unix(1767268800, 0)
	require.NoError(t, reg.Write(ctx, "BTC", decimal.RequireFromString("50000.5"), at))

	// The stored fields are 18-decimal fixed-point plus a unix timestamp.
	assert.Equal(t, "50000500000000000000000", mr.HGet("oracle:price:BTC", "price"))
	assert.Equal(t, "1767268800", mr.HGet("oracle:price:BTC", "timestamp"))
	assert.Equal(t, "1", mr.HGet("oracle:price:BTC", "valid"))

	state, err := reg.ReadState(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, state.Price.Equal(decimal.RequireFromString("50000.5")), "got %s", state.Price)
	assert.True(t, state.Timestamp.Equal(at))
	assert.True(t, state.Valid)

	err = reg.Write(ctx, "BTC", decimal.Zero, at)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = reg.ReadState(ctx, "ETH")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestRedis_InvalidatePreservesPriceAndTimestamp(t *testing.T) {
	reg, _ := newTestRedis(t)
	ctx := context.Background()

	at := time.Unix(1767268800, 0)
	require.NoError(t, reg.Write(ctx, "BTC", decimal.NewFromInt(50000), at))
	require.NoError(t, reg.Invalidate(ctx, "BTC"))

	state, err := reg.ReadState(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, state.Valid)
	assert.True(t, state.Price.Equal(decimal.NewFromInt(50000)))
	assert.True(t, state.Timestamp.Equal(at))

	err = reg.Invalidate(ctx, "ETH")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestRedis_IsFreshBoundary(t *testing.T) {
	reg, _ := newTestRedis(t)
	ctx := context.Background()

	at := time.Unix(1767268800, 0)
	require.NoError(t, reg.Write(ctx, "BTC", decimal.NewFromInt(50000), at))

	// Exactly at the staleness threshold is still fresh; one second past
	// is not.
	reg.now = func() time.Time { return at.Add(time.Hour) }
	fresh, err := reg.IsFresh(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, fresh)

	reg.now = func() time.Time { return at.Add(time.Hour + time.Second) }
	fresh, err = reg.IsFresh(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, fresh)

	// Invalidated values are never fresh, whatever their age.
	require.NoError(t, reg.Invalidate(ctx, "BTC"))
	reg.now = func() time.Time { return at }
	fresh, err = reg.IsFresh(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestRedis_PublisherLifecycle(t *testing.T) {
	reg, _ := newTestRedis(t)
	ctx := context.Background()

	registeredAt := time.Unix(1767268800, 0)
	reg.now = func() time.Time { return registeredAt }

	require.NoError(t, reg.RegisterPublisher(ctx, "feeder-1", "stake:100"))
	err := reg.RegisterPublisher(ctx, "feeder-1", "stake:100")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublisherAlreadyActive)

	pub, err := reg.GetPublisher(ctx, "feeder-1")
	require.NoError(t, err)
	assert.True(t, pub.Active)
	assert.True(t, pub.RegisteredAt.Equal(registeredAt))
	assert.Equal(t, "stake:100", pub.StakeHint)

	touchedAt := registeredAt.Add(time.Minute)
	require.NoError(t, reg.TouchPublished(ctx, "feeder-1", touchedAt))
	pub, err = reg.GetPublisher(ctx, "feeder-1")
	require.NoError(t, err)
	assert.True(t, pub.LastPublishedAt.Equal(touchedAt))

	require.NoError(t, reg.DeactivatePublisher(ctx, "feeder-1", "rotation"))
	active, err := reg.IsActivePublisher(ctx, "feeder-1")
	require.NoError(t, err)
	assert.False(t, active)

	// Re-registration reactivates the record, keeping RegisteredAt.
	reg.now = func() time.Time { return registeredAt.Add(time.Hour) }
	require.NoError(t, reg.RegisterPublisher(ctx, "feeder-1", "stake:200"))
	pub, err = reg.GetPublisher(ctx, "feeder-1")
	require.NoError(t, err)
	assert.True(t, pub.Active)
	assert.True(t, pub.RegisteredAt.Equal(registeredAt))
	assert.Empty(t, pub.DeactivationReason)

	// Unknown identities are not active, and not admins.
	active, err = reg.IsActivePublisher(ctx, "stranger")
	require.NoError(t, err)
	assert.False(t, active)
	admin, err := reg.IsAdmin(ctx, "feeder-1")
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestRedis_RegisterPublisherTransportFailure(t *testing.T) {
	reg, mr := newTestRedis(t)
	ctx := context.Background()

	registeredAt := time.Unix(1767268800, 0)
	reg.now = func() time.Time { return registeredAt }
	require.NoError(t, reg.RegisterPublisher(ctx, "feeder-1", "stake:100"))
	require.NoError(t, reg.DeactivatePublisher(ctx, "feeder-1", "rotation"))

	// While the backend is unreachable, registration must fail instead of
	// writing a fresh record over the existing one.
	mr.SetError("LOADING redis is loading the dataset in memory")
	reg.now = func() time.Time { return registeredAt.Add(time.Hour) }
	err := reg.RegisterPublisher(ctx, "feeder-1", "stake:200")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	mr.SetError("")
	pub, err := reg.GetPublisher(ctx, "feeder-1")
	require.NoError(t, err)
	assert.False(t, pub.Active)
	assert.True(t, pub.RegisteredAt.Equal(registeredAt))
	assert.Equal(t, "rotation", pub.DeactivationReason)
	assert.Equal(t, "stake:100", pub.StakeHint)
}
