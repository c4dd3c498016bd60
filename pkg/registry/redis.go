package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	priceKeyPrefix     = "oracle:price:"
	publisherKeyPrefix = "oracle:publisher:"
	publisherSetKey    = "oracle:publishers"
)

// Redis is a registry backend over a redis instance. Prices cross this
// boundary as 18-decimal fixed-point integer strings. Writes rely on
// per-key atomicity of HSET; last-writer-wins.
type Redis struct {
	client    *redis.Client
	admin     string
	staleness time.Duration
	now       func() time.Time
}

// Ensure Redis implements Registry.
var _ Registry = (*Redis)(nil)

// NewRedis creates a redis-backed registry and seeds the admin identity as
// an active publisher if it is not present yet.
func NewRedis(ctx context.Context, client *redis.Client, admin string, staleness time.Duration) (*Redis, error) {
	r := &Redis{
		client:    client,
		admin:     admin,
		staleness: staleness,
		now:       time.Now,
	}

	exists, err := client.Exists(ctx, publisherKeyPrefix+admin).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists == 0 {
		if err := r.storePublisher(ctx, Publisher{
			Identity:     admin,
			Active:       true,
			RegisteredAt: r.now(),
			StakeHint:    "bootstrap",
		}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Write stores the price and timestamp for an asset and marks it valid
func (r *Redis) Write(ctx context.Context, asset string, price decimal.Decimal, timestamp time.Time) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositivePrice, price)
	}

	err := r.client.HSet(ctx, priceKeyPrefix+asset, map[string]interface{}{
		"price":     ToFixedPoint(price),
		"timestamp": timestamp.Unix(),
		"valid":     "1",
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Invalidate clears the valid flag without altering price or timestamp
func (r *Redis) Invalidate(ctx context.Context, asset string) error {
	key := priceKeyPrefix + asset

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}

	if err := r.client.HSet(ctx, key, "valid", "0").Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ReadState returns the current published state for an asset
func (r *Redis) ReadState(ctx context.Context, asset string) (State, error) {
	fields, err := r.client.HGetAll(ctx, priceKeyPrefix+asset).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return State{}, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}

	price, err := FromFixedPoint(fields["price"])
	if err != nil {
		return State{}, err
	}
	unix, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("invalid timestamp %q: %w", fields["timestamp"], err)
	}

	return State{
		Price:     price,
		Timestamp: time.Unix(unix, 0),
		Valid:     fields["valid"] == "1",
	}, nil
}

// IsFresh reports whether the published value is within the staleness
// threshold of now
func (r *Redis) IsFresh(ctx context.Context, asset string) (bool, error) {
	state, err := r.ReadState(ctx, asset)
	if err != nil {
		return false, err
	}
	if !state.Valid {
		return false, nil
	}
	return r.now().Sub(state.Timestamp) <= r.staleness, nil
}

// Ping checks connectivity to the redis instance
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RegisterPublisher activates a new publisher identity
func (r *Redis) RegisterPublisher(ctx context.Context, identity, stakeHint string) error {
	if identity == "" {
		return fmt.Errorf("%w", ErrEmptyIdentity)
	}

	existing, err := r.getPublisher(ctx, identity)
	if err != nil && !isNotFound(err) {
		// Transport failure: the record may well exist, so do not build a
		// fresh one over it.
		return err
	}
	if err == nil && existing.Active {
		return fmt.Errorf("%w: %s", ErrPublisherAlreadyActive, identity)
	}

	pub := existing
	if pub.Identity == "" {
		pub = Publisher{Identity: identity, RegisteredAt: r.now()}
	}
	pub.Active = true
	pub.StakeHint = stakeHint
	pub.DeactivationReason = ""
	return r.storePublisher(ctx, pub)
}

// DeactivatePublisher deactivates an active publisher, retaining the record
func (r *Redis) DeactivatePublisher(ctx context.Context, identity, reason string) error {
	pub, err := r.getPublisher(ctx, identity)
	if err != nil {
		return err
	}
	if !pub.Active {
		return fmt.Errorf("%w: %s", ErrPublisherNotActive, identity)
	}

	pub.Active = false
	pub.DeactivationReason = reason
	return r.storePublisher(ctx, pub)
}

// IsActivePublisher reports whether the identity may publish
func (r *Redis) IsActivePublisher(ctx context.Context, identity string) (bool, error) {
	pub, err := r.getPublisher(ctx, identity)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return pub.Active, nil
}

// GetPublisher returns the publisher record for an identity
func (r *Redis) GetPublisher(ctx context.Context, identity string) (Publisher, error) {
	return r.getPublisher(ctx, identity)
}

// ActivePublisherCount returns the number of active publishers
func (r *Redis) ActivePublisherCount(ctx context.Context) (int, error) {
	identities, err := r.client.SMembers(ctx, publisherSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := 0
	for _, identity := range identities {
		pub, err := r.getPublisher(ctx, identity)
		if err != nil {
			continue
		}
		if pub.Active {
			count++
		}
	}
	return count, nil
}

// TouchPublished updates a publisher's last-published timestamp
func (r *Redis) TouchPublished(ctx context.Context, identity string, at time.Time) error {
	if _, err := r.getPublisher(ctx, identity); err != nil {
		return err
	}
	err := r.client.HSet(ctx, publisherKeyPrefix+identity, "last_published_at", at.Unix()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsAdmin reports whether the identity holds the governance role
func (r *Redis) IsAdmin(ctx context.Context, identity string) (bool, error) {
	if identity != r.admin {
		return false, nil
	}
	return r.IsActivePublisher(ctx, identity)
}

func (r *Redis) getPublisher(ctx context.Context, identity string) (Publisher, error) {
	fields, err := r.client.HGetAll(ctx, publisherKeyPrefix+identity).Result()
	if err != nil {
		return Publisher{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return Publisher{}, fmt.Errorf("%w: %s", ErrPublisherNotFound, identity)
	}

	pub := Publisher{
		Identity:           identity,
		Active:             fields["active"] == "1",
		StakeHint:          fields["stake_hint"],
		DeactivationReason: fields["deactivation_reason"],
	}
	if raw := fields["registered_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			pub.RegisteredAt = time.Unix(unix, 0)
		}
	}
	if raw := fields["last_published_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			pub.LastPublishedAt = time.Unix(unix, 0)
		}
	}
	return pub, nil
}

func (r *Redis) storePublisher(ctx context.Context, pub Publisher) error {
	active := "0"
	if pub.Active {
		active = "1"
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, publisherKeyPrefix+pub.Identity, map[string]interface{}{
		"active":              active,
		"registered_at":       pub.RegisteredAt.Unix(),
		"last_published_at":   pub.LastPublishedAt.Unix(),
		"stake_hint":          pub.StakeHint,
		"deactivation_reason": pub.DeactivationReason,
	})
	pipe.SAdd(ctx, publisherSetKey, pub.Identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrPublisherNotFound)
}
