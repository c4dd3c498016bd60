package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/aggregator"
	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
	"github.com/openfeeds/oracle-aggregator/pkg/registry"
)

// Config configures the publication gate's acceptance policy.
type Config struct {
	MinSources     int
	MaxDeviationBp int64
}

// Gate authorizes callers and re-validates values before registry writes.
// The deviation check runs against the caller-supplied source price array,
// not an independently verified set; the gate does not check provenance.
type Gate struct {
	registry registry.Registry
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a publication gate over the given registry.
func New(reg registry.Registry, cfg Config, logger *logging.Logger) *Gate {
	if cfg.MinSources < 1 {
		cfg.MinSources = 3
	}
	if cfg.MaxDeviationBp <= 0 {
		cfg.MaxDeviationBp = 1000
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Gate{
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish validates and writes a candidate price for an asset. The caller
// must be an active publisher; the candidate must sit within the deviation
// threshold of the median of the supplied source prices.
func (g *Gate) Publish(ctx context.Context, asset, caller string, candidate decimal.Decimal, sourceNames []string, sourcePrices []decimal.Decimal) error {
	active, err := g.registry.IsActivePublisher(ctx, caller)
	if err != nil {
		return g.registryErr(err)
	}
	if !active {
		g.logger.Error("Publish rejected: caller not an active publisher",
			"asset", asset, "caller", caller)
		metrics.RecordPublish(asset, "not_authorized")
		return fmt.Errorf("%w: %s", ErrNotAuthorized, caller)
	}

	if len(sourceNames) != len(sourcePrices) {
		metrics.RecordPublish(asset, "mismatched_input")
		return fmt.Errorf("%w: %d names, %d prices", ErrMismatchedInput, len(sourceNames), len(sourcePrices))
	}

	if len(sourcePrices) < g.cfg.MinSources {
		metrics.RecordPublish(asset, "insufficient_sources")
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientSources, len(sourcePrices), g.cfg.MinSources)
	}

	if !candidate.IsPositive() {
		metrics.RecordPublish(asset, "validation_failed")
		return fmt.Errorf("%w: price %s not positive", ErrValidationFailed, candidate)
	}

	if deviation := aggregator.DeviationBp(candidate, sourcePrices); deviation > g.cfg.MaxDeviationBp {
		g.logger.Warn("Publish rejected: candidate deviates from claimed sources",
			"asset", asset, "candidate", candidate.String(),
			"deviation_bp", deviation, "max_bp", g.cfg.MaxDeviationBp)
		metrics.RecordPublish(asset, "validation_failed")
		return fmt.Errorf("%w: deviation %d bp exceeds %d bp", ErrValidationFailed, deviation, g.cfg.MaxDeviationBp)
	}

	now := g.now()
	if err := g.registry.Write(ctx, asset, candidate, now); err != nil {
		metrics.RecordPublish(asset, "registry_error")
		return g.registryErr(err)
	}
	if err := g.registry.TouchPublished(ctx, caller, now); err != nil {
		// The price write already landed; a bookkeeping failure is logged
		// but does not fail the publish.
		g.logger.Warn("Failed to update publisher bookkeeping", "caller", caller, "error", err.Error())
	}

	metrics.RecordPublish(asset, "success")
	g.logger.Info("Published price", "asset", asset, "price", candidate.String(), "caller", caller, "sources", len(sourcePrices))
	return nil
}

// EmergencyPublish writes a price directly, skipping every multi-source
// check except positivity. Requires the governance identity.
func (g *Gate) EmergencyPublish(ctx context.Context, asset, caller string, price decimal.Decimal) error {
	if err := g.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if !price.IsPositive() {
		return fmt.Errorf("%w: price %s not positive", ErrValidationFailed, price)
	}

	now := g.now()
	if err := g.registry.Write(ctx, asset, price, now); err != nil {
		metrics.RecordPublish(asset, "registry_error")
		return g.registryErr(err)
	}
	if err := g.registry.TouchPublished(ctx, caller, now); err != nil {
		g.logger.Warn("Failed to update publisher bookkeeping", "caller", caller, "error", err.Error())
	}

	metrics.RecordPublish(asset, "emergency")
	g.logger.Warn("Emergency price published", "asset", asset, "price", price.String(), "caller", caller)
	return nil
}

// InvalidatePrice clears the valid flag for an asset without altering its
// price or timestamp. Requires the governance identity.
func (g *Gate) InvalidatePrice(ctx context.Context, asset, caller string) error {
	if err := g.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if err := g.registry.Invalidate(ctx, asset); err != nil {
		if errors.Is(err, registry.ErrAssetNotFound) {
			return err
		}
		return g.registryErr(err)
	}

	g.logger.Warn("Published price invalidated", "asset", asset, "caller", caller)
	return nil
}

// RegisterPublisher activates a new publisher identity. Requires the
// governance identity.
func (g *Gate) RegisterPublisher(ctx context.Context, caller, identity, stakeHint string) error {
	if err := g.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if err := g.registry.RegisterPublisher(ctx, identity, stakeHint); err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			return g.registryErr(err)
		}
		return err
	}

	g.logger.Info("Publisher registered", "identity", identity, "caller", caller)
	return nil
}

// EnsurePublisher registers an identity when it is not already active.
// Idempotent; used at startup so the node's own identity can publish.
// Requires the governance identity for the registration itself.
func (g *Gate) EnsurePublisher(ctx context.Context, caller, identity, stakeHint string) error {
	active, err := g.registry.IsActivePublisher(ctx, identity)
	if err != nil {
		return g.registryErr(err)
	}
	if active {
		return nil
	}
	return g.RegisterPublisher(ctx, caller, identity, stakeHint)
}

// DeactivatePublisher deactivates an active publisher identity, retaining
// its record. Requires the governance identity.
func (g *Gate) DeactivatePublisher(ctx context.Context, caller, identity, reason string) error {
	if err := g.requireAdmin(ctx, caller); err != nil {
		return err
	}

	if err := g.registry.DeactivatePublisher(ctx, identity, reason); err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			return g.registryErr(err)
		}
		return err
	}

	g.logger.Info("Publisher deactivated", "identity", identity, "reason", reason, "caller", caller)
	return nil
}

func (g *Gate) requireAdmin(ctx context.Context, caller string) error {
	admin, err := g.registry.IsAdmin(ctx, caller)
	if err != nil {
		return g.registryErr(err)
	}
	if !admin {
		g.logger.Error("Admin operation rejected", "caller", caller)
		return fmt.Errorf("%w: %s requires governance role", ErrNotAuthorized, caller)
	}
	return nil
}

func (g *Gate) registryErr(err error) error {
	return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
}
