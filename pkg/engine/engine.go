// Package engine drives periodic fetch-aggregate-publish rounds for every
// tracked asset and monitors the health of the registry and sources.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/aggregator"
	"github.com/openfeeds/oracle-aggregator/pkg/gate"
	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
	"github.com/openfeeds/oracle-aggregator/pkg/pool"
	"github.com/openfeeds/oracle-aggregator/pkg/registry"
)

// RoundState tracks where an asset's round currently is.
type RoundState string

const (
	StateIdle        RoundState = "idle"
	StateFetching    RoundState = "fetching"
	StateAggregating RoundState = "aggregating"
	StatePublishing  RoundState = "publishing"
)

// PublishListener is notified after every accepted publication. Used by
// the read API to stream updates.
type PublishListener func(asset string, price decimal.Decimal, at time.Time)

// Config configures the engine.
type Config struct {
	Assets                []string
	Identity              string // publisher identity used for writes
	UpdateInterval        time.Duration
	HealthInterval        time.Duration
	FailureAlertThreshold int
	ReferenceAsset        string // asset used for source liveness probes
	DryRun                bool   // run rounds but skip registry writes
}

// Engine owns the scheduling state for all tracked assets. All mutable
// state lives here, constructed once and torn down with the context.
type Engine struct {
	cfg      Config
	pool     *pool.SourcePool
	agg      *aggregator.Aggregator
	gate     *gate.Gate
	registry registry.Registry
	alerter  Alerter
	logger   *logging.Logger

	mu        sync.Mutex
	failures  map[string]int        // consecutive failed rounds per asset
	states    map[string]RoundState // current round state per asset
	listeners []PublishListener
}

// New creates an engine. Defaults: 60s update interval, 5m health
// interval, alert threshold 5.
func New(cfg Config, p *pool.SourcePool, agg *aggregator.Aggregator, g *gate.Gate, reg registry.Registry, alerter Alerter, logger *logging.Logger) *Engine {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 60 * time.Second
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = 5 * time.Minute
	}
	if cfg.FailureAlertThreshold == 0 {
		cfg.FailureAlertThreshold = 5
	}
	if cfg.ReferenceAsset == "" && len(cfg.Assets) > 0 {
		cfg.ReferenceAsset = cfg.Assets[0]
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if alerter == nil {
		alerter = NewLogAlerter(logger)
	}

	states := make(map[string]RoundState, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		states[asset] = StateIdle
	}

	return &Engine{
		cfg:      cfg,
		pool:     p,
		agg:      agg,
		gate:     g,
		registry: reg,
		alerter:  alerter,
		logger:   logger,
		failures: make(map[string]int, len(cfg.Assets)),
		states:   states,
	}
}

// OnPublish registers a listener notified after each accepted publication.
// Must be called before Run.
func (e *Engine) OnPublish(listener PublishListener) {
	e.listeners = append(e.listeners, listener)
}

// RoundStates returns a snapshot of per-asset round states.
func (e *Engine) RoundStates() map[string]RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make(map[string]RoundState, len(e.states))
	for asset, state := range e.states {
		snapshot[asset] = state
	}
	return snapshot
}

// Run executes the scheduling loops until the context is canceled. Both
// cycle types fire once immediately at start. In-flight rounds are allowed
// to finish before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting engine",
		"assets", e.cfg.Assets,
		"update_interval", e.cfg.UpdateInterval.String(),
		"health_interval", e.cfg.HealthInterval.String(),
		"dry_run", e.cfg.DryRun)

	updateTicker := time.NewTicker(e.cfg.UpdateInterval)
	defer updateTicker.Stop()
	healthTicker := time.NewTicker(e.cfg.HealthInterval)
	defer healthTicker.Stop()

	var inflight sync.WaitGroup

	// Cancellation only stops the scheduling loop. Rounds and probes
	// already started run on a detached context so their fetches finish or
	// hit their own per-call timeouts instead of aborting mid-flight.
	workCtx := context.WithoutCancel(ctx)

	runCycle := func() {
		for _, asset := range e.cfg.Assets {
			inflight.Add(1)
			go func(asset string) {
				defer inflight.Done()
				e.runRound(workCtx, asset)
			}(asset)
		}
	}

	runProbe := func() {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			e.runHealthProbe(workCtx)
		}()
	}

	runCycle()
	runProbe()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopping, waiting for in-flight rounds")
			inflight.Wait()
			e.logger.Info("Engine stopped")
			return ctx.Err()

		case <-updateTicker.C:
			runCycle()

		case <-healthTicker.C:
			runProbe()
		}
	}
}

// runRound executes one fetch-aggregate-publish round for one asset. Any
// failure aborts this asset's round only.
func (e *Engine) runRound(ctx context.Context, asset string) {
	start := time.Now()
	defer func() {
		e.setState(asset, StateIdle)
		metrics.RecordRound(asset, time.Since(start))
	}()

	e.setState(asset, StateFetching)
	readings := e.pool.FetchAll(ctx, asset)

	e.setState(asset, StateAggregating)
	result := e.agg.Aggregate(asset, readings)
	if !result.Accepted {
		metrics.RecordRejection(asset, string(result.RejectionReason))
		e.logger.Warn("Round rejected at aggregation",
			"asset", asset, "reason", string(result.RejectionReason), "sources", len(readings))
		e.recordFailure(asset, string(result.RejectionReason))
		return
	}

	if e.cfg.DryRun {
		e.logger.Info("Dry run: skipping publish",
			"asset", asset, "price", result.Price.String(), "sources", len(result.ContributingSources))
		e.recordSuccess(asset, result.Price)
		return
	}

	e.setState(asset, StatePublishing)
	names := make([]string, len(result.ContributingSources))
	prices := make([]decimal.Decimal, len(result.ContributingSources))
	for i, reading := range result.ContributingSources {
		names[i] = reading.Source
		prices[i] = reading.Price
	}

	if err := e.gate.Publish(ctx, asset, e.cfg.Identity, result.Price, names, prices); err != nil {
		e.handlePublishError(asset, err)
		return
	}

	e.recordSuccess(asset, result.Price)
	e.notifyListeners(asset, result.Price, result.ComputedAt)
}

// handlePublishError classifies gate errors. Authorization failures are
// permanent until reconfigured: they alert immediately and are not retried.
func (e *Engine) handlePublishError(asset string, err error) {
	reason := "publish_failed"
	switch {
	case errors.Is(err, gate.ErrNotAuthorized):
		reason = "not_authorized"
		e.alerter.SendAlert(fmt.Sprintf(
			"publisher %s is not authorized to write %s; operator action required", e.cfg.Identity, asset))
	case errors.Is(err, gate.ErrValidationFailed):
		reason = "validation_failed"
	case errors.Is(err, gate.ErrInsufficientSources):
		reason = "insufficient_sources"
	case errors.Is(err, gate.ErrRegistryUnavailable):
		reason = "registry_unavailable"
	}

	metrics.RecordRejection(asset, reason)
	e.logger.Error("Round publish failed", "asset", asset, "reason", reason, "error", err.Error())
	e.recordFailure(asset, reason)
}

// recordFailure bumps the asset's consecutive failure count and alerts on
// every threshold multiple (5, 10, ...), never on every tick.
func (e *Engine) recordFailure(asset, reason string) {
	e.mu.Lock()
	e.failures[asset]++
	count := e.failures[asset]
	e.mu.Unlock()

	metrics.RecordFailureStreak(asset, count)

	if count%e.cfg.FailureAlertThreshold == 0 {
		e.alerter.SendAlert(fmt.Sprintf(
			"asset %s has failed %d consecutive rounds (last reason: %s)", asset, count, reason))
	}
}

// recordSuccess resets the asset's failure streak.
func (e *Engine) recordSuccess(asset string, price decimal.Decimal) {
	e.mu.Lock()
	e.failures[asset] = 0
	e.mu.Unlock()

	metrics.RecordFailureStreak(asset, 0)
	approx, _ := price.Float64()
	metrics.RecordConsensusPrice(asset, approx)
	e.logger.Info("Round completed", "asset", asset, "price", price.String())
}

// FailureCount returns the current consecutive failure count for an asset.
func (e *Engine) FailureCount(asset string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[asset]
}

func (e *Engine) setState(asset string, state RoundState) {
	e.mu.Lock()
	e.states[asset] = state
	e.mu.Unlock()
}

func (e *Engine) notifyListeners(asset string, price decimal.Decimal, at time.Time) {
	for _, listener := range e.listeners {
		listener(asset, price, at)
	}
}
