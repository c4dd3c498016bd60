// Package pool fans out price fetches to all configured sources for one
// asset, with a hard per-call timeout and bounded retry. Per-source failures
// are absorbed here; callers only ever see the readings that succeeded.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
	"github.com/openfeeds/oracle-aggregator/pkg/retry"
	"github.com/openfeeds/oracle-aggregator/pkg/sources"
)

// Reading is one successful per-source price observation. Readings live for
// a single aggregation round and are never persisted.
type Reading struct {
	Source     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Exclusion marks one asset as not fetchable from one source.
type Exclusion struct {
	Asset  string
	Source string
}

// Config configures a SourcePool.
type Config struct {
	FetchTimeout time.Duration // hard per-call timeout
	MaxAttempts  int           // attempts per source before giving up
	BackoffBase  time.Duration // backoff = base * attempt
	Exclusions   []Exclusion   // asset/source pairs skipped without a call
}

// SourcePool executes concurrent fetches against a fixed set of sources.
type SourcePool struct {
	sources  []sources.Source
	excluded map[string]map[string]bool // asset -> source -> skip
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a SourcePool over the given sources.
func New(srcs []sources.Source, cfg Config, logger *logging.Logger) *SourcePool {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Second
	}

	excluded := make(map[string]map[string]bool)
	for _, excl := range cfg.Exclusions {
		if excluded[excl.Asset] == nil {
			excluded[excl.Asset] = make(map[string]bool)
		}
		excluded[excl.Asset][excl.Source] = true
	}

	return &SourcePool{
		sources:  srcs,
		excluded: excluded,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Sources returns the configured sources, for health probing.
func (p *SourcePool) Sources() []sources.Source {
	return p.sources
}

// Excluded reports whether the asset is excluded for the named source.
func (p *SourcePool) Excluded(asset, source string) bool {
	return p.excluded[asset][source]
}

// FetchAll fetches the asset price from every non-excluded source
// concurrently. It blocks until every fetch has succeeded or exhausted its
// retries; no reading arrives after it returns. Failures are logged and
// dropped, never propagated.
func (p *SourcePool) FetchAll(ctx context.Context, asset string) []Reading {
	results := make([]Reading, len(p.sources))
	ok := make([]bool, len(p.sources))

	var wg sync.WaitGroup
	for i, src := range p.sources {
		if p.Excluded(asset, src.Name()) {
			p.logger.Debug("Skipping excluded source", "asset", asset, "source", src.Name())
			continue
		}

		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			reading, err := p.fetchOne(ctx, src, asset)
			if err != nil {
				metrics.RecordSourceFetch(src.Name(), asset, "failure")
				p.logger.Warn("Source fetch failed after retries",
					"asset", asset, "source", src.Name(), "error", err.Error())
				return
			}

			metrics.RecordSourceFetch(src.Name(), asset, "success")
			results[i] = reading
			ok[i] = true
		}(i, src)
	}
	wg.Wait()

	readings := make([]Reading, 0, len(p.sources))
	for i := range results {
		if ok[i] {
			readings = append(readings, results[i])
		}
	}
	return readings
}

// fetchOne fetches one asset from one source with timeout and bounded retry.
func (p *SourcePool) fetchOne(ctx context.Context, src sources.Source, asset string) (Reading, error) {
	var price decimal.Decimal

	err := retry.Do(ctx, p.cfg.MaxAttempts, retry.Linear(p.cfg.BackoffBase), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()

		fetched, err := src.GetPrice(callCtx, asset)
		if err != nil {
			return err
		}
		price = fetched
		return nil
	})
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Source:     src.Name(),
		Price:      price,
		ObservedAt: p.now(),
	}, nil
}
