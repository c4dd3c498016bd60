package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
	"github.com/openfeeds/oracle-aggregator/pkg/registry"
)

const probeTimeout = 10 * time.Second

// runHealthProbe checks registry connectivity, the published state of every
// tracked asset, and the liveness of every source. Failing checks are
// aggregated into one alert message.
func (e *Engine) runHealthProbe(ctx context.Context) {
	e.logger.Debug("Running health probe")

	var failing []string

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := e.registry.Ping(probeCtx)
	cancel()
	if err != nil {
		metrics.RecordRegistryUp(false)
		metrics.RecordHealthCheckFailure("registry_ping")
		failing = append(failing, fmt.Sprintf("registry unreachable: %v", err))
	} else {
		metrics.RecordRegistryUp(true)
	}

	// Published state per tracked asset: a missing value is expected before
	// the first round; a stale or invalidated one is reported.
	for _, asset := range e.cfg.Assets {
		readCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		fresh, err := e.registry.IsFresh(readCtx, asset)
		cancel()

		switch {
		case errors.Is(err, registry.ErrAssetNotFound):
			e.logger.Debug("No published value yet", "asset", asset)
		case err != nil:
			metrics.RecordHealthCheckFailure("registry_read")
			failing = append(failing, fmt.Sprintf("cannot read %s state: %v", asset, err))
		case !fresh:
			metrics.RecordHealthCheckFailure("stale_price")
			failing = append(failing, fmt.Sprintf("published price for %s is stale or invalidated", asset))
		}
	}

	// Lightweight liveness fetch against every source using the reference
	// asset; excluded reference pairs fall back to the venue ping.
	for _, src := range e.pool.Sources() {
		fetchCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		var err error
		if e.cfg.ReferenceAsset != "" && !e.pool.Excluded(e.cfg.ReferenceAsset, src.Name()) {
			_, err = src.GetPrice(fetchCtx, e.cfg.ReferenceAsset)
		} else {
			err = src.Ping(fetchCtx)
		}
		cancel()

		if err != nil {
			metrics.RecordHealthCheckFailure("source_" + src.Name())
			failing = append(failing, fmt.Sprintf("source %s failed liveness check: %v", src.Name(), err))
		}
	}

	if len(failing) > 0 {
		e.alerter.SendAlert("health probe found failing checks: " + strings.Join(failing, "; "))
		e.logger.Warn("Health probe completed with failures", "failing", len(failing))
		return
	}

	e.logger.Debug("Health probe completed, all checks passing")
}
