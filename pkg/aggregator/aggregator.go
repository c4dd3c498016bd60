// Package aggregator reconciles per-source readings into one consensus
// price and applies the acceptance policy.
package aggregator

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/pool"
)

const (
	// DefaultMinSources is the minimum number of contributing sources for
	// an accepted consensus value.
	DefaultMinSources = 3
	// LargeMoveWindow bounds the lookback for the large-movement warning.
	LargeMoveWindow = 5 * time.Minute
	// largeMovePct is the accepted-to-accepted move that triggers a warning.
	largeMovePct = 0.10
)

// Aggregator computes median consensus prices with acceptance checks.
type Aggregator struct {
	minSources int
	logger     *logging.Logger
	now        func() time.Time

	mu         sync.Mutex
	lastPrices map[string]lastAccepted // anomaly baseline, per asset
}

type lastAccepted struct {
	price decimal.Decimal
	at    time.Time
}

// New creates an aggregator enforcing the given minimum source count.
func New(minSources int, logger *logging.Logger) *Aggregator {
	if minSources < 1 {
		minSources = DefaultMinSources
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Aggregator{
		minSources: minSources,
		logger:     logger,
		now:        time.Now,
		lastPrices: make(map[string]lastAccepted),
	}
}

// Aggregate computes the consensus price for one asset from one round of
// readings. The candidate price IS the median of the readings; no external
// candidate is accepted here.
func (a *Aggregator) Aggregate(asset string, readings []pool.Reading) ConsensusResult {
	result := ConsensusResult{
		Asset:               asset,
		ContributingSources: readings,
		ComputedAt:          a.now(),
	}

	if len(readings) < a.minSources {
		a.logger.Warn("Insufficient sources for consensus",
			"asset", asset, "got", len(readings), "need", a.minSources)
		result.RejectionReason = ReasonInsufficientSources
		return result
	}

	prices := make([]decimal.Decimal, len(readings))
	for i, r := range readings {
		prices[i] = r.Price
	}

	median := Median(prices)
	if !median.IsPositive() {
		a.logger.Warn("Consensus price not positive", "asset", asset, "median", median.String())
		result.RejectionReason = ReasonNonPositivePrice
		return result
	}

	result.Price = median
	result.Accepted = true

	a.warnOnLargeMove(asset, median, result.ComputedAt)

	return result
}

// warnOnLargeMove logs (never rejects) when the accepted price moved more
// than 10% from the previous accepted price inside the lookback window.
func (a *Aggregator) warnOnLargeMove(asset string, price decimal.Decimal, at time.Time) {
	a.mu.Lock()
	prev, ok := a.lastPrices[asset]
	a.lastPrices[asset] = lastAccepted{price: price, at: at}
	a.mu.Unlock()

	if !ok || at.Sub(prev.at) > LargeMoveWindow || !prev.price.IsPositive() {
		return
	}

	movePct := price.Sub(prev.price).Abs().Div(prev.price)
	if movePct.GreaterThan(decimal.NewFromFloat(largeMovePct)) {
		a.logger.Warn("Large price movement between consecutive rounds",
			"asset", asset,
			"previous", prev.price.String(),
			"current", price.String(),
			"move_pct", movePct.Mul(decimal.NewFromInt(100)).StringFixed(2),
			"window", at.Sub(prev.at).String())
	}
}

// Median computes the median of a price set: sort ascending, take the
// middle element for odd counts, the mean of the two middle elements for
// even counts. The input slice is not modified.
func Median(prices []decimal.Decimal) decimal.Decimal {
	n := len(prices)
	if n == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// DeviationBp returns the deviation of candidate from the median of the
// reference set, in basis points rounded up. It is the single deviation
// statistic shared by aggregation and the publication gate. A non-positive
// reference median fails every threshold.
func DeviationBp(candidate decimal.Decimal, reference []decimal.Decimal) int64 {
	median := Median(reference)
	if !median.IsPositive() {
		return math.MaxInt64
	}
	bp := candidate.Sub(median).Abs().Div(median).Mul(decimal.NewFromInt(10000))
	return bp.Ceil().IntPart()
}
