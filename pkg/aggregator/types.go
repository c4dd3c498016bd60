package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/pool"
)

// RejectionReason explains why a round produced no accepted consensus value.
type RejectionReason string

const (
	ReasonNone                RejectionReason = ""
	ReasonInsufficientSources RejectionReason = "insufficient_sources"
	ReasonNonPositivePrice    RejectionReason = "non_positive_price"
)

// ConsensusResult is the outcome of one aggregation round for one asset.
// It is immutable after creation.
type ConsensusResult struct {
	Asset               string
	Price               decimal.Decimal
	ContributingSources []pool.Reading
	ComputedAt          time.Time
	Accepted            bool
	RejectionReason     RejectionReason
}
