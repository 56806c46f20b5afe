package execution

import (
	"time"

	"github.com/MaxGoetzmann/jalshi/internal/risk"
	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Rejection reasons produced by the pipeline itself, alongside the policy
// reasons from the risk package.
const (
	// ReasonNoAction marks signals that never became an order: holds,
	// unusable quotes, stakes below one contract.
	ReasonNoAction risk.Reason = "no_action"
	// ReasonLowConfidence marks signals under the configured confidence floor.
	ReasonLowConfidence risk.Reason = "low_confidence"
	// ReasonExecutionFailed marks venue rejections and exhausted transports.
	ReasonExecutionFailed risk.Reason = "execution_failed"
)

// Outcome is the immutable record of one pipeline invocation. Exactly one of
// OrderID (live) and SimulatedFillPriceCents (dry run) is set on acceptance;
// RejectionReason is set otherwise.
type Outcome struct {
	Accepted                bool                `json:"accepted"`
	OrderID                 string              `json:"orderId,omitempty"`
	SimulatedFillPriceCents int                 `json:"simulatedFillPriceCents,omitempty"`
	RejectionReason         risk.Reason         `json:"rejectionReason,omitempty"`
	Ticker                  string              `json:"ticker"`
	Side                    signal.ContractSide `json:"side,omitempty"`
	LimitPriceCents         int                 `json:"limitPriceCents,omitempty"`
	Contracts               int                 `json:"contracts,omitempty"`
	Ts                      time.Time           `json:"ts"`
}
