// Package risk holds the pure guardrail policy and the daily-loss circuit
// breaker that together gate every candidate order before execution.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Reason identifies which guardrail rejected an order. Values double as
// metrics label values, so they stay lowercase snake case.
type Reason string

const (
	ReasonCircuitBreakerOpen   Reason = "circuit_breaker_open"
	ReasonSizeExceeded         Reason = "size_exceeded"
	ReasonLiveNotAuthorized    Reason = "live_mode_not_authorized"
	ReasonConfirmationDeclined Reason = "confirmation_declined"
)

// Environment selects which venue tier the process talks to. Development
// and demo both point at the venue's demo API; only production touches
// real money.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvDemo        Environment = "demo"
	EnvProduction  Environment = "production"
)

// ParseEnvironment maps a config string onto a known environment. Unknown
// names are an error rather than a silent fallback.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvDevelopment:
		return EnvDevelopment, nil
	case EnvDemo:
		return EnvDemo, nil
	case EnvProduction:
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want development, demo, or production)", s)
	}
}

// Policy is the immutable guardrail configuration. The zero Policy cannot
// authorize live trading: the environment is not production and nothing
// has been confirmed.
type Policy struct {
	MaxOrderUSD         decimal.Decimal
	DailyLossLimitUSD   decimal.Decimal
	DryRun              bool
	Environment         Environment
	ProductionConfirmed bool
	RequireConfirmation bool
}

// LiveAuthorized reports whether real orders may leave the process. Three
// independent gates must all open: dry run disabled, the production tier
// selected, and the production acknowledgement given. Development and demo
// can never be live no matter what the other flags say.
func (p Policy) LiveAuthorized() bool {
	return !p.DryRun && p.Environment == EnvProduction && p.ProductionConfirmed
}

// Confirmer approves a single live order immediately before submission.
type Confirmer interface {
	Confirm(order signal.CandidateOrder) bool
}

// Decision is the verdict on one candidate order. Reason is empty when
// the order is allowed.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Evaluate runs the guardrail checks in severity order and stops at the
// first failure, so a rejection always carries the most urgent reason.
// The confirmer is consulted at most once, and only for a live order that
// has already cleared every other gate. A nil confirmer when confirmation
// is required counts as a decline, never as approval.
func Evaluate(order signal.CandidateOrder, pol Policy, breaker State, confirm Confirmer) Decision {
	if breaker == Open {
		return Decision{Reason: ReasonCircuitBreakerOpen}
	}
	if order.SizeUSD.GreaterThan(pol.MaxOrderUSD) {
		return Decision{Reason: ReasonSizeExceeded}
	}
	if order.Mode == signal.ModeLive {
		if !pol.LiveAuthorized() {
			return Decision{Reason: ReasonLiveNotAuthorized}
		}
		if pol.RequireConfirmation {
			if confirm == nil || !confirm.Confirm(order) {
				return Decision{Reason: ReasonConfirmationDeclined}
			}
		}
	}
	return Decision{Allowed: true}
}
