package strategy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Runtime shields the trade loop from user-authored strategies: a panic or an
// overrun degrades to a Hold signal instead of taking the process down.
type Runtime struct {
	inner   Strategy
	timeout time.Duration
	log     zerolog.Logger
}

// NewRuntime wraps a strategy with panic recovery and an analysis deadline.
func NewRuntime(inner Strategy, timeout time.Duration, log zerolog.Logger) *Runtime {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Runtime{inner: inner, timeout: timeout, log: log}
}

// Name reports the wrapped strategy's identifier.
func (r *Runtime) Name() string { return r.inner.Name() }

// Analyze runs the wrapped strategy on its own goroutine under the deadline.
// The result channel is buffered so a late finisher never leaks a goroutine.
func (r *Runtime) Analyze(history []float64, quote signal.MarketQuote) signal.Signal {
	done := make(chan signal.Signal, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Str("strategy", r.inner.Name()).Str("panic", fmt.Sprint(rec)).Msg("strategy panicked, holding")
				done <- hold("strategy panicked", quote.Ts)
			}
		}()
		done <- r.inner.Analyze(history, quote)
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case sig := <-done:
		return sig
	case <-timer.C:
		r.log.Warn().Str("strategy", r.inner.Name()).Dur("timeout", r.timeout).Msg("strategy deadline exceeded, holding")
		return hold("strategy deadline exceeded", quote.Ts)
	}
}
