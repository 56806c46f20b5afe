package paper

import "sync"

// Ledger keeps recent fills in memory for quick inspection. Oldest entries
// fall off once the cap is reached.
type Ledger struct {
	mu    sync.Mutex
	max   int
	fills []Fill
}

// NewLedger creates an empty ledger holding at most max fills. A non-positive
// max keeps the ledger unbounded.
func NewLedger(max int) *Ledger {
	capacity := max
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{max: max, fills: make([]Fill, 0, capacity)}
}

// Record appends a fill, evicting the oldest entry when full.
func (l *Ledger) Record(fill Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && len(l.fills) == l.max {
		copy(l.fills, l.fills[1:])
		l.fills[len(l.fills)-1] = fill
		return
	}
	l.fills = append(l.fills, fill)
}

// Snapshot returns a copy of the recorded fills, oldest first.
func (l *Ledger) Snapshot() []Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.mu.Unlock()
}
