package util

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// ConfirmWord is the exact reply that approves a live order. Anything
// else, or silence past the deadline, declines.
const ConfirmWord = "CONFIRM"

// Prompt asks the operator to approve individual live orders on the
// terminal. One long-lived reader goroutine feeds replies through a
// channel so Confirm can time out without losing its place in the input.
type Prompt struct {
	out     io.Writer
	timeout time.Duration
	lines   chan string
}

// NewPrompt starts reading replies from in. A non-positive timeout
// defaults to thirty seconds.
func NewPrompt(in io.Reader, out io.Writer, timeout time.Duration) *Prompt {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := &Prompt{out: out, timeout: timeout, lines: make(chan string, 4)}
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case p.lines <- strings.TrimSpace(scanner.Text()):
			default:
			}
		}
		close(p.lines)
	}()
	return p
}

// Confirm prints the candidate order and waits for the operator's reply.
// Replies typed before the prompt appeared are discarded first, so a late
// answer to an earlier timed-out prompt can never approve this one.
func (p *Prompt) Confirm(order signal.CandidateOrder) bool {
drain:
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				break drain
			}
		default:
			break drain
		}
	}

	fmt.Fprintf(p.out, "\nLIVE ORDER  %s  %s x%d @ %d cents (%s USD)\n",
		order.Ticker, order.Side, order.Contracts, order.LimitPriceCents, order.SizeUSD)
	fmt.Fprintf(p.out, "type %s within %s to approve: ", ConfirmWord, p.timeout)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out, "input closed, order declined")
			return false
		}
		if line == ConfirmWord {
			fmt.Fprintln(p.out, "approved")
			return true
		}
		fmt.Fprintln(p.out, "order declined")
		return false
	case <-timer.C:
		fmt.Fprintln(p.out, "timed out, order declined")
		return false
	}
}
