package util

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

func confirmOrder() signal.CandidateOrder {
	return signal.CandidateOrder{
		Ticker:          "KXBTCD-25AUG2517-T64250",
		Side:            signal.Yes,
		LimitPriceCents: 47,
		SizeUSD:         decimal.NewFromInt(10),
		Contracts:       21,
		Mode:            signal.ModeLive,
	}
}

// pausedReader blocks until released, then serves the wrapped reader. It
// lets a test hold the operator's reply back until the prompt is up.
type pausedReader struct {
	release <-chan struct{}
	inner   io.Reader
}

func (r *pausedReader) Read(p []byte) (int, error) {
	<-r.release
	return r.inner.Read(p)
}

// confirmAfterPrompt runs Confirm, releases the canned reply once the
// prompt is waiting, and returns the verdict.
func confirmAfterPrompt(t *testing.T, reply string, timeout time.Duration) (bool, *bytes.Buffer) {
	t.Helper()
	release := make(chan struct{})
	var out bytes.Buffer
	prompt := NewPrompt(&pausedReader{release: release, inner: strings.NewReader(reply)}, &out, timeout)

	done := make(chan bool, 1)
	go func() { done <- prompt.Confirm(confirmOrder()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case verdict := <-done:
		return verdict, &out
	case <-time.After(2 * time.Second):
		t.Fatal("Confirm never returned")
		return false, &out
	}
}

func TestPromptApprovesExactWord(t *testing.T) {
	verdict, out := confirmAfterPrompt(t, "CONFIRM\n", time.Second)
	if !verdict {
		t.Fatal("expected CONFIRM to approve")
	}
	if !strings.Contains(out.String(), "KXBTCD-25AUG2517-T64250") {
		t.Fatalf("prompt must print the order, got %s", out.String())
	}
}

func TestPromptDeclinesAnythingElse(t *testing.T) {
	for _, reply := range []string{"confirm", "yes", "CONFIRM!", ""} {
		if verdict, _ := confirmAfterPrompt(t, reply+"\n", time.Second); verdict {
			t.Fatalf("reply %q must decline", reply)
		}
	}
}

func TestPromptTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var out bytes.Buffer
	prompt := NewPrompt(&pausedReader{release: release, inner: strings.NewReader("CONFIRM\n")}, &out, 20*time.Millisecond)

	start := time.Now()
	if prompt.Confirm(confirmOrder()) {
		t.Fatal("expected a timeout decline")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout took far too long")
	}
	if !strings.Contains(out.String(), "timed out") {
		t.Fatalf("expected a timeout notice, got %s", out.String())
	}
}

func TestPromptDeclinesOnClosedInput(t *testing.T) {
	var out bytes.Buffer
	prompt := NewPrompt(strings.NewReader(""), &out, time.Second)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-prompt.lines:
			if !ok {
				if prompt.Confirm(confirmOrder()) {
					t.Fatal("expected closed input to decline")
				}
				return
			}
		case <-deadline:
			t.Fatal("reader never closed")
		}
	}
}

func TestPromptDiscardsStaleReplies(t *testing.T) {
	// The reply is buffered before Confirm runs, so it predates the
	// prompt and must not approve it.
	var out bytes.Buffer
	prompt := NewPrompt(strings.NewReader("CONFIRM\n"), &out, 20*time.Millisecond)

	deadline := time.After(time.Second)
	for len(prompt.lines) == 0 {
		select {
		case <-deadline:
			t.Fatal("reply never reached the buffer")
		case <-time.After(time.Millisecond):
		}
	}

	if prompt.Confirm(confirmOrder()) {
		t.Fatal("a reply from before the prompt must not approve it")
	}
}
