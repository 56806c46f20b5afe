// Package journal persists trade outcomes and settlements as append-only
// JSON lines for later analysis.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MaxGoetzmann/jalshi/internal/execution"
	"github.com/MaxGoetzmann/jalshi/internal/paper"
)

// Entry is one journal line. Exactly one of Outcome and Settlement is set,
// matching Kind.
type Entry struct {
	Kind       string             `json:"kind"`
	Ts         time.Time          `json:"ts"`
	Outcome    *execution.Outcome `json:"outcome,omitempty"`
	Settlement *paper.Settlement  `json:"settlement,omitempty"`
}

// Recorder appends entries to a JSONL file, flushed per write. Write
// failures log and drop: journaling must never stall trading.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	log  zerolog.Logger
}

// NewRecorder creates or opens the journal file (and parent directory) in
// append mode.
func NewRecorder(path string, log zerolog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Recorder{file: file, enc: json.NewEncoder(file), log: log}, nil
}

// RecordOutcome appends one pipeline outcome.
func (r *Recorder) RecordOutcome(outcome execution.Outcome) {
	r.append(Entry{Kind: "outcome", Ts: time.Now().UTC(), Outcome: &outcome})
}

// RecordSettlement appends one market settlement.
func (r *Recorder) RecordSettlement(settlement paper.Settlement) {
	r.append(Entry{Kind: "settlement", Ts: time.Now().UTC(), Settlement: &settlement})
}

func (r *Recorder) append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	if err := r.enc.Encode(entry); err != nil {
		r.log.Warn().Err(err).Str("kind", entry.Kind).Msg("journal write dropped")
	}
}

// Close flushes and closes the file handle.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Tail reads the last n entries from a journal file, oldest first. Lines
// that fail to decode are skipped.
func Tail(path string, n int) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
