// Package telemetry persists remediation results, predictive alerts and
// cycle reports as timestamped events in an append-only JSONL log, and keeps
// an aggregated-metrics record updated read-modify-write after each event.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	eventsFile     = "events.jsonl"
	aggregatesFile = "aggregates.json"
)

// Event kinds recorded by the core.
const (
	EventRemediation = "remediation"
	EventAlert       = "predictive_alert"
	EventCycle       = "cycle"
	EventSuggestion  = "enhancement_suggestion"
)

// Event is one timestamped telemetry record.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Aggregates is the rolled-up metrics record. EWMA smoothing keeps the
// duration estimate stable across bursty cycles.
type Aggregates struct {
	EventCounts          map[string]int64 `json:"event_counts"`
	RemediationAttempts  int64            `json:"remediation_attempts"`
	RemediationSuccesses int64            `json:"remediation_successes"`
	RemediationRate      float64          `json:"remediation_rate"`
	CycleCount           int64            `json:"cycle_count"`
	CycleDurationEWMAMs  float64          `json:"cycle_duration_ewma_ms"`
	CycleDurationP95Ms   float64          `json:"cycle_duration_p95_ms"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ewmaAlpha weights the newest cycle duration in the moving average.
const ewmaAlpha = 0.2

// Log owns a telemetry directory. Safe for concurrent use within one
// process; the aggregates record is guarded by the mutex.
type Log struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// NewLog ensures the directory exists and returns a Log over it.
func NewLog(logger *slog.Logger, dir string) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	return &Log{dir: dir, logger: logger}, nil
}

// Record appends one event and folds it into the aggregates record.
func (l *Log) Record(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	event := Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: raw}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.append(event); err != nil {
		return err
	}
	return l.fold(func(agg *Aggregates) {
		agg.EventCounts[eventType]++
	})
}

// RecordRemediation appends a remediation event and updates the success
// rate.
func (l *Log) RecordRemediation(payload any, success bool) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	event := Event{Type: EventRemediation, Timestamp: time.Now().UTC(), Payload: raw}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.append(event); err != nil {
		return err
	}
	return l.fold(func(agg *Aggregates) {
		agg.EventCounts[EventRemediation]++
		agg.RemediationAttempts++
		if success {
			agg.RemediationSuccesses++
		}
		agg.RemediationRate = float64(agg.RemediationSuccesses) / float64(agg.RemediationAttempts) * 100
	})
}

// RecordCycle appends a cycle event and folds its duration into the EWMA.
// The caller supplies the current p95 from its latency tracker.
func (l *Log) RecordCycle(payload any, duration, p95 time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	event := Event{Type: EventCycle, Timestamp: time.Now().UTC(), Payload: raw}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.append(event); err != nil {
		return err
	}
	return l.fold(func(agg *Aggregates) {
		agg.EventCounts[EventCycle]++
		agg.CycleCount++
		ms := float64(duration.Milliseconds())
		if agg.CycleDurationEWMAMs == 0 {
			agg.CycleDurationEWMAMs = ms
		} else {
			agg.CycleDurationEWMAMs = ewmaAlpha*ms + (1-ewmaAlpha)*agg.CycleDurationEWMAMs
		}
		agg.CycleDurationP95Ms = float64(p95.Milliseconds())
	})
}

// Aggregates returns the current rolled-up record.
func (l *Log) Aggregates() (Aggregates, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAggregates()
}

// Events replays the full event log. Intended for tests and offline
// inspection, not the hot path.
func (l *Log) Events() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, eventsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			l.logger.Warn("skipping corrupt telemetry line", slog.Any("error", err))
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

func (l *Log) append(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(l.dir, eventsFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// fold applies a mutation to the aggregates record read-modify-write.
func (l *Log) fold(mutate func(*Aggregates)) error {
	agg, err := l.readAggregates()
	if err != nil {
		return err
	}
	mutate(&agg)
	agg.UpdatedAt = time.Now().UTC()

	body, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode aggregates: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, aggregatesFile), body, 0o644); err != nil {
		return fmt.Errorf("write aggregates: %w", err)
	}
	return nil
}

func (l *Log) readAggregates() (Aggregates, error) {
	agg := Aggregates{EventCounts: map[string]int64{}}
	body, err := os.ReadFile(filepath.Join(l.dir, aggregatesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return agg, nil
		}
		return agg, fmt.Errorf("read aggregates: %w", err)
	}
	if err := json.Unmarshal(body, &agg); err != nil {
		l.logger.Warn("resetting corrupt aggregates record", slog.Any("error", err))
		return Aggregates{EventCounts: map[string]int64{}}, nil
	}
	if agg.EventCounts == nil {
		agg.EventCounts = map[string]int64{}
	}
	return agg, nil
}
