// Package emit publishes terminal investigation events for downstream
// consumers (audit pipelines, alerting). Emitters must never block the
// investigation path.
package emit

import (
	"encoding/json"
	"log/slog"
)

// Event is the terminal record published when an investigation reaches
// Completed or Failed.
type Event struct {
	Timestamp       string  `json:"timestamp"`
	InvestigationID string  `json:"investigation_id"`
	Status          string  `json:"status"`
	RiskLevel       string  `json:"risk_level,omitempty"`
	RiskScore       float64 `json:"risk_score,omitempty"`
	Stages          int     `json:"stages"`
	DurationMs      int64   `json:"duration_ms"`
	Error           string  `json:"error,omitempty"`
}

// Emitter publishes terminal events.
type Emitter interface {
	Emit(event Event)
}

// LogEmitter writes events to the structured log.
type LogEmitter struct{}

// NewLogEmitter returns a LogEmitter.
func NewLogEmitter() *LogEmitter { return &LogEmitter{} }

func (e *LogEmitter) Emit(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		slog.Warn("event marshal failed", "err", err)
		return
	}
	slog.Info("investigation event", "event", string(b))
}

// MultiEmitter fans one event out to several emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter wraps emitters.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
