package trace

import "sync"

// Log is the append-only event sequence for one investigation.
// Appends are serialized; readers get copies.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds events to the end of the log.
func (l *Log) Append(evs ...Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evs...)
}

// Events returns a copy of the current sequence.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of appended events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Notes returns the content of all note events, in order.
func (l *Log) Notes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Kind == KindNote {
			out = append(out, ev.Content)
		}
	}
	return out
}

// Export returns the repaired, noise-filtered view suitable for external
// consumers. The underlying log is not modified.
func (l *Log) Export() []Event {
	return FilterNoise(Repair(l.Events()))
}
