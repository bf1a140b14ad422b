package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/sanjaynair/amlscope/internal/compliance"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/risk"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// Status is the investigation lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusInProgress: {},
		StatusFailed:     {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// Investigation is the aggregate for one transaction review. It is mutated
// only by the controller and stage executor (single-writer discipline), but
// snapshots are served to concurrent readers while stages run, so every
// field below the mutex is guarded by it. ID, Transaction, CreatedAt and
// the Log pointer are fixed at construction; the Log synchronizes itself.
type Investigation struct {
	ID          string
	Transaction model.Transaction
	Log         *trace.Log
	CreatedAt   time.Time

	mu           sync.RWMutex
	status       Status
	decision     string
	risk         *risk.Assessment
	requirements []compliance.Requirement
	errorCode    string
	errorMessage string
	updatedAt    time.Time
	completed    map[model.Stage]struct{}
}

// NewInvestigation creates a pending investigation over tx.
func NewInvestigation(tx model.Transaction) *Investigation {
	now := time.Now().UTC()
	return &Investigation{
		ID:          model.NewInvestigationID(),
		Transaction: tx,
		Log:         trace.NewLog(),
		CreatedAt:   now,
		status:      StatusPending,
		updatedAt:   now,
		completed:   make(map[model.Stage]struct{}),
	}
}

// transition moves the investigation to next, enforcing the lifecycle
// table. Completed and Failed are terminal.
func (inv *Investigation) transition(next Status) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, ok := allowedTransitions[inv.status][next]; !ok {
		return fmt.Errorf("invalid investigation transition: %s -> %s", inv.status, next)
	}
	inv.status = next
	inv.updatedAt = time.Now().UTC()
	return nil
}

// setOutcome records the completion artifacts ahead of the Completed
// transition.
func (inv *Investigation) setOutcome(assessment risk.Assessment, reqs []compliance.Requirement, decision string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.risk = &assessment
	inv.requirements = reqs
	inv.decision = decision
	inv.updatedAt = time.Now().UTC()
}

// setFailure records the classified error ahead of the Failed transition.
func (inv *Investigation) setFailure(code, message string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.errorCode = code
	inv.errorMessage = message
	inv.updatedAt = time.Now().UTC()
}

// markStageComplete records stage in the completed set.
func (inv *Investigation) markStageComplete(stage model.Stage) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.completed[stage] = struct{}{}
	inv.updatedAt = time.Now().UTC()
}

// CompletedStages returns the completed-stage set in pipeline order.
func (inv *Investigation) CompletedStages() []model.Stage {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.completedStagesLocked()
}

func (inv *Investigation) completedStagesLocked() []model.Stage {
	var out []model.Stage
	for _, s := range model.Pipeline() {
		if _, ok := inv.completed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (inv *Investigation) completedSet() map[model.Stage]struct{} {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make(map[model.Stage]struct{}, len(inv.completed))
	for s := range inv.completed {
		out[s] = struct{}{}
	}
	return out
}

// Snapshot is the externally visible investigation state.
type Snapshot struct {
	ID              string                     `json:"id"`
	Status          Status                     `json:"status"`
	Transaction     model.Transaction          `json:"transaction"`
	CompletedStages []model.Stage              `json:"completed_stages"`
	Risk            *risk.Assessment           `json:"risk,omitempty"`
	Requirements    []compliance.Requirement   `json:"requirements,omitempty"`
	Decision        string                     `json:"decision,omitempty"`
	ErrorCode       string                     `json:"error_code,omitempty"`
	ErrorMessage    string                     `json:"error_message,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// Snapshot returns a copy safe to serve to concurrent readers.
func (inv *Investigation) Snapshot() Snapshot {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return Snapshot{
		ID:              inv.ID,
		Status:          inv.status,
		Transaction:     inv.Transaction,
		CompletedStages: inv.completedStagesLocked(),
		Risk:            inv.risk,
		Requirements:    inv.requirements,
		Decision:        inv.decision,
		ErrorCode:       inv.errorCode,
		ErrorMessage:    inv.errorMessage,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.updatedAt,
	}
}
