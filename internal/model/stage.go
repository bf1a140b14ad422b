package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one of the four fixed analytical phases.
type Stage string

const (
	StageRegulatory Stage = "regulatory"
	StageEvidence   Stage = "evidence"
	StageCompliance Stage = "compliance"
	StageReport     Stage = "report"
)

// Pipeline returns the fixed stage order. Later stages read earlier stages'
// recorded output, so this is a strict total order, not a DAG.
func Pipeline() []Stage {
	return []Stage{StageRegulatory, StageEvidence, StageCompliance, StageReport}
}

// NewInvestigationID returns a time-derived id with a random suffix,
// e.g. "inv-20260831T141530-a1b2c3d4".
func NewInvestigationID() string {
	return fmt.Sprintf("inv-%s-%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
}
