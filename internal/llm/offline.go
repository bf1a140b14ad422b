package llm

import (
	"context"
	"fmt"

	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// Offline is a deterministic collaborator used when no API key is
// configured. It produces templated notes from the transaction and the
// same tool plan as the Gemini client, so the full orchestration path
// (directive/result pairing, caching, report synthesis) is exercised
// without an external call.
type Offline struct{}

// NewOffline returns the offline collaborator.
func NewOffline() *Offline { return &Offline{} }

func (o *Offline) Invoke(ctx context.Context, stage model.Stage, tx model.Transaction, transcript []trace.Event) (string, []ToolInvocation, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	var note string
	switch stage {
	case model.StageRegulatory:
		note = fmt.Sprintf("The transaction of %.2f %s to %s falls under BSA reporting review. Threshold and jurisdiction checks were evaluated against current reference data.",
			tx.Amount, tx.Currency, tx.DestinationCountry)
	case model.StageEvidence:
		note = fmt.Sprintf("Evidence review covered the transaction description %q and counterparty jurisdiction %s. External lookups were recorded in the trace.",
			tx.Description, tx.DestinationCountry)
	case model.StageCompliance:
		note = fmt.Sprintf("Filing obligations were derived from the scored risk profile for the %.2f %s transfer. Mandatory requirements are listed in the final report.",
			tx.Amount, tx.Currency)
	case model.StageReport:
		note = fmt.Sprintf("The investigation of the %.2f %s transaction is complete. All four analysis stages recorded their findings.",
			tx.Amount, tx.Currency)
	default:
		return "", nil, fmt.Errorf("offline client: unknown stage %q", stage)
	}
	return note, StageToolPlan(stage, tx), nil
}
