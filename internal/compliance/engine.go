// Package compliance derives the ordered list of regulatory obligations
// for a transaction. Evaluate is a pure function of (transaction, risk
// assessment, reference data snapshot).
package compliance

import (
	"fmt"
	"strings"

	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/risk"
)

// Requirement is one regulatory obligation.
type Requirement struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline,omitempty"`
	Mandatory   bool   `json:"mandatory"`
}

// Evaluate returns the requirement list in rule order. The record-retention
// requirement is always appended last, regardless of inputs.
//
// Two SAR rules deliberately coexist: a mandatory filing at score >= 0.5
// and a recommended review at amount >= SAR threshold with score >= 0.3.
// The mandatory rule short-circuits the recommended one.
func Evaluate(tx model.Transaction, assessment risk.Assessment, snap refdata.Snapshot) []Requirement {
	var reqs []Requirement

	if tx.Amount >= snap.CTRThreshold {
		reqs = append(reqs, Requirement{
			Description: fmt.Sprintf("File a Currency Transaction Report (CTR): amount %.2f meets the %.2f threshold", tx.Amount, snap.CTRThreshold),
			Deadline:    snap.CTRDeadline,
			Mandatory:   true,
		})
	}

	switch {
	case assessment.Score >= 0.5:
		reqs = append(reqs, Requirement{
			Description: fmt.Sprintf("File a Suspicious Activity Report (SAR): risk score %.2f", assessment.Score),
			Deadline:    snap.SARDeadline,
			Mandatory:   true,
		})
	case tx.Amount >= snap.SARThreshold && assessment.Score >= 0.3:
		reqs = append(reqs, Requirement{
			Description: fmt.Sprintf("Review for SAR filing: amount %.2f with risk score %.2f", tx.Amount, assessment.Score),
			Deadline:    snap.SARDeadline,
			Mandatory:   false,
		})
	}

	if !strings.EqualFold(tx.DestinationCountry, snap.DomesticCountry) {
		reqs = append(reqs, Requirement{
			Description: fmt.Sprintf("Screen all parties against the OFAC sanctions list for transfer to %s", tx.DestinationCountry),
			Mandatory:   true,
		})
		if snap.IsHighRisk(tx.DestinationCountry) {
			reqs = append(reqs, Requirement{
				Description: fmt.Sprintf("Apply enhanced due diligence: %s is a high-risk jurisdiction", tx.DestinationCountry),
				Mandatory:   true,
			})
		}
	}

	for _, order := range snap.GTOOrders {
		if tx.Amount >= order.Threshold && containsFold(tx.Description, order.Category) {
			reqs = append(reqs, Requirement{
				Description: fmt.Sprintf("Geographic targeting order reporting for %s: %s transaction of %.2f", order.Jurisdiction, order.Category, tx.Amount),
				Deadline:    order.Deadline,
				Mandatory:   false,
			})
		}
	}

	reqs = append(reqs, Requirement{
		Description: fmt.Sprintf("Retain all transaction records for %s", snap.RetentionPeriod),
		Mandatory:   true,
	})

	return reqs
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
