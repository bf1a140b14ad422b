// Package risk scores a transaction against reference data. Assess is a
// pure function: identical transaction + snapshot always yield an identical
// assessment, which is required because results are cached by content.
package risk

import (
	"fmt"
	"log/slog"

	"github.com/sanjaynair/amlscope/internal/indicator"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
)

// Level buckets the numeric score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Assessment is the risk engine output.
type Assessment struct {
	Score   float64  `json:"score"`
	Level   Level    `json:"level"`
	Factors []string `json:"factors"`
}

// Assess computes the additive risk score for tx. Contributions:
//
//	amount >= 100,000          +0.4 \
//	amount >= 50,000           +0.3  > tiers are mutually exclusive
//	amount >= CTR threshold    +0.2 /
//	high-risk destination      +0.3
//	customer rating high/med   +0.3 / +0.1
//	business account           +0.1
//	any matched indicator      +0.2 (once)
//
// The score is clamped to [0,1].
func Assess(tx model.Transaction, snap refdata.Snapshot) Assessment {
	score := 0.0
	var factors []string

	switch {
	case tx.Amount >= 100000:
		score += 0.4
		factors = append(factors, fmt.Sprintf("amount %.2f meets the 100,000 tier", tx.Amount))
	case tx.Amount >= 50000:
		score += 0.3
		factors = append(factors, fmt.Sprintf("amount %.2f meets the 50,000 tier", tx.Amount))
	case tx.Amount >= snap.CTRThreshold:
		score += 0.2
		factors = append(factors, fmt.Sprintf("amount %.2f meets the CTR threshold %.2f", tx.Amount, snap.CTRThreshold))
	}

	if snap.IsHighRisk(tx.DestinationCountry) {
		score += 0.3
		factors = append(factors, fmt.Sprintf("destination %s is a high-risk jurisdiction", tx.DestinationCountry))
	}

	switch tx.CustomerRiskRating {
	case model.RatingHigh:
		score += 0.3
		factors = append(factors, "customer risk rating is high")
	case model.RatingMedium:
		score += 0.1
		factors = append(factors, "customer risk rating is medium")
	}

	if tx.AccountType == model.AccountBusiness {
		score += 0.1
		factors = append(factors, "business account")
	}

	if matched := matchIndicators(tx, snap.Indicators); len(matched) > 0 {
		score += 0.2
		factors = append(factors, matched...)
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return Assessment{Score: score, Level: levelFor(score), Factors: factors}
}

// levelFor buckets with inclusive lower bounds: >=0.7 high, >=0.4 medium.
func levelFor(score float64) Level {
	switch {
	case score >= 0.7:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

func matchIndicators(tx model.Transaction, indicators []refdata.Indicator) []string {
	var matched []string
	for _, ind := range indicators {
		ok, err := indicator.MatchExpr(ind.Expression, tx)
		if err != nil {
			slog.Warn("skipping unparseable indicator", "id", ind.ID, "err", err)
			continue
		}
		if ok {
			matched = append(matched, fmt.Sprintf("matched indicator %s: %s", ind.ID, ind.Description))
		}
	}
	return matched
}
