// Package report validates and aggregates stage outputs into the final
// decision text. Sections are fixed and word-capped; fragments that fail
// the quality filter never reach the report.
package report

import (
	"fmt"
	"strings"

	"github.com/sanjaynair/amlscope/internal/compliance"
	"github.com/sanjaynair/amlscope/internal/risk"
)

const (
	minFragmentLen     = 25
	maxFindingsPerType = 3

	summaryWordCap     = 60
	findingsWordCap    = 120
	requirementWordCap = 100
	conclusionWordCap  = 60
)

const emptySection = "Stage analysis completed with no reportable findings."

// boilerplateMarkers disqualify a fragment outright.
var boilerplateMarkers = []string{
	"as an ai",
	"i cannot",
	"i am unable",
	"disclaimer",
	"here is the",
	"here are the",
	"note:",
	"placeholder",
}

// domainTokens: a fragment must carry at least one to count as substantive.
var domainTokens = []string{
	"risk", "transaction", "compliance", "filing", "sanction", "threshold",
	"require", "indicat", "report", "review", "evidence", "regulat",
	"suspicious", "amount", "jurisdiction", "customer", "account", "screen",
	"exceeds", "triggers", "launder", "transfer", "obligation",
}

// Synthesize composes the final decision from the surviving note fragments,
// the risk assessment, and the requirement list.
func Synthesize(notes []string, assessment risk.Assessment, reqs []compliance.Requirement) string {
	fragments := dedupe(filterFragments(notes))
	level := escalate(assessment.Level, fragments)

	var b strings.Builder
	b.WriteString("## Executive Summary\n\n")
	b.WriteString(capWords(executiveSummary(level, assessment, reqs), summaryWordCap))
	b.WriteString("\n\n## Key Findings\n\n")
	b.WriteString(capWords(keyFindings(fragments, assessment), findingsWordCap))
	b.WriteString("\n\n## Compliance Requirements\n\n")
	b.WriteString(capWords(requirementSection(reqs), requirementWordCap))
	b.WriteString("\n\n## Conclusion\n\n")
	b.WriteString(capWords(conclusion(level, reqs), conclusionWordCap))
	b.WriteString("\n")
	return b.String()
}

// filterFragments splits notes into sentence-level fragments and drops
// anything too short, unterminated, boilerplate, or off-domain.
func filterFragments(notes []string) []string {
	var out []string
	for _, note := range notes {
		for _, frag := range splitFragments(note) {
			if keepFragment(frag) {
				out = append(out, frag)
			}
		}
	}
	return out
}

func splitFragments(note string) []string {
	var out []string
	for _, line := range strings.Split(note, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, sentence := range strings.SplitAfter(line, ". ") {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				out = append(out, sentence)
			}
		}
	}
	return out
}

func keepFragment(frag string) bool {
	if len(frag) < minFragmentLen {
		return false
	}
	last := frag[len(frag)-1]
	if last != '.' && last != '!' && last != '?' {
		return false
	}
	lc := strings.ToLower(frag)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lc, marker) {
			return false
		}
	}
	for _, tok := range domainTokens {
		if strings.Contains(lc, tok) {
			return true
		}
	}
	return false
}

// dedupe drops fragments that normalize identically or are contained in an
// already-kept fragment.
func dedupe(fragments []string) []string {
	var out []string
	var kept []string
	for _, frag := range fragments {
		n := normalize(frag)
		duplicate := false
		for _, existing := range kept {
			if existing == n || strings.Contains(existing, n) || strings.Contains(n, existing) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, frag)
			kept = append(kept, n)
		}
	}
	return out
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escalate raises the reported level to high when any surviving fragment
// textually signals it; the level is never downgraded.
func escalate(level risk.Level, fragments []string) risk.Level {
	if level == risk.LevelHigh {
		return level
	}
	for _, frag := range fragments {
		lc := strings.ToLower(frag)
		if strings.Contains(lc, "high risk") || strings.Contains(lc, "high-risk") || strings.Contains(lc, "severe risk") {
			return risk.LevelHigh
		}
	}
	return level
}

func executiveSummary(level risk.Level, assessment risk.Assessment, reqs []compliance.Requirement) string {
	mandatory := 0
	for _, r := range reqs {
		if r.Mandatory {
			mandatory++
		}
	}
	return fmt.Sprintf("The investigation assessed this transaction as %s risk (score %.2f) across all four analysis stages, identifying %d regulatory requirement(s), %d of them mandatory.",
		level, assessment.Score, len(reqs), mandatory)
}

func keyFindings(fragments []string, assessment risk.Assessment) string {
	var lines []string
	for i, frag := range fragments {
		if i >= maxFindingsPerType {
			break
		}
		lines = append(lines, "- "+frag)
	}
	for i, factor := range assessment.Factors {
		if i >= maxFindingsPerType {
			break
		}
		lines = append(lines, "- Risk factor: "+factor+".")
	}
	if len(lines) == 0 {
		return emptySection
	}
	return strings.Join(lines, "\n")
}

func requirementSection(reqs []compliance.Requirement) string {
	if len(reqs) == 0 {
		return emptySection
	}
	var lines []string
	for _, r := range reqs {
		flag := "recommended"
		if r.Mandatory {
			flag = "mandatory"
		}
		line := fmt.Sprintf("- [%s] %s", flag, r.Description)
		if r.Deadline != "" {
			line += " (" + r.Deadline + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func conclusion(level risk.Level, reqs []compliance.Requirement) string {
	switch level {
	case risk.LevelHigh:
		return "This transaction presents high risk. Complete all mandatory filings within their deadlines and escalate to the compliance officer for review."
	case risk.LevelMedium:
		return fmt.Sprintf("This transaction presents medium risk with %d requirement(s) to address. File as required and retain the full investigation record.", len(reqs))
	default:
		return "This transaction presents low risk. No suspicious activity filing is indicated beyond standard record retention."
	}
}

// capWords truncates text to at most n words, preserving line structure.
func capWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	count := 0
	for i, r := range text {
		if r == ' ' || r == '\n' {
			continue
		}
		if i == 0 || text[i-1] == ' ' || text[i-1] == '\n' {
			count++
			if count > n {
				return strings.TrimSpace(text[:i]) + "…"
			}
		}
	}
	return text
}
