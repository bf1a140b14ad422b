package trace

import "strings"

// stubResultContent is the payload synthesized for a directive left open at
// the end of the scan.
const stubResultContent = "completed successfully"

// Repair produces a corrected sequence from a possibly malformed append
// history. Invariants on the output: every directive with a call-id has
// exactly one result with the same call-id, positioned after it. Orphan
// results gain a stub directive immediately before them; directives still
// open at the end of the scan gain a stub result immediately after them.
// Repair is idempotent: repairing an already-repaired sequence returns an
// identical one. The input slice is not modified.
func Repair(events []Event) []Event {
	out := make([]Event, 0, len(events))
	// Call-ids are counted, not tracked as a set: a history may carry the
	// same id on several directives, and each occurrence needs its own
	// result for the pairing and idempotence guarantees to hold.
	pending := make(map[string]int)
	open := 0

	for _, ev := range events {
		switch ev.Kind {
		case KindDirective:
			if ev.CallID != "" {
				pending[ev.CallID]++
				open++
			}
			out = append(out, ev)
		case KindResult:
			if ev.CallID != "" {
				if pending[ev.CallID] > 0 {
					pending[ev.CallID]--
					open--
				} else {
					out = append(out, Event{
						Kind:   KindDirective,
						CallID: ev.CallID,
						Target: targetFromCallID(ev.CallID),
						At:     ev.At,
					})
				}
			}
			out = append(out, ev)
		default:
			out = append(out, ev)
		}
	}

	if open == 0 {
		return out
	}

	// Second pass: results close same-id directives in order of appearance,
	// so the k-th directive for an id is open exactly when fewer than k+1
	// results carry that id. Each open occurrence gets a stub result right
	// after it.
	resultCount := make(map[string]int)
	for _, ev := range out {
		if ev.Kind == KindResult && ev.CallID != "" {
			resultCount[ev.CallID]++
		}
	}
	seen := make(map[string]int)
	closed := make([]Event, 0, len(out)+open)
	for _, ev := range out {
		closed = append(closed, ev)
		if ev.Kind != KindDirective || ev.CallID == "" {
			continue
		}
		idx := seen[ev.CallID]
		seen[ev.CallID]++
		if idx >= resultCount[ev.CallID] {
			closed = append(closed, Event{
				Kind:    KindResult,
				CallID:  ev.CallID,
				Content: stubResultContent,
				At:      ev.At,
			})
		}
	}
	return closed
}

// noisePrefixes matches note events that are pure status narration and add
// nothing to the externally consumable trace.
var noisePrefixes = []string{
	"starting ",
	"running stage",
	"executing ",
	"processing ",
	"progress:",
	"stage dispatched",
	"waiting for ",
}

// FilterNoise removes status/progress notes, keeping substantive dialogue
// and all directive/result pairs. The input slice is not modified.
func FilterNoise(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind == KindNote && isNoise(ev.Content) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func isNoise(content string) bool {
	lc := strings.ToLower(strings.TrimSpace(content))
	for _, p := range noisePrefixes {
		if strings.HasPrefix(lc, p) {
			return true
		}
	}
	return false
}
