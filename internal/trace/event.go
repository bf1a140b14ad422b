package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the event variants in an investigation's trace.
type Kind string

const (
	// KindDirective records an intent to call a tool or dispatch a stage.
	KindDirective Kind = "directive"
	// KindResult closes a specific call-id with content or an error payload.
	KindResult Kind = "result"
	// KindNote carries narrative content outside any call/response pair.
	KindNote Kind = "note"
)

// Event is one entry in the append-only trace. Events are never mutated in
// place; corrections are expressed by appending synthesized stubs.
type Event struct {
	Kind    Kind           `json:"kind"`
	CallID  string         `json:"call_id,omitempty"`
	Target  string         `json:"target,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Content string         `json:"content,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
	At      time.Time      `json:"at"`
}

// NewCallID returns a call-id that embeds the target name so a stub
// directive can recover it during repair.
func NewCallID(target string) string {
	return fmt.Sprintf("%s-%s", target, uuid.NewString()[:8])
}

// Directive builds a tool-call directive event.
func Directive(callID, target string, args map[string]any) Event {
	return Event{Kind: KindDirective, CallID: callID, Target: target, Args: args, At: time.Now().UTC()}
}

// Result builds a successful result event closing callID.
func Result(callID, content string) Event {
	return Event{Kind: KindResult, CallID: callID, Content: content, At: time.Now().UTC()}
}

// ErrorResult builds an error-flavored result event closing callID.
func ErrorResult(callID, msg string) Event {
	return Event{Kind: KindResult, CallID: callID, Content: msg, IsError: true, At: time.Now().UTC()}
}

// Note builds a narrative event.
func Note(content string) Event {
	return Event{Kind: KindNote, Content: content, At: time.Now().UTC()}
}

// targetFromCallID recovers a best-effort tool name from a call-id of the
// form "<target>-<suffix>". Returns "unknown" when no name is embedded.
func targetFromCallID(callID string) string {
	if i := strings.LastIndex(callID, "-"); i > 0 {
		return callID[:i]
	}
	return "unknown"
}
