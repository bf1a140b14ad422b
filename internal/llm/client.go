// Package llm defines the language-model collaborator interface consumed
// by the stage executor, plus the Gemini-backed and offline implementations.
package llm

import (
	"context"

	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// ToolInvocation is one tool execution requested (or already performed) by
// the collaborator during a stage. When Result is empty the stage executor
// performs the call through the tool registry; when it is set the executor
// records it verbatim.
type ToolInvocation struct {
	Name   string
	Args   map[string]any
	Result string
}

// Client produces one stage's analysis given the transaction and the event
// trace recorded so far. Implementations must be safe for concurrent use.
type Client interface {
	Invoke(ctx context.Context, stage model.Stage, tx model.Transaction, transcript []trace.Event) (note string, invocations []ToolInvocation, err error)
}
