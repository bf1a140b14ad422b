package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/metrics"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/tools"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// StageExecutor runs one pipeline stage: it invokes the language-model
// collaborator, executes each requested tool through the registry, and
// records every call as a directive/result pair in the trace.
//
// Tool failures (including timeouts) are local: they are captured as
// error-flavored results and execution continues. Only a collaborator
// failure aborts the stage.
type StageExecutor struct {
	client      llm.Client
	registry    *tools.Registry
	toolTimeout time.Duration
}

// NewStageExecutor wires an executor.
func NewStageExecutor(client llm.Client, registry *tools.Registry, toolTimeout time.Duration) *StageExecutor {
	return &StageExecutor{client: client, registry: registry, toolTimeout: toolTimeout}
}

// Execute runs stage for inv. On success the stage is recorded in the
// completed set. The returned error is always a *llm.StageError.
func (e *StageExecutor) Execute(ctx context.Context, inv *Investigation, stage model.Stage) error {
	start := time.Now()

	note, invocations, err := e.client.Invoke(ctx, stage, inv.Transaction, inv.Log.Events())
	if err != nil {
		metrics.LLMCalls.WithLabelValues("error").Inc()
		metrics.StagesExecuted.WithLabelValues(string(stage), "error").Inc()
		stageErr := llm.NewStageError(stage, err)
		slog.Error("stage failed", "investigation", inv.ID, "stage", stage, "code", stageErr.Code, "err", err)
		return stageErr
	}
	metrics.LLMCalls.WithLabelValues("success").Inc()

	for _, invocation := range invocations {
		callID := trace.NewCallID(invocation.Name)
		inv.Log.Append(trace.Directive(callID, invocation.Name, invocation.Args))
		inv.Log.Append(e.runTool(ctx, inv, callID, invocation))
	}

	inv.Log.Append(trace.Note(note))
	inv.markStageComplete(stage)

	metrics.StagesExecuted.WithLabelValues(string(stage), "success").Inc()
	metrics.StageDuration.Observe(float64(time.Since(start).Milliseconds()))
	slog.Info("stage completed", "investigation", inv.ID, "stage", stage,
		"tools", len(invocations), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// runTool produces the result event for one invocation. A result already
// supplied by the collaborator is recorded verbatim; otherwise the tool is
// called through the registry with the per-tool timeout.
func (e *StageExecutor) runTool(ctx context.Context, inv *Investigation, callID string, invocation llm.ToolInvocation) trace.Event {
	if invocation.Result != "" {
		metrics.ToolCalls.WithLabelValues(invocation.Name, "success").Inc()
		return trace.Result(callID, invocation.Result)
	}

	toolCtx := ctx
	if e.toolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, e.toolTimeout)
		defer cancel()
	}

	out, err := e.registry.Call(toolCtx, invocation.Name, tools.Request{
		Transaction: inv.Transaction,
		Args:        invocation.Args,
	})
	if err != nil {
		metrics.ToolCalls.WithLabelValues(invocation.Name, "error").Inc()
		slog.Warn("tool call failed, continuing stage", "investigation", inv.ID,
			"tool", invocation.Name, "err", err)
		return trace.ErrorResult(callID, err.Error())
	}
	metrics.ToolCalls.WithLabelValues(invocation.Name, "success").Inc()
	return trace.Result(callID, out)
}
