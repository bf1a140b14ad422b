package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sanjaynair/amlscope/internal/compliance"
	"github.com/sanjaynair/amlscope/internal/emit"
	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/metrics"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/report"
	"github.com/sanjaynair/amlscope/internal/risk"
	"github.com/sanjaynair/amlscope/internal/tools"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// Conf holds controller tunables.
type Conf struct {
	EnrichmentWorkers int
	QueueDepth        int
	ToolTimeout       time.Duration
	StageTimeout      time.Duration
}

// Controller is the top-level entry point. It owns the investigation
// registry and drives the supervisor/stage-executor loop (sequential path)
// or the enrichment fan-out (streaming path).
type Controller struct {
	executor *StageExecutor
	registry *tools.Registry
	provider refdata.Provider
	emitter  emit.Emitter
	conf     Conf
	pool     *enrichPool

	mu             sync.RWMutex
	investigations map[string]*Investigation
}

// NewController wires a controller and starts the enrichment pool.
func NewController(ctx context.Context, client llm.Client, registry *tools.Registry, provider refdata.Provider, emitter emit.Emitter, conf Conf) *Controller {
	if conf.EnrichmentWorkers <= 0 {
		conf.EnrichmentWorkers = 8
	}
	if conf.QueueDepth <= 0 {
		conf.QueueDepth = 64
	}
	if conf.ToolTimeout <= 0 {
		conf.ToolTimeout = 10 * time.Second
	}
	if conf.StageTimeout <= 0 {
		conf.StageTimeout = 60 * time.Second
	}
	return &Controller{
		executor:       NewStageExecutor(client, registry, conf.ToolTimeout),
		registry:       registry,
		provider:       provider,
		emitter:        emitter,
		conf:           conf,
		pool:           newEnrichPool(ctx, conf.EnrichmentWorkers, conf.QueueDepth),
		investigations: make(map[string]*Investigation),
	}
}

// Get returns the investigation snapshot for id.
func (c *Controller) Get(id string) (Snapshot, bool) {
	c.mu.RLock()
	inv, ok := c.investigations[id]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return inv.Snapshot(), true
}

// Trace returns the repaired, noise-filtered event log for id.
func (c *Controller) Trace(id string) ([]trace.Event, bool) {
	c.mu.RLock()
	inv, ok := c.investigations[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return inv.Log.Export(), true
}

// QueueUtilization returns enrichment queue used / capacity (0-1).
func (c *Controller) QueueUtilization() float64 {
	if c.pool.queueCap() == 0 {
		return 0
	}
	return float64(c.pool.queueLen()) / float64(c.pool.queueCap())
}

// Shutdown drains the enrichment pool.
func (c *Controller) Shutdown() {
	c.pool.drain()
}

// Start runs the full sequential pipeline for tx and blocks until the
// investigation is Completed or Failed. The returned investigation is
// valid in both cases; err is non-nil only on failure.
func (c *Controller) Start(ctx context.Context, tx model.Transaction) (Snapshot, error) {
	inv, err := c.create(tx)
	if err != nil {
		return Snapshot{}, err
	}

	sup := NewSupervisor()
	for {
		stage, done, err := sup.Next(inv.completedSet())
		if err != nil {
			c.fail(inv, llm.CodeUnknown, err)
			return inv.Snapshot(), err
		}
		if done {
			break
		}

		stageCtx, cancel := context.WithTimeout(ctx, c.conf.StageTimeout)
		err = c.executor.Execute(stageCtx, inv, stage)
		cancel()
		if err != nil {
			var stageErr *llm.StageError
			code := llm.CodeUnknown
			if errors.As(err, &stageErr) {
				code = stageErr.Code
			}
			c.fail(inv, code, err)
			_ = sup.Finish()
			return inv.Snapshot(), err
		}
	}

	c.complete(inv)
	_ = sup.Finish()
	return inv.Snapshot(), nil
}

// enrichmentKeys lists the streaming path's independent sub-computations.
var enrichmentKeys = []string{"risk", "doc_search", "web_search", "academic_search", "exchange_rate"}

// ProgressEvent is one record on the streaming path. A stream carries any
// number of progress events and terminates with exactly one complete or
// error event.
type ProgressEvent struct {
	Type    string `json:"type"` // progress | complete | error
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
	Percent int    `json:"percent"`
}

// StartStreaming launches the enrichment fan-out for tx and returns the
// progress stream. Each task consults the cache individually and degrades
// to a placeholder on failure; a task failure never aborts its siblings.
func (c *Controller) StartStreaming(ctx context.Context, tx model.Transaction) (<-chan ProgressEvent, error) {
	inv, err := c.create(tx)
	if err != nil {
		return nil, err
	}

	out := make(chan ProgressEvent, len(enrichmentKeys)+4)
	go c.runStreaming(ctx, inv, out)
	return out, nil
}

func (c *Controller) runStreaming(ctx context.Context, inv *Investigation, out chan<- ProgressEvent) {
	defer close(out)

	results := make(map[string]string, len(enrichmentKeys))
	resultC := make(chan enrichResult, len(enrichmentKeys))

	submitted := 0
	for _, key := range enrichmentKeys {
		t := enrichTask{key: key, run: c.enrichmentFn(key, inv.Transaction), resultC: resultC}
		if c.pool.submit(t) {
			submitted++
		} else {
			results[key] = "unavailable: enrichment queue full"
		}
	}
	metrics.EnrichmentQueueUtilization.Set(c.QueueUtilization())

	done := 0
	for done < submitted {
		select {
		case res := <-resultC:
			done++
			if res.err != nil {
				slog.Warn("enrichment task degraded", "investigation", inv.ID, "task", res.key, "err", res.err)
				results[res.key] = "unavailable: " + res.err.Error()
			} else {
				results[res.key] = res.val
			}
			out <- ProgressEvent{
				Type:    "progress",
				Stage:   res.key,
				Message: fmt.Sprintf("%s enrichment finished", res.key),
				Percent: 10 + 70*(done)/len(enrichmentKeys),
			}
		case <-ctx.Done():
			c.fail(inv, llm.CodeUnknown, ctx.Err())
			out <- ProgressEvent{Type: "error", Message: "investigation cancelled: " + ctx.Err().Error(), Percent: 100}
			return
		}
	}

	for _, key := range enrichmentKeys {
		callID := trace.NewCallID(key)
		inv.Log.Append(trace.Directive(callID, key, nil))
		inv.Log.Append(trace.Result(callID, results[key]))
	}
	if summary := enrichmentSummary(results); summary != "" {
		inv.Log.Append(trace.Note(summary))
	}
	for _, stage := range model.Pipeline() {
		inv.markStageComplete(stage)
	}

	out <- ProgressEvent{Type: "progress", Stage: "report", Message: "synthesizing final report", Percent: 90}
	c.complete(inv)
	out <- ProgressEvent{Type: "complete", Message: inv.ID, Percent: 100}
}

// enrichmentSummary turns the joined task outputs into one reviewable note.
func enrichmentSummary(results map[string]string) string {
	var parts []string
	for _, key := range enrichmentKeys {
		val, ok := results[key]
		if !ok || strings.HasPrefix(val, "unavailable:") {
			continue
		}
		parts = append(parts, fmt.Sprintf("The %s enrichment recorded: %s.", key, strings.TrimSuffix(val, ".")))
	}
	return strings.Join(parts, "\n")
}

// enrichmentFn maps a result key to its tool call.
func (c *Controller) enrichmentFn(key string, tx model.Transaction) func(ctx context.Context) (string, error) {
	var name string
	args := map[string]any{}
	switch key {
	case "risk":
		name = "risk_score"
	case "doc_search":
		name = "doc_search"
		args["query"] = tx.Description
		args["k"] = 5
	case "web_search":
		name = "web_search"
		args["query"] = tx.CustomerName + " " + tx.DestinationCountry
	case "academic_search":
		name = "academic_search"
		args["query"] = "money laundering typology " + tx.Description
	case "exchange_rate":
		name = "exchange_rate"
		args["base"] = tx.Currency
		args["quote"] = "USD"
	}
	return func(ctx context.Context) (string, error) {
		toolCtx, cancel := context.WithTimeout(ctx, c.conf.ToolTimeout)
		defer cancel()
		return c.registry.Call(toolCtx, name, tools.Request{Transaction: tx, Args: args})
	}
}

func (c *Controller) create(tx model.Transaction) (*Investigation, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	inv := NewInvestigation(tx)
	if err := inv.transition(StatusInProgress); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.investigations[inv.ID] = inv
	c.mu.Unlock()
	metrics.InvestigationsStarted.Inc()
	slog.Info("investigation started", "id", inv.ID, "amount", tx.Amount, "currency", tx.Currency, "destination", tx.DestinationCountry)
	return inv, nil
}

// complete computes the authoritative risk and compliance outputs,
// synthesizes the decision, and marks the investigation Completed.
func (c *Controller) complete(inv *Investigation) {
	snap := c.provider.Snapshot()
	assessment := c.assess(inv.Transaction, snap)
	reqs := compliance.Evaluate(inv.Transaction, assessment, snap)

	inv.setOutcome(assessment, reqs, report.Synthesize(inv.Log.Notes(), assessment, reqs))
	if err := inv.transition(StatusCompleted); err != nil {
		slog.Error("completion transition failed", "id", inv.ID, "err", err)
		return
	}
	metrics.InvestigationsCompleted.Inc()
	slog.Info("investigation completed", "id", inv.ID, "risk_level", assessment.Level,
		"requirements", len(reqs), "stages", len(inv.CompletedStages()))
	c.emitTerminal(inv)
}

// assess resolves the risk assessment through the same cached tool the
// stages use, so identical transactions reuse the cached score.
func (c *Controller) assess(tx model.Transaction, snap refdata.Snapshot) risk.Assessment {
	out, err := c.registry.Call(context.Background(), "risk_score", tools.Request{Transaction: tx})
	if err == nil {
		var tool tools.RiskScoreTool
		if a, perr := tool.Assessment(out); perr == nil {
			return a
		}
	}
	return risk.Assess(tx, snap)
}

func (c *Controller) fail(inv *Investigation, code llm.ErrorCode, err error) {
	inv.setFailure(string(code), err.Error())
	if terr := inv.transition(StatusFailed); terr != nil {
		slog.Error("failure transition failed", "id", inv.ID, "err", terr)
	}
	metrics.InvestigationsFailed.Inc()
	slog.Error("investigation failed", "id", inv.ID, "code", code, "err", err)
	c.emitTerminal(inv)
}

func (c *Controller) emitTerminal(inv *Investigation) {
	if c.emitter == nil {
		return
	}
	snap := inv.Snapshot()
	ev := emit.Event{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		InvestigationID: snap.ID,
		Status:          string(snap.Status),
		Stages:          len(snap.CompletedStages),
		DurationMs:      time.Since(snap.CreatedAt).Milliseconds(),
		Error:           snap.ErrorMessage,
	}
	if snap.Risk != nil {
		ev.RiskLevel = string(snap.Risk.Level)
		ev.RiskScore = snap.Risk.Score
	}
	c.emitter.Emit(ev)
}
