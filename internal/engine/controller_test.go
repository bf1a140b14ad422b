package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sanjaynair/amlscope/internal/cache"
	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/risk"
	"github.com/sanjaynair/amlscope/internal/tools"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// fakeClient is a deterministic collaborator: a templated note per stage
// plus the standard tool plan. failOn aborts that stage with failErr.
type fakeClient struct {
	failOn  model.Stage
	failErr error
	plan    func(stage model.Stage, tx model.Transaction) []llm.ToolInvocation
}

func (f *fakeClient) Invoke(ctx context.Context, stage model.Stage, tx model.Transaction, transcript []trace.Event) (string, []llm.ToolInvocation, error) {
	if stage == f.failOn {
		return "", nil, f.failErr
	}
	note := "The " + string(stage) + " stage review of this transaction is complete and its findings are recorded."
	plan := llm.StageToolPlan
	if f.plan != nil {
		plan = f.plan
	}
	return note, plan(stage, tx), nil
}

func testProvider() refdata.Provider {
	return refdata.NewStatic(refdata.Data{
		Version:       "test",
		SanctionsList: []string{"IR"},
		Thresholds: refdata.Thresholds{
			CTR: 10000, SAR: 5000,
			CTRDeadline: "within 15 days of the transaction",
			SARDeadline: "within 30 days of detection",
		},
		DomesticCountry: "US",
		RetentionPeriod: "5 years",
	}, refdata.PrecedenceUnion)
}

func testTx() model.Transaction {
	return model.Transaction{
		Amount:             150000,
		Currency:           "USD",
		Description:        "wire transfer to holding company",
		CustomerName:       "Acme Holdings",
		AccountType:        model.AccountBusiness,
		CustomerRiskRating: model.RatingHigh,
		DestinationCountry: "IR",
		Timestamp:          time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestController(t *testing.T, client llm.Client, computeCalls *int) *Controller {
	t.Helper()
	provider := testProvider()
	c := cache.New(cache.NewMemoryStore())
	reg := tools.NewRegistry()

	riskTool := &tools.RiskScoreTool{
		Cache: c, Provider: provider, TTL: time.Hour,
		Compute: risk.Assess,
	}
	if computeCalls != nil {
		riskTool.Compute = func(tx model.Transaction, snap refdata.Snapshot) risk.Assessment {
			*computeCalls++
			return risk.Assess(tx, snap)
		}
	}
	reg.Register(riskTool)

	ttls := tools.DefaultTTLs()
	helper := tools.NewRegistry()
	tools.RegisterBuiltins(helper, c, provider, tools.NewMemoryIndex(nil), tools.NewOfflineLookup(), ttls)
	for _, name := range []string{"doc_search", "web_search", "academic_search", "exchange_rate"} {
		reg.Register(passthrough{name: name, inner: helper})
	}

	return NewController(context.Background(), client, reg, provider, nil, Conf{
		EnrichmentWorkers: 4, QueueDepth: 16,
		ToolTimeout: time.Second, StageTimeout: 5 * time.Second,
	})
}

// passthrough re-registers a builtin from another registry.
type passthrough struct {
	name  string
	inner *tools.Registry
}

func (p passthrough) Name() string { return p.name }

func (p passthrough) Call(ctx context.Context, req tools.Request) (string, error) {
	return p.inner.Call(ctx, p.name, req)
}

func TestStartCompletesAllStages(t *testing.T) {
	ctrl := newTestController(t, &fakeClient{}, nil)
	defer ctrl.Shutdown()

	snap, err := ctrl.Start(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s", snap.Status)
	}
	if len(snap.CompletedStages) != len(model.Pipeline()) {
		t.Errorf("completed = %v", snap.CompletedStages)
	}
	seen := make(map[model.Stage]int)
	for _, s := range snap.CompletedStages {
		seen[s]++
	}
	for _, s := range model.Pipeline() {
		if seen[s] != 1 {
			t.Errorf("stage %s recorded %d times", s, seen[s])
		}
	}
	if snap.Decision == "" {
		t.Error("decision missing")
	}
	if snap.Risk == nil || snap.Risk.Level != risk.LevelHigh {
		t.Errorf("risk = %+v", snap.Risk)
	}
	found := false
	for _, r := range snap.Requirements {
		if strings.Contains(r.Description, "Retain all transaction records") {
			found = true
		}
	}
	if !found {
		t.Error("retention requirement missing")
	}
}

func TestExportedTracePaired(t *testing.T) {
	ctrl := newTestController(t, &fakeClient{}, nil)
	defer ctrl.Shutdown()

	snap, err := ctrl.Start(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}
	exported, ok := ctrl.Trace(snap.ID)
	if !ok {
		t.Fatal("trace missing")
	}
	open := make(map[string]int)
	for i, ev := range exported {
		switch ev.Kind {
		case trace.KindDirective:
			open[ev.CallID] = i
		case trace.KindResult:
			di, ok := open[ev.CallID]
			if !ok || i <= di {
				t.Errorf("result %q at %d not after its directive", ev.CallID, i)
			}
			delete(open, ev.CallID)
		}
	}
	if len(open) != 0 {
		t.Errorf("unclosed call ids: %v", open)
	}
}

func TestToolFailureIsRecovered(t *testing.T) {
	client := &fakeClient{
		plan: func(stage model.Stage, tx model.Transaction) []llm.ToolInvocation {
			if stage != model.StageEvidence {
				return nil
			}
			return []llm.ToolInvocation{
				{Name: "no_such_tool", Args: map[string]any{}},
				{Name: "risk_score", Args: map[string]any{}},
			}
		},
	}
	ctrl := newTestController(t, client, nil)
	defer ctrl.Shutdown()

	snap, err := ctrl.Start(context.Background(), testTx())
	if err != nil {
		t.Fatalf("tool failure must not fail the investigation: %v", err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s", snap.Status)
	}
	exported, _ := ctrl.Trace(snap.ID)
	sawError, sawSuccess := false, false
	for _, ev := range exported {
		if ev.Kind == trace.KindResult && ev.IsError {
			sawError = true
		}
		if ev.Kind == trace.KindResult && !ev.IsError && strings.HasPrefix(ev.CallID, "risk_score") {
			sawSuccess = true
		}
	}
	if !sawError {
		t.Error("failed tool call not recorded as error result")
	}
	if !sawSuccess {
		t.Error("subsequent tool did not run after a failure")
	}
}

func TestLLMFailureFailsInvestigation(t *testing.T) {
	client := &fakeClient{
		failOn:  model.StageEvidence,
		failErr: errors.New("quota exceeded for model"),
	}
	ctrl := newTestController(t, client, nil)
	defer ctrl.Shutdown()

	snap, err := ctrl.Start(context.Background(), testTx())
	if err == nil {
		t.Fatal("expected error")
	}
	if snap.Status != StatusFailed {
		t.Fatalf("status = %s", snap.Status)
	}
	if snap.ErrorCode != string(llm.CodeRateLimited) {
		t.Errorf("error code = %s, want RATE_LIMITED", snap.ErrorCode)
	}
	var stageErr *llm.StageError
	if !errors.As(err, &stageErr) {
		t.Error("returned error is not a StageError")
	}
	// The regulatory stage completed before the failure.
	if len(snap.CompletedStages) != 1 || snap.CompletedStages[0] != model.StageRegulatory {
		t.Errorf("completed = %v", snap.CompletedStages)
	}
}

func TestIdenticalTransactionServedFromCache(t *testing.T) {
	computeCalls := 0
	ctrl := newTestController(t, &fakeClient{}, &computeCalls)
	defer ctrl.Shutdown()

	first, err := ctrl.Start(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}
	second, err := ctrl.Start(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}
	if computeCalls != 1 {
		t.Errorf("risk compute calls = %d, want 1 (second run must hit the cache)", computeCalls)
	}
	if first.Risk.Score != second.Risk.Score {
		t.Errorf("scores differ: %v vs %v", first.Risk.Score, second.Risk.Score)
	}
}

func TestSnapshotWhileRunning(t *testing.T) {
	ctrl := newTestController(t, &fakeClient{}, nil)
	defer ctrl.Shutdown()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Start(context.Background(), testTx())
		done <- err
	}()

	// Find the registered id, then hammer the read path while the pipeline
	// runs. Under -race this fails if any snapshot field is written without
	// the aggregate lock.
	deadline := time.Now().Add(5 * time.Second)
	var id string
	for id == "" {
		if time.Now().After(deadline) {
			t.Fatal("investigation never registered")
		}
		ctrl.mu.RLock()
		for k := range ctrl.investigations {
			id = k
		}
		ctrl.mu.RUnlock()
	}

	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
			snap, ok := ctrl.Get(id)
			if !ok || snap.Status != StatusCompleted {
				t.Fatalf("final snapshot = %+v", snap)
			}
			return
		default:
			snap, _ := ctrl.Get(id)
			if len(snap.CompletedStages) > len(model.Pipeline()) {
				t.Fatalf("completed = %v", snap.CompletedStages)
			}
			ctrl.Trace(id)
		}
	}
}

func TestStartStreamingTerminatesOnce(t *testing.T) {
	ctrl := newTestController(t, &fakeClient{}, nil)
	defer ctrl.Shutdown()

	stream, err := ctrl.StartStreaming(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}

	terminals := 0
	var last ProgressEvent
	for ev := range stream {
		if ev.Type == "complete" || ev.Type == "error" {
			terminals++
			last = ev
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}
	if last.Type != "complete" {
		t.Fatalf("terminal = %+v", last)
	}

	snap, ok := ctrl.Get(last.Message)
	if !ok {
		t.Fatal("investigation not registered")
	}
	if snap.Status != StatusCompleted {
		t.Errorf("status = %s", snap.Status)
	}
	if len(snap.CompletedStages) != len(model.Pipeline()) {
		t.Errorf("completed = %v", snap.CompletedStages)
	}
}

func TestStreamingTaskFailureDegrades(t *testing.T) {
	// An unregistered tool behind one enrichment key degrades to a
	// placeholder without failing siblings or the investigation.
	provider := testProvider()
	c := cache.New(cache.NewMemoryStore())
	reg := tools.NewRegistry()
	reg.Register(&tools.RiskScoreTool{Cache: c, Provider: provider, TTL: time.Hour, Compute: risk.Assess})
	// doc_search, web_search, academic_search, exchange_rate left out.

	ctrl := NewController(context.Background(), &fakeClient{}, reg, provider, nil, Conf{
		EnrichmentWorkers: 2, QueueDepth: 8, ToolTimeout: time.Second, StageTimeout: time.Second,
	})
	defer ctrl.Shutdown()

	stream, err := ctrl.StartStreaming(context.Background(), testTx())
	if err != nil {
		t.Fatal(err)
	}
	var last ProgressEvent
	for ev := range stream {
		last = ev
	}
	if last.Type != "complete" {
		t.Fatalf("terminal = %+v, want complete despite degraded tasks", last)
	}
}

func TestStartRejectsInvalidTransaction(t *testing.T) {
	ctrl := newTestController(t, &fakeClient{}, nil)
	defer ctrl.Shutdown()

	bad := testTx()
	bad.Amount = -5
	if _, err := ctrl.Start(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
	bad = testTx()
	bad.Currency = "NOTACODE"
	if _, err := ctrl.Start(context.Background(), bad); err == nil {
		t.Error("expected currency validation error")
	}
}
