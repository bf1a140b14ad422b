package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sanjaynair/amlscope/internal/cache"
	"github.com/sanjaynair/amlscope/internal/engine"
	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/tools"
)

func newTestHandler(t *testing.T) (http.Handler, *engine.Controller) {
	t.Helper()
	provider := refdata.NewStatic(refdata.Data{
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

	reg := tools.NewRegistry()
	tools.RegisterBuiltins(reg, cache.New(cache.NewMemoryStore()), provider,
		tools.NewMemoryIndex(nil), tools.NewOfflineLookup(), tools.DefaultTTLs())

	ctrl := engine.NewController(context.Background(), llm.NewOffline(), reg, provider, nil, engine.Conf{
		EnrichmentWorkers: 4, QueueDepth: 16,
		ToolTimeout: time.Second, StageTimeout: 5 * time.Second,
	})
	t.Cleanup(ctrl.Shutdown)
	return New(ctrl, provider), ctrl
}

const txBody = `{
	"amount": 150000,
	"currency": "USD",
	"description": "wire transfer to holding company",
	"customer_name": "Acme Holdings",
	"account_type": "business",
	"customer_risk_rating": "high",
	"destination_country": "IR",
	"timestamp": "2026-08-01T12:00:00Z"
}`

func TestStartInvestigationEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/investigations", strings.NewReader(txBody))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != engine.StatusCompleted {
		t.Errorf("status = %s", snap.Status)
	}
	if snap.Decision == "" {
		t.Error("decision missing")
	}

	// The snapshot and trace must be retrievable afterwards.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/investigations/"+snap.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/investigations/"+snap.ID+"/trace", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("trace status = %d", w.Code)
	}
}

func TestStartInvestigationRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t)

	for name, body := range map[string]string{
		"malformed json":  `{"amount": `,
		"negative amount": `{"amount": -10, "currency": "USD", "description": "x", "customer_name": "y", "account_type": "personal", "customer_risk_rating": "low", "destination_country": "US", "timestamp": "2026-08-01T12:00:00Z"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/investigations", strings.NewReader(body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetInvestigationNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/investigations/inv-nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStreamEndpointEmitsNDJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/investigations/stream", strings.NewReader(txBody))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %s", ct)
	}

	terminals := 0
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev engine.ProgressEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		if ev.Type == "complete" || ev.Type == "error" {
			terminals++
			if ev.Type != "complete" {
				t.Errorf("terminal = %+v", ev)
			}
		}
	}
	if terminals != 1 {
		t.Errorf("terminal events = %d, want 1", terminals)
	}
}

func TestRefDataEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/refdata", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "IR") {
		t.Errorf("snapshot missing sanctioned country: %s", w.Body.String())
	}

	// Static provider does not support reload.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/refdata/reload", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("reload status = %d, want 501", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}
