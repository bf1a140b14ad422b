package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sanjaynair/amlscope/internal/cache"
	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/risk"
)

// TTLs holds per-operation cache lifetimes. Volatile lookups (exchange
// rates, web intelligence) expire sooner than research-style ones.
type TTLs struct {
	Risk           time.Duration
	ExchangeRate   time.Duration
	WebSearch      time.Duration
	DocSearch      time.Duration
	AcademicSearch time.Duration
}

// DefaultTTLs returns the standard lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Risk:           time.Hour,
		ExchangeRate:   5 * time.Minute,
		WebSearch:      15 * time.Minute,
		DocSearch:      6 * time.Hour,
		AcademicSearch: 24 * time.Hour,
	}
}

// RegisterBuiltins wires the standard tool set into reg.
func RegisterBuiltins(reg *Registry, c *cache.Manager, provider refdata.Provider, retrieval KnowledgeRetrieval, lookup ExternalLookup, ttls TTLs) {
	reg.Register(&RiskScoreTool{Cache: c, Provider: provider, TTL: ttls.Risk, Compute: risk.Assess})
	reg.Register(&docSearchTool{cache: c, retrieval: retrieval, ttl: ttls.DocSearch})
	reg.Register(&webSearchTool{cache: c, lookup: lookup, ttl: ttls.WebSearch})
	reg.Register(&academicSearchTool{cache: c, lookup: lookup, ttl: ttls.AcademicSearch})
	reg.Register(&exchangeRateTool{cache: c, lookup: lookup, ttl: ttls.ExchangeRate})
}

// RiskScoreTool scores the transaction under investigation. The cache key
// is derived from the transaction plus the reference-data version, so a
// refdata update invalidates prior scores while identical resubmissions
// hit the same entry.
type RiskScoreTool struct {
	Cache    *cache.Manager
	Provider refdata.Provider
	TTL      time.Duration
	Compute  func(model.Transaction, refdata.Snapshot) risk.Assessment
}

func (t *RiskScoreTool) Name() string { return "risk_score" }

func (t *RiskScoreTool) Call(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	snap := t.Provider.Snapshot()
	key := map[string]any{"transaction": req.Transaction, "refdata_version": snap.Version}
	if cached, ok := t.Cache.GetText("risk", key); ok {
		return cached, nil
	}
	assessment := t.Compute(req.Transaction, snap)
	b, err := json.Marshal(assessment)
	if err != nil {
		return "", fmt.Errorf("risk_score: %w", err)
	}
	t.Cache.SetText("risk", key, string(b), t.TTL)
	return string(b), nil
}

// Assessment parses a risk_score tool result back into an Assessment.
func (t *RiskScoreTool) Assessment(result string) (risk.Assessment, error) {
	var a risk.Assessment
	if err := json.Unmarshal([]byte(result), &a); err != nil {
		return risk.Assessment{}, fmt.Errorf("risk_score result: %w", err)
	}
	return a, nil
}

type docSearchTool struct {
	cache     *cache.Manager
	retrieval KnowledgeRetrieval
	ttl       time.Duration
}

func (t *docSearchTool) Name() string { return "doc_search" }

func (t *docSearchTool) Call(ctx context.Context, req Request) (string, error) {
	query, _ := req.Args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("doc_search: query is required")
	}
	k := 5
	if v, ok := req.Args["k"].(int); ok && v > 0 {
		k = v
	} else if v, ok := req.Args["k"].(float64); ok && v > 0 {
		k = int(v)
	}
	key := map[string]any{"query": query, "k": k}
	if cached, ok := t.cache.GetText("docsearch", key); ok {
		return cached, nil
	}
	snippets, err := t.retrieval.Search(ctx, query, k)
	if err != nil {
		return "", fmt.Errorf("doc_search: %w", err)
	}
	out := formatSnippets(snippets)
	t.cache.SetText("docsearch", key, out, t.ttl)
	return out, nil
}

func formatSnippets(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "no matching documents found"
	}
	b, _ := json.Marshal(snippets)
	return string(b)
}

type webSearchTool struct {
	cache  *cache.Manager
	lookup ExternalLookup
	ttl    time.Duration
}

func (t *webSearchTool) Name() string { return "web_search" }

func (t *webSearchTool) Call(ctx context.Context, req Request) (string, error) {
	query, _ := req.Args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("web_search: query is required")
	}
	if cached, ok := t.cache.GetText("websearch", query); ok {
		return cached, nil
	}
	out, err := t.lookup.WebSearch(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	t.cache.SetText("websearch", query, out, t.ttl)
	return out, nil
}

type academicSearchTool struct {
	cache  *cache.Manager
	lookup ExternalLookup
	ttl    time.Duration
}

func (t *academicSearchTool) Name() string { return "academic_search" }

func (t *academicSearchTool) Call(ctx context.Context, req Request) (string, error) {
	query, _ := req.Args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("academic_search: query is required")
	}
	if cached, ok := t.cache.GetText("academic", query); ok {
		return cached, nil
	}
	out, err := t.lookup.AcademicSearch(ctx, query)
	if err != nil {
		return "", fmt.Errorf("academic_search: %w", err)
	}
	t.cache.SetText("academic", query, out, t.ttl)
	return out, nil
}

type exchangeRateTool struct {
	cache  *cache.Manager
	lookup ExternalLookup
	ttl    time.Duration
}

func (t *exchangeRateTool) Name() string { return "exchange_rate" }

func (t *exchangeRateTool) Call(ctx context.Context, req Request) (string, error) {
	base, _ := req.Args["base"].(string)
	quote, _ := req.Args["quote"].(string)
	if base == "" || quote == "" {
		return "", fmt.Errorf("exchange_rate: base and quote are required")
	}
	key := map[string]any{"base": base, "quote": quote}
	if cached, ok := t.cache.GetText("fx", key); ok {
		return cached, nil
	}
	out, err := t.lookup.ExchangeRate(ctx, base, quote)
	if err != nil {
		return "", fmt.Errorf("exchange_rate: %w", err)
	}
	t.cache.SetText("fx", key, out, t.ttl)
	return out, nil
}
