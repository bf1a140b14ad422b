package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Snippet is one ranked retrieval result.
type Snippet struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// KnowledgeRetrieval is the document/vector search collaborator. The
// ingestion and embedding pipeline behind it is out of scope here.
type KnowledgeRetrieval interface {
	Search(ctx context.Context, query string, k int) ([]Snippet, error)
}

// ExternalLookup covers the externally billed reference lookups.
type ExternalLookup interface {
	ExchangeRate(ctx context.Context, base, quote string) (string, error)
	WebSearch(ctx context.Context, query string) (string, error)
	AcademicSearch(ctx context.Context, query string) (string, error)
}

// MemoryIndex is a token-overlap KnowledgeRetrieval over an in-process
// corpus; the default when no search engine is wired.
type MemoryIndex struct {
	docs []Snippet
}

// NewMemoryIndex builds an index over docs.
func NewMemoryIndex(docs []Snippet) *MemoryIndex {
	return &MemoryIndex{docs: docs}
}

func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qTokens := tokenize(query)
	scored := make([]Snippet, 0, len(m.docs))
	for _, d := range m.docs {
		score := overlap(qTokens, tokenize(d.Text))
		if score > 0 {
			d.Score = score
			scored = append(scored, d)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if len(tok) > 2 {
			out[tok] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return float64(n) / float64(len(a))
}

// OfflineLookup is a deterministic ExternalLookup used when no upstream
// providers are configured.
type OfflineLookup struct{}

// NewOfflineLookup returns the offline implementation.
func NewOfflineLookup() *OfflineLookup { return &OfflineLookup{} }

func (o *OfflineLookup) ExchangeRate(ctx context.Context, base, quote string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if base == quote {
		return fmt.Sprintf("1 %s = 1.0000 %s", base, quote), nil
	}
	return fmt.Sprintf("no live rate feed configured for %s/%s, treating notional amounts at face value", base, quote), nil
}

func (o *OfflineLookup) WebSearch(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("no web search provider configured; query %q not executed", query), nil
}

func (o *OfflineLookup) AcademicSearch(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("no academic search provider configured; query %q not executed", query), nil
}
