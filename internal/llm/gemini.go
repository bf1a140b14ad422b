package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sanjaynair/amlscope/internal/model"
	"github.com/sanjaynair/amlscope/internal/trace"
)

// Gemini is the production collaborator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a client for modelName using apiKey.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: client.GenerativeModel(modelName)}, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error { return g.client.Close() }

// Invoke asks the model for the stage's analysis. Tool work is requested
// through the invocation list, not performed here: the standard tool set
// for the stage is returned with empty results so the stage executor runs
// each tool through the registry (cache-first) and records the trace pairs.
func (g *Gemini) Invoke(ctx context.Context, stage model.Stage, tx model.Transaction, transcript []trace.Event) (string, []ToolInvocation, error) {
	prompt := buildPrompt(stage, tx, transcript)
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", nil, fmt.Errorf("gemini generate: %w", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	note := strings.TrimSpace(b.String())
	if note == "" {
		return "", nil, fmt.Errorf("gemini generate: empty response")
	}
	return note, StageToolPlan(stage, tx), nil
}

// StageToolPlan returns the external lookups each stage performs, with
// empty results so the executor runs them through the registry.
func StageToolPlan(stage model.Stage, tx model.Transaction) []ToolInvocation {
	switch stage {
	case model.StageRegulatory:
		return []ToolInvocation{
			{Name: "risk_score", Args: map[string]any{}},
			{Name: "exchange_rate", Args: map[string]any{"base": tx.Currency, "quote": "USD"}},
		}
	case model.StageEvidence:
		return []ToolInvocation{
			{Name: "doc_search", Args: map[string]any{"query": tx.Description, "k": 5}},
			{Name: "web_search", Args: map[string]any{"query": tx.CustomerName + " " + tx.DestinationCountry}},
			{Name: "academic_search", Args: map[string]any{"query": "money laundering typology " + tx.Description}},
		}
	case model.StageCompliance:
		return []ToolInvocation{
			{Name: "risk_score", Args: map[string]any{}},
		}
	default:
		return nil
	}
}

func buildPrompt(stage model.Stage, tx model.Transaction, transcript []trace.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s stage of a transaction investigation.\n\n", stage)
	fmt.Fprintf(&b, "Transaction: %.2f %s to %s, account type %s, customer risk %s.\nDescription: %s\n\n",
		tx.Amount, tx.Currency, tx.DestinationCountry, tx.AccountType, tx.CustomerRiskRating, tx.Description)
	if len(transcript) > 0 {
		b.WriteString("Findings recorded by earlier stages:\n")
		for _, ev := range transcript {
			if ev.Kind == trace.KindNote {
				fmt.Fprintf(&b, "- %s\n", ev.Content)
			}
		}
		b.WriteString("\n")
	}
	switch stage {
	case model.StageRegulatory:
		b.WriteString("Assess which regulatory regimes apply and why. Answer in complete sentences.")
	case model.StageEvidence:
		b.WriteString("Summarize the evidence for or against suspicious activity. Answer in complete sentences.")
	case model.StageCompliance:
		b.WriteString("State the filing obligations this transaction triggers. Answer in complete sentences.")
	case model.StageReport:
		b.WriteString("Write a concise narrative conclusion for the investigation record.")
	}
	return b.String()
}
