// Package tools holds the tool registry the stage executor dispatches
// directives through, plus the built-in external lookup tools. Every
// expensive or externally billed tool consults the content-addressed cache
// before doing work.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/sanjaynair/amlscope/internal/model"
)

// Request carries a tool call's inputs. The transaction under
// investigation is always available alongside the collaborator-supplied
// arguments.
type Request struct {
	Transaction model.Transaction
	Args        map[string]any
}

// Tool is one callable lookup.
type Tool interface {
	// Name returns the string key this tool is registered under.
	Name() string
	// Call performs the lookup and returns its textual result.
	Call(ctx context.Context, req Request) (string, error)
}

// Registry maps tool names to implementations. Safe for concurrent reads;
// Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		panic(fmt.Sprintf("tool registry: duplicate name %q", t.Name()))
	}
	r.tools[t.Name()] = t
}

// Call dispatches to the named tool.
func (r *Registry) Call(ctx context.Context, name string, req Request) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no tool registered for %q", name)
	}
	return t.Call(ctx, req)
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for k := range r.tools {
		out = append(out, k)
	}
	return out
}
