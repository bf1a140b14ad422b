package cache

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	m := New(NewMemoryStore())
	input := map[string]any{"query": "shell company registry", "k": 5}

	m.SetText("docsearch", input, "three matching filings", time.Minute)
	got, ok := m.GetText("docsearch", input)
	if !ok {
		t.Fatal("expected hit before TTL")
	}
	if got != "three matching filings" {
		t.Errorf("got %q", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	m := New(store)

	m.SetText("fx", "USD/EUR", "1.08", 5*time.Minute)
	if _, ok := m.GetText("fx", "USD/EUR"); !ok {
		t.Fatal("expected hit before expiry")
	}
	current = current.Add(6 * time.Minute)
	if _, ok := m.GetText("fx", "USD/EUR"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestKeyIsOrderIndependent(t *testing.T) {
	m := New(NewMemoryStore())
	a := map[string]any{"amount": 150000.0, "currency": "USD", "country": "IR"}
	b := map[string]any{"country": "IR", "currency": "USD", "amount": 150000.0}

	ka, err := m.Key("risk", a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := m.Key("risk", b)
	if err != nil {
		t.Fatal(err)
	}
	if ka != kb {
		t.Errorf("keys differ for identical semantic input:\n%s\n%s", ka, kb)
	}

	kc, _ := m.Key("risk", map[string]any{"amount": 150000.0, "currency": "USD", "country": "DE"})
	if kc == ka {
		t.Error("keys collide for different input")
	}
}

func TestNamespaceSeparation(t *testing.T) {
	m := New(NewMemoryStore())
	m.SetText("websearch", "query", "web result", time.Minute)
	if _, ok := m.GetText("academic", "query"); ok {
		t.Error("entry leaked across namespaces")
	}
}

func TestDegradedStore(t *testing.T) {
	m := New(nil)
	// Every operation must be a silent miss/no-op.
	m.SetText("risk", "x", "v", time.Minute)
	if _, ok := m.GetText("risk", "x"); ok {
		t.Error("degraded manager returned a hit")
	}
	m.Delete("risk", "x")
	if n := m.ClearPattern("risk:*"); n != 0 {
		t.Errorf("ClearPattern = %d, want 0", n)
	}
}

func TestDelete(t *testing.T) {
	m := New(NewMemoryStore())
	m.SetText("fx", "USD/GBP", "0.79", time.Minute)
	m.Delete("fx", "USD/GBP")
	if _, ok := m.GetText("fx", "USD/GBP"); ok {
		t.Error("expected miss after delete")
	}
}

func TestClearPattern(t *testing.T) {
	m := New(NewMemoryStore())
	m.SetText("websearch", "q1", "r1", time.Minute)
	m.SetText("websearch", "q2", "r2", time.Minute)
	m.SetText("docsearch", "q3", "r3", time.Minute)

	if n := m.ClearPattern("websearch:*"); n != 2 {
		t.Errorf("ClearPattern = %d, want 2", n)
	}
	if _, ok := m.GetText("websearch", "q1"); ok {
		t.Error("websearch entry survived clear")
	}
	if _, ok := m.GetText("docsearch", "q3"); !ok {
		t.Error("docsearch entry wrongly cleared")
	}
}

func TestClearPatternInvalidGlob(t *testing.T) {
	m := New(NewMemoryStore())
	m.SetText("websearch", "q1", "r1", time.Minute)

	if n := m.ClearPattern("websearch:["); n != 0 {
		t.Errorf("ClearPattern = %d, want 0 for an invalid pattern", n)
	}
	if _, ok := m.GetText("websearch", "q1"); !ok {
		t.Error("entry deleted by an invalid pattern")
	}
}

func TestCanonicalNFCNormalization(t *testing.T) {
	m := New(NewMemoryStore())
	// "é" precomposed vs combining sequence must hash identically.
	ka, err := m.Key("docsearch", "café")
	if err != nil {
		t.Fatal(err)
	}
	kb, err := m.Key("docsearch", "café")
	if err != nil {
		t.Fatal(err)
	}
	if ka != kb {
		t.Error("NFC-equivalent strings produced different keys")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New(NewMemoryStore())
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				m.SetText("risk", map[string]any{"worker": n, "iter": j}, "v", time.Minute)
				m.GetText("risk", map[string]any{"worker": n, "iter": j})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
