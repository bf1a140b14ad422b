package refdata

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
version: "2026-08"
sanctions_list: [IR, KP]
advisory_list: [PA, MM]
thresholds:
  ctr: 10000
  sar: 5000
  ctr_deadline: "within 15 days of the transaction"
  sar_deadline: "within 30 days of detection"
domestic_country: US
retention_period: "5 years"
indicators:
  - id: structuring
    description: "amount just below the CTR threshold"
    expression: "amount >= 9000 AND amount < 10000"
gto_orders:
  - jurisdiction: "Miami-Dade"
    threshold: 300000
    category: "real estate"
    deadline: "within 30 days of closing"
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refdata.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileProviderLoad(t *testing.T) {
	p := NewFileProvider(writeSample(t), PrecedenceUnion)
	snap := p.Snapshot()

	if snap.CTRThreshold != 10000 || snap.SARThreshold != 5000 {
		t.Errorf("thresholds = %v/%v", snap.CTRThreshold, snap.SARThreshold)
	}
	if !snap.IsHighRisk("IR") || !snap.IsHighRisk("pa") {
		t.Error("union precedence should include both lists")
	}
	if snap.IsHighRisk("DE") {
		t.Error("DE should not be high-risk")
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].ID != "structuring" {
		t.Errorf("indicators = %+v", snap.Indicators)
	}
	if len(snap.GTOOrders) != 1 {
		t.Errorf("gto orders = %+v", snap.GTOOrders)
	}
}

func TestSanctionsPrecedence(t *testing.T) {
	p := NewFileProvider(writeSample(t), PrecedenceSanctions)
	snap := p.Snapshot()
	if !snap.IsHighRisk("KP") {
		t.Error("sanctions entry missing")
	}
	if snap.IsHighRisk("PA") {
		t.Error("advisory entry should be excluded under sanctions precedence")
	}
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"), PrecedenceUnion)
	snap := p.Snapshot()
	if snap.CTRThreshold != 10000 {
		t.Errorf("default CTR = %v, want 10000", snap.CTRThreshold)
	}
	if snap.RetentionPeriod != "5 years" {
		t.Errorf("default retention = %q", snap.RetentionPeriod)
	}
	if !snap.IsHighRisk("IR") {
		t.Error("default sanctions set missing IR")
	}
}

func TestPartialFileBackfilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("version: x\nsanctions_list: [KP]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	snap := NewFileProvider(path, PrecedenceUnion).Snapshot()
	if snap.CTRThreshold != 10000 {
		t.Errorf("backfilled CTR = %v", snap.CTRThreshold)
	}
	if snap.DomesticCountry != "US" {
		t.Errorf("backfilled domestic = %q", snap.DomesticCountry)
	}
}

func TestReloadKeepsOldDataOnError(t *testing.T) {
	path := writeSample(t)
	p := NewFileProvider(path, PrecedenceUnion)

	if err := os.WriteFile(path, []byte("thresholds: [not a map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("expected reload error for invalid yaml")
	}
	if p.Snapshot().CTRThreshold != 10000 {
		t.Error("old snapshot lost after failed reload")
	}
}
