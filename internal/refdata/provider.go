package refdata

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Provider is the read-only reference-data surface consumed by the engines.
type Provider interface {
	// Snapshot returns the current resolved reference data.
	Snapshot() Snapshot
}

// Defaults returns the hardcoded conservative fallback used when the
// reference-data file is missing or unreadable. Fallback values per field:
// CTR 10,000 / SAR 5,000 (standard BSA floors), a minimal sanctions set,
// US domestic, 5-year retention, no indicators or GTO orders.
func Defaults() Data {
	return Data{
		Version:       "defaults",
		SanctionsList: []string{"IR", "KP", "SY", "CU"},
		AdvisoryList:  []string{"MM", "AF"},
		Thresholds: Thresholds{
			CTR:         10000,
			SAR:         5000,
			CTRDeadline: "within 15 days of the transaction",
			SARDeadline: "within 30 days of detection",
		},
		DomesticCountry: "US",
		RetentionPeriod: "5 years",
	}
}

// FileProvider loads reference data from a YAML file once at startup and
// optionally hot-reloads it on file changes. Reads are lock-free via an
// atomic snapshot swap.
type FileProvider struct {
	path       string
	precedence Precedence
	snap       atomic.Pointer[Snapshot]
}

// NewFileProvider loads path and returns a provider. A missing or invalid
// file falls back to Defaults with a warning; it never fails startup.
func NewFileProvider(path string, precedence Precedence) *FileProvider {
	p := &FileProvider{path: path, precedence: precedence}
	data, err := load(path)
	if err != nil {
		slog.Warn("reference data unavailable, using conservative defaults", "path", path, "err", err)
		data = Defaults()
	}
	snap := resolve(data, precedence)
	p.snap.Store(&snap)
	return p
}

// Snapshot returns the current resolved reference data.
func (p *FileProvider) Snapshot() Snapshot {
	return *p.snap.Load()
}

// Reload forces an immediate re-read of the file. The old snapshot is kept
// when the file cannot be read or validated.
func (p *FileProvider) Reload() error {
	data, err := load(p.path)
	if err != nil {
		return err
	}
	snap := resolve(data, p.precedence)
	p.snap.Store(&snap)
	slog.Info("reference data reloaded", "version", data.Version,
		"sanctions", len(data.SanctionsList), "indicators", len(data.Indicators))
	return nil
}

// Watch starts a background goroutine that hot-reloads on file changes.
// Call the returned stop function to clean up.
func (p *FileProvider) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("refdata watcher: %w", err)
	}
	if err := w.Add(p.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("refdata watcher add %s: %w", p.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if err := p.Reload(); err != nil {
						slog.Warn("refdata hot-reload skipped", "err", err)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Static wraps a fixed Data value; used in tests and for embedded setups.
type Static struct {
	snap Snapshot
}

// NewStatic resolves data once and serves it forever.
func NewStatic(data Data, precedence Precedence) *Static {
	return &Static{snap: resolve(data, precedence)}
}

func (s *Static) Snapshot() Snapshot { return s.snap }

func load(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read refdata %s: %w", path, err)
	}
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("parse refdata %s: %w", path, err)
	}
	return applyDefaults(data), nil
}

// applyDefaults backfills absent fields with the conservative fallbacks and
// logs which fields were missing.
func applyDefaults(data Data) Data {
	def := Defaults()
	if data.Thresholds.CTR == 0 {
		slog.Warn("refdata missing ctr threshold, using default", "default", def.Thresholds.CTR)
		data.Thresholds.CTR = def.Thresholds.CTR
	}
	if data.Thresholds.SAR == 0 {
		slog.Warn("refdata missing sar threshold, using default", "default", def.Thresholds.SAR)
		data.Thresholds.SAR = def.Thresholds.SAR
	}
	if data.Thresholds.CTRDeadline == "" {
		data.Thresholds.CTRDeadline = def.Thresholds.CTRDeadline
	}
	if data.Thresholds.SARDeadline == "" {
		data.Thresholds.SARDeadline = def.Thresholds.SARDeadline
	}
	if data.DomesticCountry == "" {
		data.DomesticCountry = def.DomesticCountry
	}
	if data.RetentionPeriod == "" {
		slog.Warn("refdata missing retention period, using default", "default", def.RetentionPeriod)
		data.RetentionPeriod = def.RetentionPeriod
	}
	if len(data.SanctionsList) == 0 {
		slog.Warn("refdata missing sanctions list, using default set")
		data.SanctionsList = def.SanctionsList
	}
	return data
}

func resolve(data Data, precedence Precedence) Snapshot {
	high := make(map[string]struct{})
	for _, c := range data.SanctionsList {
		high[normalizeCountry(c)] = struct{}{}
	}
	if precedence != PrecedenceSanctions {
		for _, c := range data.AdvisoryList {
			high[normalizeCountry(c)] = struct{}{}
		}
	}
	return Snapshot{
		HighRisk:        high,
		CTRThreshold:    data.Thresholds.CTR,
		SARThreshold:    data.Thresholds.SAR,
		CTRDeadline:     data.Thresholds.CTRDeadline,
		SARDeadline:     data.Thresholds.SARDeadline,
		DomesticCountry: normalizeCountry(data.DomesticCountry),
		RetentionPeriod: data.RetentionPeriod,
		Indicators:      data.Indicators,
		GTOOrders:       data.GTOOrders,
		Version:         data.Version,
	}
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
