package refdata

// Data is the reference-data file schema.
type Data struct {
	Version string `yaml:"version"`

	// Two jurisdiction sources are kept separate; membership precedence is
	// a configuration choice (see Precedence).
	SanctionsList []string `yaml:"sanctions_list"`
	AdvisoryList  []string `yaml:"advisory_list"`

	Thresholds Thresholds `yaml:"thresholds"`

	DomesticCountry string `yaml:"domestic_country"`
	RetentionPeriod string `yaml:"retention_period"`

	Indicators []Indicator `yaml:"indicators"`
	GTOOrders  []GTOOrder  `yaml:"gto_orders"`
}

// Thresholds holds filing trigger amounts and deadlines.
type Thresholds struct {
	CTR         float64 `yaml:"ctr"`
	SAR         float64 `yaml:"sar"`
	CTRDeadline string  `yaml:"ctr_deadline"`
	SARDeadline string  `yaml:"sar_deadline"`
}

// Indicator is a suspicious-activity heuristic expressed as an expression
// over transaction fields.
type Indicator struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Expression  string `yaml:"expression"`
}

// GTOOrder is a geographic targeting order: a conditional reporting
// obligation tied to an amount floor and a monitored transaction category.
type GTOOrder struct {
	Jurisdiction string  `yaml:"jurisdiction"`
	Threshold    float64 `yaml:"threshold"`
	Category     string  `yaml:"category"`
	Deadline     string  `yaml:"deadline"`
}

// Precedence selects how high-risk jurisdiction membership is derived from
// the two list sources.
type Precedence string

const (
	// PrecedenceUnion treats a country on either list as high-risk.
	PrecedenceUnion Precedence = "union"
	// PrecedenceSanctions consults only the sanctions list.
	PrecedenceSanctions Precedence = "sanctions"
)

// Snapshot is an immutable resolved view handed to the pure engines.
// Identical snapshots plus identical transactions always yield identical
// risk and compliance output, which is what makes those results cacheable.
type Snapshot struct {
	HighRisk        map[string]struct{}
	CTRThreshold    float64
	SARThreshold    float64
	CTRDeadline     string
	SARDeadline     string
	DomesticCountry string
	RetentionPeriod string
	Indicators      []Indicator
	GTOOrders       []GTOOrder
	Version         string
}

// IsHighRisk reports whether country is in the high-risk jurisdiction set.
func (s Snapshot) IsHighRisk(country string) bool {
	_, ok := s.HighRisk[normalizeCountry(country)]
	return ok
}
