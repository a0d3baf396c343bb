package domain

// Priority levels for derived findings.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
)

// Finding is a statistically derived observation about the historical
// dataset, paired with a priority and the catalogue prescriptions for it.
// Findings are derived per training run, never hand-authored.
type Finding struct {
	Finding       string   `json:"finding"`
	Priority      string   `json:"priority"` // "HIGH" or "MEDIUM"
	Prescriptions []string `json:"prescriptions"`
}

// Cross-cutting catalogue tags. These key prescription lists that are not
// tied to a single crime category.
const (
	TagNight   = "HIGH_RISK_TIME_NIGHT"
	TagWeekend = "HIGH_RISK_WEEKEND"
)
