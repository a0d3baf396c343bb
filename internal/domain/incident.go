// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// Crime category vocabulary. The set is closed; anything the ingestion
// layer cannot map lands in CategoryOther, and datasets without a usable
// description column get CategoryUnknown.
const (
	CategoryTheft     = "THEFT/ROBBERY"
	CategoryAssault   = "ASSAULT/VIOLENCE"
	CategorySexual    = "SEXUAL HARASSMENT/ASSAULT"
	CategoryVandalism = "VANDALISM/TRESPASSING"
	CategoryDrugs     = "DRUG-RELATED"
	CategoryOther     = "OTHER"
	CategoryUnknown   = "UNKNOWN"
)

// Recognized dataset column names. Ingestion normalizes whatever the raw
// file calls them into these; everything downstream branches on presence
// of these names only.
const (
	ColHour      = "hour"
	ColIsWeekend = "is_weekend"
	ColCategory  = "crime_category"
	ColHighRisk  = "high_risk"
	ColVictimAge = "victim_age"
	ColCampus    = "is_campus_specific"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
)

// HighRiskSeverity is the severity threshold at or above which an incident
// is labeled high-risk. The label is always derived from severity, never
// set independently.
const HighRiskSeverity = 2

// Incident is one historical security incident record. Immutable once
// produced by ingestion; consumed read-only by the encoder and the rule
// deriver.
type Incident struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Temporal context
	Hour      int  `json:"hour"` // 0-23
	IsWeekend bool `json:"isWeekend"`

	// Classification
	Category string `json:"crimeCategory"`
	Severity int    `json:"severityScore"` // ordinal 1-3, from category
	HighRisk bool   `json:"highRisk"`      // Severity >= HighRiskSeverity

	// Provenance
	CampusSpecific bool `json:"isCampusSpecific"`

	// Victim proxy, clipped to [0,100]; median-imputed when missing.
	VictimAge float64 `json:"victimAge"`

	// Optional location pass-through (not a model feature).
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	HasLocation bool    `json:"hasLocation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// SeverityFor maps a crime category to its ordinal severity score.
func SeverityFor(category string) int {
	switch category {
	case CategoryAssault, CategorySexual:
		return 3
	case CategoryTheft, CategoryDrugs:
		return 2
	default:
		return 1
	}
}

// Dataset is a cleaned tabular dataset handed over by ingestion: the
// incident rows plus the set of columns that were actually present in the
// source. Column presence is decided once, here, rather than re-checked
// throughout encoding and rule derivation.
type Dataset struct {
	Incidents []Incident
	Columns   map[string]bool
}

// Has reports whether the dataset carries the named column.
func (d *Dataset) Has(col string) bool {
	return d != nil && d.Columns[col]
}

// Len returns the number of incident rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Incidents)
}
