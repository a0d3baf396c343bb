// Package ingest turns raw incident exports into clean datasets. It
// accepts both raw municipal crime extracts (TIME_OCC, CRM_CD_DESC,
// PREMIS_DESC style headers) and pre-cleaned files, normalizes headers,
// derives the category, severity, and high-risk label, and reports which
// logical columns the source actually carried.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/campus-safety/kestrel/internal/domain"
)

// minCampusRows is the cutoff below which a premise-filtered subset is
// considered too small to model. Under it the full extract is kept as a
// general urban-crime proxy and rows are flagged not campus-specific.
const minCampusRows = 1000

// campusKeywords mark premise descriptions tied to educational grounds.
var campusKeywords = []string{"SCHOOL", "COLLEGE", "UNIVERSITY", "CAMPUS"}

// headerAliases maps normalized header names to the logical column they
// feed. Raw extract aliases and pre-cleaned names land on the same slot.
var headerAliases = map[string]string{
	"HOUR":               domain.ColHour,
	"TIME_OCC":           domain.ColHour,
	"IS_WEEKEND":         domain.ColIsWeekend,
	"DATE_OCC":           domain.ColIsWeekend,
	"CRIME_CATEGORY":     domain.ColCategory,
	"CRM_CD_DESC":        domain.ColCategory,
	"CRIME_DESC":         domain.ColCategory,
	"OFFENSE":            domain.ColCategory,
	"VICTIM_AGE":         domain.ColVictimAge,
	"VICT_AGE":           domain.ColVictimAge,
	"IS_CAMPUS_SPECIFIC": domain.ColCampus,
	"PREMIS_DESC":        domain.ColCampus,
	"LATITUDE":           domain.ColLatitude,
	"LAT":                domain.ColLatitude,
	"LONGITUDE":          domain.ColLongitude,
	"LON":                domain.ColLongitude,
}

// dateLayouts covers the timestamp formats seen in municipal extracts.
var dateLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// LoadCSV reads, cleans, and labels an incident export.
func LoadCSV(path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// First matching header wins per logical column, so a pre-cleaned
	// HOUR beats a raw TIME_OCC when a file carries both.
	fields := map[string]int{}
	rawCategory := false
	for i, name := range header {
		norm := normalizeHeader(name)
		col, ok := headerAliases[norm]
		if !ok {
			continue
		}
		if _, seen := fields[col]; seen {
			continue
		}
		fields[col] = i
		if col == domain.ColCategory && norm != "CRIME_CATEGORY" {
			rawCategory = true
		}
	}

	type rawRow struct {
		inc        domain.Incident
		ageMissing bool
		premise    string
	}
	var rows []rawRow

	premiseIdx, hasPremise := -1, false
	if i, ok := fields[domain.ColCampus]; ok {
		premiseIdx, hasPremise = i, true
	}
	precleanedCampus := hasPremise && normalizeHeader(header[premiseIdx]) == "IS_CAMPUS_SPECIFIC"

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := rawRow{ageMissing: true}
		row.inc.CreatedAt = time.Now().UTC()

		if i, ok := fields[domain.ColHour]; ok && i < len(record) {
			row.inc.Hour = parseHour(record[i], normalizeHeader(header[i]) == "TIME_OCC")
		}
		if i, ok := fields[domain.ColIsWeekend]; ok && i < len(record) {
			row.inc.IsWeekend = parseWeekend(record[i])
		}
		if i, ok := fields[domain.ColCategory]; ok && i < len(record) {
			if rawCategory {
				row.inc.Category = MapCategory(record[i])
			} else {
				row.inc.Category = strings.ToUpper(strings.TrimSpace(record[i]))
			}
		} else {
			row.inc.Category = domain.CategoryUnknown
		}
		if i, ok := fields[domain.ColVictimAge]; ok && i < len(record) {
			if age, ok := parseAge(record[i]); ok {
				row.inc.VictimAge = age
				row.ageMissing = false
			}
		}
		if hasPremise && premiseIdx < len(record) {
			row.premise = record[premiseIdx]
		}
		latIdx, hasLat := fields[domain.ColLatitude]
		lonIdx, hasLon := fields[domain.ColLongitude]
		if hasLat && hasLon && latIdx < len(record) && lonIdx < len(record) {
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
			lon, errLon := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
			if errLat == nil && errLon == nil && (lat != 0 || lon != 0) {
				row.inc.Latitude, row.inc.Longitude, row.inc.HasLocation = lat, lon, true
			}
		}

		row.inc.Severity = domain.SeverityFor(row.inc.Category)
		row.inc.HighRisk = row.inc.Severity >= domain.HighRiskSeverity
		rows = append(rows, row)
	}

	// Campus filtering. A pre-cleaned boolean column is taken as-is; a
	// premise description column drives the keyword filter with the
	// proxy fallback for thin matches.
	if hasPremise && !precleanedCampus {
		var campus []rawRow
		for _, row := range rows {
			if isCampusPremise(row.premise) {
				campus = append(campus, row)
			}
		}
		if len(campus) >= minCampusRows {
			rows = campus
			for i := range rows {
				rows[i].inc.CampusSpecific = true
			}
		}
	} else if precleanedCampus {
		for i := range rows {
			rows[i].inc.CampusSpecific = parseFlag(rows[i].premise)
		}
	}

	// Median-impute missing ages from the rows that carried one.
	if _, ok := fields[domain.ColVictimAge]; ok {
		var ages []float64
		for _, row := range rows {
			if !row.ageMissing {
				ages = append(ages, row.inc.VictimAge)
			}
		}
		med := medianOf(ages)
		for i := range rows {
			if rows[i].ageMissing {
				rows[i].inc.VictimAge = med
			}
			rows[i].inc.VictimAge = clip(rows[i].inc.VictimAge, 0, 100)
		}
	}

	incidents := make([]domain.Incident, len(rows))
	for i, row := range rows {
		incidents[i] = row.inc
	}

	cols := map[string]bool{
		domain.ColCategory: true,
		domain.ColHighRisk: true,
		domain.ColCampus:   true,
	}
	if _, ok := fields[domain.ColHour]; ok {
		cols[domain.ColHour] = true
	}
	if _, ok := fields[domain.ColIsWeekend]; ok {
		cols[domain.ColIsWeekend] = true
	}
	if _, ok := fields[domain.ColVictimAge]; ok {
		cols[domain.ColVictimAge] = true
	}
	if _, okA := fields[domain.ColLatitude]; okA {
		if _, okB := fields[domain.ColLongitude]; okB {
			cols[domain.ColLatitude] = true
			cols[domain.ColLongitude] = true
		}
	}

	return &domain.Dataset{Incidents: incidents, Columns: cols}, nil
}

// MapCategory classifies a free-text crime description into the closed
// category vocabulary by keyword. Order matters: theft keywords are
// checked first, matching the labeling the model was validated against.
func MapCategory(desc string) string {
	d := strings.ToUpper(desc)
	switch {
	case containsAny(d, "THEFT", "BURGLARY", "STOLEN", "ROBBERY", "PICKPOCKET"):
		return domain.CategoryTheft
	case containsAny(d, "ASSAULT", "BATTERY", "FIGHT", "ATTACK", "AGGRAVATED"):
		return domain.CategoryAssault
	case containsAny(d, "SEX", "RAPE", "HARASS", "MOLEST", "INDECENT"):
		return domain.CategorySexual
	case containsAny(d, "VANDAL", "DAMAGE", "TRESPASS", "GRAFFITI"):
		return domain.CategoryVandalism
	case containsAny(d, "DRUG", "NARCO", "SUBSTANCE"):
		return domain.CategoryDrugs
	default:
		return domain.CategoryOther
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func isCampusPremise(premise string) bool {
	p := strings.ToUpper(premise)
	for _, kw := range campusKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

func normalizeHeader(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), " ", "_")
}

// parseHour accepts either a plain hour or a military-style HHMM integer.
func parseHour(s string, military bool) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	if military {
		v /= 100
	}
	return int(clip(float64(v), 0, 23))
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// parseWeekend accepts a boolean flag or a date whose weekday decides it.
func parseWeekend(s string) bool {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no", "":
		return false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			wd := t.Weekday()
			return wd == time.Saturday || wd == time.Sunday
		}
	}
	return false
}

// parseAge treats non-numeric, zero, and negative values as missing,
// matching how municipal extracts encode unknown victim age.
func parseAge(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
