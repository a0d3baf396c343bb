package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/campus-safety/kestrel/internal/domain"
)

// Deriver mines aggregate statistics of the historical dataset and emits
// ranked findings with catalogue prescriptions. Sub-rules run in a fixed
// evaluation order and append to the result; the sequence is never sorted
// here, so downstream consumers may re-sort by priority if they want.
// Derivation never errors: a sub-rule whose required column is absent
// simply does not append a finding.
type Deriver struct {
	catalogue *Catalogue
}

// NewDeriver creates a deriver over the given catalogue.
func NewDeriver(c *Catalogue) *Deriver {
	return &Deriver{catalogue: c}
}

// Derive runs all sub-rules against the dataset. The result has between
// zero and six findings, bounded by which sub-rules fire.
func (d *Deriver) Derive(ds *domain.Dataset) []domain.Finding {
	var findings []domain.Finding

	findings = d.dominantCategory(ds, findings)
	findings = d.peakHours(ds, findings)
	findings = d.weekendSkew(ds, findings)
	findings = d.topVolumeCategories(ds, findings)

	return findings
}

// dominantCategory emits the category with the highest high-risk fraction.
// Ties break toward the category encountered first in row order.
func (d *Deriver) dominantCategory(ds *domain.Dataset, findings []domain.Finding) []domain.Finding {
	if !ds.Has(domain.ColCategory) || !ds.Has(domain.ColHighRisk) {
		return findings
	}

	order, stats := groupByCategory(ds)
	if len(order) == 0 {
		return findings
	}

	best := ""
	bestRate := -1.0
	for _, cat := range order {
		s := stats[cat]
		rate := float64(s.highRisk) / float64(s.total)
		if rate > bestRate {
			best, bestRate = cat, rate
		}
	}

	return append(findings, domain.Finding{
		Finding:       fmt.Sprintf("'%s' has the highest risk rate (%.1f%%)", best, bestRate*100),
		Priority:      domain.PriorityHigh,
		Prescriptions: d.catalogue.Prescriptions(best),
	})
}

// peakHours emits the hours whose high-risk fraction sits strictly above
// the 75th percentile of the per-hour distribution. The night-time
// prescriptions are attached regardless of which hours were selected; a
// deliberate simplification, since the peak window is nocturnal in every
// dataset this was built for.
func (d *Deriver) peakHours(ds *domain.Dataset, findings []domain.Finding) []domain.Finding {
	if !ds.Has(domain.ColHour) || !ds.Has(domain.ColHighRisk) {
		return findings
	}

	var counts, positives [24]int
	for _, inc := range ds.Incidents {
		h := inc.Hour
		if h < 0 || h > 23 {
			continue
		}
		counts[h]++
		if inc.HighRisk {
			positives[h]++
		}
	}

	rates := map[int]float64{}
	var values []float64
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		rate := float64(positives[h]) / float64(counts[h])
		rates[h] = rate
		values = append(values, rate)
	}
	if len(values) == 0 {
		return findings
	}

	cutoff := quantile(values, 0.75)

	var peaks []int
	for h := 0; h < 24; h++ {
		if rate, ok := rates[h]; ok && rate > cutoff {
			peaks = append(peaks, h)
		}
	}
	if len(peaks) == 0 {
		return findings
	}

	labels := make([]string, len(peaks))
	for i, h := range peaks {
		labels[i] = fmt.Sprintf("%d:00", h)
	}

	return append(findings, domain.Finding{
		Finding:       "Highest risk hours: " + strings.Join(labels, ", "),
		Priority:      domain.PriorityHigh,
		Prescriptions: d.catalogue.Prescriptions(domain.TagNight),
	})
}

// weekendSkew fires only when the weekend high-risk rate exceeds the
// weekday rate by more than 10% relative.
func (d *Deriver) weekendSkew(ds *domain.Dataset, findings []domain.Finding) []domain.Finding {
	if !ds.Has(domain.ColIsWeekend) || !ds.Has(domain.ColHighRisk) {
		return findings
	}

	var wkndTotal, wkndRisk, wdayTotal, wdayRisk int
	for _, inc := range ds.Incidents {
		if inc.IsWeekend {
			wkndTotal++
			if inc.HighRisk {
				wkndRisk++
			}
		} else {
			wdayTotal++
			if inc.HighRisk {
				wdayRisk++
			}
		}
	}
	if wkndTotal == 0 || wdayTotal == 0 {
		return findings
	}

	weekend := float64(wkndRisk) / float64(wkndTotal)
	weekday := float64(wdayRisk) / float64(wdayTotal)
	if weekend <= weekday*1.1 {
		return findings
	}

	return append(findings, domain.Finding{
		Finding: fmt.Sprintf("Weekend risk (%.1f%%) is higher than weekday risk (%.1f%%)",
			weekend*100, weekday*100),
		Priority:      domain.PriorityMedium,
		Prescriptions: d.catalogue.Prescriptions(domain.TagWeekend),
	})
}

// topVolumeCategories emits one finding per top-3 category by raw count
// that has a catalogue entry. The single most frequent gets HIGH, the
// rest MEDIUM.
func (d *Deriver) topVolumeCategories(ds *domain.Dataset, findings []domain.Finding) []domain.Finding {
	if !ds.Has(domain.ColCategory) {
		return findings
	}

	order, stats := groupByCategory(ds)
	if len(order) == 0 {
		return findings
	}

	// Stable sort by count descending keeps first-encountered order on ties.
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return stats[ranked[i]].total > stats[ranked[j]].total
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	maxCount := stats[ranked[0]].total
	for _, cat := range ranked {
		if !d.catalogue.Has(cat) {
			continue
		}
		priority := domain.PriorityMedium
		if stats[cat].total == maxCount {
			priority = domain.PriorityHigh
		}
		findings = append(findings, domain.Finding{
			Finding:       fmt.Sprintf("'%s' accounts for %d incidents", cat, stats[cat].total),
			Priority:      priority,
			Prescriptions: d.catalogue.Prescriptions(cat),
		})
	}
	return findings
}

type categoryStats struct {
	total    int
	highRisk int
}

// groupByCategory returns categories in first-encountered row order with
// their counts, the stable-groupby semantics the tie-breaks rely on.
func groupByCategory(ds *domain.Dataset) ([]string, map[string]*categoryStats) {
	var order []string
	stats := map[string]*categoryStats{}

	for _, inc := range ds.Incidents {
		s, ok := stats[inc.Category]
		if !ok {
			s = &categoryStats{}
			stats[inc.Category] = s
			order = append(order, inc.Category)
		}
		s.total++
		if inc.HighRisk {
			s.highRisk++
		}
	}
	return order, stats
}

// quantile computes the q-th quantile with linear interpolation between
// sorted order statistics.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
