// Package rules holds the prescription catalogue, the CEL-based
// cross-cutting triggers, and the statistical rule deriver.
package rules

import (
	"github.com/campus-safety/kestrel/internal/domain"
)

// Catalogue is the fixed, hand-curated mapping from crime category (or
// cross-cutting tag) to an ordered list of candidate interventions. It is
// loaded once at process start and passed by reference into the deriver
// and the inference engine; never mutated at runtime.
type Catalogue struct {
	entries map[string][]string
}

// DefaultCatalogue returns the built-in prescription catalogue.
func DefaultCatalogue() *Catalogue {
	return &Catalogue{entries: map[string][]string{
		domain.CategoryTheft: {
			"Install CCTV cameras at parking lots, campus gates, and lecture hall corridors",
			"Improve lighting in poorly lit areas (hostels, parking, shortcuts)",
			"Run 'Don't Leave Valuables Unattended' awareness campaigns",
			"Deploy security at peak theft hours (7-9 AM, 12-2 PM, 5-7 PM)",
		},
		domain.CategoryAssault: {
			"Install emergency call points and panic buttons at strategic locations",
			"Increase visible security patrols during evening and night hours",
			"Establish a zero-tolerance policy for fighting with immediate suspension",
			"Introduce conflict resolution and mental health support programs",
		},
		domain.CategorySexual: {
			"Implement a clear, confidential sexual harassment reporting mechanism",
			"Provide student escort services for late-night movement on campus",
			"Ensure hostel corridors and bathrooms are well-lit and monitored",
			"Conduct mandatory consent and awareness training for all students",
		},
		domain.CategoryVandalism: {
			"Install perimeter fencing and controlled access gates",
			"Use CCTV monitoring at campus boundaries",
			"Enforce strict ID card policies for all persons on campus",
			"Increase patrols at night when vandalism peaks",
		},
		domain.CategoryDrugs: {
			"Conduct routine searches at campus entrances",
			"Partner with law enforcement for intelligence sharing",
			"Create anonymous tip lines for reporting drug activity",
			"Provide drug counseling and rehabilitation referrals for students",
		},
		domain.TagNight: {
			"Increase patrols between 8 PM - 2 AM (peak high-risk window)",
			"Ensure all campus pathways are adequately lit at night",
			"Provide safe late-night shuttle transport between hostels and key buildings",
		},
		domain.TagWeekend: {
			"Maintain full weekend security coverage (Saturdays and Sundays)",
			"Require event security plans for all weekend social gatherings",
		},
	}}
}

// Prescriptions returns the ordered intervention list for a category or
// tag, or nil when the catalogue has no entry. Callers must treat the
// returned slice as read-only.
func (c *Catalogue) Prescriptions(key string) []string {
	return c.entries[key]
}

// Has reports whether the catalogue carries an entry for the key.
func (c *Catalogue) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}
