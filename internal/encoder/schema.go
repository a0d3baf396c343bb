// Package encoder implements the feature-encoding contract shared by
// training and inference. The same declared schema, fitted category map
// and fallback rules are used on both sides; the ordered feature-name
// list is derived once per dataset and persisted with the model bundle.
package encoder

import (
	"github.com/campus-safety/kestrel/internal/domain"
)

// Feature names, in the canonical declared order.
const (
	FeatureHour      = "hour"
	FeatureHourSin   = "hour_sin"
	FeatureHourCos   = "hour_cos"
	FeatureIsWeekend = "is_weekend"
	FeatureCategory  = "crime_category_encoded"
	FeatureVictimAge = "victim_age"
	FeatureCampus    = "is_campus_specific"
)

// descriptor declares one feature: its name and the dataset column it is
// derived from. A feature whose column is absent is omitted from the
// concrete order, at training and inference alike.
type descriptor struct {
	name   string
	column string
}

var schema = []descriptor{
	{FeatureHour, domain.ColHour},
	{FeatureHourSin, domain.ColHour},
	{FeatureHourCos, domain.ColHour},
	{FeatureIsWeekend, domain.ColIsWeekend},
	{FeatureCategory, domain.ColCategory},
	{FeatureVictimAge, domain.ColVictimAge},
	{FeatureCampus, domain.ColCampus},
}

// FeatureOrder evaluates the declared schema against a dataset's column
// set and returns the concrete ordered feature-name list.
func FeatureOrder(ds *domain.Dataset) []string {
	order := make([]string, 0, len(schema))
	for _, d := range schema {
		if ds.Has(d.column) {
			order = append(order, d.name)
		}
	}
	return order
}
