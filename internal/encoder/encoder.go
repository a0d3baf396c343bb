package encoder

import (
	"fmt"
	"math"
	"sort"

	"github.com/campus-safety/kestrel/internal/domain"
)

// Encoder turns a record or a live query context into a fixed-order
// numeric feature vector. It carries the fitted state the contract depends
// on (category mapping, training-set age median) and is persisted whole
// inside the model bundle. Fields are exported for gob serialization.
type Encoder struct {
	Categories *CategoryEncoder
	AgeMedian  float64
}

// Record is the encoder's input: the union of fields an incident or a
// query context can contribute. Presence flags drive the documented
// fallbacks instead of sentinel values.
type Record struct {
	Hour           int
	IsWeekend      bool
	Category       string
	HasCategory    bool
	VictimAge      float64
	HasVictimAge   bool
	CampusSpecific bool
}

// RecordFromIncident adapts a historical incident for encoding.
func RecordFromIncident(inc *domain.Incident) Record {
	return Record{
		Hour:           inc.Hour,
		IsWeekend:      inc.IsWeekend,
		Category:       inc.Category,
		HasCategory:    inc.Category != "",
		VictimAge:      inc.VictimAge,
		HasVictimAge:   true,
		CampusSpecific: inc.CampusSpecific,
	}
}

// RecordFromQuery adapts a live query context for encoding. Queries carry
// no category, so the category feature degrades to the OTHER bucket; the
// campus flag is fixed to true because live queries are campus contexts.
func RecordFromQuery(q domain.Query) Record {
	return Record{
		Hour:           q.Hour,
		IsWeekend:      q.IsWeekend,
		HasCategory:    false,
		VictimAge:      q.VictimAge,
		HasVictimAge:   true,
		CampusSpecific: true,
	}
}

// Fit builds an encoder from the training dataset: fits the category
// mapping and computes the victim-age median used as the missing-age
// fallback. Fit happens exactly once per pipeline run.
func Fit(ds *domain.Dataset) *Encoder {
	e := &Encoder{
		Categories: FitCategories(ds),
	}

	if ds.Has(domain.ColVictimAge) {
		ages := make([]float64, 0, len(ds.Incidents))
		for _, inc := range ds.Incidents {
			ages = append(ages, clipAge(inc.VictimAge))
		}
		e.AgeMedian = median(ages)
	}

	return e
}

// Encode produces the numeric vector for a record in exactly the given
// feature order. A name the encoder cannot derive fails with
// ErrSchemaMismatch; the output length always equals len(order).
func (e *Encoder) Encode(rec Record, order []string) ([]float64, error) {
	vec := make([]float64, len(order))
	for i, name := range order {
		v, err := e.encodeOne(rec, name)
		if err != nil {
			return nil, err
		}
		vec[i] = v
	}
	return vec, nil
}

func (e *Encoder) encodeOne(rec Record, name string) (float64, error) {
	hour := clipHour(rec.Hour)

	switch name {
	case FeatureHour:
		return float64(hour), nil
	case FeatureHourSin:
		return HourSin(hour), nil
	case FeatureHourCos:
		return HourCos(hour), nil
	case FeatureIsWeekend:
		return boolFeature(rec.IsWeekend), nil
	case FeatureCategory:
		label := rec.Category
		if !rec.HasCategory {
			label = domain.CategoryOther
		}
		return float64(e.Categories.Encode(label)), nil
	case FeatureVictimAge:
		if !rec.HasVictimAge {
			return e.AgeMedian, nil
		}
		return clipAge(rec.VictimAge), nil
	case FeatureCampus:
		return boolFeature(rec.CampusSpecific), nil
	default:
		return 0, fmt.Errorf("%w: cannot derive feature %q", domain.ErrSchemaMismatch, name)
	}
}

// EncodeDataset encodes every incident into a feature matrix plus the
// high-risk label vector, in row order.
func (e *Encoder) EncodeDataset(ds *domain.Dataset, order []string) ([][]float64, []int, error) {
	x := make([][]float64, 0, len(ds.Incidents))
	y := make([]int, 0, len(ds.Incidents))

	for i := range ds.Incidents {
		vec, err := e.Encode(RecordFromIncident(&ds.Incidents[i]), order)
		if err != nil {
			return nil, nil, err
		}
		x = append(x, vec)

		label := 0
		if ds.Incidents[i].HighRisk {
			label = 1
		}
		y = append(y, label)
	}

	return x, y, nil
}

// HourSin is the sine half of the cyclical hour encoding, so hour 23 and
// hour 0 land numerically adjacent.
func HourSin(hour int) float64 {
	return math.Sin(2 * math.Pi * float64(hour) / 24)
}

// HourCos is the cosine half of the cyclical hour encoding.
func HourCos(hour int) float64 {
	return math.Cos(2 * math.Pi * float64(hour) / 24)
}

// clipHour clamps out-of-range hours into [0,23] rather than rejecting.
func clipHour(hour int) int {
	if hour < 0 {
		return 0
	}
	if hour > 23 {
		return 23
	}
	return hour
}

func clipAge(age float64) float64 {
	if age < 0 {
		return 0
	}
	if age > 100 {
		return 100
	}
	return age
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func median(values []float64) float64 {
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
