package encoder

import (
	"errors"
	"math"
	"testing"

	"github.com/campus-safety/kestrel/internal/domain"
)

func testDataset() *domain.Dataset {
	return &domain.Dataset{
		Incidents: []domain.Incident{
			{Hour: 22, IsWeekend: true, Category: domain.CategoryTheft, HighRisk: true, VictimAge: 21, CampusSpecific: true},
			{Hour: 10, IsWeekend: false, Category: domain.CategoryVandalism, HighRisk: false, VictimAge: 30, CampusSpecific: true},
			{Hour: 2, IsWeekend: true, Category: domain.CategoryAssault, HighRisk: true, VictimAge: 19, CampusSpecific: false},
			{Hour: 14, IsWeekend: false, Category: domain.CategoryOther, HighRisk: false, VictimAge: 45, CampusSpecific: true},
		},
		Columns: map[string]bool{
			domain.ColHour:      true,
			domain.ColIsWeekend: true,
			domain.ColCategory:  true,
			domain.ColVictimAge: true,
			domain.ColCampus:    true,
			domain.ColHighRisk:  true,
		},
	}
}

func TestCyclicalEncodingUnitCircle(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		s, c := HourSin(hour), HourCos(hour)
		if norm := s*s + c*c; math.Abs(norm-1) > 1e-9 {
			t.Errorf("hour %d: sin^2+cos^2 = %v, want 1", hour, norm)
		}
	}
}

func TestCyclicalAdjacency(t *testing.T) {
	dist := func(a, b int) float64 {
		ds := HourSin(a) - HourSin(b)
		dc := HourCos(a) - HourCos(b)
		return math.Hypot(ds, dc)
	}

	// Midnight and 23:00 must be close; midnight and noon far apart.
	if d23, d12 := dist(23, 0), dist(0, 12); d23 >= d12/4 {
		t.Errorf("hour 23-0 distance %v not small vs 0-12 distance %v", d23, d12)
	}
}

func TestFeatureOrderFollowsColumnPresence(t *testing.T) {
	ds := testDataset()
	order := FeatureOrder(ds)

	want := []string{
		FeatureHour, FeatureHourSin, FeatureHourCos,
		FeatureIsWeekend, FeatureCategory, FeatureVictimAge, FeatureCampus,
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d features, got %d: %v", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("feature %d: got %s, want %s", i, order[i], want[i])
		}
	}

	// Dropping a column must drop exactly its features, keeping order.
	delete(ds.Columns, domain.ColIsWeekend)
	order = FeatureOrder(ds)
	for _, name := range order {
		if name == FeatureIsWeekend {
			t.Error("is_weekend feature present despite missing column")
		}
	}
	if len(order) != len(want)-1 {
		t.Errorf("expected %d features after column drop, got %d", len(want)-1, len(order))
	}
}

func TestEncodeDeterminism(t *testing.T) {
	ds := testDataset()
	enc := Fit(ds)
	order := FeatureOrder(ds)

	rec := RecordFromIncident(&ds.Incidents[0])
	a, err := enc.Encode(rec, order)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	b, err := enc.Encode(rec, order)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if len(a) != len(order) {
		t.Fatalf("vector length %d, want %d", len(a), len(order))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("feature %s differs between runs: %v vs %v", order[i], a[i], b[i])
		}
	}
}

func TestEncodeSchemaMismatch(t *testing.T) {
	enc := Fit(testDataset())

	_, err := enc.Encode(Record{}, []string{"moon_phase"})
	if !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestEncodeFallbacks(t *testing.T) {
	ds := testDataset()
	enc := Fit(ds)

	// Missing age degrades to training-set median, not zero.
	vec, err := enc.Encode(Record{Hour: 5, HasVictimAge: false}, []string{FeatureVictimAge})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	wantMedian := (21.0 + 30.0) / 2
	if vec[0] != wantMedian {
		t.Errorf("missing age encoded as %v, want median %v", vec[0], wantMedian)
	}

	// Unknown category degrades to the OTHER bucket.
	vec, err = enc.Encode(Record{Category: "JAYWALKING", HasCategory: true}, []string{FeatureCategory})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if int(vec[0]) != enc.Categories.Encode(domain.CategoryOther) {
		t.Errorf("unknown category encoded as %v, want OTHER bucket %d",
			vec[0], enc.Categories.Encode(domain.CategoryOther))
	}
}

func TestEncodeClipsHour(t *testing.T) {
	enc := Fit(testDataset())

	tests := []struct {
		hour int
		want float64
	}{
		{-3, 0},
		{0, 0},
		{23, 23},
		{27, 23},
	}
	for _, tc := range tests {
		vec, err := enc.Encode(Record{Hour: tc.hour, HasVictimAge: true}, []string{FeatureHour})
		if err != nil {
			t.Fatalf("encode failed for hour %d: %v", tc.hour, err)
		}
		if vec[0] != tc.want {
			t.Errorf("hour %d encoded as %v, want %v", tc.hour, vec[0], tc.want)
		}
	}
}

func TestCategoryMappingStable(t *testing.T) {
	ds := testDataset()
	a := FitCategories(ds)

	// Reversing row order must not change the fitted mapping.
	rev := &domain.Dataset{Columns: ds.Columns}
	for i := len(ds.Incidents) - 1; i >= 0; i-- {
		rev.Incidents = append(rev.Incidents, ds.Incidents[i])
	}
	b := FitCategories(rev)

	if len(a.Classes) != len(b.Classes) {
		t.Fatalf("class counts differ: %d vs %d", len(a.Classes), len(b.Classes))
	}
	for label, code := range a.Mapping {
		if b.Mapping[label] != code {
			t.Errorf("label %s: code %d vs %d", label, code, b.Mapping[label])
		}
	}
}

func TestEncodeDatasetLabels(t *testing.T) {
	ds := testDataset()
	enc := Fit(ds)
	order := FeatureOrder(ds)

	x, y, err := enc.EncodeDataset(ds, order)
	if err != nil {
		t.Fatalf("encode dataset failed: %v", err)
	}
	if len(x) != len(ds.Incidents) || len(y) != len(ds.Incidents) {
		t.Fatalf("matrix size %d/%d, want %d", len(x), len(y), len(ds.Incidents))
	}
	for i, inc := range ds.Incidents {
		want := 0
		if inc.HighRisk {
			want = 1
		}
		if y[i] != want {
			t.Errorf("row %d label %d, want %d", i, y[i], want)
		}
		if len(x[i]) != len(order) {
			t.Errorf("row %d vector length %d, want %d", i, len(x[i]), len(order))
		}
	}
}
