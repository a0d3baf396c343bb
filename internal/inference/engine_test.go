package inference

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/model"
	"github.com/campus-safety/kestrel/internal/rules"
)

// constantBundle builds a bundle whose forest always reports the given
// probability, so tier boundaries can be probed exactly.
func constantBundle(prob float64) *bundle.Bundle {
	return &bundle.Bundle{
		Forest: &model.Forest{
			Trees:       []model.Tree{{Nodes: []model.Node{{Leaf: true, Prob: prob}}}},
			NumFeatures: 3,
		},
		Encoder: &encoder.Encoder{
			Categories: &encoder.CategoryEncoder{
				Classes: []string{domain.CategoryOther},
				Mapping: map[string]int{domain.CategoryOther: 0},
			},
			AgeMedian: 21,
		},
		FeatureOrder: []string{
			encoder.FeatureHourSin, encoder.FeatureHourCos, encoder.FeatureIsWeekend,
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	triggers, err := rules.NewTriggerSet()
	if err != nil {
		t.Fatalf("failed to build triggers: %v", err)
	}
	return NewEngine(rules.DefaultCatalogue(), triggers)
}

func TestAssessWithoutBundle(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 12})
	if !errors.Is(err, domain.ErrBundleMissing) {
		t.Errorf("expected ErrBundleMissing, got %v", err)
	}
}

func TestAssessTierBoundaries(t *testing.T) {
	tests := []struct {
		prob float64
		want domain.Tier
	}{
		{0.61, domain.TierHigh},
		{0.6, domain.TierModerate}, // strict comparison at the boundary
		{0.31, domain.TierModerate},
		{0.3, domain.TierLow},
		{0.05, domain.TierLow},
	}

	e := newTestEngine(t)
	for _, tc := range tests {
		e.SetBundle(constantBundle(tc.prob))
		a, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 12})
		if err != nil {
			t.Fatalf("assess failed at prob %v: %v", tc.prob, err)
		}
		if a.Tier != tc.want {
			t.Errorf("prob %v: tier = %q, want %q", tc.prob, a.Tier, tc.want)
		}
		if a.Probability != tc.prob {
			t.Errorf("prob %v: reported probability %v", tc.prob, a.Probability)
		}
	}
}

func TestAssessHighTierNightRecommendations(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.9))

	a, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 23, IsWeekend: true})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}

	// Night prescriptions first, then 2 theft, then 1 assault.
	if len(a.Recommendations) != 6 {
		t.Fatalf("got %d recommendations, want 6: %v", len(a.Recommendations), a.Recommendations)
	}
	if !strings.Contains(a.Recommendations[0], "patrols between 8 PM - 2 AM") {
		t.Errorf("first recommendation = %q, want the night patrol entry", a.Recommendations[0])
	}
	if !strings.Contains(a.Recommendations[3], "CCTV") {
		t.Errorf("fourth recommendation = %q, want the top theft entry", a.Recommendations[3])
	}
	if !strings.Contains(a.Recommendations[5], "emergency call points") &&
		!strings.Contains(a.Recommendations[5], "Install emergency") {
		t.Errorf("last recommendation = %q, want the top assault entry", a.Recommendations[5])
	}
}

func TestAssessHighTierDaytimeSkipsNightEntries(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.9))

	a, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 10})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if len(a.Recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3 without the night block: %v",
			len(a.Recommendations), a.Recommendations)
	}
}

func TestAssessLowTierRoutineGuidance(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.1))

	a, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 10})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if len(a.Recommendations) != 2 || a.Recommendations[0] != "Routine patrols sufficient." {
		t.Errorf("recommendations = %v, want the routine guidance", a.Recommendations)
	}
}

func TestAssessRejectsNonFiniteInput(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.5))

	bad := []domain.Query{
		{Hour: 10, Latitude: math.NaN()},
		{Hour: 10, Longitude: math.Inf(1)},
		{Hour: 10, VictimAge: math.Inf(-1)},
	}
	for _, q := range bad {
		if _, err := e.Assess(context.Background(), "t1", q); !errors.Is(err, domain.ErrInvalidQueryInput) {
			t.Errorf("query %+v: expected ErrInvalidQueryInput, got %v", q, err)
		}
	}
}

func TestAssessDefaultsVictimAge(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.5))

	a, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 10})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if a.Query.VictimAge != domain.DefaultVictimAge {
		t.Errorf("victim age = %v, want default %d", a.Query.VictimAge, domain.DefaultVictimAge)
	}
}

func TestAssessClipsOutOfRangeHour(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.5))

	if _, err := e.Assess(context.Background(), "t1", domain.Query{Hour: 30}); err != nil {
		t.Errorf("out-of-range hour should be clipped, got error: %v", err)
	}
}

func TestAssessMetadataPopulated(t *testing.T) {
	e := newTestEngine(t)
	e.SetBundle(constantBundle(0.5))

	a, err := e.Assess(context.Background(), "tenant-9", domain.Query{Hour: 10})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if a.ID == "" {
		t.Error("assessment ID not set")
	}
	if a.TenantID != "tenant-9" {
		t.Errorf("tenant = %q", a.TenantID)
	}
	if a.Metadata.EngineVersion != EngineVersion {
		t.Errorf("engine version = %q", a.Metadata.EngineVersion)
	}
}
