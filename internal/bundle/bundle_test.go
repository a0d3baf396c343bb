package bundle

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/model"
)

func testBundle() *Bundle {
	return &Bundle{
		Forest: &model.Forest{
			Trees: []model.Tree{
				{Nodes: []model.Node{{Leaf: true, Prob: 0.75}}},
			},
			NumFeatures: 2,
		},
		Encoder: &encoder.Encoder{
			Categories: &encoder.CategoryEncoder{
				Classes: []string{domain.CategoryOther, domain.CategoryTheft},
				Mapping: map[string]int{domain.CategoryOther: 0, domain.CategoryTheft: 1},
			},
			AgeMedian: 21,
		},
		FeatureOrder: []string{"hour_sin", "hour_cos"},
		Findings: []domain.Finding{
			{Finding: "test finding", Priority: domain.PriorityHigh, Prescriptions: []string{"do something"}},
		},
		Metrics:   &domain.EvaluationMetrics{ROCAUC: 0.91, TrainSize: 80, TestSize: 20},
		TrainedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Version:   "test",
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "bundle.gob"))

	if err := store.Save(testBundle()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got.Forest.PredictProba([]float64{0, 0}) != 0.75 {
		t.Error("forest did not survive the round trip")
	}
	if got.Encoder.AgeMedian != 21 {
		t.Errorf("encoder age median = %v, want 21", got.Encoder.AgeMedian)
	}
	if len(got.FeatureOrder) != 2 || got.FeatureOrder[0] != "hour_sin" {
		t.Errorf("feature order = %v", got.FeatureOrder)
	}
	if len(got.Findings) != 1 || got.Findings[0].Priority != domain.PriorityHigh {
		t.Errorf("findings = %+v", got.Findings)
	}
	if got.Metrics.ROCAUC != 0.91 {
		t.Errorf("metrics ROC-AUC = %v, want 0.91", got.Metrics.ROCAUC)
	}
}

func TestLoadMissingBundle(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.gob"))

	_, err := store.Load()
	if !errors.Is(err, domain.ErrBundleMissing) {
		t.Errorf("expected ErrBundleMissing, got %v", err)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "bundle.gob"))

	first := testBundle()
	if err := store.Save(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := testBundle()
	second.Metrics.ROCAUC = 0.99
	if err := store.Save(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Metrics.ROCAUC != 0.99 {
		t.Errorf("ROC-AUC = %v, want the replacement value 0.99", got.Metrics.ROCAUC)
	}
}
