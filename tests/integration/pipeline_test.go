//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel risk
// assessment pipeline.
//
// These tests exercise the COMPLETE pipeline in-process:
//
//	Ingest → Encode → Train → Derive findings → Bundle → Serve → Assess
//
// Run with: go test -tags=integration -v ./tests/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campus-safety/kestrel/internal/api"
	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/bus"
	"github.com/campus-safety/kestrel/internal/cache"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/inference"
	"github.com/campus-safety/kestrel/internal/ingest"
	"github.com/campus-safety/kestrel/internal/model"
	"github.com/campus-safety/kestrel/internal/repository"
	"github.com/campus-safety/kestrel/internal/rules"
	"github.com/campus-safety/kestrel/internal/worker"
)

const testTenant = "integration-tenant"

// testStack is the fully wired Community-tier deployment used by the
// end-to-end tests.
type testStack struct {
	server *api.Server
	repo   domain.Repository
	store  *bundle.Store
	run    *domain.TrainingRun
}

// buildStack runs the full training pipeline on synthetic data and wires
// a complete server around the resulting bundle.
func buildStack(t *testing.T) *testStack {
	t.Helper()

	ctx := context.Background()

	// 1. Ingest
	ds := ingest.Synthetic(2000, 7)
	if ds.Len() != 2000 {
		t.Fatalf("expected 2000 synthetic incidents, got %d", ds.Len())
	}

	// 2. Encode
	enc := encoder.Fit(ds)
	order := encoder.FeatureOrder(ds)
	x, y, err := enc.EncodeDataset(ds, order)
	if err != nil {
		t.Fatalf("EncodeDataset failed: %v", err)
	}

	// 3. Train (small forest keeps the test fast)
	cfg := domain.TrainingConfig{
		Trees:        40,
		MaxDepth:     8,
		MinLeaf:      5,
		TestFraction: 0.2,
		CVFolds:      3,
		Seed:         7,
	}
	forest, metrics, err := model.Train(x, y, cfg)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// 4. Derive findings
	catalogue := rules.DefaultCatalogue()
	findings := rules.NewDeriver(catalogue).Derive(ds)

	// 5. Persist the bundle
	store := bundle.NewStore(filepath.Join(t.TempDir(), "bundle.gob"))
	b := &bundle.Bundle{
		Forest:       forest,
		Encoder:      enc,
		FeatureOrder: order,
		Findings:     findings,
		Metrics:      metrics,
		TrainedAt:    time.Now().UTC(),
		Version:      "test",
	}
	if err := store.Save(b); err != nil {
		t.Fatalf("bundle Save failed: %v", err)
	}

	// 6. Wire the Community-tier stack
	tmpFile, err := os.CreateTemp("", "kestrel-integration-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	dbPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: dbPath,
	})
	if err != nil {
		t.Fatalf("repository.New failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	run := &domain.TrainingRun{
		ID:           uuid.New().String(),
		TenantID:     testTenant,
		StartedAt:    time.Now().UTC().Add(-time.Second),
		CompletedAt:  time.Now().UTC(),
		DatasetSize:  ds.Len(),
		FeatureOrder: order,
		Metrics:      *metrics,
		BundlePath:   store.Path(),
	}
	if err := repo.SaveIncidents(ctx, testTenant, ds.Incidents); err != nil {
		t.Fatalf("SaveIncidents failed: %v", err)
	}
	if err := repo.SaveFindings(ctx, testTenant, run.ID, findings); err != nil {
		t.Fatalf("SaveFindings failed: %v", err)
	}
	if err := repo.SaveTrainingRun(ctx, testTenant, run); err != nil {
		t.Fatalf("SaveTrainingRun failed: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	w := worker.NewWorker(eventBus, repo)
	if err := w.Start(worker.Config{TenantIDs: []string{testTenant}}); err != nil {
		t.Fatalf("worker Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	c := cache.NewLRUCache(1000)
	t.Cleanup(func() { c.Close() })

	triggers, err := rules.NewTriggerSet()
	if err != nil {
		t.Fatalf("NewTriggerSet failed: %v", err)
	}
	engine := inference.NewEngine(catalogue, triggers)
	if err := engine.LoadFrom(store); err != nil {
		t.Fatalf("engine LoadFrom failed: %v", err)
	}

	serverCfg := domain.ServerConfig{Host: "localhost", Port: 0, ReadTimeout: 30, WriteTimeout: 30}
	srv := api.NewServer(serverCfg, repo, c, eventBus, engine, store, "integration")

	return &testStack{server: srv, repo: repo, store: store, run: run}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", testTenant)

	rr := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rr, req)
	return rr
}

func TestFullPipeline(t *testing.T) {
	stack := buildStack(t)

	var nightProb, dayProb float64

	t.Run("NightWeekendAssessment", func(t *testing.T) {
		rr := stack.do(t, http.MethodPost, "/v1/assess", api.AssessRequest{
			Hour:      23,
			IsWeekend: true,
			Latitude:  34.0689,
			Longitude: -118.4452,
			VictimAge: 19,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var a domain.Assessment
		if err := json.Unmarshal(rr.Body.Bytes(), &a); err != nil {
			t.Fatalf("failed to parse assessment: %v", err)
		}
		nightProb = a.Probability

		if a.Probability < 0 || a.Probability > 1 {
			t.Errorf("probability out of range: %v", a.Probability)
		}
		if a.Tier != domain.TierFor(a.Probability) {
			t.Errorf("tier %s does not match probability %v", a.Tier, a.Probability)
		}
		if len(a.Recommendations) == 0 {
			t.Error("expected at least one recommendation")
		}
		if a.Metadata.EngineVersion == "" {
			t.Error("expected engine version in metadata")
		}
	})

	t.Run("WeekdayMorningAssessment", func(t *testing.T) {
		rr := stack.do(t, http.MethodPost, "/v1/assess", api.AssessRequest{
			Hour:      10,
			VictimAge: 35,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var a domain.Assessment
		json.Unmarshal(rr.Body.Bytes(), &a)
		dayProb = a.Probability

		if len(a.Recommendations) == 0 {
			t.Error("expected recommendations even for low tiers")
		}
	})

	// The synthetic generator pushes severe incidents toward evening
	// hours, so a trained model must rank the late-night context riskier.
	t.Run("NightRanksAboveDay", func(t *testing.T) {
		if nightProb <= dayProb {
			t.Errorf("expected night probability (%v) > day probability (%v)", nightProb, dayProb)
		}
	})

	t.Run("AssessmentHistory", func(t *testing.T) {
		rr := stack.do(t, http.MethodPost, "/v1/assess", api.AssessRequest{Hour: 15, VictimAge: 28})
		if rr.Code != http.StatusOK {
			t.Fatalf("assess failed: %d", rr.Code)
		}
		var created domain.Assessment
		json.Unmarshal(rr.Body.Bytes(), &created)

		get := stack.do(t, http.MethodGet, "/v1/assessments/"+created.ID, nil)
		if get.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", get.Code, get.Body.String())
		}

		var fetched domain.Assessment
		json.Unmarshal(get.Body.Bytes(), &fetched)
		if fetched.ID != created.ID || fetched.Probability != created.Probability {
			t.Errorf("persisted assessment diverges: %+v vs %+v", fetched, created)
		}
	})

	t.Run("ModelMetrics", func(t *testing.T) {
		rr := stack.do(t, http.MethodGet, "/v1/model/metrics", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Metrics domain.EvaluationMetrics `json:"metrics"`
			RunID   string                   `json:"runId"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.RunID != stack.run.ID {
			t.Errorf("expected run id %s, got %s", stack.run.ID, resp.RunID)
		}
		// A model trained on hour-skewed labels must beat random ranking
		if resp.Metrics.ROCAUC <= 0.5 {
			t.Errorf("expected ROC-AUC above 0.5, got %v", resp.Metrics.ROCAUC)
		}
		if resp.Metrics.TrainSize+resp.Metrics.TestSize != 2000 {
			t.Errorf("split sizes do not sum to dataset: %d + %d",
				resp.Metrics.TrainSize, resp.Metrics.TestSize)
		}
	})

	t.Run("Findings", func(t *testing.T) {
		rr := stack.do(t, http.MethodGet, "/v1/findings", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Findings []domain.Finding `json:"findings"`
			Count    int              `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count == 0 {
			t.Fatal("expected derived findings for the synthetic dataset")
		}
		for _, f := range resp.Findings {
			if f.Priority != domain.PriorityHigh && f.Priority != domain.PriorityMedium {
				t.Errorf("unexpected priority %q", f.Priority)
			}
			if len(f.Prescriptions) == 0 {
				t.Errorf("finding %q has no prescriptions", f.Finding)
			}
		}
	})

	t.Run("IncidentIngestionViaWorker", func(t *testing.T) {
		before, err := stack.repo.CountIncidents(context.Background(), testTenant)
		if err != nil {
			t.Fatalf("CountIncidents failed: %v", err)
		}

		rr := stack.do(t, http.MethodPost, "/v1/incidents", api.IngestRequest{
			Source: "integration",
			Incidents: []domain.Incident{
				{Hour: 22, IsWeekend: true, Category: domain.CategoryTheft, VictimAge: 21},
				{Hour: 8, Category: domain.CategoryVandalism, VictimAge: 30},
			},
		})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		// The worker persists asynchronously
		deadline := time.Now().Add(2 * time.Second)
		for {
			after, err := stack.repo.CountIncidents(context.Background(), testTenant)
			if err != nil {
				t.Fatalf("CountIncidents failed: %v", err)
			}
			if after == before+2 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("expected %d incidents, got %d", before+2, after)
			}
			time.Sleep(20 * time.Millisecond)
		}
	})

	t.Run("BundleReload", func(t *testing.T) {
		rr := stack.do(t, http.MethodPost, "/v1/bundle/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		// Assessments keep working after the swap
		assess := stack.do(t, http.MethodPost, "/v1/assess", api.AssessRequest{Hour: 23, IsWeekend: true, VictimAge: 20})
		if assess.Code != http.StatusOK {
			t.Errorf("assess after reload failed: %d", assess.Code)
		}
	})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		stack.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" || resp["bundle"] != "loaded" {
			t.Errorf("unexpected health payload: %v", resp)
		}
	})
}

func TestAssessRequiresTenant(t *testing.T) {
	stack := buildStack(t)

	data, _ := json.Marshal(api.AssessRequest{Hour: 12})
	req := httptest.NewRequest(http.MethodPost, "/v1/assess", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	// NO X-Tenant-ID header!

	rr := httptest.NewRecorder()
	stack.server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing tenant, got %d", rr.Code)
	}
}
