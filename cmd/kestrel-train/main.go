// Kestrel training pipeline.
//
// Usage:
//   go run cmd/kestrel-train/main.go -csv /path/to/incidents.csv
//   go run cmd/kestrel-train/main.go -synthetic 5000
//
// This tool:
//  1. Loads historical incident data (CSV or generated synthetic data)
//  2. Fits the feature encoder and trains the bagged-tree classifier
//  3. Derives statistical findings with prescriptions
//  4. Persists the model bundle atomically and records the training run
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/bus"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/ingest"
	"github.com/campus-safety/kestrel/internal/model"
	"github.com/campus-safety/kestrel/internal/repository"
	"github.com/campus-safety/kestrel/internal/rules"
)

func main() {
	csvPath := flag.String("csv", "", "Path to incident CSV file (raw or pre-cleaned)")
	synthetic := flag.Int("synthetic", 0, "Generate N synthetic incidents instead of reading a CSV")
	bundlePath := flag.String("bundle", "", "Bundle output path (default from config)")
	tenantID := flag.String("tenant", "default", "Tenant ID to record the run under")
	seed := flag.Int64("seed", 42, "Random seed for splitting and bagging")
	trees := flag.Int("trees", 0, "Number of trees (default from config)")
	skipPersist := flag.Bool("no-db", false, "Skip persisting incidents/findings/run to the repository")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *csvPath == "" && *synthetic <= 0 {
		fmt.Println("Usage: kestrel-train -csv /path/to/incidents.csv | -synthetic 5000")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
	}
	if *bundlePath != "" {
		cfg.Bundle.Path = *bundlePath
	}
	cfg.Training.Seed = *seed
	if *trees > 0 {
		cfg.Training.Trees = *trees
	}

	ctx := context.Background()
	startedAt := time.Now().UTC()

	// 1. Load dataset
	var (
		ds  *domain.Dataset
		err error
	)
	if *csvPath != "" {
		slog.Info("loading incident data", "path", *csvPath)
		ds, err = ingest.LoadCSV(*csvPath)
		if err != nil {
			slog.Error("failed to load CSV", "path", *csvPath, "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("generating synthetic incident data", "count", *synthetic, "seed", *seed)
		ds = ingest.Synthetic(*synthetic, *seed)
	}

	highRisk := 0
	for i := range ds.Incidents {
		if ds.Incidents[i].HighRisk {
			highRisk++
		}
	}
	slog.Info("dataset ready",
		"rows", ds.Len(),
		"high_risk", highRisk,
		"columns", len(ds.Columns),
	)

	// 2. Fit encoder and train classifier
	enc := encoder.Fit(ds)
	order := encoder.FeatureOrder(ds)

	x, y, err := enc.EncodeDataset(ds, order)
	if err != nil {
		slog.Error("failed to encode dataset", "error", err)
		os.Exit(1)
	}

	slog.Info("training classifier",
		"features", len(order),
		"trees", cfg.Training.Trees,
		"folds", cfg.Training.CVFolds,
	)
	forest, metrics, err := model.Train(x, y, cfg.Training)
	if err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}

	// 3. Derive findings
	catalogue := rules.DefaultCatalogue()
	findings := rules.NewDeriver(catalogue).Derive(ds)
	slog.Info("findings derived", "count", len(findings))

	// 4. Persist bundle
	b := &bundle.Bundle{
		Forest:       forest,
		Encoder:      enc,
		FeatureOrder: order,
		Findings:     findings,
		Metrics:      metrics,
		TrainedAt:    time.Now().UTC(),
		Version:      "1.0.0",
	}
	store := bundle.NewStore(cfg.Bundle.Path)
	if err := store.Save(b); err != nil {
		slog.Error("failed to save bundle", "path", cfg.Bundle.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("bundle saved", "path", cfg.Bundle.Path)

	// 5. Record the run
	runID := uuid.New().String()
	run := &domain.TrainingRun{
		ID:           runID,
		TenantID:     *tenantID,
		StartedAt:    startedAt,
		CompletedAt:  time.Now().UTC(),
		DatasetSize:  ds.Len(),
		FeatureOrder: order,
		Metrics:      *metrics,
		BundlePath:   cfg.Bundle.Path,
	}

	if !*skipPersist {
		persistRun(ctx, cfg, *tenantID, ds, findings, run)
	}

	printReport(ds, highRisk, order, metrics, findings, cfg.Bundle.Path)
}

// persistRun saves the incidents, findings, and run record, then announces
// completion on the event bus. Persistence failures are reported but do
// not fail the run; the bundle on disk is the authoritative artifact.
func persistRun(ctx context.Context, cfg *domain.Config, tenantID string, ds *domain.Dataset, findings []domain.Finding, run *domain.TrainingRun) {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to open repository; skipping persistence", "error", err)
		return
	}
	defer repo.Close()

	if err := repo.SaveIncidents(ctx, tenantID, ds.Incidents); err != nil {
		slog.Error("failed to save incidents", "error", err)
	} else {
		slog.Info("incidents persisted", "count", ds.Len())
	}

	if err := repo.SaveFindings(ctx, tenantID, run.ID, findings); err != nil {
		slog.Error("failed to save findings", "error", err)
	}

	if err := repo.SaveTrainingRun(ctx, tenantID, run); err != nil {
		slog.Error("failed to save training run", "error", err)
	} else {
		slog.Info("training run recorded", "run_id", run.ID)
	}

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Warn("failed to open event bus; skipping completion event", "error", err)
		return
	}
	defer busImpl.Close()

	if payload, err := json.Marshal(run); err == nil {
		if err := busImpl.Publish(ctx, tenantID, domain.TopicTrainingCompleted, payload); err != nil {
			slog.Warn("failed to publish training completion", "error", err)
		}
	}
}

func printReport(ds *domain.Dataset, highRisk int, order []string, m *domain.EvaluationMetrics, findings []domain.Finding, bundlePath string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║        KESTREL TRAINING REPORT            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")

	fmt.Printf("\n  DATASET\n")
	fmt.Printf("    Incidents:      %d\n", ds.Len())
	fmt.Printf("    High risk:      %d (%.1f%%)\n", highRisk, 100*float64(highRisk)/float64(ds.Len()))
	fmt.Printf("    Features:       %s\n", strings.Join(order, ", "))

	fmt.Printf("\n  EVALUATION (held-out %d rows)\n", m.TestSize)
	fmt.Printf("    ROC-AUC:        %.4f\n", m.ROCAUC)
	fmt.Printf("    CV accuracy:    %.4f ± %.4f\n", m.CVMean, m.CVStd)
	fmt.Printf("    Confusion:      TP=%d FP=%d TN=%d FN=%d\n",
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives)

	fmt.Printf("\n  FINDINGS (%d)\n", len(findings))
	for _, f := range findings {
		fmt.Printf("    [%s] %s\n", f.Priority, f.Finding)
		for _, p := range f.Prescriptions {
			fmt.Printf("        - %s\n", p)
		}
	}

	fmt.Printf("\n  Bundle written to %s\n", bundlePath)
	fmt.Println("  Reload a running server with: POST /v1/bundle/reload")
	fmt.Println()
}
