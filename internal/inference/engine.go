// Package inference serves live risk assessments from a loaded model
// bundle.
package inference

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/encoder"
	"github.com/campus-safety/kestrel/internal/rules"
)

// EngineVersion is stamped into assessment metadata.
const EngineVersion = "1.0.0"

// Messages returned for queries that do not reach the high tier.
var routineRecommendations = []string{
	"Routine patrols sufficient.",
	"Maintain standard 'See Something, Say Something' visibility.",
}

// Engine scores queries against the active bundle and assembles the
// recommendation list. The bundle is swappable at runtime under a
// read-write lock so reloads never race in-flight assessments.
type Engine struct {
	mu        sync.RWMutex
	bundle    *bundle.Bundle
	catalogue *rules.Catalogue
	triggers  *rules.TriggerSet
}

// NewEngine creates an engine with no bundle loaded. Assessments fail
// with ErrBundleMissing until SetBundle or LoadFrom succeeds.
func NewEngine(catalogue *rules.Catalogue, triggers *rules.TriggerSet) *Engine {
	return &Engine{catalogue: catalogue, triggers: triggers}
}

// SetBundle swaps the active bundle.
func (e *Engine) SetBundle(b *bundle.Bundle) {
	e.mu.Lock()
	e.bundle = b
	e.mu.Unlock()
}

// LoadFrom loads and activates the bundle at the store's path.
func (e *Engine) LoadFrom(store *bundle.Store) error {
	b, err := store.Load()
	if err != nil {
		return err
	}
	e.SetBundle(b)
	return nil
}

// Bundle returns the active bundle, or nil when none is loaded.
func (e *Engine) Bundle() *bundle.Bundle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bundle
}

// Assess scores one query and assembles its risk report.
func (e *Engine) Assess(ctx context.Context, tenantID string, q domain.Query) (*domain.Assessment, error) {
	start := time.Now()

	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if q.VictimAge <= 0 {
		q.VictimAge = domain.DefaultVictimAge
	}

	e.mu.RLock()
	b := e.bundle
	e.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("%w: no bundle loaded", domain.ErrBundleMissing)
	}

	encodeStart := time.Now()
	vec, err := b.Encoder.Encode(encoder.RecordFromQuery(q), b.FeatureOrder)
	if err != nil {
		return nil, err
	}
	encodeMs := time.Since(encodeStart).Milliseconds()

	scoreStart := time.Now()
	prob := b.Forest.PredictProba(vec)
	scoreMs := time.Since(scoreStart).Milliseconds()

	tier := domain.TierFor(prob)

	assessment := &domain.Assessment{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		Query:           q,
		Probability:     prob,
		Tier:            tier,
		Recommendations: e.recommend(tier, q),
		Timestamp:       time.Now().UTC(),
		Metadata: domain.AssessmentMetadata{
			TraceID:       traceIDFrom(ctx),
			EncodeMs:      encodeMs,
			ScoreMs:       scoreMs,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
	return assessment, nil
}

// recommend assembles the action list for a tier. High-tier reports blend
// the night-window prescriptions (when the trigger fires) with the top
// theft and assault interventions; everything below high gets the routine
// guidance.
func (e *Engine) recommend(tier domain.Tier, q domain.Query) []string {
	if tier != domain.TierHigh {
		out := make([]string, len(routineRecommendations))
		copy(out, routineRecommendations)
		return out
	}

	var out []string
	if e.triggers.Fires(domain.TagNight, q.Hour, q.IsWeekend) {
		out = append(out, e.catalogue.Prescriptions(domain.TagNight)...)
	}
	out = append(out, head(e.catalogue.Prescriptions(domain.CategoryTheft), 2)...)
	out = append(out, head(e.catalogue.Prescriptions(domain.CategoryAssault), 1)...)
	return out
}

// validateQuery rejects non-finite numeric inputs. Out-of-range hours are
// not an error; the encoder clips them.
func validateQuery(q domain.Query) error {
	for name, v := range map[string]float64{
		"latitude":  q.Latitude,
		"longitude": q.Longitude,
		"victimAge": q.VictimAge,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", domain.ErrInvalidQueryInput, name)
		}
	}
	return nil
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func head(s []string, n int) []string {
	if len(s) < n {
		n = len(s)
	}
	return s[:n]
}
