package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/inference"
	"github.com/campus-safety/kestrel/internal/worker"
)

// assessmentTTL bounds how long a cached assessment is served before the
// query is scored again.
const assessmentTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *inference.Engine
	store   *bundle.Store
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *inference.Engine, store *bundle.Store, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		store:   store,
		version: version,
	}
}

// AssessRequest is the request body for POST /v1/assess.
type AssessRequest struct {
	Hour      int     `json:"hour"`
	IsWeekend bool    `json:"isWeekend"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	VictimAge float64 `json:"victimAge"`
}

// Assess handles POST /v1/assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	query := domain.Query{
		Hour:      req.Hour,
		IsWeekend: req.IsWeekend,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		VictimAge: req.VictimAge,
	}

	// Per-tenant assessment-rate accounting
	if h.cache != nil {
		if _, err := h.cache.IncrementCounter(ctx, tenantID, "assessments", time.Hour); err != nil {
			slog.Warn("failed to increment assessment counter", "error", err)
		}
	}

	// Identical query contexts within the TTL are served from cache
	cacheKey := assessCacheKey(query)
	if h.cache != nil {
		if data, err := h.cache.Get(ctx, tenantID, cacheKey); err == nil && data != nil {
			var cached domain.Assessment
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.Metadata.CacheHit = true
				cached.Metadata.TraceID = traceID
				writeJSON(w, http.StatusOK, &cached)
				return
			}
		}
	}

	assessment, err := h.engine.Assess(ctx, tenantID, query)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQueryInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, domain.ErrBundleMissing):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "no model bundle loaded; run training first",
			})
		default:
			slog.Error("assessment failed", "tenant_id", tenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "assessment failed",
			})
		}
		return
	}

	if assessment.Metadata.TraceID == "" {
		assessment.Metadata.TraceID = traceID
	}

	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment", "id", assessment.ID, "error", err)
		}
	}

	if h.cache != nil {
		if data, err := json.Marshal(assessment); err == nil {
			if err := h.cache.Set(ctx, tenantID, cacheKey, data, assessmentTTL); err != nil {
				slog.Warn("failed to cache assessment", "error", err)
			}
		}
	}

	if h.bus != nil {
		if data, err := json.Marshal(assessment); err == nil {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, data); err != nil {
				slog.Warn("failed to publish assessment event", "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	assessment, err := h.repo.GetAssessment(ctx, tenantID, assessmentID)
	if err != nil {
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// IngestRequest is the request body for POST /v1/incidents.
type IngestRequest struct {
	Source    string            `json:"source,omitempty"`
	Incidents []domain.Incident `json:"incidents"`
}

// IngestIncidents accepts a batch of historical incidents for async
// persistence via the event bus. Severity and the high-risk label are
// always re-derived from the category, never trusted from the payload.
func (h *Handler) IngestIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Incidents) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "incidents must not be empty",
		})
		return
	}

	now := time.Now().UTC()
	for i := range req.Incidents {
		inc := &req.Incidents[i]
		if inc.ID == "" {
			inc.ID = uuid.New().String()
		}
		if inc.Category == "" {
			inc.Category = domain.CategoryUnknown
		}
		inc.Severity = domain.SeverityFor(inc.Category)
		inc.HighRisk = inc.Severity >= domain.HighRiskSeverity
		if inc.CreatedAt.IsZero() {
			inc.CreatedAt = now
		}
	}

	if h.bus != nil {
		batch := worker.IncidentBatchMessage{
			TenantID:  tenantID,
			TraceID:   traceID,
			Source:    req.Source,
			Incidents: req.Incidents,
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to encode incident batch",
			})
			return
		}
		if err := h.bus.Publish(ctx, tenantID, domain.TopicIncidentIngested, payload); err != nil {
			slog.Error("failed to publish incident batch", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to enqueue incidents",
			})
			return
		}
	} else if h.repo != nil {
		if err := h.repo.SaveIncidents(ctx, tenantID, req.Incidents); err != nil {
			slog.Error("failed to save incidents", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save incidents",
			})
			return
		}
	} else {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no ingestion backend available",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": len(req.Incidents),
		"traceId":  traceID,
	})
}

// ListFindings returns the derived findings from the latest training run.
// Falls back to the findings embedded in the loaded bundle when nothing
// has been persisted yet.
func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var findings []domain.Finding

	if h.repo != nil {
		persisted, err := h.repo.ListFindings(ctx, tenantID)
		if err != nil {
			slog.Error("failed to list findings", "tenant_id", tenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list findings",
			})
			return
		}
		findings = persisted
	}

	if len(findings) == 0 {
		if b := h.engine.Bundle(); b != nil {
			findings = b.Findings
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"findings": findings,
		"count":    len(findings),
	})
}

// ModelMetrics returns the held-out evaluation metrics of the active
// model, preferring the persisted training-run record over the bundle.
func (h *Handler) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo != nil {
		run, err := h.repo.GetLatestTrainingRun(ctx, tenantID)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"metrics":      run.Metrics,
				"featureOrder": run.FeatureOrder,
				"datasetSize":  run.DatasetSize,
				"completedAt":  run.CompletedAt,
				"runId":        run.ID,
			})
			return
		}
	}

	if b := h.engine.Bundle(); b != nil && b.Metrics != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"metrics":      b.Metrics,
			"featureOrder": b.FeatureOrder,
			"trainedAt":    b.TrainedAt,
			"version":      b.Version,
		})
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "no trained model available",
	})
}

// ReloadBundle reloads the model bundle from disk into the engine.
// This enables picking up a fresh training run without server restart.
func (h *Handler) ReloadBundle(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "bundle store not configured",
		})
		return
	}

	if err := h.engine.LoadFrom(h.store); err != nil {
		if errors.Is(err, domain.ErrBundleMissing) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no bundle found at " + h.store.Path(),
			})
			return
		}
		slog.Error("failed to reload bundle", "path", h.store.Path(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload bundle",
		})
		return
	}

	b := h.engine.Bundle()
	slog.Info("bundle reloaded", "path", h.store.Path(), "trained_at", b.TrainedAt)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "bundle reloaded successfully",
		"trainedAt": b.TrainedAt,
		"version":   b.Version,
		"features":  len(b.FeatureOrder),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	bundleState := "missing"
	if h.engine != nil && h.engine.Bundle() != nil {
		bundleState = "loaded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"bundle":  bundleState,
	})
}

// Ready returns whether the server is ready to serve assessments, which
// requires a loaded model bundle.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || h.engine.Bundle() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready":  "false",
			"reason": "no model bundle loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// assessCacheKey quantizes a query context into a stable cache key.
// Coordinates are rounded to four decimals so nearby repeat queries share
// an entry.
func assessCacheKey(q domain.Query) string {
	return fmt.Sprintf("assess:%d:%t:%.4f:%.4f:%d",
		q.Hour, q.IsWeekend, q.Latitude, q.Longitude, int(q.VictimAge))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
