// Package worker provides async incident persistence from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-safety/kestrel/internal/domain"
)

// Worker consumes ingested incident batches from the EventBus and
// persists them, decoupling ingestion from the request path.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicIncidentIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicIncidentIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicIncidentIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// IncidentBatchMessage is the payload of an ingested incident batch.
type IncidentBatchMessage struct {
	TenantID  string            `json:"tenantId"`
	TraceID   string            `json:"traceId"`
	Source    string            `json:"source,omitempty"`
	Incidents []domain.Incident `json:"incidents"`
}

// processBatch persists one ingested incident batch.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batch IncidentBatchMessage
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse incident batch",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batch.TenantID != "" {
		tenantID = batch.TenantID
	}

	traceID := batch.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	if len(batch.Incidents) == 0 {
		slog.Debug("empty incident batch",
			"tenant_id", tenantID,
			"trace_id", traceID,
		)
		return nil
	}

	if w.repo != nil {
		if err := w.repo.SaveIncidents(ctx, tenantID, batch.Incidents); err != nil {
			slog.Error("failed to save incident batch",
				"tenant_id", tenantID,
				"trace_id", traceID,
				"count", len(batch.Incidents),
				"error", err,
			)
			return err
		}
	}

	slog.Info("incident batch persisted",
		"tenant_id", tenantID,
		"trace_id", traceID,
		"count", len(batch.Incidents),
		"source", batch.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
