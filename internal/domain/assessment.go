package domain

import (
	"time"
)

// Tier is the discretization of the classifier probability used to select
// a recommendation strategy.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierModerate Tier = "MODERATE"
	TierHigh     Tier = "HIGH"
)

// Tier probability thresholds. Both comparisons are strict: exactly 0.6
// is MODERATE, exactly 0.3 is MODERATE.
const (
	TierHighThreshold     = 0.6
	TierModerateThreshold = 0.3
)

// TierFor buckets a positive-class probability into a tier.
func TierFor(probability float64) Tier {
	switch {
	case probability > TierHighThreshold:
		return TierHigh
	case probability > TierModerateThreshold:
		return TierModerate
	default:
		return TierLow
	}
}

// DefaultVictimAge is used when a live query omits victim age.
const DefaultVictimAge = 20

// Query is one live assessment context. Hour outside [0,23] is clipped by
// the encoder, not rejected.
type Query struct {
	Hour      int     `json:"hour"`
	IsWeekend bool    `json:"isWeekend"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	VictimAge float64 `json:"victimAge"`
}

// Assessment is the risk report produced for a single query.
type Assessment struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Query Query `json:"query"`

	Probability     float64  `json:"probability"`
	Tier            Tier     `json:"tier"`
	Recommendations []string `json:"recommendations"`

	Timestamp time.Time          `json:"timestamp"`
	Metadata  AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata carries processing information for observability.
type AssessmentMetadata struct {
	TraceID       string `json:"traceId"`
	EncodeMs      int64  `json:"encodeMs"`
	ScoreMs       int64  `json:"scoreMs"`
	TotalMs       int64  `json:"totalMs"`
	CacheHit      bool   `json:"cacheHit,omitempty"`
	EngineVersion string `json:"engineVersion"`
}

// EvaluationMetrics are the held-out metrics of a trained classifier,
// exposed to the presentation layer as-is.
type EvaluationMetrics struct {
	ROCAUC float64 `json:"rocAuc"`
	CVMean float64 `json:"cvMean"`
	CVStd  float64 `json:"cvStd"`

	// Confusion-matrix counts on the held-out partition at 0.5.
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	TrainSize int `json:"trainSize"`
	TestSize  int `json:"testSize"`
}

// TrainingRun records one complete pipeline run: dataset size, the feature
// order the bundle was trained with, and the held-out metrics.
type TrainingRun struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenantId"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  time.Time         `json:"completedAt"`
	DatasetSize  int               `json:"datasetSize"`
	FeatureOrder []string          `json:"featureOrder"`
	Metrics      EvaluationMetrics `json:"metrics"`
	BundlePath   string            `json:"bundlePath"`
}
