package domain

import "errors"

// Failure taxonomy. Training-time failures abort the pipeline; per-query
// failures are reported to the caller and the engine keeps serving.
var (
	// ErrSchemaMismatch means the encoder was asked to produce a feature
	// it does not know how to derive. Fatal for the run.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrInsufficientLabelDiversity means the target column has fewer
	// than two distinct values. Raised before any fitting attempt.
	ErrInsufficientLabelDiversity = errors.New("target has fewer than two classes")

	// ErrBundleMissing means inference was attempted with no persisted
	// model bundle. The caller must run training first; there is no retry.
	ErrBundleMissing = errors.New("model bundle not available")

	// ErrInvalidQueryInput means a live query carried a non-finite or
	// otherwise unusable scalar. The query is skipped; the engine is fine.
	ErrInvalidQueryInput = errors.New("invalid query input")
)
