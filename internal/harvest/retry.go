package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/metrics"
)

// maxUpsertAttempts bounds how often a single document write is retried.
// Attempts are blind: the wrapper does not distinguish transient from
// permanent failures, so a permanently-invalid document burns every attempt.
const maxUpsertAttempts = 10

// Retrier re-executes idempotent index writes until one succeeds or the
// attempt budget is exhausted. There is no backoff between attempts.
type Retrier struct {
	maxAttempts int
	logger      *zap.Logger
}

// NewRetrier builds a Retrier with the standard attempt budget.
func NewRetrier(logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{maxAttempts: maxUpsertAttempts, logger: logger}
}

// Upsert runs op up to the attempt budget, stopping at the first success.
// Each failed attempt is logged with enough context for manual replay.
// Returns false only after all attempts are exhausted.
func (r *Retrier) Upsert(ctx context.Context, docID, permalink string, op func(context.Context) error) bool {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			metrics.ObserveUpsertAttempt("ok")
			return true
		}
		metrics.ObserveUpsertAttempt("error")
		r.logger.Warn("upsert attempt failed",
			zap.String("doc_id", docID),
			zap.String("permalink", permalink),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		)
	}
	r.logger.Error("upsert retries exhausted",
		zap.String("doc_id", docID),
		zap.String("permalink", permalink),
		zap.Int("attempts", r.maxAttempts),
	)
	return false
}
