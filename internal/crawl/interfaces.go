package crawl

import (
	"context"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Prober fetches and parses the item page for one id.
type Prober interface {
	Probe(ctx context.Context, id int) catalog.ProbeResult
}

// BoundEstimator guesses the upper end of the populated id range.
type BoundEstimator interface {
	EstimateUpperBound(ctx context.Context, startID int, known *catalog.Table) (int, error)
}

// Checkpointer persists the full record set. It reports failures in the
// result and never panics.
type Checkpointer interface {
	Persist(ctx context.Context, records []catalog.Record) catalog.PersistResult
}

// RetryPolicy decides whether a failed fetch is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
