package ports

import (
	"context"
	"time"
)

// GenerationLock is the per-RFQ in-flight guard for generation batches.
// TryAcquire never blocks: it returns false when another owner holds an
// unexpired lock. Refresh extends the owner's hold by ttl and reports false
// when the hold was lost. Release only succeeds for the current owner.
type GenerationLock interface {
	TryAcquire(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, rfqID string, owner string) error
}
