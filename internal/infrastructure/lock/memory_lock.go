package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

// MemoryLock guards generation batches inside a single process. A hold lives
// until its owner releases it; the ttl only matters for shared backends.
type MemoryLock struct {
	mu    sync.Mutex
	holds map[string]string
}

var _ ports.GenerationLock = (*MemoryLock)(nil)

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		holds: make(map[string]string),
	}
}

func (l *MemoryLock) TryAcquire(ctx context.Context, rfqID string, owner string, _ time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}
	key := strings.TrimSpace(rfqID)
	if key == "" || strings.TrimSpace(owner) == "" {
		return false, errors.New("rfq id and owner are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, ok := l.holds[key]; ok && holder != owner {
		return false, nil
	}
	l.holds[key] = owner
	return true, nil
}

func (l *MemoryLock) Refresh(ctx context.Context, rfqID string, owner string, _ time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holder, ok := l.holds[strings.TrimSpace(rfqID)]
	return ok && holder == owner, nil
}

func (l *MemoryLock) Release(ctx context.Context, rfqID string, owner string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.TrimSpace(rfqID)
	if holder, ok := l.holds[key]; ok && holder == owner {
		delete(l.holds, key)
	}
	return nil
}
