package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"pdmrelease/internal/infrastructure/persistence/sqlite/model"
	"pdmrelease/internal/ports"
)

func newSQLLock(t *testing.T) *SQLLock {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "lock.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.GenerationLock{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewSQLLock(db)
}

func TestGenerationLocks(t *testing.T) {
	cases := []struct {
		name    string
		expires bool
		lock    func(t *testing.T) (ports.GenerationLock, func(time.Time))
	}{
		{
			name: "memory",
			lock: func(t *testing.T) (ports.GenerationLock, func(time.Time)) {
				return NewMemoryLock(), func(time.Time) {}
			},
		},
		{
			name:    "sql",
			expires: true,
			lock: func(t *testing.T) (ports.GenerationLock, func(time.Time)) {
				l := newSQLLock(t)
				return l, func(now time.Time) { l.now = func() time.Time { return now } }
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			lk, setNow := tc.lock(t)
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			setNow(base)

			ok, err := lk.TryAcquire(ctx, "rfq-1", "a", time.Minute)
			if err != nil || !ok {
				t.Fatalf("TryAcquire(a) = %v, %v, want true", ok, err)
			}
			ok, err = lk.TryAcquire(ctx, "rfq-1", "b", time.Minute)
			if err != nil || ok {
				t.Fatalf("TryAcquire(b) while held = %v, %v, want false", ok, err)
			}
			ok, err = lk.TryAcquire(ctx, "rfq-2", "b", time.Minute)
			if err != nil || !ok {
				t.Fatalf("TryAcquire(other rfq) = %v, %v, want true", ok, err)
			}

			if err := lk.Release(ctx, "rfq-1", "b"); err != nil {
				t.Fatalf("Release(non-owner) error = %v", err)
			}
			ok, _ = lk.TryAcquire(ctx, "rfq-1", "b", time.Minute)
			if ok {
				t.Fatalf("non-owner release freed the lock")
			}

			// A refreshed hold survives past its original ttl.
			setNow(base.Add(50 * time.Second))
			ok, err = lk.Refresh(ctx, "rfq-1", "a", time.Minute)
			if err != nil || !ok {
				t.Fatalf("Refresh(owner) = %v, %v, want true", ok, err)
			}
			ok, err = lk.Refresh(ctx, "rfq-1", "b", time.Minute)
			if err != nil || ok {
				t.Fatalf("Refresh(non-owner) = %v, %v, want false", ok, err)
			}
			setNow(base.Add(100 * time.Second))
			ok, err = lk.TryAcquire(ctx, "rfq-1", "b", time.Minute)
			if err != nil || ok {
				t.Fatalf("TryAcquire(b) after refresh = %v, %v, want false", ok, err)
			}

			setNow(base.Add(5 * time.Minute))
			ok, err = lk.TryAcquire(ctx, "rfq-1", "b", time.Minute)
			if err != nil || ok != tc.expires {
				t.Fatalf("TryAcquire(b) after ttl = %v, %v, want %v", ok, err, tc.expires)
			}
			if tc.expires {
				ok, err = lk.Refresh(ctx, "rfq-1", "a", time.Minute)
				if err != nil || ok {
					t.Fatalf("Refresh(lost hold) = %v, %v, want false", ok, err)
				}
				if err := lk.Release(ctx, "rfq-1", "b"); err != nil {
					t.Fatalf("Release() error = %v", err)
				}
			} else if err := lk.Release(ctx, "rfq-1", "a"); err != nil {
				t.Fatalf("Release() error = %v", err)
			}

			ok, err = lk.TryAcquire(ctx, "rfq-1", "a", time.Minute)
			if err != nil || !ok {
				t.Fatalf("TryAcquire(after release) = %v, %v, want true", ok, err)
			}
		})
	}
}
