package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/infrastructure/persistence/sqlite/model"
	"pdmrelease/internal/ports"
)

// SQLLock keeps generation locks in the generation_locks table so that the
// CLI, the HTTP server and the worker share one guard per database.
type SQLLock struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.GenerationLock = (*SQLLock)(nil)

func NewSQLLock(db *gorm.DB) *SQLLock {
	return &SQLLock{db: db, now: time.Now}
}

// TryAcquire inserts the lock row, or takes it over when it expired or is
// already ours. The conditional upsert affects no row while someone else
// holds it.
func (l *SQLLock) TryAcquire(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}

	key := strings.TrimSpace(rfqID)
	holder := strings.TrimSpace(owner)
	if key == "" || holder == "" {
		return false, errors.New("rfq id and owner are required")
	}

	now := l.now().UTC()
	row := model.GenerationLock{
		RFQID:      key,
		Owner:      holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "rfq_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "generation_locks.expires_at < ? OR generation_locks.owner = ?",
				Vars: []any{now, holder},
			},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "acquired_at", "expires_at"}),
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "upsert generation lock")
	}
	return result.RowsAffected > 0, nil
}

// Refresh pushes expires_at forward while the row still belongs to owner.
func (l *SQLLock) Refresh(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}

	now := l.now().UTC()
	result := l.db.WithContext(ctx).
		Model(&model.GenerationLock{}).
		Where("rfq_id = ? AND owner = ?", strings.TrimSpace(rfqID), strings.TrimSpace(owner)).
		Update("expires_at", now.Add(ttl))
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "refresh generation lock")
	}
	return result.RowsAffected > 0, nil
}

func (l *SQLLock) Release(ctx context.Context, rfqID string, owner string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := l.db.WithContext(ctx).
		Where("rfq_id = ? AND owner = ?", strings.TrimSpace(rfqID), strings.TrimSpace(owner)).
		Delete(&model.GenerationLock{}).Error; err != nil {
		return errs.Wrap(err, "delete generation lock")
	}
	return nil
}
