package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	"gorm.io/gorm"
)

type SyncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Create(ctx context.Context, l *synclog.Log) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *SyncLogRepository) Save(ctx context.Context, l *synclog.Log) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *SyncLogRepository) GetByID(ctx context.Context, id int64) (*synclog.Log, error) {
	var l synclog.Log
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *SyncLogRepository) DueForRetry(ctx context.Context, now time.Time, limit int, types []synclog.Type) ([]*synclog.Log, error) {
	var logs []*synclog.Log
	q := r.db.WithContext(ctx).
		Where("status = ?", syncDatamodel.StatusFailed).
		Where("retry_count < max_retries").
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC, id ASC")
	if len(types) > 0 {
		q = q.Where("sync_type IN ?", types)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

func (r *SyncLogRepository) ListBySource(ctx context.Context, syncType synclog.Type, sourceID int64) ([]*synclog.Log, error) {
	var logs []*synclog.Log
	err := r.db.WithContext(ctx).
		Where("sync_type = ? AND source_id = ?", syncType, sourceID).
		Order("started_at DESC, id DESC").
		Find(&logs).Error
	return logs, err
}

// DeleteOlderThan leaves in-progress attempts alone.
func (r *SyncLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ? AND status <> ?", cutoff, syncDatamodel.StatusInProgress).
		Delete(&synclog.Log{})
	return res.RowsAffected, res.Error
}

func (r *SyncLogRepository) GetConfiguration(ctx context.Context) (*synclog.Configuration, error) {
	var c synclog.Configuration
	err := r.db.WithContext(ctx).Order("id ASC").First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *SyncLogRepository) SaveConfiguration(ctx context.Context, c *synclog.Configuration) error {
	return r.db.WithContext(ctx).Save(c).Error
}
