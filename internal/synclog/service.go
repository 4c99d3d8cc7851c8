package synclog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
)

type Repository interface {
	Create(ctx context.Context, l *Log) error
	Save(ctx context.Context, l *Log) error
	GetByID(ctx context.Context, id int64) (*Log, error)
	DueForRetry(ctx context.Context, now time.Time, limit int, types []Type) ([]*Log, error)
	ListBySource(ctx context.Context, syncType Type, sourceID int64) ([]*Log, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	GetConfiguration(ctx context.Context) (*Configuration, error)
	SaveConfiguration(ctx context.Context, c *Configuration) error
}

// Service keeps the audit trail of every external sync attempt and decides
// when a failed attempt is retried.
type Service struct {
	repo      Repository
	defaults  Defaults
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, defaults Defaults, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		defaults:  defaults,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LoadConfiguration returns the configuration row, creating it with every
// switch on when it does not exist yet.
func (s *Service) LoadConfiguration(ctx context.Context) (*Configuration, error) {
	cfg, err := s.repo.GetConfiguration(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to load sync configuration", err)
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Configuration{
		PayrollSyncEnabled:    true,
		ExpenseSyncEnabled:    true,
		ScheduledSyncEnabled:  true,
		MaxRetries:            s.defaults.MaxRetries,
		RetryBaseDelaySeconds: int(s.defaults.RetryBaseDelay / time.Second),
	}
	if err := s.repo.SaveConfiguration(ctx, cfg); err != nil {
		return nil, internal.NewInternalError("failed to create sync configuration", err)
	}
	s.logger.Info("sync configuration created with defaults",
		"max_retries", cfg.MaxRetries,
		"retry_base_delay_seconds", cfg.RetryBaseDelaySeconds)
	return cfg, nil
}

func (s *Service) Settings(ctx context.Context) (Settings, error) {
	cfg, err := s.LoadConfiguration(ctx)
	if err != nil {
		return Settings{}, err
	}
	return settingsOf(cfg), nil
}

type UpdateSettingsDTO struct {
	PayrollSyncEnabled    *bool `json:"payroll_sync_enabled,omitempty"`
	ExpenseSyncEnabled    *bool `json:"expense_sync_enabled,omitempty"`
	ScheduledSyncEnabled  *bool `json:"scheduled_sync_enabled,omitempty"`
	MaxRetries            *int  `json:"max_retries,omitempty"`
	RetryBaseDelaySeconds *int  `json:"retry_base_delay_seconds,omitempty"`
}

func (s *Service) UpdateSettings(ctx context.Context, dto UpdateSettingsDTO) (Settings, error) {
	if dto.MaxRetries != nil && *dto.MaxRetries < 0 {
		return Settings{}, internal.NewValidationFieldError("max_retries", "max_retries cannot be negative", internal.ErrCodeValidationFailed)
	}
	if dto.RetryBaseDelaySeconds != nil && *dto.RetryBaseDelaySeconds <= 0 {
		return Settings{}, internal.NewValidationFieldError("retry_base_delay_seconds", "retry_base_delay_seconds must be greater than zero", internal.ErrCodeValidationFailed)
	}

	cfg, err := s.LoadConfiguration(ctx)
	if err != nil {
		return Settings{}, err
	}
	if dto.PayrollSyncEnabled != nil {
		cfg.PayrollSyncEnabled = *dto.PayrollSyncEnabled
	}
	if dto.ExpenseSyncEnabled != nil {
		cfg.ExpenseSyncEnabled = *dto.ExpenseSyncEnabled
	}
	if dto.ScheduledSyncEnabled != nil {
		cfg.ScheduledSyncEnabled = *dto.ScheduledSyncEnabled
	}
	if dto.MaxRetries != nil {
		cfg.MaxRetries = *dto.MaxRetries
	}
	if dto.RetryBaseDelaySeconds != nil {
		cfg.RetryBaseDelaySeconds = *dto.RetryBaseDelaySeconds
	}
	if err := s.repo.SaveConfiguration(ctx, cfg); err != nil {
		return Settings{}, internal.NewInternalError("failed to save sync configuration", err)
	}
	return settingsOf(cfg), nil
}

// Begin opens an in-progress log for one sync attempt.
func (s *Service) Begin(ctx context.Context, syncType Type, sourceID int64, settings Settings) (*Log, error) {
	l := &Log{
		SyncType:   syncType,
		SourceID:   sourceID,
		Status:     syncDatamodel.StatusInProgress,
		MaxRetries: settings.MaxRetries,
		StartedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, internal.NewInternalError("failed to create sync log", err)
	}
	return l, nil
}

// BeginRetry reopens a failed log for its next attempt.
func (s *Service) BeginRetry(ctx context.Context, l *Log) error {
	if !Retryable(l) {
		return fmt.Errorf("%w: sync log %d has no retries left", internal.ErrExternalSyncFailure, l.ID)
	}
	l.RetryCount++
	l.Status = syncDatamodel.StatusInProgress
	l.NextRetryAt = nil
	l.FinishedAt = nil
	l.StartedAt = s.now()
	if err := s.repo.Save(ctx, l); err != nil {
		return internal.NewInternalError("failed to reopen sync log", err)
	}
	return nil
}

func (s *Service) Succeed(ctx context.Context, l *Log, message string, externalID *string) error {
	now := s.now()
	l.Status = syncDatamodel.StatusSuccess
	l.Message = message
	l.ExternalID = externalID
	l.NextRetryAt = nil
	l.FinishedAt = &now
	if err := s.repo.Save(ctx, l); err != nil {
		return internal.NewInternalError("failed to finish sync log", err)
	}
	return nil
}

// Fail closes the attempt and, while retries remain, schedules the next one
// after an exponential backoff.
func (s *Service) Fail(ctx context.Context, l *Log, message string, settings Settings) error {
	now := s.now()
	l.Status = syncDatamodel.StatusFailed
	l.Message = message
	l.FinishedAt = &now
	l.NextRetryAt = nil
	if l.RetryCount < l.MaxRetries {
		next := now.Add(Backoff(settings.RetryBaseDelay, l.RetryCount))
		l.NextRetryAt = &next
	}
	if err := s.repo.Save(ctx, l); err != nil {
		return internal.NewInternalError("failed to finish sync log", err)
	}

	s.logger.Warn("sync attempt failed",
		"sync_log_id", l.ID,
		"sync_type", l.SyncType,
		"source_id", l.SourceID,
		"retry_count", l.RetryCount,
		"next_retry_at", l.NextRetryAt,
		"message", message)

	if s.publisher != nil {
		ev := events.NewSyncFailedEvent(l.ID, string(l.SyncType), l.SourceID, message, l.RetryCount)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error("failed to publish event", "error", err, "event_type", ev.EventType())
		}
	}
	return nil
}

// Skip records an attempt that was deliberately not made.
func (s *Service) Skip(ctx context.Context, syncType Type, sourceID int64, message string) (*Log, error) {
	now := s.now()
	l := &Log{
		SyncType:   syncType,
		SourceID:   sourceID,
		Status:     syncDatamodel.StatusSkipped,
		Message:    message,
		StartedAt:  now,
		FinishedAt: &now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, internal.NewInternalError("failed to create sync log", err)
	}
	return l, nil
}

// DueForRetry lists failed logs whose next attempt is due, restricted to the
// given sync types when any are named.
func (s *Service) DueForRetry(ctx context.Context, now time.Time, limit int, types ...Type) ([]*Log, error) {
	logs, err := s.repo.DueForRetry(ctx, now, limit, types)
	if err != nil {
		return nil, internal.NewInternalError("failed to list sync logs due for retry", err)
	}
	return logs, nil
}

func (s *Service) ListBySource(ctx context.Context, syncType Type, sourceID int64) ([]*Log, error) {
	logs, err := s.repo.ListBySource(ctx, syncType, sourceID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list sync logs", err)
	}
	return logs, nil
}

// Cleanup removes finished logs older than the given number of days.
func (s *Service) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, internal.NewValidationFieldError("days", "days must be greater than zero", internal.ErrCodeValidationFailed)
	}
	cutoff := s.now().AddDate(0, 0, -days)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, internal.NewInternalError("failed to clean up sync logs", err)
	}
	s.logger.Info("old sync logs removed", "deleted", n, "cutoff", cutoff)
	return n, nil
}
