package importer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("import job not found")

// JobStore is the persistence surface for job snapshots. Progress updates and
// terminal writes come only from the owning worker; RequestCancel is the one
// mutation other actors may perform, and it touches only the cancellation
// flag.
type JobStore interface {
	Create(ctx context.Context, job *ImportJob) error
	Get(ctx context.Context, id string) (*ImportJob, error)
	List(ctx context.Context, limit int) ([]ImportJob, error)
	MarkProcessing(ctx context.Context, id, phase string) error
	UpdateProgress(ctx context.Context, id, phase string, processed, total, progress int, rowErrors []RowError) error
	Finish(ctx context.Context, id, status string, processed, total, progress int, rowErrors []RowError) error
	RequestCancel(ctx context.Context, id string) error
	CancellationRequested(ctx context.Context, id string) (bool, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ImportJob{})
}

func (r *Repository) Create(ctx context.Context, job *ImportJob) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.LastUpdatedAt = now
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*ImportJob, error) {
	var job ImportJob
	result := r.db.WithContext(ctx).First(&job, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &job, result.Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]ImportJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []ImportJob
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

func (r *Repository) MarkProcessing(ctx context.Context, id, phase string) error {
	return r.db.WithContext(ctx).Model(&ImportJob{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"status":          StatusProcessing,
			"phase":           phase,
			"last_updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) UpdateProgress(ctx context.Context, id, phase string, processed, total, progress int, rowErrors []RowError) error {
	encoded, err := json.Marshal(rowErrors)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&ImportJob{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]interface{}{
			"phase":             phase,
			"processed_records": processed,
			"total_records":     total,
			"progress":          progress,
			"errors":            encoded,
			"last_updated_at":   time.Now().UTC(),
		}).Error
}

// Finish writes a terminal state. The status guard keeps terminal states
// immutable: once completed, failed or cancelled is committed no other writer
// can overwrite it.
func (r *Repository) Finish(ctx context.Context, id, status string, processed, total, progress int, rowErrors []RowError) error {
	if !IsTerminal(status) {
		return errors.New("finish requires a terminal status")
	}
	encoded, err := json.Marshal(rowErrors)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	phase := PhaseProcessing
	if status == StatusCompleted {
		phase = PhaseCompleted
	}
	return r.db.WithContext(ctx).Model(&ImportJob{}).
		Where("id = ? AND status NOT IN ?", id, []string{StatusCompleted, StatusFailed, StatusCancelled}).
		Updates(map[string]interface{}{
			"status":            status,
			"phase":             phase,
			"processed_records": processed,
			"total_records":     total,
			"progress":          progress,
			"errors":            encoded,
			"last_updated_at":   now,
			"completed_at":      now,
		}).Error
}

// RequestCancel sets the cancellation flag on a non-terminal job. A request
// against a terminal or unknown-but-finished job is a no-op, not an error.
func (r *Repository) RequestCancel(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&ImportJob{}).
		Where("id = ? AND status IN ?", id, []string{StatusPending, StatusProcessing}).
		Updates(map[string]interface{}{
			"cancellation_requested": true,
			"last_updated_at":        time.Now().UTC(),
		}).Error
}

func (r *Repository) CancellationRequested(ctx context.Context, id string) (bool, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return job.CancellationRequested, nil
}
