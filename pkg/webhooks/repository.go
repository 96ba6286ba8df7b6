package webhooks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("webhook not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Webhook{})
}

func (r *Repository) Create(ctx context.Context, wh *Webhook) error {
	wh.CreatedAt = time.Now().UTC()
	wh.UpdatedAt = wh.CreatedAt
	return r.db.WithContext(ctx).Create(wh).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Webhook, error) {
	var wh Webhook
	result := r.db.WithContext(ctx).First(&wh, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &wh, result.Error
}

func (r *Repository) List(ctx context.Context) ([]Webhook, error) {
	var items []Webhook
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error
	return items, err
}

// EnabledForEvent is the dispatcher's read dependency: the active subset
// subscribed to one event type.
func (r *Repository) EnabledForEvent(ctx context.Context, eventType string) ([]Webhook, error) {
	var items []Webhook
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND enabled = ?", eventType, true).
		Find(&items).Error
	return items, err
}

func (r *Repository) Save(ctx context.Context, wh *Webhook) error {
	wh.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(wh).Error
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Webhook{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
