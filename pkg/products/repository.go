package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("product not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Product{})
}

// Upsert performs the insert-or-replace-by-normalized-key operation. The row
// lock makes the read-modify-write atomic with respect to other writers.
func (r *Repository) Upsert(ctx context.Context, row UpsertRow) (UpsertOutcome, error) {
	var outcome UpsertOutcome
	normalized := NormalizeSKU(row.SKU)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Product
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("normalized_sku = ?", normalized).
			First(&existing)

		if result.Error == nil {
			existing.SKU = row.SKU
			existing.Name = row.Name
			existing.Description = row.Description
			existing.Active = row.Active
			existing.UpdatedAt = time.Now().UTC()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			outcome = UpsertOutcome{Product: existing, Created: false}
			return nil
		}

		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		now := time.Now().UTC()
		created := Product{
			ID:            uuid.New().String(),
			SKU:           row.SKU,
			NormalizedSKU: normalized,
			Name:          row.Name,
			Description:   row.Description,
			Active:        row.Active,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		outcome = UpsertOutcome{Product: created, Created: true}
		return nil
	})

	return outcome, err
}

func (r *Repository) Get(ctx context.Context, id string) (*Product, error) {
	var p Product
	result := r.db.WithContext(ctx).First(&p, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, result.Error
}

func (r *Repository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	var p Product
	result := r.db.WithContext(ctx).First(&p, "normalized_sku = ?", NormalizeSKU(sku))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, result.Error
}

func (r *Repository) List(ctx context.Context, filters ListFilters, page, pageSize int) ([]Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&Product{})

	if filters.SKU != "" {
		query = query.Where("normalized_sku LIKE ?", "%"+NormalizeSKU(filters.SKU)+"%")
	}
	if filters.Name != "" {
		query = query.Where("name ILIKE ?", "%"+filters.Name+"%")
	}
	if filters.Description != "" {
		query = query.Where("description ILIKE ?", "%"+filters.Description+"%")
	}
	if filters.Active != nil {
		query = query.Where("active = ?", *filters.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Product
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

func (r *Repository) Save(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *Repository) Delete(ctx context.Context, id string) (*Product, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&Product{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) DeleteAll(ctx context.Context) ([]Product, error) {
	var items []Product
	if err := r.db.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&Product{}).Error; err != nil {
		return nil, err
	}
	return items, nil
}
