package products

import (
	"strings"
	"time"
)

// Product keeps the SKU exactly as it was last written (display casing) and a
// case-folded copy used for uniqueness and upsert matching.
type Product struct {
	ID            string    `json:"id" gorm:"primaryKey;column:id"`
	SKU           string    `json:"sku" gorm:"column:sku"`
	NormalizedSKU string    `json:"-" gorm:"column:normalized_sku;uniqueIndex"`
	Name          string    `json:"name" gorm:"column:name"`
	Description   string    `json:"description" gorm:"column:description"`
	Active        bool      `json:"active" gorm:"column:active;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Payload is the shape forwarded to the event bus and webhook receivers.
func (p *Product) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"active":      p.Active,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

// NormalizeSKU case-folds a natural key for upsert matching.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// UpsertRow carries one row of import input into the store.
type UpsertRow struct {
	SKU         string
	Name        string
	Description string
	Active      bool
}

// UpsertOutcome reports what a single upsert did.
type UpsertOutcome struct {
	Product Product
	Created bool
}

// ListFilters narrows List results; nil fields are ignored.
type ListFilters struct {
	SKU         string
	Name        string
	Description string
	Active      *bool
}
