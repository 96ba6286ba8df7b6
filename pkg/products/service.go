package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
)

var ErrSKUConflict = errors.New("product with this SKU already exists")

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Store is the persistence surface the service needs.
type Store interface {
	Upsert(ctx context.Context, row UpsertRow) (UpsertOutcome, error)
	Get(ctx context.Context, id string) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filters ListFilters, page, pageSize int) ([]Product, int64, error)
	Save(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) (*Product, error)
	DeleteAll(ctx context.Context) ([]Product, error)
}

// EventSink receives product lifecycle events. Delivery is best-effort and
// must never block the caller.
type EventSink interface {
	Fire(eventType string, payload map[string]interface{})
}

type Service struct {
	store  Store
	events EventSink
}

func NewService(store Store, events EventSink) *Service {
	return &Service{store: store, events: events}
}

type WriteInput struct {
	SKU         string
	Name        string
	Description string
	Active      *bool
}

func (in WriteInput) validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return ValidationError{reason: errors.New("sku is required")}
	}
	if strings.TrimSpace(in.Name) == "" {
		return ValidationError{reason: errors.New("name is required")}
	}
	return nil
}

// Create upserts by SKU: posting an existing SKU replaces the stored record,
// mirroring the import pipeline's semantics.
func (s *Service) Create(ctx context.Context, in WriteInput) (*Product, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	outcome, err := s.store.Upsert(ctx, UpsertRow{
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Active:      active,
	})
	if err != nil {
		return nil, false, fmt.Errorf("upserting product: %w", err)
	}

	if outcome.Created {
		s.events.Fire(models.EventProductCreated, outcome.Product.Payload())
	} else {
		s.events.Fire(models.EventProductUpdated, outcome.Product.Payload())
	}

	return &outcome.Product, outcome.Created, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters, page, pageSize int) ([]Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return s.store.List(ctx, filters, page, pageSize)
}

func (s *Service) Update(ctx context.Context, id string, in WriteInput) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sku := strings.TrimSpace(in.SKU); sku != "" {
		existing, err := s.store.GetBySKU(ctx, sku)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrSKUConflict
		}
		p.SKU = sku
		p.NormalizedSKU = NormalizeSKU(sku)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if in.Description != "" {
		p.Description = strings.TrimSpace(in.Description)
	}
	if in.Active != nil {
		p.Active = *in.Active
	}

	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}

	s.events.Fire(models.EventProductUpdated, p.Payload())
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.events.Fire(models.EventProductDeleted, p.Payload())
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	for i := range deleted {
		s.events.Fire(models.EventProductDeleted, deleted[i].Payload())
	}
	return len(deleted), nil
}
