package products

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
)

type fakeStore struct {
	mu    sync.Mutex
	items map[string]Product // keyed by normalized sku
	seq   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]Product)}
}

func (s *fakeStore) Upsert(_ context.Context, row UpsertRow) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeSKU(row.SKU)
	now := time.Now().UTC()
	if existing, ok := s.items[key]; ok {
		existing.SKU = row.SKU
		existing.Name = row.Name
		existing.Description = row.Description
		existing.Active = row.Active
		existing.UpdatedAt = now
		s.items[key] = existing
		return UpsertOutcome{Product: existing, Created: false}, nil
	}

	s.seq++
	created := Product{
		ID:            fmt.Sprintf("p-%d", s.seq),
		SKU:           row.SKU,
		NormalizedSKU: key,
		Name:          row.Name,
		Description:   row.Description,
		Active:        row.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.items[key] = created
	return UpsertOutcome{Product: created, Created: true}, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.items {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetBySKU(_ context.Context, sku string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.items[NormalizeSKU(sku)]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) List(_ context.Context, _ ListFilters, _, _ int) ([]Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	for _, p := range s.items {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) Save(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.items {
		if existing.ID == p.ID {
			delete(s.items, key)
			break
		}
	}
	s.items[p.NormalizedSKU] = *p
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.items {
		if p.ID == id {
			delete(s.items, key)
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) DeleteAll(_ context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	for key, p := range s.items {
		out = append(out, p)
		delete(s.items, key)
	}
	return out, nil
}

type recordSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordSink) Fire(eventType string, _ map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *recordSink) fired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func TestCreateUpsertsBySKU(t *testing.T) {
	store := newFakeStore()
	sink := &recordSink{}
	svc := NewService(store, sink)
	ctx := context.Background()

	p, created, err := svc.Create(ctx, WriteInput{SKU: "ABC-1", Name: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("expected first write to create")
	}
	if !p.Active {
		t.Fatal("expected active to default to true")
	}

	// Same key in different casing replaces, it does not duplicate.
	p2, created, err := svc.Create(ctx, WriteInput{SKU: "abc-1", Name: "Renamed"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("expected second write to update")
	}
	if p2.ID != p.ID {
		t.Fatalf("expected the same record, got %s vs %s", p2.ID, p.ID)
	}
	if p2.SKU != "abc-1" || p2.Name != "Renamed" {
		t.Fatalf("expected last write to win, got %+v", p2)
	}

	events := sink.fired()
	if len(events) != 2 || events[0] != models.EventProductCreated || events[1] != models.EventProductUpdated {
		t.Fatalf("expected created then updated, got %v", events)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newFakeStore(), &recordSink{})
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, WriteInput{Name: "Widget"}); !IsValidationError(err) {
		t.Fatalf("expected validation error for missing sku, got %v", err)
	}
	if _, _, err := svc.Create(ctx, WriteInput{SKU: "A-1"}); !IsValidationError(err) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if _, _, err := svc.Create(ctx, WriteInput{SKU: "   ", Name: "Widget"}); !IsValidationError(err) {
		t.Fatalf("expected validation error for blank sku, got %v", err)
	}
}

func TestUpdateRejectsSKUConflict(t *testing.T) {
	store := newFakeStore()
	sink := &recordSink{}
	svc := NewService(store, sink)
	ctx := context.Background()

	first, _, err := svc.Create(ctx, WriteInput{SKU: "A-1", Name: "First"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, _, err := svc.Create(ctx, WriteInput{SKU: "A-2", Name: "Second"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Renaming second onto first's key must fail, whatever the casing.
	if _, err := svc.Update(ctx, second.ID, WriteInput{SKU: "a-1"}); !errors.Is(err, ErrSKUConflict) {
		t.Fatalf("expected ErrSKUConflict, got %v", err)
	}

	// Re-posting a product's own key is fine.
	updated, err := svc.Update(ctx, first.ID, WriteInput{SKU: "A-1", Name: "Renamed"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected name updated, got %q", updated.Name)
	}
}

func TestDeleteFiresEvent(t *testing.T) {
	store := newFakeStore()
	sink := &recordSink{}
	svc := NewService(store, sink)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, WriteInput{SKU: "A-1", Name: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}

	events := sink.fired()
	if events[len(events)-1] != models.EventProductDeleted {
		t.Fatalf("expected a deleted event, got %v", events)
	}
}

func TestDeleteAllFiresPerProduct(t *testing.T) {
	store := newFakeStore()
	sink := &recordSink{}
	svc := NewService(store, sink)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, _, err := svc.Create(ctx, WriteInput{SKU: fmt.Sprintf("A-%d", i), Name: "Widget"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	n, err := svc.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	deleted := 0
	for _, e := range sink.fired() {
		if e == models.EventProductDeleted {
			deleted++
		}
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted events, got %d", deleted)
	}
}

func TestNormalizeSKU(t *testing.T) {
	if got := NormalizeSKU("  Abc-1 "); got != "abc-1" {
		t.Fatalf("expected abc-1, got %q", got)
	}
}
