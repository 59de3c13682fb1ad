package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// Repository stores items, count sessions and spot checks.
type Repository interface {
	ListItems(ctx context.Context, f mockdata.ItemFilter) ([]models.InventoryItem, error)
	ListCounts(ctx context.Context) ([]models.PhysicalCountSession, error)
	GetCount(ctx context.Context, id string) (models.PhysicalCountSession, error)
	SaveCount(ctx context.Context, s models.PhysicalCountSession) error
	ListSpotChecks(ctx context.Context) ([]models.SpotCheck, error)
	GetSpotCheck(ctx context.Context, id string) (models.SpotCheck, error)
	// SaveSpotCheck inserts or replaces by id.
	SaveSpotCheck(ctx context.Context, s models.SpotCheck) error
}

type MemoryRepository struct {
	mu         sync.RWMutex
	items      []models.InventoryItem
	counts     []models.PhysicalCountSession
	spotChecks []models.SpotCheck
}

func NewMemoryRepository(catalog *mockdata.Catalog) *MemoryRepository {
	return &MemoryRepository{
		items:      catalog.InventoryItems(mockdata.ItemFilter{}),
		counts:     catalog.PhysicalCounts(),
		spotChecks: catalog.SpotChecks(),
	}
}

func (r *MemoryRepository) ListItems(_ context.Context, f mockdata.ItemFilter) ([]models.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mockdata.FilterItems(r.items, f), nil
}

func (r *MemoryRepository) ListCounts(_ context.Context) ([]models.PhysicalCountSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.PhysicalCountSession, len(r.counts))
	for i, s := range r.counts {
		out[i] = s.Clone()
	}
	return out, nil
}

func (r *MemoryRepository) GetCount(_ context.Context, id string) (models.PhysicalCountSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.counts {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return models.PhysicalCountSession{}, fmt.Errorf("physical count %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) SaveCount(_ context.Context, s models.PhysicalCountSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.counts {
		if r.counts[i].ID == s.ID {
			r.counts[i] = s.Clone()
			return nil
		}
	}
	return fmt.Errorf("physical count %s: %w", s.ID, ErrNotFound)
}

func (r *MemoryRepository) ListSpotChecks(_ context.Context) ([]models.SpotCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SpotCheck, len(r.spotChecks))
	for i, s := range r.spotChecks {
		out[i] = s.Clone()
	}
	return out, nil
}

func (r *MemoryRepository) GetSpotCheck(_ context.Context, id string) (models.SpotCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.spotChecks {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return models.SpotCheck{}, fmt.Errorf("spot check %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) SaveSpotCheck(_ context.Context, s models.SpotCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.spotChecks {
		if r.spotChecks[i].ID == s.ID {
			r.spotChecks[i] = s.Clone()
			return nil
		}
	}
	r.spotChecks = append(r.spotChecks, s.Clone())
	return nil
}
