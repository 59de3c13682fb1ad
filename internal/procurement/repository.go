package procurement

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// Repository stores purchasing documents.
type Repository interface {
	ListPurchaseOrders(ctx context.Context, f mockdata.POFilter) ([]models.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (models.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po models.PurchaseOrder) error
	ListGRNs(ctx context.Context, f mockdata.GRNFilter) ([]models.GRN, error)
	GetGRN(ctx context.Context, id string) (models.GRN, error)
	// SaveReceipt stores a new GRN together with the purchase order it updates.
	SaveReceipt(ctx context.Context, grn models.GRN, po models.PurchaseOrder) error
	// GRNCountOn counts GRNs whose number carries the given day.
	GRNCountOn(ctx context.Context, day time.Time) (int, error)
}

// MemoryRepository keeps documents in memory, seeded from the catalog.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders []models.PurchaseOrder
	grns   []models.GRN
}

func NewMemoryRepository(catalog *mockdata.Catalog) *MemoryRepository {
	return &MemoryRepository{
		orders: catalog.PurchaseOrders(mockdata.POFilter{}),
		grns:   catalog.GRNs(mockdata.GRNFilter{}),
	}
}

func (r *MemoryRepository) ListPurchaseOrders(_ context.Context, f mockdata.POFilter) ([]models.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mockdata.FilterPurchaseOrders(r.orders, f), nil
}

func (r *MemoryRepository) GetPurchaseOrder(_ context.Context, id string) (models.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, po := range r.orders {
		if po.ID == id || po.Number == id {
			return po.Clone(), nil
		}
	}
	return models.PurchaseOrder{}, fmt.Errorf("purchase order %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) UpdatePurchaseOrder(_ context.Context, po models.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaceOrder(po)
}

func (r *MemoryRepository) replaceOrder(po models.PurchaseOrder) error {
	for i := range r.orders {
		if r.orders[i].ID == po.ID {
			r.orders[i] = po.Clone()
			return nil
		}
	}
	return fmt.Errorf("purchase order %s: %w", po.ID, ErrNotFound)
}

func (r *MemoryRepository) ListGRNs(_ context.Context, f mockdata.GRNFilter) ([]models.GRN, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mockdata.FilterGRNs(r.grns, f), nil
}

func (r *MemoryRepository) GetGRN(_ context.Context, id string) (models.GRN, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.grns {
		if g.ID == id || g.Number == id {
			return g.Clone(), nil
		}
	}
	return models.GRN{}, fmt.Errorf("grn %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) SaveReceipt(_ context.Context, grn models.GRN, po models.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.replaceOrder(po); err != nil {
		return err
	}
	r.grns = append(r.grns, grn.Clone())
	return nil
}

func (r *MemoryRepository) GRNCountOn(_ context.Context, day time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := grnPrefix(day)
	n := 0
	for _, g := range r.grns {
		if strings.HasPrefix(g.Number, prefix) {
			n++
		}
	}
	return n, nil
}

func grnPrefix(day time.Time) string {
	return "GRN-" + day.Format("20060102") + "-"
}
