package mockdata

import (
	"sort"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// POFilter narrows a purchase order list. Zero fields match everything.
type POFilter struct {
	Status       models.DocumentStatus
	Vendor       string
	BusinessUnit string
	Query        string
}

// FilterPurchaseOrders returns copies of the matching orders in input order.
// A status filter keeps only orders whose status equals it exactly.
func FilterPurchaseOrders(list []models.PurchaseOrder, f POFilter) []models.PurchaseOrder {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.PurchaseOrder, 0, len(list))
	for _, po := range list {
		if f.Status != "" && po.Status != f.Status {
			continue
		}
		if f.Vendor != "" && !strings.EqualFold(po.Vendor, f.Vendor) {
			continue
		}
		if f.BusinessUnit != "" && po.BusinessUnit != f.BusinessUnit {
			continue
		}
		if q != "" && !poContains(po, q) {
			continue
		}
		out = append(out, po.Clone())
	}
	return out
}

func poContains(po models.PurchaseOrder, q string) bool {
	if containsFold(po.Number, q) || containsFold(po.Vendor, q) || containsFold(po.RequestedBy, q) || containsFold(po.Notes, q) {
		return true
	}
	for _, l := range po.Lines {
		if containsFold(l.ItemCode, q) || containsFold(l.Description, q) {
			return true
		}
	}
	return false
}

type GRNFilter struct {
	PurchaseOrderID string
	BusinessUnit    string
	Status          models.GRNStatus
	Query           string
}

func FilterGRNs(list []models.GRN, f GRNFilter) []models.GRN {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.GRN, 0, len(list))
	for _, g := range list {
		if f.PurchaseOrderID != "" && g.PurchaseOrderID != f.PurchaseOrderID {
			continue
		}
		if f.BusinessUnit != "" && g.BusinessUnit != f.BusinessUnit {
			continue
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if q != "" && !containsFold(g.Number, q) && !containsFold(g.Vendor, q) && !containsFold(g.InvoiceNumber, q) {
			continue
		}
		out = append(out, g.Clone())
	}
	return out
}

type ItemFilter struct {
	BusinessUnit string
	Location     string
	Category     string
	LowStock     bool
	Query        string
}

// FilterItems returns the matching items sorted by name.
func FilterItems(list []models.InventoryItem, f ItemFilter) []models.InventoryItem {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.InventoryItem, 0, len(list))
	for _, it := range list {
		if f.BusinessUnit != "" && it.BusinessUnit != f.BusinessUnit {
			continue
		}
		if f.Location != "" && !strings.EqualFold(it.Location, f.Location) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(it.Category, f.Category) {
			continue
		}
		if f.LowStock && !it.LowStock() {
			continue
		}
		if q != "" && !containsFold(it.Code, q) && !containsFold(it.Name, q) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// containsFold expects q already lower-cased.
func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}
