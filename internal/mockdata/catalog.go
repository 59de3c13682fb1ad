// Package mockdata loads the embedded demonstration data set: business
// units, purchase orders, GRNs, inventory items, count sessions, spot checks
// and the notifications a new user starts with.
package mockdata

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

var ErrNotFound = errors.New("record not found")

// Catalog is read-only after loading; every accessor returns copies.
type Catalog struct {
	businessUnits  []models.BusinessUnit
	purchaseOrders []models.PurchaseOrder
	grns           []models.GRN
	items          []models.InventoryItem
	counts         []models.PhysicalCountSession
	spotChecks     []models.SpotCheck
	notifications  []models.Notification
}

// Load reads the embedded fixtures.
func Load() (*Catalog, error) {
	sub, err := fs.Sub(fixtures, "fixtures")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFS reads the fixture files from the root of fsys.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{}
	files := []struct {
		name string
		out  any
	}{
		{"business_units.yaml", &c.businessUnits},
		{"purchase_orders.yaml", &c.purchaseOrders},
		{"grns.yaml", &c.grns},
		{"inventory_items.yaml", &c.items},
		{"physical_counts.yaml", &c.counts},
		{"spot_checks.yaml", &c.spotChecks},
		{"notifications.yaml", &c.notifications},
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(data, f.out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool)
	for _, po := range c.purchaseOrders {
		if seen[po.ID] {
			return fmt.Errorf("purchase order %s: duplicate id", po.ID)
		}
		seen[po.ID] = true
		if !workflow.IsValidStatusForStage(po.Status, po.Stage) {
			return fmt.Errorf("purchase order %s: status %q is not valid for stage %d", po.Number, po.Status, po.Stage)
		}
	}
	for _, g := range c.grns {
		if !seen[g.PurchaseOrderID] {
			return fmt.Errorf("grn %s: unknown purchase order %s", g.Number, g.PurchaseOrderID)
		}
	}
	return nil
}

func (c *Catalog) BusinessUnits() []models.BusinessUnit {
	out := make([]models.BusinessUnit, len(c.businessUnits))
	copy(out, c.businessUnits)
	return out
}

func (c *Catalog) PurchaseOrders(f POFilter) []models.PurchaseOrder {
	return FilterPurchaseOrders(c.purchaseOrders, f)
}

func (c *Catalog) PurchaseOrder(id string) (models.PurchaseOrder, error) {
	for _, po := range c.purchaseOrders {
		if po.ID == id || po.Number == id {
			return po.Clone(), nil
		}
	}
	return models.PurchaseOrder{}, fmt.Errorf("purchase order %s: %w", id, ErrNotFound)
}

func (c *Catalog) GRNs(f GRNFilter) []models.GRN {
	return FilterGRNs(c.grns, f)
}

func (c *Catalog) GRN(id string) (models.GRN, error) {
	for _, g := range c.grns {
		if g.ID == id || g.Number == id {
			return g.Clone(), nil
		}
	}
	return models.GRN{}, fmt.Errorf("grn %s: %w", id, ErrNotFound)
}

func (c *Catalog) InventoryItems(f ItemFilter) []models.InventoryItem {
	return FilterItems(c.items, f)
}

func (c *Catalog) PhysicalCounts() []models.PhysicalCountSession {
	out := make([]models.PhysicalCountSession, len(c.counts))
	for i, s := range c.counts {
		out[i] = s.Clone()
	}
	return out
}

func (c *Catalog) PhysicalCount(id string) (models.PhysicalCountSession, error) {
	for _, s := range c.counts {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return models.PhysicalCountSession{}, fmt.Errorf("physical count %s: %w", id, ErrNotFound)
}

func (c *Catalog) SpotChecks() []models.SpotCheck {
	out := make([]models.SpotCheck, len(c.spotChecks))
	for i, s := range c.spotChecks {
		out[i] = s.Clone()
	}
	return out
}

func (c *Catalog) SpotCheck(id string) (models.SpotCheck, error) {
	for _, s := range c.spotChecks {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return models.SpotCheck{}, fmt.Errorf("spot check %s: %w", id, ErrNotFound)
}

// Notifications is the seed list for users without stored notifications.
func (c *Catalog) Notifications() []models.Notification {
	out := make([]models.Notification, len(c.notifications))
	for i, n := range c.notifications {
		out[i] = n.Clone()
	}
	return out
}
