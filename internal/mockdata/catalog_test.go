package mockdata

import (
	"testing"
	"testing/fstest"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Len(t, c.BusinessUnits(), 3)
	assert.NotEmpty(t, c.PurchaseOrders(POFilter{}))
	assert.NotEmpty(t, c.GRNs(GRNFilter{}))
	assert.NotEmpty(t, c.InventoryItems(ItemFilter{}))
	assert.NotEmpty(t, c.PhysicalCounts())
	assert.NotEmpty(t, c.SpotChecks())
	assert.NotEmpty(t, c.Notifications())

	po, err := c.PurchaseOrder("PO-2024-002")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(po.Lines[0].OrderedQty))
	assert.True(t, decimal.RequireFromString("30600").Equal(po.Total()))
	assert.False(t, po.OrderDate.IsZero())
}

func TestFilterPurchaseOrders_Status(t *testing.T) {
	c := MustLoad()
	statuses := []models.DocumentStatus{
		models.StatusDraft, models.StatusPending, models.StatusReturned, models.StatusApproved,
		models.StatusPartiallyReceived, models.StatusReceived, models.StatusRejected, models.StatusClosed,
	}
	for _, st := range statuses {
		t.Run(string(st), func(t *testing.T) {
			for _, po := range c.PurchaseOrders(POFilter{Status: st}) {
				assert.Equal(t, st, po.Status, po.Number)
			}
		})
	}

	pending := c.PurchaseOrders(POFilter{Status: models.StatusPending})
	assert.Len(t, pending, 3)
	assert.Empty(t, c.PurchaseOrders(POFilter{Status: models.StatusClosed}))
}

func TestFilterPurchaseOrders_VendorUnitAndQuery(t *testing.T) {
	c := MustLoad()

	byVendor := c.PurchaseOrders(POFilter{Vendor: "siam fresh produce"})
	require.Len(t, byVendor, 2)

	byUnit := c.PurchaseOrders(POFilter{BusinessUnit: "CH-CNX"})
	assert.Len(t, byUnit, 2)

	byItem := c.PurchaseOrders(POFilter{Query: "tenderloin"})
	require.Len(t, byItem, 1)
	assert.Equal(t, "PO-2024-002", byItem[0].Number)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := MustLoad()

	po, err := c.PurchaseOrder("po-001")
	require.NoError(t, err)
	po.Lines[0].ReceivedQty = decimal.NewFromInt(50)
	po.Status = models.StatusReceived

	again, err := c.PurchaseOrder("po-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, again.Status)
	assert.True(t, again.Lines[0].ReceivedQty.IsZero())

	sc, err := c.SpotCheck("sc-001")
	require.NoError(t, err)
	*sc.Items[0].CountedQty = decimal.Zero
	sc2, err := c.SpotCheck("sc-001")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("13.5").Equal(*sc2.Items[0].CountedQty))
}

func TestCatalog_NotFound(t *testing.T) {
	c := MustLoad()

	_, err := c.PurchaseOrder("po-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.GRN("grn-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.PhysicalCount("pc-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.SpotCheck("sc-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilterItems(t *testing.T) {
	c := MustLoad()

	low := c.InventoryItems(ItemFilter{BusinessUnit: "GH-BKK", LowStock: true})
	codes := make([]string, len(low))
	for i, it := range low {
		codes[i] = it.Code
		assert.True(t, it.LowStock())
	}
	assert.ElementsMatch(t, []string{"VEG-TOM", "SEA-PRW", "DRY-OIL"}, codes)

	bar := c.InventoryItems(ItemFilter{Location: "bar store"})
	require.Len(t, bar, 4)
	for i := 1; i < len(bar); i++ {
		assert.LessOrEqual(t, bar[i-1].Name, bar[i].Name)
	}
}

func TestLoadFS_RejectsInconsistentStage(t *testing.T) {
	fsys := fstest.MapFS{
		"business_units.yaml":  {Data: []byte("[]")},
		"purchase_orders.yaml": {Data: []byte("- {id: x, number: PO-X, status: approved, stage: 2}")},
		"grns.yaml":            {Data: []byte("[]")},
		"inventory_items.yaml": {Data: []byte("[]")},
		"physical_counts.yaml": {Data: []byte("[]")},
		"spot_checks.yaml":     {Data: []byte("[]")},
		"notifications.yaml":   {Data: []byte("[]")},
	}
	_, err := LoadFS(fsys)
	assert.ErrorContains(t, err, "not valid for stage")
}
