package inventory

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *audit.MemoryRecorder) {
	t.Helper()
	catalog, err := mockdata.Load()
	require.NoError(t, err)

	rec := audit.NewMemoryRecorder()
	svc := NewService(NewMemoryRepository(catalog), nil,
		WithAudit(rec),
		WithClock(func() time.Time { return now }),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	return svc, rec
}

func keeper(units ...string) models.Actor {
	return models.Actor{UserID: 5, Name: "Anan Chaiyo", Role: models.RoleStoreKeeper, BusinessUnits: units}
}

func controller(units ...string) models.Actor {
	return models.Actor{UserID: 6, Name: "Pim Rattana", Role: models.RoleInventoryController, BusinessUnits: units}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestItems_ScopedAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	items, err := svc.Items(ctx, keeper("GH-BKK"), mockdata.ItemFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, "GH-BKK", it.BusinessUnit)
	}

	_, err = svc.Items(ctx, keeper("GH-BKK"), mockdata.ItemFilter{BusinessUnit: "CH-CNX"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestItemsProgress(t *testing.T) {
	counted := qty("9")
	p := ItemsProgress([]models.CountItem{
		{ItemCode: "A", SystemQty: qty("10"), UnitCost: qty("2.5"), CountedQty: &counted},
		{ItemCode: "B", SystemQty: qty("4")},
		{ItemCode: "C", SystemQty: qty("1")},
	})
	assert.Equal(t, 1, p.Counted)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 33, p.Percent)
	assert.True(t, qty("-2.5").Equal(p.VarianceValue))

	assert.Zero(t, ItemsProgress(nil).Percent)
}

func TestPhysicalCount_RecordAndComplete(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	a := keeper("GH-BKK")

	_, err := svc.CompleteCount(ctx, a, "pc-001")
	assert.ErrorIs(t, err, ErrInvalidState)

	view, err := svc.RecordCount(ctx, a, "pc-001", "VEG-TOM", qty("11"), "two bruised")
	require.NoError(t, err)
	assert.Equal(t, models.CountStatusInProgress, view.Status)
	require.NotNil(t, view.StartedAt)
	assert.Equal(t, "Anan Chaiyo", view.CountedBy)
	assert.Equal(t, 1, view.Progress.Counted)

	_, err = svc.RecordCount(ctx, a, "pc-001", "VEG-LET", qty("-1"), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.RecordCount(ctx, a, "pc-001", "NOPE", qty("1"), "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CompleteCount(ctx, a, "pc-001")
	assert.ErrorIs(t, err, ErrInvalidState)

	for _, code := range []string{"VEG-LET", "VEG-ONI", "DRY-RIC", "DRY-OIL"} {
		_, err = svc.RecordCount(ctx, a, "pc-001", code, qty("18"), "")
		require.NoError(t, err)
	}
	view, err = svc.CompleteCount(ctx, a, "pc-001")
	require.NoError(t, err)
	assert.Equal(t, models.CountStatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress.Percent)

	_, err = svc.RecordCount(ctx, a, "pc-001", "VEG-TOM", qty("12"), "")
	assert.ErrorIs(t, err, ErrInvalidState)

	logs, err := rec.List(ctx, audit.Filter{EntityID: "pc-001"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionComplete, logs[0].Action)
}

func TestPhysicalCount_AccessRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetCount(ctx, keeper("GH-BKK"), "pc-002")
	assert.ErrorIs(t, err, ErrNotFound)

	requestor := models.Actor{Role: models.RoleRequestor, BusinessUnits: []string{"GH-BKK"}}
	_, err = svc.RecordCount(ctx, requestor, "pc-001", "VEG-TOM", qty("1"), "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListCounts(t *testing.T) {
	svc, _ := newTestService(t)
	admin := models.Actor{Role: models.RoleAdmin}

	all, err := svc.ListCounts(context.Background(), admin, CountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "pc-003", all[0].ID)

	inProgress, err := svc.ListCounts(context.Background(), admin, CountFilter{Status: models.CountStatusInProgress})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, 50, inProgress[0].Progress.Percent)
}

func TestDueCounts(t *testing.T) {
	svc, _ := newTestService(t)

	due, err := svc.DueCounts(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "pc-001", due[0].ID)

	due, err = svc.DueCounts(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSpotCheck_Lifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := keeper("GH-BKK")

	sc, err := svc.CreateSpotCheck(ctx, a, SpotCheckRequest{
		BusinessUnit: "GH-BKK",
		Method:       models.SpotCheckManual,
		ItemCodes:    []string{"DRY-OIL", "VEG-TOM", "DRY-OIL"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CountStatusPending, sc.Status)
	require.Len(t, sc.Items, 2)

	_, err = svc.SubmitSpotCheck(ctx, a, sc.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.RecordSpotCount(ctx, a, sc.ID, "DRY-OIL", qty("36"), "")
	require.NoError(t, err)
	view, err := svc.RecordSpotCount(ctx, a, sc.ID, "VEG-TOM", qty("10"), "")
	require.NoError(t, err)
	assert.True(t, qty("-90").Equal(view.Progress.VarianceValue))

	view, err = svc.SubmitSpotCheck(ctx, a, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CountStatusPendingReview, view.Status)

	_, err = svc.ReviewSpotCheck(ctx, a, sc.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	view, err = svc.ReviewSpotCheck(ctx, controller("GH-BKK"), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CountStatusCompleted, view.Status)
	assert.Equal(t, "Pim Rattana", view.ReviewedBy)

	list, err := svc.ListSpotChecks(ctx, a, SpotCheckFilter{})
	require.NoError(t, err)
	assert.Equal(t, sc.ID, list[0].ID)
}

func TestCreateSpotCheck_Methods(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := keeper("GH-BKK")

	high, err := svc.CreateSpotCheck(ctx, a, SpotCheckRequest{BusinessUnit: "GH-BKK", Method: models.SpotCheckHighValue, Size: 2})
	require.NoError(t, err)
	require.Len(t, high.Items, 2)
	assert.Equal(t, "MEAT-BTL", high.Items[0].ItemCode)
	assert.Equal(t, "DRY-RIC", high.Items[1].ItemCode)

	random, err := svc.CreateSpotCheck(ctx, a, SpotCheckRequest{BusinessUnit: "GH-BKK", Location: "Cold Room", Method: models.SpotCheckRandom, Size: 10})
	require.NoError(t, err)
	assert.Len(t, random.Items, 3)
	seen := map[string]bool{}
	for _, it := range random.Items {
		assert.False(t, seen[it.ItemCode])
		seen[it.ItemCode] = true
	}

	_, err = svc.CreateSpotCheck(ctx, a, SpotCheckRequest{BusinessUnit: "GH-BKK", Method: "weekly"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateSpotCheck(ctx, a, SpotCheckRequest{BusinessUnit: "GH-BKK", Method: models.SpotCheckManual, ItemCodes: []string{"BEV-RUM"}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateSpotCheck(ctx, a, SpotCheckRequest{Method: models.SpotCheckRandom})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateSpotCheck(ctx, a, SpotCheckRequest{BusinessUnit: "BR-PTY", Method: models.SpotCheckRandom})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExportCount(t *testing.T) {
	svc, _ := newTestService(t)

	buf, name, err := svc.ExportCount(context.Background(), models.Actor{Role: models.RoleAdmin}, "pc-002")
	require.NoError(t, err)
	assert.Equal(t, "physical-count-pc-002.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Physical Count pc-002", title)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, headerRow+4)
	assert.Equal(t, colItemCode, rows[headerRow-1][0])
	assert.Equal(t, "BEV-BER", rows[headerRow][0])
	assert.Equal(t, "21", rows[headerRow][5])
	assert.Equal(t, "-1", rows[headerRow][6])
}

func TestImportCount_FromExportedSheet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := keeper("GH-BKK")

	cs, err := svc.GetCount(ctx, a, "pc-001")
	require.NoError(t, err)
	filled := cs.Items
	for i := range filled {
		q := filled[i].SystemQty
		filled[i].CountedQty = &q
	}
	filled = append(filled, models.CountItem{ItemCode: "GHOST", CountedQty: &filled[0].SystemQty})
	filled[1].Note = "checked twice"

	buf, err := writeCountSheet(sheetMeta{Title: "upload"}, filled)
	require.NoError(t, err)

	res, err := svc.ImportCount(ctx, a, "pc-001", buf)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Updated)
	assert.Equal(t, []string{"GHOST"}, res.Unmatched)
	require.NotNil(t, res.Count)
	assert.Equal(t, 100, res.Count.Progress.Percent)
	assert.Equal(t, "checked twice", res.Count.Items[1].Note)

	view, err := svc.CompleteCount(ctx, a, "pc-001")
	require.NoError(t, err)
	assert.True(t, view.Progress.VarianceValue.IsZero())
}

func TestImportCount_RejectsUnreadable(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ImportCount(context.Background(), keeper("GH-BKK"), "pc-001", bytes.NewReader([]byte("not a spreadsheet")))
	assert.ErrorIs(t, err, ErrValidation)
}
