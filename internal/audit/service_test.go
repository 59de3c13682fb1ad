package audit

import (
	"context"
	"testing"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder_WriteAndList(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder()

	require.NoError(t, rec.WriteLog(ctx, LogOptions{
		BusinessUnit: "GH-BKK",
		UserID:       1,
		EntityType:   "purchase_order",
		EntityID:     "PO-1001",
		Action:       models.AuditActionApprove,
		Before:       map[string]string{"status": "pending"},
		After:        map[string]string{"status": "approved"},
	}))
	require.NoError(t, rec.WriteLog(ctx, LogOptions{
		BusinessUnit: "BR-PTY",
		EntityType:   "grn",
		EntityID:     "GRN-1",
		Action:       models.AuditActionCreate,
	}))

	all, err := rec.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "GRN-1", all[0].EntityID, "newest first")
	assert.Equal(t, "null", all[0].BeforeData)
	assert.JSONEq(t, `{"status":"approved"}`, all[1].AfterData)

	pos, err := rec.List(ctx, Filter{EntityType: "purchase_order"})
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, "PO-1001", pos[0].EntityID)

	limited, err := rec.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFilter_Limit(t *testing.T) {
	assert.Equal(t, defaultLimit, Filter{}.limit())
	assert.Equal(t, maxLimit, Filter{Limit: 10000}.limit())
	assert.Equal(t, 7, Filter{Limit: 7}.limit())
}
