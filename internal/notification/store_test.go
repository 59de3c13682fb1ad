package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedList() []models.Notification {
	return []models.Notification{
		{ID: "n-1", Type: models.NotificationPurchaseOrder, Title: "PO approved", Message: "PO-2024-001 approved", Timestamp: base.Add(-2 * time.Hour), Priority: models.PriorityHigh},
		{ID: "n-2", Type: models.NotificationPhysicalCount, Title: "Count due", Message: "Main store count due", Timestamp: base.Add(-1 * time.Hour), Priority: models.PriorityMedium},
		{ID: "n-3", Type: models.NotificationSystem, Title: "Welcome", Message: "Welcome aboard", Timestamp: base.Add(-3 * time.Hour), IsRead: true, Priority: models.PriorityLow},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newTestHub(kv storage.Store, opts ...HubOption) *Hub {
	seq := 0
	opts = append([]HubOption{
		WithClock(func() time.Time { return base }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		}),
	}, opts...)
	return NewHub(kv, seedList, nil, opts...)
}

func TestStore_LoadsSeedWhenAbsent(t *testing.T) {
	hub := newTestHub(storage.NewMemoryStore())

	s, err := hub.For(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, s.Snapshot(), 3)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestStore_MalformedBlobFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, storage.UserScope(1), storage.KeyNotifications, "{not json"))

	s, err := newTestHub(kv).For(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, s.Snapshot(), 3)
}

func TestStore_LoadsPersistedList(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	stored := []models.Notification{{ID: "only", Title: "Stored", Timestamp: base}}
	require.NoError(t, storage.SetJSON(ctx, kv, storage.UserScope(1), storage.KeyNotifications, stored))

	s, err := newTestHub(kv).For(ctx, 1)
	require.NoError(t, err)

	got := s.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].ID)
}

func TestStore_MarkAllAsRead(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s, err := newTestHub(kv).For(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkAllAsRead(ctx))

	for _, n := range s.Snapshot() {
		assert.True(t, n.IsRead, n.ID)
	}
	assert.Zero(t, s.UnreadCount())

	var persisted []models.Notification
	found, err := storage.GetJSON(ctx, kv, storage.UserScope(1), storage.KeyNotifications, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	for _, n := range persisted {
		assert.True(t, n.IsRead, n.ID)
	}
}

func TestStore_MarkAsRead(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkAsRead(ctx, "n-1"))
	assert.Equal(t, 1, s.UnreadCount())

	assert.ErrorIs(t, s.MarkAsRead(ctx, "missing"), ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "n-2"))
	for _, n := range s.Snapshot() {
		assert.NotEqual(t, "n-2", n.ID)
	}
	assert.ErrorIs(t, s.Delete(ctx, "n-2"), ErrNotFound)
}

func TestStore_AddFillsDefaults(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	added, err := s.Add(ctx, models.Notification{Title: "GRN posted", Message: "GRN-20240301-001", IsRead: true})
	require.NoError(t, err)

	assert.Equal(t, "gen-1", added.ID)
	assert.True(t, added.Timestamp.Equal(base))
	assert.False(t, added.IsRead)
	assert.Equal(t, models.PriorityMedium, added.Priority)
	assert.Equal(t, models.NotificationSystem, added.Type)
	assert.Equal(t, "gen-1", s.Snapshot()[0].ID)
}

func TestStore_ListNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	all := s.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, []string{"n-2", "n-1", "n-3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	unread := s.List(Filter{UnreadOnly: true})
	assert.Len(t, unread, 2)

	high := s.List(Filter{Priority: models.PriorityHigh})
	require.Len(t, high, 1)
	assert.Equal(t, "n-1", high[0].ID)

	counts := s.List(Filter{Type: models.NotificationPhysicalCount})
	require.Len(t, counts, 1)
	assert.Equal(t, "n-2", counts[0].ID)
}

func TestStore_SubscribeDeliversCurrentAndChanges(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	var order []string
	var lastA []models.Notification
	unsubA := s.Subscribe(func(list []models.Notification) {
		order = append(order, "a")
		lastA = list
	})
	unsubB := s.Subscribe(func([]models.Notification) { order = append(order, "b") })
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Len(t, lastA, 3)

	order = nil
	require.NoError(t, s.Delete(ctx, "n-3"))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Len(t, lastA, 2)

	unsubA()
	unsubA()
	order = nil
	require.NoError(t, s.MarkAllAsRead(ctx))
	assert.Equal(t, []string{"b"}, order)

	unsubB()
	order = nil
	require.NoError(t, s.MarkAllAsRead(ctx))
	assert.Empty(t, order)
}

func TestStore_ListenerGetsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	s.Subscribe(func(list []models.Notification) {
		for i := range list {
			list[i].Title = "tampered"
		}
	})
	for _, n := range s.Snapshot() {
		assert.NotEqual(t, "tampered", n.Title)
	}
}

func TestStore_FailedMutationDoesNotBroadcast(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	calls := 0
	s.Subscribe(func([]models.Notification) { calls++ })
	require.Equal(t, 1, calls)

	require.ErrorIs(t, s.MarkAsRead(ctx, "missing"), ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestHub_ReusesStoreAndPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	hub := newTestHub(storage.NewMemoryStore(), WithPublisher(pub))

	a, err := hub.For(ctx, 7)
	require.NoError(t, err)
	b, err := hub.For(ctx, 7)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, hub.Notify(ctx, models.Notification{Title: "Count due", Message: "Bar store"}, 7, 8))

	require.Len(t, pub.events, 2)
	assert.Equal(t, ActionAdd, pub.events[0].Action)
	assert.Equal(t, uint(7), pub.events[0].UserID)
	assert.Equal(t, uint(8), pub.events[1].UserID)
	assert.NotEqual(t, pub.events[0].NotificationID, pub.events[1].NotificationID)
}
