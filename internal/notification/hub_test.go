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

// memoryBus fans published events out to every subscriber synchronously,
// standing in for a NATS subject shared by several instances.
type memoryBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
	events   []Event
}

func newMemoryBus() *memoryBus {
	return &memoryBus{handlers: make(map[int]func(Event))}
}

func (b *memoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *memoryBus) Subscribe(handler func(Event)) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		return nil
	}, nil
}

func prefixedIDs(prefix string) HubOption {
	seq := 0
	return WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("%s-%d", prefix, seq)
	})
}

func listenerCount(s *Store) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func TestHub_TwoInstancesDoNotOverwriteEachOther(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	hubA := newTestHub(kv, prefixedIDs("a"))
	hubB := newTestHub(kv, prefixedIDs("b"))

	storeB, err := hubB.For(ctx, 1)
	require.NoError(t, err)
	storeA, err := hubA.For(ctx, 1)
	require.NoError(t, err)

	added, err := storeA.Add(ctx, models.Notification{Title: "from A", Message: "written by instance A"})
	require.NoError(t, err)

	// B still holds the list it cached before A wrote.
	require.NoError(t, storeB.MarkAllAsRead(ctx))

	var persisted []models.Notification
	_, err = storage.GetJSON(ctx, kv, storage.UserScope(1), storage.KeyNotifications, &persisted)
	require.NoError(t, err)
	require.Len(t, persisted, 4)
	assert.Equal(t, added.ID, persisted[0].ID)
	for _, n := range persisted {
		assert.True(t, n.IsRead, n.ID)
	}
	assert.Equal(t, 0, storeB.UnreadCount())
}

func TestHub_ListenReloadsOnForeignEvents(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	bus := newMemoryBus()
	hubA := newTestHub(kv, prefixedIDs("a"), WithPublisher(bus))
	hubB := newTestHub(kv, prefixedIDs("b"), WithPublisher(bus))

	unsubA, err := hubA.Listen(bus)
	require.NoError(t, err)
	defer unsubA()
	unsubB, err := hubB.Listen(bus)
	require.NoError(t, err)
	defer unsubB()

	storeA, err := hubA.For(ctx, 1)
	require.NoError(t, err)
	storeB, err := hubB.For(ctx, 1)
	require.NoError(t, err)

	var deliveriesA, deliveriesB int
	var lastB []models.Notification
	storeA.Subscribe(func([]models.Notification) { deliveriesA++ })
	storeB.Subscribe(func(list []models.Notification) {
		deliveriesB++
		lastB = list
	})
	require.Equal(t, 1, deliveriesA)
	require.Equal(t, 1, deliveriesB)

	added, err := storeA.Add(ctx, models.Notification{Title: "from A"})
	require.NoError(t, err)

	// A saw its own change once and ignored the echo from the bus.
	assert.Equal(t, 2, deliveriesA)
	assert.Equal(t, 2, deliveriesB)
	require.Len(t, lastB, 4)
	assert.Equal(t, added.ID, lastB[0].ID)
	assert.Equal(t, 3, storeB.UnreadCount())

	require.Len(t, bus.events, 1)
	assert.NotEmpty(t, bus.events[0].Origin)
	assert.Equal(t, uint(1), bus.events[0].UserID)
}

func TestHub_ListenIgnoresUncachedUsers(t *testing.T) {
	ctx := context.Background()
	bus := newMemoryBus()
	hub := newTestHub(storage.NewMemoryStore())
	unsub, err := hub.Listen(bus)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, bus.Publish(ctx, Event{Origin: "elsewhere", Action: ActionAdd, UserID: 42}))

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.stores)
}

func TestStore_ListenerMayReadDuringConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	s, err := newTestHub(storage.NewMemoryStore()).For(ctx, 1)
	require.NoError(t, err)

	var mu sync.Mutex
	var unreadSeen []int
	s.Subscribe(func([]models.Notification) {
		n := s.UnreadCount()
		_ = s.List(Filter{})
		mu.Lock()
		unreadSeen = append(unreadSeen, n)
		mu.Unlock()
	})

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(ctx, models.Notification{
				ID:        fmt.Sprintf("c-%d", i),
				Title:     "concurrent",
				Timestamp: base,
			})
			assert.NoError(t, err)
			assert.NoError(t, s.MarkAllAsRead(ctx))
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mutations did not finish; listener reads blocked")
	}

	assert.Len(t, s.Snapshot(), 3+writers)
	assert.Equal(t, 0, s.UnreadCount())
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, unreadSeen, 1+2*writers)
}
