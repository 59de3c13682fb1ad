package notification

import (
	"context"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/metrics"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reloadTimeout = 5 * time.Second

// Hub hands out one Store per user, loading it from the key space on first use.
type Hub struct {
	kv   storage.Store
	seed func() []models.Notification
	deps *deps

	mu     sync.Mutex
	stores map[uint]*Store
}

type HubOption func(*Hub)

func WithPublisher(p Publisher) HubOption {
	return func(h *Hub) { h.deps.publisher = p }
}

func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.deps.metrics = m }
}

func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.deps.now = now }
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(fn func() string) HubOption {
	return func(h *Hub) { h.deps.newID = fn }
}

// NewHub builds a hub; seed supplies the list used when a user has no stored
// notifications or the stored blob cannot be read.
func NewHub(kv storage.Store, seed func() []models.Notification, logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seed == nil {
		seed = func() []models.Notification { return nil }
	}
	h := &Hub{
		kv:   kv,
		seed: seed,
		deps: &deps{
			logger:     logger,
			now:        time.Now,
			newID:      newID,
			instanceID: uuid.NewString(),
		},
		stores: make(map[uint]*Store),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Hub) For(ctx context.Context, userID uint) (*Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.stores[userID]; ok {
		return s, nil
	}
	s, err := newStore(ctx, userID, h.kv, h.seed(), h.deps)
	if err != nil {
		return nil, err
	}
	h.stores[userID] = s
	return s, nil
}

// Notify adds n to every listed user's store.
func (h *Hub) Notify(ctx context.Context, n models.Notification, userIDs ...uint) error {
	for _, id := range userIDs {
		s, err := h.For(ctx, id)
		if err != nil {
			return err
		}
		n.ID = ""
		if _, err := s.Add(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Listen subscribes the hub to src. Events from other hubs reload the
// affected user's cached store so its subscribers see the change; users not
// yet cached are read fresh on first use anyway.
func (h *Hub) Listen(src EventSource) (unsubscribe func() error, err error) {
	return src.Subscribe(h.handleEvent)
}

func (h *Hub) handleEvent(ev Event) {
	if ev.Origin == h.deps.instanceID {
		return
	}
	h.mu.Lock()
	s, ok := h.stores[ev.UserID]
	h.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := s.Reload(ctx); err != nil {
		h.deps.logger.Warn("notification reload failed",
			zap.Uint("user_id", ev.UserID),
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}
