// Package notification keeps each user's notification list in the key space
// and pushes every change to subscribers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/metrics"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("notification not found")

const (
	ActionAdd         = "add"
	ActionMarkRead    = "mark_read"
	ActionMarkAllRead = "mark_all_read"
	ActionDelete      = "delete"
)

// Listener receives a private copy of the full list.
type Listener func([]models.Notification)

type Filter struct {
	UnreadOnly bool
	Type       models.NotificationType
	Priority   models.NotificationPriority
}

func (f Filter) match(n models.Notification) bool {
	if f.UnreadOnly && n.IsRead {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	return true
}

type subscription struct {
	id uint64
	fn Listener
}

// Store holds one user's notifications. Mutations re-read the stored list,
// apply the change, persist it, then deliver it to listeners in subscription
// order. Listeners run synchronously; they may call the read methods but must
// not call Subscribe, Reload or any mutating method.
type Store struct {
	userID uint
	scope  string
	kv     storage.Store
	deps   *deps

	mu        sync.Mutex
	items     []models.Notification
	listeners []subscription
	nextSubID uint64

	// Taken before mu by every writer and held through delivery, so
	// listeners see changes in mutation order while readers only need mu.
	deliverMu sync.Mutex
}

// deps are shared by every store created by a Hub.
type deps struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	// instanceID marks events published by this process.
	instanceID string
}

func newStore(ctx context.Context, userID uint, kv storage.Store, seed []models.Notification, d *deps) (*Store, error) {
	s := &Store{
		userID: userID,
		scope:  storage.UserScope(userID),
		kv:     kv,
		deps:   d,
	}

	items, err := s.load(ctx, seed)
	if err != nil {
		return nil, err
	}
	s.items = items
	return s, nil
}

// load reads the stored list, falling back to fallback when it is absent or
// unreadable.
func (s *Store) load(ctx context.Context, fallback []models.Notification) ([]models.Notification, error) {
	var items []models.Notification
	found, err := storage.GetJSON(ctx, s.kv, s.scope, storage.KeyNotifications, &items)
	switch {
	case errors.Is(err, storage.ErrMalformed):
		s.deps.logger.Warn("unreadable notifications blob, using fallback list", zap.Uint("user_id", s.userID), zap.Error(err))
		return cloneAll(fallback), nil
	case err != nil:
		return nil, fmt.Errorf("load notifications: %w", err)
	case !found:
		return cloneAll(fallback), nil
	}
	return items, nil
}

// Subscribe registers fn, calls it immediately with the current list and
// again after every mutation. The returned func unsubscribes.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.deliverMu.Lock()
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	snapshot := cloneAll(s.items)
	s.mu.Unlock()

	fn(snapshot)
	s.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns a copy of the list in stored order.
func (s *Store) Snapshot() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.items)
}

// List returns the matching notifications, newest first.
func (s *Store) List(f Filter) []models.Notification {
	s.mu.Lock()
	out := make([]models.Notification, 0, len(s.items))
	for _, n := range s.items {
		if f.match(n) {
			out = append(out, n.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	return s.mutate(ctx, ActionMarkRead, id, func(items []models.Notification) ([]models.Notification, error) {
		found := false
		next := make([]models.Notification, len(items))
		for i, n := range items {
			next[i] = n
			if n.ID == id {
				next[i].IsRead = true
				found = true
			}
		}
		if !found {
			return nil, ErrNotFound
		}
		return next, nil
	})
}

func (s *Store) MarkAllAsRead(ctx context.Context) error {
	return s.mutate(ctx, ActionMarkAllRead, "", func(items []models.Notification) ([]models.Notification, error) {
		next := make([]models.Notification, len(items))
		for i, n := range items {
			next[i] = n
			next[i].IsRead = true
		}
		return next, nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, ActionDelete, id, func(items []models.Notification) ([]models.Notification, error) {
		next := make([]models.Notification, 0, len(items))
		for _, n := range items {
			if n.ID != id {
				next = append(next, n)
			}
		}
		if len(next) == len(items) {
			return nil, ErrNotFound
		}
		return next, nil
	})
}

// Add prepends n. Missing id and timestamp are filled in; new entries are unread.
func (s *Store) Add(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = s.deps.newID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.deps.now()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}
	n.IsRead = false
	n = n.Clone()

	err := s.mutate(ctx, ActionAdd, n.ID, func(items []models.Notification) ([]models.Notification, error) {
		next := make([]models.Notification, 0, len(items)+1)
		next = append(next, n)
		next = append(next, items...)
		return next, nil
	})
	return n.Clone(), err
}

func (s *Store) mutate(ctx context.Context, action, id string, fn func([]models.Notification) ([]models.Notification, error)) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	current, err := s.load(ctx, s.items)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := storage.SetJSON(ctx, s.kv, s.scope, storage.KeyNotifications, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist notifications: %w", err)
	}
	s.items = next
	listeners := s.listenersLocked()
	s.mu.Unlock()

	for _, l := range listeners {
		l(cloneAll(next))
	}

	s.deps.metrics.NotificationChanged(action)
	if s.deps.publisher != nil {
		ev := Event{
			Origin:         s.deps.instanceID,
			Action:         action,
			UserID:         s.userID,
			NotificationID: id,
			Timestamp:      s.deps.now(),
		}
		if err := s.deps.publisher.Publish(ctx, ev); err != nil {
			s.deps.logger.Warn("notification event not published", zap.String("action", action), zap.Error(err))
		}
	}
	return nil
}

// Reload replaces the cached list with the stored one and delivers it to
// listeners. Hubs call it when another instance reports a change for this user.
func (s *Store) Reload(ctx context.Context) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	items, err := s.load(ctx, s.items)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = items
	listeners := s.listenersLocked()
	s.mu.Unlock()

	for _, l := range listeners {
		l(cloneAll(items))
	}
	return nil
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		out[i] = sub.fn
	}
	return out
}

func cloneAll(items []models.Notification) []models.Notification {
	out := make([]models.Notification, len(items))
	for i, n := range items {
		out[i] = n.Clone()
	}
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
