package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CountFilter struct {
	BusinessUnit string
	Status       models.CountStatus
}

// CountView is a session with its progress.
type CountView struct {
	models.PhysicalCountSession
	Progress Progress `json:"progress"`
}

func countView(s models.PhysicalCountSession) CountView {
	return CountView{PhysicalCountSession: s, Progress: ItemsProgress(s.Items)}
}

// ListCounts returns sessions ordered by schedule, earliest first.
func (s *Service) ListCounts(ctx context.Context, actor models.Actor, f CountFilter) ([]CountView, error) {
	unit, ok := scope(actor, f.BusinessUnit)
	if !ok {
		return nil, ErrForbidden
	}
	sessions, err := s.repo.ListCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CountView, 0, len(sessions))
	for _, cs := range sessions {
		if !actor.CanAccess(cs.BusinessUnit) || (unit != "" && cs.BusinessUnit != unit) {
			continue
		}
		if f.Status != "" && cs.Status != f.Status {
			continue
		}
		out = append(out, countView(cs))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (s *Service) GetCount(ctx context.Context, actor models.Actor, id string) (CountView, error) {
	cs, err := s.loadCount(ctx, actor, id)
	if err != nil {
		return CountView{}, err
	}
	return countView(cs), nil
}

func (s *Service) loadCount(ctx context.Context, actor models.Actor, id string) (models.PhysicalCountSession, error) {
	cs, err := s.repo.GetCount(ctx, id)
	if err != nil {
		return models.PhysicalCountSession{}, err
	}
	if !actor.CanAccess(cs.BusinessUnit) {
		return models.PhysicalCountSession{}, fmt.Errorf("physical count %s: %w", id, ErrNotFound)
	}
	return cs, nil
}

// RecordCount stores the counted quantity of one item. The first count
// starts a pending session.
func (s *Service) RecordCount(ctx context.Context, actor models.Actor, sessionID, itemCode string, qty decimal.Decimal, note string) (CountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.openCount(ctx, actor, sessionID)
	if err != nil {
		return CountView{}, err
	}
	if err := recordItem(cs.Items, itemCode, qty, note, s.now()); err != nil {
		return CountView{}, fmt.Errorf("item %s: %w", itemCode, err)
	}
	if err := s.repo.SaveCount(ctx, cs); err != nil {
		return CountView{}, err
	}
	return countView(cs), nil
}

// openCount loads a session the actor may count and moves it to in progress.
func (s *Service) openCount(ctx context.Context, actor models.Actor, id string) (models.PhysicalCountSession, error) {
	if !canCount(actor.Role) {
		return models.PhysicalCountSession{}, ErrForbidden
	}
	cs, err := s.loadCount(ctx, actor, id)
	if err != nil {
		return models.PhysicalCountSession{}, err
	}
	switch cs.Status {
	case models.CountStatusPending:
		now := s.now()
		cs.Status = models.CountStatusInProgress
		cs.StartedAt = &now
		cs.CountedBy = actor.Name
	case models.CountStatusInProgress:
	default:
		return models.PhysicalCountSession{}, ErrInvalidState
	}
	return cs, nil
}

// CompleteCount closes a session once every item has been counted.
func (s *Service) CompleteCount(ctx context.Context, actor models.Actor, id string) (CountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canCount(actor.Role) {
		return CountView{}, ErrForbidden
	}
	cs, err := s.loadCount(ctx, actor, id)
	if err != nil {
		return CountView{}, err
	}
	if cs.Status != models.CountStatusInProgress || !allCounted(cs.Items) {
		return CountView{}, ErrInvalidState
	}

	now := s.now()
	cs.Status = models.CountStatusCompleted
	cs.CompletedAt = &now
	if err := s.repo.SaveCount(ctx, cs); err != nil {
		return CountView{}, err
	}

	view := countView(cs)
	s.writeAudit(ctx, audit.LogOptions{
		BusinessUnit: cs.BusinessUnit,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		EntityType:   entityPhysicalCount,
		EntityID:     cs.ID,
		Action:       models.AuditActionComplete,
		Description:  fmt.Sprintf("Completed physical count of %s, variance %s", cs.Location, view.Progress.VarianceValue.StringFixed(2)),
		After:        view.Progress,
	})
	s.logger.Info("physical count completed",
		zap.String("session_id", cs.ID),
		zap.String("business_unit", cs.BusinessUnit),
		zap.Int("items", view.Progress.Total),
	)
	return view, nil
}

// DueCounts lists pending sessions scheduled at or before asOf, across all units.
func (s *Service) DueCounts(ctx context.Context, asOf time.Time) ([]models.PhysicalCountSession, error) {
	sessions, err := s.repo.ListCounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.PhysicalCountSession
	for _, cs := range sessions {
		if cs.Status == models.CountStatusPending && !cs.ScheduledFor.After(asOf) {
			out = append(out, cs)
		}
	}
	return out, nil
}
