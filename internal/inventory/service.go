// Package inventory serves stock items, physical count sessions and spot
// checks, and exchanges count sheets as spreadsheets.
package inventory

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrForbidden    = errors.New("action not allowed for this user")
	ErrInvalidState = errors.New("status does not allow this action")
	ErrValidation   = errors.New("invalid input")
)

const (
	entityPhysicalCount = "physical_count"
	entitySpotCheck     = "spot_check"
)

var (
	countingRoles  = []models.UserRole{models.RoleAdmin, models.RoleStoreKeeper, models.RoleInventoryController}
	reviewingRoles = []models.UserRole{models.RoleAdmin, models.RoleInventoryController}
)

func canCount(role models.UserRole) bool { return slices.Contains(countingRoles, role) }
func canReview(role models.UserRole) bool { return slices.Contains(reviewingRoles, role) }

type Service struct {
	repo   Repository
	audit  audit.Recorder
	logger *zap.Logger
	now    func() time.Time
	rng    *rand.Rand

	mu sync.Mutex
}

type Option func(*Service)

func WithAudit(rec audit.Recorder) Option { return func(s *Service) { s.audit = rec } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRand fixes the source used for random spot check samples.
func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func scope(actor models.Actor, requested string) (string, bool) {
	unit := actor.ScopeUnit(requested)
	if unit != "" && !actor.CanAccess(unit) {
		return "", false
	}
	return unit, true
}

// Items lists stock items visible to the actor, sorted by name.
func (s *Service) Items(ctx context.Context, actor models.Actor, f mockdata.ItemFilter) ([]models.InventoryItem, error) {
	unit, ok := scope(actor, f.BusinessUnit)
	if !ok {
		return nil, ErrForbidden
	}
	f.BusinessUnit = unit

	items, err := s.repo.ListItems(ctx, f)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if actor.CanAccess(it.BusinessUnit) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Progress summarises how much of a count has been done.
type Progress struct {
	Counted       int             `json:"counted"`
	Total         int             `json:"total"`
	Percent       int             `json:"percent"`
	VarianceValue decimal.Decimal `json:"variance_value"`
}

// ItemsProgress computes progress over count items; an empty list is 0%.
func ItemsProgress(items []models.CountItem) Progress {
	p := Progress{Total: len(items), VarianceValue: decimal.Zero}
	for _, it := range items {
		if it.Counted() {
			p.Counted++
			p.VarianceValue = p.VarianceValue.Add(it.VarianceValue())
		}
	}
	if p.Total > 0 {
		p.Percent = p.Counted * 100 / p.Total
	}
	return p
}

func allCounted(items []models.CountItem) bool {
	for _, it := range items {
		if !it.Counted() {
			return false
		}
	}
	return true
}

// recordItem sets the counted quantity of one item. Returns ErrNotFound when
// the code is not part of the list.
func recordItem(items []models.CountItem, code string, qty decimal.Decimal, note string, at time.Time) error {
	if qty.IsNegative() {
		return errors.Join(ErrValidation, errors.New("counted quantity cannot be negative"))
	}
	for i := range items {
		if items[i].ItemCode == code {
			q := qty
			t := at
			items[i].CountedQty = &q
			items[i].CountedAt = &t
			items[i].Note = note
			return nil
		}
	}
	return ErrNotFound
}

func (s *Service) writeAudit(ctx context.Context, opts audit.LogOptions) {
	if s.audit == nil {
		return
	}
	if err := s.audit.WriteLog(ctx, opts); err != nil {
		s.logger.Error("audit entry not written", zap.String("entity_id", opts.EntityID), zap.Error(err))
	}
}
