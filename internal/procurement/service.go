// Package procurement serves purchase orders and GRNs, moves orders through
// the approval stages and records goods received against them.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/metrics"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrForbidden    = errors.New("action not allowed for this user")
	ErrInvalidState = errors.New("document status does not allow this action")
	ErrValidation   = errors.New("invalid input")
)

const (
	entityPurchaseOrder = "purchase_order"
	entityGRN           = "grn"
)

// Notifier delivers a notification to users. *notification.Hub satisfies it.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification, userIDs ...uint) error
}

type Service struct {
	repo     Repository
	audit    audit.Recorder
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	// serialises read-validate-write sequences on documents
	mu sync.Mutex
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithAudit(rec audit.Recorder) Option { return func(s *Service) { s.audit = rec } }

func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PurchaseOrderView adds the computed fields clients display with an order.
type PurchaseOrderView struct {
	models.PurchaseOrder
	Total     decimal.Decimal `json:"total"`
	StageName string          `json:"stage_name"`
	CanAct    bool            `json:"can_act"`
}

func (s *Service) view(actor models.Actor, po models.PurchaseOrder) PurchaseOrderView {
	v := PurchaseOrderView{
		PurchaseOrder: po,
		Total:         PurchaseOrderTotal(po),
		CanAct:        workflow.CanRoleActOnStage(actor.Role, po.Stage) && workflow.IsValidStatusForStage(po.Status, po.Stage),
	}
	if st, ok := workflow.StageByID(po.Stage); ok {
		v.StageName = st.Name
	}
	return v
}

// PurchaseOrderTotal is the ordered value of all lines.
func PurchaseOrderTotal(po models.PurchaseOrder) decimal.Decimal {
	return po.Total()
}

// scope applies the actor's unit restriction to a requested unit filter.
// ok is false when the actor may not see the requested unit.
func scope(actor models.Actor, requested string) (unit string, ok bool) {
	unit = actor.ScopeUnit(requested)
	if unit != "" && !actor.CanAccess(unit) {
		return "", false
	}
	return unit, true
}

func (s *Service) ListPurchaseOrders(ctx context.Context, actor models.Actor, f mockdata.POFilter) ([]PurchaseOrderView, error) {
	unit, ok := scope(actor, f.BusinessUnit)
	if !ok {
		return nil, ErrForbidden
	}
	f.BusinessUnit = unit

	orders, err := s.repo.ListPurchaseOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]PurchaseOrderView, 0, len(orders))
	for _, po := range orders {
		if actor.CanAccess(po.BusinessUnit) {
			out = append(out, s.view(actor, po))
		}
	}
	return out, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, actor models.Actor, id string) (PurchaseOrderView, error) {
	po, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return PurchaseOrderView{}, err
	}
	return s.view(actor, po), nil
}

func (s *Service) loadOrder(ctx context.Context, actor models.Actor, id string) (models.PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	if !actor.CanAccess(po.BusinessUnit) {
		return models.PurchaseOrder{}, fmt.Errorf("purchase order %s: %w", id, ErrNotFound)
	}
	return po, nil
}

func (s *Service) ListGRNs(ctx context.Context, actor models.Actor, f mockdata.GRNFilter) ([]models.GRN, error) {
	unit, ok := scope(actor, f.BusinessUnit)
	if !ok {
		return nil, ErrForbidden
	}
	f.BusinessUnit = unit

	grns, err := s.repo.ListGRNs(ctx, f)
	if err != nil {
		return nil, err
	}
	out := grns[:0]
	for _, g := range grns {
		if actor.CanAccess(g.BusinessUnit) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Service) GetGRN(ctx context.Context, actor models.Actor, id string) (models.GRN, error) {
	g, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return models.GRN{}, err
	}
	if !actor.CanAccess(g.BusinessUnit) {
		return models.GRN{}, fmt.Errorf("grn %s: %w", id, ErrNotFound)
	}
	return g, nil
}

// GRNsForPurchaseOrder lists the receipts recorded against one order.
func (s *Service) GRNsForPurchaseOrder(ctx context.Context, actor models.Actor, poID string) ([]models.GRN, error) {
	po, err := s.loadOrder(ctx, actor, poID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListGRNs(ctx, mockdata.GRNFilter{PurchaseOrderID: po.ID})
}

func (s *Service) writeAudit(ctx context.Context, opts audit.LogOptions) {
	if s.audit == nil {
		return
	}
	if err := s.audit.WriteLog(ctx, opts); err != nil {
		s.logger.Error("audit entry not written", zap.String("entity_id", opts.EntityID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, n models.Notification, userID uint) {
	if s.notifier == nil || userID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, n, userID); err != nil {
		s.logger.Warn("notification not delivered", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func newDocumentID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
