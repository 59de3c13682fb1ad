// Package dashboard builds the home screen summary for a user.
package dashboard

import (
	"context"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/inventory"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/notification"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/procurement"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Summary struct {
	UserID                   uint                          `json:"user_id"`
	Role                     models.UserRole               `json:"role"`
	BusinessUnit             string                        `json:"business_unit"`
	PendingApprovals         int                           `json:"pending_approvals"`
	PurchaseOrdersByStatus   map[models.DocumentStatus]int `json:"purchase_orders_by_status"`
	AwaitingReceipt          int                           `json:"awaiting_receipt"`
	OutstandingValue         decimal.Decimal               `json:"outstanding_value"`
	CountsPending            int                           `json:"counts_pending"`
	CountsInProgress         int                           `json:"counts_in_progress"`
	OpenSpotChecks           int                           `json:"open_spot_checks"`
	SpotChecksAwaitingReview int                           `json:"spot_checks_awaiting_review"`
	LowStockItems            int                           `json:"low_stock_items"`
	UnreadNotifications      int                           `json:"unread_notifications"`
}

type Service struct {
	procurement *procurement.Service
	inventory   *inventory.Service
	hub         *notification.Hub
}

func NewService(proc *procurement.Service, inv *inventory.Service, hub *notification.Hub) *Service {
	return &Service{procurement: proc, inventory: inv, hub: hub}
}

// Build summarises what is waiting for the actor in the selected unit, or
// across all of the actor's units when none is selected.
func (s *Service) Build(ctx context.Context, actor models.Actor) (Summary, error) {
	sum := Summary{
		UserID:                 actor.UserID,
		Role:                   actor.Role,
		BusinessUnit:           actor.SelectedUnit,
		PurchaseOrdersByStatus: make(map[models.DocumentStatus]int),
		OutstandingValue:       decimal.Zero,
	}

	orders, err := s.procurement.ListPurchaseOrders(ctx, actor, mockdata.POFilter{})
	if err != nil {
		return Summary{}, err
	}
	for _, po := range orders {
		sum.PurchaseOrdersByStatus[po.Status]++
		if po.Stage == workflow.StageReceiving {
			sum.AwaitingReceipt++
			for _, l := range po.Lines {
				sum.OutstandingValue = sum.OutstandingValue.Add(l.Outstanding().Mul(l.UnitPrice))
			}
		}
	}

	approvals, err := s.procurement.PendingApprovals(ctx, actor)
	if err != nil {
		return Summary{}, err
	}
	sum.PendingApprovals = len(approvals)

	counts, err := s.inventory.ListCounts(ctx, actor, inventory.CountFilter{})
	if err != nil {
		return Summary{}, err
	}
	for _, cs := range counts {
		switch cs.Status {
		case models.CountStatusPending:
			sum.CountsPending++
		case models.CountStatusInProgress:
			sum.CountsInProgress++
		}
	}

	checks, err := s.inventory.ListSpotChecks(ctx, actor, inventory.SpotCheckFilter{})
	if err != nil {
		return Summary{}, err
	}
	for _, sc := range checks {
		switch sc.Status {
		case models.CountStatusPendingReview:
			sum.SpotChecksAwaitingReview++
			sum.OpenSpotChecks++
		case models.CountStatusPending, models.CountStatusInProgress:
			sum.OpenSpotChecks++
		}
	}

	low, err := s.inventory.Items(ctx, actor, mockdata.ItemFilter{LowStock: true})
	if err != nil {
		return Summary{}, err
	}
	sum.LowStockItems = len(low)

	store, err := s.hub.For(ctx, actor.UserID)
	if err != nil {
		return Summary{}, err
	}
	sum.UnreadNotifications = store.UnreadCount()

	return sum, nil
}

// GET /api/dashboard/summary
func SummaryHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		sum, err := svc.Build(c.UserContext(), actor)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dashboard could not be loaded")
		}
		return c.JSON(sum)
	}
}
