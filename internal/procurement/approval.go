package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"

	"go.uber.org/zap"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionReturn  = "return"
)

type stageSnapshot struct {
	Status models.DocumentStatus `json:"status"`
	Stage  models.StageID        `json:"stage"`
}

// PendingApprovals lists the orders waiting on the actor's role. Orders in
// the receiving stage are handled through GRNs and are not listed here.
func (s *Service) PendingApprovals(ctx context.Context, actor models.Actor) ([]PurchaseOrderView, error) {
	unit, ok := scope(actor, "")
	if !ok {
		return nil, ErrForbidden
	}
	orders, err := s.repo.ListPurchaseOrders(ctx, mockdata.POFilter{BusinessUnit: unit})
	if err != nil {
		return nil, err
	}

	out := make([]PurchaseOrderView, 0)
	for _, po := range orders {
		if !actor.CanAccess(po.BusinessUnit) || po.Stage == workflow.StageReceiving {
			continue
		}
		if workflow.CanRoleActOnStage(actor.Role, po.Stage) && workflow.IsValidStatusForStage(po.Status, po.Stage) {
			out = append(out, s.view(actor, po))
		}
	}
	return out, nil
}

// Approve moves the order to the next stage. Orders entering receiving become
// approved; every other stage expects a pending order.
func (s *Service) Approve(ctx context.Context, actor models.Actor, id, comment string) (PurchaseOrderView, error) {
	return s.decide(ctx, actor, id, DecisionApprove, comment, func(po *models.PurchaseOrder) error {
		next, ok := workflow.NextStage(po.Stage)
		if !ok {
			return ErrInvalidState
		}
		po.Stage = next.ID
		if next.ID == workflow.StageReceiving {
			po.Status = models.StatusApproved
		} else {
			po.Status = models.StatusPending
		}
		return nil
	})
}

// Reject closes the order as rejected. A reason is required.
func (s *Service) Reject(ctx context.Context, actor models.Actor, id, reason string) (PurchaseOrderView, error) {
	if strings.TrimSpace(reason) == "" {
		return PurchaseOrderView{}, fmt.Errorf("%w: a reason is required", ErrValidation)
	}
	return s.decide(ctx, actor, id, DecisionReject, reason, func(po *models.PurchaseOrder) error {
		po.Stage = workflow.StageCompleted
		po.Status = models.StatusRejected
		return nil
	})
}

// Return sends the order back to the requestor. A reason is required.
func (s *Service) Return(ctx context.Context, actor models.Actor, id, reason string) (PurchaseOrderView, error) {
	if strings.TrimSpace(reason) == "" {
		return PurchaseOrderView{}, fmt.Errorf("%w: a reason is required", ErrValidation)
	}
	return s.decide(ctx, actor, id, DecisionReturn, reason, func(po *models.PurchaseOrder) error {
		if po.Stage == workflow.StageRequestCreation {
			return ErrInvalidState
		}
		po.Stage = workflow.StageRequestCreation
		po.Status = models.StatusReturned
		return nil
	})
}

func (s *Service) decide(ctx context.Context, actor models.Actor, id, decision, comment string, apply func(*models.PurchaseOrder) error) (PurchaseOrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return PurchaseOrderView{}, err
	}
	if !workflow.CanRoleActOnStage(actor.Role, po.Stage) {
		return PurchaseOrderView{}, ErrForbidden
	}
	if po.Stage == workflow.StageReceiving || !workflow.IsValidStatusForStage(po.Status, po.Stage) {
		return PurchaseOrderView{}, ErrInvalidState
	}

	before := stageSnapshot{Status: po.Status, Stage: po.Stage}
	if err := apply(&po); err != nil {
		return PurchaseOrderView{}, err
	}
	if err := s.repo.UpdatePurchaseOrder(ctx, po); err != nil {
		return PurchaseOrderView{}, err
	}
	after := stageSnapshot{Status: po.Status, Stage: po.Stage}

	s.metrics.ApprovalDecision(decision)
	s.writeAudit(ctx, audit.LogOptions{
		BusinessUnit: po.BusinessUnit,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		EntityType:   entityPurchaseOrder,
		EntityID:     po.ID,
		Action:       auditAction(decision),
		Description:  describeDecision(decision, po.Number, comment),
		Before:       before,
		After:        after,
	})
	s.notify(ctx, decisionNotification(decision, po, actor, comment), po.RequestorID)

	s.logger.Info("purchase order decision",
		zap.String("po", po.Number),
		zap.String("decision", decision),
		zap.String("status", string(po.Status)),
		zap.Int("stage", int(po.Stage)),
		zap.Uint("user_id", actor.UserID),
	)
	return s.view(actor, po), nil
}

func auditAction(decision string) models.AuditAction {
	switch decision {
	case DecisionReject:
		return models.AuditActionReject
	case DecisionReturn:
		return models.AuditActionReturn
	default:
		return models.AuditActionApprove
	}
}

func describeDecision(decision, number, comment string) string {
	var msg string
	switch decision {
	case DecisionReject:
		msg = fmt.Sprintf("Rejected purchase order %s", number)
	case DecisionReturn:
		msg = fmt.Sprintf("Returned purchase order %s to requestor", number)
	default:
		msg = fmt.Sprintf("Approved purchase order %s", number)
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		msg += ": " + comment
	}
	return msg
}

func decisionNotification(decision string, po models.PurchaseOrder, actor models.Actor, comment string) models.Notification {
	n := models.Notification{
		Type:     models.NotificationApproval,
		Priority: models.PriorityMedium,
		Metadata: map[string]string{
			"purchase_order_id": po.ID,
			"decision":          decision,
		},
	}
	switch decision {
	case DecisionReject:
		n.Title = "Purchase order rejected"
		n.Message = fmt.Sprintf("%s was rejected by %s.", po.Number, actor.Name)
		n.Priority = models.PriorityHigh
	case DecisionReturn:
		n.Title = "Purchase order returned"
		n.Message = fmt.Sprintf("%s was returned by %s for changes.", po.Number, actor.Name)
		n.Priority = models.PriorityHigh
	default:
		if po.Stage == workflow.StageReceiving {
			n.Type = models.NotificationPurchaseOrder
			n.Title = "Purchase order approved"
			n.Message = fmt.Sprintf("%s from %s is approved and ready for receiving.", po.Number, po.Vendor)
		} else {
			n.Title = "Purchase order moved forward"
			n.Message = fmt.Sprintf("%s was approved by %s and awaits the next approval.", po.Number, actor.Name)
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		n.Message += " " + comment
	}
	return n
}
