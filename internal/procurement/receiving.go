package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReceiptLine struct {
	POLineID    string          `json:"po_line_id"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	DamagedQty  decimal.Decimal `json:"damaged_qty"`
}

type ReceiptRequest struct {
	PurchaseOrderID string        `json:"purchase_order_id"`
	InvoiceNumber   string        `json:"invoice_number"`
	Notes           string        `json:"notes"`
	Lines           []ReceiptLine `json:"lines"`
}

// CreateGRN records goods received against an order in the receiving stage.
// Accepted quantities (received less damaged) are booked on the order lines;
// damaged goods stay outstanding. The order becomes received and completed
// once nothing is outstanding, partially received otherwise.
func (s *Service) CreateGRN(ctx context.Context, actor models.Actor, req ReceiptRequest) (models.GRN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, err := s.loadOrder(ctx, actor, req.PurchaseOrderID)
	if err != nil {
		return models.GRN{}, err
	}
	if !workflow.CanRoleActOnStage(actor.Role, workflow.StageReceiving) {
		return models.GRN{}, ErrForbidden
	}
	if po.Stage != workflow.StageReceiving || !workflow.IsValidStatusForStage(po.Status, po.Stage) {
		return models.GRN{}, ErrInvalidState
	}

	lines, err := buildReceiptLines(po, req.Lines)
	if err != nil {
		return models.GRN{}, err
	}

	before := stageSnapshot{Status: po.Status, Stage: po.Stage}
	for _, gl := range lines {
		for i := range po.Lines {
			if po.Lines[i].ID == gl.POLineID {
				po.Lines[i].ReceivedQty = po.Lines[i].ReceivedQty.Add(gl.AcceptedQty())
			}
		}
	}
	if po.FullyReceived() {
		po.Status = models.StatusReceived
		po.Stage = workflow.StageCompleted
	} else {
		po.Status = models.StatusPartiallyReceived
	}

	now := s.now()
	seq, err := s.repo.GRNCountOn(ctx, now)
	if err != nil {
		return models.GRN{}, err
	}
	grn := models.GRN{
		ID:              newDocumentID("grn"),
		Number:          fmt.Sprintf("%s%03d", grnPrefix(now), seq+1),
		PurchaseOrderID: po.ID,
		Vendor:          po.Vendor,
		BusinessUnit:    po.BusinessUnit,
		ReceivedDate:    now,
		ReceivedBy:      actor.Name,
		InvoiceNumber:   strings.TrimSpace(req.InvoiceNumber),
		Status:          models.GRNStatusCommitted,
		Notes:           strings.TrimSpace(req.Notes),
		Lines:           lines,
	}
	for i := range grn.Lines {
		grn.Lines[i].ID = fmt.Sprintf("%s-%d", grn.ID, i+1)
	}

	if err := s.repo.SaveReceipt(ctx, grn, po); err != nil {
		return models.GRN{}, err
	}

	s.metrics.GRNCreated()
	s.writeAudit(ctx, audit.LogOptions{
		BusinessUnit: po.BusinessUnit,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		EntityType:   entityGRN,
		EntityID:     grn.ID,
		Action:       models.AuditActionCreate,
		Description:  fmt.Sprintf("Received %s against %s", grn.Number, po.Number),
		Before:       before,
		After:        stageSnapshot{Status: po.Status, Stage: po.Stage},
	})
	s.notify(ctx, models.Notification{
		Type:     models.NotificationGoodsReceipt,
		Title:    receiptTitle(po),
		Message:  fmt.Sprintf("%s recorded against %s by %s.", grn.Number, po.Number, actor.Name),
		Priority: models.PriorityMedium,
		Metadata: map[string]string{
			"grn_id":            grn.ID,
			"purchase_order_id": po.ID,
		},
	}, po.RequestorID)

	s.logger.Info("grn created",
		zap.String("grn", grn.Number),
		zap.String("po", po.Number),
		zap.String("po_status", string(po.Status)),
		zap.String("total", grn.Total().StringFixed(2)),
	)
	return grn, nil
}

func buildReceiptLines(po models.PurchaseOrder, in []ReceiptLine) ([]models.GRNLine, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrValidation)
	}

	byID := make(map[string]models.PurchaseOrderLine, len(po.Lines))
	for _, l := range po.Lines {
		byID[l.ID] = l
	}

	seen := make(map[string]bool, len(in))
	anyReceived := false
	out := make([]models.GRNLine, 0, len(in))
	for _, rl := range in {
		pl, ok := byID[rl.POLineID]
		if !ok {
			return nil, fmt.Errorf("%w: line %s is not on %s", ErrValidation, rl.POLineID, po.Number)
		}
		if seen[rl.POLineID] {
			return nil, fmt.Errorf("%w: line %s appears twice", ErrValidation, rl.POLineID)
		}
		seen[rl.POLineID] = true

		switch {
		case rl.ReceivedQty.IsNegative():
			return nil, fmt.Errorf("%w: received quantity for %s cannot be negative", ErrValidation, pl.ItemCode)
		case rl.DamagedQty.IsNegative():
			return nil, fmt.Errorf("%w: damaged quantity for %s cannot be negative", ErrValidation, pl.ItemCode)
		case rl.DamagedQty.GreaterThan(rl.ReceivedQty):
			return nil, fmt.Errorf("%w: damaged quantity for %s exceeds received", ErrValidation, pl.ItemCode)
		case rl.ReceivedQty.GreaterThan(pl.Outstanding()):
			return nil, fmt.Errorf("%w: received quantity for %s exceeds outstanding %s", ErrValidation, pl.ItemCode, pl.Outstanding())
		}
		if rl.ReceivedQty.IsPositive() {
			anyReceived = true
		}

		out = append(out, models.GRNLine{
			POLineID:    pl.ID,
			ItemCode:    pl.ItemCode,
			Description: pl.Description,
			Unit:        pl.Unit,
			OrderedQty:  pl.OrderedQty,
			ReceivedQty: rl.ReceivedQty,
			DamagedQty:  rl.DamagedQty,
			UnitPrice:   pl.UnitPrice,
		})
	}
	if !anyReceived {
		return nil, fmt.Errorf("%w: nothing was received", ErrValidation)
	}
	return out, nil
}

func receiptTitle(po models.PurchaseOrder) string {
	if po.Status == models.StatusReceived {
		return "Purchase order fully received"
	}
	return "Partial delivery recorded"
}
