package procurement

import (
	"errors"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/gofiber/fiber/v2"
)

type DecisionRequest struct {
	Comment string `json:"comment"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Document not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, "Document status does not allow this action")
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

// GET /api/purchase-orders?status=&vendor=&business_unit=&q=
func ListPurchaseOrdersHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		f := mockdata.POFilter{
			Status:       models.DocumentStatus(c.Query("status")),
			Vendor:       strings.TrimSpace(c.Query("vendor")),
			BusinessUnit: strings.TrimSpace(c.Query("business_unit")),
			Query:        c.Query("q"),
		}
		orders, err := svc.ListPurchaseOrders(c.UserContext(), actor, f)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(orders)
	}
}

// GET /api/purchase-orders/:id
func GetPurchaseOrderHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		po, err := svc.GetPurchaseOrder(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(po)
	}
}

// GET /api/purchase-orders/:id/grns
func PurchaseOrderGRNsHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		grns, err := svc.GRNsForPurchaseOrder(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(grns)
	}
}

// GET /api/approvals
func PendingApprovalsHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		orders, err := svc.PendingApprovals(c.UserContext(), actor)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(orders)
	}
}

// POST /api/purchase-orders/:id/approve | reject | return
func DecisionHandler(svc *Service, authSvc *auth.Service, decision string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		var body DecisionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}

		var po PurchaseOrderView
		id := c.Params("id")
		switch decision {
		case DecisionApprove:
			po, err = svc.Approve(c.UserContext(), actor, id, body.Comment)
		case DecisionReject:
			po, err = svc.Reject(c.UserContext(), actor, id, body.Comment)
		case DecisionReturn:
			po, err = svc.Return(c.UserContext(), actor, id, body.Comment)
		default:
			return fiber.NewError(fiber.StatusNotFound, "Unknown decision")
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(po)
	}
}

// GET /api/grns?purchase_order_id=&business_unit=&status=&q=
func ListGRNsHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		f := mockdata.GRNFilter{
			PurchaseOrderID: c.Query("purchase_order_id"),
			BusinessUnit:    strings.TrimSpace(c.Query("business_unit")),
			Status:          models.GRNStatus(c.Query("status")),
			Query:           c.Query("q"),
		}
		grns, err := svc.ListGRNs(c.UserContext(), actor, f)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(grns)
	}
}

// GET /api/grns/:id
func GetGRNHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		grn, err := svc.GetGRN(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"grn": grn, "total": grn.Total()})
	}
}

// POST /api/grns
func CreateGRNHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		var body ReceiptRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if strings.TrimSpace(body.PurchaseOrderID) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "purchase_order_id is required")
		}

		grn, err := svc.CreateGRN(c.UserContext(), actor, body)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(grn)
	}
}
