package inventory

import (
	"errors"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RecordCountRequest struct {
	CountedQty decimal.Decimal `json:"counted_qty"`
	Note       string          `json:"note"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Record not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, "Status does not allow this action")
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

// GET /api/inventory/items?business_unit=&location=&category=&low_stock=true&q=
func ListItemsHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		items, err := svc.Items(c.UserContext(), actor, mockdata.ItemFilter{
			BusinessUnit: strings.TrimSpace(c.Query("business_unit")),
			Location:     strings.TrimSpace(c.Query("location")),
			Category:     strings.TrimSpace(c.Query("category")),
			LowStock:     c.QueryBool("low_stock", false),
			Query:        c.Query("q"),
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(items)
	}
}

// GET /api/physical-counts?business_unit=&status=
func ListCountsHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		counts, err := svc.ListCounts(c.UserContext(), actor, CountFilter{
			BusinessUnit: strings.TrimSpace(c.Query("business_unit")),
			Status:       models.CountStatus(c.Query("status")),
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(counts)
	}
}

// GET /api/physical-counts/:id
func GetCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		count, err := svc.GetCount(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(count)
	}
}

// PUT /api/physical-counts/:id/items/:code
func RecordCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		var body RecordCountRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		count, err := svc.RecordCount(c.UserContext(), actor, c.Params("id"), c.Params("code"), body.CountedQty, strings.TrimSpace(body.Note))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(count)
	}
}

// POST /api/physical-counts/:id/complete
func CompleteCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		count, err := svc.CompleteCount(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(count)
	}
}

// GET /api/physical-counts/:id/export
func ExportCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		buf, name, err := svc.ExportCount(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		c.Attachment(name)
		c.Set(fiber.HeaderContentType, XLSXContentType)
		return c.Send(buf.Bytes())
	}
}

// POST /api/physical-counts/:id/import (multipart, field "file")
func ImportCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File could not be uploaded")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx files are accepted")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File could not be opened")
		}
		defer file.Close()

		res, err := svc.ImportCount(c.UserContext(), actor, c.Params("id"), file)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	}
}

// GET /api/spot-checks?business_unit=&status=
func ListSpotChecksHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		checks, err := svc.ListSpotChecks(c.UserContext(), actor, SpotCheckFilter{
			BusinessUnit: strings.TrimSpace(c.Query("business_unit")),
			Status:       models.CountStatus(c.Query("status")),
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(checks)
	}
}

// POST /api/spot-checks
func CreateSpotCheckHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		var body SpotCheckRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		sc, err := svc.CreateSpotCheck(c.UserContext(), actor, body)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sc)
	}
}

// GET /api/spot-checks/:id
func GetSpotCheckHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		sc, err := svc.GetSpotCheck(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sc)
	}
}

// PUT /api/spot-checks/:id/items/:code
func RecordSpotCountHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		var body RecordCountRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		sc, err := svc.RecordSpotCount(c.UserContext(), actor, c.Params("id"), c.Params("code"), body.CountedQty, strings.TrimSpace(body.Note))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sc)
	}
}

// POST /api/spot-checks/:id/submit
func SubmitSpotCheckHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		sc, err := svc.SubmitSpotCheck(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sc)
	}
}

// POST /api/spot-checks/:id/review
func ReviewSpotCheckHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		sc, err := svc.ReviewSpotCheck(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sc)
	}
}

// GET /api/spot-checks/:id/export
func ExportSpotCheckHandler(svc *Service, authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c, authSvc)
		if err != nil {
			return err
		}
		buf, name, err := svc.ExportSpotCheck(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		c.Attachment(name)
		c.Set(fiber.HeaderContentType, XLSXContentType)
		return c.Send(buf.Bytes())
	}
}
