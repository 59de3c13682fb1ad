package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type BusinessUnitResponse struct {
	ID        uint   `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

type CreateBusinessUnitRequest struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   *string `json:"phone"` // optional
}

type UpdateBusinessUnitRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

func toBusinessUnitResponse(bu models.BusinessUnit) BusinessUnitResponse {
	return BusinessUnitResponse{
		ID:        bu.ID,
		Code:      bu.Code,
		Name:      bu.Name,
		Address:   bu.Address,
		Phone:     bu.Phone,
		CreatedAt: bu.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/admin/business-units
func CreateBusinessUnitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBusinessUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
		body.Name = strings.TrimSpace(body.Name)
		if body.Code == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Business unit code and name are required")
		}

		bu := models.BusinessUnit{
			Code:    body.Code,
			Name:    body.Name,
			Address: strings.TrimSpace(body.Address),
		}
		if body.Phone != nil {
			bu.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := svc.units.Create(c.UserContext(), &bu); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fiber.NewError(fiber.StatusConflict, "Business unit code is already in use")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Business unit could not be created")
		}
		svc.write(c.UserContext(), actorOf(c), audit.LogOptions{
			BusinessUnit: bu.Code,
			EntityType:   "business_unit",
			EntityID:     fmt.Sprint(bu.ID),
			Action:       models.AuditActionCreate,
			Description:  "Created business unit " + bu.Name,
			After:        toBusinessUnitResponse(bu),
		})

		return c.Status(fiber.StatusCreated).JSON(toBusinessUnitResponse(bu))
	}
}

// GET /api/admin/business-units
func ListBusinessUnitsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		units, err := svc.units.List(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Business units could not be listed")
		}

		res := make([]BusinessUnitResponse, 0, len(units))
		for _, bu := range units {
			res = append(res, toBusinessUnitResponse(bu))
		}
		return c.JSON(res)
	}
}

// GET /api/admin/business-units/:id
func GetBusinessUnitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid business unit id")
		}

		bu, err := svc.units.FindByID(c.UserContext(), uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Business unit not found")
		}
		return c.JSON(toBusinessUnitResponse(*bu))
	}
}

// PUT /api/admin/business-units/:id
func UpdateBusinessUnitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid business unit id")
		}

		bu, err := svc.units.FindByID(c.UserContext(), uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Business unit not found")
		}
		before := toBusinessUnitResponse(*bu)

		var body UpdateBusinessUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Business unit name cannot be empty")
			}
			bu.Name = name
		}
		if body.Address != nil {
			bu.Address = strings.TrimSpace(*body.Address)
		}
		if body.Phone != nil {
			bu.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := svc.units.Update(c.UserContext(), bu); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Business unit could not be updated")
		}
		svc.write(c.UserContext(), actorOf(c), audit.LogOptions{
			BusinessUnit: bu.Code,
			EntityType:   "business_unit",
			EntityID:     fmt.Sprint(bu.ID),
			Action:       models.AuditActionUpdate,
			Description:  "Updated business unit " + bu.Name,
			Before:       before,
			After:        toBusinessUnitResponse(*bu),
		})

		return c.JSON(toBusinessUnitResponse(*bu))
	}
}

// DELETE /api/admin/business-units/:id
func DeleteBusinessUnitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid business unit id")
		}

		bu, err := svc.units.FindByID(c.UserContext(), uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Business unit not found")
		}
		if err := svc.units.Delete(c.UserContext(), bu.ID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Business unit could not be deleted")
		}
		svc.write(c.UserContext(), actorOf(c), audit.LogOptions{
			BusinessUnit: bu.Code,
			EntityType:   "business_unit",
			EntityID:     fmt.Sprint(bu.ID),
			Action:       models.AuditActionDelete,
			Description:  "Deleted business unit " + bu.Name,
			Before:       toBusinessUnitResponse(*bu),
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// actorOf reads the caller from the JWT locals; only id and email are needed
// for audit entries.
func actorOf(c *fiber.Ctx) models.Actor {
	id, _ := auth.UserID(c)
	email, _ := c.Locals(auth.CtxEmailKey).(string)
	role, _ := auth.Role(c)
	return models.Actor{UserID: id, Name: email, Role: role}
}
