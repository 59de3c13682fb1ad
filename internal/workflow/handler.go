package workflow

import (
	"strconv"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/workflow/stages?role=...
func ListStagesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role := c.Query("role"); role != "" {
			r := models.UserRole(role)
			if !r.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Unknown role")
			}
			stages := StagesForRole(r)
			if stages == nil {
				stages = []Stage{}
			}
			return c.JSON(stages)
		}
		return c.JSON(Stages())
	}
}

// GET /api/workflow/stages/:id
func GetStageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid stage id")
		}
		stage, ok := StageByID(models.StageID(id))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "Stage not found")
		}
		return c.JSON(stage)
	}
}

// GET /api/workflow/permissions?stage=2&status=pending[&role=...]
// Role defaults to the caller's role.
func PermissionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stageID, err := strconv.Atoi(c.Query("stage"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "stage query parameter is required")
		}
		id := models.StageID(stageID)
		if _, ok := StageByID(id); !ok {
			return fiber.NewError(fiber.StatusNotFound, "Stage not found")
		}

		role := models.UserRole(c.Query("role"))
		if role == "" {
			if role, err = auth.Role(c); err != nil {
				return err
			}
		} else if !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown role")
		}

		resp := fiber.Map{
			"stage":   id,
			"role":    role,
			"can_act": CanRoleActOnStage(role, id),
		}
		if status := c.Query("status"); status != "" {
			resp["status"] = status
			resp["status_valid"] = IsValidStatusForStage(models.DocumentStatus(status), id)
		}
		return c.JSON(resp)
	}
}
