package audit

import (
	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs
func ListAuditLogsHandler(rec Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType:   c.Query("entity_type"),
			EntityID:     c.Query("entity_id"),
			BusinessUnit: c.Query("business_unit"),
			Limit:        c.QueryInt("limit", defaultLimit),
		}

		logs, err := rec.List(c.UserContext(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logs could not be loaded")
		}
		return c.JSON(logs)
	}
}
