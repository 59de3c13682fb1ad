// Package server assembles the HTTP API.
package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/admin"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/dashboard"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/inventory"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/notification"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/procurement"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/workflow"
)

// Deps are the services the routes are bound to.
type Deps struct {
	Auth          *auth.Service
	Admin         *admin.Service
	Audit         audit.Recorder
	Notifications *notification.Hub
	Procurement   *procurement.Service
	Inventory     *inventory.Service
	Dashboard     *dashboard.Service

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer    prometheus.Gatherer
	CORSOrigins string
	// AccessLog enables per-request logging.
	AccessLog bool
}

// New builds the fiber app with every route registered.
func New(d Deps, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "cmobile",
		ErrorHandler: errorHandler(logger),
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(d.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/bootstrap", auth.BootstrapAdminHandler(d.Auth))
	api.Post("/auth/login", auth.LoginHandler(d.Auth))
	api.Get("/auth/lockout", auth.LockoutStatusHandler(d.Auth))

	// Workflow tables are static and public
	api.Get("/workflow/stages", workflow.ListStagesHandler())
	api.Get("/workflow/stages/:id", workflow.GetStageHandler())

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(d.Auth))

	protected.Get("/workflow/permissions", workflow.PermissionHandler())

	protected.Get("/auth/me", auth.MeHandler(d.Auth))
	protected.Post("/auth/logout", auth.LogoutHandler(d.Auth))
	protected.Get("/auth/session", auth.SessionStatusHandler(d.Auth))
	protected.Post("/auth/session/extend", auth.ExtendSessionHandler(d.Auth))
	protected.Put("/auth/password", auth.ChangePasswordHandler(d.Auth))
	protected.Put("/auth/business-unit", auth.SelectBusinessUnitHandler(d.Auth))
	protected.Get("/business-units", auth.MyBusinessUnitsHandler(d.Auth))

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/business-units", admin.CreateBusinessUnitHandler(d.Admin))
	adminRoutes.Get("/business-units", admin.ListBusinessUnitsHandler(d.Admin))
	adminRoutes.Get("/business-units/:id", admin.GetBusinessUnitHandler(d.Admin))
	adminRoutes.Put("/business-units/:id", admin.UpdateBusinessUnitHandler(d.Admin))
	adminRoutes.Delete("/business-units/:id", admin.DeleteBusinessUnitHandler(d.Admin))
	adminRoutes.Post("/users", admin.CreateUserHandler(d.Admin))
	adminRoutes.Get("/users", admin.ListUsersHandler(d.Admin))
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(d.Audit))

	// Notifications; static paths before :id
	protected.Get("/notifications", notification.ListNotificationsHandler(d.Notifications))
	protected.Get("/notifications/unread-count", notification.UnreadCountHandler(d.Notifications))
	protected.Get("/notifications/stream", notification.StreamHandler(d.Notifications))
	protected.Put("/notifications/read-all", notification.MarkAllReadHandler(d.Notifications))
	protected.Put("/notifications/:id/read", notification.MarkReadHandler(d.Notifications))
	protected.Delete("/notifications/:id", notification.DeleteNotificationHandler(d.Notifications))
	protected.Post("/notifications", auth.RequireRole(models.RoleAdmin), notification.CreateNotificationHandler(d.Notifications))

	// Purchasing
	protected.Get("/purchase-orders", procurement.ListPurchaseOrdersHandler(d.Procurement, d.Auth))
	protected.Get("/purchase-orders/:id", procurement.GetPurchaseOrderHandler(d.Procurement, d.Auth))
	protected.Get("/purchase-orders/:id/grns", procurement.PurchaseOrderGRNsHandler(d.Procurement, d.Auth))
	protected.Post("/purchase-orders/:id/approve", procurement.DecisionHandler(d.Procurement, d.Auth, procurement.DecisionApprove))
	protected.Post("/purchase-orders/:id/reject", procurement.DecisionHandler(d.Procurement, d.Auth, procurement.DecisionReject))
	protected.Post("/purchase-orders/:id/return", procurement.DecisionHandler(d.Procurement, d.Auth, procurement.DecisionReturn))
	protected.Get("/approvals", procurement.PendingApprovalsHandler(d.Procurement, d.Auth))
	protected.Get("/grns", procurement.ListGRNsHandler(d.Procurement, d.Auth))
	protected.Get("/grns/:id", procurement.GetGRNHandler(d.Procurement, d.Auth))
	protected.Post("/grns", procurement.CreateGRNHandler(d.Procurement, d.Auth))

	// Stock
	protected.Get("/inventory/items", inventory.ListItemsHandler(d.Inventory, d.Auth))
	protected.Get("/physical-counts", inventory.ListCountsHandler(d.Inventory, d.Auth))
	protected.Get("/physical-counts/:id", inventory.GetCountHandler(d.Inventory, d.Auth))
	protected.Put("/physical-counts/:id/items/:code", inventory.RecordCountHandler(d.Inventory, d.Auth))
	protected.Post("/physical-counts/:id/complete", inventory.CompleteCountHandler(d.Inventory, d.Auth))
	protected.Get("/physical-counts/:id/export", inventory.ExportCountHandler(d.Inventory, d.Auth))
	protected.Post("/physical-counts/:id/import", inventory.ImportCountHandler(d.Inventory, d.Auth))
	protected.Get("/spot-checks", inventory.ListSpotChecksHandler(d.Inventory, d.Auth))
	protected.Post("/spot-checks", inventory.CreateSpotCheckHandler(d.Inventory, d.Auth))
	protected.Get("/spot-checks/:id", inventory.GetSpotCheckHandler(d.Inventory, d.Auth))
	protected.Put("/spot-checks/:id/items/:code", inventory.RecordSpotCountHandler(d.Inventory, d.Auth))
	protected.Post("/spot-checks/:id/submit", inventory.SubmitSpotCheckHandler(d.Inventory, d.Auth))
	protected.Post("/spot-checks/:id/review", inventory.ReviewSpotCheckHandler(d.Inventory, d.Auth))
	protected.Get("/spot-checks/:id/export", inventory.ExportSpotCheckHandler(d.Inventory, d.Auth))

	protected.Get("/dashboard/summary", dashboard.SummaryHandler(d.Dashboard, d.Auth))

	return app
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
			})
		}
		logger.Error("unexpected error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unexpected server error",
		})
	}
}

// normalizeOrigins trims the entries of a comma-separated origin list.
func normalizeOrigins(origins string) string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}
