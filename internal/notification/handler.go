package notification

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

var streamKeepAlive = 25 * time.Second

type CreateNotificationRequest struct {
	UserIDs  []uint                      `json:"user_ids"`
	Type     models.NotificationType     `json:"type"`
	Title    string                      `json:"title"`
	Message  string                      `json:"message"`
	Priority models.NotificationPriority `json:"priority"`
	Metadata map[string]string           `json:"metadata"`
}

func storeFor(c *fiber.Ctx, hub *Hub) (*Store, error) {
	userID, err := auth.UserID(c)
	if err != nil {
		return nil, err
	}
	s, err := hub.For(c.UserContext(), userID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Notifications could not be loaded")
	}
	return s, nil
}

// GET /api/notifications?unread=true&type=...&priority=...
func ListNotificationsHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}
		f := Filter{
			UnreadOnly: c.QueryBool("unread", false),
			Type:       models.NotificationType(strings.TrimSpace(c.Query("type"))),
			Priority:   models.NotificationPriority(strings.TrimSpace(c.Query("priority"))),
		}
		return c.JSON(s.List(f))
	}
}

// GET /api/notifications/unread-count
func UnreadCountHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"unread": s.UnreadCount()})
	}
}

// PUT /api/notifications/:id/read
func MarkReadHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}
		if err := s.MarkAsRead(c.UserContext(), c.Params("id")); err != nil {
			return mutationError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PUT /api/notifications/read-all
func MarkAllReadHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}
		if err := s.MarkAllAsRead(c.UserContext()); err != nil {
			return mutationError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DELETE /api/notifications/:id
func DeleteNotificationHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}
		if err := s.Delete(c.UserContext(), c.Params("id")); err != nil {
			return mutationError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/notifications (admin)
func CreateNotificationHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateNotificationRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(body.UserIDs) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_ids is required")
		}
		if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Message) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "title and message are required")
		}
		switch body.Priority {
		case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "priority must be low, medium or high")
		}

		n := models.Notification{
			Type:     body.Type,
			Title:    strings.TrimSpace(body.Title),
			Message:  strings.TrimSpace(body.Message),
			Priority: body.Priority,
			Metadata: body.Metadata,
		}
		if err := hub.Notify(c.UserContext(), n, body.UserIDs...); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Notification could not be delivered")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"delivered": len(body.UserIDs)})
	}
}

// GET /api/notifications/stream
// Server-sent events: one "notifications" event with the full list on
// connect and after every change.
func StreamHandler(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := storeFor(c, hub)
		if err != nil {
			return err
		}

		// Only the latest snapshot matters, so a slow client skips stale ones.
		updates := make(chan []models.Notification, 1)
		unsubscribe := s.Subscribe(func(list []models.Notification) {
			for {
				select {
				case updates <- list:
					return
				default:
					select {
					case <-updates:
					default:
					}
				}
			}
		})

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			ticker := time.NewTicker(streamKeepAlive)
			defer ticker.Stop()

			for {
				select {
				case list := <-updates:
					data, err := json.Marshal(list)
					if err != nil {
						return
					}
					fmt.Fprintf(w, "event: notifications\ndata: %s\n\n", data)
				case <-ticker.C:
					fmt.Fprint(w, ": ping\n\n")
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}))
		return nil
	}
}

func mutationError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Notification not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Notifications could not be saved")
}
