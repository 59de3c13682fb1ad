package notification

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(hub *Hub) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(1))
		return c.Next()
	})
	app.Get("/notifications", ListNotificationsHandler(hub))
	app.Get("/notifications/unread-count", UnreadCountHandler(hub))
	app.Put("/notifications/read-all", MarkAllReadHandler(hub))
	app.Put("/notifications/:id/read", MarkReadHandler(hub))
	app.Delete("/notifications/:id", DeleteNotificationHandler(hub))
	app.Post("/notifications", CreateNotificationHandler(hub))
	return app
}

func TestHandlers_ListAndMarkRead(t *testing.T) {
	app := newTestApp(newTestHub(storage.NewMemoryStore()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notifications?unread=true", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)

	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/notifications/n-1/read", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/notifications/nope/read", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))
	require.NoError(t, err)
	var count struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	assert.Equal(t, 1, count.Unread)
}

func TestHandlers_CreateValidates(t *testing.T) {
	app := newTestApp(newTestHub(storage.NewMemoryStore()))

	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{"user_ids":[1],"title":"","message":"x"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{"user_ids":[1],"title":"Heads up","message":"Delivery late","priority":"high"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notifications?priority=high", nil))
	require.NoError(t, err)
	var list []models.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

// readStreamEvent skips keep-alive comments and returns the data of the next
// "notifications" event.
func readStreamEvent(t *testing.T, r *bufio.Reader) []models.Notification {
	t.Helper()
	sawEvent := false
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "event: notifications":
			sawEvent = true
		case sawEvent && strings.HasPrefix(line, "data: "):
			var list []models.Notification
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &list))
			return list
		}
	}
}

func TestStreamHandler_PushesChangesAndUnsubscribes(t *testing.T) {
	prev := streamKeepAlive
	streamKeepAlive = 20 * time.Millisecond
	t.Cleanup(func() { streamKeepAlive = prev })

	ctx := context.Background()
	hub := newTestHub(storage.NewMemoryStore())
	app := newTestApp(hub)
	app.Get("/notifications/stream", StreamHandler(hub))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	resp, err := http.Get("http://" + ln.Addr().String() + "/notifications/stream")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))

	r := bufio.NewReader(resp.Body)
	first := readStreamEvent(t, r)
	require.Len(t, first, 3)

	s, err := hub.For(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, listenerCount(s))
	require.NoError(t, s.MarkAllAsRead(ctx))

	next := readStreamEvent(t, r)
	require.Len(t, next, 3)
	for _, n := range next {
		assert.True(t, n.IsRead, n.ID)
	}

	require.NoError(t, resp.Body.Close())
	assert.Eventually(t, func() bool { return listenerCount(s) == 0 },
		5*time.Second, 20*time.Millisecond)
}
