package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockoutStatus(t *testing.T, app *fiber.App, email string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lockout?email="+email, nil))
	require.NoError(t, err)
	var body map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestLockoutStatusHandler_HidesAttemptCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := fiber.New()
	app.Get("/lockout", LockoutStatusHandler(f.svc))

	status, _ := lockoutStatus(t, app, "")
	assert.Equal(t, http.StatusBadRequest, status)

	_, err := f.svc.HandleFailedLogin(ctx, testEmail)
	require.NoError(t, err)
	_, err = f.svc.HandleFailedLogin(ctx, testEmail)
	require.NoError(t, err)

	status, body := lockoutStatus(t, app, testEmail)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["locked"])
	assert.NotContains(t, body, "attempts")

	for i := 0; i < 3; i++ {
		_, err = f.svc.HandleFailedLogin(ctx, testEmail)
		require.NoError(t, err)
	}

	status, body = lockoutStatus(t, app, testEmail)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["locked"])
	assert.Greater(t, body["remaining_seconds"], float64(0))
	assert.NotContains(t, body, "attempts")
}
