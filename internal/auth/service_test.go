package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testEmail    = "store.keeper@grand.example"
	testPassword = "receiving-2024"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc   *Service
	store *storage.MemoryStore
	clock *fakeClock
	user  *models.User
	audit *audit.MemoryRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	units := repository.NewMemoryBusinessUnits(
		models.BusinessUnit{Code: "GH-BKK", Name: "Grand Hotel Bangkok"},
		models.BusinessUnit{Code: "BR-PTY", Name: "Beach Resort Pattaya"},
	)
	bkk, err := units.FindByCode(ctx, "GH-BKK")
	require.NoError(t, err)

	hash, err := HashPassword(testPassword)
	require.NoError(t, err)

	users := repository.NewMemoryUsers()
	user := &models.User{
		Name:          "Store Keeper",
		Email:         testEmail,
		PasswordHash:  hash,
		Role:          models.RoleStoreKeeper,
		BusinessUnits: []models.BusinessUnit{*bkk},
	}
	require.NoError(t, users.Create(ctx, user))

	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryStore()
	rec := audit.NewMemoryRecorder()
	svc := NewService(store, users, units, Options{
		Secret:           testSecret,
		SessionTTL:       8 * time.Hour,
		SessionWarning:   5 * time.Minute,
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
	}, nil, WithClock(clock.Now), WithAudit(rec))

	return &fixture{svc: svc, store: store, clock: clock, user: user, audit: rec}
}

func (f *fixture) has(t *testing.T, scope, key string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), scope, key)
	require.NoError(t, err)
	return ok
}

func TestLogin_StoresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "  Store.Keeper@Grand.example ", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, f.clock.Now().Add(8*time.Hour), session.ExpiresAt, 0)
	require.NotNil(t, session.BusinessUnit)
	assert.Equal(t, "GH-BKK", session.BusinessUnit.Code)

	scope := storage.UserScope(f.user.ID)
	assert.True(t, f.has(t, scope, storage.KeyAuthToken))
	assert.True(t, f.has(t, scope, storage.KeySessionExpiry))
	assert.True(t, f.has(t, scope, storage.KeyUser))

	ok, err := f.svc.IsAuthenticated(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, claims.UserID)
	assert.Equal(t, models.RoleStoreKeeper, claims.Role)
}

func TestIsAuthenticated_MissingKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := storage.UserScope(f.user.ID)

	ok, err := f.svc.IsAuthenticated(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// token without expiry
	require.NoError(t, f.store.Set(ctx, scope, storage.KeyAuthToken, "tok"))
	ok, err = f.svc.IsAuthenticated(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAuthenticated_ExpiredSessionIsCleared(t *testing.T) {
	for _, past := range []time.Duration{time.Millisecond, time.Minute, 30 * 24 * time.Hour} {
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)

		f.clock.Advance(8*time.Hour + past)

		ok, err := f.svc.IsAuthenticated(ctx, f.user.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		scope := storage.UserScope(f.user.ID)
		for _, key := range []string{storage.KeyAuthToken, storage.KeySessionExpiry, storage.KeyUser, storage.KeySelectedBusinessUnit} {
			assert.False(t, f.has(t, scope, key), "key %s should be cleared", key)
		}
	}
}

func TestHandleFailedLogin_LocksAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		a, err := f.svc.HandleFailedLogin(ctx, testEmail)
		require.NoError(t, err)
		assert.False(t, a.Locked)
		assert.Equal(t, i, a.Attempts)
		assert.Equal(t, 5-i, a.Remaining)
	}

	status, err := f.svc.IsAccountLocked(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, status.Locked)

	a, err := f.svc.HandleFailedLogin(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, a.Locked)
	assert.WithinDuration(t, f.clock.Now().Add(15*time.Minute), a.LockedUntil, 0)

	status, err = f.svc.IsAccountLocked(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 15*time.Minute, status.Remaining)

	logs, err := f.audit.List(ctx, audit.Filter{EntityType: "account"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionLockout, logs[0].Action)
}

func TestIsAccountLocked_WindowExpiryClearsKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := storage.LoginScope(testEmail)

	for i := 0; i < 5; i++ {
		_, err := f.svc.HandleFailedLogin(ctx, testEmail)
		require.NoError(t, err)
	}

	f.clock.Advance(15*time.Minute - time.Second)
	status, err := f.svc.IsAccountLocked(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, status.Locked)

	f.clock.Advance(time.Second)
	status, err = f.svc.IsAccountLocked(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.False(t, f.has(t, scope, storage.KeyLockoutTime))
	assert.False(t, f.has(t, scope, storage.KeyFailedLoginAttempts))
}

func TestLogin_LockoutFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var attemptErr *AttemptError
	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, testEmail, "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.True(t, errors.As(err, &attemptErr))
		assert.Equal(t, 5-i, attemptErr.Attempt.Remaining)
	}

	_, err := f.svc.Login(ctx, testEmail, "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)

	// correct password is refused while locked
	_, err = f.svc.Login(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, ErrAccountLocked)

	f.clock.Advance(15 * time.Minute)
	_, err = f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
}

func TestLogin_UnknownEmailCountsAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody@grand.example", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	n, ok, err := storage.GetInt64(ctx, f.store, storage.LoginScope("nobody@grand.example"), storage.KeyFailedLoginAttempts)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestLogin_SuccessResetsFailedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Login(ctx, testEmail, "wrong")
	_, _ = f.svc.Login(ctx, testEmail, "wrong")
	_, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	assert.False(t, f.has(t, storage.LoginScope(testEmail), storage.KeyFailedLoginAttempts))
}

func TestSessionStatus_NearExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	status, err := f.svc.SessionStatus(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, status.Authenticated)
	assert.False(t, status.NearExpiry)

	f.clock.Advance(8*time.Hour - 4*time.Minute)
	status, err = f.svc.SessionStatus(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, status.NearExpiry)
	assert.Equal(t, 4*time.Minute, status.Remaining)
}

func TestExtendSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	f.clock.Advance(7 * time.Hour)
	second, err := f.svc.ExtendSession(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))

	// the old token no longer backs the session
	_, err = f.svc.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = f.svc.Authenticate(ctx, second.Token)
	assert.NoError(t, err)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, f.user.ID))

	_, err = f.svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.ExtendSession(ctx, f.user.ID)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSelectBusinessUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelectBusinessUnit(ctx, f.user.ID, "BR-PTY")
	assert.ErrorIs(t, err, ErrBusinessUnitNotAllowed)

	selected, err := f.svc.SelectBusinessUnit(ctx, f.user.ID, "GH-BKK")
	require.NoError(t, err)
	assert.Equal(t, "Grand Hotel Bangkok", selected.Name)

	got, ok, err := f.svc.SelectedBusinessUnit(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "GH-BKK", got.Code)
}

func TestSelectedBusinessUnit_MalformedBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, storage.UserScope(f.user.ID), storage.KeySelectedBusinessUnit, "{{"))
	got, ok, err := f.svc.SelectedBusinessUnit(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, f.user.ID, "wrong", "new-password-1"), ErrInvalidCredentials)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, f.user.ID, testPassword, "short"), ErrWeakPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, f.user.ID, testPassword, "new-password-1"))

	_, err := f.svc.Login(ctx, testEmail, "new-password-1")
	require.NoError(t, err)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.svc.HandleFailedLogin(ctx, "other@grand.example")
		require.NoError(t, err)
	}

	res, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	f.clock.Advance(9 * time.Hour)
	res, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Sessions: 1, Lockouts: 1}, res)

	assert.False(t, f.has(t, storage.UserScope(f.user.ID), storage.KeyAuthToken))
	assert.False(t, f.has(t, storage.LoginScope("other@grand.example"), storage.KeyLockoutTime))
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.BootstrapAdmin(ctx, "Admin", "Admin@Grand.example", "super-secret-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Len(t, admin.BusinessUnits, 2)

	_, err = f.svc.BootstrapAdmin(ctx, "Second", "second@grand.example", "super-secret-1")
	assert.ErrorIs(t, err, ErrAdminExists)

	// units are listed by name, but the session starts in the first unit created
	require.Equal(t, "BR-PTY", admin.BusinessUnits[0].Code)
	session, err := f.svc.Login(ctx, "admin@grand.example", "super-secret-1")
	require.NoError(t, err)
	require.NotNil(t, session.BusinessUnit)
	assert.Equal(t, "GH-BKK", session.BusinessUnit.Code)
}

func TestDefaultUnit_LowestID(t *testing.T) {
	bu, ok := defaultUnit([]models.BusinessUnit{
		{ID: 3, Code: "CH-CNX"},
		{ID: 1, Code: "GH-BKK"},
		{ID: 2, Code: "BR-PTY"},
	})
	require.True(t, ok)
	assert.Equal(t, "GH-BKK", bu.Code)

	_, ok = defaultUnit(nil)
	assert.False(t, ok)
}
