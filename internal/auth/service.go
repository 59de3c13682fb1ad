package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/metrics"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountLocked          = errors.New("account is temporarily locked")
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrBusinessUnitNotAllowed = errors.New("business unit is not assigned to user")
	ErrWeakPassword           = errors.New("password is too short")
)

// sessionKeys are cleared together on logout and on expiry.
var sessionKeys = []string{
	storage.KeyAuthToken,
	storage.KeySessionExpiry,
	storage.KeyUser,
	storage.KeySelectedBusinessUnit,
}

type Options struct {
	Secret           string
	SessionTTL       time.Duration
	SessionWarning   time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// Service is the session/lockout utility. All of its state lives in the
// key space; it holds none itself.
type Service struct {
	store   storage.Store
	users   repository.UserRepository
	units   repository.BusinessUnitRepository
	audit   audit.Recorder
	metrics *metrics.Metrics
	opts    Options
	logger  *zap.Logger

	now func() time.Time
}

type ServiceOption func(*Service)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(rec audit.Recorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

func NewService(store storage.Store, users repository.UserRepository, units repository.BusinessUnitRepository, opts Options, logger *zap.Logger, options ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		users:  users,
		units:  units,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// SessionUser is the user blob kept under the "user" key.
type SessionUser struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          models.UserRole `json:"role"`
	BusinessUnits []string        `json:"businessUnits"`
}

// SelectedUnit is the blob kept under "selectedBusinessUnit".
type SelectedUnit struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Session struct {
	Token        string        `json:"token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         SessionUser   `json:"user"`
	BusinessUnit *SelectedUnit `json:"business_unit,omitempty"`
}

// LoginAttempt reports the failed-login counter after a bad attempt.
type LoginAttempt struct {
	Attempts    int       `json:"attempts"`
	Remaining   int       `json:"attempts_remaining"`
	Locked      bool      `json:"locked"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

type LockStatus struct {
	Locked      bool
	Attempts    int
	LockedUntil time.Time
	Remaining   time.Duration
}

type SessionStatus struct {
	Authenticated bool          `json:"authenticated"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Remaining     time.Duration `json:"-"`
	NearExpiry    bool          `json:"near_expiry"`
}

// AttemptError carries lockout bookkeeping along with ErrInvalidCredentials
// or ErrAccountLocked.
type AttemptError struct {
	Attempt LoginAttempt
	Err     error
}

func (e *AttemptError) Error() string { return e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// Login checks lockout, verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	lock, err := s.IsAccountLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if lock.Locked {
		s.metrics.LoginAttempt("locked")
		return nil, &AttemptError{
			Attempt: LoginAttempt{Attempts: lock.Attempts, Locked: true, LockedUntil: lock.LockedUntil},
			Err:     ErrAccountLocked,
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		attempt, err := s.HandleFailedLogin(ctx, email)
		if err != nil {
			return nil, err
		}
		if attempt.Locked {
			s.metrics.LoginAttempt("locked")
			return nil, &AttemptError{Attempt: attempt, Err: ErrAccountLocked}
		}
		s.metrics.LoginAttempt("invalid")
		return nil, &AttemptError{Attempt: attempt, Err: ErrInvalidCredentials}
	}

	if err := s.store.Delete(ctx, storage.LoginScope(email), storage.KeyFailedLoginAttempts, storage.KeyLockoutTime); err != nil {
		return nil, fmt.Errorf("reset failed attempts: %w", err)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.LoginAttempt("success")
	s.logger.Info("user logged in", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return session, nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*Session, error) {
	scope := storage.UserScope(user.ID)
	now := s.now()
	expiresAt := now.Add(s.opts.SessionTTL)

	token, err := GenerateToken(s.opts.Secret, user, uuid.NewString(), now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	su := SessionUser{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		BusinessUnits: user.BusinessUnitCodes(),
	}

	if err := s.store.Set(ctx, scope, storage.KeyAuthToken, token); err != nil {
		return nil, err
	}
	if err := storage.SetInt64(ctx, s.store, scope, storage.KeySessionExpiry, expiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := storage.SetJSON(ctx, s.store, scope, storage.KeyUser, su); err != nil {
		return nil, err
	}

	session := &Session{Token: token, ExpiresAt: time.UnixMilli(expiresAt.UnixMilli()), User: su}

	selected, ok, err := s.SelectedBusinessUnit(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ok && user.HasBusinessUnit(selected.Code) {
		session.BusinessUnit = selected
	} else if bu, ok := defaultUnit(user.BusinessUnits); ok {
		selected = &SelectedUnit{ID: bu.ID, Code: bu.Code, Name: bu.Name}
		if err := storage.SetJSON(ctx, s.store, scope, storage.KeySelectedBusinessUnit, selected); err != nil {
			return nil, err
		}
		session.BusinessUnit = selected
	}
	return session, nil
}

// defaultUnit picks the unit a fresh session starts in: the oldest one, so the
// choice does not depend on how the association was loaded.
func defaultUnit(units []models.BusinessUnit) (models.BusinessUnit, bool) {
	if len(units) == 0 {
		return models.BusinessUnit{}, false
	}
	first := units[0]
	for _, bu := range units[1:] {
		if bu.ID < first.ID {
			first = bu
		}
	}
	return first, true
}

// HandleFailedLogin increments the failed-attempt counter for email and locks
// the account once the threshold is reached.
func (s *Service) HandleFailedLogin(ctx context.Context, email string) (LoginAttempt, error) {
	scope := storage.LoginScope(email)

	attempts, _, err := storage.GetInt64(ctx, s.store, scope, storage.KeyFailedLoginAttempts)
	if err != nil {
		return LoginAttempt{}, err
	}
	attempts++
	if err := storage.SetInt64(ctx, s.store, scope, storage.KeyFailedLoginAttempts, attempts); err != nil {
		return LoginAttempt{}, err
	}

	result := LoginAttempt{Attempts: int(attempts)}
	if remaining := s.opts.LockoutThreshold - int(attempts); remaining > 0 {
		result.Remaining = remaining
		return result, nil
	}

	now := s.now()
	if err := storage.SetInt64(ctx, s.store, scope, storage.KeyLockoutTime, now.UnixMilli()); err != nil {
		return LoginAttempt{}, err
	}
	result.Locked = true
	result.LockedUntil = time.UnixMilli(now.UnixMilli()).Add(s.opts.LockoutWindow)

	s.metrics.Lockout()
	s.logger.Warn("account locked after failed logins", zap.String("email", normalizeEmail(email)), zap.Int64("attempts", attempts))
	if s.audit != nil {
		_ = s.audit.WriteLog(ctx, audit.LogOptions{
			EntityType:  "account",
			EntityID:    normalizeEmail(email),
			Action:      models.AuditActionLockout,
			Description: fmt.Sprintf("locked after %d failed logins", attempts),
		})
	}
	return result, nil
}

// IsAccountLocked reports whether email is inside its lockout window. Once
// the window has passed the lockout and attempt counter are cleared.
func (s *Service) IsAccountLocked(ctx context.Context, email string) (LockStatus, error) {
	scope := storage.LoginScope(email)

	attempts, _, err := storage.GetInt64(ctx, s.store, scope, storage.KeyFailedLoginAttempts)
	if err != nil {
		return LockStatus{}, err
	}
	lockedAtMs, ok, err := storage.GetInt64(ctx, s.store, scope, storage.KeyLockoutTime)
	if err != nil {
		return LockStatus{}, err
	}
	if !ok {
		return LockStatus{Attempts: int(attempts)}, nil
	}

	until := time.UnixMilli(lockedAtMs).Add(s.opts.LockoutWindow)
	now := s.now()
	if now.Before(until) {
		return LockStatus{
			Locked:      true,
			Attempts:    int(attempts),
			LockedUntil: until,
			Remaining:   until.Sub(now),
		}, nil
	}

	if err := s.store.Delete(ctx, scope, storage.KeyLockoutTime, storage.KeyFailedLoginAttempts); err != nil {
		return LockStatus{}, err
	}
	return LockStatus{}, nil
}

// IsAuthenticated is false when the token or expiry is absent, or when the
// expiry has passed; in the latter case the session keys are also cleared.
func (s *Service) IsAuthenticated(ctx context.Context, userID uint) (bool, error) {
	_, _, ok, err := s.activeSession(ctx, userID)
	return ok, err
}

func (s *Service) activeSession(ctx context.Context, userID uint) (string, time.Time, bool, error) {
	scope := storage.UserScope(userID)

	token, ok, err := s.store.Get(ctx, scope, storage.KeyAuthToken)
	if err != nil || !ok || token == "" {
		return "", time.Time{}, false, err
	}
	expiryMs, ok, err := storage.GetInt64(ctx, s.store, scope, storage.KeySessionExpiry)
	if err != nil || !ok {
		return "", time.Time{}, false, err
	}

	expiresAt := time.UnixMilli(expiryMs)
	if s.now().After(expiresAt) {
		if err := s.store.Delete(ctx, scope, sessionKeys...); err != nil {
			return "", time.Time{}, false, err
		}
		s.logger.Debug("session expired", zap.Uint("user_id", userID))
		return "", time.Time{}, false, nil
	}
	return token, expiresAt, true, nil
}

// ValidateSession accepts token only if it is the stored token of a live
// session for userID.
func (s *Service) ValidateSession(ctx context.Context, userID uint, token string) error {
	stored, _, ok, err := s.activeSession(ctx, userID)
	if err != nil {
		return err
	}
	if !ok || stored != token {
		return ErrNotAuthenticated
	}
	return nil
}

// SessionStatus reports expiry and whether the session is inside the
// warning window.
func (s *Service) SessionStatus(ctx context.Context, userID uint) (SessionStatus, error) {
	_, expiresAt, ok, err := s.activeSession(ctx, userID)
	if err != nil || !ok {
		return SessionStatus{}, err
	}
	remaining := expiresAt.Sub(s.now())
	return SessionStatus{
		Authenticated: true,
		ExpiresAt:     expiresAt,
		Remaining:     remaining,
		NearExpiry:    remaining <= s.opts.SessionWarning,
	}, nil
}

// ExtendSession replaces a live session with a fresh token and expiry.
func (s *Service) ExtendSession(ctx context.Context, userID uint) (*Session, error) {
	ok, err := s.IsAuthenticated(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.openSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, userID uint) error {
	if err := s.store.Delete(ctx, storage.UserScope(userID), sessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("user logged out", zap.Uint("user_id", userID))
	return nil
}

// CurrentUser loads the full user record behind a session.
func (s *Service) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	return user, err
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// SelectBusinessUnit stores the unit the user is working in. The unit must
// be one the user is assigned to.
func (s *Service) SelectBusinessUnit(ctx context.Context, userID uint, code string) (*SelectedUnit, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasBusinessUnit(code) {
		return nil, ErrBusinessUnitNotAllowed
	}
	bu, err := s.units.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load business unit %s: %w", code, err)
	}

	selected := &SelectedUnit{ID: bu.ID, Code: bu.Code, Name: bu.Name}
	if err := storage.SetJSON(ctx, s.store, storage.UserScope(userID), storage.KeySelectedBusinessUnit, selected); err != nil {
		return nil, err
	}
	return selected, nil
}

// SelectedBusinessUnit returns the stored selection; an unreadable blob is
// treated as no selection.
func (s *Service) SelectedBusinessUnit(ctx context.Context, userID uint) (*SelectedUnit, bool, error) {
	var selected SelectedUnit
	found, err := storage.GetJSON(ctx, s.store, storage.UserScope(userID), storage.KeySelectedBusinessUnit, &selected)
	if errors.Is(err, storage.ErrMalformed) {
		s.logger.Warn("discarding unreadable business unit selection", zap.Uint("user_id", userID), zap.Error(err))
		return nil, false, nil
	}
	if err != nil || !found {
		return nil, false, err
	}
	return &selected, true, nil
}

type SweepResult struct {
	Sessions int
	Lockouts int
}

// SweepExpired clears expired sessions and lapsed lockouts across all scopes.
func (s *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	scopes, err := s.store.Scopes(ctx, storage.KeySessionExpiry)
	if err != nil {
		return result, err
	}
	for _, scope := range scopes {
		userID, ok := storage.ParseUserScope(scope)
		if !ok {
			continue
		}
		if _, ok, _ := s.store.Get(ctx, scope, storage.KeyAuthToken); !ok {
			continue
		}
		alive, err := s.IsAuthenticated(ctx, userID)
		if err != nil {
			return result, err
		}
		if !alive {
			result.Sessions++
		}
	}

	scopes, err = s.store.Scopes(ctx, storage.KeyLockoutTime)
	if err != nil {
		return result, err
	}
	for _, scope := range scopes {
		email, ok := strings.CutPrefix(scope, "login:")
		if !ok {
			continue
		}
		status, err := s.IsAccountLocked(ctx, email)
		if err != nil {
			return result, err
		}
		if !status.Locked {
			result.Lockouts++
		}
	}

	s.metrics.Swept("session", result.Sessions)
	s.metrics.Swept("lockout", result.Lockouts)
	return result, nil
}

// HashPassword bcrypt-hashes a password after checking its length.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate verifies a bearer token and that it still backs a live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*JWTCustomClaims, error) {
	claims, err := ParseToken(s.opts.Secret, token, s.now)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateSession(ctx, claims.UserID, token); err != nil {
		return nil, err
	}
	return claims, nil
}

var ErrAdminExists = errors.New("an admin account already exists")

// BootstrapAdmin creates the first admin account; it refuses once any admin exists.
func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAdminExists
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	units, err := s.units.List(ctx)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:          strings.TrimSpace(name),
		Email:         normalizeEmail(email),
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		BusinessUnits: units,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Actor resolves the user behind a session together with the selected unit.
func (s *Service) Actor(ctx context.Context, userID uint) (models.Actor, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return models.Actor{}, err
	}
	actor := models.Actor{
		UserID:        user.ID,
		Name:          user.Name,
		Role:          user.Role,
		BusinessUnits: user.BusinessUnitCodes(),
	}
	if selected, ok, err := s.SelectedBusinessUnit(ctx, userID); err != nil {
		return models.Actor{}, err
	} else if ok {
		actor.SelectedUnit = selected.Code
	}
	return actor, nil
}
