package auth

import (
	"errors"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type BootstrapAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type SelectBusinessUnitRequest struct {
	Code string `json:"code"`
}

// POST /api/auth/bootstrap
func BootstrapAdminHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BootstrapAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if strings.TrimSpace(body.Email) == "" || body.Password == "" || strings.TrimSpace(body.Name) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}

		user, err := svc.BootstrapAdmin(c.UserContext(), body.Name, body.Email, body.Password)
		switch {
		case errors.Is(err, ErrAdminExists):
			return fiber.NewError(fiber.StatusForbidden, "An admin account already exists")
		case errors.Is(err, ErrWeakPassword):
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		case errors.Is(err, repository.ErrDuplicate):
			return fiber.NewError(fiber.StatusConflict, "Email is already registered")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "User could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

// POST /api/auth/login
func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if strings.TrimSpace(body.Email) == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password are required")
		}

		session, err := svc.Login(c.UserContext(), body.Email, body.Password)
		if err != nil {
			var attemptErr *AttemptError
			if errors.As(err, &attemptErr) {
				a := attemptErr.Attempt
				if a.Locked {
					return c.Status(fiber.StatusLocked).JSON(fiber.Map{
						"error":        "Account is locked after too many failed attempts",
						"locked":       true,
						"locked_until": a.LockedUntil,
					})
				}
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":              "Invalid email or password",
					"attempts":           a.Attempts,
					"attempts_remaining": a.Remaining,
				})
			}
			return err
		}

		return c.JSON(session)
	}
}

// GET /api/auth/lockout?email=
// Public, so it reports only whether the address is locked; the attempt count
// stays server-side.
func LockoutStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Query("email")
		if strings.TrimSpace(email) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email is required")
		}

		status, err := svc.IsAccountLocked(c.UserContext(), email)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"locked":            status.Locked,
			"remaining_seconds": int(status.Remaining.Seconds()),
		})
	}
}

// POST /api/auth/logout
func LogoutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		if err := svc.Logout(c.UserContext(), userID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/auth/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		user, err := svc.CurrentUser(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}

		response := fiber.Map{
			"user_id":        user.ID,
			"name":           user.Name,
			"email":          user.Email,
			"role":           user.Role,
			"department":     user.Department,
			"business_units": user.BusinessUnits,
		}
		if selected, ok, err := svc.SelectedBusinessUnit(c.UserContext(), userID); err == nil && ok {
			response["selected_business_unit"] = selected
		}
		return c.JSON(response)
	}
}

// GET /api/auth/session
func SessionStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		status, err := svc.SessionStatus(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"authenticated":     status.Authenticated,
			"expires_at":        status.ExpiresAt,
			"remaining_seconds": int(status.Remaining.Seconds()),
			"near_expiry":       status.NearExpiry,
		})
	}
}

// POST /api/auth/session/extend
func ExtendSessionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		session, err := svc.ExtendSession(c.UserContext(), userID)
		if errors.Is(err, ErrNotAuthenticated) {
			return fiber.NewError(fiber.StatusUnauthorized, "Session has expired")
		}
		if err != nil {
			return err
		}
		return c.JSON(session)
	}
}

// PUT /api/auth/password
func ChangePasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		err = svc.ChangePassword(c.UserContext(), userID, body.CurrentPassword, body.NewPassword)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
		case errors.Is(err, ErrWeakPassword):
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		case err != nil:
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/business-units
func MyBusinessUnitsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		user, err := svc.CurrentUser(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}
		return c.JSON(user.BusinessUnits)
	}
}

// PUT /api/auth/business-unit
func SelectBusinessUnitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}
		var body SelectBusinessUnitRequest
		if err := c.BodyParser(&body); err != nil || body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "code is required")
		}

		selected, err := svc.SelectBusinessUnit(c.UserContext(), userID, body.Code)
		switch {
		case errors.Is(err, ErrBusinessUnitNotAllowed):
			return fiber.NewError(fiber.StatusForbidden, "Business unit is not assigned to you")
		case errors.Is(err, repository.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Business unit not found")
		case err != nil:
			return err
		}
		return c.JSON(selected)
	}
}
