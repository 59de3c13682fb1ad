package admin

import (
	"errors"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type CreateUserRequest struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Password      string          `json:"password"`
	Role          models.UserRole `json:"role"`
	Department    string          `json:"department"`
	BusinessUnits []string        `json:"business_units"`
}

type UserResponse struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          models.UserRole `json:"role"`
	Department    string          `json:"department"`
	BusinessUnits []string        `json:"business_units"`
	CreatedAt     string          `json:"created_at"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		Department:    u.Department,
		BusinessUnits: u.BusinessUnitCodes(),
		CreatedAt:     u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/admin/users
func CreateUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := svc.CreateUser(c.UserContext(), actorOf(c), NewUser(body))
		switch {
		case errors.Is(err, ErrValidation):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		case errors.Is(err, repository.ErrDuplicate):
			return fiber.NewError(fiber.StatusConflict, "Email is already registered")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "User could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(*user))
	}
}

// GET /api/admin/users?role=
func ListUsersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := models.UserRole(c.Query("role"))
		if role != "" && !role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown role")
		}

		users, err := svc.ListUsers(c.UserContext(), role)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Users could not be listed")
		}

		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toUserResponse(u))
		}
		return c.JSON(res)
	}
}
