// Package repository holds the persisted directory data: users and the
// business units they belong to.
package repository

import (
	"context"
	"errors"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	// Create inserts the user; BusinessUnits must already exist.
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
}

type BusinessUnitRepository interface {
	List(ctx context.Context) ([]models.BusinessUnit, error)
	FindByID(ctx context.Context, id uint) (*models.BusinessUnit, error)
	FindByCode(ctx context.Context, code string) (*models.BusinessUnit, error)
	Create(ctx context.Context, bu *models.BusinessUnit) error
	Update(ctx context.Context, bu *models.BusinessUnit) error
	Delete(ctx context.Context, id uint) error
}
