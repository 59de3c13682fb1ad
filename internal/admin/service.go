// Package admin manages business units and user accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/auth"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/repository"

	"go.uber.org/zap"
)

var ErrValidation = errors.New("invalid input")

type Service struct {
	users  repository.UserRepository
	units  repository.BusinessUnitRepository
	audit  audit.Recorder
	logger *zap.Logger
}

func NewService(users repository.UserRepository, units repository.BusinessUnitRepository, rec audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, units: units, audit: rec, logger: logger}
}

type NewUser struct {
	Name          string
	Email         string
	Password      string
	Role          models.UserRole
	Department    string
	BusinessUnits []string
}

// CreateUser validates and stores a new account assigned to existing units.
func (s *Service) CreateUser(ctx context.Context, by models.Actor, in NewUser) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if len(in.BusinessUnits) == 0 && in.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: at least one business unit is required", ErrValidation)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	units := make([]models.BusinessUnit, 0, len(in.BusinessUnits))
	seen := make(map[string]bool, len(in.BusinessUnits))
	for _, code := range in.BusinessUnits {
		code = strings.TrimSpace(code)
		if seen[code] {
			continue
		}
		seen[code] = true
		bu, err := s.units.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: business unit %s does not exist", ErrValidation, code)
		}
		if err != nil {
			return nil, err
		}
		units = append(units, *bu)
	}

	user := &models.User{
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  hash,
		Role:          in.Role,
		Department:    strings.TrimSpace(in.Department),
		BusinessUnits: units,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.write(ctx, by, audit.LogOptions{
		EntityType:  "user",
		EntityID:    fmt.Sprint(user.ID),
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Created %s account %s", user.Role, user.Email),
		After:       toUserResponse(*user),
	})
	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if role != "" {
		return s.users.ListByRole(ctx, role)
	}
	return s.users.List(ctx)
}

// SeedBusinessUnits creates the given units when their code is not yet
// known and returns how many were added.
func (s *Service) SeedBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int, error) {
	added := 0
	for _, bu := range units {
		_, err := s.units.FindByCode(ctx, bu.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return added, err
		}
		bu.ID = 0
		if err := s.units.Create(ctx, &bu); err != nil {
			return added, fmt.Errorf("seed business unit %s: %w", bu.Code, err)
		}
		added++
	}
	if added > 0 {
		s.logger.Info("business units seeded", zap.Int("added", added))
	}
	return added, nil
}

func (s *Service) write(ctx context.Context, by models.Actor, opts audit.LogOptions) {
	if s.audit == nil {
		return
	}
	opts.UserID = by.UserID
	opts.UserName = by.Name
	if err := s.audit.WriteLog(ctx, opts); err != nil {
		s.logger.Error("audit entry not written", zap.String("entity_type", opts.EntityType), zap.Error(err))
	}
}
