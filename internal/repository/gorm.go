package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"gorm.io/gorm"
)

type GormUsers struct {
	db *gorm.DB
}

func NewGormUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{db: db}
}

var _ UserRepository = (*GormUsers)(nil)

func (r *GormUsers) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("BusinessUnits").First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("BusinessUnits").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUsers) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("BusinessUnits").Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUsers) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Preload("BusinessUnits").
		Where("role = ?", role).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *GormUsers) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	// Units are referenced, never upserted from here.
	return r.db.WithContext(ctx).Omit("BusinessUnits.*").Create(user).Error
}

func (r *GormUsers) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type GormBusinessUnits struct {
	db *gorm.DB
}

func NewGormBusinessUnits(db *gorm.DB) *GormBusinessUnits {
	return &GormBusinessUnits{db: db}
}

var _ BusinessUnitRepository = (*GormBusinessUnits)(nil)

func (r *GormBusinessUnits) List(ctx context.Context) ([]models.BusinessUnit, error) {
	var units []models.BusinessUnit
	if err := r.db.WithContext(ctx).Order("name").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *GormBusinessUnits) FindByID(ctx context.Context, id uint) (*models.BusinessUnit, error) {
	var bu models.BusinessUnit
	if err := r.db.WithContext(ctx).First(&bu, id).Error; err != nil {
		return nil, translate(err)
	}
	return &bu, nil
}

func (r *GormBusinessUnits) FindByCode(ctx context.Context, code string) (*models.BusinessUnit, error) {
	var bu models.BusinessUnit
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&bu).Error; err != nil {
		return nil, translate(err)
	}
	return &bu, nil
}

func (r *GormBusinessUnits) Create(ctx context.Context, bu *models.BusinessUnit) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BusinessUnit{}).Where("code = ?", bu.Code).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return r.db.WithContext(ctx).Create(bu).Error
}

func (r *GormBusinessUnits) Update(ctx context.Context, bu *models.BusinessUnit) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BusinessUnit{}).
		Where("code = ? AND id <> ?", bu.Code, bu.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	res := r.db.WithContext(ctx).Model(&models.BusinessUnit{}).Where("id = ?", bu.ID).Updates(map[string]interface{}{
		"code":    bu.Code,
		"name":    bu.Name,
		"address": bu.Address,
		"phone":   bu.Phone,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormBusinessUnits) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bu models.BusinessUnit
		if err := tx.First(&bu, id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Exec("DELETE FROM user_business_units WHERE business_unit_id = ?", bu.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&bu).Error
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
