package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the key space in the kv_entries table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (g *GormStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var entry models.KVEntry
	err := g.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s/%s: %w", scope, key, err)
	}
	return entry.Value, true, nil
}

func (g *GormStore) Set(ctx context.Context, scope, key, value string) error {
	entry := models.KVEntry{Scope: scope, Key: key, Value: value}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", scope, key, err)
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := g.db.WithContext(ctx).
		Where("scope = ? AND key IN ?", scope, keys).
		Delete(&models.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete %s keys: %w", scope, err)
	}
	return nil
}

func (g *GormStore) Scopes(ctx context.Context, key string) ([]string, error) {
	var scopes []string
	err := g.db.WithContext(ctx).
		Model(&models.KVEntry{}).
		Where("key = ?", key).
		Order("scope").
		Pluck("scope", &scopes).Error
	if err != nil {
		return nil, fmt.Errorf("list scopes for %s: %w", key, err)
	}
	return scopes, nil
}
