package models

import "time"

// KVEntry is one key of a scope in the persisted key space.
type KVEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Scope     string `gorm:"size:191;not null;uniqueIndex:idx_kv_scope_key"`
	Key       string `gorm:"size:64;not null;uniqueIndex:idx_kv_scope_key;index"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
