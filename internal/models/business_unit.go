package models

import "time"

// BusinessUnit is a hotel property or outlet location.
type BusinessUnit struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	Code      string    `gorm:"size:32;not null;uniqueIndex" json:"code" yaml:"code"`
	Name      string    `gorm:"size:100;not null" json:"name" yaml:"name"`
	Address   string    `gorm:"size:255" json:"address" yaml:"address"`
	Phone     string    `gorm:"size:50" json:"phone" yaml:"phone"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}
