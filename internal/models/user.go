package models

import (
	"time"
)

// User owns venue accounts and strategies. Registration and credential checks
// live in the auth service; this table is only read here.
type User struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`

	HashedPassword string `gorm:"type:varchar(255);not null" json:"-"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
