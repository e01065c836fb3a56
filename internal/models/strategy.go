package models

import (
	"time"

	"gorm.io/datatypes"
)

// Strategy is the per-user decision-rule configuration. UpdatedAt is the
// implicit version: every mutation bumps it.
type Strategy struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Name   string `gorm:"type:varchar(100);not null;index" json:"name"`

	UpperThreshold float64 `gorm:"not null" json:"upper_threshold"`
	LowerThreshold float64 `gorm:"not null" json:"lower_threshold"`
	TradeAmount    float64 `gorm:"not null" json:"trade_amount"`
	ExpirySeconds  int     `gorm:"not null" json:"expiry_seconds"`

	Params datatypes.JSON `gorm:"type:jsonb" json:"params,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Strategy) TableName() string {
	return "strategies"
}
