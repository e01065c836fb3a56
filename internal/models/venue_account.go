package models

import (
	"time"
)

// VenueAccount is one operator seat at the venue. Credentials are what the
// automation surface types into the login form.
type VenueAccount struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(36);not null;index" json:"user_id"`

	AccountName string `gorm:"type:varchar(100);not null" json:"account_name"`
	Username    string `gorm:"type:varchar(255);not null" json:"username"`
	Password    string `gorm:"type:varchar(255);not null" json:"-"`
	IsDemo      bool   `gorm:"default:true" json:"is_demo"`

	// AutoTrade opts the account into the scheduled synthetic cycle;
	// ChargingMode switches stake sizing to the recent-win ramp.
	AutoTrade    bool `gorm:"default:false;index" json:"auto_trade"`
	ChargingMode bool `gorm:"default:false" json:"charging_mode"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (VenueAccount) TableName() string {
	return "venue_accounts"
}
