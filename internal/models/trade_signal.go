package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
	DirectionNone = "NONE"
)

const (
	OutcomePending = "PENDING"
	OutcomeWin     = "WIN"
	OutcomeLoss    = "LOSS"
	// OutcomeAborted is the terminal state for trades whose execution failed
	// after the record was created. A trade never stays PENDING once its
	// cycle has returned.
	OutcomeAborted = "ABORTED"
)

// TradeSignal is the ledger record for one fired decision. StakeAmount is
// fixed at creation and never resized; Executed and Outcome are written
// exactly once by the outcome-recording step.
type TradeSignal struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID  string `gorm:"type:varchar(36);not null;index:idx_trade_account_outcome" json:"account_id"`
	StrategyID string `gorm:"type:varchar(36);not null;index" json:"strategy_id"`

	Direction string `gorm:"type:varchar(10);not null" json:"direction"`
	Asset     string `gorm:"type:varchar(50);not null" json:"asset"`

	StakeAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"stake_amount"`
	ExpirySeconds int             `gorm:"not null" json:"expiry_seconds"`

	Executed bool   `gorm:"default:false" json:"executed"`
	Outcome  string `gorm:"type:varchar(10);not null;default:'PENDING';index:idx_trade_account_outcome" json:"outcome"`

	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (TradeSignal) TableName() string {
	return "trade_signals"
}
