package sizing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"optionbot/internal/repository"
)

// DefaultWindow is the trailing window the charging ramp counts wins over.
const DefaultWindow = time.Hour

var rampStep = decimal.RequireFromString("0.1")

// Sizer turns a strategy's base stake into the amount actually placed.
// In charging mode the stake ramps by 10% per WIN recorded for the account
// within the trailing window. The ramp has no ceiling; capping it is a
// strategy decision that has deliberately not been taken here.
type Sizer struct {
	Ledger repository.Ledger
	Logger *zap.Logger
	Window time.Duration
}

// Stake computes the amount for one trade as of now. The win count is scoped
// to the account and to outcome=WIN only.
func (s *Sizer) Stake(ctx context.Context, base decimal.Decimal, charging bool, accountID string, now time.Time) (decimal.Decimal, error) {
	if !charging {
		return base, nil
	}
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	wins, err := s.Ledger.CountRecentWins(ctx, accountID, now.Add(-window))
	if err != nil {
		return decimal.Zero, err
	}
	factor := decimal.NewFromInt(1).Add(rampStep.Mul(decimal.NewFromInt(wins)))
	stake := base.Mul(factor)
	if s.Logger != nil {
		s.Logger.Debug("charging stake",
			zap.String("account_id", accountID),
			zap.Int64("recent_wins", wins),
			zap.String("stake", stake.String()),
		)
	}
	return stake, nil
}
