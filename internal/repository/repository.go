package repository

import (
	"context"
	"time"

	"optionbot/internal/models"
)

// Ledger is the append/update view the decision pipeline needs: insert the
// PENDING record, finalize its outcome once, and count recent wins for
// charging-mode sizing.
type Ledger interface {
	InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error
	UpdateTradeOutcome(ctx context.Context, id string, outcome string, executed bool) error
	CountRecentWins(ctx context.Context, accountID string, since time.Time) (int64, error)
}

type ListTradesParams struct {
	AccountIDs []string
	Limit      int
	Offset     int
}

// Repository is the full store: the trade ledger plus the user, account and
// strategy lookups the HTTP surface and the pipeline perform.
type Repository interface {
	Ledger

	GetTradeSignalByID(ctx context.Context, id string) (*models.TradeSignal, error)
	ListTradeSignals(ctx context.Context, params ListTradesParams) ([]models.TradeSignal, error)

	GetUserByID(ctx context.Context, id string) (*models.User, error)

	GetAccountByID(ctx context.Context, id string) (*models.VenueAccount, error)
	GetFirstAccountByUserID(ctx context.Context, userID string) (*models.VenueAccount, error)
	ListAccountsByUserID(ctx context.Context, userID string) ([]models.VenueAccount, error)
	ListAutoTradeAccounts(ctx context.Context) ([]models.VenueAccount, error)
	CreateAccount(ctx context.Context, item *models.VenueAccount) error
	DeleteAccount(ctx context.Context, id string) error

	GetStrategyByID(ctx context.Context, id string) (*models.Strategy, error)
	GetStrategyByName(ctx context.Context, userID, name string) (*models.Strategy, error)
	ListStrategiesByUserID(ctx context.Context, userID string) ([]models.Strategy, error)
	CreateStrategy(ctx context.Context, item *models.Strategy) error
	UpdateStrategy(ctx context.Context, item *models.Strategy) error
}
