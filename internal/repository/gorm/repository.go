package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"optionbot/internal/models"
	"optionbot/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- trade ledger ------------------------------------------------------------

func (s *Store) InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTradeOutcome(ctx context.Context, id string, outcome string, executed bool) error {
	if s == nil || s.db == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.TradeSignal{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":    outcome,
			"executed":   executed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) CountRecentWins(ctx context.Context, accountID string, since time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TradeSignal{}).
		Where("account_id = ?", accountID).
		Where("outcome = ?", models.OutcomeWin).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (s *Store) GetTradeSignalByID(ctx context.Context, id string) (*models.TradeSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TradeSignal
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTradeSignals(ctx context.Context, params repository.ListTradesParams) ([]models.TradeSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeSignal{})
	if len(params.AccountIDs) > 0 {
		query = query.Where("account_id IN ?", params.AccountIDs)
	}
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.TradeSignal
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- users -------------------------------------------------------------------

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- venue accounts ----------------------------------------------------------

func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.VenueAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.VenueAccount
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetFirstAccountByUserID(ctx context.Context, userID string) (*models.VenueAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.VenueAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAccountsByUserID(ctx context.Context, userID string) ([]models.VenueAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.VenueAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAutoTradeAccounts(ctx context.Context) ([]models.VenueAccount, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.VenueAccount
	err := s.db.WithContext(ctx).
		Where("auto_trade = ?", true).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateAccount(ctx context.Context, item *models.VenueAccount) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.VenueAccount{}).Error
}

// --- strategies --------------------------------------------------------------

func (s *Store) GetStrategyByID(ctx context.Context, id string) (*models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Strategy
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetStrategyByName(ctx context.Context, userID, name string) (*models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Strategy
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("name = ?", strings.TrimSpace(name)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStrategiesByUserID(ctx context.Context, userID string) ([]models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Strategy
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Model(&models.Strategy{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"name":            item.Name,
			"upper_threshold": item.UpperThreshold,
			"lower_threshold": item.LowerThreshold,
			"trade_amount":    item.TradeAmount,
			"expiry_seconds":  item.ExpirySeconds,
			"params":          item.Params,
			"updated_at":      item.UpdatedAt,
		}).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
