package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"optionbot/internal/models"
	"optionbot/internal/repository"
)

// stubRepo is an in-memory Repository for pipeline tests. It tracks how many
// trades are between insert and finalize per account so tests can assert the
// per-account serialization.
type stubRepo struct {
	mu sync.Mutex

	users      map[string]*models.User
	accounts   map[string]*models.VenueAccount
	strategies map[string]*models.Strategy

	trades    []*models.TradeSignal
	finalized map[string]finalizedState

	wins        int64
	failUpdates int

	// updateHook, when set, runs before each outcome write with the write's
	// context; a non-nil return is surfaced as the write's error.
	updateHook func(ctx context.Context) error

	open        map[string]int
	overlapping bool
}

type finalizedState struct {
	outcome  string
	executed bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:      map[string]*models.User{},
		accounts:   map[string]*models.VenueAccount{},
		strategies: map[string]*models.Strategy{},
		finalized:  map[string]finalizedState{},
		open:       map[string]int{},
	}
}

func (s *stubRepo) InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[item.AccountID] > 0 {
		s.overlapping = true
	}
	s.open[item.AccountID]++
	cp := *item
	s.trades = append(s.trades, &cp)
	return nil
}

func (s *stubRepo) UpdateTradeOutcome(ctx context.Context, id string, outcome string, executed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateHook != nil {
		if err := s.updateHook(ctx); err != nil {
			return err
		}
	}
	if s.failUpdates > 0 {
		s.failUpdates--
		return errors.New("write refused")
	}
	for _, tr := range s.trades {
		if tr.ID == id {
			tr.Outcome = outcome
			tr.Executed = executed
			s.finalized[id] = finalizedState{outcome: outcome, executed: executed}
			if s.open[tr.AccountID] > 0 {
				s.open[tr.AccountID]--
			}
			return nil
		}
	}
	return errors.New("no such trade")
}

func (s *stubRepo) CountRecentWins(ctx context.Context, accountID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wins, nil
}

func (s *stubRepo) GetTradeSignalByID(ctx context.Context, id string) (*models.TradeSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range s.trades {
		if tr.ID == id {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListTradeSignals(ctx context.Context, params repository.ListTradesParams) ([]models.TradeSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TradeSignal, 0, len(s.trades))
	for _, tr := range s.trades {
		out = append(out, *tr)
	}
	return out, nil
}

func (s *stubRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *stubRepo) GetAccountByID(ctx context.Context, id string) (*models.VenueAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id], nil
}

func (s *stubRepo) GetFirstAccountByUserID(ctx context.Context, userID string) (*models.VenueAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.UserID == userID {
			return acct, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListAccountsByUserID(ctx context.Context, userID string) ([]models.VenueAccount, error) {
	return nil, nil
}

func (s *stubRepo) ListAutoTradeAccounts(ctx context.Context) ([]models.VenueAccount, error) {
	return nil, nil
}

func (s *stubRepo) CreateAccount(ctx context.Context, item *models.VenueAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[item.ID] = item
	return nil
}

func (s *stubRepo) DeleteAccount(ctx context.Context, id string) error {
	return nil
}

func (s *stubRepo) GetStrategyByID(ctx context.Context, id string) (*models.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategies[id], nil
}

func (s *stubRepo) GetStrategyByName(ctx context.Context, userID, name string) (*models.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, strat := range s.strategies {
		if strat.UserID == userID && strat.Name == name {
			return strat, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListStrategiesByUserID(ctx context.Context, userID string) ([]models.Strategy, error) {
	return nil, nil
}

func (s *stubRepo) CreateStrategy(ctx context.Context, item *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[item.ID] = item
	return nil
}

func (s *stubRepo) UpdateStrategy(ctx context.Context, item *models.Strategy) error {
	return nil
}

func (s *stubRepo) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

func (s *stubRepo) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tr := range s.trades {
		if tr.Outcome == models.OutcomePending {
			n++
		}
	}
	return n
}
