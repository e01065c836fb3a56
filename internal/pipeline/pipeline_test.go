package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"optionbot/internal/automation"
	"optionbot/internal/config"
	"optionbot/internal/models"
	"optionbot/internal/oracle"
	"optionbot/internal/signal"
	"optionbot/internal/sizing"
)

type fixedOracle struct {
	outcome string
}

func (o fixedOracle) Decide(ctx context.Context, trade oracle.Trade) string {
	return o.outcome
}

// abortSurface fails at selectAsset, mimicking a dropdown that never renders.
type abortSurface struct {
	released int32
}

func (a *abortSurface) Authenticate(ctx context.Context, creds automation.Credentials) error {
	return nil
}

func (a *abortSurface) OpenTradingSurface(ctx context.Context) error {
	return nil
}

func (a *abortSurface) SelectAsset(ctx context.Context, symbol string) error {
	return errors.New("asset dropdown never appeared")
}

func (a *abortSurface) SetExpiry(ctx context.Context, seconds int) error {
	return nil
}

func (a *abortSurface) PlaceOrder(ctx context.Context, direction string, amount decimal.Decimal) error {
	return nil
}

func (a *abortSurface) Release() error {
	atomic.AddInt32(&a.released, 1)
	return nil
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		RSIPeriod:      14,
		UpperThreshold: 60,
		LowerThreshold: 40,
		BaseStake:      10,
		ExpirySeconds:  60,
		DefaultAsset:   "EUR/USD",
		SeriesLength:   100,
	}
}

func newTestPipeline(repo *stubRepo) *Pipeline {
	return &Pipeline{
		Repo:    repo,
		Signals: &signal.Generator{Period: 14},
		Sizer:   &sizing.Sizer{Ledger: repo},
		Oracle:  fixedOracle{outcome: models.OutcomeWin},
		Trading: testTradingConfig(),
	}
}

func seedAccount(repo *stubRepo, userID, accountID string) {
	repo.users[userID] = &models.User{ID: userID, Username: "u", IsActive: true}
	repo.accounts[accountID] = &models.VenueAccount{
		ID:     accountID,
		UserID: userID,
	}
}

func upwardPullbackPrices() []float64 {
	prices := []float64{100}
	last := 100.0
	for i := 0; i < 20; i++ {
		last += 1.0
		prices = append(prices, last)
	}
	return append(prices, last-0.2)
}

func flatPrices() []float64 {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100
	}
	return prices
}

func TestRunSynthetic_NoSignalCreatesNothing(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	res, err := p.RunSynthetic(context.Background(), SyntheticRequest{
		AccountID: "a1",
		Prices:    flatPrices(),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Fired {
		t.Fatalf("fired=%v want=false", res.Fired)
	}
	if repo.tradeCount() != 0 {
		t.Fatalf("trades=%d want=0", repo.tradeCount())
	}
}

func TestRunSynthetic_SignalFiresAndFinalizes(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	res, err := p.RunSynthetic(context.Background(), SyntheticRequest{
		AccountID: "a1",
		Prices:    upwardPullbackPrices(),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Fired || res.Direction != models.DirectionUp {
		t.Fatalf("fired=%v direction=%s want fired UP", res.Fired, res.Direction)
	}
	if res.Outcome != models.OutcomeWin {
		t.Fatalf("outcome=%s want=WIN", res.Outcome)
	}
	if want := decimal.NewFromInt(10); res.Stake.Cmp(want) != 0 {
		t.Fatalf("stake=%s want=10", res.Stake.String())
	}
	if repo.tradeCount() != 1 || repo.pendingCount() != 0 {
		t.Fatalf("trades=%d pending=%d want 1/0", repo.tradeCount(), repo.pendingCount())
	}
	state := repo.finalized[res.TradeID]
	if state.outcome != models.OutcomeWin || !state.executed {
		t.Fatalf("finalized=%+v want WIN executed", state)
	}
}

func TestRunSynthetic_ForceSubstitutesCoinFlip(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)
	p.Flip = func() string { return models.DirectionDown }

	res, err := p.RunSynthetic(context.Background(), SyntheticRequest{
		AccountID: "a1",
		Prices:    flatPrices(),
		Force:     true,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Fired || res.Direction != models.DirectionDown {
		t.Fatalf("fired=%v direction=%s want forced DOWN", res.Fired, res.Direction)
	}
}

func TestRunSynthetic_ChargingRampsStake(t *testing.T) {
	repo := newStubRepo()
	repo.wins = 3
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	res, err := p.RunSynthetic(context.Background(), SyntheticRequest{
		AccountID: "a1",
		Prices:    upwardPullbackPrices(),
		Charging:  true,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := decimal.RequireFromString("13"); res.Stake.Cmp(want) != 0 {
		t.Fatalf("stake=%s want=13", res.Stake.String())
	}
}

func TestRunSynthetic_UnknownAccount(t *testing.T) {
	p := newTestPipeline(newStubRepo())
	_, err := p.RunSynthetic(context.Background(), SyntheticRequest{AccountID: "missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err=%v want NotFoundError", err)
	}
}

func TestRunSynthetic_ShortSeriesAbortsBeforeCreate(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	_, err := p.RunSynthetic(context.Background(), SyntheticRequest{
		AccountID: "a1",
		Prices:    []float64{100},
	})
	if !errors.Is(err, signal.ErrInsufficientData) {
		t.Fatalf("err=%v want ErrInsufficientData", err)
	}
	if repo.tradeCount() != 0 {
		t.Fatalf("trades=%d want=0 (nothing partial persisted)", repo.tradeCount())
	}
}

func TestRunEvent_RejectsMissingFields(t *testing.T) {
	p := newTestPipeline(newStubRepo())
	cases := []struct {
		req   EventRequest
		field string
	}{
		{EventRequest{Asset: "EURUSD", ExpirySeconds: 60}, "signal"},
		{EventRequest{Direction: "SIDEWAYS", Asset: "EURUSD", ExpirySeconds: 60}, "signal"},
		{EventRequest{Direction: "UP", ExpirySeconds: 60}, "asset"},
		{EventRequest{Direction: "UP", Asset: "EURUSD"}, "expiry"},
	}
	for _, tc := range cases {
		_, err := p.RunEvent(context.Background(), tc.req)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("req=%+v err=%v want ValidationError", tc.req, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("field=%s want=%s", ve.Field, tc.field)
		}
		// The message has to fit present-but-invalid values (SIDEWAYS), not
		// just absent ones.
		if want := "missing or invalid field: " + tc.field; ve.Error() != want {
			t.Fatalf("msg=%q want=%q", ve.Error(), want)
		}
	}
}

func TestRunEvent_UnknownUser(t *testing.T) {
	p := newTestPipeline(newStubRepo())
	_, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "ghost", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "user" {
		t.Fatalf("err=%v want user NotFoundError", err)
	}
}

func TestRunEvent_UserWithoutAccount(t *testing.T) {
	repo := newStubRepo()
	repo.users["u1"] = &models.User{ID: "u1"}
	p := newTestPipeline(repo)
	_, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "trading account" {
		t.Fatalf("err=%v want trading account NotFoundError", err)
	}
}

func TestRunEvent_CreatesStrategyOnMiss(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	res, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "DOWN", Asset: "GBPUSD", ExpirySeconds: 120,
		StrategyName: "Momentum Push",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	created, err := repo.GetStrategyByName(context.Background(), "u1", "Momentum Push")
	if err != nil || created == nil {
		t.Fatalf("strategy not created: %v", err)
	}
	if res.Direction != models.DirectionDown || res.Asset != "GBPUSD" {
		t.Fatalf("res=%+v want DOWN GBPUSD", res)
	}

	// Resubmitting the identical event is not deduplicated.
	if _, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "DOWN", Asset: "GBPUSD", ExpirySeconds: 120,
		StrategyName: "Momentum Push",
	}); err != nil {
		t.Fatalf("resubmit err=%v", err)
	}
	if repo.tradeCount() != 2 {
		t.Fatalf("trades=%d want=2", repo.tradeCount())
	}
}

func TestExecutionAbortFinalizesTrade(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	surface := &abortSurface{}
	p := newTestPipeline(repo)
	p.Surfaces = func(ctx context.Context) (automation.Surface, error) {
		return surface, nil
	}

	res, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Outcome != models.OutcomeAborted {
		t.Fatalf("outcome=%s want=ABORTED", res.Outcome)
	}
	if repo.pendingCount() != 0 {
		t.Fatalf("pending=%d want=0 (aborted trades must be finalized)", repo.pendingCount())
	}
	state := repo.finalized[res.TradeID]
	if state.outcome != models.OutcomeAborted || state.executed {
		t.Fatalf("finalized=%+v want ABORTED not-executed", state)
	}
	if atomic.LoadInt32(&surface.released) != 1 {
		t.Fatalf("released=%d want=1", surface.released)
	}
}

func TestFinalizeRetriesOnceThenSucceeds(t *testing.T) {
	repo := newStubRepo()
	repo.failUpdates = 1
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	res, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if repo.pendingCount() != 0 {
		t.Fatalf("pending=%d want=0 after retry", repo.pendingCount())
	}
	if res.Outcome != models.OutcomeWin {
		t.Fatalf("outcome=%s want=WIN", res.Outcome)
	}
}

func TestFinalizeSucceedsWhenCancelledMidWrite(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writes := 0
	repo.updateHook = func(wctx context.Context) error {
		writes++
		if writes == 1 {
			// Caller cancellation lands while the first write is in flight.
			cancel()
			return ctx.Err()
		}
		// A healthy ledger only refuses writes on a dead context.
		return wctx.Err()
	}

	res, err := p.RunEvent(ctx, EventRequest{
		UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	if err != nil {
		t.Fatalf("err=%v writes=%d", err, writes)
	}
	if writes != 2 {
		t.Fatalf("writes=%d want=2", writes)
	}
	if repo.pendingCount() != 0 {
		t.Fatalf("pending=%d want=0 (retry must detach from the cancelled context)", repo.pendingCount())
	}
	state := repo.finalized[res.TradeID]
	if state.outcome != models.OutcomeWin || !state.executed {
		t.Fatalf("finalized=%+v want WIN executed", state)
	}
}

func TestFinalizeFailureSurfacedAsPersistenceError(t *testing.T) {
	repo := newStubRepo()
	repo.failUpdates = 2
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	_, err := p.RunEvent(context.Background(), EventRequest{
		UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
	})
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err=%v want PersistenceError", err)
	}
}

func TestConcurrentSameAccountCyclesSerialized(t *testing.T) {
	repo := newStubRepo()
	seedAccount(repo, "u1", "a1")
	p := newTestPipeline(repo)

	const cycles = 8
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.RunEvent(context.Background(), EventRequest{
				UserID: "u1", Direction: "UP", Asset: "EURUSD", ExpirySeconds: 60,
			})
			if err != nil {
				t.Errorf("cycle err=%v", err)
			}
		}()
	}
	wg.Wait()

	if repo.tradeCount() != cycles {
		t.Fatalf("trades=%d want=%d", repo.tradeCount(), cycles)
	}
	if repo.pendingCount() != 0 {
		t.Fatalf("pending=%d want=0", repo.pendingCount())
	}
	if repo.overlapping {
		t.Fatalf("same-account cycles overlapped")
	}
}

func TestConcurrentDistinctAccountsNoRecordLoss(t *testing.T) {
	repo := newStubRepo()
	accounts := []string{"a1", "a2", "a3", "a4"}
	for _, acct := range accounts {
		seedAccount(repo, "u"+acct, acct)
	}
	p := newTestPipeline(repo)

	const perAccount = 3
	var wg sync.WaitGroup
	for _, acct := range accounts {
		for i := 0; i < perAccount; i++ {
			wg.Add(1)
			go func(accountID string) {
				defer wg.Done()
				_, err := p.RunSynthetic(context.Background(), SyntheticRequest{
					AccountID: accountID,
					Prices:    upwardPullbackPrices(),
				})
				if err != nil {
					t.Errorf("cycle err=%v", err)
				}
			}(acct)
		}
	}
	wg.Wait()

	if want := len(accounts) * perAccount; repo.tradeCount() != want {
		t.Fatalf("trades=%d want=%d", repo.tradeCount(), want)
	}
	if repo.pendingCount() != 0 {
		t.Fatalf("pending=%d want=0", repo.pendingCount())
	}
}
