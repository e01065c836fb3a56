package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"optionbot/internal/automation"
	"optionbot/internal/config"
	"optionbot/internal/models"
	"optionbot/internal/oracle"
	"optionbot/internal/repository"
	"optionbot/internal/signal"
	"optionbot/internal/sizing"
)

// SurfaceFactory opens a fresh automation surface for one execution attempt.
// A nil factory puts the pipeline in simulation mode: the outcome oracle
// settles trades without touching the venue.
type SurfaceFactory func(ctx context.Context) (automation.Surface, error)

// Pipeline runs one decision cycle end to end: decide, size, persist the
// PENDING record, execute, finalize the outcome. Cycles for the same account
// are serialized; cycles for different accounts run in parallel.
type Pipeline struct {
	Repo     repository.Repository
	Signals  *signal.Generator
	Sizer    *sizing.Sizer
	Oracle   oracle.Oracle
	Surfaces SurfaceFactory
	Logger   *zap.Logger
	Trading  config.TradingConfig

	// Flip substitutes a direction on forced no-signal cycles. Overridable
	// for tests; defaults to an unweighted draw.
	Flip func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// SyntheticRequest triggers a price-series cycle. Prices may be supplied by
// the caller; when empty the pipeline generates a mock series. Force
// substitutes a coin-flip direction when no signal fires, a documented
// placeholder rather than a strategy.
type SyntheticRequest struct {
	AccountID  string
	StrategyID string
	Asset      string
	Prices     []float64
	Charging   bool
	Force      bool
}

// EventRequest triggers a cycle from a pre-decided external signal, bypassing
// the generator.
type EventRequest struct {
	UserID        string
	Direction     string
	Asset         string
	ExpirySeconds int
	StrategyName  string
}

// CycleResult is what one decision cycle produced. Fired is false when no
// signal was detected and the cycle ended without a trade.
type CycleResult struct {
	Fired     bool
	TradeID   string
	Direction string
	Asset     string
	Stake     decimal.Decimal
	Outcome   string
	Message   string
}

// RunSynthetic executes one price-series decision cycle for an account.
func (p *Pipeline) RunSynthetic(ctx context.Context, req SyntheticRequest) (*CycleResult, error) {
	account, err := p.Repo.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, &PersistenceError{Op: "load account", Err: err}
	}
	if account == nil {
		return nil, &NotFoundError{Resource: "account"}
	}

	unlock := p.lockAccount(account.ID)
	defer unlock()

	strat := p.resolveStrategy(ctx, req.StrategyID)
	asset := req.Asset
	if asset == "" {
		asset = p.Trading.DefaultAsset
	}

	prices := req.Prices
	if len(prices) == 0 {
		prices = p.syntheticSeries(p.Trading.SeriesLength)
	}

	dir, err := p.Signals.Decide(prices, strat.UpperThreshold, strat.LowerThreshold)
	if err != nil {
		// Nothing has been persisted at this point by design.
		return nil, err
	}
	direction := string(dir)
	if dir == signal.DirectionNone {
		if !req.Force {
			return &CycleResult{Fired: false, Message: "no trading signal detected"}, nil
		}
		direction = p.flip()
	}

	return p.fire(ctx, account, strat, direction, asset, strat.ExpirySeconds, req.Charging)
}

// RunEvent executes one cycle for a pre-decided signal pushed by an external
// source. The user's first venue account takes the trade; the named strategy
// is created with defaults when missing. Identical resubmissions are not
// deduplicated: every call creates a new trade.
func (p *Pipeline) RunEvent(ctx context.Context, req EventRequest) (*CycleResult, error) {
	if req.Direction != models.DirectionUp && req.Direction != models.DirectionDown {
		return nil, &ValidationError{Field: "signal"}
	}
	if req.Asset == "" {
		return nil, &ValidationError{Field: "asset"}
	}
	if req.ExpirySeconds <= 0 {
		return nil, &ValidationError{Field: "expiry"}
	}

	user, err := p.Repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, &PersistenceError{Op: "load user", Err: err}
	}
	if user == nil {
		return nil, &NotFoundError{Resource: "user"}
	}
	account, err := p.Repo.GetFirstAccountByUserID(ctx, req.UserID)
	if err != nil {
		return nil, &PersistenceError{Op: "load account", Err: err}
	}
	if account == nil {
		return nil, &NotFoundError{Resource: "trading account"}
	}

	unlock := p.lockAccount(account.ID)
	defer unlock()

	strat, err := p.strategyByNameOrCreate(ctx, req.UserID, req.StrategyName)
	if err != nil {
		return nil, err
	}

	return p.fire(ctx, account, strat, req.Direction, req.Asset, req.ExpirySeconds, account.ChargingMode)
}

// fire is the shared tail of both triggers: size, persist PENDING, execute,
// finalize. Caller must hold the account lock.
func (p *Pipeline) fire(ctx context.Context, account *models.VenueAccount, strat *models.Strategy, direction, asset string, expirySeconds int, charging bool) (*CycleResult, error) {
	now := time.Now().UTC()
	base := decimal.NewFromFloat(strat.TradeAmount)
	stake, err := p.Sizer.Stake(ctx, base, charging, account.ID, now)
	if err != nil {
		return nil, &PersistenceError{Op: "count recent wins", Err: err}
	}

	trade := &models.TradeSignal{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		StrategyID:    strat.ID,
		Direction:     direction,
		Asset:         asset,
		StakeAmount:   stake,
		ExpirySeconds: expirySeconds,
		Executed:      false,
		Outcome:       models.OutcomePending,
		CreatedAt:     now,
	}
	if err := p.Repo.InsertTradeSignal(ctx, trade); err != nil {
		return nil, &PersistenceError{Op: "insert trade", Err: err}
	}

	outcome, executed := p.execute(ctx, account, trade)
	if err := p.finalize(ctx, trade.ID, outcome, executed); err != nil {
		return nil, err
	}

	if p.Logger != nil {
		p.Logger.Info("decision cycle complete",
			zap.String("trade_id", trade.ID),
			zap.String("account_id", account.ID),
			zap.String("direction", direction),
			zap.String("asset", asset),
			zap.String("stake", stake.String()),
			zap.String("outcome", outcome),
		)
	}
	return &CycleResult{
		Fired:     true,
		TradeID:   trade.ID,
		Direction: direction,
		Asset:     asset,
		Stake:     stake,
		Outcome:   outcome,
		Message:   "trade executed: " + direction + " on " + asset,
	}, nil
}

// execute attempts the trade. With a surface factory present it drives a real
// automation session; otherwise the outcome oracle settles directly. The
// returned outcome is always terminal.
func (p *Pipeline) execute(ctx context.Context, account *models.VenueAccount, trade *models.TradeSignal) (outcome string, executed bool) {
	settle := func() string {
		return p.Oracle.Decide(ctx, oracle.Trade{
			TradeID:   trade.ID,
			AccountID: account.ID,
			Asset:     trade.Asset,
			Direction: trade.Direction,
		})
	}

	if p.Surfaces == nil {
		return settle(), true
	}

	surface, err := p.Surfaces(ctx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("automation surface unavailable",
				zap.String("trade_id", trade.ID),
				zap.Error(err),
			)
		}
		return models.OutcomeAborted, false
	}

	sess := automation.NewSession(surface,
		automation.Credentials{Username: account.Username, Password: account.Password},
		automation.Order{
			Asset:         trade.Asset,
			Direction:     trade.Direction,
			Amount:        trade.StakeAmount,
			ExpirySeconds: trade.ExpirySeconds,
		},
		p.Logger,
	)
	defer func() {
		if err := sess.Release(); err != nil && p.Logger != nil {
			p.Logger.Warn("surface release failed", zap.Error(err))
		}
	}()

	if err := sess.PlaceOrder(ctx, trade.Direction, trade.StakeAmount); err != nil {
		if p.Logger != nil {
			p.Logger.Warn("execution aborted",
				zap.String("trade_id", trade.ID),
				zap.String("step", sess.AbortedStep()),
				zap.Error(err),
			)
		}
		return models.OutcomeAborted, false
	}
	return settle(), true
}

// finalize writes the terminal outcome, retrying the write once. A cancelled
// cycle still finalizes: the record was created, so it must not stay PENDING.
func (p *Pipeline) finalize(ctx context.Context, tradeID, outcome string, executed bool) error {
	wctx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		wctx, cancel = detachedWriteContext()
		defer cancel()
	}
	err := p.Repo.UpdateTradeOutcome(wctx, tradeID, outcome, executed)
	if err == nil {
		return nil
	}
	// Cancellation may have landed while the first write was in flight; the
	// retry must not inherit the dead context or it can never succeed.
	if wctx.Err() != nil {
		var cancel context.CancelFunc
		wctx, cancel = detachedWriteContext()
		defer cancel()
	}
	if retryErr := p.Repo.UpdateTradeOutcome(wctx, tradeID, outcome, executed); retryErr == nil {
		return nil
	}
	// The trade's recorded state may now disagree with the venue; surface it.
	return &PersistenceError{Op: "update trade outcome", Err: err}
}

func detachedWriteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// resolveStrategy loads the stored strategy or falls back to config defaults
// without persisting anything.
func (p *Pipeline) resolveStrategy(ctx context.Context, strategyID string) *models.Strategy {
	if strategyID != "" {
		if strat, err := p.Repo.GetStrategyByID(ctx, strategyID); err == nil && strat != nil {
			return strat
		}
	}
	return p.defaultStrategy("RSI Strategy", "")
}

func (p *Pipeline) strategyByNameOrCreate(ctx context.Context, userID, name string) (*models.Strategy, error) {
	if name == "" {
		name = "RSI Strategy"
	}
	strat, err := p.Repo.GetStrategyByName(ctx, userID, name)
	if err != nil {
		return nil, &PersistenceError{Op: "load strategy", Err: err}
	}
	if strat != nil {
		return strat, nil
	}
	strat = p.defaultStrategy(name, userID)
	if err := p.Repo.CreateStrategy(ctx, strat); err != nil {
		return nil, &PersistenceError{Op: "create strategy", Err: err}
	}
	return strat, nil
}

func (p *Pipeline) defaultStrategy(name, userID string) *models.Strategy {
	return &models.Strategy{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		UpperThreshold: p.Trading.UpperThreshold,
		LowerThreshold: p.Trading.LowerThreshold,
		TradeAmount:    p.Trading.BaseStake,
		ExpirySeconds:  p.Trading.ExpirySeconds,
	}
}

// lockAccount serializes cycles per account while leaving other accounts
// free to run.
func (p *Pipeline) lockAccount(accountID string) func() {
	p.locksMu.Lock()
	if p.locks == nil {
		p.locks = map[string]*sync.Mutex{}
	}
	lock, ok := p.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[accountID] = lock
	}
	p.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (p *Pipeline) flip() string {
	if p.Flip != nil {
		return p.Flip()
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	if p.seededRNG().Float64() > 0.5 {
		return models.DirectionUp
	}
	return models.DirectionDown
}

// syntheticSeries mirrors the mock feed: independent draws around a nominal
// level of 100 with spread 2.
func (p *Pipeline) syntheticSeries(n int) []float64 {
	if n < 2 {
		n = 100
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	rng := p.seededRNG()
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + rng.NormFloat64()*2
	}
	return out
}

// seededRNG requires rngMu to be held.
func (p *Pipeline) seededRNG() *rand.Rand {
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p.rng
}
