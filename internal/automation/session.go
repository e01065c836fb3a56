package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the session's progress through the venue workflow. Transitions
// are monotonic forward; the only way back is a fresh session.
type State int

const (
	StateIdle State = iota
	StateAuthenticated
	StateOnTradingSurface
	StateAssetSelected
	StateExpirySet
	StateOrderPlaced
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticated:
		return "authenticated"
	case StateOnTradingSurface:
		return "on_trading_surface"
	case StateAssetSelected:
		return "asset_selected"
	case StateExpirySet:
		return "expiry_set"
	case StateOrderPlaced:
		return "order_placed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrOperationInFlight is returned when a second operation is started on a
// session that is still executing one. Sessions are single-operator seats.
var ErrOperationInFlight = errors.New("session operation already in flight")

// Order carries the trade the session exists to place. The lazy prerequisite
// chain pulls asset and expiry from here when the caller jumps straight to
// PlaceOrder.
type Order struct {
	Asset         string
	Direction     string
	Amount        decimal.Decimal
	ExpirySeconds int
}

// Session drives one end-to-end automation attempt. Each operation first
// satisfies any missing prerequisite steps in order, so calling PlaceOrder on
// a fresh session runs authenticate → open → select → expiry → place. Any
// step failure moves the session to Aborted and pins the originating step;
// there is no built-in retry; callers retry by constructing a new session.
type Session struct {
	surface Surface
	creds   Credentials
	order   Order
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	aborted *StepError
	release sync.Once
}

func NewSession(surface Surface, creds Credentials, order Order, logger *zap.Logger) *Session {
	return &Session{
		surface: surface,
		creds:   creds,
		order:   order,
		logger:  logger,
		state:   StateIdle,
	}
}

// State reports the session's current position in the workflow.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AbortedStep returns the failed step name, or "" if the session has not
// aborted.
func (s *Session) AbortedStep() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted == nil {
		return ""
	}
	return s.aborted.Step
}

func (s *Session) Authenticate(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrOperationInFlight
	}
	defer s.mu.Unlock()
	return s.authenticate(ctx)
}

func (s *Session) OpenTradingSurface(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrOperationInFlight
	}
	defer s.mu.Unlock()
	return s.openTradingSurface(ctx)
}

func (s *Session) SelectAsset(ctx context.Context, symbol string) error {
	if !s.mu.TryLock() {
		return ErrOperationInFlight
	}
	defer s.mu.Unlock()
	return s.selectAsset(ctx, symbol)
}

func (s *Session) SetExpiry(ctx context.Context, seconds int) error {
	if !s.mu.TryLock() {
		return ErrOperationInFlight
	}
	defer s.mu.Unlock()
	return s.setExpiry(ctx, seconds)
}

func (s *Session) PlaceOrder(ctx context.Context, direction string, amount decimal.Decimal) error {
	if !s.mu.TryLock() {
		return ErrOperationInFlight
	}
	defer s.mu.Unlock()
	return s.placeOrder(ctx, direction, amount)
}

// Release hands the automation surface back. Idempotent; every exit path of
// the owning cycle must end up here.
func (s *Session) Release() error {
	var err error
	s.release.Do(func() {
		err = s.surface.Release()
	})
	return err
}

// require brings the session at least to want, running the missing steps in
// forward order with the session's own order parameters.
func (s *Session) require(ctx context.Context, want State) error {
	if s.state == StateAborted {
		return s.aborted
	}
	if s.state >= want {
		return nil
	}
	switch want {
	case StateAuthenticated:
		return s.authenticate(ctx)
	case StateOnTradingSurface:
		return s.openTradingSurface(ctx)
	case StateAssetSelected:
		return s.selectAsset(ctx, s.order.Asset)
	case StateExpirySet:
		return s.setExpiry(ctx, s.order.ExpirySeconds)
	default:
		return nil
	}
}

func (s *Session) authenticate(ctx context.Context) error {
	if s.state == StateAborted {
		return s.aborted
	}
	if s.state >= StateAuthenticated {
		return nil
	}
	if err := s.surface.Authenticate(ctx, s.creds); err != nil {
		return s.abort("authenticate", err)
	}
	s.advance(StateAuthenticated)
	return nil
}

func (s *Session) openTradingSurface(ctx context.Context) error {
	if err := s.require(ctx, StateAuthenticated); err != nil {
		return err
	}
	if s.state >= StateOnTradingSurface {
		return nil
	}
	if err := s.surface.OpenTradingSurface(ctx); err != nil {
		return s.abort("openTradingSurface", err)
	}
	s.advance(StateOnTradingSurface)
	return nil
}

func (s *Session) selectAsset(ctx context.Context, symbol string) error {
	if err := s.require(ctx, StateOnTradingSurface); err != nil {
		return err
	}
	if s.state >= StateAssetSelected {
		return nil
	}
	if err := s.surface.SelectAsset(ctx, symbol); err != nil {
		return s.abort("selectAsset", err)
	}
	s.advance(StateAssetSelected)
	return nil
}

func (s *Session) setExpiry(ctx context.Context, seconds int) error {
	if err := s.require(ctx, StateAssetSelected); err != nil {
		return err
	}
	if s.state >= StateExpirySet {
		return nil
	}
	if err := s.surface.SetExpiry(ctx, seconds); err != nil {
		return s.abort("setExpiry", err)
	}
	s.advance(StateExpirySet)
	return nil
}

func (s *Session) placeOrder(ctx context.Context, direction string, amount decimal.Decimal) error {
	if err := s.require(ctx, StateExpirySet); err != nil {
		return err
	}
	if s.state >= StateOrderPlaced {
		return nil
	}
	if err := s.surface.PlaceOrder(ctx, direction, amount); err != nil {
		return s.abort("placeOrder", err)
	}
	s.advance(StateOrderPlaced)
	return nil
}

func (s *Session) advance(next State) {
	prev := s.state
	s.state = next
	if s.logger != nil {
		s.logger.Debug("session advanced",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
		)
	}
}

func (s *Session) abort(step string, err error) *StepError {
	ab := &StepError{Step: step, Reason: "ui interaction failed", Err: err}
	s.state = StateAborted
	s.aborted = ab
	if s.logger != nil {
		s.logger.Warn("session aborted",
			zap.String("step", step),
			zap.Error(err),
		)
	}
	return ab
}
