package automation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Credentials are what the surface types into the venue's login form.
type Credentials struct {
	Username string
	Password string
}

// Surface is the venue's UI-shaped interaction point. Every call either
// completes the interaction or fails with a human-readable reason; there is
// no richer return value because the venue exposes none. Release must be
// safe to call after any failure.
type Surface interface {
	Authenticate(ctx context.Context, creds Credentials) error
	OpenTradingSurface(ctx context.Context) error
	SelectAsset(ctx context.Context, symbol string) error
	SetExpiry(ctx context.Context, seconds int) error
	PlaceOrder(ctx context.Context, direction string, amount decimal.Decimal) error
	Release() error
}

// StepError records which automation step failed and why. It is the terminal
// error for a session: once raised the session is aborted and every later
// call returns it.
type StepError struct {
	Step   string
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("automation step %s failed: %s: %v", e.Step, e.Reason, e.Err)
	}
	return fmt.Sprintf("automation step %s failed: %s", e.Step, e.Reason)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
