package sizing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionbot/internal/models"
)

type stubLedger struct {
	wins      int64
	err       error
	gotSince  time.Time
	gotAcctID string
}

func (s *stubLedger) InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error {
	return nil
}

func (s *stubLedger) UpdateTradeOutcome(ctx context.Context, id string, outcome string, executed bool) error {
	return nil
}

func (s *stubLedger) CountRecentWins(ctx context.Context, accountID string, since time.Time) (int64, error) {
	s.gotAcctID = accountID
	s.gotSince = since
	return s.wins, s.err
}

func TestStake_NotChargingReturnsBase(t *testing.T) {
	s := &Sizer{Ledger: &stubLedger{wins: 99}}
	base := decimal.NewFromInt(10)
	got, err := s.Stake(context.Background(), base, false, "a1", time.Now())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Cmp(base) != 0 {
		t.Fatalf("stake=%s want=10", got.String())
	}
}

func TestStake_ChargingRampsPerWin(t *testing.T) {
	ledger := &stubLedger{wins: 3}
	s := &Sizer{Ledger: ledger}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := s.Stake(context.Background(), decimal.NewFromInt(10), true, "a1", now)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := decimal.RequireFromString("13"); got.Cmp(want) != 0 {
		t.Fatalf("stake=%s want=13", got.String())
	}
	if ledger.gotAcctID != "a1" {
		t.Fatalf("account=%s want=a1", ledger.gotAcctID)
	}
	if want := now.Add(-time.Hour); !ledger.gotSince.Equal(want) {
		t.Fatalf("since=%s want=%s", ledger.gotSince, want)
	}
}

func TestStake_ChargingZeroWins(t *testing.T) {
	s := &Sizer{Ledger: &stubLedger{wins: 0}}
	got, err := s.Stake(context.Background(), decimal.NewFromInt(10), true, "a1", time.Now())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if want := decimal.NewFromInt(10); got.Cmp(want) != 0 {
		t.Fatalf("stake=%s want=10", got.String())
	}
}

func TestStake_LedgerErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	s := &Sizer{Ledger: &stubLedger{err: boom}}
	if _, err := s.Stake(context.Background(), decimal.NewFromInt(10), true, "a1", time.Now()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want db down", err)
	}
}
