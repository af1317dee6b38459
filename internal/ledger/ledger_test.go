package ledger_test

import (
	"errors"
	"testing"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/ledger"
	"github.com/yottachain/mena/internal/params"
)

func openAccount(t *testing.T, l *ledger.UserLedger, name string, now uint64) ledger.Account {
	t.Helper()
	a, err := l.Open(name, now)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	return a
}

// ============================================================================
// Test: UserLedger lifecycle
// ============================================================================

func TestOpen_DuplicateRejected(t *testing.T) {
	l := ledger.NewUserLedger()
	openAccount(t, l, "alice", 1000)

	_, err := l.Open("alice", 2000)
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGet_MissingAccount(t *testing.T) {
	l := ledger.NewUserLedger()
	_, err := l.Get("nobody")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPut_DoesNotAffectHeldCopies(t *testing.T) {
	l := ledger.NewUserLedger()
	a := openAccount(t, l, "alice", 0)

	b := a
	b.RentBalance = 999
	l.Put(b)

	if a.RentBalance != 0 {
		t.Error("held copy mutated by Put")
	}
	stored, _ := l.Get("alice")
	if stored.RentBalance != 999 {
		t.Errorf("stored balance %d, want 999", stored.RentBalance)
	}
}

// ============================================================================
// Test: rent side
// ============================================================================

func TestDebitRent_MayGoNegative(t *testing.T) {
	l := ledger.NewUserLedger()
	a := openAccount(t, l, "alice", 0)

	if err := a.CreditRent(100, 0); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := a.DebitRent(300, 0); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if a.RentBalance != -200 {
		t.Errorf("rent balance %d, want -200", a.RentBalance)
	}
}

func TestDebitRent_SettlesBeforeApplying(t *testing.T) {
	a := ledger.Account{Name: "alice", RentBalance: 1000, FeeRate: 100}

	// One full cycle of fee accrues before the debit lands.
	if err := a.DebitRent(50, params.CycleMS); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if a.RentBalance != 1000-100-50 {
		t.Errorf("rent balance %d, want %d", a.RentBalance, 1000-100-50)
	}
	if a.RentSettledAt != params.CycleMS {
		t.Errorf("settlement clock %d, want %d", a.RentSettledAt, params.CycleMS)
	}
}

func TestSetFeeRate_SettlesAtOldRateFirst(t *testing.T) {
	a := ledger.Account{Name: "alice", RentBalance: 1000, FeeRate: 100}

	// Raising the rate after two cycles must charge those cycles at the
	// old rate.
	if err := a.SetFeeRate(500, 2*params.CycleMS); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	if a.RentBalance != 800 {
		t.Errorf("rent balance %d, want 800", a.RentBalance)
	}
	if a.FeeRate != 500 {
		t.Errorf("fee rate %d, want 500", a.FeeRate)
	}
}

func TestSetFeeRate_SameRateRejected(t *testing.T) {
	a := ledger.Account{Name: "alice", FeeRate: 100}
	err := a.SetFeeRate(100, 1000)
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

// ============================================================================
// Test: profit side
// ============================================================================

func TestDebitProfit_InsufficientRejected(t *testing.T) {
	a := ledger.Account{Name: "bob", ProfitBalance: 100}
	err := a.DebitProfit(200, 0)
	if !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient, got %v", err)
	}
}

func TestAddContribution_AccruesFromAttachTime(t *testing.T) {
	a := ledger.Account{Name: "bob"}
	rate := fixed.CycleProfitRate(params.MinMinerSpace)

	if err := a.AddContribution(params.MinMinerSpace, rate, 1000); err != nil {
		t.Fatalf("add contribution: %v", err)
	}
	if a.ProfitRate != rate {
		t.Errorf("profit rate %d, want %d", a.ProfitRate, rate)
	}

	// One cycle later the balance reflects exactly one cycle at the
	// contributed rate.
	if err := a.SettleProfit(1000 + params.CycleMS); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if a.ProfitBalance != rate {
		t.Errorf("profit balance %d, want %d", a.ProfitBalance, rate)
	}
}

func TestRemoveContribution_UnderflowIsInvariantViolation(t *testing.T) {
	a := ledger.Account{Name: "bob", ProducedSpace: 10, ProfitRate: 5}
	err := a.RemoveContribution(20, 5, 0)
	if !errors.Is(err, errs.ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
}

func TestContribution_AddThenRemoveRoundTrips(t *testing.T) {
	a := ledger.Account{Name: "bob"}
	rate := fixed.CycleProfitRate(params.MaxMinerSpace)

	if err := a.AddContribution(params.MaxMinerSpace, rate, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := a.RemoveContribution(params.MaxMinerSpace, rate, params.CycleMS); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if a.ProducedSpace != 0 || a.ProfitRate != 0 {
		t.Errorf("contribution did not round-trip: space=%d rate=%d", a.ProducedSpace, a.ProfitRate)
	}
	// The cycle spent attached was still settled.
	if a.ProfitBalance != rate {
		t.Errorf("profit balance %d, want %d", a.ProfitBalance, rate)
	}
}

// ============================================================================
// Test: space counters
// ============================================================================

func TestUsedSpace_Bounds(t *testing.T) {
	a := ledger.Account{Name: "carol"}

	if err := a.AddUsedSpace(params.MaxUserSpace); err != nil {
		t.Fatalf("add to bound: %v", err)
	}
	if err := a.AddUsedSpace(1); !errors.Is(err, errs.ErrInvalid) {
		t.Errorf("expected ErrInvalid past bound, got %v", err)
	}
	if err := a.SubUsedSpace(params.MaxUserSpace + 1); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient on overdraw, got %v", err)
	}
	if err := a.SubUsedSpace(params.MaxUserSpace); err != nil {
		t.Fatalf("release: %v", err)
	}
	if a.UsedSpace != 0 {
		t.Errorf("used space %d, want 0", a.UsedSpace)
	}
}

// ============================================================================
// Test: snapshot round trip
// ============================================================================

func TestSnapshotRestore(t *testing.T) {
	l := ledger.NewUserLedger()
	a := openAccount(t, l, "alice", 100)
	a.RentBalance = 5000
	l.Put(a)
	openAccount(t, l, "bob", 200)

	snap := l.Snapshot()

	restored := ledger.NewUserLedger()
	restored.Restore(snap)
	if restored.Count() != 2 {
		t.Fatalf("restored %d accounts, want 2", restored.Count())
	}
	got, err := restored.Get("alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if got.RentBalance != 5000 {
		t.Errorf("rent balance %d, want 5000", got.RentBalance)
	}
}
