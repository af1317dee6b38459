package token_test

import (
	"errors"
	"testing"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/token"
	"github.com/yottachain/mena/internal/vesting"
)

type stubDeposits map[string]int64

func (s stubDeposits) TotalOf(owner string) int64 { return s[owner] }

func newLedger(t *testing.T, deposits stubDeposits) (*token.Ledger, *vesting.Calculator) {
	t.Helper()
	if deposits == nil {
		deposits = stubDeposits{}
	}
	vest := vesting.NewCalculator()
	l := token.NewLedger(vest, deposits)
	if err := l.Create("issuer", "MTA", 1_000_000); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Issue("alice", "MTA", 10000); err != nil {
		t.Fatalf("issue: %v", err)
	}
	return l, vest
}

// ============================================================================
// Test: create / issue
// ============================================================================

func TestCreate_DuplicateSymbol(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.Create("issuer", "MTA", 500); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestIssue_SupplyCap(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.Issue("bob", "MTA", 1_000_000-10000+1); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient, got %v", err)
	}
	if err := l.Issue("bob", "MTA", 1_000_000-10000); err != nil {
		t.Fatalf("issue to cap: %v", err)
	}
	st, err := l.Stats("MTA")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Supply != st.MaxSupply {
		t.Errorf("supply %d, want %d", st.Supply, st.MaxSupply)
	}
}

// ============================================================================
// Test: transfer gates
// ============================================================================

func TestTransfer_MovesBalance(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.Transfer("alice", "bob", "MTA", 4000, 0); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf("alice", "MTA"); got != 6000 {
		t.Errorf("alice balance %d, want 6000", got)
	}
	if got := l.BalanceOf("bob", "MTA"); got != 4000 {
		t.Errorf("bob balance %d, want 4000", got)
	}
}

func TestTransfer_SelfRejected(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.Transfer("alice", "alice", "MTA", 1, 0); !errors.Is(err, errs.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestTransfer_FrozenSender(t *testing.T) {
	l, _ := newLedger(t, nil)
	l.FreezeAccount("alice", 5000)

	if err := l.Transfer("alice", "bob", "MTA", 100, 4000); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict while frozen, got %v", err)
	}
	// Past the deadline the freeze expires on its own.
	if err := l.Transfer("alice", "bob", "MTA", 100, 5000); err != nil {
		t.Errorf("transfer after freeze expiry: %v", err)
	}
}

func TestIsFrozen_ExpiredEntryStaysUntilLifted(t *testing.T) {
	l, _ := newLedger(t, nil)
	l.FreezeAccount("alice", 5000)

	if !l.IsFrozen("alice", 4999) {
		t.Error("alice should be frozen before the deadline")
	}
	// Reading past the deadline reports unfrozen but must not remove
	// the entry.
	if l.IsFrozen("alice", 5000) {
		t.Error("alice should read unfrozen at the deadline")
	}
	if err := l.UnfreezeAccount("alice"); err != nil {
		t.Fatalf("lifting an expired freeze: %v", err)
	}
	if err := l.UnfreezeAccount("alice"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second lift, got %v", err)
	}
}

func TestTakeTouchedAccess_ReportsRemovals(t *testing.T) {
	l, _ := newLedger(t, nil)
	l.FreezeAccount("alice", 5000)
	if err := l.AddRestricted("issuer", "genesis"); err != nil {
		t.Fatalf("add restricted: %v", err)
	}
	frozen, unfrozen, restricted, unrestricted := l.TakeTouchedAccess()
	if len(frozen) != 1 || frozen[0].Account != "alice" || frozen[0].Until != 5000 {
		t.Errorf("frozen %+v, want alice until 5000", frozen)
	}
	if len(restricted) != 1 || restricted[0].Account != "issuer" || restricted[0].Memo != "genesis" {
		t.Errorf("restricted %+v, want issuer/genesis", restricted)
	}
	if len(unfrozen) != 0 || len(unrestricted) != 0 {
		t.Errorf("unexpected removals %v %v", unfrozen, unrestricted)
	}

	if err := l.UnfreezeAccount("alice"); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := l.RemoveRestricted("issuer"); err != nil {
		t.Fatalf("remove restricted: %v", err)
	}
	frozen, unfrozen, restricted, unrestricted = l.TakeTouchedAccess()
	if len(frozen) != 0 || len(restricted) != 0 {
		t.Errorf("unexpected entries %+v %+v after removal", frozen, restricted)
	}
	if len(unfrozen) != 1 || unfrozen[0] != "alice" {
		t.Errorf("unfrozen %v, want [alice]", unfrozen)
	}
	if len(unrestricted) != 1 || unrestricted[0] != "issuer" {
		t.Errorf("unrestricted %v, want [issuer]", unrestricted)
	}
}

func TestTransfer_PledgedDepositHeld(t *testing.T) {
	l, _ := newLedger(t, stubDeposits{"alice": 9500})

	if err := l.Transfer("alice", "bob", "MTA", 1000, 0); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient over pledge, got %v", err)
	}
	if err := l.Transfer("alice", "bob", "MTA", 500, 0); err != nil {
		t.Errorf("transfer within free balance: %v", err)
	}
}

func TestForcedTransfer_BypassesGates(t *testing.T) {
	l, _ := newLedger(t, stubDeposits{"alice": 10000})
	l.FreezeAccount("alice", 1<<50)

	if err := l.ForcedTransfer("alice", "forfeit.mena", "MTA", 10000, 0); err != nil {
		t.Fatalf("forced transfer: %v", err)
	}
	if got := l.BalanceOf("alice", "MTA"); got != 0 {
		t.Errorf("alice balance %d, want 0", got)
	}
}

// ============================================================================
// Test: locked transfers
// ============================================================================

func lockRule(id uint64) vesting.Rule {
	return vesting.Rule{
		ID:       id,
		Times:    []uint64{1000, 2000},
		Percents: []uint8{50, 100},
		Base:     100,
		Absolute: true,
	}
}

func TestLockTransfer_RequiresRestrictedSender(t *testing.T) {
	l, vest := newLedger(t, nil)
	if err := vest.AddRule(lockRule(1)); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	err := l.LockTransfer(1, "alice", "bob", "MTA", 1000, 0)
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLockTransfer_LocksRecipientBalance(t *testing.T) {
	l, vest := newLedger(t, nil)
	if err := vest.AddRule(lockRule(1)); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if err := l.AddRestricted("alice", "genesis distributor"); err != nil {
		t.Fatalf("add restricted: %v", err)
	}
	if err := l.LockTransfer(1, "alice", "bob", "MTA", 1000, 0); err != nil {
		t.Fatalf("lock transfer: %v", err)
	}

	// Before the first unlock step bob cannot spend any of it.
	if err := l.Transfer("bob", "carol", "MTA", 1, 500); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient while locked, got %v", err)
	}
	// After 50% unlocks, half is spendable.
	if err := l.Transfer("bob", "carol", "MTA", 500, 1000); err != nil {
		t.Errorf("transfer of unlocked half: %v", err)
	}
	if err := l.Transfer("bob", "carol", "MTA", 1, 1000); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient beyond unlocked half, got %v", err)
	}
}

func TestLockTransfer_RelativeRuleAnchorsOnExchangeTime(t *testing.T) {
	l, vest := newLedger(t, nil)
	rule := lockRule(1)
	rule.Absolute = false
	if err := vest.AddRule(rule); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if err := l.AddRestricted("alice", ""); err != nil {
		t.Fatalf("add restricted: %v", err)
	}
	if err := l.LockTransfer(1, "alice", "bob", "MTA", 1000, 0); err != nil {
		t.Fatalf("lock transfer: %v", err)
	}

	// Without an exchange time nothing ever unlocks.
	if err := l.Transfer("bob", "carol", "MTA", 1, 1<<50); !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient with no exchange time, got %v", err)
	}

	if err := l.SetExchangeTime("MTA", 10000); err != nil {
		t.Fatalf("set exchange time: %v", err)
	}
	if err := l.SetExchangeTime("MTA", 20000); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict on second set, got %v", err)
	}
	// 50% unlocks at exchange time + 1000.
	if err := l.Transfer("bob", "carol", "MTA", 500, 11000); err != nil {
		t.Errorf("transfer of unlocked half: %v", err)
	}
}

// ============================================================================
// Test: freeze / restricted bookkeeping
// ============================================================================

func TestUnfreeze_NotFrozen(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.UnfreezeAccount("alice"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRestrictedList(t *testing.T) {
	l, _ := newLedger(t, nil)
	if err := l.AddRestricted("alice", "big holder"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.AddRestricted("alice", "again"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if err := l.RemoveRestricted("alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if l.IsRestricted("alice") {
		t.Error("alice should no longer be restricted")
	}
}

// ============================================================================
// Test: snapshot round trip
// ============================================================================

func TestSnapshotRestore(t *testing.T) {
	l, _ := newLedger(t, nil)
	l.FreezeAccount("alice", 9999)
	if err := l.AddRestricted("issuer", "genesis"); err != nil {
		t.Fatalf("add restricted: %v", err)
	}

	snap := l.Snapshot()

	restored := token.NewLedger(vesting.NewCalculator(), stubDeposits{})
	restored.Restore(snap)
	if got := restored.BalanceOf("alice", "MTA"); got != 10000 {
		t.Errorf("restored balance %d, want 10000", got)
	}
	if !restored.IsFrozen("alice", 0) {
		t.Error("freeze lost in round trip")
	}
	if !restored.IsRestricted("issuer") {
		t.Error("restricted list lost in round trip")
	}
}
