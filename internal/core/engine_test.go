package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/auth"
	"github.com/yottachain/mena/internal/core"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/params"
)

const baseTime = uint64(1_700_000_000_000)

// harness drives an engine the way the ingestion pipeline would: one
// upstream sequence per caller, a fresh nonce per action.
type harness struct {
	t     *testing.T
	eng   *core.Engine
	now   uint64
	nonce int
	seq   map[string]int64
	out   chan core.Output
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := auth.NewDirectory(
		params.SelfAccount,
		params.SuperAdminAccount,
		params.AdminAccount,
		params.PoolAdminAccount,
		params.ManagerAccount,
		params.TokenAdminAccount,
		params.TokenLockerAccount,
		params.CreditAccount,
		params.ForfeitAccount,
		"issuer", "depo", "madmin", "powner", "buyer", "owner",
	)
	out := make(chan core.Output, 64)
	eng, err := core.New(core.Config{
		Auth:        dir,
		Logger:      zerolog.Nop(),
		PersistChan: out,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &harness{
		t:   t,
		eng: eng,
		now: baseTime,
		seq: make(map[string]int64),
		out: out,
	}
}

func (h *harness) header(caller string) action.Header {
	h.nonce++
	h.seq[caller]++
	return action.Header{
		Caller: caller,
		Now:    h.now,
		Nonce:  fmt.Sprintf("n-%d", h.nonce),
		Seq:    h.seq[caller],
	}
}

func (h *harness) must(act action.Action) {
	h.t.Helper()
	if err := h.eng.Apply(act); err != nil {
		h.t.Fatalf("apply %s: %v", act.Kind(), err)
	}
}

// drain discards buffered outputs so a test can pair the next Apply
// with the next receive.
func (h *harness) drain() {
	for len(h.out) > 0 {
		<-h.out
	}
}

// bootstrap initializes parameters, creates the core token and funds
// the test identities.
func (h *harness) bootstrap() {
	h.must(&action.InitSystem{Header: h.header(params.SelfAccount)})
	h.must(&action.CreateToken{
		Header:    h.header("issuer"),
		Issuer:    "issuer",
		Symbol:    params.CoreSymbol,
		MaxSupply: 1_000_000_000_000,
	})
	h.must(&action.IssueToken{
		Header: h.header("issuer"), To: "depo",
		Symbol: params.CoreSymbol, Quantity: 10_000_000,
	})
	h.must(&action.IssueToken{
		Header: h.header("issuer"), To: "powner",
		Symbol: params.CoreSymbol, Quantity: 200_000,
	})
	h.must(&action.IssueToken{
		Header: h.header("issuer"), To: "buyer",
		Symbol: params.CoreSymbol, Quantity: 100_000,
	})
}

// ============================================================================
// Test: bootstrap and parameters
// ============================================================================

func TestInitSystem_OnlySelfAccount(t *testing.T) {
	h := newHarness(t)
	err := h.eng.Apply(&action.InitSystem{Header: h.header(params.AdminAccount)})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	h.must(&action.InitSystem{Header: h.header(params.SelfAccount)})
	err = h.eng.Apply(&action.InitSystem{Header: h.header(params.SelfAccount)})
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict on reinit, got %v", err)
	}
}

func TestSetCreditPrice_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	err := h.eng.Apply(&action.SetCreditPrice{Header: h.header("buyer"), Price: 9000})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	h.must(&action.SetCreditPrice{Header: h.header(params.AdminAccount), Price: 9000})
	p, err := h.eng.Params().Get()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.CreditPrice != 9000 {
		t.Errorf("credit price %d, want 9000", p.CreditPrice)
	}
}

func TestActionsBeforeInit_Rejected(t *testing.T) {
	h := newHarness(t)
	err := h.eng.Apply(&action.SetCreditPrice{Header: h.header(params.AdminAccount), Price: 9000})
	if err == nil {
		t.Fatal("expected error before InitSystem")
	}
}

// ============================================================================
// Test: credit purchase
// ============================================================================

func TestBuyCredits_OpensAccountAndPays(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()

	amount := params.MinBuyAmount
	h.must(&action.BuyCredits{Header: h.header("buyer"), Receiver: "owner", Amount: amount})

	acct, err := h.eng.Users().Get("owner")
	if err != nil {
		t.Fatalf("owner account: %v", err)
	}
	if acct.RentBalance != amount {
		t.Errorf("rent balance %d, want %d", acct.RentBalance, amount)
	}

	// cost = amount * creditPrice / (tokenUnit * tokenPrice)
	wantCost := amount * 5760 / (10000 * 8000)
	if got := h.eng.Tokens().BalanceOf(params.CreditAccount, params.CoreSymbol); got != wantCost {
		t.Errorf("credit account balance %d, want %d", got, wantCost)
	}

	p, _ := h.eng.Params().Get()
	if p.UserCount != 1 {
		t.Errorf("user count %d, want 1", p.UserCount)
	}
	if p.CreditCounter != params.MaxTradeAmount-amount {
		t.Errorf("credit counter %d, want %d", p.CreditCounter, params.MaxTradeAmount-amount)
	}
}

func TestBuyCredits_BelowMinimum(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	err := h.eng.Apply(&action.BuyCredits{
		Header: h.header("buyer"), Receiver: "owner", Amount: params.MinBuyAmount - 1,
	})
	if !errors.Is(err, errs.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if h.eng.Users().Has("owner") {
		t.Error("rejected purchase must not open the receiver account")
	}
}

// ============================================================================
// Test: miner lifecycle
// ============================================================================

// setupMiner walks the full path from pledge to an active miner: the
// depositor pledges, the pool owner registers a pool, the pool admin
// grants quota, the miner registers, assigns and reports produced space.
func (h *harness) setupMiner(minerID uint64, poolID string) {
	h.must(&action.BuyCredits{Header: h.header("buyer"), Receiver: "owner", Amount: params.MinBuyAmount})
	h.must(&action.PledgeDeposit{Header: h.header("depo"), Amount: 5_000_000})
	h.must(&action.RegisterPool{Header: h.header("powner"), PoolID: poolID})
	h.must(&action.ChangePoolQuota{
		Header: h.header(params.PoolAdminAccount),
		PoolID: poolID, Increase: true, Delta: params.MinMinerSpace * 2,
	})
	h.must(&action.RegisterMiner{
		Header: h.header("depo"), MinerID: minerID,
		Admin: "madmin", InitialDeposit: 4_000_000,
	})
	h.must(&action.AssignToPool{
		Header: h.header("madmin"), MinerID: minerID, PoolID: poolID,
		Owner: "owner", MaxSpace: params.MinMinerSpace, PoolOwnerAuth: "powner",
	})
	h.must(&action.AddMinerSpace{
		Header: h.header(params.AdminAccount), MinerID: minerID,
		Owner: "owner", Space: params.MinMinerSpace,
	})
}

func TestMinerLifecycle(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	m, err := h.eng.Miners().Get(7)
	if err != nil {
		t.Fatalf("miner: %v", err)
	}
	if !m.Assigned() || !m.Active() {
		t.Fatalf("miner assigned=%v active=%v, want both", m.Assigned(), m.Active())
	}
	if m.ProdSpace != params.MinMinerSpace {
		t.Errorf("prod space %d, want %d", m.ProdSpace, params.MinMinerSpace)
	}

	acct, err := h.eng.Users().Get("owner")
	if err != nil {
		t.Fatalf("owner account: %v", err)
	}
	if acct.ProducedSpace != m.ProdSpace {
		t.Errorf("owner produced space %d, want %d", acct.ProducedSpace, m.ProdSpace)
	}
	if acct.ProfitRate != m.CycleProfit {
		t.Errorf("owner profit rate %d, want %d", acct.ProfitRate, m.CycleProfit)
	}

	pool, err := h.eng.Pools().Get("pool-1")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.ProdSpace != m.MaxSpace {
		t.Errorf("pool prod space %d, want %d", pool.ProdSpace, m.MaxSpace)
	}

	rec, err := h.eng.Deposits().Get("depo")
	if err != nil {
		t.Fatalf("deposit record: %v", err)
	}
	if rec.Used != 4_000_000 {
		t.Errorf("used deposit %d, want 4000000", rec.Used)
	}

	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestMinerLifecycle_DeactivateActivate(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	h.must(&action.DeactivateMiner{Header: h.header("madmin"), MinerID: 7})
	m, _ := h.eng.Miners().Get(7)
	if m.Active() {
		t.Fatal("miner still active after deactivation")
	}
	acct, _ := h.eng.Users().Get("owner")
	if acct.ProducedSpace != 0 || acct.ProfitRate != 0 {
		t.Errorf("owner contribution space=%d rate=%d after deactivation, want zero",
			acct.ProducedSpace, acct.ProfitRate)
	}

	h.must(&action.ActivateMiner{Header: h.header("madmin"), MinerID: 7})
	m, _ = h.eng.Miners().Get(7)
	if !m.Active() {
		t.Fatal("miner not active after activation")
	}
	acct, _ = h.eng.Users().Get("owner")
	if acct.ProducedSpace != m.ProdSpace {
		t.Errorf("owner produced space %d, want %d", acct.ProducedSpace, m.ProdSpace)
	}

	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestPayForfeit_SeizesPledgedValue(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	err := h.eng.Apply(&action.PayForfeit{Header: h.header("powner"), MinerID: 7, Amount: 1_000_000})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-manager, got %v", err)
	}

	before := h.eng.Tokens().BalanceOf("depo", params.CoreSymbol)
	h.must(&action.PayForfeit{Header: h.header(params.ManagerAccount), MinerID: 7, Amount: 1_000_000})

	m, _ := h.eng.Miners().Get(7)
	if m.Deposit != 3_000_000 {
		t.Errorf("miner deposit %d, want 3000000", m.Deposit)
	}
	if m.DepositTotal != 4_000_000 {
		t.Errorf("miner deposit total %d, want 4000000", m.DepositTotal)
	}
	if got := h.eng.Tokens().BalanceOf("depo", params.CoreSymbol); got != before-1_000_000 {
		t.Errorf("depositor balance %d, want %d", got, before-1_000_000)
	}
	if got := h.eng.Tokens().BalanceOf(params.ForfeitAccount, params.CoreSymbol); got != 1_000_000 {
		t.Errorf("forfeit account balance %d, want 1000000", got)
	}

	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestRemoveMiner_UnwindsEverything(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	err := h.eng.Apply(&action.RemoveMiner{Header: h.header("madmin"), MinerID: 7})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-super-admin, got %v", err)
	}

	h.must(&action.RemoveMiner{Header: h.header(params.SuperAdminAccount), MinerID: 7})

	if h.eng.Miners().Has(7) {
		t.Error("miner still present after removal")
	}
	rec, _ := h.eng.Deposits().Get("depo")
	if rec.Used != 0 {
		t.Errorf("used deposit %d after removal, want 0", rec.Used)
	}
	pool, _ := h.eng.Pools().Get("pool-1")
	if pool.ProdSpace != 0 {
		t.Errorf("pool prod space %d after removal, want 0", pool.ProdSpace)
	}
	acct, _ := h.eng.Users().Get("owner")
	if acct.ProducedSpace != 0 {
		t.Errorf("owner produced space %d after removal, want 0", acct.ProducedSpace)
	}

	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestAssignToPool_InsufficientCollateral(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.must(&action.BuyCredits{Header: h.header("buyer"), Receiver: "owner", Amount: params.MinBuyAmount})
	h.must(&action.PledgeDeposit{Header: h.header("depo"), Amount: 5_000_000})
	h.must(&action.RegisterPool{Header: h.header("powner"), PoolID: "pool-1"})
	h.must(&action.ChangePoolQuota{
		Header: h.header(params.PoolAdminAccount),
		PoolID: "pool-1", Increase: true, Delta: params.MinMinerSpace * 2,
	})
	// 100 GB needs 4,000,000 at the default rate; one unit short.
	h.must(&action.RegisterMiner{
		Header: h.header("depo"), MinerID: 7, Admin: "madmin", InitialDeposit: 3_999_999,
	})
	err := h.eng.Apply(&action.AssignToPool{
		Header: h.header("madmin"), MinerID: 7, PoolID: "pool-1",
		Owner: "owner", MaxSpace: params.MinMinerSpace, PoolOwnerAuth: "powner",
	})
	if !errors.Is(err, errs.ErrInsufficient) {
		t.Errorf("expected ErrInsufficient, got %v", err)
	}
	m, _ := h.eng.Miners().Get(7)
	if m.Assigned() {
		t.Error("rejected assignment must leave the miner unassigned")
	}
}

// ============================================================================
// Test: ordering, idempotency, hash chain
// ============================================================================

func TestApply_DuplicateSkipped(t *testing.T) {
	h := newHarness(t)
	h.must(&action.InitSystem{Header: h.header(params.SelfAccount)})

	hdr := h.header(params.AdminAccount)
	first := &action.SetCreditPrice{Header: hdr, Price: 9000}
	if err := h.eng.Apply(first); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	seq := h.eng.Sequence()

	// Redelivery: same nonce, same upstream sequence.
	dup := &action.SetCreditPrice{Header: hdr, Price: 9000}
	if err := h.eng.Apply(dup); err != nil {
		t.Fatalf("duplicate apply: %v", err)
	}
	if h.eng.Sequence() != seq {
		t.Errorf("sequence advanced to %d on duplicate, want %d", h.eng.Sequence(), seq)
	}
}

func TestApply_OutOfOrderRejected(t *testing.T) {
	h := newHarness(t)
	h.must(&action.InitSystem{Header: h.header(params.SelfAccount)})
	h.must(&action.SetCreditPrice{Header: h.header(params.AdminAccount), Price: 9000})

	// Fresh nonce but an upstream sequence already passed.
	stale := &action.SetCreditPrice{Header: action.Header{
		Caller: params.AdminAccount, Now: baseTime, Nonce: "n-stale", Seq: 1,
	}, Price: 9500}
	err := h.eng.Apply(stale)
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	p, _ := h.eng.Params().Get()
	if p.CreditPrice != 9000 {
		t.Errorf("credit price %d, want 9000", p.CreditPrice)
	}
}

func TestApply_RejectedActionLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	hash := h.eng.StateHash()
	seq := h.eng.Sequence()

	err := h.eng.Apply(&action.RegisterPool{Header: h.header("buyer"), PoolID: ""})
	if err == nil {
		t.Fatal("expected error")
	}
	if h.eng.Sequence() != seq {
		t.Errorf("sequence advanced on rejection")
	}
	if h.eng.StateHash() != hash {
		t.Errorf("state hash changed on rejection")
	}
}

func TestHashChain_LinksEnvelopes(t *testing.T) {
	h := newHarness(t)
	h.must(&action.InitSystem{Header: h.header(params.SelfAccount)})
	h.must(&action.SetCreditPrice{Header: h.header(params.AdminAccount), Price: 9000})

	first := <-h.out
	second := <-h.out
	if second.Envelope.PrevHash != first.Envelope.StateHash {
		t.Error("second envelope does not chain to the first")
	}
	if first.Envelope.StateHash == second.Envelope.StateHash {
		t.Error("state hash did not advance")
	}
	if second.Envelope.Sequence != first.Envelope.Sequence+1 {
		t.Errorf("sequence %d, want %d", second.Envelope.Sequence, first.Envelope.Sequence+1)
	}
	if second.Delta.Params == nil {
		t.Fatal("price change delta missing params")
	}
	if second.Delta.Params.CreditPrice != 9000 {
		t.Errorf("delta credit price %d, want 9000", second.Delta.Params.CreditPrice)
	}
}

// ============================================================================
// Test: snapshot and restore
// ============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	snap := h.eng.CreateSnapshot()

	restored, err := core.New(core.Config{
		Auth:   auth.NewDirectory(),
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	restored.RestoreSnapshot(snap)

	if restored.Sequence() != h.eng.Sequence() {
		t.Errorf("sequence %d, want %d", restored.Sequence(), h.eng.Sequence())
	}
	if restored.StateHash() != h.eng.StateHash() {
		t.Error("state hash mismatch after restore")
	}
	if got, want := restored.Miners().Count(), h.eng.Miners().Count(); got != want {
		t.Errorf("miner count %d, want %d", got, want)
	}
	if got := restored.Tokens().BalanceOf("depo", params.CoreSymbol); got != 10_000_000 {
		t.Errorf("depositor balance %d, want 10000000", got)
	}
	if err := restored.CheckConsistency(); err != nil {
		t.Fatalf("consistency after restore: %v", err)
	}
}

// ============================================================================
// Test: account auto-open on assignment and owner transfer
// ============================================================================

func TestAssignToPool_FreshOwnerOpensAccount(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.must(&action.PledgeDeposit{Header: h.header("depo"), Amount: 5_000_000})
	h.must(&action.RegisterPool{Header: h.header("powner"), PoolID: "pool-1"})
	h.must(&action.ChangePoolQuota{
		Header: h.header(params.PoolAdminAccount),
		PoolID: "pool-1", Increase: true, Delta: params.MinMinerSpace * 2,
	})
	h.must(&action.RegisterMiner{
		Header: h.header("depo"), MinerID: 7, Admin: "madmin", InitialDeposit: 4_000_000,
	})

	// The owner has never transacted; assignment must open the account
	// rather than reject.
	h.must(&action.AssignToPool{
		Header: h.header("madmin"), MinerID: 7, PoolID: "pool-1",
		Owner: "owner", MaxSpace: params.MinMinerSpace, PoolOwnerAuth: "powner",
	})

	acct, err := h.eng.Users().Get("owner")
	if err != nil {
		t.Fatalf("owner account not opened: %v", err)
	}
	if acct.RentSettledAt != h.now || acct.ProfitSettledAt != h.now {
		t.Errorf("settlement clocks %d/%d, want %d", acct.RentSettledAt, acct.ProfitSettledAt, h.now)
	}
	p, err := h.eng.Params().Get()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.UserCount != 1 {
		t.Errorf("user count %d, want 1", p.UserCount)
	}
	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestChangeMinerOwner_FreshOwnerOpensAccount(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")

	h.must(&action.ChangeMinerOwner{
		Header: h.header("madmin"), MinerID: 7,
		NewOwner: "buyer", PoolOwnerAuth: "powner",
	})

	m, err := h.eng.Miners().Get(7)
	if err != nil {
		t.Fatalf("miner: %v", err)
	}
	acct, err := h.eng.Users().Get("buyer")
	if err != nil {
		t.Fatalf("new owner account not opened: %v", err)
	}
	if acct.ProducedSpace != m.ProdSpace {
		t.Errorf("new owner produced space %d, want %d", acct.ProducedSpace, m.ProdSpace)
	}
	if acct.ProfitRate != m.CycleProfit {
		t.Errorf("new owner profit rate %d, want %d", acct.ProfitRate, m.CycleProfit)
	}
	old, _ := h.eng.Users().Get("owner")
	if old.ProducedSpace != 0 || old.ProfitRate != 0 {
		t.Errorf("old owner keeps space=%d rate=%d, want zero", old.ProducedSpace, old.ProfitRate)
	}
	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestAssignToPool_NeedsPoolOwnerCosign(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.must(&action.PledgeDeposit{Header: h.header("depo"), Amount: 5_000_000})
	h.must(&action.RegisterPool{Header: h.header("powner"), PoolID: "pool-1"})
	h.must(&action.ChangePoolQuota{
		Header: h.header(params.PoolAdminAccount),
		PoolID: "pool-1", Increase: true, Delta: params.MinMinerSpace * 2,
	})
	h.must(&action.RegisterMiner{
		Header: h.header("depo"), MinerID: 7, Admin: "madmin", InitialDeposit: 4_000_000,
	})

	err := h.eng.Apply(&action.AssignToPool{
		Header: h.header("madmin"), MinerID: 7, PoolID: "pool-1",
		Owner: "owner", MaxSpace: params.MinMinerSpace, PoolOwnerAuth: "madmin",
	})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without pool owner co-sign, got %v", err)
	}
	m, _ := h.eng.Miners().Get(7)
	if m.Assigned() {
		t.Error("rejected assignment must leave the miner unassigned")
	}
}

// ============================================================================
// Test: token administration
// ============================================================================

func TestSetExchangeTime_IssuerOnly(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()

	err := h.eng.Apply(&action.SetExchangeTime{
		Header: h.header("buyer"), Symbol: params.CoreSymbol, At: baseTime + 500,
	})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-issuer, got %v", err)
	}

	h.must(&action.SetExchangeTime{
		Header: h.header("issuer"), Symbol: params.CoreSymbol, At: baseTime + 500,
	})
	st, err := h.eng.Tokens().Stats(params.CoreSymbol)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ExchangeTime != baseTime+500 {
		t.Errorf("exchange time %d, want %d", st.ExchangeTime, baseTime+500)
	}
}

func TestFreezeAndRestricted_FlowThroughDeltas(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.drain()

	until := h.now + 10_000
	h.must(&action.FreezeAccount{
		Header: h.header(params.TokenAdminAccount), Account: "depo", Until: until,
	})
	out := <-h.out
	if len(out.Delta.Freezes) != 1 || out.Delta.Freezes[0].Account != "depo" ||
		out.Delta.Freezes[0].Until != until {
		t.Fatalf("freeze delta %+v, want depo until %d", out.Delta.Freezes, until)
	}

	h.must(&action.UnfreezeAccount{
		Header: h.header(params.TokenAdminAccount), Account: "depo",
	})
	out = <-h.out
	if len(out.Delta.Unfreezes) != 1 || out.Delta.Unfreezes[0] != "depo" {
		t.Fatalf("unfreeze delta %v, want [depo]", out.Delta.Unfreezes)
	}

	h.must(&action.AddRestricted{
		Header: h.header(params.TokenLockerAccount), Account: "depo", Memo: "genesis",
	})
	out = <-h.out
	if len(out.Delta.Restricted) != 1 || out.Delta.Restricted[0].Account != "depo" ||
		out.Delta.Restricted[0].Memo != "genesis" {
		t.Fatalf("restricted delta %+v, want depo/genesis", out.Delta.Restricted)
	}

	h.must(&action.RemoveRestricted{
		Header: h.header(params.TokenLockerAccount), Account: "depo",
	})
	out = <-h.out
	if len(out.Delta.Unrestricted) != 1 || out.Delta.Unrestricted[0] != "depo" {
		t.Fatalf("unrestricted delta %v, want [depo]", out.Delta.Unrestricted)
	}
}

func TestPledgeDeposit_FrozenCallerRejected(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.must(&action.PledgeDeposit{Header: h.header("depo"), Amount: 1_000_000})

	h.must(&action.FreezeAccount{
		Header: h.header(params.TokenAdminAccount), Account: "depo", Until: h.now + 10_000,
	})
	err := h.eng.Apply(&action.PledgeDeposit{Header: h.header("depo"), Amount: 1_000_000})
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict pledging while frozen, got %v", err)
	}
	err = h.eng.Apply(&action.WithdrawDeposit{Header: h.header("depo"), Amount: 500_000})
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("expected ErrConflict withdrawing while frozen, got %v", err)
	}

	// Past the deadline the freeze is inert without an explicit lift.
	h.now += 20_000
	h.must(&action.WithdrawDeposit{Header: h.header("depo"), Amount: 500_000})
	rec, err := h.eng.Deposits().Get("depo")
	if err != nil {
		t.Fatalf("deposit record: %v", err)
	}
	if rec.Total != 500_000 {
		t.Errorf("pledged total %d, want 500000", rec.Total)
	}
}

func TestRegisterPool_FeePaidToCreditAccount(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()

	before := h.eng.Tokens().BalanceOf("powner", params.CoreSymbol)
	h.must(&action.RegisterPool{Header: h.header("powner"), PoolID: "pool-1"})

	if got := h.eng.Tokens().BalanceOf(params.CreditAccount, params.CoreSymbol); got != params.PoolRegistrationFee {
		t.Errorf("credit account balance %d, want %d", got, params.PoolRegistrationFee)
	}
	if got := h.eng.Tokens().BalanceOf("powner", params.CoreSymbol); got != before-params.PoolRegistrationFee {
		t.Errorf("pool owner balance %d, want %d", got, before-params.PoolRegistrationFee)
	}
}

// ============================================================================
// Test: one accrual cycle end to end
// ============================================================================

func TestAccrualCycle_DebitsRentAndCreditsProfit(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.setupMiner(7, "pool-1")
	h.must(&action.SetRentFee{Header: h.header(params.AdminAccount), User: "owner", Fee: 5000})

	m, err := h.eng.Miners().Get(7)
	if err != nil {
		t.Fatalf("miner: %v", err)
	}
	if m.CycleProfit == 0 {
		t.Fatal("active miner has zero cycle profit")
	}

	h.now += params.CycleMS
	h.drain()

	h.must(&action.SettleRent{Header: h.header("owner"), User: "owner"})
	first := <-h.out
	if len(first.Delta.Accounts) != 1 {
		t.Fatalf("rent settle delta carries %d accounts, want 1", len(first.Delta.Accounts))
	}
	wantRent := params.MinBuyAmount - 5000
	if got := first.Delta.Accounts[0].RentBalance; got != wantRent {
		t.Errorf("rent balance after one cycle %d, want %d", got, wantRent)
	}

	h.must(&action.SettleProfit{Header: h.header("owner"), User: "owner"})
	second := <-h.out
	if len(second.Delta.Accounts) != 1 {
		t.Fatalf("profit settle delta carries %d accounts, want 1", len(second.Delta.Accounts))
	}
	if got := second.Delta.Accounts[0].ProfitBalance; got != m.CycleProfit {
		t.Errorf("profit balance after one cycle %d, want %d", got, m.CycleProfit)
	}
	if second.Envelope.PrevHash != first.Envelope.StateHash {
		t.Error("profit settle envelope does not chain to the rent settle")
	}

	acct, err := h.eng.Users().Get("owner")
	if err != nil {
		t.Fatalf("owner account: %v", err)
	}
	if acct.RentSettledAt != h.now || acct.ProfitSettledAt != h.now {
		t.Errorf("settlement clocks %d/%d, want %d", acct.RentSettledAt, acct.ProfitSettledAt, h.now)
	}
	if err := h.eng.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}
