package core

import (
	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/ledger"
	"github.com/yottachain/mena/internal/params"
)

// stageAccount fetches a copy of an existing account, or builds a fresh
// one with both settlement clocks at now. The fresh account is not
// visible until the handler commits it with Put.
func (e *Engine) stageAccount(name string, now uint64) (ledger.Account, bool) {
	if a, err := e.users.Get(name); err == nil {
		return a, false
	}
	return ledger.Account{Name: name, RentSettledAt: now, ProfitSettledAt: now}, true
}

func (e *Engine) handleBuyCredits(a *action.BuyCredits) error {
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if !e.auth.IsAccount(a.Receiver) {
		return errs.NotFoundf("receiver account %q", a.Receiver)
	}
	if a.Amount < params.MinBuyAmount {
		return errs.Invalidf("purchase %d below minimum %d", a.Amount, params.MinBuyAmount)
	}
	if a.Amount > params.MaxTradeAmount {
		return errs.Invalidf("purchase %d above maximum %d", a.Amount, params.MaxTradeAmount)
	}
	if p.CreditCounter < a.Amount {
		return errs.Insufficientf("credit counter %d below purchase %d", p.CreditCounter, a.Amount)
	}

	acct, fresh := e.stageAccount(a.Receiver, a.Now)
	if err := acct.CreditRent(a.Amount, a.Now); err != nil {
		return err
	}

	cost := fixed.PurchaseCost(a.Amount, p.CreditPrice, p.TokenPrice)
	if err := e.tokens.Transfer(a.Caller, params.CreditAccount, params.CoreSymbol, cost, a.Now); err != nil {
		return err
	}

	e.users.Put(acct)
	p.CreditCounter -= a.Amount
	if fresh {
		p.UserCount++
	}
	return e.params.Put(p)
}

func (e *Engine) handleSellCredits(a *action.SellCredits) error {
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if a.Amount <= 0 || a.Amount > params.MaxTradeAmount {
		return errs.Invalidf("sale %d outside permitted range", a.Amount)
	}
	acct, err := e.users.Get(a.Caller)
	if err != nil {
		return err
	}
	if err := acct.DebitProfit(a.Amount, a.Now); err != nil {
		return err
	}

	proceeds := fixed.SaleProceeds(a.Amount, p.CreditPrice, p.TokenPrice, p.DedupRatio, p.DedupDistRatio)
	if proceeds <= 0 {
		return errs.Invalidf("sale %d yields no proceeds", a.Amount)
	}
	if err := e.tokens.Transfer(params.CreditAccount, a.Caller, params.CoreSymbol, proceeds, a.Now); err != nil {
		return err
	}

	e.users.Put(acct)
	return nil
}

func (e *Engine) handleSetRentFee(a *action.SetRentFee) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.SetFeeRate(a.Fee, a.Now); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleDebitRent(a *action.DebitRent) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.DebitRent(a.Amount, a.Now); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleAddUsedSpace(a *action.AddUsedSpace) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.AddUsedSpace(a.Space); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleSubUsedSpace(a *action.SubUsedSpace) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.SubUsedSpace(a.Space); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleSettleRent(a *action.SettleRent) error {
	if err := e.auth.RequireAuth(a.Caller, a.User); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.SettleRent(a.Now); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleSettleProfit(a *action.SettleProfit) error {
	if err := e.auth.RequireAuth(a.Caller, a.User); err != nil {
		return err
	}
	acct, err := e.users.Get(a.User)
	if err != nil {
		return err
	}
	if err := acct.SettleProfit(a.Now); err != nil {
		return err
	}
	e.users.Put(acct)
	return nil
}

func (e *Engine) handlePledgeDeposit(a *action.PledgeDeposit) error {
	if !e.auth.IsAccount(a.Caller) {
		return errs.NotFoundf("account %q", a.Caller)
	}
	if e.tokens.IsFrozen(a.Caller, a.Now) {
		return errs.Conflictf("account %q is frozen", a.Caller)
	}
	rec := e.deposits.GetOrCreate(a.Caller)
	if err := rec.Pledge(a.Amount); err != nil {
		return err
	}
	// Pledged value never leaves the holder's token balance; the debit
	// gates fence it off instead. The balance must cover the full
	// pledged total at commit time.
	balance := e.tokens.BalanceOf(a.Caller, params.CoreSymbol)
	if balance < rec.Total {
		return errs.Insufficientf("balance %d below pledged total %d", balance, rec.Total)
	}
	e.deposits.Put(rec)
	return nil
}

func (e *Engine) handleWithdrawDeposit(a *action.WithdrawDeposit) error {
	if e.tokens.IsFrozen(a.Caller, a.Now) {
		return errs.Conflictf("account %q is frozen", a.Caller)
	}
	rec, err := e.deposits.Get(a.Caller)
	if err != nil {
		return err
	}
	if err := rec.Withdraw(a.Amount); err != nil {
		return err
	}
	e.deposits.Put(rec)
	return nil
}
