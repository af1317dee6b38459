package core

import (
	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/params"
	"github.com/yottachain/mena/internal/vesting"
)

func (e *Engine) handleCreateToken(a *action.CreateToken) error {
	if err := e.auth.RequireAuth(a.Caller, a.Issuer); err != nil {
		return err
	}
	return e.tokens.Create(a.Issuer, a.Symbol, a.MaxSupply)
}

func (e *Engine) handleIssueToken(a *action.IssueToken) error {
	st, err := e.tokens.Stats(a.Symbol)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, st.Issuer); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.To) {
		return errs.NotFoundf("account %q", a.To)
	}
	return e.tokens.Issue(a.To, a.Symbol, a.Quantity)
}

func (e *Engine) handleTransferToken(a *action.TransferToken) error {
	if err := e.auth.RequireAuth(a.Caller, a.From); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.To) {
		return errs.NotFoundf("account %q", a.To)
	}
	return e.tokens.Transfer(a.From, a.To, a.Symbol, a.Quantity, a.Now)
}

func (e *Engine) handleSysTransferToken(a *action.SysTransferToken) error {
	if err := e.auth.RequireAuth(a.Caller, params.ManagerAccount); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.From) || !e.auth.IsAccount(a.To) {
		return errs.NotFoundf("transfer endpoint account")
	}
	// Only seizures into the forfeiture collector bypass the debit
	// gates.
	if a.To == params.ForfeitAccount {
		return e.tokens.ForcedTransfer(a.From, a.To, a.Symbol, a.Quantity, a.Now)
	}
	return e.tokens.Transfer(a.From, a.To, a.Symbol, a.Quantity, a.Now)
}

func (e *Engine) handleSetExchangeTime(a *action.SetExchangeTime) error {
	st, err := e.tokens.Stats(a.Symbol)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, st.Issuer); err != nil {
		return err
	}
	return e.tokens.SetExchangeTime(a.Symbol, a.At)
}

func (e *Engine) handleFreezeAccount(a *action.FreezeAccount) error {
	if err := e.auth.RequireAuth(a.Caller, params.TokenAdminAccount); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.Account) {
		return errs.NotFoundf("account %q", a.Account)
	}
	if a.Until <= a.Now {
		return errs.Invalidf("freeze deadline %d is not in the future", a.Until)
	}
	e.tokens.FreezeAccount(a.Account, a.Until)
	return nil
}

func (e *Engine) handleUnfreezeAccount(a *action.UnfreezeAccount) error {
	if err := e.auth.RequireAuth(a.Caller, params.TokenAdminAccount); err != nil {
		return err
	}
	return e.tokens.UnfreezeAccount(a.Account)
}

func (e *Engine) handleAddRestricted(a *action.AddRestricted) error {
	if err := e.auth.RequireAuth(a.Caller, params.TokenLockerAccount); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.Account) {
		return errs.NotFoundf("account %q", a.Account)
	}
	return e.tokens.AddRestricted(a.Account, a.Memo)
}

func (e *Engine) handleRemoveRestricted(a *action.RemoveRestricted) error {
	if err := e.auth.RequireAuth(a.Caller, params.TokenLockerAccount); err != nil {
		return err
	}
	return e.tokens.RemoveRestricted(a.Account)
}

func (e *Engine) handleAddLockRule(a *action.AddLockRule) error {
	if err := e.auth.RequireAuth(a.Caller, params.TokenLockerAccount); err != nil {
		return err
	}
	return e.vest.AddRule(vesting.Rule{
		ID:       a.RuleID,
		Times:    a.Times,
		Percents: a.Percents,
		Base:     a.Base,
		Absolute: a.Absolute,
		Memo:     a.Memo,
	})
}

func (e *Engine) handleLockTransfer(a *action.LockTransfer) error {
	if !e.auth.IsAccount(a.Caller) {
		return errs.NotFoundf("account %q", a.Caller)
	}
	if !e.auth.IsAccount(a.To) {
		return errs.NotFoundf("account %q", a.To)
	}
	return e.tokens.LockTransfer(a.RuleID, a.Caller, a.To, a.Symbol, a.Quantity, a.Now)
}
