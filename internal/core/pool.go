package core

import (
	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/params"
)

func (e *Engine) handleRegisterPool(a *action.RegisterPool) error {
	if !e.auth.IsAccount(a.Caller) {
		return errs.NotFoundf("account %q", a.Caller)
	}
	if e.pools.Has(a.PoolID) {
		return errs.AlreadyExistsf("pool %q", a.PoolID)
	}
	if a.PoolID == "" {
		return errs.Invalidf("pool id must not be empty")
	}

	if err := e.tokens.Transfer(a.Caller, params.CreditAccount, params.CoreSymbol,
		params.PoolRegistrationFee, a.Now); err != nil {
		return err
	}

	_, err := e.pools.Register(a.PoolID, a.Caller)
	return err
}

func (e *Engine) handleRemovePool(a *action.RemovePool) error {
	pool, err := e.pools.Get(a.PoolID)
	if err != nil {
		return err
	}
	if e.auth.RequireAuth(a.Caller, pool.Owner) != nil &&
		e.auth.RequireAuth(a.Caller, params.SuperAdminAccount) != nil {
		return errs.Unauthorizedf("caller %q lacks authority over pool %q", a.Caller, pool.ID)
	}
	return e.pools.Delete(a.PoolID)
}

func (e *Engine) handleChangePoolQuota(a *action.ChangePoolQuota) error {
	if err := e.auth.RequireAuth(a.Caller, params.PoolAdminAccount); err != nil {
		return err
	}
	pool, err := e.pools.Get(a.PoolID)
	if err != nil {
		return err
	}
	if err := pool.Resize(a.Increase, a.Delta); err != nil {
		return err
	}
	e.pools.Put(pool)
	return nil
}
