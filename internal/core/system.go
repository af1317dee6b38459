package core

import (
	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/params"
)

// requireAdmin accepts the configured admin, the super admin and the
// engine's own identity.
func (e *Engine) requireAdmin(caller string) error {
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if caller == p.Admin || caller == params.SuperAdminAccount || caller == params.SelfAccount {
		return nil
	}
	return errs.Unauthorizedf("caller %q lacks administrative authority", caller)
}

func (e *Engine) handleInitSystem(a *action.InitSystem) error {
	if err := e.auth.RequireAuth(a.Caller, params.SelfAccount); err != nil {
		return err
	}
	return e.params.Init(params.Defaults())
}

func (e *Engine) handleSetCreditPrice(a *action.SetCreditPrice) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	return e.params.SetCreditPrice(a.Price)
}

func (e *Engine) handleSetTokenPrice(a *action.SetTokenPrice) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	return e.params.SetTokenPrice(a.Price)
}

func (e *Engine) handleSetCollateralRate(a *action.SetCollateralRate) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	return e.params.SetCollateralRate(a.Rate)
}

func (e *Engine) handleSetDedupRatio(a *action.SetDedupRatio) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	return e.params.SetDedupRatio(a.Ratio)
}

func (e *Engine) handleSetDedupDistRatio(a *action.SetDedupDistRatio) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	return e.params.SetDedupDistRatio(a.Ratio)
}

func (e *Engine) handleAddCreditCounter(a *action.AddCreditCounter) error {
	if err := e.auth.RequireAuth(a.Caller, params.PoolAdminAccount); err != nil {
		return err
	}
	if a.Delta == 0 {
		return errs.Invalidf("counter delta must not be zero")
	}
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	next := p.CreditCounter + a.Delta
	if next < 0 {
		return errs.Insufficientf("credit counter %d cannot absorb delta %d", p.CreditCounter, a.Delta)
	}
	if !fixed.WithinRange(next) {
		return errs.Invalidf("credit counter %d exceeds magnitude bound", next)
	}
	return e.params.AddCreditCounter(a.Delta)
}
