package core

import (
	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/alloc"
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/ledger"
	"github.com/yottachain/mena/internal/params"
)

// requireMinerAuthority accepts the miner's admin or an administrative
// identity.
func (e *Engine) requireMinerAuthority(caller string, m *alloc.Miner) error {
	if e.auth.RequireAuth(caller, m.Admin) == nil {
		return nil
	}
	if e.requireAdmin(caller) == nil {
		return nil
	}
	return errs.Unauthorizedf("caller %q lacks authority over miner %d", caller, m.ID)
}

func (e *Engine) handleRegisterMiner(a *action.RegisterMiner) error {
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if e.miners.Has(a.MinerID) {
		return errs.AlreadyExistsf("miner %d", a.MinerID)
	}
	if !e.auth.IsAccount(a.Admin) {
		return errs.NotFoundf("admin account %q", a.Admin)
	}
	if a.InitialDeposit <= 0 {
		return errs.Invalidf("initial deposit must be positive")
	}
	if e.tokens.IsFrozen(a.Caller, a.Now) {
		return errs.Conflictf("depositor %q is frozen", a.Caller)
	}

	rec, err := e.deposits.Get(a.Caller)
	if err != nil {
		return err
	}
	if err := rec.Commit(a.InitialDeposit); err != nil {
		return err
	}

	m, err := e.miners.Register(a.MinerID, a.Admin, a.Caller, a.Now)
	if err != nil {
		return err
	}
	m.Deposit = a.InitialDeposit
	m.DepositTotal = a.InitialDeposit
	e.miners.Put(m)
	e.deposits.Put(rec)
	p.MinerCount++
	return e.params.Put(p)
}

func (e *Engine) handleRemoveMiner(a *action.RemoveMiner) error {
	if err := e.auth.RequireAuth(a.Caller, params.SuperAdminAccount); err != nil {
		return err
	}
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}

	rec, err := e.deposits.Get(m.Depositor)
	if err != nil {
		return err
	}
	rec.Release(m.Deposit)

	var ownerStaged bool
	var ownerAcct ledger.Account
	if name, ok := m.OwnerName(); ok && m.Active() {
		ownerAcct, err = e.users.Get(name)
		if err != nil {
			return err
		}
		if err := ownerAcct.RemoveContribution(m.ProdSpace, m.CycleProfit, a.Now); err != nil {
			return err
		}
		ownerStaged = true
	}

	var poolStaged bool
	var pool alloc.Pool
	if id, ok := m.PoolID(); ok {
		pool, err = e.pools.Get(id)
		if err != nil {
			return err
		}
		if err := pool.ReleaseSpace(m.MaxSpace); err != nil {
			return err
		}
		poolStaged = true
	}

	e.deposits.Put(rec)
	if ownerStaged {
		e.users.Put(ownerAcct)
	}
	if poolStaged {
		e.pools.Put(pool)
	}
	if err := e.miners.Delete(a.MinerID); err != nil {
		return err
	}
	p.MinerCount--
	return e.params.Put(p)
}

func (e *Engine) handleAssignToPool(a *action.AssignToPool) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Admin); err != nil {
		return err
	}
	if m.Assigned() {
		return errs.Conflictf("miner %d is already assigned", m.ID)
	}
	if err := alloc.ValidateSpace(a.MaxSpace); err != nil {
		return err
	}
	pool, err := e.pools.Get(a.PoolID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.PoolOwnerAuth, pool.Owner); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.Owner) {
		return errs.NotFoundf("owner account %q", a.Owner)
	}
	acct, fresh := e.stageAccount(a.Owner, a.Now)
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if !fixed.Sufficient(m.Deposit, a.MaxSpace, p.CollateralRate) {
		return errs.Insufficientf("deposit %d below collateral required for space %d",
			m.Deposit, a.MaxSpace)
	}
	if err := pool.Allocate(a.MaxSpace); err != nil {
		return err
	}

	owner := a.Owner
	poolID := a.PoolID
	m.Owner = &owner
	m.Pool = &poolID
	m.MaxSpace = a.MaxSpace

	e.pools.Put(pool)
	e.miners.Put(m)
	if fresh {
		e.users.Put(acct)
		p.UserCount++
		return e.params.Put(p)
	}
	return nil
}

func (e *Engine) handleReassignPool(a *action.ReassignPool) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Admin); err != nil {
		return err
	}
	oldID, ok := m.PoolID()
	if !ok {
		return errs.Conflictf("miner %d is not assigned", m.ID)
	}
	if oldID == a.NewPoolID {
		return errs.Conflictf("miner %d is already in pool %q", m.ID, oldID)
	}
	oldPool, err := e.pools.Get(oldID)
	if err != nil {
		return err
	}
	newPool, err := e.pools.Get(a.NewPoolID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.PoolOwnerAuth, newPool.Owner); err != nil {
		return err
	}
	if err := oldPool.ReleaseSpace(m.MaxSpace); err != nil {
		return err
	}
	if err := newPool.Allocate(m.MaxSpace); err != nil {
		return err
	}
	p, err := e.params.Get()
	if err != nil {
		return err
	}
	if !fixed.Sufficient(m.Deposit, m.MaxSpace, p.CollateralRate) {
		return errs.Insufficientf("deposit %d below collateral required for space %d",
			m.Deposit, m.MaxSpace)
	}
	// Accrued profit settles before the move, so the pool change can
	// never reset the accrual clock over an unsettled interval.
	if err := m.SettleProfit(a.Now); err != nil {
		return err
	}
	newID := a.NewPoolID
	m.Pool = &newID

	e.pools.Put(oldPool)
	e.pools.Put(newPool)
	e.miners.Put(m)
	return nil
}

func (e *Engine) handleAddMinerSpace(a *action.AddMinerSpace) error {
	if err := e.requireAdmin(a.Caller); err != nil {
		return err
	}
	if a.Space == 0 {
		return errs.Invalidf("produced space must be positive")
	}
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if !m.Assigned() {
		return errs.Conflictf("miner %d is not assigned", m.ID)
	}
	owner, ok := m.OwnerName()
	if !ok || owner != a.Owner {
		return errs.Conflictf("owner %q does not match miner %d", a.Owner, m.ID)
	}
	acct, err := e.users.Get(owner)
	if err != nil {
		return err
	}

	wasActive := m.Active()
	oldSpace, oldRate := m.ProdSpace, m.CycleProfit
	if err := m.AddProdSpace(a.Space, a.Now); err != nil {
		return err
	}
	if wasActive {
		if err := acct.RemoveContribution(oldSpace, oldRate, a.Now); err != nil {
			return err
		}
	}
	if err := acct.AddContribution(m.ProdSpace, m.CycleProfit, a.Now); err != nil {
		return err
	}

	e.miners.Put(m)
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleSettleMinerProfit(a *action.SettleMinerProfit) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.requireMinerAuthority(a.Caller, &m); err != nil {
		return err
	}
	if err := m.SettleProfit(a.Now); err != nil {
		return err
	}
	e.miners.Put(m)
	return nil
}

func (e *Engine) handleDeactivateMiner(a *action.DeactivateMiner) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.requireMinerAuthority(a.Caller, &m); err != nil {
		return err
	}
	owner, ok := m.OwnerName()
	if !ok {
		return errs.Conflictf("miner %d has no owner", m.ID)
	}
	acct, err := e.users.Get(owner)
	if err != nil {
		return err
	}
	space, rate := m.ProdSpace, m.CycleProfit
	if err := m.Deactivate(a.Now); err != nil {
		return err
	}
	if err := acct.RemoveContribution(space, rate, a.Now); err != nil {
		return err
	}
	e.miners.Put(m)
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleActivateMiner(a *action.ActivateMiner) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.requireMinerAuthority(a.Caller, &m); err != nil {
		return err
	}
	owner, ok := m.OwnerName()
	if !ok {
		return errs.Conflictf("miner %d has no owner", m.ID)
	}
	acct, err := e.users.Get(owner)
	if err != nil {
		return err
	}
	if err := m.Activate(a.Now); err != nil {
		return err
	}
	if err := acct.AddContribution(m.ProdSpace, m.CycleProfit, a.Now); err != nil {
		return err
	}
	e.miners.Put(m)
	e.users.Put(acct)
	return nil
}

func (e *Engine) handleChangeMinerAdmin(a *action.ChangeMinerAdmin) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Admin); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.NewAdmin) {
		return errs.NotFoundf("admin account %q", a.NewAdmin)
	}
	if a.NewAdmin == m.Admin {
		return errs.Conflictf("miner %d admin unchanged", m.ID)
	}
	m.Admin = a.NewAdmin
	e.miners.Put(m)
	return nil
}

func (e *Engine) handleChangeMinerOwner(a *action.ChangeMinerOwner) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Admin); err != nil {
		return err
	}
	oldOwner, ok := m.OwnerName()
	if !ok {
		return errs.Conflictf("miner %d has no owner", m.ID)
	}
	if a.NewOwner == oldOwner {
		return errs.Conflictf("miner %d owner unchanged", m.ID)
	}
	poolID, _ := m.PoolID()
	pool, err := e.pools.Get(poolID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.PoolOwnerAuth, pool.Owner); err != nil {
		return err
	}
	if !e.auth.IsAccount(a.NewOwner) {
		return errs.NotFoundf("owner account %q", a.NewOwner)
	}
	newAcct, fresh := e.stageAccount(a.NewOwner, a.Now)

	if m.Active() {
		oldAcct, err := e.users.Get(oldOwner)
		if err != nil {
			return err
		}
		if err := oldAcct.RemoveContribution(m.ProdSpace, m.CycleProfit, a.Now); err != nil {
			return err
		}
		if err := newAcct.AddContribution(m.ProdSpace, m.CycleProfit, a.Now); err != nil {
			return err
		}
		e.users.Put(oldAcct)
		e.users.Put(newAcct)
	}

	owner := a.NewOwner
	m.Owner = &owner
	e.miners.Put(m)
	if fresh {
		e.users.Put(newAcct)
		p, err := e.params.Get()
		if err != nil {
			return err
		}
		p.UserCount++
		return e.params.Put(p)
	}
	return nil
}

func (e *Engine) handleChangeMinerDepositor(a *action.ChangeMinerDepositor) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, a.NewDepositor); err != nil {
		return err
	}
	if a.NewDepositor == m.Depositor {
		return errs.Conflictf("miner %d depositor unchanged", m.ID)
	}
	if e.tokens.IsFrozen(a.NewDepositor, a.Now) {
		return errs.Conflictf("depositor %q is frozen", a.NewDepositor)
	}

	oldRec, err := e.deposits.Get(m.Depositor)
	if err != nil {
		return err
	}
	oldRec.Release(m.Deposit)

	newRec, err := e.deposits.Get(a.NewDepositor)
	if err != nil {
		return err
	}
	// The new depositor backs the full original commitment, undoing any
	// forfeiture shortfall.
	if err := newRec.Commit(m.DepositTotal); err != nil {
		return err
	}
	if m.Assigned() {
		p, err := e.params.Get()
		if err != nil {
			return err
		}
		if !fixed.Sufficient(m.DepositTotal, m.MaxSpace, p.CollateralRate) {
			return errs.Insufficientf("deposit %d below collateral required for space %d",
				m.DepositTotal, m.MaxSpace)
		}
	}

	m.Depositor = a.NewDepositor
	m.Deposit = m.DepositTotal

	e.deposits.Put(oldRec)
	e.deposits.Put(newRec)
	e.miners.Put(m)
	return nil
}

func (e *Engine) handleChangeMinerSpace(a *action.ChangeMinerSpace) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Admin); err != nil {
		return err
	}
	poolID, ok := m.PoolID()
	if !ok {
		return errs.Conflictf("miner %d is not assigned", m.ID)
	}
	pool, err := e.pools.Get(poolID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.PoolOwnerAuth, pool.Owner); err != nil {
		return err
	}
	if err := alloc.ValidateSpace(a.MaxSpace); err != nil {
		return err
	}
	if a.MaxSpace == m.MaxSpace {
		return errs.Conflictf("miner %d space unchanged", m.ID)
	}
	if a.MaxSpace < m.ProdSpace {
		return errs.Conflictf("declared capacity %d below produced space %d", a.MaxSpace, m.ProdSpace)
	}

	if a.MaxSpace > m.MaxSpace {
		p, err := e.params.Get()
		if err != nil {
			return err
		}
		if !fixed.Sufficient(m.Deposit, a.MaxSpace, p.CollateralRate) {
			return errs.Insufficientf("deposit %d below collateral required for space %d",
				m.Deposit, a.MaxSpace)
		}
		if err := pool.Allocate(a.MaxSpace - m.MaxSpace); err != nil {
			return err
		}
	} else {
		if err := pool.ReleaseSpace(m.MaxSpace - a.MaxSpace); err != nil {
			return err
		}
	}
	m.MaxSpace = a.MaxSpace

	e.pools.Put(pool)
	e.miners.Put(m)
	return nil
}

func (e *Engine) handleChangeMinerDeposit(a *action.ChangeMinerDeposit) error {
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if err := e.auth.RequireAuth(a.Caller, m.Depositor); err != nil {
		return err
	}
	if a.Amount <= 0 {
		return errs.Invalidf("deposit change must be positive")
	}
	rec, err := e.deposits.Get(m.Depositor)
	if err != nil {
		return err
	}

	if a.Increase {
		if err := rec.Commit(a.Amount); err != nil {
			return err
		}
		m.Deposit += a.Amount
		m.DepositTotal += a.Amount
		if !fixed.WithinRange(m.DepositTotal) {
			return errs.Invalidf("deposit %d exceeds magnitude bound", m.DepositTotal)
		}
	} else {
		if m.Deposit < a.Amount {
			return errs.Insufficientf("miner deposit %d below reduction %d", m.Deposit, a.Amount)
		}
		rec.Release(a.Amount)
		m.Deposit -= a.Amount
		m.DepositTotal -= a.Amount
	}

	if m.Assigned() {
		p, err := e.params.Get()
		if err != nil {
			return err
		}
		if !fixed.Sufficient(m.Deposit, m.MaxSpace, p.CollateralRate) {
			return errs.Insufficientf("deposit %d below collateral required for space %d",
				m.Deposit, m.MaxSpace)
		}
	}

	e.deposits.Put(rec)
	e.miners.Put(m)
	return nil
}

func (e *Engine) handlePayForfeit(a *action.PayForfeit) error {
	if err := e.auth.RequireAuth(a.Caller, params.ManagerAccount); err != nil {
		return err
	}
	if a.Amount <= 0 {
		return errs.Invalidf("forfeit must be positive")
	}
	m, err := e.miners.Get(a.MinerID)
	if err != nil {
		return err
	}
	if m.Deposit < a.Amount {
		return errs.Insufficientf("miner deposit %d below forfeit %d", m.Deposit, a.Amount)
	}
	rec, err := e.deposits.Get(m.Depositor)
	if err != nil {
		return err
	}
	if err := rec.Forfeit(a.Amount); err != nil {
		return err
	}

	// Seizure bypasses the debit gates; the forfeited value was pledged
	// and could not move any other way.
	if err := e.tokens.ForcedTransfer(m.Depositor, params.ForfeitAccount, params.CoreSymbol, a.Amount, a.Now); err != nil {
		return err
	}

	m.Deposit -= a.Amount
	e.miners.Put(m)
	e.deposits.Put(rec)
	return nil
}
