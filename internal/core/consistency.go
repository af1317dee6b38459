package core

import (
	"github.com/yottachain/mena/internal/errs"
)

// CheckConsistency sweeps the cross-store invariants the handlers are
// supposed to preserve on every commit:
//
//   - a miner's produced space never exceeds its declared capacity
//   - a pool's allocated space equals the sum of its members' declared
//     capacity
//   - an account's produced space and profit rate equal the sums over
//     its active miners
//   - a depositor's used deposit equals the sum of the collateral
//     snapshots backing its miners, and never exceeds the total
//
// Per-miner collateral coverage is deliberately not swept: forfeiture
// legitimately pulls a miner's deposit below the required level until
// the next capacity operation re-checks it.
//
// The engine runs this periodically and panics on failure; a violation
// here means a handler committed a partial mutation.
func (e *Engine) CheckConsistency() error {
	for _, id := range e.miners.IDs() {
		m, err := e.miners.Get(id)
		if err != nil {
			return err
		}
		if m.ProdSpace > m.MaxSpace {
			return errs.Invariantf("miner %d produced %d above declared %d", m.ID, m.ProdSpace, m.MaxSpace)
		}
		if name, ok := m.OwnerName(); ok && !e.users.Has(name) {
			return errs.Invariantf("miner %d owner %q has no account", m.ID, name)
		}
		if !e.deposits.Has(m.Depositor) {
			return errs.Invariantf("miner %d depositor %q has no deposit record", m.ID, m.Depositor)
		}
	}

	for _, id := range e.pools.IDs() {
		pool, err := e.pools.Get(id)
		if err != nil {
			return err
		}
		if members := e.miners.PoolProdSpace(id); members != pool.ProdSpace {
			return errs.Invariantf("pool %q allocation %d != member sum %d", id, pool.ProdSpace, members)
		}
	}

	for _, name := range e.users.Names() {
		acct, err := e.users.Get(name)
		if err != nil {
			return err
		}
		space, rate := e.miners.OwnerContribution(name)
		if acct.ProducedSpace != space {
			return errs.Invariantf("account %q produced space %d != miner sum %d", name, acct.ProducedSpace, space)
		}
		if acct.ProfitRate != rate {
			return errs.Invariantf("account %q profit rate %d != miner sum %d", name, acct.ProfitRate, rate)
		}
	}

	for _, rec := range e.deposits.Snapshot() {
		if rec.Used < 0 || rec.Used > rec.Total {
			return errs.Invariantf("deposit record %q used %d outside [0,%d]", rec.Owner, rec.Used, rec.Total)
		}
		if backed := e.miners.UsedDepositOf(rec.Owner); backed != rec.Used {
			return errs.Invariantf("deposit record %q used %d != miner sum %d", rec.Owner, rec.Used, backed)
		}
	}
	return nil
}
