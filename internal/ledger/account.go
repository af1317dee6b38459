package ledger

import (
	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/params"
)

// Account carries the two independently settled balances of a storage
// identity: the rent side (credits spent on stored data) and the profit
// side (credits earned by produced capacity).
//
// Each side is a rate-bearing balance: its value is only meaningful
// together with its settlement timestamp, and every mutation of a rate
// must settle the balance to now first.
type Account struct {
	Name string `json:"name"`

	// Rent side. FeeRate drains the balance each cycle while data is
	// stored.
	RentBalance   int64  `json:"rent_balance"`
	FeeRate       int64  `json:"fee_rate"`
	UsedSpace     uint64 `json:"used_space"`
	RentSettledAt uint64 `json:"rent_settled_at"`

	// Profit side. ProfitRate grows the balance each cycle in
	// proportion to produced space.
	ProfitBalance   int64  `json:"profit_balance"`
	ProfitRate      int64  `json:"profit_rate"`
	ProducedSpace   uint64 `json:"produced_space"`
	ProfitSettledAt uint64 `json:"profit_settled_at"`
}

// SettleRent advances the rent balance to now at the current fee rate.
func (a *Account) SettleRent(now uint64) error {
	nb, err := fixed.Settle(a.RentBalance, a.FeeRate, 0, a.RentSettledAt, now)
	if err != nil {
		return err
	}
	a.RentBalance = nb
	a.RentSettledAt = now
	return nil
}

// SettleProfit advances the profit balance to now at the current profit
// rate.
func (a *Account) SettleProfit(now uint64) error {
	nb, err := fixed.Settle(a.ProfitBalance, 0, a.ProfitRate, a.ProfitSettledAt, now)
	if err != nil {
		return err
	}
	a.ProfitBalance = nb
	a.ProfitSettledAt = now
	return nil
}

// CreditRent settles the rent balance and applies a positive delta.
func (a *Account) CreditRent(amount int64, now uint64) error {
	if amount <= 0 {
		return errs.Invalidf("rent credit must be positive")
	}
	if !fixed.WithinRange(amount) {
		return errs.Invalidf("rent credit %d exceeds magnitude bound", amount)
	}
	if err := a.SettleRent(now); err != nil {
		return err
	}
	nb := a.RentBalance + amount
	if !fixed.WithinRange(nb) {
		return errs.Invalidf("rent balance %d exceeds magnitude bound", nb)
	}
	a.RentBalance = nb
	return nil
}

// DebitRent settles the rent balance and subtracts amount. The result may
// go negative: a rent balance represents accrued debt until the fee rate
// is corrected, bounded only by the magnitude limit.
func (a *Account) DebitRent(amount int64, now uint64) error {
	if amount <= 0 {
		return errs.Invalidf("rent debit must be positive")
	}
	if !fixed.WithinRange(amount) {
		return errs.Invalidf("rent debit %d exceeds magnitude bound", amount)
	}
	if err := a.SettleRent(now); err != nil {
		return err
	}
	nb := a.RentBalance - amount
	if !fixed.WithinRange(nb) {
		return errs.Invalidf("rent balance %d exceeds magnitude bound", nb)
	}
	a.RentBalance = nb
	return nil
}

// SetFeeRate settles the rent balance at the old rate, then assigns the
// new one. Assigning the same rate is rejected so a no-op cannot mask a
// missed settlement elsewhere.
func (a *Account) SetFeeRate(rate int64, now uint64) error {
	if rate < 0 {
		return errs.Invalidf("fee rate must not be negative")
	}
	if !fixed.WithinRange(rate) {
		return errs.Invalidf("fee rate %d exceeds magnitude bound", rate)
	}
	if rate == a.FeeRate {
		return errs.Conflictf("fee rate unchanged")
	}
	if err := a.SettleRent(now); err != nil {
		return err
	}
	a.FeeRate = rate
	return nil
}

// CreditProfit settles the profit balance and applies a positive delta.
func (a *Account) CreditProfit(amount int64, now uint64) error {
	if amount <= 0 {
		return errs.Invalidf("profit credit must be positive")
	}
	if !fixed.WithinRange(amount) {
		return errs.Invalidf("profit credit %d exceeds magnitude bound", amount)
	}
	if err := a.SettleProfit(now); err != nil {
		return err
	}
	nb := a.ProfitBalance + amount
	if !fixed.WithinRange(nb) {
		return errs.Invalidf("profit balance %d exceeds magnitude bound", nb)
	}
	a.ProfitBalance = nb
	return nil
}

// DebitProfit settles the profit balance and subtracts amount. Unlike the
// rent side, earned profit cannot be overdrawn.
func (a *Account) DebitProfit(amount int64, now uint64) error {
	if amount <= 0 {
		return errs.Invalidf("profit debit must be positive")
	}
	if err := a.SettleProfit(now); err != nil {
		return err
	}
	if a.ProfitBalance < amount {
		return errs.Insufficientf("profit balance %d below debit %d", a.ProfitBalance, amount)
	}
	a.ProfitBalance -= amount
	return nil
}

// AddContribution settles the profit balance and then adds a miner's
// produced space and cycle profit rate to the account.
func (a *Account) AddContribution(space uint64, rate int64, now uint64) error {
	if err := a.SettleProfit(now); err != nil {
		return err
	}
	if a.ProducedSpace+space > params.MaxProfitSpace {
		return errs.Invalidf("produced space would exceed bound")
	}
	nr := a.ProfitRate + rate
	if !fixed.WithinRange(nr) {
		return errs.Invalidf("profit rate %d exceeds magnitude bound", nr)
	}
	a.ProducedSpace += space
	a.ProfitRate = nr
	return nil
}

// RemoveContribution settles the profit balance and then subtracts a
// miner's produced space and cycle profit rate. The account must actually
// carry the contribution being removed.
func (a *Account) RemoveContribution(space uint64, rate int64, now uint64) error {
	if a.ProducedSpace < space {
		return errs.Invariantf("produced space %d below contribution %d", a.ProducedSpace, space)
	}
	if a.ProfitRate < rate {
		return errs.Invariantf("profit rate %d below contribution %d", a.ProfitRate, rate)
	}
	if err := a.SettleProfit(now); err != nil {
		return err
	}
	a.ProducedSpace -= space
	a.ProfitRate -= rate
	return nil
}

// AddUsedSpace grows the rent-side space counter.
func (a *Account) AddUsedSpace(space uint64) error {
	if a.UsedSpace+space > params.MaxUserSpace {
		return errs.Invalidf("used space would exceed bound")
	}
	a.UsedSpace += space
	return nil
}

// SubUsedSpace shrinks the rent-side space counter.
func (a *Account) SubUsedSpace(space uint64) error {
	if a.UsedSpace < space {
		return errs.Insufficientf("used space %d below release %d", a.UsedSpace, space)
	}
	a.UsedSpace -= space
	return nil
}
