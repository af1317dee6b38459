// Package token implements the raw fungible-balance ledger: symbol
// stats, account balances, account freezing, the restricted-sender list,
// and the debit gates that keep locked or pledged value from moving.
package token

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/vesting"
)

// Stats describes one issued symbol.
type Stats struct {
	Symbol    string `json:"symbol"`
	Supply    int64  `json:"supply"`
	MaxSupply int64  `json:"max_supply"`
	Issuer    string `json:"issuer"`
	// ExchangeTime anchors relative vesting schedules for this symbol;
	// zero until set, and settable exactly once.
	ExchangeTime uint64 `json:"exchange_time"`
}

// Balance is one account's holding of one symbol.
type Balance struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Amount  int64  `json:"amount"`
}

// Freeze is an account-wide spending freeze with a deadline.
type Freeze struct {
	Account string `json:"account"`
	Until   uint64 `json:"until"`
}

// Restricted marks a sender whose outbound transfers may carry vesting
// locks.
type Restricted struct {
	Account string `json:"account"`
	Memo    string `json:"memo"`
}

// DepositSource reports the collateral a holder has pledged; pledged
// value stays in the holder's balance but cannot be spent.
type DepositSource interface {
	TotalOf(owner string) int64
}

type balanceKey struct {
	account string
	symbol  string
}

// Ledger is the raw token ledger.
type Ledger struct {
	stats      map[string]Stats
	balances   map[balanceKey]int64
	frozen     map[string]uint64
	restricted map[string]string
	vest       *vesting.Calculator
	deposits   DepositSource

	touchedStats      map[string]struct{}
	touchedBalances   map[balanceKey]struct{}
	touchedFrozen     map[string]struct{}
	touchedRestricted map[string]struct{}
}

// NewLedger wires a token ledger to its vesting calculator and deposit
// source.
func NewLedger(vest *vesting.Calculator, deposits DepositSource) *Ledger {
	return &Ledger{
		stats:           make(map[string]Stats),
		balances:        make(map[balanceKey]int64),
		frozen:          make(map[string]uint64),
		restricted:      make(map[string]string),
		vest:            vest,
		deposits:        deposits,
		touchedStats:      make(map[string]struct{}),
		touchedBalances:   make(map[balanceKey]struct{}),
		touchedFrozen:     make(map[string]struct{}),
		touchedRestricted: make(map[string]struct{}),
	}
}

// Create registers a new symbol with its issuer and supply cap.
func (l *Ledger) Create(issuer, symbol string, maxSupply int64) error {
	if symbol == "" {
		return errs.Invalidf("symbol must not be empty")
	}
	if maxSupply <= 0 {
		return errs.Invalidf("max supply must be positive")
	}
	if !fixed.WithinRange(maxSupply) {
		return errs.Invalidf("max supply %d exceeds magnitude bound", maxSupply)
	}
	if _, ok := l.stats[symbol]; ok {
		return errs.AlreadyExistsf("symbol %q", symbol)
	}
	l.stats[symbol] = Stats{Symbol: symbol, MaxSupply: maxSupply, Issuer: issuer}
	l.touchedStats[symbol] = struct{}{}
	return nil
}

// Stats returns the stats for a symbol.
func (l *Ledger) Stats(symbol string) (Stats, error) {
	st, ok := l.stats[symbol]
	if !ok {
		return Stats{}, errs.NotFoundf("symbol %q", symbol)
	}
	return st, nil
}

// Issue mints quantity to an account, bounded by the remaining supply.
// Only the configured issuer may mint; the engine checks that authority.
func (l *Ledger) Issue(to, symbol string, quantity int64) error {
	st, ok := l.stats[symbol]
	if !ok {
		return errs.NotFoundf("symbol %q", symbol)
	}
	if quantity <= 0 {
		return errs.Invalidf("issue quantity must be positive")
	}
	if quantity > st.MaxSupply-st.Supply {
		return errs.Insufficientf("issue %d exceeds remaining supply %d", quantity, st.MaxSupply-st.Supply)
	}
	st.Supply += quantity
	l.stats[symbol] = st
	l.touchedStats[symbol] = struct{}{}
	l.addBalance(to, symbol, quantity)
	return nil
}

// SetExchangeTime anchors relative vesting schedules for a symbol. It
// can only be set once.
func (l *Ledger) SetExchangeTime(symbol string, t uint64) error {
	st, ok := l.stats[symbol]
	if !ok {
		return errs.NotFoundf("symbol %q", symbol)
	}
	if st.ExchangeTime != 0 {
		return errs.Conflictf("exchange time for %q already set", symbol)
	}
	if t == 0 {
		return errs.Invalidf("exchange time must be positive")
	}
	st.ExchangeTime = t
	l.stats[symbol] = st
	l.touchedStats[symbol] = struct{}{}
	return nil
}

// BalanceOf returns an account's holding of a symbol, zero when absent.
func (l *Ledger) BalanceOf(account, symbol string) int64 {
	return l.balances[balanceKey{account: account, symbol: symbol}]
}

// Transfer moves quantity between accounts under the full debit gates.
func (l *Ledger) Transfer(from, to, symbol string, quantity int64, now uint64) error {
	return l.transfer(from, to, symbol, quantity, now, false)
}

// ForcedTransfer moves quantity while bypassing the freeze, vesting and
// deposit gates. Forfeiture collection uses it to seize pledged value.
func (l *Ledger) ForcedTransfer(from, to, symbol string, quantity int64, now uint64) error {
	return l.transfer(from, to, symbol, quantity, now, true)
}

func (l *Ledger) transfer(from, to, symbol string, quantity int64, now uint64, force bool) error {
	if from == to {
		return errs.Invalidf("cannot transfer to self")
	}
	if quantity <= 0 {
		return errs.Invalidf("transfer quantity must be positive")
	}
	if _, ok := l.stats[symbol]; !ok {
		return errs.NotFoundf("symbol %q", symbol)
	}
	if err := l.subBalance(from, symbol, quantity, now, force); err != nil {
		return err
	}
	l.addBalance(to, symbol, quantity)
	return nil
}

// LockTransfer performs a transfer and attaches a vesting lock to the
// received quantity. Only restricted senders may do this, and the rule
// must already exist.
func (l *Ledger) LockTransfer(ruleID uint64, from, to, symbol string, quantity int64, now uint64) error {
	if !l.IsRestricted(from) {
		return errs.Unauthorizedf("%q may not send locked transfers", from)
	}
	if !l.vest.HasRule(ruleID) {
		return errs.NotFoundf("lock rule %d", ruleID)
	}
	if err := l.transfer(from, to, symbol, quantity, now, false); err != nil {
		return err
	}
	return l.vest.RecordLock(ruleID, from, to, symbol, quantity, now)
}

// subBalance enforces the debit gates in order: raw balance, freeze,
// vesting locks, pledged deposit.
func (l *Ledger) subBalance(account, symbol string, quantity int64, now uint64, force bool) error {
	key := balanceKey{account: account, symbol: symbol}
	balance, ok := l.balances[key]
	if !ok {
		return errs.NotFoundf("no %q balance for %q", symbol, account)
	}
	if balance < quantity {
		return errs.Insufficientf("balance %d below debit %d", balance, quantity)
	}
	if !force {
		if l.IsFrozen(account, now) {
			return errs.Conflictf("account %q is frozen", account)
		}
		st := l.stats[symbol]
		locked, err := l.vest.LockedAmount(account, symbol, st.ExchangeTime, now)
		if err != nil {
			return err
		}
		if balance-locked < quantity {
			return errs.Insufficientf("balance %d minus locked %d below debit %d", balance, locked, quantity)
		}
		pledged := l.deposits.TotalOf(account)
		if balance-pledged < quantity {
			return errs.Insufficientf("balance %d minus pledged %d below debit %d", balance, pledged, quantity)
		}
	}
	if balance == quantity {
		delete(l.balances, key)
	} else {
		l.balances[key] = balance - quantity
	}
	l.touchedBalances[key] = struct{}{}
	return nil
}

func (l *Ledger) addBalance(account, symbol string, quantity int64) {
	key := balanceKey{account: account, symbol: symbol}
	l.balances[key] += quantity
	l.touchedBalances[key] = struct{}{}
}

// TakeTouched returns the stats and balances written since the last
// call and resets both dirty sets. A touched balance that no longer
// exists is reported with a zero amount.
func (l *Ledger) TakeTouched() ([]Stats, []Balance) {
	var stats []Stats
	for symbol := range l.touchedStats {
		stats = append(stats, l.stats[symbol])
	}
	var balances []Balance
	for key := range l.touchedBalances {
		balances = append(balances, Balance{Account: key.account, Symbol: key.symbol, Amount: l.balances[key]})
	}
	l.touchedStats = make(map[string]struct{})
	l.touchedBalances = make(map[balanceKey]struct{})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Symbol < stats[j].Symbol })
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Account != balances[j].Account {
			return balances[i].Account < balances[j].Account
		}
		return balances[i].Symbol < balances[j].Symbol
	})
	return stats, balances
}

// TakeTouchedAccess returns the freeze and restricted-sender entries
// written since the last call and resets both dirty sets. Entries that
// no longer exist come back in the delete slices.
func (l *Ledger) TakeTouchedAccess() (frozen []Freeze, unfrozen []string, restricted []Restricted, unrestricted []string) {
	for account := range l.touchedFrozen {
		if until, ok := l.frozen[account]; ok {
			frozen = append(frozen, Freeze{Account: account, Until: until})
		} else {
			unfrozen = append(unfrozen, account)
		}
	}
	for account := range l.touchedRestricted {
		if memo, ok := l.restricted[account]; ok {
			restricted = append(restricted, Restricted{Account: account, Memo: memo})
		} else {
			unrestricted = append(unrestricted, account)
		}
	}
	l.touchedFrozen = make(map[string]struct{})
	l.touchedRestricted = make(map[string]struct{})
	sort.Slice(frozen, func(i, j int) bool { return frozen[i].Account < frozen[j].Account })
	sort.Strings(unfrozen)
	sort.Slice(restricted, func(i, j int) bool { return restricted[i].Account < restricted[j].Account })
	sort.Strings(unrestricted)
	return frozen, unfrozen, restricted, unrestricted
}

// FreezeAccount suspends spending from an account until the deadline.
// Freezing an already frozen account moves the deadline.
func (l *Ledger) FreezeAccount(account string, until uint64) {
	l.frozen[account] = until
	l.touchedFrozen[account] = struct{}{}
}

// UnfreezeAccount lifts a freeze. Expired freezes stay in place until
// lifted; this is the only place an entry leaves the map.
func (l *Ledger) UnfreezeAccount(account string) error {
	if _, ok := l.frozen[account]; !ok {
		return errs.NotFoundf("account %q is not frozen", account)
	}
	delete(l.frozen, account)
	l.touchedFrozen[account] = struct{}{}
	return nil
}

// IsFrozen reports whether the account is frozen at now. A pure read:
// expired entries are reported unfrozen but never removed here, so a
// rejected action cannot leave a trace through its freeze checks.
func (l *Ledger) IsFrozen(account string, now uint64) bool {
	until, ok := l.frozen[account]
	return ok && now < until
}

// AddRestricted places a sender on the restricted list.
func (l *Ledger) AddRestricted(account, memo string) error {
	if _, ok := l.restricted[account]; ok {
		return errs.AlreadyExistsf("restricted sender %q", account)
	}
	l.restricted[account] = memo
	l.touchedRestricted[account] = struct{}{}
	return nil
}

// RemoveRestricted takes a sender off the restricted list.
func (l *Ledger) RemoveRestricted(account string) error {
	if _, ok := l.restricted[account]; !ok {
		return errs.NotFoundf("restricted sender %q", account)
	}
	delete(l.restricted, account)
	l.touchedRestricted[account] = struct{}{}
	return nil
}

// IsRestricted reports membership on the restricted-sender list.
func (l *Ledger) IsRestricted(account string) bool {
	_, ok := l.restricted[account]
	return ok
}

// Snapshot captures the full token state for persistence.
type Snapshot struct {
	Stats      []Stats      `json:"stats"`
	Balances   []Balance    `json:"balances"`
	Frozen     []Freeze     `json:"frozen"`
	Restricted []Restricted `json:"restricted"`
}

// Snapshot returns the deterministic, sorted token state.
func (l *Ledger) Snapshot() Snapshot {
	var snap Snapshot
	for _, st := range l.stats {
		snap.Stats = append(snap.Stats, st)
	}
	sort.Slice(snap.Stats, func(i, j int) bool { return snap.Stats[i].Symbol < snap.Stats[j].Symbol })
	for key, amount := range l.balances {
		snap.Balances = append(snap.Balances, Balance{Account: key.account, Symbol: key.symbol, Amount: amount})
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		if snap.Balances[i].Account != snap.Balances[j].Account {
			return snap.Balances[i].Account < snap.Balances[j].Account
		}
		return snap.Balances[i].Symbol < snap.Balances[j].Symbol
	})
	for account, until := range l.frozen {
		snap.Frozen = append(snap.Frozen, Freeze{Account: account, Until: until})
	}
	sort.Slice(snap.Frozen, func(i, j int) bool { return snap.Frozen[i].Account < snap.Frozen[j].Account })
	for account, memo := range l.restricted {
		snap.Restricted = append(snap.Restricted, Restricted{Account: account, Memo: memo})
	}
	sort.Slice(snap.Restricted, func(i, j int) bool { return snap.Restricted[i].Account < snap.Restricted[j].Account })
	return snap
}

// Restore replaces the ledger contents with a persisted snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.stats = make(map[string]Stats, len(snap.Stats))
	for _, st := range snap.Stats {
		l.stats[st.Symbol] = st
	}
	l.balances = make(map[balanceKey]int64, len(snap.Balances))
	for _, b := range snap.Balances {
		l.balances[balanceKey{account: b.Account, symbol: b.Symbol}] = b.Amount
	}
	l.frozen = make(map[string]uint64, len(snap.Frozen))
	for _, f := range snap.Frozen {
		l.frozen[f.Account] = f.Until
	}
	l.restricted = make(map[string]string, len(snap.Restricted))
	for _, r := range snap.Restricted {
		l.restricted[r.Account] = r.Memo
	}
	l.touchedStats = make(map[string]struct{})
	l.touchedBalances = make(map[balanceKey]struct{})
}
