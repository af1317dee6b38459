// Package ledger maintains the per-identity storage accounts with their
// time-accruing rent and profit balances.
//
// The ledger hands out copies: handlers fetch a record with Get, mutate
// the copy and commit it back with Put once every check has passed, so a
// failed action never leaves a half-applied account behind.
package ledger

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
)

// UserLedger is the keyed table of Accounts.
type UserLedger struct {
	accounts map[string]Account
	touched  map[string]struct{}
}

// NewUserLedger returns an empty ledger.
func NewUserLedger() *UserLedger {
	return &UserLedger{
		accounts: make(map[string]Account),
		touched:  make(map[string]struct{}),
	}
}

// Has reports whether an account exists.
func (l *UserLedger) Has(name string) bool {
	_, ok := l.accounts[name]
	return ok
}

// Get returns a copy of the named account.
func (l *UserLedger) Get(name string) (Account, error) {
	a, ok := l.accounts[name]
	if !ok {
		return Account{}, errs.NotFoundf("account %q", name)
	}
	return a, nil
}

// Open creates a fresh account with both settlement clocks set to now.
// It fails if the name is already taken.
func (l *UserLedger) Open(name string, now uint64) (Account, error) {
	if name == "" {
		return Account{}, errs.Invalidf("account name must not be empty")
	}
	if _, ok := l.accounts[name]; ok {
		return Account{}, errs.AlreadyExistsf("account %q", name)
	}
	a := Account{
		Name:            name,
		RentSettledAt:   now,
		ProfitSettledAt: now,
	}
	l.accounts[name] = a
	l.touched[name] = struct{}{}
	return a, nil
}

// Put commits a proposed account value.
func (l *UserLedger) Put(a Account) {
	l.accounts[a.Name] = a
	l.touched[a.Name] = struct{}{}
}

// Count returns the number of accounts.
func (l *UserLedger) Count() int {
	return len(l.accounts)
}

// Names returns all account names in sorted order.
func (l *UserLedger) Names() []string {
	names := make([]string, 0, len(l.accounts))
	for name := range l.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TakeTouched returns the accounts written since the last call and
// resets the dirty set. The engine uses this to emit projection updates
// per applied action.
func (l *UserLedger) TakeTouched() []Account {
	if len(l.touched) == 0 {
		return nil
	}
	out := make([]Account, 0, len(l.touched))
	for name := range l.touched {
		out = append(out, l.accounts[name])
	}
	l.touched = make(map[string]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns every account, sorted by name, for persistence.
func (l *UserLedger) Snapshot() []Account {
	out := make([]Account, 0, len(l.accounts))
	for _, name := range l.Names() {
		out = append(out, l.accounts[name])
	}
	return out
}

// Restore replaces the ledger contents with a persisted snapshot.
func (l *UserLedger) Restore(accounts []Account) {
	l.accounts = make(map[string]Account, len(accounts))
	l.touched = make(map[string]struct{})
	for _, a := range accounts {
		l.accounts[a.Name] = a
	}
}
