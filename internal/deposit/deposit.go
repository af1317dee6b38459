// Package deposit tracks the collateral each depositor has pledged to
// back miners: the total pledged, the portion committed to specific
// miners, and the lifetime historical total.
package deposit

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
)

// Record is one depositor's collateral position. Invariant:
// 0 <= Used <= Total at every commit point.
type Record struct {
	Owner      string `json:"owner"`
	Total      int64  `json:"total"`
	Used       int64  `json:"used"`
	Historical int64  `json:"historical"`
}

// Free returns the headroom available for new commitments.
func (r *Record) Free() int64 {
	return r.Total - r.Used
}

// Pledge adds freshly deposited collateral to the free headroom.
func (r *Record) Pledge(amount int64) error {
	if amount <= 0 {
		return errs.Invalidf("pledge must be positive")
	}
	r.Total += amount
	r.Historical += amount
	return nil
}

// Withdraw returns uncommitted collateral to the depositor.
func (r *Record) Withdraw(amount int64) error {
	if amount <= 0 {
		return errs.Invalidf("withdrawal must be positive")
	}
	if r.Free() < amount {
		return errs.Insufficientf("free deposit %d below withdrawal %d", r.Free(), amount)
	}
	if r.Total < amount || r.Historical < amount {
		return errs.Insufficientf("deposit below withdrawal %d", amount)
	}
	r.Total -= amount
	r.Historical -= amount
	return nil
}

// Commit moves free headroom into the used portion, backing a miner.
func (r *Record) Commit(amount int64) error {
	if amount <= 0 {
		return errs.Invalidf("commitment must be positive")
	}
	if r.Free() < amount {
		return errs.Insufficientf("free deposit %d below commitment %d", r.Free(), amount)
	}
	r.Used += amount
	return nil
}

// Release returns committed collateral to free headroom, clamping at
// zero: removal paths may release a commitment that forfeiture already
// shrank.
func (r *Record) Release(amount int64) {
	r.Used -= amount
	if r.Used < 0 {
		r.Used = 0
	}
}

// Forfeit permanently removes committed collateral. Both the total and
// the used portion shrink; the value leaves the deposit system entirely.
func (r *Record) Forfeit(amount int64) error {
	if amount <= 0 {
		return errs.Invalidf("forfeit must be positive")
	}
	if r.Used < amount {
		return errs.Insufficientf("used deposit %d below forfeit %d", r.Used, amount)
	}
	r.Total -= amount
	r.Used -= amount
	return nil
}

// Ledger is the keyed table of deposit records.
type Ledger struct {
	records map[string]Record
	touched map[string]struct{}
}

// NewLedger returns an empty deposit ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[string]Record),
		touched: make(map[string]struct{}),
	}
}

// Has reports whether a depositor has a record.
func (l *Ledger) Has(owner string) bool {
	_, ok := l.records[owner]
	return ok
}

// Get returns a copy of a depositor's record.
func (l *Ledger) Get(owner string) (Record, error) {
	r, ok := l.records[owner]
	if !ok {
		return Record{}, errs.NotFoundf("deposit record for %q", owner)
	}
	return r, nil
}

// GetOrCreate returns a copy of a depositor's record, creating an empty
// one on first use.
func (l *Ledger) GetOrCreate(owner string) Record {
	if r, ok := l.records[owner]; ok {
		return r
	}
	return Record{Owner: owner}
}

// Put commits a proposed record value.
func (l *Ledger) Put(r Record) {
	l.records[r.Owner] = r
	l.touched[r.Owner] = struct{}{}
}

// TotalOf returns the depositor's pledged total, zero when absent. The
// token ledger consults this when gating balance debits.
func (l *Ledger) TotalOf(owner string) int64 {
	return l.records[owner].Total
}

// Count returns the number of deposit records.
func (l *Ledger) Count() int {
	return len(l.records)
}

// TakeTouched returns the records written since the last call and resets
// the dirty set.
func (l *Ledger) TakeTouched() []Record {
	if len(l.touched) == 0 {
		return nil
	}
	out := make([]Record, 0, len(l.touched))
	for owner := range l.touched {
		out = append(out, l.records[owner])
	}
	l.touched = make(map[string]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Snapshot returns every record, sorted by owner, for persistence.
func (l *Ledger) Snapshot() []Record {
	owners := make([]string, 0, len(l.records))
	for owner := range l.records {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	out := make([]Record, 0, len(owners))
	for _, owner := range owners {
		out = append(out, l.records[owner])
	}
	return out
}

// Restore replaces the ledger contents with a persisted snapshot.
func (l *Ledger) Restore(records []Record) {
	l.records = make(map[string]Record, len(records))
	l.touched = make(map[string]struct{})
	for _, r := range records {
		l.records[r.Owner] = r
	}
}
