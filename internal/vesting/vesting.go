// Package vesting implements time-locked transfer schedules: named
// unlock rules and the per-recipient lock records they govern. The token
// ledger asks it how much of a balance is still locked before honoring a
// debit.
package vesting

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
)

// Rule is an unlock schedule: at Times[i] the unlocked share rises to
// Percents[i]/Base. Times are either absolute epoch milliseconds or
// offsets from a per-symbol exchange reference time.
type Rule struct {
	ID       uint64   `json:"id"`
	Times    []uint64 `json:"times"`
	Percents []uint8  `json:"percents"`
	Base     uint8    `json:"base"`
	Absolute bool     `json:"absolute"`
	Memo     string   `json:"memo"`
}

// Validate checks the structural constraints: at least two steps, times
// strictly increasing, percentages strictly increasing and bounded by
// the base.
func (r *Rule) Validate() error {
	if r.Base == 0 {
		return errs.Invalidf("rule base must be positive")
	}
	if len(r.Times) < 2 {
		return errs.Invalidf("rule needs at least two unlock steps")
	}
	if len(r.Times) != len(r.Percents) {
		return errs.Invalidf("times and percentages differ in length")
	}
	for i := range r.Times {
		if r.Percents[i] > r.Base {
			return errs.Invalidf("unlock percentage %d above base %d", r.Percents[i], r.Base)
		}
		if i == 0 {
			continue
		}
		if r.Times[i] <= r.Times[i-1] {
			return errs.Invalidf("unlock times must be strictly increasing")
		}
		if r.Percents[i] <= r.Percents[i-1] {
			return errs.Invalidf("unlock percentages must be strictly increasing")
		}
	}
	return nil
}

// unlockedPercent walks the schedule and returns the highest percentage
// whose threshold has passed. refTime is the exchange reference for
// relative rules; a relative rule with no reference set unlocks nothing.
func (r *Rule) unlockedPercent(now, refTime uint64) uint8 {
	var offset uint64
	if !r.Absolute {
		if refTime == 0 {
			return 0
		}
		offset = refTime
	}
	var pct uint8
	for i, t := range r.Times {
		if t+offset > now {
			break
		}
		pct = r.Percents[i]
	}
	return pct
}

// Lock is the accumulated locked quantity one sender placed on one
// recipient under one rule. Repeated locked transfers under the same
// rule fold into a single record.
type Lock struct {
	RuleID    uint64 `json:"rule_id"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Time      uint64 `json:"time"`
}

type lockKey struct {
	recipient string
	ruleID    uint64
	symbol    string
}

// Calculator owns the rule table and the lock records.
type Calculator struct {
	rules map[uint64]Rule
	locks map[lockKey]Lock

	touchedRules map[uint64]struct{}
	touchedLocks map[lockKey]struct{}
}

// NewCalculator returns an empty calculator.
func NewCalculator() *Calculator {
	return &Calculator{
		rules:        make(map[uint64]Rule),
		locks:        make(map[lockKey]Lock),
		touchedRules: make(map[uint64]struct{}),
		touchedLocks: make(map[lockKey]struct{}),
	}
}

// AddRule registers a validated unlock schedule under a fresh id.
func (c *Calculator) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := c.rules[r.ID]; ok {
		return errs.AlreadyExistsf("lock rule %d", r.ID)
	}
	c.rules[r.ID] = r
	c.touchedRules[r.ID] = struct{}{}
	return nil
}

// Rule returns the schedule registered under id.
func (c *Calculator) Rule(id uint64) (Rule, error) {
	r, ok := c.rules[id]
	if !ok {
		return Rule{}, errs.NotFoundf("lock rule %d", id)
	}
	return r, nil
}

// HasRule reports whether a rule id exists.
func (c *Calculator) HasRule(id uint64) bool {
	_, ok := c.rules[id]
	return ok
}

// RecordLock attaches quantity to the recipient under the given rule,
// folding into an existing record when one exists.
func (c *Calculator) RecordLock(ruleID uint64, sender, recipient, symbol string, quantity int64, now uint64) error {
	if quantity <= 0 {
		return errs.Invalidf("locked quantity must be positive")
	}
	if _, ok := c.rules[ruleID]; !ok {
		return errs.NotFoundf("lock rule %d", ruleID)
	}
	key := lockKey{recipient: recipient, ruleID: ruleID, symbol: symbol}
	l, ok := c.locks[key]
	if !ok {
		l = Lock{
			RuleID:    ruleID,
			Recipient: recipient,
			Sender:    sender,
			Symbol:    symbol,
		}
	}
	l.Quantity += quantity
	l.Time = now
	c.locks[key] = l
	c.touchedLocks[key] = struct{}{}
	return nil
}

// LockedAmount sums, across the recipient's lock records for one symbol,
// the portion whose unlock threshold has not yet passed. refTime is the
// symbol's exchange reference time for relative rules.
func (c *Calculator) LockedAmount(recipient, symbol string, refTime, now uint64) (int64, error) {
	var locked int64
	for key, l := range c.locks {
		if key.recipient != recipient || key.symbol != symbol {
			continue
		}
		r, ok := c.rules[l.RuleID]
		if !ok {
			return 0, errs.Invariantf("lock references missing rule %d", l.RuleID)
		}
		pct := r.unlockedPercent(now, refTime)
		lockedPct := int64(r.Base - pct)
		locked += fixed.MulDiv(l.Quantity, lockedPct, int64(r.Base))
	}
	return locked, nil
}

// Rules returns all schedules sorted by id, for persistence.
func (c *Calculator) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Locks returns all lock records sorted by recipient, rule and symbol,
// for persistence.
func (c *Calculator) Locks() []Lock {
	out := make([]Lock, 0, len(c.locks))
	for _, l := range c.locks {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Recipient != out[j].Recipient {
			return out[i].Recipient < out[j].Recipient
		}
		if out[i].RuleID != out[j].RuleID {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// TakeTouched returns the rules and locks written since the last call
// and resets both dirty sets.
func (c *Calculator) TakeTouched() ([]Rule, []Lock) {
	var rules []Rule
	for id := range c.touchedRules {
		rules = append(rules, c.rules[id])
	}
	var locks []Lock
	for key := range c.touchedLocks {
		locks = append(locks, c.locks[key])
	}
	c.touchedRules = make(map[uint64]struct{})
	c.touchedLocks = make(map[lockKey]struct{})
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].Recipient != locks[j].Recipient {
			return locks[i].Recipient < locks[j].Recipient
		}
		if locks[i].RuleID != locks[j].RuleID {
			return locks[i].RuleID < locks[j].RuleID
		}
		return locks[i].Symbol < locks[j].Symbol
	})
	return rules, locks
}

// Restore replaces the calculator contents with a persisted snapshot.
func (c *Calculator) Restore(rules []Rule, locks []Lock) {
	c.rules = make(map[uint64]Rule, len(rules))
	for _, r := range rules {
		c.rules[r.ID] = r
	}
	c.locks = make(map[lockKey]Lock, len(locks))
	for _, l := range locks {
		c.locks[lockKey{recipient: l.Recipient, ruleID: l.RuleID, symbol: l.Symbol}] = l
	}
	c.touchedRules = make(map[uint64]struct{})
	c.touchedLocks = make(map[lockKey]struct{})
}
