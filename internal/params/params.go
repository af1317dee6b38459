// Package params holds the system-wide constants and the mutable
// configuration singleton that every settlement and pricing rule reads.
package params

import (
	"github.com/yottachain/mena/internal/errs"
)

// Time constants, expressed in milliseconds. Every timestamp entering the
// core is epoch milliseconds from the ingestion clock.
const (
	// CycleMS is the accounting cycle over which per-cycle rates accrue.
	CycleMS uint64 = 24 * 60 * 60 * 1000
	// YearMS is the accrual year used when deriving a cycle profit rate
	// from produced space.
	YearMS uint64 = 365 * CycleMS
)

// Space constants. Space is counted in 16 KiB shards, so one logical
// gigabyte is 64 * 1024 shards.
const (
	SpaceOneGB uint64 = 64 * 1024

	// MaxUserSpace bounds a single account's used space (500 PB).
	MaxUserSpace uint64 = SpaceOneGB * 1024 * 1024 * 500
	// MaxProfitSpace bounds a single account's produced space (500 PB).
	MaxProfitSpace uint64 = SpaceOneGB * 1024 * 1024 * 500
	// MaxPoolSpace bounds a single pool's quota (500 PB).
	MaxPoolSpace uint64 = SpaceOneGB * 1024 * 1024 * 500

	// MinMinerSpace and MaxMinerSpace bound an individual miner's
	// declared capacity (100 GB to 100 TB).
	MinMinerSpace uint64 = SpaceOneGB * 100
	MaxMinerSpace uint64 = SpaceOneGB * 1024 * 100
)

// Amount constants. Credit balances are fixed-point integers with four
// decimal places, the same scale as the token.
const (
	// TokenUnit is the number of base units in one whole token/credit.
	TokenUnit int64 = 10000

	// MaxCreditAmount bounds the magnitude of every credit balance,
	// fee rate and profit rate.
	MaxCreditAmount int64 = (int64(1) << 62) - 1

	// MinBuyAmount and MaxTradeAmount bound a single purchase or sale.
	MinBuyAmount   int64 = 2 * 100000000
	MaxTradeAmount int64 = 2 * 1024 * 1024 * 100000000

	// ProfitScale converts produced gigabytes per year into a per-cycle
	// profit rate in base units.
	ProfitScale int64 = 100000000

	// PoolRegistrationFee is charged, in base token units, when a new
	// storage pool is registered (10 whole tokens).
	PoolRegistrationFee int64 = 100000
)

// Well-known system identities. The surrounding environment guarantees
// these accounts exist before the engine starts.
const (
	// SelfAccount is the identity the engine itself acts under.
	SelfAccount = "store.mena"
	// SuperAdminAccount may remove miners and perform emergency fixes.
	SuperAdminAccount = "superadm.mena"
	// AdminAccount may adjust pricing parameters.
	AdminAccount = "admin.mena"
	// PoolAdminAccount manages pool quotas and the credit counter.
	PoolAdminAccount = "pool.mena"
	// ManagerAccount signs forced transfers between system accounts.
	ManagerAccount = "mgr.mena"
	// TokenAdminAccount controls account freezing.
	TokenAdminAccount = "tokadm.mena"
	// TokenLockerAccount maintains vesting rules and the restricted
	// sender list.
	TokenLockerAccount = "locker.mena"
	// CreditAccount receives purchase payments and funds sales.
	CreditAccount = "credit.mena"
	// ForfeitAccount collects forfeited collateral.
	ForfeitAccount = "forfeit.mena"
)

// CoreSymbol is the token symbol capacity trades settle in.
const CoreSymbol = "MTA"

// SystemParameters is the process-wide configuration singleton. It is
// created once by the initialization action and mutated only through the
// Store's setters.
type SystemParameters struct {
	Admin          string `json:"admin"`
	CreditPrice    uint64 `json:"credit_price"`
	TokenPrice     uint64 `json:"token_price"`
	CollateralRate uint64 `json:"collateral_rate"`
	DedupRatio     uint64 `json:"dedup_ratio"`
	DedupDistRatio uint64 `json:"dedup_dist_ratio"`
	CreditCounter  int64  `json:"credit_counter"`
	UserCount      uint64 `json:"user_count"`
	MinerCount     uint64 `json:"miner_count"`
}

// Defaults returns the parameter values the system boots with before any
// administrative action has touched them.
func Defaults() SystemParameters {
	return SystemParameters{
		Admin:          AdminAccount,
		CreditPrice:    5760,
		TokenPrice:     8000,
		CollateralRate: 400,
		DedupRatio:     10000,
		DedupDistRatio: 10000,
		CreditCounter:  MaxTradeAmount,
	}
}

// Store owns the singleton. All access goes through it so the
// initialized/uninitialized lifecycle stays explicit.
type Store struct {
	p       SystemParameters
	ready   bool
	touched bool
}

// NewStore returns an uninitialized store.
func NewStore() *Store {
	return &Store{}
}

// Init creates the singleton. It fails if called twice.
func (s *Store) Init(p SystemParameters) error {
	if s.ready {
		return errs.Conflictf("system parameters already initialized")
	}
	if p.CreditPrice == 0 || p.TokenPrice == 0 {
		return errs.Invalidf("prices must be positive")
	}
	if p.CollateralRate == 0 {
		return errs.Invalidf("collateral rate must be positive")
	}
	if p.DedupRatio == 0 || p.DedupDistRatio == 0 {
		return errs.Invalidf("deduplication ratios must be positive")
	}
	s.p = p
	s.ready = true
	s.touched = true
	return nil
}

// Initialized reports whether Init has run.
func (s *Store) Initialized() bool {
	return s.ready
}

// Get returns a copy of the singleton.
func (s *Store) Get() (SystemParameters, error) {
	if !s.ready {
		return SystemParameters{}, errs.Conflictf("system parameters not initialized")
	}
	return s.p, nil
}

// Put replaces the singleton with a proposed next value. Callers obtain
// the current value with Get, mutate the copy and commit it here.
func (s *Store) Put(p SystemParameters) error {
	if !s.ready {
		return errs.Conflictf("system parameters not initialized")
	}
	s.p = p
	s.touched = true
	return nil
}

// TakeTouched reports whether the singleton changed since the previous
// call and resets the flag. The engine uses it to decide whether a delta
// needs to carry the parameters.
func (s *Store) TakeTouched() (SystemParameters, bool) {
	if !s.touched {
		return SystemParameters{}, false
	}
	s.touched = false
	return s.p, true
}

// SetCreditPrice assigns the capacity-unit price.
func (s *Store) SetCreditPrice(price uint64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	if price == 0 {
		return errs.Invalidf("credit price must be positive")
	}
	if p.CreditPrice == price {
		return errs.Conflictf("credit price unchanged")
	}
	p.CreditPrice = price
	return s.Put(p)
}

// SetTokenPrice assigns the token price.
func (s *Store) SetTokenPrice(price uint64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	if price == 0 {
		return errs.Invalidf("token price must be positive")
	}
	if p.TokenPrice == price {
		return errs.Conflictf("token price unchanged")
	}
	p.TokenPrice = price
	return s.Put(p)
}

// SetCollateralRate assigns the deposit rate used by collateral checks.
func (s *Store) SetCollateralRate(rate uint64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	if rate == 0 {
		return errs.Invalidf("collateral rate must be positive")
	}
	if p.CollateralRate == rate {
		return errs.Conflictf("collateral rate unchanged")
	}
	p.CollateralRate = rate
	return s.Put(p)
}

// SetDedupRatio assigns the deduplication ratio applied to sales.
func (s *Store) SetDedupRatio(ratio uint64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	if ratio == 0 || ratio > 10000 {
		return errs.Invalidf("deduplication ratio out of range")
	}
	if p.DedupRatio == ratio {
		return errs.Conflictf("deduplication ratio unchanged")
	}
	p.DedupRatio = ratio
	return s.Put(p)
}

// SetDedupDistRatio assigns the deduplication distribution ratio.
func (s *Store) SetDedupDistRatio(ratio uint64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	if ratio < 10000 {
		return errs.Invalidf("deduplication distribution ratio out of range")
	}
	if p.DedupDistRatio == ratio {
		return errs.Conflictf("deduplication distribution ratio unchanged")
	}
	p.DedupDistRatio = ratio
	return s.Put(p)
}

// AddCreditCounter adjusts the outstanding-capacity counter by a signed
// delta. Purchases later debit this counter and must not overdraw it.
func (s *Store) AddCreditCounter(delta int64) error {
	p, err := s.Get()
	if err != nil {
		return err
	}
	p.CreditCounter += delta
	return s.Put(p)
}

// Snapshot returns the singleton for persistence, with a flag telling
// whether it has been initialized.
func (s *Store) Snapshot() (SystemParameters, bool) {
	return s.p, s.ready
}

// Restore loads a previously persisted singleton.
func (s *Store) Restore(p SystemParameters, ready bool) {
	s.p = p
	s.ready = ready
}
