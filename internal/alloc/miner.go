// Package alloc maintains the capacity-allocation graph: miners, the
// storage pools they join, and the quota bookkeeping between them.
//
// Like the ledgers, the registries hand out copies and commit proposed
// values with Put, so a rejected action never leaves the graph half
// updated.
package alloc

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/fixed"
	"github.com/yottachain/mena/internal/params"
)

// Miner is one registered capacity unit. Owner and Pool are absent until
// the miner is assigned; a nil pointer means "no link", never an empty
// sentinel value.
type Miner struct {
	ID        uint64  `json:"id"`
	Admin     string  `json:"admin"`
	Depositor string  `json:"depositor"`
	Owner     *string `json:"owner,omitempty"`
	Pool      *string `json:"pool,omitempty"`

	// Deposit is the collateral currently backing this miner; it starts
	// equal to DepositTotal and only forfeiture can pull it below.
	Deposit      int64 `json:"deposit"`
	DepositTotal int64 `json:"deposit_total"`

	MaxSpace  uint64 `json:"max_space"`
	ProdSpace uint64 `json:"prod_space"`

	// CycleProfit is the per-cycle rate CumulativeProfit accrues at; it
	// is zero while the miner is deactivated.
	CycleProfit      int64  `json:"cycle_profit"`
	CumulativeProfit int64  `json:"cumulative_profit"`
	ProfitSettledAt  uint64 `json:"profit_settled_at"`
}

// Assigned reports whether the miner is attached to a pool.
func (m *Miner) Assigned() bool {
	return m.Pool != nil
}

// Active reports whether the miner is currently accruing profit.
func (m *Miner) Active() bool {
	return m.CycleProfit > 0
}

// OwnerName returns the owner identity and whether one is set.
func (m *Miner) OwnerName() (string, bool) {
	if m.Owner == nil {
		return "", false
	}
	return *m.Owner, true
}

// PoolID returns the pool identity and whether one is set.
func (m *Miner) PoolID() (string, bool) {
	if m.Pool == nil {
		return "", false
	}
	return *m.Pool, true
}

// SettleProfit advances the miner's cumulative profit to now at the
// current cycle rate.
func (m *Miner) SettleProfit(now uint64) error {
	nb, err := fixed.Settle(m.CumulativeProfit, 0, m.CycleProfit, m.ProfitSettledAt, now)
	if err != nil {
		return err
	}
	m.CumulativeProfit = nb
	m.ProfitSettledAt = now
	return nil
}

// AddProdSpace settles, then grows produced space and re-derives the
// cycle profit rate from the new total.
func (m *Miner) AddProdSpace(space uint64, now uint64) error {
	if m.ProdSpace+space > m.MaxSpace {
		return errs.Insufficientf("produced space %d+%d exceeds declared capacity %d",
			m.ProdSpace, space, m.MaxSpace)
	}
	if err := m.SettleProfit(now); err != nil {
		return err
	}
	m.ProdSpace += space
	m.CycleProfit = fixed.CycleProfitRate(m.ProdSpace)
	return nil
}

// Deactivate settles accrued profit and stops further accrual. The
// produced space stays recorded so a later activation can resume at the
// same rate.
func (m *Miner) Deactivate(now uint64) error {
	if !m.Active() || m.ProdSpace == 0 {
		return errs.Conflictf("miner %d is not active", m.ID)
	}
	if err := m.SettleProfit(now); err != nil {
		return err
	}
	m.CycleProfit = 0
	return nil
}

// Activate restarts profit accrual from now at the rate implied by the
// recorded produced space.
func (m *Miner) Activate(now uint64) error {
	if m.Active() {
		return errs.Conflictf("miner %d is already active", m.ID)
	}
	if m.ProdSpace == 0 {
		return errs.Conflictf("miner %d has no produced space", m.ID)
	}
	m.CycleProfit = fixed.CycleProfitRate(m.ProdSpace)
	m.ProfitSettledAt = now
	return nil
}

// ValidateSpace checks a proposed declared capacity against the global
// miner bounds.
func ValidateSpace(space uint64) error {
	if space > params.MaxMinerSpace {
		return errs.Invalidf("miner space %d above maximum", space)
	}
	if space < params.MinMinerSpace {
		return errs.Invalidf("miner space %d below minimum", space)
	}
	return nil
}

// MinerRegistry is the keyed table of miners.
type MinerRegistry struct {
	miners  map[uint64]Miner
	touched map[uint64]struct{}
	removed map[uint64]struct{}
}

// NewMinerRegistry returns an empty registry.
func NewMinerRegistry() *MinerRegistry {
	return &MinerRegistry{
		miners:  make(map[uint64]Miner),
		touched: make(map[uint64]struct{}),
		removed: make(map[uint64]struct{}),
	}
}

// Has reports whether a miner id is registered.
func (r *MinerRegistry) Has(id uint64) bool {
	_, ok := r.miners[id]
	return ok
}

// Get returns a copy of the miner record.
func (r *MinerRegistry) Get(id uint64) (Miner, error) {
	m, ok := r.miners[id]
	if !ok {
		return Miner{}, errs.NotFoundf("miner %d", id)
	}
	return m, nil
}

// Register creates a fresh miner with no owner, pool or capacity.
func (r *MinerRegistry) Register(id uint64, admin, depositor string, now uint64) (Miner, error) {
	if _, ok := r.miners[id]; ok {
		return Miner{}, errs.AlreadyExistsf("miner %d", id)
	}
	m := Miner{
		ID:              id,
		Admin:           admin,
		Depositor:       depositor,
		ProfitSettledAt: now,
	}
	r.miners[id] = m
	r.touched[id] = struct{}{}
	return m, nil
}

// Put commits a proposed miner value.
func (r *MinerRegistry) Put(m Miner) {
	r.miners[m.ID] = m
	r.touched[m.ID] = struct{}{}
}

// Delete removes the miner record.
func (r *MinerRegistry) Delete(id uint64) error {
	if _, ok := r.miners[id]; !ok {
		return errs.NotFoundf("miner %d", id)
	}
	delete(r.miners, id)
	delete(r.touched, id)
	r.removed[id] = struct{}{}
	return nil
}

// Count returns the number of registered miners.
func (r *MinerRegistry) Count() int {
	return len(r.miners)
}

// IDs returns all miner ids in ascending order.
func (r *MinerRegistry) IDs() []uint64 {
	ids := make([]uint64, 0, len(r.miners))
	for id := range r.miners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PoolProdSpace sums MaxSpace over the members of a pool. Used by the
// consistency checker to validate pool quota bookkeeping.
func (r *MinerRegistry) PoolProdSpace(poolID string) uint64 {
	var sum uint64
	for _, m := range r.miners {
		if m.Pool != nil && *m.Pool == poolID {
			sum += m.MaxSpace
		}
	}
	return sum
}

// UsedDepositOf sums the collateral snapshots currently backed by one
// depositor across all miners. It must equal the depositor's used
// deposit at every commit point.
func (r *MinerRegistry) UsedDepositOf(depositor string) int64 {
	var sum int64
	for _, m := range r.miners {
		if m.Depositor == depositor {
			sum += m.Deposit
		}
	}
	return sum
}

// OwnerContribution sums produced space and cycle profit over the
// active miners owned by one identity. It must mirror the owner's
// ledger aggregates at every commit point.
func (r *MinerRegistry) OwnerContribution(owner string) (uint64, int64) {
	var space uint64
	var rate int64
	for _, m := range r.miners {
		if m.Owner != nil && *m.Owner == owner && m.Active() {
			space += m.ProdSpace
			rate += m.CycleProfit
		}
	}
	return space, rate
}

// TakeTouched returns the miners written since the last call plus the
// ids deleted, and resets both sets.
func (r *MinerRegistry) TakeTouched() ([]Miner, []uint64) {
	var out []Miner
	var gone []uint64
	for id := range r.touched {
		out = append(out, r.miners[id])
	}
	for id := range r.removed {
		gone = append(gone, id)
	}
	r.touched = make(map[uint64]struct{})
	r.removed = make(map[uint64]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	return out, gone
}

// Snapshot returns every miner, sorted by id, for persistence.
func (r *MinerRegistry) Snapshot() []Miner {
	out := make([]Miner, 0, len(r.miners))
	for _, id := range r.IDs() {
		out = append(out, r.miners[id])
	}
	return out
}

// Restore replaces the registry contents with a persisted snapshot.
func (r *MinerRegistry) Restore(miners []Miner) {
	r.miners = make(map[uint64]Miner, len(miners))
	r.touched = make(map[uint64]struct{})
	r.removed = make(map[uint64]struct{})
	for _, m := range miners {
		r.miners[m.ID] = m
	}
}
