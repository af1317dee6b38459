package alloc

import (
	"sort"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/params"
)

// Pool is one storage pool. ProdSpace is the sum of MaxSpace over its
// member miners and must never exceed the quota.
type Pool struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	MaxSpace  uint64 `json:"max_space"`
	ProdSpace uint64 `json:"prod_space"`
}

// Headroom returns the unallocated quota.
func (p *Pool) Headroom() uint64 {
	return p.MaxSpace - p.ProdSpace
}

// Allocate takes space out of the pool's headroom.
func (p *Pool) Allocate(space uint64) error {
	if p.Headroom() < space {
		return errs.Insufficientf("pool %q headroom %d below requested %d", p.ID, p.Headroom(), space)
	}
	p.ProdSpace += space
	return nil
}

// ReleaseSpace returns a member's space to the headroom.
func (p *Pool) ReleaseSpace(space uint64) error {
	if p.ProdSpace < space {
		return errs.Invariantf("pool %q allocated %d below released %d", p.ID, p.ProdSpace, space)
	}
	p.ProdSpace -= space
	return nil
}

// Resize applies a signed quota change. Shrinking below the currently
// allocated space is rejected; members must leave or shrink first.
func (p *Pool) Resize(increase bool, delta uint64) error {
	if delta == 0 {
		return errs.Invalidf("quota delta must be positive")
	}
	var next uint64
	if increase {
		next = p.MaxSpace + delta
		if next > params.MaxPoolSpace {
			return errs.Invalidf("pool quota %d above maximum", next)
		}
	} else {
		if p.MaxSpace <= delta {
			return errs.Insufficientf("pool quota %d below reduction %d", p.MaxSpace, delta)
		}
		next = p.MaxSpace - delta
	}
	if p.ProdSpace > next {
		return errs.Conflictf("pool %q has %d allocated, cannot shrink quota to %d", p.ID, p.ProdSpace, next)
	}
	p.MaxSpace = next
	return nil
}

// PoolRegistry is the keyed table of storage pools.
type PoolRegistry struct {
	pools   map[string]Pool
	touched map[string]struct{}
	removed map[string]struct{}
}

// NewPoolRegistry returns an empty registry.
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{
		pools:   make(map[string]Pool),
		touched: make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// Has reports whether a pool id is registered.
func (r *PoolRegistry) Has(id string) bool {
	_, ok := r.pools[id]
	return ok
}

// Get returns a copy of the pool record.
func (r *PoolRegistry) Get(id string) (Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return Pool{}, errs.NotFoundf("pool %q", id)
	}
	return p, nil
}

// Register creates a fresh pool with zero quota.
func (r *PoolRegistry) Register(id, owner string) (Pool, error) {
	if id == "" {
		return Pool{}, errs.Invalidf("pool id must not be empty")
	}
	if _, ok := r.pools[id]; ok {
		return Pool{}, errs.AlreadyExistsf("pool %q", id)
	}
	p := Pool{ID: id, Owner: owner}
	r.pools[id] = p
	r.touched[id] = struct{}{}
	return p, nil
}

// Put commits a proposed pool value.
func (r *PoolRegistry) Put(p Pool) {
	r.pools[p.ID] = p
	r.touched[p.ID] = struct{}{}
}

// Delete removes an empty pool. Pools with allocated space cannot be
// deleted.
func (r *PoolRegistry) Delete(id string) error {
	p, ok := r.pools[id]
	if !ok {
		return errs.NotFoundf("pool %q", id)
	}
	if p.ProdSpace != 0 {
		return errs.Conflictf("pool %q still has %d allocated", id, p.ProdSpace)
	}
	delete(r.pools, id)
	delete(r.touched, id)
	r.removed[id] = struct{}{}
	return nil
}

// Count returns the number of pools.
func (r *PoolRegistry) Count() int {
	return len(r.pools)
}

// IDs returns all pool ids in sorted order.
func (r *PoolRegistry) IDs() []string {
	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TakeTouched returns the pools written since the last call plus the ids
// deleted, and resets both sets.
func (r *PoolRegistry) TakeTouched() ([]Pool, []string) {
	var out []Pool
	var gone []string
	for id := range r.touched {
		out = append(out, r.pools[id])
	}
	for id := range r.removed {
		gone = append(gone, id)
	}
	r.touched = make(map[string]struct{})
	r.removed = make(map[string]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.Strings(gone)
	return out, gone
}

// Snapshot returns every pool, sorted by id, for persistence.
func (r *PoolRegistry) Snapshot() []Pool {
	out := make([]Pool, 0, len(r.pools))
	for _, id := range r.IDs() {
		out = append(out, r.pools[id])
	}
	return out
}

// Restore replaces the registry contents with a persisted snapshot.
func (r *PoolRegistry) Restore(pools []Pool) {
	r.pools = make(map[string]Pool, len(pools))
	r.touched = make(map[string]struct{})
	r.removed = make(map[string]struct{})
	for _, p := range pools {
		r.pools[p.ID] = p
	}
}
