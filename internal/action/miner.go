package action

// RegisterMiner creates a miner record and commits its initial deposit
// from the caller, who becomes the depositor.
type RegisterMiner struct {
	Header
	MinerID        uint64 `json:"miner_id"`
	Admin          string `json:"admin"`
	InitialDeposit int64  `json:"initial_deposit"`
}

func (a *RegisterMiner) Kind() Kind { return KindRegisterMiner }

// RemoveMiner deletes a miner, unwinding its deposit commitment, owner
// accrual and pool quota.
type RemoveMiner struct {
	Header
	MinerID uint64 `json:"miner_id"`
}

func (a *RemoveMiner) Kind() Kind { return KindRemoveMiner }

// AssignToPool attaches an unassigned miner to a pool with a declared
// capacity and profit owner.
type AssignToPool struct {
	Header
	MinerID  uint64 `json:"miner_id"`
	PoolID   string `json:"pool_id"`
	Owner    string `json:"owner"`
	MaxSpace uint64 `json:"max_space"`
	// PoolOwnerAuth is the pool owner's co-signature; assignment needs
	// both the miner admin and the pool owner.
	PoolOwnerAuth string `json:"pool_owner_auth"`
}

func (a *AssignToPool) Kind() Kind { return KindAssignToPool }

// ReassignPool moves an assigned miner to a different pool in two
// phases: detach from the old pool, then a full assignment to the new
// one with the miner's existing owner and capacity.
type ReassignPool struct {
	Header
	MinerID   uint64 `json:"miner_id"`
	NewPoolID string `json:"new_pool_id"`
	// PoolOwnerAuth is the destination pool owner's co-signature.
	PoolOwnerAuth string `json:"pool_owner_auth"`
}

func (a *ReassignPool) Kind() Kind { return KindReassignPool }

// AddMinerSpace records newly produced space on a miner and adds the
// matching contribution to its owner's profit accrual.
type AddMinerSpace struct {
	Header
	MinerID uint64 `json:"miner_id"`
	Owner   string `json:"owner"`
	Space   uint64 `json:"space"`
}

func (a *AddMinerSpace) Kind() Kind { return KindAddMinerSpace }

// SettleMinerProfit settles a miner's cumulative profit to now.
type SettleMinerProfit struct {
	Header
	MinerID uint64 `json:"miner_id"`
}

func (a *SettleMinerProfit) Kind() Kind { return KindSettleMinerProfit }

// DeactivateMiner stops a miner's profit accrual, settling first and
// removing its contribution from the owner.
type DeactivateMiner struct {
	Header
	MinerID uint64 `json:"miner_id"`
}

func (a *DeactivateMiner) Kind() Kind { return KindDeactivateMiner }

// ActivateMiner resumes profit accrual for a deactivated miner with
// recorded produced space.
type ActivateMiner struct {
	Header
	MinerID uint64 `json:"miner_id"`
}

func (a *ActivateMiner) Kind() Kind { return KindActivateMiner }

// ChangeMinerAdmin hands a miner's configuration authority to a new
// identity.
type ChangeMinerAdmin struct {
	Header
	MinerID  uint64 `json:"miner_id"`
	NewAdmin string `json:"new_admin"`
}

func (a *ChangeMinerAdmin) Kind() Kind { return KindChangeMinerAdmin }

// ChangeMinerOwner moves a miner's profit contribution from the old
// owner to a new one, settling both.
type ChangeMinerOwner struct {
	Header
	MinerID  uint64 `json:"miner_id"`
	NewOwner string `json:"new_owner"`
	// PoolOwnerAuth is the pool owner's co-signature.
	PoolOwnerAuth string `json:"pool_owner_auth"`
}

func (a *ChangeMinerOwner) Kind() Kind { return KindChangeMinerOwner }

// ChangeMinerDepositor re-backs a miner with a different depositor's
// collateral, restoring the full pre-forfeit commitment.
type ChangeMinerDepositor struct {
	Header
	MinerID      uint64 `json:"miner_id"`
	NewDepositor string `json:"new_depositor"`
}

func (a *ChangeMinerDepositor) Kind() Kind { return KindChangeMinerDepositor }

// ChangeMinerSpace re-declares an assigned miner's capacity, adjusting
// the pool quota and re-checking collateral on increase.
type ChangeMinerSpace struct {
	Header
	MinerID  uint64 `json:"miner_id"`
	MaxSpace uint64 `json:"max_space"`
	// PoolOwnerAuth is the pool owner's co-signature.
	PoolOwnerAuth string `json:"pool_owner_auth"`
}

func (a *ChangeMinerSpace) Kind() Kind { return KindChangeMinerSpace }

// ChangeMinerDeposit grows or shrinks a miner's committed collateral.
type ChangeMinerDeposit struct {
	Header
	MinerID  uint64 `json:"miner_id"`
	Increase bool   `json:"increase"`
	Amount   int64  `json:"amount"`
}

func (a *ChangeMinerDeposit) Kind() Kind { return KindChangeMinerDeposit }

// PayForfeit seizes part of a miner's committed collateral and moves it
// to the forfeiture-collection account.
type PayForfeit struct {
	Header
	MinerID uint64 `json:"miner_id"`
	Amount  int64  `json:"amount"`
}

func (a *PayForfeit) Kind() Kind { return KindPayForfeit }
