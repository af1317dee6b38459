package action

// RegisterPool creates a storage pool owned by the caller, charging the
// fixed registration fee.
type RegisterPool struct {
	Header
	PoolID string `json:"pool_id"`
}

func (a *RegisterPool) Kind() Kind { return KindRegisterPool }

// RemovePool deletes an empty storage pool.
type RemovePool struct {
	Header
	PoolID string `json:"pool_id"`
}

func (a *RemovePool) Kind() Kind { return KindRemovePool }

// ChangePoolQuota grows or shrinks a pool's capacity quota.
type ChangePoolQuota struct {
	Header
	PoolID   string `json:"pool_id"`
	Increase bool   `json:"increase"`
	Delta    uint64 `json:"delta"`
}

func (a *ChangePoolQuota) Kind() Kind { return KindChangePoolQuota }
