package action

// InitSystem creates the parameter singleton with its default values.
// Only the engine's own identity may submit it, and only once.
type InitSystem struct {
	Header
}

func (a *InitSystem) Kind() Kind { return KindInitSystem }

// SetCreditPrice assigns the capacity-unit price.
type SetCreditPrice struct {
	Header
	Price uint64 `json:"price"`
}

func (a *SetCreditPrice) Kind() Kind { return KindSetCreditPrice }

// SetTokenPrice assigns the token price.
type SetTokenPrice struct {
	Header
	Price uint64 `json:"price"`
}

func (a *SetTokenPrice) Kind() Kind { return KindSetTokenPrice }

// SetCollateralRate assigns the deposit rate backing declared capacity.
type SetCollateralRate struct {
	Header
	Rate uint64 `json:"rate"`
}

func (a *SetCollateralRate) Kind() Kind { return KindSetCollateralRate }

// SetDedupRatio assigns the deduplication ratio applied to sales.
type SetDedupRatio struct {
	Header
	Ratio uint64 `json:"ratio"`
}

func (a *SetDedupRatio) Kind() Kind { return KindSetDedupRatio }

// SetDedupDistRatio assigns the deduplication distribution ratio.
type SetDedupDistRatio struct {
	Header
	Ratio uint64 `json:"ratio"`
}

func (a *SetDedupDistRatio) Kind() Kind { return KindSetDedupDistRatio }

// AddCreditCounter adjusts the outstanding-capacity counter by a signed
// delta.
type AddCreditCounter struct {
	Header
	Delta int64 `json:"delta"`
}

func (a *AddCreditCounter) Kind() Kind { return KindAddCreditCounter }
