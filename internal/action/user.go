package action

// BuyCredits purchases storage credits for Receiver, paid from the
// caller's token balance. The receiver's account is opened on first
// purchase.
type BuyCredits struct {
	Header
	Receiver string `json:"receiver"`
	Amount   int64  `json:"amount"`
	Memo     string `json:"memo"`
}

func (a *BuyCredits) Kind() Kind { return KindBuyCredits }

// SellCredits converts the caller's earned mining credits back into
// tokens at the deduplication-discounted rate.
type SellCredits struct {
	Header
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

func (a *SellCredits) Kind() Kind { return KindSellCredits }

// SetRentFee assigns a user's per-cycle storage fee, settling the rent
// balance at the old rate first.
type SetRentFee struct {
	Header
	User string `json:"user"`
	Fee  int64  `json:"fee"`
}

func (a *SetRentFee) Kind() Kind { return KindSetRentFee }

// DebitRent charges an up-front amount against a user's rent balance.
type DebitRent struct {
	Header
	User   string `json:"user"`
	Amount int64  `json:"amount"`
}

func (a *DebitRent) Kind() Kind { return KindDebitRent }

// AddUsedSpace grows a user's occupied-space counter.
type AddUsedSpace struct {
	Header
	User  string `json:"user"`
	Space uint64 `json:"space"`
}

func (a *AddUsedSpace) Kind() Kind { return KindAddUsedSpace }

// SubUsedSpace shrinks a user's occupied-space counter.
type SubUsedSpace struct {
	Header
	User  string `json:"user"`
	Space uint64 `json:"space"`
}

func (a *SubUsedSpace) Kind() Kind { return KindSubUsedSpace }

// SettleRent settles a user's rent balance to now without changing it
// otherwise.
type SettleRent struct {
	Header
	User string `json:"user"`
}

func (a *SettleRent) Kind() Kind { return KindSettleRent }

// SettleProfit settles a user's profit balance to now without changing
// it otherwise.
type SettleProfit struct {
	Header
	User string `json:"user"`
}

func (a *SettleProfit) Kind() Kind { return KindSettleProfit }

// PledgeDeposit adds collateral from the caller's token balance to
// their deposit record.
type PledgeDeposit struct {
	Header
	Amount int64 `json:"amount"`
}

func (a *PledgeDeposit) Kind() Kind { return KindPledgeDeposit }

// WithdrawDeposit returns uncommitted collateral to the caller.
type WithdrawDeposit struct {
	Header
	Amount int64 `json:"amount"`
}

func (a *WithdrawDeposit) Kind() Kind { return KindWithdrawDeposit }
