package action

// CreateToken registers a new symbol with its issuer and supply cap.
type CreateToken struct {
	Header
	Issuer    string `json:"issuer"`
	Symbol    string `json:"symbol"`
	MaxSupply int64  `json:"max_supply"`
}

func (a *CreateToken) Kind() Kind { return KindCreateToken }

// IssueToken mints quantity to an account; only the symbol's issuer may
// submit it.
type IssueToken struct {
	Header
	To       string `json:"to"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Memo     string `json:"memo"`
}

func (a *IssueToken) Kind() Kind { return KindIssueToken }

// TransferToken moves quantity between accounts under the full debit
// gates.
type TransferToken struct {
	Header
	From     string `json:"from"`
	To       string `json:"to"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Memo     string `json:"memo"`
}

func (a *TransferToken) Kind() Kind { return KindTransferToken }

// SysTransferToken is a manager-signed transfer between arbitrary
// accounts; transfers into the forfeiture account bypass the debit
// gates.
type SysTransferToken struct {
	Header
	From     string `json:"from"`
	To       string `json:"to"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Memo     string `json:"memo"`
}

func (a *SysTransferToken) Kind() Kind { return KindSysTransferToken }

// SetExchangeTime anchors relative vesting schedules for a symbol; only
// the issuer may set it, exactly once.
type SetExchangeTime struct {
	Header
	Symbol string `json:"symbol"`
	At     uint64 `json:"at"`
}

func (a *SetExchangeTime) Kind() Kind { return KindSetExchangeTime }

// FreezeAccount suspends an account's spending until a deadline.
type FreezeAccount struct {
	Header
	Account string `json:"account"`
	Until   uint64 `json:"until"`
}

func (a *FreezeAccount) Kind() Kind { return KindFreezeAccount }

// UnfreezeAccount lifts a freeze early.
type UnfreezeAccount struct {
	Header
	Account string `json:"account"`
}

func (a *UnfreezeAccount) Kind() Kind { return KindUnfreezeAccount }

// AddRestricted places a sender on the restricted list whose transfers
// may carry vesting locks.
type AddRestricted struct {
	Header
	Account string `json:"account"`
	Memo    string `json:"memo"`
}

func (a *AddRestricted) Kind() Kind { return KindAddRestricted }

// RemoveRestricted takes a sender off the restricted list.
type RemoveRestricted struct {
	Header
	Account string `json:"account"`
}

func (a *RemoveRestricted) Kind() Kind { return KindRemoveRestricted }

// AddLockRule registers a vesting schedule.
type AddLockRule struct {
	Header
	RuleID   uint64   `json:"rule_id"`
	Times    []uint64 `json:"times"`
	Percents []uint8  `json:"percents"`
	Base     uint8    `json:"base"`
	Absolute bool     `json:"absolute"`
	Memo     string   `json:"memo"`
}

func (a *AddLockRule) Kind() Kind { return KindAddLockRule }

// LockTransfer transfers quantity and attaches a vesting lock to the
// received amount.
type LockTransfer struct {
	Header
	RuleID   uint64 `json:"rule_id"`
	To       string `json:"to"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Memo     string `json:"memo"`
}

func (a *LockTransfer) Kind() Kind { return KindLockTransfer }
