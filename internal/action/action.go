// Package action defines the externally submitted commands the engine
// applies, one at a time, to the accounting state.
package action

// Kind discriminates action payloads.
type Kind int32

const (
	KindUnknown Kind = iota

	// System parameters.
	KindInitSystem
	KindSetCreditPrice
	KindSetTokenPrice
	KindSetCollateralRate
	KindSetDedupRatio
	KindSetDedupDistRatio
	KindAddCreditCounter

	// User ledger.
	KindBuyCredits
	KindSellCredits
	KindSetRentFee
	KindDebitRent
	KindAddUsedSpace
	KindSubUsedSpace
	KindSettleRent
	KindSettleProfit

	// Deposit ledger.
	KindPledgeDeposit
	KindWithdrawDeposit

	// Miners.
	KindRegisterMiner
	KindRemoveMiner
	KindAssignToPool
	KindReassignPool
	KindAddMinerSpace
	KindSettleMinerProfit
	KindDeactivateMiner
	KindActivateMiner
	KindChangeMinerAdmin
	KindChangeMinerOwner
	KindChangeMinerDepositor
	KindChangeMinerSpace
	KindChangeMinerDeposit
	KindPayForfeit

	// Pools.
	KindRegisterPool
	KindRemovePool
	KindChangePoolQuota

	// Token.
	KindCreateToken
	KindIssueToken
	KindTransferToken
	KindSysTransferToken
	KindSetExchangeTime
	KindFreezeAccount
	KindUnfreezeAccount
	KindAddRestricted
	KindRemoveRestricted
	KindAddLockRule
	KindLockTransfer
)

// Action is the interface every payload implements.
type Action interface {
	// Kind returns the discriminator.
	Kind() Kind

	// ActorName returns the authenticated caller identity.
	ActorName() string

	// Time returns the versioned action timestamp in epoch
	// milliseconds. Every settlement inside the action uses this value;
	// the engine never reads a wall clock.
	Time() uint64

	// IdempotencyKey returns the stable dedup key assigned upstream.
	IdempotencyKey() string

	// SourceSequence returns the upstream ordering key.
	SourceSequence() int64
}

// Header carries the fields common to every action. Payload structs
// embed it.
type Header struct {
	// Caller is the authenticated identity submitting the action.
	Caller string `json:"caller"`

	// Now is the versioned timestamp, epoch milliseconds.
	Now uint64 `json:"now"`

	// Nonce is the stable idempotency key from upstream.
	Nonce string `json:"nonce"`

	// Seq is the upstream sequence number.
	Seq int64 `json:"seq"`
}

func (h *Header) ActorName() string      { return h.Caller }
func (h *Header) Time() uint64           { return h.Now }
func (h *Header) IdempotencyKey() string { return h.Nonce }
func (h *Header) SourceSequence() int64  { return h.Seq }

// Envelope wraps every applied action in the durable log.
type Envelope struct {
	// Sequence is the global monotonic sequence assigned by the engine.
	Sequence int64

	// Kind discriminates the payload.
	Kind Kind

	// Caller, Timestamp and IdempotencyKey are copied from the action.
	Caller         string
	Timestamp      uint64
	IdempotencyKey string

	// SourceSequence is the upstream ordering key.
	SourceSequence int64

	// Payload is the JSON-encoded action.
	Payload []byte

	// StateHash is the hash chain value after applying this action;
	// PrevHash is the previous envelope's StateHash.
	StateHash [32]byte
	PrevHash  [32]byte
}

func (k Kind) String() string {
	switch k {
	case KindInitSystem:
		return "InitSystem"
	case KindSetCreditPrice:
		return "SetCreditPrice"
	case KindSetTokenPrice:
		return "SetTokenPrice"
	case KindSetCollateralRate:
		return "SetCollateralRate"
	case KindSetDedupRatio:
		return "SetDedupRatio"
	case KindSetDedupDistRatio:
		return "SetDedupDistRatio"
	case KindAddCreditCounter:
		return "AddCreditCounter"
	case KindBuyCredits:
		return "BuyCredits"
	case KindSellCredits:
		return "SellCredits"
	case KindSetRentFee:
		return "SetRentFee"
	case KindDebitRent:
		return "DebitRent"
	case KindAddUsedSpace:
		return "AddUsedSpace"
	case KindSubUsedSpace:
		return "SubUsedSpace"
	case KindSettleRent:
		return "SettleRent"
	case KindSettleProfit:
		return "SettleProfit"
	case KindPledgeDeposit:
		return "PledgeDeposit"
	case KindWithdrawDeposit:
		return "WithdrawDeposit"
	case KindRegisterMiner:
		return "RegisterMiner"
	case KindRemoveMiner:
		return "RemoveMiner"
	case KindAssignToPool:
		return "AssignToPool"
	case KindReassignPool:
		return "ReassignPool"
	case KindAddMinerSpace:
		return "AddMinerSpace"
	case KindSettleMinerProfit:
		return "SettleMinerProfit"
	case KindDeactivateMiner:
		return "DeactivateMiner"
	case KindActivateMiner:
		return "ActivateMiner"
	case KindChangeMinerAdmin:
		return "ChangeMinerAdmin"
	case KindChangeMinerOwner:
		return "ChangeMinerOwner"
	case KindChangeMinerDepositor:
		return "ChangeMinerDepositor"
	case KindChangeMinerSpace:
		return "ChangeMinerSpace"
	case KindChangeMinerDeposit:
		return "ChangeMinerDeposit"
	case KindPayForfeit:
		return "PayForfeit"
	case KindRegisterPool:
		return "RegisterPool"
	case KindRemovePool:
		return "RemovePool"
	case KindChangePoolQuota:
		return "ChangePoolQuota"
	case KindCreateToken:
		return "CreateToken"
	case KindIssueToken:
		return "IssueToken"
	case KindTransferToken:
		return "TransferToken"
	case KindSysTransferToken:
		return "SysTransferToken"
	case KindSetExchangeTime:
		return "SetExchangeTime"
	case KindFreezeAccount:
		return "FreezeAccount"
	case KindUnfreezeAccount:
		return "UnfreezeAccount"
	case KindAddRestricted:
		return "AddRestricted"
	case KindRemoveRestricted:
		return "RemoveRestricted"
	case KindAddLockRule:
		return "AddLockRule"
	case KindLockTransfer:
		return "LockTransfer"
	default:
		return "Unknown"
	}
}
