package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yottachain/mena/internal/action"
)

// rawEnvelope is the wire shape every inbound message shares: a kind
// discriminator plus the action body. Field names use snake_case to
// match upstream producers.
type rawEnvelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// ParseRawAction converts a RawAction (JSON bytes off NATS) into a
// typed action. The ingestion shell validates and converts before
// anything reaches the deterministic core.
func ParseRawAction(raw RawAction) (action.Action, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	act := newAction(env.Kind)
	if act == nil {
		return nil, fmt.Errorf("unknown action kind: %s", env.Kind)
	}
	if err := json.Unmarshal(env.Body, act); err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.Kind, err)
	}
	if err := validateHeader(act); err != nil {
		return nil, fmt.Errorf("%s: %w", env.Kind, err)
	}
	return act, nil
}

// ParseStoredAction converts an action-log row (kind string plus the
// stored action JSON) back into a typed action for replay.
func ParseStoredAction(kind string, payload []byte) (action.Action, error) {
	act := newAction(kind)
	if act == nil {
		return nil, fmt.Errorf("unknown action kind: %s", kind)
	}
	if err := json.Unmarshal(payload, act); err != nil {
		return nil, fmt.Errorf("parse stored %s: %w", kind, err)
	}
	return act, nil
}

// newAction returns an empty payload for the given kind string, or nil
// when the kind is not recognized.
func newAction(kind string) action.Action {
	switch kind {
	case "InitSystem":
		return &action.InitSystem{}
	case "SetCreditPrice":
		return &action.SetCreditPrice{}
	case "SetTokenPrice":
		return &action.SetTokenPrice{}
	case "SetCollateralRate":
		return &action.SetCollateralRate{}
	case "SetDedupRatio":
		return &action.SetDedupRatio{}
	case "SetDedupDistRatio":
		return &action.SetDedupDistRatio{}
	case "AddCreditCounter":
		return &action.AddCreditCounter{}
	case "BuyCredits":
		return &action.BuyCredits{}
	case "SellCredits":
		return &action.SellCredits{}
	case "SetRentFee":
		return &action.SetRentFee{}
	case "DebitRent":
		return &action.DebitRent{}
	case "AddUsedSpace":
		return &action.AddUsedSpace{}
	case "SubUsedSpace":
		return &action.SubUsedSpace{}
	case "SettleRent":
		return &action.SettleRent{}
	case "SettleProfit":
		return &action.SettleProfit{}
	case "PledgeDeposit":
		return &action.PledgeDeposit{}
	case "WithdrawDeposit":
		return &action.WithdrawDeposit{}
	case "RegisterMiner":
		return &action.RegisterMiner{}
	case "RemoveMiner":
		return &action.RemoveMiner{}
	case "AssignToPool":
		return &action.AssignToPool{}
	case "ReassignPool":
		return &action.ReassignPool{}
	case "AddMinerSpace":
		return &action.AddMinerSpace{}
	case "SettleMinerProfit":
		return &action.SettleMinerProfit{}
	case "DeactivateMiner":
		return &action.DeactivateMiner{}
	case "ActivateMiner":
		return &action.ActivateMiner{}
	case "ChangeMinerAdmin":
		return &action.ChangeMinerAdmin{}
	case "ChangeMinerOwner":
		return &action.ChangeMinerOwner{}
	case "ChangeMinerDepositor":
		return &action.ChangeMinerDepositor{}
	case "ChangeMinerSpace":
		return &action.ChangeMinerSpace{}
	case "ChangeMinerDeposit":
		return &action.ChangeMinerDeposit{}
	case "PayForfeit":
		return &action.PayForfeit{}
	case "RegisterPool":
		return &action.RegisterPool{}
	case "RemovePool":
		return &action.RemovePool{}
	case "ChangePoolQuota":
		return &action.ChangePoolQuota{}
	case "CreateToken":
		return &action.CreateToken{}
	case "IssueToken":
		return &action.IssueToken{}
	case "TransferToken":
		return &action.TransferToken{}
	case "SysTransferToken":
		return &action.SysTransferToken{}
	case "SetExchangeTime":
		return &action.SetExchangeTime{}
	case "FreezeAccount":
		return &action.FreezeAccount{}
	case "UnfreezeAccount":
		return &action.UnfreezeAccount{}
	case "AddRestricted":
		return &action.AddRestricted{}
	case "RemoveRestricted":
		return &action.RemoveRestricted{}
	case "AddLockRule":
		return &action.AddLockRule{}
	case "LockTransfer":
		return &action.LockTransfer{}
	default:
		return nil
	}
}

// validateHeader rejects messages the core could never apply: a missing
// caller, a malformed idempotency key, a zero timestamp or a
// non-positive upstream sequence. Upstream assigns UUID idempotency
// keys.
func validateHeader(act action.Action) error {
	if act.ActorName() == "" {
		return fmt.Errorf("missing caller")
	}
	if _, err := uuid.Parse(act.IdempotencyKey()); err != nil {
		return fmt.Errorf("parse nonce: %w", err)
	}
	if act.Time() == 0 {
		return fmt.Errorf("missing timestamp")
	}
	if act.SourceSequence() <= 0 {
		return fmt.Errorf("sequence must be positive, got %d", act.SourceSequence())
	}
	return nil
}
