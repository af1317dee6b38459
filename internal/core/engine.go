// Package core contains the single-threaded accounting engine. It owns
// every piece of mutable state and applies externally submitted actions
// one at a time: authorize, settle, check, commit, emit. No goroutine
// other than the engine loop ever touches the state, and the engine
// never reads a wall clock; every settlement uses the timestamp carried
// on the action.
package core

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/alloc"
	"github.com/yottachain/mena/internal/auth"
	"github.com/yottachain/mena/internal/deposit"
	"github.com/yottachain/mena/internal/ledger"
	"github.com/yottachain/mena/internal/observability"
	"github.com/yottachain/mena/internal/params"
	"github.com/yottachain/mena/internal/token"
	"github.com/yottachain/mena/internal/vesting"
)

// Delta lists every record one applied action changed. The slices come
// out of the stores sorted, so marshaling a Delta is deterministic and
// its bytes feed the state hash chain.
type Delta struct {
	Params       *params.SystemParameters `json:"params,omitempty"`
	Accounts     []ledger.Account         `json:"accounts,omitempty"`
	Deposits     []deposit.Record         `json:"deposits,omitempty"`
	Miners       []alloc.Miner            `json:"miners,omitempty"`
	MinerDeletes []uint64                 `json:"miner_deletes,omitempty"`
	Pools        []alloc.Pool             `json:"pools,omitempty"`
	PoolDeletes  []string                 `json:"pool_deletes,omitempty"`
	TokenStats   []token.Stats            `json:"token_stats,omitempty"`
	Balances     []token.Balance          `json:"balances,omitempty"`
	Freezes      []token.Freeze           `json:"freezes,omitempty"`
	Unfreezes    []string                 `json:"unfreezes,omitempty"`
	Restricted   []token.Restricted       `json:"restricted,omitempty"`
	Unrestricted []string                 `json:"unrestricted,omitempty"`
	Rules        []vesting.Rule           `json:"rules,omitempty"`
	Locks        []vesting.Lock           `json:"locks,omitempty"`
}

// Output is one applied action on its way to the persistence and
// projection workers.
type Output struct {
	Envelope *action.Envelope
	Delta    *Delta
}

// Config wires an Engine to its collaborators.
type Config struct {
	StartSequence int64

	// DedupCapacity bounds the idempotency cache. Zero means the
	// default of one million keys.
	DedupCapacity int

	// ConsistencyInterval is how many applied actions pass between full
	// cross-store consistency sweeps. Zero means every 1000 actions.
	ConsistencyInterval int64

	Auth    auth.Authorizer
	Metrics *observability.Metrics
	Logger  zerolog.Logger

	PersistChan    chan<- Output
	ProjectionChan chan<- Output
}

// Engine is the deterministic accounting core.
type Engine struct {
	sequence int64
	hasher   *StateHasher
	guard    *SequenceGuard
	dedup    *lru.Cache

	params   *params.Store
	users    *ledger.UserLedger
	deposits *deposit.Ledger
	miners   *alloc.MinerRegistry
	pools    *alloc.PoolRegistry
	vest     *vesting.Calculator
	tokens   *token.Ledger

	auth    auth.Authorizer
	metrics *observability.Metrics
	log     zerolog.Logger

	checkInterval  int64
	persistChan    chan<- Output
	projectionChan chan<- Output
}

// New assembles an engine with empty state.
func New(cfg Config) (*Engine, error) {
	capacity := cfg.DedupCapacity
	if capacity == 0 {
		capacity = 1_000_000
	}
	cache, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	interval := cfg.ConsistencyInterval
	if interval == 0 {
		interval = 1000
	}

	deposits := deposit.NewLedger()
	vest := vesting.NewCalculator()

	return &Engine{
		sequence:       cfg.StartSequence,
		hasher:         NewStateHasher(),
		guard:          NewSequenceGuard(),
		dedup:          cache,
		params:         params.NewStore(),
		users:          ledger.NewUserLedger(),
		deposits:       deposits,
		miners:         alloc.NewMinerRegistry(),
		pools:          alloc.NewPoolRegistry(),
		vest:           vest,
		tokens:         token.NewLedger(vest, deposits),
		auth:           cfg.Auth,
		metrics:        cfg.Metrics,
		log:            cfg.Logger.With().Str("component", "core").Logger(),
		checkInterval:  interval,
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
	}, nil
}

// Apply runs one action through the full pipeline. A nil return means
// the action either committed or was a recognized duplicate; any error
// means no state changed.
func (e *Engine) Apply(act action.Action) error {
	start := time.Now()
	kind := act.Kind().String()
	key := fmt.Sprintf("%s:%s", kind, act.IdempotencyKey())

	isDuplicate := e.dedup.Contains(key)

	if err := e.guard.Validate(act.ActorName(), act.SourceSequence(), isDuplicate); err != nil {
		e.reject(kind, "out_of_order")
		return err
	}
	if isDuplicate {
		e.reject(kind, "duplicate")
		return nil
	}

	if err := e.dispatch(act); err != nil {
		e.reject(kind, "error")
		e.log.Debug().Err(err).Str("action", kind).Str("caller", act.ActorName()).Msg("action rejected")
		return fmt.Errorf("%s: %w", kind, err)
	}

	delta := e.collectDelta()
	digest, err := json.Marshal(delta)
	if err != nil {
		panic(fmt.Sprintf("FATAL: delta marshal failed: %v", err))
	}

	payload, err := json.Marshal(act)
	if err != nil {
		panic(fmt.Sprintf("FATAL: action marshal failed: %v", err))
	}

	prev := e.hasher.Tip()
	hash := e.hasher.Advance(e.sequence, digest)

	envelope := &action.Envelope{
		Sequence:       e.sequence,
		Kind:           act.Kind(),
		Caller:         act.ActorName(),
		Timestamp:      act.Time(),
		IdempotencyKey: act.IdempotencyKey(),
		SourceSequence: act.SourceSequence(),
		Payload:        payload,
		StateHash:      hash,
		PrevHash:       prev,
	}

	e.sequence++

	if e.sequence%e.checkInterval == 0 {
		if err := e.CheckConsistency(); err != nil {
			panic(fmt.Sprintf("FATAL: consistency violated at seq %d: %v", e.sequence, err))
		}
	}

	out := Output{Envelope: envelope, Delta: delta}

	// Persistence gets a blocking send so no applied action is ever
	// lost; projections get a non-blocking send and rebuild from the
	// action log when they fall behind.
	if e.persistChan != nil {
		e.persistChan <- out
	}
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.WithLabelValues("core").Inc()
			}
		}
	}

	e.dedup.Add(key, struct{}{})

	if e.metrics != nil {
		e.metrics.CoreActionsApplied.WithLabelValues(kind).Inc()
		e.metrics.CoreActionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
	}
	return nil
}

func (e *Engine) reject(kind, reason string) {
	if e.metrics != nil {
		e.metrics.CoreActionsRejected.WithLabelValues(kind, reason).Inc()
	}
}

func (e *Engine) dispatch(act action.Action) error {
	switch a := act.(type) {
	case *action.InitSystem:
		return e.handleInitSystem(a)
	case *action.SetCreditPrice:
		return e.handleSetCreditPrice(a)
	case *action.SetTokenPrice:
		return e.handleSetTokenPrice(a)
	case *action.SetCollateralRate:
		return e.handleSetCollateralRate(a)
	case *action.SetDedupRatio:
		return e.handleSetDedupRatio(a)
	case *action.SetDedupDistRatio:
		return e.handleSetDedupDistRatio(a)
	case *action.AddCreditCounter:
		return e.handleAddCreditCounter(a)
	case *action.BuyCredits:
		return e.handleBuyCredits(a)
	case *action.SellCredits:
		return e.handleSellCredits(a)
	case *action.SetRentFee:
		return e.handleSetRentFee(a)
	case *action.DebitRent:
		return e.handleDebitRent(a)
	case *action.AddUsedSpace:
		return e.handleAddUsedSpace(a)
	case *action.SubUsedSpace:
		return e.handleSubUsedSpace(a)
	case *action.SettleRent:
		return e.handleSettleRent(a)
	case *action.SettleProfit:
		return e.handleSettleProfit(a)
	case *action.PledgeDeposit:
		return e.handlePledgeDeposit(a)
	case *action.WithdrawDeposit:
		return e.handleWithdrawDeposit(a)
	case *action.RegisterMiner:
		return e.handleRegisterMiner(a)
	case *action.RemoveMiner:
		return e.handleRemoveMiner(a)
	case *action.AssignToPool:
		return e.handleAssignToPool(a)
	case *action.ReassignPool:
		return e.handleReassignPool(a)
	case *action.AddMinerSpace:
		return e.handleAddMinerSpace(a)
	case *action.SettleMinerProfit:
		return e.handleSettleMinerProfit(a)
	case *action.DeactivateMiner:
		return e.handleDeactivateMiner(a)
	case *action.ActivateMiner:
		return e.handleActivateMiner(a)
	case *action.ChangeMinerAdmin:
		return e.handleChangeMinerAdmin(a)
	case *action.ChangeMinerOwner:
		return e.handleChangeMinerOwner(a)
	case *action.ChangeMinerDepositor:
		return e.handleChangeMinerDepositor(a)
	case *action.ChangeMinerSpace:
		return e.handleChangeMinerSpace(a)
	case *action.ChangeMinerDeposit:
		return e.handleChangeMinerDeposit(a)
	case *action.PayForfeit:
		return e.handlePayForfeit(a)
	case *action.RegisterPool:
		return e.handleRegisterPool(a)
	case *action.RemovePool:
		return e.handleRemovePool(a)
	case *action.ChangePoolQuota:
		return e.handleChangePoolQuota(a)
	case *action.CreateToken:
		return e.handleCreateToken(a)
	case *action.IssueToken:
		return e.handleIssueToken(a)
	case *action.TransferToken:
		return e.handleTransferToken(a)
	case *action.SysTransferToken:
		return e.handleSysTransferToken(a)
	case *action.SetExchangeTime:
		return e.handleSetExchangeTime(a)
	case *action.FreezeAccount:
		return e.handleFreezeAccount(a)
	case *action.UnfreezeAccount:
		return e.handleUnfreezeAccount(a)
	case *action.AddRestricted:
		return e.handleAddRestricted(a)
	case *action.RemoveRestricted:
		return e.handleRemoveRestricted(a)
	case *action.AddLockRule:
		return e.handleAddLockRule(a)
	case *action.LockTransfer:
		return e.handleLockTransfer(a)
	default:
		return fmt.Errorf("unknown action type: %T", act)
	}
}

// collectDelta drains every store's dirty set into one Delta.
func (e *Engine) collectDelta() *Delta {
	d := &Delta{}
	if p, ok := e.params.TakeTouched(); ok {
		cp := p
		d.Params = &cp
	}
	d.Accounts = e.users.TakeTouched()
	d.Deposits = e.deposits.TakeTouched()
	d.Miners, d.MinerDeletes = e.miners.TakeTouched()
	d.Pools, d.PoolDeletes = e.pools.TakeTouched()
	d.TokenStats, d.Balances = e.tokens.TakeTouched()
	d.Freezes, d.Unfreezes, d.Restricted, d.Unrestricted = e.tokens.TakeTouchedAccess()
	d.Rules, d.Locks = e.vest.TakeTouched()
	return d
}

// Sequence returns the next global sequence to assign.
func (e *Engine) Sequence() int64 {
	return e.sequence
}

// StateHash returns the current hash chain tip.
func (e *Engine) StateHash() [32]byte {
	return e.hasher.Tip()
}

// Read accessors for the query surface and tests. The stores hand out
// copies, so readers cannot corrupt engine state, but calls must still
// come from the engine goroutine.

func (e *Engine) Params() *params.Store        { return e.params }
func (e *Engine) Users() *ledger.UserLedger    { return e.users }
func (e *Engine) Deposits() *deposit.Ledger    { return e.deposits }
func (e *Engine) Miners() *alloc.MinerRegistry { return e.miners }
func (e *Engine) Pools() *alloc.PoolRegistry   { return e.pools }
func (e *Engine) Tokens() *token.Ledger        { return e.tokens }
func (e *Engine) Vesting() *vesting.Calculator { return e.vest }

// Snapshot is the full serializable engine state.
type Snapshot struct {
	Sequence    int64                   `json:"sequence"`
	StateHash   [32]byte                `json:"state_hash"`
	Params      params.SystemParameters `json:"params"`
	ParamsReady bool                    `json:"params_ready"`
	Accounts    []ledger.Account        `json:"accounts"`
	Deposits    []deposit.Record        `json:"deposits"`
	Miners      []alloc.Miner           `json:"miners"`
	Pools       []alloc.Pool            `json:"pools"`
	Token       token.Snapshot          `json:"token"`
	Rules       []vesting.Rule          `json:"rules"`
	Locks       []vesting.Lock          `json:"locks"`
	HighWater   map[string]int64        `json:"high_water"`
}

// CreateSnapshot captures the engine state for persistence.
func (e *Engine) CreateSnapshot() *Snapshot {
	p, ready := e.params.Snapshot()
	return &Snapshot{
		Sequence:    e.sequence,
		StateHash:   e.hasher.Tip(),
		Params:      p,
		ParamsReady: ready,
		Accounts:    e.users.Snapshot(),
		Deposits:    e.deposits.Snapshot(),
		Miners:      e.miners.Snapshot(),
		Pools:       e.pools.Snapshot(),
		Token:       e.tokens.Snapshot(),
		Rules:       e.vest.Rules(),
		Locks:       e.vest.Locks(),
		HighWater:   e.guard.Partitions(),
	}
}

// RestoreSnapshot loads persisted state; actions after the snapshot's
// sequence are replayed on top by the startup path.
func (e *Engine) RestoreSnapshot(snap *Snapshot) {
	e.sequence = snap.Sequence
	e.hasher.SetTip(snap.StateHash)
	e.params.Restore(snap.Params, snap.ParamsReady)
	e.users.Restore(snap.Accounts)
	e.deposits.Restore(snap.Deposits)
	e.miners.Restore(snap.Miners)
	e.pools.Restore(snap.Pools)
	e.tokens.Restore(snap.Token)
	e.vest.Restore(snap.Rules, snap.Locks)
	e.guard.Restore(snap.HighWater)
}

// WarmDedup preloads recently applied idempotency keys after a restart.
func (e *Engine) WarmDedup(keys []string) {
	for _, key := range keys {
		e.dedup.Add(key, struct{}{})
	}
}
