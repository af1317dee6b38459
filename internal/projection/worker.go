package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/core"
	"github.com/yottachain/mena/internal/observability"
)

// Worker updates the read-side tables from applied deltas. The
// projection channel is non-blocking with drop: if this worker falls
// behind, the tables are rebuilt from the action log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	forfeits  *ForfeitHistory
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		forfeits:  NewForfeitHistory(),
	}
}

// Forfeits exposes the in-memory forfeiture history for the query
// surface.
func (w *Worker) Forfeits() *ForfeitHistory {
	return w.forfeits
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := w.processOutput(ctx, out); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", out.Envelope.Sequence, err)
				// Continue; projections are eventually consistent and
				// can be rebuilt from the action log.
			}
			if w.metrics != nil {
				w.metrics.ProjectionUpdateDur.WithLabelValues("main").Observe(time.Since(start).Seconds())
			}

			w.lastSeq = out.Envelope.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, out core.Output) error {
	seq := out.Envelope.Sequence

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyDelta(ctx, tx, seq, out.Delta); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if out.Envelope.Kind == action.KindPayForfeit {
		w.recordForfeit(out.Envelope)
	}
	return nil
}

func (w *Worker) recordForfeit(env *action.Envelope) {
	var a action.PayForfeit
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		log.Printf("WARN: unreadable forfeit payload seq=%d: %v", env.Sequence, err)
		return
	}
	w.forfeits.AddEntry(ForfeitEntry{
		MinerID:   a.MinerID,
		Amount:    a.Amount,
		Sequence:  env.Sequence,
		Timestamp: int64(env.Timestamp),
	})
}

// applyDelta upserts every record the delta carries. Deletes run after
// upserts so a record replaced and removed in one action ends up gone.
func applyDelta(ctx context.Context, tx *sql.Tx, seq int64, d *core.Delta) error {
	if d == nil {
		return nil
	}

	if p := d.Params; p != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.system_params
				(singleton, admin, credit_price, token_price, collateral_rate,
				 dedup_ratio, dedup_dist_ratio, credit_counter, user_count, miner_count, updated_seq)
			VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (singleton) DO UPDATE SET
				admin = $1, credit_price = $2, token_price = $3, collateral_rate = $4,
				dedup_ratio = $5, dedup_dist_ratio = $6, credit_counter = $7,
				user_count = $8, miner_count = $9, updated_seq = $10
		`, p.Admin, p.CreditPrice, p.TokenPrice, p.CollateralRate,
			p.DedupRatio, p.DedupDistRatio, p.CreditCounter, p.UserCount, p.MinerCount, seq); err != nil {
			return fmt.Errorf("params projection: %w", err)
		}
	}

	for _, a := range d.Accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.accounts
				(name, rent_balance, fee_rate, used_space, rent_settled_at,
				 profit_balance, profit_rate, produced_space, profit_settled_at, updated_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (name) DO UPDATE SET
				rent_balance = $2, fee_rate = $3, used_space = $4, rent_settled_at = $5,
				profit_balance = $6, profit_rate = $7, produced_space = $8,
				profit_settled_at = $9, updated_seq = $10
		`, a.Name, a.RentBalance, a.FeeRate, a.UsedSpace, a.RentSettledAt,
			a.ProfitBalance, a.ProfitRate, a.ProducedSpace, a.ProfitSettledAt, seq); err != nil {
			return fmt.Errorf("account projection: %w", err)
		}
	}

	for _, r := range d.Deposits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.deposits (owner, total, used, historical, updated_seq)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (owner) DO UPDATE SET
				total = $2, used = $3, historical = $4, updated_seq = $5
		`, r.Owner, r.Total, r.Used, r.Historical, seq); err != nil {
			return fmt.Errorf("deposit projection: %w", err)
		}
	}

	for _, m := range d.Miners {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.miners
				(id, admin, depositor, owner, pool, deposit, deposit_total,
				 max_space, prod_space, cycle_profit, cumulative_profit, profit_settled_at, updated_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				admin = $2, depositor = $3, owner = $4, pool = $5, deposit = $6,
				deposit_total = $7, max_space = $8, prod_space = $9, cycle_profit = $10,
				cumulative_profit = $11, profit_settled_at = $12, updated_seq = $13
		`, m.ID, m.Admin, m.Depositor, m.Owner, m.Pool, m.Deposit, m.DepositTotal,
			m.MaxSpace, m.ProdSpace, m.CycleProfit, m.CumulativeProfit, m.ProfitSettledAt, seq); err != nil {
			return fmt.Errorf("miner projection: %w", err)
		}
	}
	for _, id := range d.MinerDeletes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projections.miners WHERE id = $1`, id); err != nil {
			return fmt.Errorf("miner delete: %w", err)
		}
	}

	for _, p := range d.Pools {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.pools (id, owner, max_space, prod_space, updated_seq)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				owner = $2, max_space = $3, prod_space = $4, updated_seq = $5
		`, p.ID, p.Owner, p.MaxSpace, p.ProdSpace, seq); err != nil {
			return fmt.Errorf("pool projection: %w", err)
		}
	}
	for _, id := range d.PoolDeletes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projections.pools WHERE id = $1`, id); err != nil {
			return fmt.Errorf("pool delete: %w", err)
		}
	}

	for _, s := range d.TokenStats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.token_stats (symbol, issuer, supply, max_supply, exchange_time, updated_seq)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (symbol) DO UPDATE SET
				issuer = $2, supply = $3, max_supply = $4, exchange_time = $5, updated_seq = $6
		`, s.Symbol, s.Issuer, s.Supply, s.MaxSupply, s.ExchangeTime, seq); err != nil {
			return fmt.Errorf("token stats projection: %w", err)
		}
	}

	for _, b := range d.Balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (account, symbol, amount, updated_seq)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account, symbol) DO UPDATE SET amount = $3, updated_seq = $4
		`, b.Account, b.Symbol, b.Amount, seq); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	for _, f := range d.Freezes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.frozen_accounts (account, until_time, updated_seq)
			VALUES ($1, $2, $3)
			ON CONFLICT (account) DO UPDATE SET until_time = $2, updated_seq = $3
		`, f.Account, f.Until, seq); err != nil {
			return fmt.Errorf("freeze projection: %w", err)
		}
	}
	for _, account := range d.Unfreezes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projections.frozen_accounts WHERE account = $1`, account); err != nil {
			return fmt.Errorf("freeze delete: %w", err)
		}
	}

	for _, r := range d.Restricted {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.restricted_senders (account, memo, updated_seq)
			VALUES ($1, $2, $3)
			ON CONFLICT (account) DO UPDATE SET memo = $2, updated_seq = $3
		`, r.Account, r.Memo, seq); err != nil {
			return fmt.Errorf("restricted projection: %w", err)
		}
	}
	for _, account := range d.Unrestricted {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projections.restricted_senders WHERE account = $1`, account); err != nil {
			return fmt.Errorf("restricted delete: %w", err)
		}
	}

	for _, r := range d.Rules {
		times, err := json.Marshal(r.Times)
		if err != nil {
			return fmt.Errorf("marshal rule times: %w", err)
		}
		percents, err := json.Marshal(r.Percents)
		if err != nil {
			return fmt.Errorf("marshal rule percents: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.vesting_rules (id, times, percents, base, absolute, memo, updated_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				times = $2, percents = $3, base = $4, absolute = $5, memo = $6, updated_seq = $7
		`, r.ID, times, percents, r.Base, r.Absolute, r.Memo, seq); err != nil {
			return fmt.Errorf("vesting rule projection: %w", err)
		}
	}

	for _, l := range d.Locks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.vesting_locks
				(rule_id, recipient, sender, symbol, quantity, locked_at, updated_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (recipient, rule_id, symbol) DO UPDATE SET
				sender = $3, quantity = $5, locked_at = $6, updated_seq = $7
		`, l.RuleID, l.Recipient, l.Sender, l.Symbol, l.Quantity, l.Time, seq); err != nil {
			return fmt.Errorf("vesting lock projection: %w", err)
		}
	}

	return nil
}

// RebuildProjections truncates the read-side tables and replays every
// stored delta in sequence order.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.system_params`,
		`TRUNCATE projections.accounts`,
		`TRUNCATE projections.deposits`,
		`TRUNCATE projections.miners`,
		`TRUNCATE projections.pools`,
		`TRUNCATE projections.token_stats`,
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.frozen_accounts`,
		`TRUNCATE projections.restricted_senders`,
		`TRUNCATE projections.vesting_rules`,
		`TRUNCATE projections.vesting_locks`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT sequence, delta FROM action_log.deltas ORDER BY sequence ASC
	`)
	if err != nil {
		return fmt.Errorf("load deltas: %w", err)
	}
	defer rows.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var lastSeq int64
	count := 0
	for rows.Next() {
		var seq int64
		var data []byte
		if err := rows.Scan(&seq, &data); err != nil {
			return err
		}
		var delta core.Delta
		if err := json.Unmarshal(data, &delta); err != nil {
			return fmt.Errorf("unmarshal delta seq=%d: %w", seq, err)
		}
		if err := applyDelta(ctx, tx, seq, &delta); err != nil {
			return fmt.Errorf("replay delta seq=%d: %w", seq, err)
		}
		lastSeq = seq
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if count > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
			VALUES ('main', $1, NOW())
			ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
		`, lastSeq); err != nil {
			return fmt.Errorf("watermark update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("INFO: projection rebuild complete (%d deltas)", count)
	return nil
}
