package query

import (
	"context"
	"database/sql"
	"fmt"
)

// Service provides read-only access to the projection tables. Queries
// never touch the engine; they read what the projection worker has
// written, and every response carries the watermark it was read at.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetParams returns the system parameter singleton.
func (s *Service) GetParams(ctx context.Context) (*ParamsResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p ParamsResponse
	p.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT admin, credit_price, token_price, collateral_rate,
		       dedup_ratio, dedup_dist_ratio, credit_counter, user_count, miner_count
		FROM projections.system_params
	`).Scan(
		&p.Admin, &p.CreditPrice, &p.TokenPrice, &p.CollateralRate,
		&p.DedupRatio, &p.DedupDistRatio, &p.CreditCounter, &p.UserCount, &p.MinerCount,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAccount returns one user account.
func (s *Service) GetAccount(ctx context.Context, name string) (*AccountResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var a AccountResponse
	a.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT name, rent_balance, fee_rate, used_space, rent_settled_at,
		       profit_balance, profit_rate, produced_space, profit_settled_at
		FROM projections.accounts
		WHERE name = $1
	`, name).Scan(
		&a.Name, &a.RentBalance, &a.FeeRate, &a.UsedSpace, &a.RentSettledAt,
		&a.ProfitBalance, &a.ProfitRate, &a.ProducedSpace, &a.ProfitSettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDeposit returns one depositor's collateral record.
func (s *Service) GetDeposit(ctx context.Context, owner string) (*DepositResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var d DepositResponse
	d.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT owner, total, used, historical
		FROM projections.deposits
		WHERE owner = $1
	`, owner).Scan(&d.Owner, &d.Total, &d.Used, &d.Historical)
	if err != nil {
		return nil, err
	}
	d.Free = d.Total - d.Used
	return &d, nil
}

// GetMiner returns one miner.
func (s *Service) GetMiner(ctx context.Context, id uint64) (*MinerResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var m MinerResponse
	m.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT id, admin, depositor, owner, pool, deposit, deposit_total,
		       max_space, prod_space, cycle_profit, cumulative_profit, profit_settled_at
		FROM projections.miners
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Admin, &m.Depositor, &m.Owner, &m.Pool, &m.Deposit, &m.DepositTotal,
		&m.MaxSpace, &m.ProdSpace, &m.CycleProfit, &m.CumulativeProfit, &m.ProfitSettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMiners returns miners filtered by owner and/or pool, ordered by
// id, with cursor-based pagination on the id.
func (s *Service) ListMiners(ctx context.Context, owner, pool *string, limit int, afterID *uint64) ([]MinerResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, admin, depositor, owner, pool, deposit, deposit_total,
		       max_space, prod_space, cycle_profit, cumulative_profit, profit_settled_at
		FROM projections.miners
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if owner != nil {
		query += fmt.Sprintf(" AND owner = $%d", argIdx)
		args = append(args, *owner)
		argIdx++
	}
	if pool != nil {
		query += fmt.Sprintf(" AND pool = $%d", argIdx)
		args = append(args, *pool)
		argIdx++
	}
	if afterID != nil {
		query += fmt.Sprintf(" AND id > $%d", argIdx)
		args = append(args, *afterID)
		argIdx++
	}

	query += " ORDER BY id ASC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var miners []MinerResponse
	for rows.Next() {
		var m MinerResponse
		m.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&m.ID, &m.Admin, &m.Depositor, &m.Owner, &m.Pool, &m.Deposit, &m.DepositTotal,
			&m.MaxSpace, &m.ProdSpace, &m.CycleProfit, &m.CumulativeProfit, &m.ProfitSettledAt,
		); err != nil {
			return nil, err
		}
		miners = append(miners, m)
	}
	return miners, rows.Err()
}

// GetPool returns one storage pool.
func (s *Service) GetPool(ctx context.Context, id string) (*PoolResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var p PoolResponse
	p.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT id, owner, max_space, prod_space
		FROM projections.pools
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Owner, &p.MaxSpace, &p.ProdSpace)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPools returns every pool ordered by id.
func (s *Service) ListPools(ctx context.Context) ([]PoolResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, max_space, prod_space
		FROM projections.pools
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []PoolResponse
	for rows.Next() {
		var p PoolResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(&p.ID, &p.Owner, &p.MaxSpace, &p.ProdSpace); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// GetTokenStats returns a token's issuance state.
func (s *Service) GetTokenStats(ctx context.Context, symbol string) (*TokenStatsResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var t TokenStatsResponse
	t.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT symbol, issuer, supply, max_supply, exchange_time
		FROM projections.token_stats
		WHERE symbol = $1
	`, symbol).Scan(&t.Symbol, &t.Issuer, &t.Supply, &t.MaxSupply, &t.ExchangeTime)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetActionHistory returns applied actions for a caller, newest first,
// with cursor-based pagination on the sequence.
func (s *Service) GetActionHistory(ctx context.Context, caller string, limit int, afterSequence *int64) ([]ActionHistoryEntry, error) {
	query := `
		SELECT sequence, kind, caller, source_sequence,
		       (EXTRACT(EPOCH FROM timestamp) * 1000)::BIGINT
		FROM action_log.actions
		WHERE caller = $1
	`
	args := []interface{}{caller}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ActionHistoryEntry
	for rows.Next() {
		var e ActionHistoryEntry
		if err := rows.Scan(&e.Sequence, &e.Kind, &e.Caller, &e.SourceSequence, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyIntegrity checks hash chain continuity in the action log and
// the global balance invariants in the projections: no negative
// balance, and per-symbol balances summing to the recorded supply.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a1.sequence
		FROM action_log.actions a1
		LEFT JOIN action_log.actions a2 ON a2.sequence = a1.sequence - 1
		WHERE a2.sequence IS NOT NULL AND a1.prev_hash != a2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	negRows, err := s.db.QueryContext(ctx, `
		SELECT account, symbol, amount
		FROM projections.balances
		WHERE amount < 0
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer negRows.Close()

	for negRows.Next() {
		var n NegativeBalance
		if err := negRows.Scan(&n.Account, &n.Symbol, &n.Amount); err != nil {
			return nil, err
		}
		report.NegativeBalances = append(report.NegativeBalances, n)
	}
	if err := negRows.Err(); err != nil {
		return nil, err
	}

	supplyRows, err := s.db.QueryContext(ctx, `
		SELECT t.symbol, t.supply, COALESCE(SUM(b.amount), 0)
		FROM projections.token_stats t
		LEFT JOIN projections.balances b ON b.symbol = t.symbol
		GROUP BY t.symbol, t.supply
		HAVING t.supply != COALESCE(SUM(b.amount), 0)
	`)
	if err != nil {
		return nil, err
	}
	defer supplyRows.Close()

	for supplyRows.Next() {
		var m SupplyMismatch
		if err := supplyRows.Scan(&m.Symbol, &m.Supply, &m.BalanceSum); err != nil {
			return nil, err
		}
		report.SupplyMismatches = append(report.SupplyMismatches, m)
	}
	if err := supplyRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 &&
		len(report.NegativeBalances) == 0 &&
		len(report.SupplyMismatches) == 0
	return report, nil
}

// --- helpers ---

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
