package query

import (
	"context"
	"database/sql"
)

// GetBalance returns one account's balance for a symbol. A missing row
// is a zero balance, not an error.
func (s *Service) GetBalance(ctx context.Context, account, symbol string) (*BalanceResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var amount int64
	err = s.db.QueryRowContext(ctx, `
		SELECT amount FROM projections.balances
		WHERE account = $1 AND symbol = $2
	`, account, symbol).Scan(&amount)
	if err == sql.ErrNoRows {
		amount = 0
	} else if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		Account:      account,
		Symbol:       symbol,
		Amount:       amount,
		AsOfSequence: asOfSeq,
	}, nil
}

// ListBalances returns every holding of one account.
func (s *Service) ListBalances(ctx context.Context, account string) ([]BalanceResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, amount FROM projections.balances
		WHERE account = $1
		ORDER BY symbol ASC
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []BalanceResponse
	for rows.Next() {
		b := BalanceResponse{Account: account, AsOfSequence: asOfSeq}
		if err := rows.Scan(&b.Symbol, &b.Amount); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
