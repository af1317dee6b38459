package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresIdempotencyChecker answers duplicate checks against the
// durable action log, backing up the in-memory LRU for keys that have
// aged out of it.
type PostgresIdempotencyChecker struct {
	db *sql.DB
}

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db}
}

// IsDuplicate checks whether the action already exists in the log.
func (pic *PostgresIdempotencyChecker) IsDuplicate(kind, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	query := `
        SELECT 1
        FROM action_log.actions
        WHERE kind = $1 AND idempotency_key = $2
        LIMIT 1
    `

	var exists int
	err := pic.db.QueryRowContext(ctx, query, kind, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentKeys returns the composite dedup keys of the most recently
// applied actions, newest first, for warming the engine's cache after a
// restart.
func (pic *PostgresIdempotencyChecker) RecentKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := pic.db.QueryContext(ctx, `
		SELECT kind, idempotency_key
		FROM action_log.actions
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var kind, key string
		if err := rows.Scan(&kind, &key); err != nil {
			return nil, err
		}
		keys = append(keys, fmt.Sprintf("%s:%s", kind, key))
	}
	return keys, rows.Err()
}
