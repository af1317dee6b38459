package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ActionLogWriter writes applied actions and their deltas to Postgres
// using multi-row INSERT batches. Writes are idempotent: a replayed
// batch conflicts on sequence and inserts nothing.
type ActionLogWriter struct {
	db *sql.DB
}

// ActionRow represents a row in action_log.actions.
type ActionRow struct {
	Sequence       int64
	Kind           string
	Caller         string
	IdempotencyKey string
	SourceSequence int64
	Payload        []byte // JSON-encoded action
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
}

// DeltaRow represents a row in action_log.deltas: the JSON-encoded set
// of records the action changed. Projections rebuild from these.
type DeltaRow struct {
	Sequence int64
	Delta    []byte
}

func NewActionLogWriter(db *sql.DB) *ActionLogWriter {
	return &ActionLogWriter{db: db}
}

// WriteActionBatch writes a batch of actions inside the given
// transaction.
func (w *ActionLogWriter) WriteActionBatch(ctx context.Context, tx *sql.Tx, actions []ActionRow) error {
	if len(actions) == 0 {
		return nil
	}

	query := `INSERT INTO action_log.actions
		(sequence, kind, caller, idempotency_key, source_sequence, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(actions))
	args := make([]interface{}, 0, len(actions)*9)

	for i, a := range actions {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			a.Sequence, a.Kind, a.Caller, a.IdempotencyKey, a.SourceSequence,
			a.Payload, a.StateHash, a.PrevHash, a.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteDeltaBatch writes a batch of deltas inside the given transaction.
func (w *ActionLogWriter) WriteDeltaBatch(ctx context.Context, tx *sql.Tx, deltas []DeltaRow) error {
	if len(deltas) == 0 {
		return nil
	}

	query := `INSERT INTO action_log.deltas (sequence, delta) VALUES `

	values := make([]string, 0, len(deltas))
	args := make([]interface{}, 0, len(deltas)*2)

	for i, d := range deltas {
		base := i * 2
		values = append(values, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, d.Sequence, d.Delta)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
