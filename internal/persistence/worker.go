package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yottachain/mena/internal/core"
	"github.com/yottachain/mena/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres. It
// runs independently from the deterministic core. The persist channel
// uses BLOCKING sends from the core, so if this worker falls behind the
// core stalls, guaranteeing no applied action is ever lost.
type Worker struct {
	writer       *ActionLogWriter
	db           *sql.DB
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan core.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewActionLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// RowsFromOutput converts one engine output into its log rows.
func RowsFromOutput(out core.Output) (ActionRow, DeltaRow, error) {
	env := out.Envelope
	deltaJSON, err := json.Marshal(out.Delta)
	if err != nil {
		return ActionRow{}, DeltaRow{}, fmt.Errorf("marshal delta seq=%d: %w", env.Sequence, err)
	}
	stateHash := make([]byte, len(env.StateHash))
	copy(stateHash, env.StateHash[:])
	prevHash := make([]byte, len(env.PrevHash))
	copy(prevHash, env.PrevHash[:])

	return ActionRow{
			Sequence:       env.Sequence,
			Kind:           env.Kind.String(),
			Caller:         env.Caller,
			IdempotencyKey: env.IdempotencyKey,
			SourceSequence: env.SourceSequence,
			Payload:        env.Payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
			Timestamp:      time.UnixMilli(int64(env.Timestamp)),
		}, DeltaRow{
			Sequence: env.Sequence,
			Delta:    deltaJSON,
		}, nil
}

// Run starts the worker loop. It batches incoming outputs and flushes
// either when the batch is full or the flush timeout expires. Blocks
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	actionBatch := make([]ActionRow, 0, w.batchSize)
	deltaBatch := make([]DeltaRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(actionBatch) > 0 {
				if err := w.flush(context.Background(), actionBatch, deltaBatch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				if len(actionBatch) > 0 {
					if err := w.flush(context.Background(), actionBatch, deltaBatch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			actionRow, deltaRow, err := RowsFromOutput(out)
			if err != nil {
				// The engine already marshaled this delta once; a
				// failure here means a corrupted output.
				log.Printf("ERROR: drop unserializable output: %v", err)
				continue
			}
			actionBatch = append(actionBatch, actionRow)
			deltaBatch = append(deltaBatch, deltaRow)

			if len(actionBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, actionBatch, deltaBatch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				actionBatch = actionBatch[:0]
				deltaBatch = deltaBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(actionBatch) > 0 {
				if err := w.flushWithRetry(ctx, actionBatch, deltaBatch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				actionBatch = actionBatch[:0]
				deltaBatch = deltaBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops actions; it retries until the write succeeds or the
// context is cancelled, and even then attempts one final flush so the
// batch survives a graceful shutdown.
func (w *Worker) flushWithRetry(ctx context.Context, actions []ActionRow, deltas []DeltaRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, actions=%d)",
				attempt, backoff, len(actions))
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if finalErr := w.flush(context.Background(), actions, deltas); finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, actions, deltas)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}
	}
}

func (w *Worker) flush(ctx context.Context, actions []ActionRow, deltas []DeltaRow) error {
	start := time.Now()

	// Actions and deltas commit in a single transaction.
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteActionBatch(ctx, tx, actions); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_actions").Inc()
		}
		return err
	}

	if err := w.writer.WriteDeltaBatch(ctx, tx, deltas); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_deltas").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(actions)))
		w.metrics.PersistActionsWritten.Add(float64(len(actions)))
		if len(actions) > 0 {
			w.metrics.PersistLastSequence.Set(float64(actions[len(actions)-1].Sequence))
		}
	}

	return nil
}
