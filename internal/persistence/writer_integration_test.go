package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/yottachain/mena/internal/core"
	"github.com/yottachain/mena/internal/persistence"
	"github.com/yottachain/mena/internal/testutil"
)

func testActionRow(seq int64) persistence.ActionRow {
	payload, _ := json.Marshal(map[string]interface{}{
		"caller": "buyer",
		"now":    1_700_000_000_000 + seq,
		"nonce":  "it-nonce",
		"seq":    seq,
	})
	hash := make([]byte, 32)
	hash[0] = byte(seq)
	prev := make([]byte, 32)
	if seq > 0 {
		prev[0] = byte(seq - 1)
	}
	return persistence.ActionRow{
		Sequence:       seq,
		Kind:           "BuyCredits",
		Caller:         "buyer",
		IdempotencyKey: "it-key",
		SourceSequence: seq + 1,
		Payload:        payload,
		StateHash:      hash,
		PrevHash:       prev,
		Timestamp:      time.UnixMilli(1_700_000_000_000 + seq),
	}
}

func TestWriteActionBatch_Idempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	writer := persistence.NewActionLogWriter(db)

	rows := []persistence.ActionRow{testActionRow(0), testActionRow(1), testActionRow(2)}
	deltas := []persistence.DeltaRow{
		{Sequence: 0, Delta: []byte(`{}`)},
		{Sequence: 1, Delta: []byte(`{}`)},
		{Sequence: 2, Delta: []byte(`{}`)},
	}

	write := func() {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := writer.WriteActionBatch(ctx, tx, rows); err != nil {
			t.Fatalf("write actions: %v", err)
		}
		if err := writer.WriteDeltaBatch(ctx, tx, deltas); err != nil {
			t.Fatalf("write deltas: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	// A replayed batch conflicts on sequence and must insert nothing.
	write()
	write()

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_log.actions").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("actions count = %d, want 3", count)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM action_log.deltas").Scan(&count); err != nil {
		t.Fatalf("count deltas: %v", err)
	}
	if count != 3 {
		t.Fatalf("deltas count = %d, want 3", count)
	}
}

func TestSnapshotManager_SaveLoadVerified(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mgr := persistence.NewSnapshotManager(db)

	engineSnap := &core.Snapshot{Sequence: 5}
	engineSnap.StateHash[0] = 0xAB
	snap := &persistence.SnapshotData{
		Engine:          engineSnap,
		IdempotencyKeys: []string{"BuyCredits:k1", "BuyCredits:k2"},
		CreatedAt:       time.Now(),
	}
	if err := mgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Unverified snapshots must not be loaded.
	loaded, err := mgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load unverified: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no verified snapshot, got sequence %d", loaded.Engine.Sequence)
	}

	if err := mgr.MarkVerified(ctx, 5); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	loaded, err = mgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load verified: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected verified snapshot")
	}
	if loaded.Engine.Sequence != 5 {
		t.Fatalf("sequence = %d, want 5", loaded.Engine.Sequence)
	}
	if loaded.Engine.StateHash[0] != 0xAB {
		t.Fatalf("state hash = %x, want ab prefix", loaded.Engine.StateHash[:4])
	}
	if len(loaded.IdempotencyKeys) != 2 {
		t.Fatalf("idempotency keys = %d, want 2", len(loaded.IdempotencyKeys))
	}
}
