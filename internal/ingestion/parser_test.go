package ingestion_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yottachain/mena/internal/action"
	"github.com/yottachain/mena/internal/ingestion"
)

func rawFromJSON(t *testing.T, kind string, body interface{}) ingestion.RawAction {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"kind": kind,
		"body": body,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawAction{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseBuyCredits(t *testing.T) {
	body := map[string]interface{}{
		"caller":   "buyer.acct",
		"now":      int64(1700000000000),
		"nonce":    "550e8400-e29b-41d4-a716-446655440000",
		"seq":      int64(42),
		"receiver": "user.acct",
		"amount":   int64(200_000_000),
		"memo":     "first purchase",
	}

	raw := rawFromJSON(t, "BuyCredits", body)
	act, err := ingestion.ParseRawAction(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	buy, ok := act.(*action.BuyCredits)
	if !ok {
		t.Fatalf("expected *action.BuyCredits, got %T", act)
	}
	if buy.Caller != "buyer.acct" {
		t.Errorf("caller: got %s, want buyer.acct", buy.Caller)
	}
	if buy.Receiver != "user.acct" {
		t.Errorf("receiver: got %s, want user.acct", buy.Receiver)
	}
	if buy.Amount != 200_000_000 {
		t.Errorf("amount: got %d, want 200_000_000", buy.Amount)
	}
	if buy.Seq != 42 {
		t.Errorf("seq: got %d, want 42", buy.Seq)
	}
	if buy.Kind() != action.KindBuyCredits {
		t.Errorf("kind: got %v, want BuyCredits", buy.Kind())
	}
}

func TestParseRegisterMiner(t *testing.T) {
	body := map[string]interface{}{
		"caller":          "depositor.acct",
		"now":             int64(1700000000000),
		"nonce":           "660e8400-e29b-41d4-a716-446655440001",
		"seq":             int64(7),
		"miner_id":        int64(12001),
		"admin":           "madmin.acct",
		"initial_deposit": int64(4_000_000),
	}

	raw := rawFromJSON(t, "RegisterMiner", body)
	act, err := ingestion.ParseRawAction(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	reg, ok := act.(*action.RegisterMiner)
	if !ok {
		t.Fatalf("expected *action.RegisterMiner, got %T", act)
	}
	if reg.MinerID != 12001 {
		t.Errorf("miner_id: got %d, want 12001", reg.MinerID)
	}
	if reg.Admin != "madmin.acct" {
		t.Errorf("admin: got %s, want madmin.acct", reg.Admin)
	}
	if reg.InitialDeposit != 4_000_000 {
		t.Errorf("initial_deposit: got %d, want 4_000_000", reg.InitialDeposit)
	}
}

func TestParseTransferToken(t *testing.T) {
	body := map[string]interface{}{
		"caller":   "alice.acct",
		"now":      int64(1700000000000),
		"nonce":    "770e8400-e29b-41d4-a716-446655440002",
		"seq":      int64(3),
		"from":     "alice.acct",
		"to":       "bob.acct",
		"symbol":   "MTA",
		"quantity": int64(5000),
	}

	raw := rawFromJSON(t, "TransferToken", body)
	act, err := ingestion.ParseRawAction(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tr, ok := act.(*action.TransferToken)
	if !ok {
		t.Fatalf("expected *action.TransferToken, got %T", act)
	}
	if tr.From != "alice.acct" || tr.To != "bob.acct" {
		t.Errorf("route: got %s -> %s, want alice.acct -> bob.acct", tr.From, tr.To)
	}
	if tr.Quantity != 5000 {
		t.Errorf("quantity: got %d, want 5000", tr.Quantity)
	}
}

func TestParseUnknownKind(t *testing.T) {
	raw := rawFromJSON(t, "Nonsense", map[string]interface{}{})
	if _, err := ingestion.ParseRawAction(raw); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	cases := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "missing caller",
			body: map[string]interface{}{
				"now": int64(1700000000000), "nonce": "550e8400-e29b-41d4-a716-446655440000", "seq": int64(1),
			},
			want: "missing caller",
		},
		{
			name: "bad nonce",
			body: map[string]interface{}{
				"caller": "a", "now": int64(1700000000000), "nonce": "not-a-uuid", "seq": int64(1),
			},
			want: "parse nonce",
		},
		{
			name: "zero timestamp",
			body: map[string]interface{}{
				"caller": "a", "nonce": "550e8400-e29b-41d4-a716-446655440000", "seq": int64(1),
			},
			want: "missing timestamp",
		},
		{
			name: "non-positive sequence",
			body: map[string]interface{}{
				"caller": "a", "now": int64(1700000000000), "nonce": "550e8400-e29b-41d4-a716-446655440000",
			},
			want: "sequence must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := rawFromJSON(t, "SettleRent", tc.body)
			_, err := ingestion.ParseRawAction(raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseMalformedJSON(t *testing.T) {
	raw := ingestion.RawAction{
		Subject:   "test",
		Data:      []byte("{not json"),
		Timestamp: time.Now(),
	}
	if _, err := ingestion.ParseRawAction(raw); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
