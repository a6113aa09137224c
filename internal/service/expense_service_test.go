package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tallybot/tally/internal/ingest"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
	"github.com/tallybot/tally/internal/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tally-service-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func tripExtract() *ingest.ExtractedExpenses {
	return &ingest.ExtractedExpenses{
		Group: ingest.ExtractedGroup{
			ChatID:   "chat-trip",
			Name:     "Weekend Trip",
			Currency: "EUR",
			Members: []ingest.ExtractedMember{
				{
					ChatID:   "tg-alice",
					Username: "alice",
					Transactions: []ingest.ExtractedTransaction{
						{Description: "hotel", Amount: money.MustParse("80.00"), Date: "2026-03-07"},
						{Description: "breakfast", Amount: money.MustParse("20.00"), Date: "2026-03-08"},
					},
				},
				{ChatID: "tg-bob", Username: "bob"},
				{ChatID: "tg-carol", Username: "carol"},
			},
		},
		TotalExpenses:    money.MustParse("100.00"),
		AveragePerPerson: money.MustParse("33.33"),
	}
}

func TestApplyExtract(t *testing.T) {
	store := newTestStore(t)
	svc := NewExpenseService(store)
	ctx := context.Background()

	result, err := svc.ApplyExtract(ctx, tripExtract())
	if err != nil {
		t.Fatalf("ApplyExtract failed: %v", err)
	}
	if result.Recorded != 2 {
		t.Errorf("recorded = %d, want 2", result.Recorded)
	}
	if result.Group.ID == "" {
		t.Fatal("expected group ID to be populated")
	}
	if result.Group.LastProcessedAt == 0 {
		t.Error("expected returned group to carry the ingestion watermark")
	}

	group, err := store.GetGroupByChatID(ctx, "chat-trip")
	if err != nil {
		t.Fatalf("GetGroupByChatID failed: %v", err)
	}
	if group.LastProcessedAt != result.Group.LastProcessedAt {
		t.Errorf("stored watermark = %d, want %d", group.LastProcessedAt, result.Group.LastProcessedAt)
	}

	balances, err := svc.GroupBalances(ctx, group.ID)
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("balance count = %d, want 3", len(balances))
	}

	total := money.Zero
	for _, bal := range balances {
		total = total.Add(bal)
	}
	if !total.Equal(money.MustParse("100.00")) {
		t.Errorf("balance total = %s, want 100.00", total)
	}
}

func TestApplyExtractAccumulates(t *testing.T) {
	store := newTestStore(t)
	svc := NewExpenseService(store)
	ctx := context.Background()

	if _, err := svc.ApplyExtract(ctx, tripExtract()); err != nil {
		t.Fatalf("first ApplyExtract failed: %v", err)
	}

	// A later batch for the same group adds to the same running balances.
	second := tripExtract()
	second.Group.Members[1].Transactions = []ingest.ExtractedTransaction{
		{Description: "taxi", Amount: money.MustParse("30.00"), Date: "2026-03-09"},
	}
	second.Group.Members[0].Transactions = nil
	second.TotalExpenses = money.MustParse("30.00")

	if _, err := svc.ApplyExtract(ctx, second); err != nil {
		t.Fatalf("second ApplyExtract failed: %v", err)
	}

	group, err := store.GetGroupByChatID(ctx, "chat-trip")
	if err != nil {
		t.Fatalf("GetGroupByChatID failed: %v", err)
	}
	sum, err := store.TransactionSum(ctx, group.ID)
	if err != nil {
		t.Fatalf("TransactionSum failed: %v", err)
	}
	if !sum.Equal(money.MustParse("130.00")) {
		t.Errorf("ledger total = %s, want 130.00", sum)
	}
}

func TestApplyExtractRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	svc := NewExpenseService(store)

	bad := tripExtract()
	bad.Group.Currency = ""

	_, err := svc.ApplyExtract(context.Background(), bad)
	if !errors.Is(err, ingest.ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestApplyExtractCurrencyLocked(t *testing.T) {
	store := newTestStore(t)
	svc := NewExpenseService(store)
	ctx := context.Background()

	if _, err := svc.ApplyExtract(ctx, tripExtract()); err != nil {
		t.Fatalf("ApplyExtract failed: %v", err)
	}

	relabeled := tripExtract()
	relabeled.Group.Currency = "USD"

	_, err := svc.ApplyExtract(ctx, relabeled)
	if !errors.Is(err, storage.ErrCurrencyLocked) {
		t.Fatalf("error = %v, want ErrCurrencyLocked", err)
	}
}
