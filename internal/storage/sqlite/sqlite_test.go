package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tally-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func seedGroup(t *testing.T, store *SQLiteStore, chatID string, personChatIDs ...string) (*models.Group, []*models.Member) {
	t.Helper()
	ctx := context.Background()

	group := &models.Group{ChatID: chatID, Name: "Trip", Currency: "EUR"}
	if err := store.UpsertGroup(ctx, group); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	var members []*models.Member
	for _, pc := range personChatIDs {
		person := &models.Person{ChatID: pc, Username: pc}
		if err := store.UpsertPerson(ctx, person); err != nil {
			t.Fatalf("UpsertPerson failed: %v", err)
		}
		member, err := store.EnsureMember(ctx, group.ID, person.ID)
		if err != nil {
			t.Fatalf("EnsureMember failed: %v", err)
		}
		members = append(members, member)
	}
	return group, members
}

func TestUpsertPerson(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	person := &models.Person{ChatID: "tg-100", Username: "alice"}
	if err := store.UpsertPerson(ctx, person); err != nil {
		t.Fatalf("UpsertPerson failed: %v", err)
	}
	if person.ID == "" {
		t.Error("expected person ID to be generated")
	}
	if person.CreatedAt == 0 {
		t.Error("expected CreatedAt to be set")
	}

	// Upserting the same chat id updates in place, keeping the ID stable.
	again := &models.Person{ChatID: "tg-100", Username: "alice_renamed", FirstName: "Alice"}
	if err := store.UpsertPerson(ctx, again); err != nil {
		t.Fatalf("UpsertPerson (update) failed: %v", err)
	}
	if again.ID != person.ID {
		t.Errorf("upsert changed person ID: %s -> %s", person.ID, again.ID)
	}
}

func TestUpsertGroupCurrencyLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, members := seedGroup(t, store, "chat-1", "tg-1")

	// Currency can change while the ledger is empty.
	relabel := &models.Group{ChatID: "chat-1", Name: "Trip", Currency: "USD"}
	if err := store.UpsertGroup(ctx, relabel); err != nil {
		t.Fatalf("UpsertGroup (currency change, empty ledger) failed: %v", err)
	}

	if _, err := store.RecordTransaction(ctx, members[0].ID, "hotel", money.MustParse("120.00"), 1700000000); err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}

	// Once transactions exist the currency is fixed.
	locked := &models.Group{ChatID: "chat-1", Name: "Trip", Currency: "GBP"}
	err := store.UpsertGroup(ctx, locked)
	if !errors.Is(err, storage.ErrCurrencyLocked) {
		t.Fatalf("UpsertGroup error = %v, want ErrCurrencyLocked", err)
	}

	// Other fields still update under the existing currency.
	rename := &models.Group{ChatID: "chat-1", Name: "Summer Trip", Currency: "USD"}
	if err := store.UpsertGroup(ctx, rename); err != nil {
		t.Fatalf("UpsertGroup (rename) failed: %v", err)
	}
	got, err := store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Name != "Summer Trip" {
		t.Errorf("name = %q, want Summer Trip", got.Name)
	}
}

func TestEnsureMember(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, members := seedGroup(t, store, "chat-2", "tg-2")

	// Second call returns the same membership.
	again, err := store.EnsureMember(ctx, group.ID, members[0].PersonID)
	if err != nil {
		t.Fatalf("EnsureMember failed: %v", err)
	}
	if again.ID != members[0].ID {
		t.Errorf("EnsureMember created a duplicate: %s vs %s", again.ID, members[0].ID)
	}

	if _, err := store.EnsureMember(ctx, "no-such-group", members[0].PersonID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("EnsureMember(bad group) error = %v, want ErrNotFound", err)
	}
	if _, err := store.EnsureMember(ctx, group.ID, "no-such-person"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("EnsureMember(bad person) error = %v, want ErrNotFound", err)
	}
}

func TestRecordTransactionMaintainsBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, members := seedGroup(t, store, "chat-3", "tg-3")
	member := members[0]

	amounts := []string{"10.10", "-2.35", "0.01", "99.99", "-7.75"}
	want := money.Zero
	for _, a := range amounts {
		amount := money.MustParse(a)
		want = want.Add(amount)
		record, err := store.RecordTransaction(ctx, member.ID, "expense "+a, amount, 1700000000)
		if err != nil {
			t.Fatalf("RecordTransaction(%s) failed: %v", a, err)
		}
		if record.ID == "" || record.GroupID != group.ID {
			t.Errorf("transaction record incomplete: %+v", record)
		}
	}

	balances, err := store.GroupBalances(ctx, group.ID)
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if got := balances[member.PersonID]; !got.Equal(want) {
		t.Errorf("balance = %s, want %s", got, want)
	}

	// The running balance equals the exact transaction sum.
	sum, err := store.TransactionSum(ctx, group.ID)
	if err != nil {
		t.Fatalf("TransactionSum failed: %v", err)
	}
	if !sum.Equal(want) {
		t.Errorf("transaction sum = %s, want %s", sum, want)
	}
}

func TestRecordTransactionUnknownMember(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordTransaction(ctx, "no-such-member", "x", money.MustParse("1.00"), 0)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGroupBalancesUnknownGroup(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GroupBalances(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSettlementLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, members := seedGroup(t, store, "chat-4", "tg-4a", "tg-4b")
	payer, receiver := members[0].PersonID, members[1].PersonID

	settlements := []*models.Settlement{
		{GroupID: group.ID, PayerID: payer, ReceiverID: receiver, Amount: money.MustParse("6.00")},
		{GroupID: group.ID, PayerID: payer, ReceiverID: receiver, Amount: money.MustParse("4.00")},
	}
	if err := store.RecordSettlements(ctx, settlements); err != nil {
		t.Fatalf("RecordSettlements failed: %v", err)
	}

	t.Run("recorded as pending", func(t *testing.T) {
		pending, err := store.PendingSettlements(ctx, group.ID)
		if err != nil {
			t.Fatalf("PendingSettlements failed: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("pending count = %d, want 2", len(pending))
		}
		for _, s := range pending {
			if s.Status != models.SettlementPending {
				t.Errorf("status = %s, want pending", s.Status)
			}
			if !s.Amount.IsPositive() {
				t.Errorf("amount = %s, want > 0", s.Amount)
			}
		}
	})

	t.Run("complete is idempotent and skips unknowns", func(t *testing.T) {
		ids := []string{settlements[0].ID, "no-such-id"}
		count, err := store.CompleteSettlements(ctx, ids)
		if err != nil {
			t.Fatalf("CompleteSettlements failed: %v", err)
		}
		if count != 1 {
			t.Errorf("completed = %d, want 1", count)
		}

		// Second call matches nothing: completed is terminal.
		count, err = store.CompleteSettlements(ctx, ids)
		if err != nil {
			t.Fatalf("CompleteSettlements (repeat) failed: %v", err)
		}
		if count != 0 {
			t.Errorf("repeat completed = %d, want 0", count)
		}
	})

	t.Run("cancel only touches pending", func(t *testing.T) {
		count, err := store.CancelSettlements(ctx, []string{settlements[0].ID, settlements[1].ID})
		if err != nil {
			t.Fatalf("CancelSettlements failed: %v", err)
		}
		// settlements[0] is already completed; only settlements[1] cancels.
		if count != 1 {
			t.Errorf("cancelled = %d, want 1", count)
		}

		all, err := store.ListSettlements(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		statuses := map[models.SettlementStatus]int{}
		for _, s := range all {
			statuses[s.Status]++
		}
		if statuses[models.SettlementCompleted] != 1 || statuses[models.SettlementCancelled] != 1 {
			t.Errorf("statuses = %v, want one completed and one cancelled", statuses)
		}
	})
}

func TestGroupWatermarks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, _ := seedGroup(t, store, "chat-5", "tg-5")

	if err := store.SetLastProcessedAt(ctx, group.ID, 1700000100); err != nil {
		t.Fatalf("SetLastProcessedAt failed: %v", err)
	}
	if err := store.SetLastSettledAt(ctx, group.ID, 1700000200); err != nil {
		t.Fatalf("SetLastSettledAt failed: %v", err)
	}

	got, err := store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.LastProcessedAt != 1700000100 || got.LastSettledAt != 1700000200 {
		t.Errorf("watermarks = %d/%d, want 1700000100/1700000200", got.LastProcessedAt, got.LastSettledAt)
	}

	if err := store.SetLastProcessedAt(ctx, "nope", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetLastProcessedAt(bad group) error = %v, want ErrNotFound", err)
	}
}

func TestRecordTransactionConcurrentWriters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, members := seedGroup(t, store, "chat-6", "tg-6")
	member := members[0]

	// Overlapping writers for the same member must all land; none may be
	// rejected with a busy error, and the running balance must equal the
	// exact sum of what was committed.
	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.RecordTransaction(ctx, member.ID, "split", money.MustParse("1.00"), 1700000000)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d failed: %v", i, err)
		}
	}

	balances, err := store.GroupBalances(ctx, group.ID)
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	want := money.MustParse("1.00").MulInt(workers)
	if !balances[member.PersonID].Equal(want) {
		t.Errorf("balance = %s, want %s", balances[member.PersonID], want)
	}

	total, err := store.TransactionSum(ctx, group.ID)
	if err != nil {
		t.Fatalf("TransactionSum failed: %v", err)
	}
	if !total.Equal(want) {
		t.Errorf("transaction sum = %s, want %s", total, want)
	}
}

func TestUpsertPersonConcurrentFirstWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Racing first-time upserts of one chat id must all succeed and agree
	// on a single stored person.
	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &models.Person{ChatID: "tg-race", Username: "racer"}
			errs[i] = store.UpsertPerson(ctx, p)
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("upsert %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("upsert %d got id %s, want %s", i, ids[i], ids[0])
		}
	}
}
