package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-battle/internal/domain"
)

func newFundedStore(t *testing.T, clock clockwork.Clock, funds map[string]int) *Store {
	t.Helper()
	store := NewStore(clock, 5*time.Minute, 15)
	for user, amount := range funds {
		if _, err := store.CreditCoins(context.Background(), user, amount, "grant", "test"); err != nil {
			t.Fatalf("fund %s: %v", user, err)
		}
	}
	return store
}

func activeBattle(t *testing.T, store *Store, bet int) domain.Battle {
	t.Helper()
	ctx := context.Background()
	b, err := store.CreateBattle(ctx, "alice", "bob", bet, "battle-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "battle-1" || b.Status != domain.BattleStatusPending {
		t.Fatalf("unexpected battle %+v", b)
	}
	if b, err = store.JoinBattle(ctx, b.ID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if b.Status != domain.BattleStatusActive {
		t.Fatalf("expected active, got %s", b.Status)
	}
	return b
}

func balance(t *testing.T, store *Store, user string) int {
	t.Helper()
	got, err := store.Balance(context.Background(), user)
	if err != nil {
		t.Fatalf("balance %s: %v", user, err)
	}
	return got
}

func TestStoreWinnerTakesPot(t *testing.T) {
	store := newFundedStore(t, clockwork.NewFakeClock(), map[string]int{"alice": 100, "bob": 100})
	b := activeBattle(t, store, 30)
	ctx := context.Background()

	if balance(t, store, "alice") != 70 || balance(t, store, "bob") != 70 {
		t.Fatalf("expected both wagers debited")
	}

	s, err := store.SubmitResult(ctx, b.ID, "alice", 12, 40_000)
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if s.Finished {
		t.Fatalf("battle should wait for bob")
	}

	s, err = store.SubmitResult(ctx, b.ID, "bob", 9, 35_000)
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if !s.Finished || s.Status != domain.BattleStatusCompleted {
		t.Fatalf("expected completed settlement, got %+v", s)
	}
	if s.WinnerID == nil || *s.WinnerID != "alice" {
		t.Fatalf("expected alice to win, got %v", s.WinnerID)
	}
	if s.ChallengerScore != 12 || s.OpponentScore != 9 || s.OpponentTimeMs != 35_000 {
		t.Fatalf("unexpected scores %+v", s)
	}
	if balance(t, store, "alice") != 130 || balance(t, store, "bob") != 70 {
		t.Fatalf("expected pot paid to alice, got alice=%d bob=%d", balance(t, store, "alice"), balance(t, store, "bob"))
	}
}

func TestStoreSubmitIsIdempotent(t *testing.T) {
	store := newFundedStore(t, clockwork.NewFakeClock(), map[string]int{"alice": 50, "bob": 50})
	b := activeBattle(t, store, 10)
	ctx := context.Background()

	if _, err := store.SubmitResult(ctx, b.ID, "alice", 7, 1000); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := store.SubmitResult(ctx, b.ID, "bob", 5, 1000); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	entries := len(store.Entries("alice"))

	s, err := store.SubmitResult(ctx, b.ID, "alice", 15, 1)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if s.ChallengerScore != 7 || s.ChallengerTimeMs != 1000 {
		t.Fatalf("resubmission changed score: %+v", s)
	}
	if got := len(store.Entries("alice")); got != entries {
		t.Fatalf("resubmission moved coins: %d entries, want %d", got, entries)
	}
}

func TestStoreRejectsOutOfRangeResults(t *testing.T) {
	store := newFundedStore(t, clockwork.NewFakeClock(), map[string]int{"alice": 50, "bob": 50})
	b := activeBattle(t, store, 10)
	ctx := context.Background()

	cases := []struct {
		score  int
		timeMs int64
	}{
		{score: 999, timeMs: 1000},
		{score: -1, timeMs: 1000},
		{score: 5, timeMs: -50},
	}
	for _, tc := range cases {
		if _, err := store.SubmitResult(ctx, b.ID, "alice", tc.score, tc.timeMs); !errors.Is(err, domain.ErrInvalidResult) {
			t.Fatalf("score=%d time=%d: expected invalid result, got %v", tc.score, tc.timeMs, err)
		}
	}
	s, err := store.SubmitResult(ctx, b.ID, "alice", 15, 0)
	if err != nil {
		t.Fatalf("submit at the bound: %v", err)
	}
	if s.ChallengerScore != 15 || s.Finished {
		t.Fatalf("unexpected settlement %+v", s)
	}
}

func TestStoreDrawRefundsBothWagers(t *testing.T) {
	store := newFundedStore(t, clockwork.NewFakeClock(), map[string]int{"alice": 40, "bob": 40})
	b := activeBattle(t, store, 25)
	ctx := context.Background()

	if _, err := store.SubmitResult(ctx, b.ID, "bob", 8, 2000); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	s, err := store.SubmitResult(ctx, b.ID, "alice", 8, 3000)
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if !s.Finished || s.WinnerID != nil {
		t.Fatalf("expected finished draw, got %+v", s)
	}
	if balance(t, store, "alice") != 40 || balance(t, store, "bob") != 40 {
		t.Fatalf("expected refunds, got alice=%d bob=%d", balance(t, store, "alice"), balance(t, store, "bob"))
	}
}

func TestStoreCreateRequiresFunds(t *testing.T) {
	store := newFundedStore(t, clockwork.NewFakeClock(), map[string]int{"alice": 5})
	ctx := context.Background()

	if _, err := store.CreateBattle(ctx, "alice", "bob", 10, ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got, _ := store.PendingChallenges(ctx, "bob", time.Time{}); len(got) != 0 {
		t.Fatalf("failed create must not leave a battle, got %d", len(got))
	}
	if _, err := store.CreateBattle(ctx, "alice", "alice", 0, ""); !errors.Is(err, domain.ErrInvalidWager) {
		t.Fatalf("expected invalid wager for self challenge, got %v", err)
	}
}

func TestStoreJoinErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFundedStore(t, clock, map[string]int{"alice": 100, "bob": 5})
	ctx := context.Background()

	b, err := store.CreateBattle(ctx, "alice", "bob", 10, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.JoinBattle(ctx, b.ID, "carol"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}
	if _, err := store.JoinBattle(ctx, b.ID, "bob"); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := store.JoinBattle(ctx, "missing", "bob"); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.SubmitResult(ctx, b.ID, "bob", 1, 1); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("opponent cannot submit before joining, got %v", err)
	}
}

func TestStoreExpiredInviteRefundsChallenger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFundedStore(t, clock, map[string]int{"alice": 100, "bob": 100})
	ctx := context.Background()

	b, err := store.CreateBattle(ctx, "alice", "bob", 20, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(6 * time.Minute)

	if _, err := store.JoinBattle(ctx, b.ID, "bob"); !errors.Is(err, domain.ErrInviteExpired) {
		t.Fatalf("expected expired invite, got %v", err)
	}
	if balance(t, store, "alice") != 100 || balance(t, store, "bob") != 100 {
		t.Fatalf("expected challenger refunded and opponent untouched")
	}
	if _, err := store.JoinBattle(ctx, b.ID, "bob"); !errors.Is(err, domain.ErrInviteExpired) {
		t.Fatalf("expected expired on retry, got %v", err)
	}
	if got := store.Entries("alice"); got[len(got)-1].Reason != domain.LedgerReasonRefund {
		t.Fatalf("expected refund ledger entry, got %+v", got[len(got)-1])
	}
}

func TestStorePendingChallenges(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFundedStore(t, clock, map[string]int{"alice": 100, "carol": 100})
	ctx := context.Background()

	old, err := store.CreateBattle(ctx, "alice", "bob", 0, "")
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	clock.Advance(10 * time.Minute)
	fresh, err := store.CreateBattle(ctx, "carol", "bob", 5, "")
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	if _, err := store.CreateBattle(ctx, "alice", "carol", 0, ""); err != nil {
		t.Fatalf("create other: %v", err)
	}

	got, err := store.PendingChallenges(ctx, "bob", clock.Now().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh invite, got %+v (old %s)", got, old.ID)
	}
}
