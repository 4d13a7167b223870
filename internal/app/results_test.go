package app

import (
	"errors"
	"testing"

	"quiz-battle/internal/domain"
)

func settlement(challenger, opponent int, winner *string) domain.Settlement {
	return domain.Settlement{
		BattleID:         "b1",
		Finished:         true,
		Status:           domain.BattleStatusCompleted,
		WinnerID:         winner,
		ChallengerID:     "alice",
		OpponentID:       "bob",
		ChallengerScore:  challenger,
		OpponentScore:    opponent,
		ChallengerTimeMs: 40_000,
		OpponentTimeMs:   38_000,
		CoinBet:          25,
	}
}

func ptr(s string) *string { return &s }

func TestReconcileOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		s        domain.Settlement
		self     string
		outcome  Outcome
		credited int
		lost     int
		headline string
	}{
		{"challenger wins", settlement(10, 7, ptr("alice")), "alice", OutcomeWin, 50, 0, "You won! +50 coins"},
		{"opponent view of loss", settlement(10, 7, ptr("alice")), "bob", OutcomeLoss, 0, 25, "You lost 25 coins"},
		{"opponent wins", settlement(3, 11, ptr("bob")), "bob", OutcomeWin, 50, 0, "You won! +50 coins"},
		{"draw refunds", settlement(8, 8, nil), "alice", OutcomeDraw, 25, 0, "Draw, wager refunded"},
		{"draw from the other side", settlement(8, 8, nil), "bob", OutcomeDraw, 25, 0, "Draw, wager refunded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Reconcile(tc.s, tc.self)
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if r.Outcome != tc.outcome || r.CoinsCredited != tc.credited || r.CoinsLost != tc.lost || r.Headline != tc.headline {
				t.Fatalf("unexpected result %+v", r)
			}
		})
	}
}

func TestReconcileUsesRemoteScores(t *testing.T) {
	r, err := Reconcile(settlement(6, 9, ptr("bob")), "bob")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.SelfScore != 9 || r.OpponentScore != 6 || r.SelfTimeMs != 38_000 || r.OpponentID != "alice" {
		t.Fatalf("scores not taken from the record: %+v", r)
	}
}

func TestReconcileFreeBattle(t *testing.T) {
	s := settlement(5, 5, nil)
	s.CoinBet = 0
	r, err := Reconcile(s, "alice")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.Outcome != OutcomeDraw || r.Headline != "Draw" || r.CoinsCredited != 0 {
		t.Fatalf("unexpected free draw %+v", r)
	}
}

func TestReconcilePending(t *testing.T) {
	s := settlement(9, 0, nil)
	s.Finished = false
	s.Status = domain.BattleStatusActive
	r, err := Reconcile(s, "alice")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.Outcome != OutcomePending || r.SelfScore != 9 {
		t.Fatalf("expected pending with own score, got %+v", r)
	}
}

func TestReconcileWinnerMismatch(t *testing.T) {
	r, err := Reconcile(settlement(8, 8, ptr("alice")), "alice")
	if !errors.Is(err, domain.ErrSettlementMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if r.Outcome != OutcomeWin {
		t.Fatalf("remote winner should be shown, got %s", r.Outcome)
	}
}

func TestReconcileRejectsStranger(t *testing.T) {
	if _, err := Reconcile(settlement(1, 2, ptr("bob")), "carol"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}
}
