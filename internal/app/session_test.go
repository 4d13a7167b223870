package app

import (
	"sync"
	"testing"
	"time"

	"quiz-battle/internal/domain"
)

func newTestSession() *Session {
	battle := domain.Battle{ID: "b1", ChallengerID: "alice", OpponentID: "bob"}
	now := time.Unix(1_700_000_000, 0)
	return newSession(battle, "alice", sampleQuestions(), func() time.Time { return now })
}

func TestSessionSubscribeReceivesUpdates(t *testing.T) {
	s := newTestSession()
	ch, cancel := s.Subscribe()
	defer cancel()

	if snap := <-ch; snap.Phase != PhaseJoined || snap.Total != 3 || snap.BattleID != "b1" {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}

	s.setPhase(PhaseInProgress)
	if snap := <-ch; snap.Phase != PhaseInProgress {
		t.Fatalf("expected in progress, got %s", snap.Phase)
	}

	s.applyRound(Round{Index: 2, Score: 1, TotalTime: 3500 * time.Millisecond})
	snap := <-ch
	if snap.CurrentIndex != 2 || snap.Score != 1 || snap.TotalTimeMs != 3500 {
		t.Fatalf("unexpected round snapshot %+v", snap)
	}
}

func TestSessionOpponentUpdatesAreAdvisory(t *testing.T) {
	s := newTestSession()

	if s.applyOpponent(domain.ScoreUpdate{UserID: "carol", Score: 9, QuestionIndex: 9}, false) {
		t.Fatalf("update from a stranger must be ignored")
	}
	if !s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 4, QuestionIndex: 6}, false) {
		t.Fatalf("expected opponent update applied")
	}
	// reordered delivery of an older update
	if s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 2, QuestionIndex: 3}, false) {
		t.Fatalf("stale update must be dropped")
	}
	if got := s.Snapshot(); got.OpponentScore != 4 || got.OpponentFinished {
		t.Fatalf("unexpected opponent mirror %+v", got)
	}

	s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 5, QuestionIndex: 3}, true)
	if got := s.Snapshot(); got.OpponentScore != 5 || !got.OpponentFinished {
		t.Fatalf("expected finished opponent with score 5, got %+v", got)
	}
}

func TestSessionCloseReleasesSubscribers(t *testing.T) {
	s := newTestSession()
	ch, cancel := s.Subscribe()
	<-ch
	s.close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	cancel()

	late, _ := s.Subscribe()
	if _, ok := <-late; !ok {
		t.Fatalf("late subscriber should get the final snapshot")
	}
	if _, ok := <-late; ok {
		t.Fatalf("late subscriber channel should be closed")
	}
	s.setPhase(PhaseAbandoned)
	if s.Snapshot().Phase == PhaseAbandoned {
		t.Fatalf("closed session must not change phase")
	}
}

func TestSessionSlowSubscriberGetsLatest(t *testing.T) {
	s := newTestSession()
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		s.applyRound(Round{Index: i % 4, Score: 0})
	}
	s.applyRound(Round{Index: 3, Score: 3})
	var last Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Score != 3 {
		t.Fatalf("expected latest snapshot retained, got %+v", last)
	}
}

type opponentView struct {
	NopView
	mu    sync.Mutex
	snaps []Snapshot
}

func (v *opponentView) OnOpponent(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snaps = append(v.snaps, s)
}

func TestWatchOpponentForwardsOnlyOpponentChanges(t *testing.T) {
	s := newTestSession()
	view := &opponentView{}
	stop := watchOpponent(s, view)

	s.setPhase(PhaseInProgress)
	s.applyRound(Round{Index: 1, Score: 1})
	s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 0, QuestionIndex: 0}, false)
	s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 3, QuestionIndex: 2}, true)
	stop()

	if len(view.snaps) != 2 {
		t.Fatalf("expected 2 opponent updates, got %d: %+v", len(view.snaps), view.snaps)
	}
	if first := view.snaps[0]; first.OpponentIndex != 0 || first.OpponentScore != 0 {
		t.Fatalf("unexpected first update %+v", first)
	}
	if last := view.snaps[1]; !last.OpponentFinished || last.OpponentScore != 3 {
		t.Fatalf("unexpected final update %+v", last)
	}

	s.applyOpponent(domain.ScoreUpdate{UserID: "bob", Score: 3, QuestionIndex: 3}, true)
	if len(view.snaps) != 2 {
		t.Fatalf("stopped watcher must not forward")
	}
	s.close()
}

func TestConfigWithDefaultsReplacesUnusableSettings(t *testing.T) {
	cfg := Config{Countdown: -time.Second, PollInterval: -time.Second, SubmitAttempts: -2}.withDefaults()
	def := DefaultConfig()
	if cfg.PollInterval != def.PollInterval || cfg.WaitCeiling != def.WaitCeiling || cfg.SubmitBackoff != def.SubmitBackoff {
		t.Fatalf("expected default intervals, got %+v", cfg)
	}
	if cfg.Countdown != 0 || cfg.SubmitAttempts != 1 {
		t.Fatalf("unexpected countdown %s attempts %d", cfg.Countdown, cfg.SubmitAttempts)
	}
	if cfg.Questions != def.Questions || cfg.PerKindCap != def.PerKindCap || cfg.CorpusVersion != def.CorpusVersion {
		t.Fatalf("expected default sharding, got %+v", cfg)
	}
}
