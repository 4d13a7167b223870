package app

import (
	"sync"
	"time"

	"quiz-battle/internal/domain"
)

// Phase is the battle lifecycle state seen by one participant.
type Phase string

const (
	PhaseJoined          Phase = "joined"
	PhaseCountdown       Phase = "countdown"
	PhaseInProgress      Phase = "in_progress"
	PhaseLocallyFinished Phase = "locally_finished"
	PhaseWaiting         Phase = "waiting_for_opponent"
	PhaseSettled         Phase = "settled"
	PhaseResultsShown    Phase = "results_shown"
	PhaseAbandoned       Phase = "abandoned"
)

// Snapshot is a point-in-time copy of the session mirror.
type Snapshot struct {
	BattleID         string    `json:"battleId"`
	Phase            Phase     `json:"phase"`
	CurrentIndex     int       `json:"currentIndex"`
	Total            int       `json:"total"`
	Score            int       `json:"score"`
	TotalTimeMs      int64     `json:"totalTimeMs"`
	OpponentIndex    int       `json:"opponentIndex"`
	OpponentScore    int       `json:"opponentScore"`
	OpponentFinished bool      `json:"opponentFinished"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Session is one participant's disposable mirror of a battle. It is never
// consulted for settlement; the opponent fields are advisory display values.
type Session struct {
	battleID   string
	selfID     string
	opponentID string
	questions  []domain.Question
	now        func() time.Time

	mu               sync.RWMutex
	phase            Phase
	currentIndex     int
	score            int
	totalTime        time.Duration
	opponentScore    int
	opponentIndex    int
	opponentFinished bool
	closed           bool
	subscribers      map[chan Snapshot]struct{}
}

func newSession(battle domain.Battle, selfID string, questions []domain.Question, now func() time.Time) *Session {
	return &Session{
		battleID:      battle.ID,
		selfID:        selfID,
		opponentID:    battle.OpponentOf(selfID),
		questions:     questions,
		now:           now,
		phase:         PhaseJoined,
		opponentIndex: -1,
		subscribers:   make(map[chan Snapshot]struct{}),
	}
}

// Questions returns the sharded question list.
func (s *Session) Questions() []domain.Question { return s.questions }

// Snapshot returns the current mirror state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of mirror updates, primed with the current
// state. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.phase = p
	s.broadcastLocked()
}

func (s *Session) applyRound(r Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentIndex = r.Index
	s.score = r.Score
	s.totalTime = r.TotalTime
	s.broadcastLocked()
}

// applyOpponent folds a realtime update into the mirror. Updates older than
// the last one seen are dropped so reordering never moves the display backwards.
func (s *Session) applyOpponent(u domain.ScoreUpdate, finished bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.UserID != s.opponentID {
		return false
	}
	if u.QuestionIndex < s.opponentIndex && !finished {
		return false
	}
	if u.QuestionIndex > s.opponentIndex {
		s.opponentIndex = u.QuestionIndex
	}
	if u.Score > s.opponentScore || finished {
		s.opponentScore = u.Score
	}
	if finished {
		s.opponentFinished = true
	}
	s.broadcastLocked()
	return true
}

// close ends the session and releases every subscriber.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot; a slow renderer only needs the latest.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		BattleID:         s.battleID,
		Phase:            s.phase,
		CurrentIndex:     s.currentIndex,
		Total:            len(s.questions),
		Score:            s.score,
		TotalTimeMs:      s.totalTime.Milliseconds(),
		OpponentIndex:    s.opponentIndex,
		OpponentScore:    s.opponentScore,
		OpponentFinished: s.opponentFinished,
		UpdatedAt:        s.now(),
	}
}
