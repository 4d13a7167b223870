package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"quiz-battle/internal/domain"
)

// Store is an in-process settlement backend implementing app.Gateway and
// app.Ledger with the same atomicity the SQL functions provide.
type Store struct {
	clock     clockwork.Clock
	inviteTTL time.Duration
	maxScore  int

	mu       sync.Mutex
	battles  map[string]*domain.Battle
	balances map[string]int
	entries  []domain.LedgerEntry
}

// NewStore returns an empty store. Pending invites older than inviteTTL
// expire on join and refund the challenger; zero disables expiry. Submitted
// scores above maxScore are rejected.
func NewStore(clock clockwork.Clock, inviteTTL time.Duration, maxScore int) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:     clock,
		inviteTTL: inviteTTL,
		maxScore:  maxScore,
		battles:   make(map[string]*domain.Battle),
		balances:  make(map[string]int),
	}
}

// CreateBattle debits the challenger's wager and records a pending battle.
// A non-empty seed becomes the battle ID.
func (s *Store) CreateBattle(_ context.Context, challengerID, opponentID string, coinBet int, seed string) (domain.Battle, error) {
	if coinBet < 0 || challengerID == "" || opponentID == "" || challengerID == opponentID {
		return domain.Battle{}, domain.ErrInvalidWager
	}
	id := seed
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.battles[id]; exists {
		return domain.Battle{}, fmt.Errorf("battle %s already exists", id)
	}
	if _, err := s.moveLocked(challengerID, -coinBet, domain.LedgerReasonWager, id); err != nil {
		return domain.Battle{}, err
	}
	b := &domain.Battle{
		ID:           id,
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		CoinBet:      coinBet,
		Status:       domain.BattleStatusPending,
		CreatedAt:    s.clock.Now(),
	}
	s.battles[id] = b
	return *b, nil
}

// JoinBattle debits the opponent's wager and activates the battle.
func (s *Store) JoinBattle(_ context.Context, battleID, userID string) (domain.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[battleID]
	if !ok {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	if userID != b.OpponentID {
		return domain.Battle{}, domain.ErrNotParticipant
	}
	switch b.Status {
	case domain.BattleStatusPending:
	case domain.BattleStatusActive:
		return domain.Battle{}, domain.ErrAlreadyJoined
	case domain.BattleStatusExpired:
		return domain.Battle{}, domain.ErrInviteExpired
	default:
		return domain.Battle{}, domain.ErrBattleNotPending
	}
	if s.inviteTTL > 0 && s.clock.Since(b.CreatedAt) > s.inviteTTL {
		if _, err := s.moveLocked(b.ChallengerID, b.CoinBet, domain.LedgerReasonRefund, b.ID); err != nil {
			return domain.Battle{}, err
		}
		b.Status = domain.BattleStatusExpired
		return domain.Battle{}, domain.ErrInviteExpired
	}
	if _, err := s.moveLocked(userID, -b.CoinBet, domain.LedgerReasonWager, b.ID); err != nil {
		return domain.Battle{}, err
	}
	b.Status = domain.BattleStatusActive
	return *b, nil
}

// SubmitResult records userID's score once. Repeated submissions return the
// current settlement without changing it. The second score completes the
// battle and pays out: the winner takes both wagers, a draw refunds both.
func (s *Store) SubmitResult(_ context.Context, battleID, userID string, score int, timeMs int64) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[battleID]
	if !ok {
		return domain.Settlement{}, domain.ErrBattleNotFound
	}
	if !b.IsParticipant(userID) {
		return domain.Settlement{}, domain.ErrNotParticipant
	}
	switch {
	case b.Status == domain.BattleStatusExpired:
		return domain.Settlement{}, domain.ErrBattleNotActive
	case b.Status == domain.BattleStatusPending && userID == b.OpponentID:
		return domain.Settlement{}, domain.ErrBattleNotActive
	}
	if score < 0 || score > s.maxScore || timeMs < 0 {
		return domain.Settlement{}, domain.ErrInvalidResult
	}

	scoreField, timeField := &b.ChallengerScore, &b.ChallengerTimeMs
	if userID == b.OpponentID {
		scoreField, timeField = &b.OpponentScore, &b.OpponentTimeMs
	}
	if *scoreField != nil {
		return b.Settlement(), nil
	}
	*scoreField, *timeField = &score, &timeMs

	if b.ChallengerScore != nil && b.OpponentScore != nil {
		if err := s.settleLocked(b); err != nil {
			return domain.Settlement{}, err
		}
	}
	return b.Settlement(), nil
}

func (s *Store) settleLocked(b *domain.Battle) error {
	switch c, o := *b.ChallengerScore, *b.OpponentScore; {
	case c > o:
		b.WinnerID = &b.ChallengerID
	case o > c:
		b.WinnerID = &b.OpponentID
	}
	if b.WinnerID != nil {
		if _, err := s.moveLocked(*b.WinnerID, b.CoinBet*2, domain.LedgerReasonPayout, b.ID); err != nil {
			return err
		}
	} else {
		for _, id := range []string{b.ChallengerID, b.OpponentID} {
			if _, err := s.moveLocked(id, b.CoinBet, domain.LedgerReasonRefund, b.ID); err != nil {
				return err
			}
		}
	}
	b.Status = domain.BattleStatusCompleted
	return nil
}

// BattleStatus returns the current settlement view.
func (s *Store) BattleStatus(_ context.Context, battleID string) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[battleID]
	if !ok {
		return domain.Settlement{}, domain.ErrBattleNotFound
	}
	return b.Settlement(), nil
}

// Battle returns a copy of the stored record.
func (s *Store) Battle(battleID string) (domain.Battle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[battleID]
	if !ok {
		return domain.Battle{}, false
	}
	return *b, true
}

// PendingChallenges lists pending invites for userID created at or after since, newest first.
func (s *Store) PendingChallenges(_ context.Context, userID string, since time.Time) ([]domain.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Battle
	for _, b := range s.battles {
		if b.OpponentID == userID && b.Status == domain.BattleStatusPending && !b.CreatedAt.Before(since) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DebitCoins removes amount from userID's balance, failing with
// ErrInsufficientFunds rather than going negative.
func (s *Store) DebitCoins(_ context.Context, userID string, amount int, reason, reference string) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidWager
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(userID, -amount, reason, reference)
}

// CreditCoins adds amount to userID's balance.
func (s *Store) CreditCoins(_ context.Context, userID string, amount int, reason, reference string) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidWager
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(userID, amount, reason, reference)
}

// Balance returns userID's coins.
func (s *Store) Balance(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

// Entries returns userID's ledger history, oldest first.
func (s *Store) Entries(userID string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) moveLocked(userID string, delta int, reason, reference string) (int, error) {
	if delta == 0 {
		return s.balances[userID], nil
	}
	next := s.balances[userID] + delta
	if next < 0 {
		return s.balances[userID], domain.ErrInsufficientFunds
	}
	s.balances[userID] = next
	s.entries = append(s.entries, domain.LedgerEntry{
		UserID:    userID,
		Amount:    delta,
		Reason:    reason,
		Reference: reference,
		Balance:   next,
		CreatedAt: s.clock.Now(),
	})
	return next, nil
}
