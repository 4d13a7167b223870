package domain

import "errors"

var (
	// ErrBattleNotFound is returned when the remote store has no record for a battle ID.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrInsufficientFunds is returned when a wager cannot be debited.
	ErrInsufficientFunds = errors.New("insufficient coin balance")
	// ErrInvalidWager rejects negative bets or a challenge against oneself.
	ErrInvalidWager = errors.New("invalid battle wager")
	// ErrBattleNotPending is returned when joining a battle that is already active or completed.
	ErrBattleNotPending = errors.New("battle is not pending")
	// ErrAlreadyJoined is returned when the opponent joins the same battle twice.
	ErrAlreadyJoined = errors.New("battle already joined")
	// ErrInviteExpired is returned when joining a pending battle past its invite window.
	ErrInviteExpired = errors.New("battle invite expired")
	// ErrNotParticipant is returned when a user acts on a battle they are not part of.
	ErrNotParticipant = errors.New("user is not a participant in this battle")
	// ErrBattleNotActive is returned when a result is submitted for a battle that never started.
	ErrBattleNotActive = errors.New("battle is not active")
	// ErrInvalidResult rejects a negative score or time, or a score above the question count.
	ErrInvalidResult = errors.New("battle result out of range")
	// ErrSessionActive enforces a single live battle session per user.
	ErrSessionActive = errors.New("another battle session is already active")
	// ErrOpponentTimeout is returned when the wait ceiling elapses before the opponent finishes.
	ErrOpponentTimeout = errors.New("timed out waiting for opponent")
	// ErrSettlementUnconfirmed means the submit RPC kept failing after the bounded retries.
	ErrSettlementUnconfirmed = errors.New("battle result submission unconfirmed")
	// ErrSettlementMismatch flags a remote winner that disagrees with the remote scores.
	ErrSettlementMismatch = errors.New("settlement winner disagrees with scores")
	// ErrUnknownQuestionKind is returned for a question variant the evaluator does not handle.
	ErrUnknownQuestionKind = errors.New("unknown question kind")
	// ErrCorpusNotFound indicates the requested corpus version could not be loaded.
	ErrCorpusNotFound = errors.New("question corpus not found")
	// ErrEmptyCorpus is returned when no questions are available to shard.
	ErrEmptyCorpus = errors.New("question corpus is empty")
	// ErrRealtimeUnavailable is returned by broadcasters that cannot reach their transport.
	ErrRealtimeUnavailable = errors.New("realtime transport unavailable")
)
