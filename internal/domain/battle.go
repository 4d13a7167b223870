package domain

import "time"

// BattleStatus moves forward only: pending -> active -> completed. A pending
// invite that lapses moves to expired once its wager is refunded.
type BattleStatus string

const (
	BattleStatusPending   BattleStatus = "pending"
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusExpired   BattleStatus = "expired"
)

// Battle is the authoritative head-to-head record owned by the remote store.
type Battle struct {
	ID               string       `json:"id"`
	ChallengerID     string       `json:"challengerId"`
	OpponentID       string       `json:"opponentId"`
	CoinBet          int          `json:"coinBet"`
	Status           BattleStatus `json:"status"`
	ChallengerScore  *int         `json:"challengerScore,omitempty"`
	OpponentScore    *int         `json:"opponentScore,omitempty"`
	ChallengerTimeMs *int64       `json:"challengerTimeMs,omitempty"`
	OpponentTimeMs   *int64       `json:"opponentTimeMs,omitempty"`
	WinnerID         *string      `json:"winnerId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// IsParticipant reports whether userID is one of the two sides.
func (b Battle) IsParticipant(userID string) bool {
	return userID != "" && (userID == b.ChallengerID || userID == b.OpponentID)
}

// OpponentOf returns the other side of the battle for userID.
func (b Battle) OpponentOf(userID string) string {
	if userID == b.ChallengerID {
		return b.OpponentID
	}
	return b.ChallengerID
}

// Settlement projects the record into the shape returned by the submit and status RPCs.
func (b Battle) Settlement() Settlement {
	s := Settlement{
		BattleID:     b.ID,
		Finished:     b.Status == BattleStatusCompleted,
		Status:       b.Status,
		WinnerID:     b.WinnerID,
		ChallengerID: b.ChallengerID,
		OpponentID:   b.OpponentID,
		CoinBet:      b.CoinBet,
	}
	if b.ChallengerScore != nil {
		s.ChallengerScore = *b.ChallengerScore
	}
	if b.OpponentScore != nil {
		s.OpponentScore = *b.OpponentScore
	}
	if b.ChallengerTimeMs != nil {
		s.ChallengerTimeMs = *b.ChallengerTimeMs
	}
	if b.OpponentTimeMs != nil {
		s.OpponentTimeMs = *b.OpponentTimeMs
	}
	return s
}

// Settlement is the remote view of a battle outcome. Scores are only
// meaningful once Finished is true.
type Settlement struct {
	BattleID         string       `json:"battleId"`
	Finished         bool         `json:"finished"`
	Status           BattleStatus `json:"status"`
	WinnerID         *string      `json:"winnerId,omitempty"`
	ChallengerID     string       `json:"challengerId"`
	OpponentID       string       `json:"opponentId"`
	ChallengerScore  int          `json:"challengerScore"`
	OpponentScore    int          `json:"opponentScore"`
	ChallengerTimeMs int64        `json:"challengerTimeMs"`
	OpponentTimeMs   int64        `json:"opponentTimeMs"`
	CoinBet          int          `json:"coinBet"`
}

// ScoreFor returns the score and time recorded for userID.
func (s Settlement) ScoreFor(userID string) (int, int64) {
	if userID == s.ChallengerID {
		return s.ChallengerScore, s.ChallengerTimeMs
	}
	return s.OpponentScore, s.OpponentTimeMs
}

// LedgerEntry is a single coin movement recorded by the ledger.
type LedgerEntry struct {
	UserID    string    `json:"userId"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ledger reasons used by the settlement backends.
const (
	LedgerReasonWager  = "quiz_battle_wager"
	LedgerReasonPayout = "quiz_battle_payout"
	LedgerReasonRefund = "quiz_battle_refund"
)
