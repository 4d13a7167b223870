package app

import (
	"fmt"

	"quiz-battle/internal/domain"
)

// Outcome is a battle result from one participant's point of view.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeDraw    Outcome = "draw"
	OutcomePending Outcome = "pending"
)

// Result is what the result view renders.
type Result struct {
	BattleID       string  `json:"battleId"`
	SelfID         string  `json:"selfId"`
	OpponentID     string  `json:"opponentId"`
	Outcome        Outcome `json:"outcome"`
	SelfScore      int     `json:"selfScore"`
	OpponentScore  int     `json:"opponentScore"`
	SelfTimeMs     int64   `json:"selfTimeMs"`
	OpponentTimeMs int64   `json:"opponentTimeMs"`
	CoinBet        int     `json:"coinBet"`
	// CoinsCredited is the pot on a win and the refunded wager on a draw.
	CoinsCredited int    `json:"coinsCredited"`
	CoinsLost     int    `json:"coinsLost"`
	Headline      string `json:"headline"`
}

// Reconcile turns an authoritative settlement into a result for selfID. The
// outcome comes from the remote scores, never from the local mirror. When the
// remote winner disagrees with those scores the remote winner is shown and
// ErrSettlementMismatch is returned alongside the result.
func Reconcile(s domain.Settlement, selfID string) (Result, error) {
	if selfID != s.ChallengerID && selfID != s.OpponentID {
		return Result{}, fmt.Errorf("reconcile battle %s: %w", s.BattleID, domain.ErrNotParticipant)
	}
	opponentID := s.OpponentID
	if selfID == s.OpponentID {
		opponentID = s.ChallengerID
	}
	selfScore, selfTime := s.ScoreFor(selfID)
	oppScore, oppTime := s.ScoreFor(opponentID)

	r := Result{
		BattleID:       s.BattleID,
		SelfID:         selfID,
		OpponentID:     opponentID,
		SelfScore:      selfScore,
		OpponentScore:  oppScore,
		SelfTimeMs:     selfTime,
		OpponentTimeMs: oppTime,
		CoinBet:        s.CoinBet,
	}
	if !s.Finished {
		r.Outcome = OutcomePending
		r.Headline = "Waiting for opponent to finish"
		return r, nil
	}

	switch {
	case selfScore > oppScore:
		r.Outcome = OutcomeWin
	case selfScore < oppScore:
		r.Outcome = OutcomeLoss
	default:
		r.Outcome = OutcomeDraw
	}

	var err error
	if remote := outcomeFromWinner(s.WinnerID, selfID); remote != r.Outcome {
		err = fmt.Errorf("battle %s: scores %d-%d imply %s, winner says %s: %w",
			s.BattleID, selfScore, oppScore, r.Outcome, remote, domain.ErrSettlementMismatch)
		r.Outcome = remote
	}

	switch r.Outcome {
	case OutcomeWin:
		r.CoinsCredited = s.CoinBet * 2
		r.Headline = "You won!"
		if s.CoinBet > 0 {
			r.Headline = fmt.Sprintf("You won! +%d coins", r.CoinsCredited)
		}
	case OutcomeLoss:
		r.CoinsLost = s.CoinBet
		r.Headline = "You lost"
		if s.CoinBet > 0 {
			r.Headline = fmt.Sprintf("You lost %d coins", r.CoinsLost)
		}
	case OutcomeDraw:
		r.CoinsCredited = s.CoinBet
		r.Headline = "Draw"
		if s.CoinBet > 0 {
			r.Headline = "Draw, wager refunded"
		}
	}
	return r, err
}

func outcomeFromWinner(winnerID *string, selfID string) Outcome {
	switch {
	case winnerID == nil || *winnerID == "":
		return OutcomeDraw
	case *winnerID == selfID:
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}
