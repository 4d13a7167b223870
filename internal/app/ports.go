package app

import (
	"context"
	"time"

	"quiz-battle/internal/corpus"
	"quiz-battle/internal/domain"
)

// Gateway is the remote battle store. Every call is authoritative; the
// submit call is idempotent per user per battle.
type Gateway interface {
	CreateBattle(ctx context.Context, challengerID, opponentID string, coinBet int, seed string) (domain.Battle, error)
	JoinBattle(ctx context.Context, battleID, userID string) (domain.Battle, error)
	SubmitResult(ctx context.Context, battleID, userID string, score int, timeMs int64) (domain.Settlement, error)
	BattleStatus(ctx context.Context, battleID string) (domain.Settlement, error)
	PendingChallenges(ctx context.Context, userID string, since time.Time) ([]domain.Battle, error)
}

// Ledger is the remote coin ledger.
type Ledger interface {
	DebitCoins(ctx context.Context, userID string, amount int, reason, reference string) (int, error)
	CreditCoins(ctx context.Context, userID string, amount int, reason, reference string) (int, error)
	Balance(ctx context.Context, userID string) (int, error)
}

// CorpusRepository loads a corpus version (from cache/backing store).
type CorpusRepository interface {
	GetCorpus(ctx context.Context, version string) (corpus.Corpus, error)
}

// SessionRegistry enforces at most one live battle session per user.
type SessionRegistry interface {
	Acquire(ctx context.Context, userID, battleID string) error
	Release(ctx context.Context, userID, battleID string)
}

// Transport opens a subscription on a named pub/sub channel.
type Transport interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one participant's attachment to a channel. Messages is
// closed once the subscription is closed or the transport drops it.
type Subscription interface {
	Publish(ctx context.Context, msg domain.ChannelMessage) error
	Messages() <-chan domain.ChannelMessage
	Close() error
}
