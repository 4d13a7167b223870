package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/domain"
)

// releaseScript deletes the slot only while it still names the releasing battle.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionRegistry enforces one live battle session per user across processes.
// Slots expire after ttl so a crashed client cannot lock its user out.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{client: client, ttl: ttl}
}

func (s *SessionRegistry) Acquire(ctx context.Context, userID, battleID string) error {
	ok, err := s.client.SetNX(ctx, s.key(userID), battleID, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire session slot: %w", err)
	}
	if !ok {
		return domain.ErrSessionActive
	}
	return nil
}

func (s *SessionRegistry) Release(ctx context.Context, userID, battleID string) {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(userID)}, battleID).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("battle_id", battleID).Msg("release session slot failed")
	}
}

func (s *SessionRegistry) key(userID string) string {
	return "quiz-battle:session:" + userID
}
