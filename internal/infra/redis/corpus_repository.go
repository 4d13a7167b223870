package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"quiz-battle/internal/corpus"
)

// CorpusLoader fetches a corpus version from a backing store (e.g., Postgres).
type CorpusLoader interface {
	LoadCorpus(ctx context.Context, version string) (corpus.Corpus, error)
}

// CorpusRepository caches whole corpus documents in Redis and falls back to a
// loader on cache miss. Documents are stored as:
// SET quiz-battle:corpus:{version} {json} PX {ttl}
type CorpusRepository struct {
	client *redis.Client
	loader CorpusLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCorpusRepository(client *redis.Client, loader CorpusLoader, ttl time.Duration) *CorpusRepository {
	return &CorpusRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CorpusRepository) GetCorpus(ctx context.Context, version string) (corpus.Corpus, error) {
	if c, ok := r.cached(ctx, version); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(version, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, version); ok {
			return c, nil
		}

		c, err := r.loader.LoadCorpus(ctx, version)
		if err != nil {
			return corpus.Corpus{}, err
		}
		if raw, err := c.Marshal(); err == nil {
			if err := r.client.Set(ctx, r.key(version), raw, r.ttlWithJitter()).Err(); err != nil {
				log.Warn().Err(err).Str("version", version).Msg("corpus cache write failed")
			}
		}
		return c, nil
	})
	if err != nil {
		return corpus.Corpus{}, err
	}
	return result.(corpus.Corpus), nil
}

func (r *CorpusRepository) cached(ctx context.Context, version string) (corpus.Corpus, bool) {
	raw, err := r.client.Get(ctx, r.key(version)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("version", version).Msg("corpus cache read failed")
		}
		return corpus.Corpus{}, false
	}
	c, err := corpus.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("version", version).Msg("dropping unreadable cached corpus")
		_ = r.client.Del(ctx, r.key(version)).Err()
		return corpus.Corpus{}, false
	}
	return c, true
}

func (r *CorpusRepository) key(version string) string {
	return "quiz-battle:corpus:" + version
}

func (r *CorpusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
