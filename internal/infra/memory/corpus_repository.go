package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"quiz-battle/internal/corpus"
	"quiz-battle/internal/domain"
)

// CorpusLoader fetches a corpus version from a backing store (e.g., Postgres).
type CorpusLoader interface {
	LoadCorpus(ctx context.Context, version string) (corpus.Corpus, error)
}

// CorpusRepository caches corpora with TTL to avoid repeated backing store hits.
type CorpusRepository struct {
	loader CorpusLoader
	ttl    time.Duration
	clock  clockwork.Clock
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCorpus
}

type cachedCorpus struct {
	corpus    corpus.Corpus
	expiresAt time.Time
}

func NewCorpusRepository(loader CorpusLoader, ttl time.Duration) *CorpusRepository {
	return NewCorpusRepositoryWithClock(loader, ttl, clockwork.NewRealClock())
}

func NewCorpusRepositoryWithClock(loader CorpusLoader, ttl time.Duration, clock clockwork.Clock) *CorpusRepository {
	return &CorpusRepository{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCorpus),
	}
}

func (r *CorpusRepository) GetCorpus(ctx context.Context, version string) (corpus.Corpus, error) {
	now := r.clock.Now()

	r.mu.RLock()
	if entry, ok := r.cache[version]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.corpus, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(version, func() (interface{}, error) {
		now := r.clock.Now()
		r.mu.RLock()
		if entry, ok := r.cache[version]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.corpus, nil
		}
		r.mu.RUnlock()

		c, err := r.loader.LoadCorpus(ctx, version)
		if err != nil {
			return corpus.Corpus{}, err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[version] = cachedCorpus{corpus: c, expiresAt: expiresAt}
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return corpus.Corpus{}, err
	}
	return result.(corpus.Corpus), nil
}

// StaticCorpusLoader serves corpora held in memory (the embedded default, tests, demos).
type StaticCorpusLoader struct {
	corpora map[string]corpus.Corpus
}

func NewStaticCorpusLoader(corpora ...corpus.Corpus) *StaticCorpusLoader {
	l := &StaticCorpusLoader{corpora: make(map[string]corpus.Corpus, len(corpora))}
	for _, c := range corpora {
		l.corpora[c.Version] = c
	}
	return l
}

func (l *StaticCorpusLoader) LoadCorpus(_ context.Context, version string) (corpus.Corpus, error) {
	if c, ok := l.corpora[version]; ok {
		return c, nil
	}
	return corpus.Corpus{}, domain.ErrCorpusNotFound
}

func (r *CorpusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
