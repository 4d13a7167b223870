package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"quiz-battle/internal/app"
	"quiz-battle/internal/config"
	"quiz-battle/internal/corpus"
	"quiz-battle/internal/infra/memory"
	natsinfra "quiz-battle/internal/infra/nats"
	"quiz-battle/internal/infra/postgres"
	redisinfra "quiz-battle/internal/infra/redis"
	transport "quiz-battle/internal/transport/http"
)

const defaultCacheTTL = 10 * time.Minute

// backend is the set of collaborators a command needs, chosen from config:
// Postgres when postgres.url is set (memory otherwise), Redis caches and
// session slots when redis.addr is set, and the realtime driver.
type backend struct {
	gateway   app.Gateway
	ledger    app.Ledger
	corpora   app.CorpusRepository
	sessions  app.SessionRegistry
	transport app.Transport
	closers   []func()
}

func openBackend(ctx context.Context, cfg config.Config, userID string) (*backend, error) {
	appCfg := cfg.Controller()
	b := &backend{}

	var loader memory.CorpusLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		gw := postgres.NewGateway(pool, appCfg.InviteTTL, appCfg.Questions)
		b.gateway, b.ledger = gw, gw
		loader = postgres.NewCorpusLoader(pool)
	} else {
		store := memory.NewStore(clockwork.NewRealClock(), appCfg.InviteTTL, appCfg.Questions)
		b.gateway, b.ledger = store, store
		def, err := corpus.Default()
		if err != nil {
			return nil, err
		}
		loader = memory.NewStaticCorpusLoader(def)
	}

	corpusTTL := config.TTLDuration(cfg.Corpus.TTL, defaultCacheTTL)
	client := newRedisClient(cfg)
	if client != nil {
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.corpora = redisinfra.NewCorpusRepository(client, loader, corpusTTL)
		b.sessions = redisinfra.NewSessionRegistry(client, config.TTLDuration(cfg.Redis.TTL, defaultCacheTTL))
	} else {
		b.corpora = memory.NewCorpusRepository(loader, corpusTTL)
		b.sessions = memory.NewSessionRegistry()
	}

	t, closeTransport, err := openTransport(cfg, client, userID)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.transport = t
	b.closers = append(b.closers, closeTransport)
	return b, nil
}

func (b *backend) controller(cfg config.Config) *app.Controller {
	return app.NewController(b.gateway, b.corpora, b.sessions,
		app.WithConfig(cfg.Controller()),
		app.WithTransport(b.transport),
	)
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// openTransport builds the realtime transport named by realtime.driver.
func openTransport(cfg config.Config, client *redis.Client, userID string) (app.Transport, func(), error) {
	noop := func() {}
	switch driver := strings.ToLower(cfg.Realtime.Driver); driver {
	case "", "memory":
		return memory.NewHub(), noop, nil
	case "redis":
		if client == nil {
			return nil, nil, fmt.Errorf("realtime driver redis needs redis.addr")
		}
		return redisinfra.NewPubSub(client), noop, nil
	case "nats":
		if cfg.NATS.URL == "" {
			return nil, nil, fmt.Errorf("realtime driver nats needs nats.url")
		}
		nc, err := natsinfra.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, nil, err
		}
		return natsinfra.NewPubSub(nc), nc.Close, nil
	case "websocket":
		if cfg.Realtime.RelayURL == "" {
			return nil, nil, fmt.Errorf("realtime driver websocket needs realtime.relay_url")
		}
		return transport.NewClient(cfg.Realtime.RelayURL, userID), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown realtime driver %q", driver)
	}
}
