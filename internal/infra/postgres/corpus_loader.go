package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle/internal/corpus"
	"quiz-battle/internal/domain"
)

// CorpusLoader loads corpus JSONB from Postgres.
type CorpusLoader struct {
	pool *pgxpool.Pool
}

func NewCorpusLoader(pool *pgxpool.Pool) *CorpusLoader {
	return &CorpusLoader{pool: pool}
}

func (l *CorpusLoader) LoadCorpus(ctx context.Context, version string) (corpus.Corpus, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_corpus WHERE version=$1`, version).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return corpus.Corpus{}, fmt.Errorf("%w: %s", domain.ErrCorpusNotFound, version)
	}
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("load corpus: %w", err)
	}
	c, err := corpus.Parse(raw)
	if err != nil {
		return corpus.Corpus{}, err
	}
	if c.Version != version {
		return corpus.Corpus{}, fmt.Errorf("corpus row %s holds version %s", version, c.Version)
	}
	return c, nil
}
