package migrations

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"quiz-battle/internal/corpus"
)

//go:embed 0001_create_quiz_battles.sql
var createQuizBattlesSQL string

//go:embed 0001_drop_quiz_battles.sql
var dropQuizBattlesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createQuizBattlesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropQuizBattlesSQL)
			return err
		},
	)
}

// SeedCorpus upserts a corpus version so clients can load it by version.
func SeedCorpus(ctx context.Context, db *bun.DB, c corpus.Corpus) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshal corpus %s: %w", c.Version, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO question_corpus (version, data) VALUES (?, ?::jsonb)
		 ON CONFLICT (version) DO UPDATE SET data = EXCLUDED.data`,
		c.Version, string(data),
	)
	if err != nil {
		return fmt.Errorf("seed corpus %s: %w", c.Version, err)
	}
	return nil
}
