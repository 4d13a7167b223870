package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-battle/internal/app"
	"quiz-battle/internal/config"
	"quiz-battle/internal/corpus"
	"quiz-battle/internal/infra/memory"
)

type practiceOptions struct {
	user       string
	difficulty string
	self       string
	bet        int
	seed       int64
}

// NewPracticeCmd plays a local battle against an AI opponent on the
// in-process backend. The local side is driven by a bot too, so the whole
// lifecycle can be watched from a terminal.
func NewPracticeCmd(configPath *string) *cobra.Command {
	opts := practiceOptions{}
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Watch a practice battle against an AI opponent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if opts.seed == 0 {
				opts.seed = time.Now().UnixNano()
			}
			result, err := runPractice(cmd.Context(), cfg, opts, newConsoleView(cmd.OutOrStdout(), opts.user))
			if err != nil {
				return err
			}
			log.Info().Str("battle_id", result.BattleID).Str("outcome", string(result.Outcome)).Msg("practice finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "you", "local player name")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", string(app.DifficultyMedium), "opponent difficulty: easy, medium or hard")
	cmd.Flags().StringVar(&opts.self, "self-difficulty", string(app.DifficultyMedium), "difficulty of the bot playing the local side")
	cmd.Flags().IntVar(&opts.bet, "bet", 10, "coins wagered by each side")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "bot seed (0 picks one)")
	return cmd
}

func runPractice(ctx context.Context, cfg config.Config, opts practiceOptions, view app.View) (app.Result, error) {
	const opponentID = "practice-bot"
	appCfg := cfg.Controller()
	clock := clockwork.NewRealClock()

	opponentProfile, err := app.ProfileFor(app.Difficulty(opts.difficulty))
	if err != nil {
		return app.Result{}, err
	}
	selfProfile, err := app.ProfileFor(app.Difficulty(opts.self))
	if err != nil {
		return app.Result{}, err
	}
	def, err := corpus.Default()
	if err != nil {
		return app.Result{}, err
	}
	appCfg.CorpusVersion = def.Version

	store := memory.NewStore(clock, appCfg.InviteTTL, appCfg.Questions)
	for _, id := range []string{opts.user, opponentID} {
		if _, err := store.CreditCoins(ctx, id, opts.bet, "practice_grant", ""); err != nil {
			return app.Result{}, err
		}
	}
	ctrl := app.NewController(store,
		memory.NewCorpusRepository(memory.NewStaticCorpusLoader(def), time.Hour),
		memory.NewSessionRegistry(),
		app.WithClock(clock),
		app.WithConfig(appCfg),
		app.WithTransport(memory.NewHub()),
	)

	battle, err := ctrl.CreateBattle(ctx, opts.user, opponentID, opts.bet)
	if err != nil {
		return app.Result{}, err
	}
	if battle, err = ctrl.JoinBattle(ctx, battle.ID, opponentID); err != nil {
		return app.Result{}, err
	}

	var mine app.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := ctrl.Play(gctx, battle, opts.user, app.NewBot(selfProfile, clock, opts.seed), view)
		mine = r
		return err
	})
	g.Go(func() error {
		_, err := ctrl.Play(gctx, battle, opponentID, app.NewBot(opponentProfile, clock, opts.seed+1), app.NopView{})
		return err
	})
	if err := g.Wait(); err != nil {
		return mine, fmt.Errorf("practice battle %s: %w", battle.ID, err)
	}
	return mine, nil
}

