package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewChallengeCmd creates a battle and, with --bot, plays the challenger side.
func NewChallengeCmd(configPath *string) *cobra.Command {
	var (
		from, to, difficulty string
		bet                  int
	)
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Invite a user to a quiz battle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg, from)
			if err != nil {
				return err
			}
			defer b.Close()
			ctrl := b.controller(cfg)

			battle, err := ctrl.CreateBattle(ctx, from, to, bet)
			if err != nil {
				return err
			}
			log.Info().Str("battle_id", battle.ID).Str("opponent", to).Int("coin_bet", bet).Msg("battle created")
			if difficulty == "" {
				return printJSON(cmd.OutOrStdout(), battle)
			}
			return playAsBot(cmd, ctrl, battle, from, difficulty)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "challenger user ID")
	cmd.Flags().StringVar(&to, "to", "", "opponent user ID")
	cmd.Flags().IntVar(&bet, "bet", 0, "coins wagered by each side")
	cmd.Flags().StringVar(&difficulty, "bot", "", "play the challenger side with a bot of this difficulty")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// NewBotCmd joins a pending battle as the opponent and plays it with a bot.
func NewBotCmd(configPath *string) *cobra.Command {
	var battleID, user, difficulty string
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Join a battle and play it with an AI opponent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg, user)
			if err != nil {
				return err
			}
			defer b.Close()
			ctrl := b.controller(cfg)

			battle, err := ctrl.JoinBattle(ctx, battleID, user)
			if err != nil {
				return err
			}
			return playAsBot(cmd, ctrl, battle, user, difficulty)
		},
	}
	cmd.Flags().StringVar(&battleID, "battle-id", "", "battle to join")
	cmd.Flags().StringVar(&user, "user", "", "opponent user ID")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(app.DifficultyMedium), "bot difficulty: easy, medium or hard")
	_ = cmd.MarkFlagRequired("battle-id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func playAsBot(cmd *cobra.Command, ctrl *app.Controller, battle domain.Battle, user, difficulty string) error {
	profile, err := app.ProfileFor(app.Difficulty(difficulty))
	if err != nil {
		return err
	}
	bot := app.NewBot(profile, clockwork.NewRealClock(), time.Now().UnixNano())
	log.Info().Str("battle_id", battle.ID).Str("user_id", user).Float64("accuracy", bot.Accuracy()).Msg("bot playing")
	result, err := ctrl.Play(cmd.Context(), battle, user, bot, newConsoleView(cmd.OutOrStdout(), user))
	if err != nil {
		// A pending result still tells the user how to follow up.
		if result.BattleID != "" {
			_ = printJSON(cmd.OutOrStdout(), result)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

// NewStatusCmd reconciles a battle from the remote record.
func NewStatusCmd(configPath *string) *cobra.Command {
	var battleID, user string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check a battle's settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg, user)
			if err != nil {
				return err
			}
			defer b.Close()
			result, err := b.controller(cfg).CheckStatus(cmd.Context(), battleID, user)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&battleID, "battle-id", "", "battle to check")
	cmd.Flags().StringVar(&user, "user", "", "participant user ID")
	_ = cmd.MarkFlagRequired("battle-id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewInvitesCmd lists pending challenges addressed to a user.
func NewInvitesCmd(configPath *string) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "List pending battle invites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg, user)
			if err != nil {
				return err
			}
			defer b.Close()
			battles, err := b.controller(cfg).PendingChallenges(cmd.Context(), user)
			if err != nil {
				return err
			}
			if battles == nil {
				battles = []domain.Battle{}
			}
			return printJSON(cmd.OutOrStdout(), battles)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "invited user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewCoinsCmd shows a balance and optionally grants coins first.
func NewCoinsCmd(configPath *string) *cobra.Command {
	var (
		user  string
		grant int
	)
	cmd := &cobra.Command{
		Use:   "coins",
		Short: "Show or grant a user's coin balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg, user)
			if err != nil {
				return err
			}
			defer b.Close()
			if grant > 0 {
				if _, err := b.ledger.CreditCoins(ctx, user, grant, "grant", "cli"); err != nil {
					return err
				}
			}
			balance, err := b.ledger.Balance(ctx, user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d coins\n", user, balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID")
	cmd.Flags().IntVar(&grant, "grant", 0, "coins to credit before reading the balance")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
