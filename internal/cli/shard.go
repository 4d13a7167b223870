package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quiz-battle/internal/shard"
)

// NewShardCmd prints the question set a battle ID derives.
func NewShardCmd(configPath *string) *cobra.Command {
	var battleID string
	cmd := &cobra.Command{
		Use:   "shard",
		Short: "Print the questions drawn for a battle ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			appCfg := cfg.Controller()
			b, err := openBackend(cmd.Context(), cfg, "")
			if err != nil {
				return err
			}
			defer b.Close()
			set, err := b.corpora.GetCorpus(cmd.Context(), appCfg.CorpusVersion)
			if err != nil {
				return err
			}
			draw := shard.ForBattle(battleID, set.Questions, shard.Options{
				Questions:  appCfg.Questions,
				PerKindCap: appCfg.PerKindCap,
			})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "battle %s, corpus %s (%s)\n", battleID, set.Version, set.Fingerprint())
			for i, q := range draw.Questions {
				fmt.Fprintf(out, "%2d. %-14s %-10s %s\n", i+1, q.Kind(), q.QuestionID(), q.Prompt())
			}
			if draw.Relaxed {
				fmt.Fprintln(out, "kind cap relaxed to fill the battle")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&battleID, "battle-id", "", "battle ID used as the shard seed")
	_ = cmd.MarkFlagRequired("battle-id")
	return cmd
}
